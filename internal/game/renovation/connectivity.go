package renovation

import "github.com/hollowroot/keeper/internal/game/grid"

// pathExists runs a breadth-first flood from start toward goal over the
// 8-connected cells inside bounds, treating every cell in walls as
// impassable. The search expands at most bounds.CellCount() nodes, which is
// an exact upper bound on the distinct cells the flood can visit, so an
// exhausted budget and an exhausted frontier are the same outcome: no path.
//
// Precondition: start and goal must lie inside bounds and not be walled.
// Postcondition: Returns true iff a wall-free 8-directional path connects
// start to goal.
func pathExists(start, goal grid.Pos, walls map[grid.Pos]bool, bounds grid.Bounds) bool {
	if start == goal {
		return true
	}

	budget := bounds.CellCount()
	visited := make(map[grid.Pos]bool, budget)
	queue := []grid.Pos{start}
	visited[start] = true

	for len(queue) > 0 && budget > 0 {
		current := queue[0]
		queue = queue[1:]
		budget--

		for _, next := range current.Neighbors8() {
			if visited[next] || walls[next] || !bounds.Contains(next) {
				continue
			}
			if next.ChebyshevDistance(goal) < 1 {
				return true
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return false
}
