package floor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hollowroot/keeper/internal/events"
	"github.com/hollowroot/keeper/internal/game/grid"
)

// yamlDungeonFile is the top-level YAML structure for dungeon layout files.
type yamlDungeonFile struct {
	Dungeon yamlDungeon `yaml:"dungeon"`
}

// yamlDungeon is the YAML representation of the dungeon structure.
type yamlDungeon struct {
	MaxFloors        int         `yaml:"max_floors"`
	Bounds           yamlBounds  `yaml:"bounds"`
	DefaultUpStair   yamlPos     `yaml:"default_up_stair"`
	DefaultDownStair yamlPos     `yaml:"default_down_stair"`
	Floors           []yamlFloor `yaml:"floors"`
}

// yamlBounds is the YAML representation of the walkable region.
type yamlBounds struct {
	MinX int `yaml:"min_x"`
	MinY int `yaml:"min_y"`
	MaxX int `yaml:"max_x"`
	MaxY int `yaml:"max_y"`
}

// yamlPos is the YAML representation of a grid cell.
type yamlPos struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// yamlFloor is the YAML representation of one floor.
type yamlFloor struct {
	Index     int       `yaml:"index"`
	UpStair   *yamlPos  `yaml:"up_stair"`
	DownStair *yamlPos  `yaml:"down_stair"`
	Walls     []yamlPos `yaml:"walls"`
}

// LoadRegistryFromFile reads a dungeon layout YAML file and builds a Registry
// seeded with its floors.
//
// Precondition: path must point to a valid YAML layout file.
// Postcondition: Returns a Registry whose deepest floor holds the core, or a
// non-nil error.
func LoadRegistryFromFile(path string, bus *events.Bus) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dungeon file %s: %w", path, err)
	}
	return LoadRegistryFromBytes(data, bus)
}

// LoadRegistryFromBytes parses a dungeon layout from YAML bytes and builds a
// Registry seeded with its floors.
//
// Precondition: data must be valid YAML conforming to the dungeon schema;
// floors must be listed contiguously starting at index 1.
// Postcondition: Returns a validated Registry or a non-nil error.
func LoadRegistryFromBytes(data []byte, bus *events.Bus) (*Registry, error) {
	var file yamlDungeonFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing dungeon YAML: %w", err)
	}
	yd := file.Dungeon

	cfg := RegistryConfig{
		MaxFloors: yd.MaxFloors,
		Bounds: grid.Bounds{
			Min: grid.Pos{X: yd.Bounds.MinX, Y: yd.Bounds.MinY},
			Max: grid.Pos{X: yd.Bounds.MaxX, Y: yd.Bounds.MaxY},
		},
		DefaultUpStair:   grid.Pos{X: yd.DefaultUpStair.X, Y: yd.DefaultUpStair.Y},
		DefaultDownStair: grid.Pos{X: yd.DefaultDownStair.X, Y: yd.DefaultDownStair.Y},
	}

	registry, err := NewRegistry(cfg, bus)
	if err != nil {
		return nil, err
	}

	for i, yf := range yd.Floors {
		if yf.Index != i+1 {
			return nil, fmt.Errorf("dungeon floors must be contiguous from 1: entry %d has index %d", i, yf.Index)
		}
		f, err := registry.CreateFloor(yf.Index)
		if err != nil {
			return nil, fmt.Errorf("creating floor %d: %w", yf.Index, err)
		}
		if yf.UpStair != nil {
			f.UpStair = &grid.Pos{X: yf.UpStair.X, Y: yf.UpStair.Y}
		}
		if yf.DownStair != nil {
			f.DownStair = &grid.Pos{X: yf.DownStair.X, Y: yf.DownStair.Y}
		}
		walls := make(map[grid.Pos]bool, len(yf.Walls))
		for _, w := range yf.Walls {
			walls[grid.Pos{X: w.X, Y: w.Y}] = true
		}
		if err := registry.CommitWalls(yf.Index, walls); err != nil {
			return nil, fmt.Errorf("loading walls for floor %d: %w", yf.Index, err)
		}
	}

	return registry, nil
}
