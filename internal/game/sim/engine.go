package sim

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hollowroot/keeper/internal/game/monster"
	"github.com/hollowroot/keeper/internal/game/party"
)

// Engine advances all game systems by one frame per Tick call. All mutation
// funnels through the single goroutine driving Tick; the engine itself only
// serializes against concurrent Tick calls defensively.
type Engine struct {
	mu      sync.Mutex
	spawner *monster.Spawner
	parties *party.Manager
	radius  int
	logger  *zap.Logger
}

// NewEngine creates an Engine over the given spawner and party manager.
//
// Precondition: spawner, parties, and logger must be non-nil;
// cooperationRadius >= 1.
func NewEngine(spawner *monster.Spawner, parties *party.Manager, cooperationRadius int, logger *zap.Logger) *Engine {
	return &Engine{
		spawner: spawner,
		parties: parties,
		radius:  cooperationRadius,
		logger:  logger,
	}
}

// Tick advances the simulation one frame: due spawns materialize and join
// parties, engagements and healing pulses run, then the cleanup pass retires
// dead members, empty parties, and dead instances.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, inst := range e.spawner.Tick(now) {
		e.enlist(inst, now)
	}

	if fought := e.parties.EngageAll(); fought > 0 {
		e.logger.Debug("engagements resolved", zap.Int("count", fought))
	}
	e.parties.HealTick(now)
	e.parties.Cleanup()

	if reaped := e.spawner.ReapDead(); len(reaped) > 0 {
		e.logger.Debug("dead instances reaped", zap.Int("count", len(reaped)))
	}
}

// enlist places a freshly spawned instance into a party: the first active
// party of its side on its floor within the cooperation radius, or a new
// single-member party.
func (e *Engine) enlist(inst *monster.Instance, now time.Time) {
	for _, p := range e.parties.Parties() {
		if !p.Active || p.Affiliation() != inst.Affiliation() {
			continue
		}
		if len(p.LivingMembers()) == 0 {
			continue
		}
		if !e.sameFloor(p, inst.FloorIndex()) {
			continue
		}
		if p.Position().ChebyshevDistance(inst.Position()) > e.radius {
			continue
		}
		if err := e.parties.Join(p.ID, inst); err == nil {
			return
		}
	}

	if _, err := e.parties.Form([]party.Member{inst}, now); err != nil {
		e.logger.Warn("failed to form party for spawn",
			zap.String("instance", inst.ID()),
			zap.Error(err),
		)
	}
}

// sameFloor reports whether every living member of p stands on floorIndex.
// Parties never straddle floors, so the first living member is decisive.
func (e *Engine) sameFloor(p *party.Party, floorIndex int) bool {
	living := p.LivingMembers()
	if len(living) == 0 {
		return false
	}
	first, ok := living[0].(*monster.Instance)
	if !ok {
		return false
	}
	return first.FloorIndex() == floorIndex
}
