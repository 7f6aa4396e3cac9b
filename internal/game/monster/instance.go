package monster

import (
	"github.com/google/uuid"

	"github.com/hollowroot/keeper/internal/game/grid"
	"github.com/hollowroot/keeper/internal/game/party"
)

// Instance is a live creature spawned from a Template. It satisfies
// party.Member and is mutated only on the simulation goroutine.
type Instance struct {
	id         string
	template   *Template
	side       party.Affiliation
	health     int
	pos        grid.Pos
	floorIndex int
}

// NewInstance creates a full-health instance of the template at pos.
//
// Precondition: t must validate; floorIndex must be a valid floor.
func NewInstance(t *Template, floorIndex int, pos grid.Pos) (*Instance, error) {
	side, err := t.Affiliation()
	if err != nil {
		return nil, err
	}
	return &Instance{
		id:         t.ID + "-" + uuid.NewString(),
		template:   t,
		side:       side,
		health:     t.MaxHealth,
		pos:        pos,
		floorIndex: floorIndex,
	}, nil
}

// ID returns the unique instance identifier.
func (i *Instance) ID() string { return i.id }

// TemplateID returns the archetype this instance was spawned from.
func (i *Instance) TemplateID() string { return i.template.ID }

// Name returns the template display name.
func (i *Instance) Name() string { return i.template.Name }

// Health returns the current health.
func (i *Instance) Health() int { return i.health }

// MaxHealth returns the template's health ceiling.
func (i *Instance) MaxHealth() int { return i.template.MaxHealth }

// AttackPower returns the template's attack stat.
func (i *Instance) AttackPower() int { return i.template.Attack }

// HealingCapable reports whether the template can trigger group healing.
func (i *Instance) HealingCapable() bool { return i.template.Healer }

// Position returns the instance's grid position.
func (i *Instance) Position() grid.Pos { return i.pos }

// FloorIndex returns the floor the instance occupies.
func (i *Instance) FloorIndex() int { return i.floorIndex }

// Affiliation returns the side the instance fights for.
func (i *Instance) Affiliation() party.Affiliation { return i.side }

// MoveTo updates the instance's position.
func (i *Instance) MoveTo(pos grid.Pos) { i.pos = pos }

// ApplyDamage reduces health by amount, flooring at zero.
//
// Precondition: amount must be >= 0.
// Postcondition: Health() >= 0.
func (i *Instance) ApplyDamage(amount int) {
	i.health -= amount
	if i.health < 0 {
		i.health = 0
	}
}

// Heal raises health by amount, clamped at MaxHealth.
//
// Precondition: amount must be >= 0.
// Postcondition: Health() <= MaxHealth().
func (i *Instance) Heal(amount int) {
	i.health += amount
	if i.health > i.template.MaxHealth {
		i.health = i.template.MaxHealth
	}
}
