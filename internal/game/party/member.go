// Package party implements combat grouping: damage distribution, attack
// aggregation, healer pulses, and proximity-triggered engagements between
// opposing parties.
package party

import "github.com/hollowroot/keeper/internal/game/grid"

// Affiliation is the combat side a member fights for.
type Affiliation int

const (
	// Defender marks dungeon-side combatants (monsters).
	Defender Affiliation = iota
	// Invader marks surface-side combatants (heroes).
	Invader
)

// String returns a human-readable affiliation label.
func (a Affiliation) String() string {
	switch a {
	case Defender:
		return "defender"
	case Invader:
		return "invader"
	default:
		return "unknown"
	}
}

// Opposes reports whether the two affiliations fight each other.
func (a Affiliation) Opposes(b Affiliation) bool {
	return a != b
}

// Member is a combat-capable entity that can belong to a party. Health
// mutation happens only through ApplyDamage and Heal; everything else is a
// read accessor backed by the member's own type.
type Member interface {
	// ID returns the member's unique identity.
	ID() string
	// Health returns the current health, >= 0.
	Health() int
	// MaxHealth returns the health ceiling, > 0.
	MaxHealth() int
	// AttackPower returns the member's individual attack stat.
	AttackPower() int
	// HealingCapable reports whether the member can trigger group healing.
	HealingCapable() bool
	// Position returns the member's grid position.
	Position() grid.Pos
	// Affiliation returns the side the member fights for.
	Affiliation() Affiliation
	// ApplyDamage reduces health by amount, flooring at 0.
	ApplyDamage(amount int)
	// Heal raises health by amount, clamped at MaxHealth.
	Heal(amount int)
}
