package party

import (
	"time"

	"github.com/hollowroot/keeper/internal/game/grid"
)

// Party is an ordered group of combat entities sharing damage distribution
// and healing. Membership changes only through Manager join/leave calls.
type Party struct {
	// ID is the unique party identifier.
	ID string
	// Active is false once the party has lost its last living member and
	// been retired by a cleanup pass.
	Active bool

	members  []Member
	lastHeal time.Time
}

// Members returns a snapshot of the member list, dead members included.
func (p *Party) Members() []Member {
	out := make([]Member, len(p.members))
	copy(out, p.members)
	return out
}

// LivingMembers returns the members with health above zero.
//
// Postcondition: Every returned member has Health() > 0.
func (p *Party) LivingMembers() []Member {
	var alive []Member
	for _, m := range p.members {
		if m.Health() > 0 {
			alive = append(alive, m)
		}
	}
	return alive
}

// Size returns the total member count, dead members included.
func (p *Party) Size() int {
	return len(p.members)
}

// Affiliation returns the side the party fights for. Parties are formed with
// uniform affiliation, so the first member is representative.
//
// Precondition: the party must have at least one member.
func (p *Party) Affiliation() Affiliation {
	return p.members[0].Affiliation()
}

// HasLivingHealer reports whether any living member is healing-capable.
func (p *Party) HasLivingHealer() bool {
	for _, m := range p.members {
		if m.Health() > 0 && m.HealingCapable() {
			return true
		}
	}
	return false
}

// Position returns the party's representative position: the centroid of the
// living members, or of all members when none live.
//
// Precondition: the party must have at least one member.
func (p *Party) Position() grid.Pos {
	members := p.LivingMembers()
	if len(members) == 0 {
		members = p.members
	}
	var sumX, sumY int
	for _, m := range members {
		pos := m.Position()
		sumX += pos.X
		sumY += pos.Y
	}
	return grid.Pos{X: sumX / len(members), Y: sumY / len(members)}
}

// healerCount returns the number of living healing-capable members.
func (p *Party) healerCount() int {
	count := 0
	for _, m := range p.members {
		if m.Health() > 0 && m.HealingCapable() {
			count++
		}
	}
	return count
}
