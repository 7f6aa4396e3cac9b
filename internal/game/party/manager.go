package party

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hollowroot/keeper/internal/events"
)

// Manager operation errors.
var (
	// ErrEmptyParty indicates a party formation with no members.
	ErrEmptyParty = errors.New("party must have at least one member")
	// ErrMixedAffiliation indicates a formation or join mixing sides.
	ErrMixedAffiliation = errors.New("party members must share an affiliation")
	// ErrMemberClaimed indicates a member already belonging to another party.
	ErrMemberClaimed = errors.New("member already belongs to a party")
	// ErrUnknownParty indicates an operation on a retired or unknown party.
	ErrUnknownParty = errors.New("unknown party")
)

// Config holds the combat aggregation tunables.
type Config struct {
	// HealInterval is the minimum sim time between healing pulses per party.
	HealInterval time.Duration
	// HealAmount is the health restored per healer per pulse, split among
	// the injured.
	HealAmount int
	// CooperationRadius is the Chebyshev distance within which two opposing
	// parties engage.
	CooperationRadius int
	// PartyBonus scales a party's aggregate attack power during engagements.
	PartyBonus float64
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.HealInterval <= 0 {
		return fmt.Errorf("heal interval must be > 0, got %s", c.HealInterval)
	}
	if c.HealAmount < 0 {
		return fmt.Errorf("heal amount must be >= 0, got %d", c.HealAmount)
	}
	if c.CooperationRadius < 1 {
		return fmt.Errorf("cooperation radius must be >= 1, got %d", c.CooperationRadius)
	}
	if c.PartyBonus <= 0 {
		return fmt.Errorf("party bonus must be > 0, got %g", c.PartyBonus)
	}
	return nil
}

// Manager owns all active parties and enforces exclusive membership.
// All methods are safe for concurrent use, though in practice every mutation
// runs on the single simulation goroutine.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	parties map[string]*Party
	owner   map[string]string // member ID → party ID
	bus     *events.Bus
}

// NewManager creates an empty party Manager.
//
// Precondition: cfg must validate; bus may be nil.
func NewManager(cfg Config, bus *events.Bus) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("party config: %w", err)
	}
	return &Manager{
		cfg:     cfg,
		parties: make(map[string]*Party),
		owner:   make(map[string]string),
		bus:     bus,
	}, nil
}

// Form creates a new active party from the given members.
//
// Precondition: members must be non-empty, share one affiliation, and belong
// to no other party.
// Postcondition: Returns the new Party with a fresh ID, or ErrEmptyParty /
// ErrMixedAffiliation / ErrMemberClaimed.
func (m *Manager) Form(members []Member, now time.Time) (*Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(members) == 0 {
		return nil, ErrEmptyParty
	}
	side := members[0].Affiliation()
	seen := make(map[string]bool, len(members))
	for _, mem := range members {
		if mem.Affiliation() != side {
			return nil, fmt.Errorf("%w: %s is %s, party is %s", ErrMixedAffiliation, mem.ID(), mem.Affiliation(), side)
		}
		if _, claimed := m.owner[mem.ID()]; claimed {
			return nil, fmt.Errorf("%w: %s", ErrMemberClaimed, mem.ID())
		}
		if seen[mem.ID()] {
			return nil, fmt.Errorf("%w: %s listed twice", ErrMemberClaimed, mem.ID())
		}
		seen[mem.ID()] = true
	}

	p := &Party{
		ID:       uuid.NewString(),
		Active:   true,
		members:  append([]Member(nil), members...),
		lastHeal: now,
	}
	m.parties[p.ID] = p
	for _, mem := range members {
		m.owner[mem.ID()] = p.ID
	}
	return p, nil
}

// Join adds a member to an existing party.
//
// Precondition: the party must be active; the member must match its
// affiliation and belong to no party.
func (m *Manager) Join(partyID string, mem Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parties[partyID]
	if !ok || !p.Active {
		return fmt.Errorf("%w: %s", ErrUnknownParty, partyID)
	}
	if mem.Affiliation() != p.Affiliation() {
		return fmt.Errorf("%w: %s", ErrMixedAffiliation, mem.ID())
	}
	if _, claimed := m.owner[mem.ID()]; claimed {
		return fmt.Errorf("%w: %s", ErrMemberClaimed, mem.ID())
	}
	p.members = append(p.members, mem)
	m.owner[mem.ID()] = p.ID
	return nil
}

// Leave removes a member from its party. A party emptied by an explicit
// leave is retired immediately.
func (m *Manager) Leave(memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	partyID, ok := m.owner[memberID]
	if !ok {
		return fmt.Errorf("member %q belongs to no party", memberID)
	}
	p := m.parties[partyID]
	for i, mem := range p.members {
		if mem.ID() == memberID {
			p.members = append(p.members[:i], p.members[i+1:]...)
			break
		}
	}
	delete(m.owner, memberID)
	if len(p.members) == 0 {
		m.retireLocked(p)
	}
	return nil
}

// Get returns the party with the given ID.
//
// Postcondition: Returns (party, true) if found, or (nil, false).
func (m *Manager) Get(partyID string) (*Party, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parties[partyID]
	return p, ok
}

// PartyOf returns the ID of the party owning the given member.
func (m *Manager) PartyOf(memberID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.owner[memberID]
	return id, ok
}

// Parties returns a snapshot of all tracked parties.
func (m *Manager) Parties() []*Party {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Party, 0, len(m.parties))
	for _, p := range m.parties {
		out = append(out, p)
	}
	return out
}

// DistributeDamage splits total evenly across the party's living members at
// the instant of the call. Members crossing zero stay in the list until the
// next Cleanup pass.
//
// Precondition: total must be >= 0.
// Postcondition: Each member living at call time loses total/livingCount
// health, floored at 0. Returns the number of members hit.
func (m *Manager) DistributeDamage(p *Party, total int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.distributeDamageLocked(p, total)
}

func (m *Manager) distributeDamageLocked(p *Party, total int) int {
	living := p.LivingMembers()
	if len(living) == 0 || total <= 0 {
		return 0
	}
	share := total / len(living)
	for _, mem := range living {
		mem.ApplyDamage(share)
	}
	if m.bus != nil {
		m.bus.Publish(events.Event{Kind: events.KindPartyDamaged, SubjectID: p.ID, Amount: total})
	}
	return len(living)
}

// AttackPower returns the party's aggregate offensive strength: the sum of
// every living member's attack stat.
func (m *Manager) AttackPower(p *Party) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return attackPower(p)
}

func attackPower(p *Party) int {
	total := 0
	for _, mem := range p.LivingMembers() {
		total += mem.AttackPower()
	}
	return total
}

// HealTick runs due healing pulses. A party pulses when its heal interval
// has elapsed, it holds at least one living healer, and at least one living
// member is injured; the pulse resets the party's heal clock.
//
// Postcondition: Healed members never exceed MaxHealth. Returns the number
// of parties that pulsed.
func (m *Manager) HealTick(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pulsed := 0
	for _, p := range m.parties {
		if !p.Active || !p.HasLivingHealer() {
			continue
		}
		if now.Sub(p.lastHeal) < m.cfg.HealInterval {
			continue
		}

		var injured []Member
		for _, mem := range p.LivingMembers() {
			if mem.Health() < mem.MaxHealth() {
				injured = append(injured, mem)
			}
		}
		if len(injured) == 0 {
			continue
		}

		pool := m.cfg.HealAmount * p.healerCount()
		share := pool / len(injured)
		for _, mem := range injured {
			mem.Heal(share)
		}
		p.lastHeal = now
		pulsed++
		if m.bus != nil {
			m.bus.Publish(events.Event{Kind: events.KindPartyHealed, SubjectID: p.ID, Amount: pool})
		}
	}
	return pulsed
}

// EngageAll runs one round of proximity combat: every pair of active,
// opposing parties within the cooperation radius exchanges damage. Both
// sides' attack powers are read before either side takes damage, so the
// exchange is simultaneous.
//
// Postcondition: Returns the number of engagements fought.
func (m *Manager) EngageAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := m.orderedPartiesLocked()

	type exchange struct {
		a, b       *Party
		aHit, bHit int
	}
	var exchanges []exchange
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := ordered[i], ordered[j]
			if !a.Active || !b.Active {
				continue
			}
			if !a.Affiliation().Opposes(b.Affiliation()) {
				continue
			}
			if len(a.LivingMembers()) == 0 || len(b.LivingMembers()) == 0 {
				continue
			}
			if a.Position().ChebyshevDistance(b.Position()) > m.cfg.CooperationRadius {
				continue
			}
			exchanges = append(exchanges, exchange{
				a:    a,
				b:    b,
				aHit: int(float64(attackPower(a)) * m.cfg.PartyBonus),
				bHit: int(float64(attackPower(b)) * m.cfg.PartyBonus),
			})
		}
	}

	for _, ex := range exchanges {
		m.distributeDamageLocked(ex.b, ex.aHit)
		m.distributeDamageLocked(ex.a, ex.bHit)
	}
	return len(exchanges)
}

// Cleanup removes dead members from every party and retires parties left
// with no members.
//
// Postcondition: Every surviving party holds only living members; retired
// parties have Active == false and are no longer tracked.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.parties {
		kept := p.members[:0]
		for _, mem := range p.members {
			if mem.Health() > 0 {
				kept = append(kept, mem)
			} else {
				delete(m.owner, mem.ID())
			}
		}
		p.members = kept
		if len(p.members) == 0 {
			m.retireLocked(p)
		}
	}
}

// retireLocked deactivates and forgets a party. Caller must hold m.mu.
func (m *Manager) retireLocked(p *Party) {
	p.Active = false
	delete(m.parties, p.ID)
	if m.bus != nil {
		m.bus.Publish(events.Event{Kind: events.KindPartyDisbanded, SubjectID: p.ID})
	}
}

// orderedPartiesLocked returns the parties sorted by ID for deterministic
// engagement order. Caller must hold m.mu.
func (m *Manager) orderedPartiesLocked() []*Party {
	out := make([]*Party, 0, len(m.parties))
	for _, p := range m.parties {
		out = append(out, p)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
