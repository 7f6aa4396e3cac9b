package monster_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowroot/keeper/internal/game/monster"
	"github.com/hollowroot/keeper/internal/game/party"
)

const validMonsterYAML = `
monsters:
  - id: imp
    name: Imp
    max_health: 20
    attack: 4
    side: defender
  - id: shaman
    name: Cave Shaman
    max_health: 14
    attack: 2
    healer: true
    side: defender
  - id: knight
    name: Errant Knight
    max_health: 40
    attack: 8
    side: invader
`

func TestLoadTemplatesFromBytes(t *testing.T) {
	templates, err := monster.LoadTemplatesFromBytes([]byte(validMonsterYAML))
	require.NoError(t, err)
	require.Len(t, templates, 3)

	shaman := templates["shaman"]
	require.NotNil(t, shaman)
	assert.True(t, shaman.Healer)
	side, err := shaman.Affiliation()
	require.NoError(t, err)
	assert.Equal(t, party.Defender, side)

	knight := templates["knight"]
	side, err = knight.Affiliation()
	require.NoError(t, err)
	assert.Equal(t, party.Invader, side)
}

func TestLoadTemplatesFromBytes_Duplicate(t *testing.T) {
	data := `
monsters:
  - {id: imp, name: Imp, max_health: 20, attack: 4, side: defender}
  - {id: imp, name: Imp Again, max_health: 10, attack: 1, side: defender}
`
	_, err := monster.LoadTemplatesFromBytes([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestTemplate_Validate(t *testing.T) {
	tests := []struct {
		name     string
		template monster.Template
		wantErr  bool
	}{
		{"valid", monster.Template{ID: "imp", Name: "Imp", MaxHealth: 10, Attack: 2, Side: "defender"}, false},
		{"empty id", monster.Template{Name: "Imp", MaxHealth: 10, Side: "defender"}, true},
		{"empty name", monster.Template{ID: "imp", MaxHealth: 10, Side: "defender"}, true},
		{"zero health", monster.Template{ID: "imp", Name: "Imp", MaxHealth: 0, Side: "defender"}, true},
		{"negative attack", monster.Template{ID: "imp", Name: "Imp", MaxHealth: 10, Attack: -1, Side: "defender"}, true},
		{"bad side", monster.Template{ID: "imp", Name: "Imp", MaxHealth: 10, Side: "neutral"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.template.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInstance_DamageAndHeal(t *testing.T) {
	tmpl := &monster.Template{ID: "imp", Name: "Imp", MaxHealth: 20, Attack: 4, Side: "defender"}
	inst, err := monster.NewInstance(tmpl, 1, gridPos(2, 3))
	require.NoError(t, err)

	assert.Equal(t, 20, inst.Health())
	assert.Equal(t, "imp", inst.TemplateID())
	assert.Equal(t, 1, inst.FloorIndex())

	inst.ApplyDamage(25)
	assert.Equal(t, 0, inst.Health(), "floors at zero")

	inst.Heal(50)
	assert.Equal(t, 20, inst.Health(), "clamped at max")
}
