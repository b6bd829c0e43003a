package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/battle"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/targeting"
)

func fixture(t *testing.T) (*catalog.Memory, *battle.State) {
	t.Helper()
	cat, err := catalog.New(catalog.Document{
		StatusEffects: []catalog.StatusEffectDefinition{
			{ID: "burn", Duration: 3, DamageType: "fire", Dot: true},
		},
		Abilities: []catalog.AbilityDefinition{
			{ID: "burst", Damage: catalog.DamageRange{Min: 10, Max: 20}, DamageType: "kinetic",
				LineOfFire: targeting.Direct, ShotsPerAttack: 2, Crit: 50,
				StatusEffects: map[string]float64{"burn": 80}},
			{ID: "blast", Damage: catalog.DamageRange{Min: 8, Max: 8}, DamageType: "explosive",
				LineOfFire: targeting.Indirect, StatusEffects: map[string]float64{"burn": 80},
				Pattern: &grid.Pattern{Offsets: []grid.Offset{
					{X: 0, Y: 0, DamagePercent: 100},
					{X: 1, Y: 0, DamagePercent: 50},
				}}},
		},
		Units: []catalog.UnitDefinition{
			{ID: "trooper", Ranks: []catalog.StatBlock{{HP: 100, Accuracy: 100}},
				Weapons: []catalog.WeaponDefinition{{ID: "gun", Abilities: []string{"burst", "blast"}}}},
			{ID: "target", Ranks: []catalog.StatBlock{{HP: 50, ArmorHP: 10}}},
			{ID: "golem", Ranks: []catalog.StatBlock{{HP: 50, Immunities: []string{"burn"}}}},
			{ID: "wall", Blocking: targeting.BlockFull, Obstacle: true, Ranks: []catalog.StatBlock{{HP: 40}}},
		},
	})
	require.NoError(t, err)

	s, err := battle.NewEngine(cat).InitializeBattle(battle.Setup{
		Player: []battle.Placement{{Unit: "trooper", Slot: 2}},
		Waves: [][]battle.Placement{{
			{Unit: "target", Slot: 2},
			{Unit: "wall", Slot: 3},
			{Unit: "golem", Slot: 8},
		}},
	})
	require.NoError(t, err)
	return cat, s
}

func request(t *testing.T, cat *catalog.Memory, s *battle.State, ability string) Request {
	t.Helper()
	p, ok := catalog.Profile(cat, "trooper", 0, "gun", ability)
	require.True(t, ok)
	return Request{Catalog: cat, Profile: p, Attacker: s.Player[0]}
}

func snapshot(units []*battle.CombatUnit) []battle.CombatUnit {
	out := make([]battle.CombatUnit, len(units))
	for i, u := range units {
		out[i] = *u
	}
	return out
}

func TestSingleFlagsBlockedTargets(t *testing.T) {
	cat, s := fixture(t)
	req := request(t, cat, s, "burst")

	ests := Single(req, s.Enemy)
	require.Len(t, ests, 3)
	assert.Equal(t, []int{2, 3, 8}, []int{ests[0].Slot, ests[1].Slot, ests[2].Slot})
	assert.False(t, ests[0].Blocked)
	assert.False(t, ests[1].Blocked)
	assert.True(t, ests[2].Blocked, "the wall stands in front of slot 8")
	assert.Equal(t, 2, ests[0].Shots)
	assert.Equal(t, 50.0, ests[0].CritChance)
}

func TestEstimateBounds(t *testing.T) {
	cat, s := fixture(t)
	req := request(t, cat, s, "burst")

	for _, est := range Single(req, s.Enemy) {
		assert.LessOrEqual(t, est.Min.Total(), est.Max.Total(), est.TargetID)
		assert.Positive(t, est.Min.Total(), est.TargetID)
	}

	est := Single(req, s.Enemy)[0]
	// Two 10-point shots against 10 armor: the first is soaked, the second
	// reaches hit points.
	assert.Equal(t, 10, est.Min.ArmorDamage)
	assert.Equal(t, 10, est.Min.HPDamage)
	// Max is two 30-point crits.
	assert.Equal(t, 60, est.Max.Total())
	assert.Equal(t, 80.0, est.StatusChances["burn"])

	golem := Single(req, s.Enemy)[2]
	assert.Equal(t, 0.0, golem.StatusChances["burn"], "immune")
}

func TestAreaScalesPercentAndStatusChance(t *testing.T) {
	cat, s := fixture(t)
	req := request(t, cat, s, "blast")

	ests, err := Ability(req, 2, s.Enemy)
	require.NoError(t, err)
	require.Len(t, ests, 2)
	assert.Equal(t, 2, ests[0].Slot)
	assert.Equal(t, 100.0, ests[0].DamagePercent)
	assert.Equal(t, 8, ests[0].Max.Total())
	assert.Equal(t, 3, ests[1].Slot)
	assert.Equal(t, 50.0, ests[1].DamagePercent)
	assert.Equal(t, 4, ests[1].Max.Total())
	assert.Equal(t, 40.0, ests[1].StatusChances["burn"])

	_, err = Fixed(req, s.Enemy)
	assert.Error(t, err, "blast is movable")
}

func TestAbilitySingleSelectsTarget(t *testing.T) {
	cat, s := fixture(t)
	req := request(t, cat, s, "burst")

	ests, err := Ability(req, 3, s.Enemy)
	require.NoError(t, err)
	require.Len(t, ests, 1)
	assert.Equal(t, "enemy-w0-3", ests[0].TargetID)

	ests, err = Ability(req, 4, s.Enemy)
	require.NoError(t, err)
	assert.Empty(t, ests)
}

func TestPreviewIsPure(t *testing.T) {
	cat, s := fixture(t)
	before := snapshot(s.Enemy)
	attacker := *s.Player[0]

	for _, ability := range []string{"burst", "blast"} {
		req := request(t, cat, s, ability)
		first, err := Ability(req, 2, s.Enemy)
		require.NoError(t, err)
		second, err := Ability(req, 2, s.Enemy)
		require.NoError(t, err)
		assert.Equal(t, first, second, ability)
	}

	assert.Equal(t, before, snapshot(s.Enemy))
	assert.Equal(t, attacker, *s.Player[0])
}
