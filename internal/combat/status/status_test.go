package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/util"
)

type defsMap map[string]catalog.StatusEffectDefinition

func (d defsMap) StatusEffect(id string) (catalog.StatusEffectDefinition, bool) {
	def, ok := d[id]
	return def, ok
}

var testDefs = defsMap{
	"burn":  {ID: "burn", Duration: 4, DamageType: "fire", Dot: true, Decays: true},
	"bleed": {ID: "bleed", Duration: 3, DamageType: "kinetic", Dot: true, DotBonus: 2},
	"shock": {ID: "shock", Duration: 2, Stun: true, DamageMultipliers: map[string]float64{"kinetic": 1.25}},
	"rust":  {ID: "rust", Duration: 2, ArmorMultipliers: map[string]float64{"kinetic": 150}, DamageMultipliers: map[string]float64{"kinetic": 1.1}},
}

func TestDecayingDotSequence(t *testing.T) {
	effects := []Active{{EffectID: "burn", Remaining: 4, Duration: 4, BaseDot: 40, DamageType: "fire", Decays: true}}
	var got []int
	for i := 0; i < 4; i++ {
		var results []TickResult
		effects, results = Tick(effects, Target{}, testDefs)
		require.Len(t, results, 1)
		got = append(got, results[0].Result.HPDamage)
		if i < 3 {
			assert.False(t, results[0].Expired)
		} else {
			assert.True(t, results[0].Expired)
		}
	}
	assert.Equal(t, []int{40, 30, 20, 10}, got)
	assert.Empty(t, effects)
}

func TestTickRunsThroughArmor(t *testing.T) {
	effects := []Active{
		{EffectID: "bleed", Remaining: 3, Duration: 3, BaseDot: 10, DamageType: "kinetic"},
		{EffectID: "bleed2", Remaining: 3, Duration: 3, BaseDot: 10, DamageType: "kinetic"},
	}
	_, results := Tick(effects, Target{Armor: 15}, testDefs)
	require.Len(t, results, 2)
	assert.Equal(t, 10, results[0].Result.ArmorDamage)
	assert.Equal(t, 5, results[1].Result.ArmorDamage)
	assert.Equal(t, 5, results[1].Result.HPDamage)
}

func TestStunBypassesActiveArmor(t *testing.T) {
	effects := []Active{
		{EffectID: "shock", Remaining: 2, Duration: 2, Stun: true},
		{EffectID: "bleed", Remaining: 3, Duration: 3, BaseDot: 8, DamageType: "kinetic"},
	}
	_, results := Tick(effects, Target{Armor: 50, ActiveArmor: true}, testDefs)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[1].Result.ArmorDamage)
	assert.Equal(t, 10, results[1].Result.HPDamage, "shock amplifies kinetic by 1.25")

	_, results = Tick(effects, Target{Armor: 50}, testDefs)
	assert.Equal(t, 10, results[1].Result.ArmorDamage)
}

func TestApplyRefreshesInsteadOfStacking(t *testing.T) {
	rng := util.New(1)
	req := ApplyRequest{
		Chances:       map[string]float64{"bleed": 100},
		DamagePercent: 100,
		DamageDealt:   10,
	}
	effects, apps := Apply(rng, nil, req, testDefs)
	require.Len(t, effects, 1)
	require.Len(t, apps, 1)
	assert.True(t, apps[0].Applied)
	assert.False(t, apps[0].Refreshed)
	assert.Equal(t, 12, effects[0].BaseDot)

	effects, _ = Tick(effects, Target{}, testDefs)
	require.Len(t, effects, 1)
	assert.Equal(t, 2, effects[0].Remaining)
	assert.Equal(t, 1, effects[0].Tick)

	req.DamageDealt = 20
	effects, apps = Apply(rng, effects, req, testDefs)
	require.Len(t, effects, 1)
	assert.True(t, apps[0].Refreshed)
	assert.Equal(t, 3, effects[0].Remaining)
	assert.Equal(t, 0, effects[0].Tick)
	assert.Equal(t, 22, effects[0].BaseDot)
}

func TestApplyScalesChanceAndSkipsImmune(t *testing.T) {
	assert.Equal(t, 25.0, ApplyChance(50, 50))
	assert.Equal(t, 50.0, ApplyChance(50, 150))

	rng := util.New(1)
	effects, apps := Apply(rng, nil, ApplyRequest{
		Chances:       map[string]float64{"burn": 100, "shock": 100, "unknown": 100},
		DamagePercent: 0,
		Immune:        func(id string) bool { return id == "burn" },
	}, testDefs)
	assert.Empty(t, effects)
	require.Len(t, apps, 2)
	assert.Equal(t, "burn", apps[0].EffectID)
	assert.True(t, apps[0].Immune)
	assert.Equal(t, "shock", apps[1].EffectID)
	assert.False(t, apps[1].Applied)
}

func TestBaseDotUsesEnvironmentOnce(t *testing.T) {
	def := testDefs["burn"]
	assert.Equal(t, 30, BaseDot(def, 20, map[string]float64{"fire": 1.5}, 1))
	assert.Equal(t, 60, BaseDot(def, 20, map[string]float64{"fire": 150}, 2))
	assert.Equal(t, 0, BaseDot(testDefs["shock"], 20, nil, 1))
}

func TestCollectKeepsStrongest(t *testing.T) {
	mods := Collect([]Active{
		{EffectID: "shock", Stun: true},
		{EffectID: "rust"},
	}, testDefs)
	assert.True(t, mods.Stunned)
	assert.Equal(t, 1.25, mods.Damage["kinetic"])
	assert.Equal(t, 1.5, mods.Armor["kinetic"])
	assert.False(t, Stunned(nil))
}
