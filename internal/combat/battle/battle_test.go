package battle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/status"
	"github.com/feiai2017/gridcombat/internal/combat/targeting"
	"github.com/feiai2017/gridcombat/internal/util"
)

func testCatalog(t *testing.T) *catalog.Memory {
	t.Helper()
	cat, err := catalog.New(catalog.Document{
		Tags: map[string][]string{"infantry": {"ground"}},
		StatusEffects: []catalog.StatusEffectDefinition{
			{ID: "burn", Duration: 4, DamageType: "fire", Dot: true, Decays: true},
		},
		Abilities: []catalog.AbilityDefinition{
			{ID: "snipe", Damage: catalog.DamageRange{Min: 1000, Max: 1000}, DamageType: "kinetic",
				LineOfFire: targeting.Indirect, Targets: []string{"ground"}},
			{ID: "shot", Damage: catalog.DamageRange{Min: 1, Max: 1}, DamageType: "kinetic",
				LineOfFire: targeting.Direct},
			{ID: "stab", Damage: catalog.DamageRange{Min: 5, Max: 5}, DamageType: "kinetic",
				LineOfFire: targeting.Contact},
			{ID: "jab", Damage: catalog.DamageRange{Min: 1, Max: 1}, DamageType: "kinetic",
				LineOfFire: targeting.Direct, MaxRange: 1},
			{ID: "rocket", Damage: catalog.DamageRange{Min: 10, Max: 10}, DamageType: "explosive",
				LineOfFire: targeting.Indirect, Cooldown: 2,
				Pattern: &grid.Pattern{Offsets: []grid.Offset{
					{X: 0, Y: 0, DamagePercent: 100},
					{X: 1, Y: 0, DamagePercent: 50},
				}}},
			{ID: "scatter", Damage: catalog.DamageRange{Min: 1, Max: 1}, DamageType: "kinetic",
				LineOfFire: targeting.Indirect, ShotsPerAttack: 3, AttacksPerUse: 2,
				Pattern: &grid.Pattern{Random: true, Offsets: []grid.Offset{
					{X: -1, Y: 0, DamagePercent: 100},
					{X: 0, Y: 0, DamagePercent: 100},
					{X: 1, Y: 0, DamagePercent: 100},
				}}},
			{ID: "shrapnel", Damage: catalog.DamageRange{Min: 10, Max: 10}, DamageType: "kinetic",
				LineOfFire: targeting.Indirect, ShotsPerAttack: 10, AttacksPerUse: 2,
				Pattern: &grid.Pattern{Random: true, Offsets: []grid.Offset{
					{X: 0, Y: 0, DamagePercent: 100, Weight: 1},
					{X: 1, Y: 0, DamagePercent: 100, Weight: 3},
				}},
				Splash: &grid.Pattern{Offsets: []grid.Offset{
					{X: 0, Y: 0, DamagePercent: 100},
					{X: -1, Y: 0, DamagePercent: 50},
				}}},
			{ID: "firebomb", Damage: catalog.DamageRange{Min: 10, Max: 10}, DamageType: "fire",
				LineOfFire: targeting.Indirect, StatusEffects: map[string]float64{"burn": 100}},
		},
		Units: []catalog.UnitDefinition{
			{ID: "gunner", Tags: []string{"infantry"},
				Ranks: []catalog.StatBlock{{HP: 100, Accuracy: 100}},
				Weapons: []catalog.WeaponDefinition{
					{ID: "rifle", Abilities: []string{"snipe", "shot"}},
					{ID: "blade", Abilities: []string{"stab", "jab"}},
					{ID: "launcher", Ammo: 1, ReloadTurns: 1, Abilities: []string{"rocket"}},
				}},
			{ID: "grenadier", Tags: []string{"infantry"},
				Ranks: []catalog.StatBlock{{HP: 80, Accuracy: 100}},
				Weapons: []catalog.WeaponDefinition{
					{ID: "sack", Abilities: []string{"scatter", "firebomb"}},
				}},
			{ID: "bombard", Tags: []string{"infantry"},
				Ranks:   []catalog.StatBlock{{HP: 60, Accuracy: 100}},
				Weapons: []catalog.WeaponDefinition{{ID: "mortar", Abilities: []string{"shrapnel"}}}},
			{ID: "grunt", Tags: []string{"infantry"},
				Ranks:   []catalog.StatBlock{{HP: 30, ArmorHP: 10, Accuracy: 100}},
				Weapons: []catalog.WeaponDefinition{{ID: "claws", Abilities: []string{"stab"}}}},
			{ID: "dummy", Tags: []string{"infantry"}, Ranks: []catalog.StatBlock{{HP: 20}}},
			{ID: "crate", Tags: []string{"structure"}, Blocking: targeting.BlockFull, Obstacle: true,
				Ranks: []catalog.StatBlock{{HP: 50}}},
		},
	})
	require.NoError(t, err)
	return cat
}

func newTestBattle(t *testing.T, player []Placement, waves ...[]Placement) (*Engine, *State) {
	t.Helper()
	e := NewEngine(testCatalog(t))
	s, err := e.InitializeBattle(Setup{Player: player, Waves: waves})
	require.NoError(t, err)
	return e, s
}

func countActions(actions []Action, typ ActionType) int {
	n := 0
	for _, a := range actions {
		if a.Type == typ {
			n++
		}
	}
	return n
}

func TestInitializeBattle(t *testing.T) {
	e := NewEngine(testCatalog(t))

	s, err := e.InitializeBattle(Setup{
		Player: []Placement{{Unit: "gunner", Slot: 2}, {Unit: "ghost", Slot: 3}},
		Waves:  [][]Placement{{{Unit: "grunt", Slot: 12}}},
	})
	require.NoError(t, err)
	require.Len(t, s.Player, 1, "unknown units are skipped")
	assert.Equal(t, "player-2", s.Player[0].ID)
	assert.Equal(t, 100, s.Player[0].HP)
	require.Len(t, s.Enemy, 1)
	assert.Equal(t, 10, s.Enemy[0].Armor)
	assert.Equal(t, PhaseInProgress, s.Phase)
	assert.Equal(t, grid.SidePlayer, s.Active)
	assert.NotEmpty(t, s.ID)

	_, err = e.InitializeBattle(Setup{Player: []Placement{{Unit: "gunner", Slot: 10}}, Waves: [][]Placement{{}}})
	assert.ErrorIs(t, err, grid.ErrInvalidSlot)

	_, err = e.InitializeBattle(Setup{
		Player: []Placement{{Unit: "gunner", Slot: 1}},
		Waves:  [][]Placement{{{Unit: "grunt", Slot: 1}}, {{Unit: "grunt", Slot: 4}, {Unit: "dummy", Slot: 4}}},
	})
	assert.ErrorIs(t, err, ErrSlotOccupied)

	_, err = e.InitializeBattle(Setup{Player: []Placement{{Unit: "gunner", Slot: 1}}})
	assert.ErrorIs(t, err, ErrNoWaves)
}

func TestSingleHitKillLogsOneDeath(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}},
		[]Placement{{Unit: "grunt", Slot: 2}, {Unit: "grunt", Slot: 3}},
	)
	actions, err := e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "snipe", Target: 2}, util.New(1))
	require.NoError(t, err)

	target, ok := s.Unit("enemy-w0-2")
	require.True(t, ok)
	assert.True(t, target.Dead)
	assert.Equal(t, 0, target.HP)
	assert.Equal(t, 0, target.Armor)
	assert.Equal(t, 1, countActions(actions, ActionDeath))

	assert.Nil(t, e.settle(target, "again"))
	assert.Empty(t, e.CheckBattleEnd(s), "one grunt is still standing")
}

func TestTwoWaveBattle(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}},
		[]Placement{{Unit: "dummy", Slot: 2}},
		[]Placement{{Unit: "dummy", Slot: 7}},
	)
	rng := util.New(3)

	turn, err := e.PlayTurn(s, &Choice{Slot: 2, AbilityID: "snipe", Target: 2}, rng)
	require.NoError(t, err)
	assert.Equal(t, 1, countActions(turn.Actions, ActionWaveCleared))
	assert.Equal(t, PhaseWaveCleared, s.Phase)
	assert.False(t, s.Over())
	assert.Equal(t, 1, s.Wave)
	require.Len(t, s.Enemy, 1)
	assert.Equal(t, 7, s.Enemy[0].Slot)

	turn, err = e.PlayTurn(s, nil, rng)
	require.NoError(t, err)
	assert.Equal(t, grid.SideEnemy, turn.Side)
	assert.Equal(t, 1, countActions(turn.Actions, ActionPass))
	assert.Equal(t, PhaseInProgress, s.Phase)

	_, err = e.PlayTurn(s, &Choice{Slot: 2, AbilityID: "snipe", Target: 7}, rng)
	require.NoError(t, err)
	assert.True(t, s.Over())
	assert.Equal(t, grid.SidePlayer, s.Winner)

	out := Summarize(s)
	assert.Equal(t, 3, out.Turns)
	assert.Equal(t, 2, out.WavesCleared)
	assert.Equal(t, 2, out.Deaths)
	assert.Equal(t, 2000, out.DamageByAbility["snipe"])

	assert.Empty(t, e.CheckBattleEnd(s))
	_, err = e.PlayTurn(s, nil, rng)
	assert.ErrorIs(t, err, ErrBattleOver)
	_, err = e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "snipe", Target: 7}, rng)
	assert.ErrorIs(t, err, ErrBattleOver)
}

func TestObstaclesDoNotHoldTheWave(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}},
		[]Placement{{Unit: "crate", Slot: 0}, {Unit: "dummy", Slot: 2}},
	)
	_, err := e.PlayTurn(s, &Choice{Slot: 2, AbilityID: "snipe", Target: 2}, util.New(1))
	require.NoError(t, err)
	assert.True(t, s.Over())
	assert.Equal(t, grid.SidePlayer, s.Winner)
}

func TestContactTargetsNearestRowOnly(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}},
		[]Placement{{Unit: "grunt", Slot: 2}, {Unit: "grunt", Slot: 7}},
	)
	targets, err := e.ValidTargets(s, grid.SidePlayer, 2, "stab")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, targets)

	front, _ := s.UnitAt(grid.SideEnemy, 2)
	front.Dead = true
	targets, err = e.ValidTargets(s, grid.SidePlayer, 2, "stab")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, targets)
}

func TestRangeUsesCollapsedRows(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}},
		[]Placement{{Unit: "grunt", Slot: 1}, {Unit: "grunt", Slot: 7}},
	)
	targets, err := e.ValidTargets(s, grid.SidePlayer, 2, "jab")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, targets)

	front, _ := s.UnitAt(grid.SideEnemy, 1)
	front.Dead = true
	targets, err = e.ValidTargets(s, grid.SidePlayer, 2, "jab")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, targets, "the emptied front row collapses")
}

func TestFullBlockerStopsDirectFire(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}},
		[]Placement{{Unit: "crate", Slot: 2}, {Unit: "grunt", Slot: 7}, {Unit: "grunt", Slot: 8}},
	)
	targets, err := e.ValidTargets(s, grid.SidePlayer, 2, "shot")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 8}, targets)

	targets, err = e.ValidTargets(s, grid.SidePlayer, 2, "snipe")
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, targets, "indirect ignores blockers; tags exclude the crate")
}

func TestAreaAbilityHitsPatternAndCharges(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}},
		[]Placement{{Unit: "grunt", Slot: 2}, {Unit: "grunt", Slot: 3}},
	)
	actions, err := e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "rocket", Target: 2}, util.New(1))
	require.NoError(t, err)
	assert.Equal(t, 2, countActions(actions, ActionAttack))

	center, _ := s.UnitAt(grid.SideEnemy, 2)
	side, _ := s.UnitAt(grid.SideEnemy, 3)
	assert.Equal(t, 0, center.Armor)
	assert.Equal(t, 30, center.HP)
	assert.Equal(t, 5, side.Armor)

	u, _ := s.UnitAt(grid.SidePlayer, 2)
	assert.Equal(t, 0, u.Ammo["launcher"])
	assert.Equal(t, 2, u.Reload["launcher"])
	assert.Equal(t, 3, u.Cooldowns["rocket"])
	assert.Equal(t, 1, countActions(actions, ActionReload))

	_, err = e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "rocket", Target: 2}, util.New(1))
	assert.ErrorIs(t, err, ErrAbilityUnavailable)

	e.AdvanceCooldowns(s, grid.SidePlayer)
	assert.Equal(t, 0, u.Ammo["launcher"])
	reloaded := e.AdvanceCooldowns(s, grid.SidePlayer)
	assert.Equal(t, 1, countActions(reloaded, ActionReload))
	assert.Equal(t, 1, u.Ammo["launcher"])
	assert.Equal(t, 1, u.Cooldowns["rocket"])

	e.AdvanceCooldowns(s, grid.SidePlayer)
	avail, err := e.AvailableAbilities(s, grid.SidePlayer, 2)
	require.NoError(t, err)
	var ids []string
	for _, p := range avail {
		ids = append(ids, p.AbilityID)
	}
	assert.Contains(t, ids, "rocket")
}

func TestRandomPatternLogsMisses(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "grenadier", Slot: 2}},
		[]Placement{{Unit: "dummy", Slot: 2}},
	)
	targets, err := e.ValidTargets(s, grid.SidePlayer, 2, "scatter")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, targets)

	actions, err := e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "scatter", Target: 2}, util.New(9))
	require.NoError(t, err)
	hits := countActions(actions, ActionAttack)
	misses := countActions(actions, ActionMiss)
	assert.Equal(t, 6, hits+misses)

	dummy, _ := s.UnitAt(grid.SideEnemy, 2)
	assert.Equal(t, 20-hits, dummy.HP)
}

func TestRandomDrawOnEmptySlotSkipsSplash(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "bombard", Slot: 2}},
		[]Placement{{Unit: "dummy", Slot: 2}},
	)
	actions, err := e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "shrapnel", Target: 2}, util.New(9))
	require.NoError(t, err)

	hits := countActions(actions, ActionAttack)
	misses := countActions(actions, ActionMiss)
	assert.Equal(t, 20, hits+misses, "every draw is either a hit or a miss")
	assert.Positive(t, misses)
	for _, a := range actions {
		switch a.Type {
		case ActionAttack:
			assert.Equal(t, 10, a.Raw, "only full-strength hits on the drawn slot")
		case ActionMiss:
			assert.Contains(t, []int{2, 3}, a.Slot)
		}
	}
}

func TestDamageOverTimeTicksOnOwnerTurn(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "grenadier", Slot: 2}},
		[]Placement{{Unit: "dummy", Slot: 2}, {Unit: "dummy", Slot: 4}},
	)
	actions, err := e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "firebomb", Target: 2}, util.New(1))
	require.NoError(t, err)
	assert.Equal(t, 1, countActions(actions, ActionStatusApplied))

	dummy, _ := s.UnitAt(grid.SideEnemy, 2)
	assert.Equal(t, 10, dummy.HP)
	require.Len(t, dummy.Effects, 1)
	assert.Equal(t, 10, dummy.Effects[0].BaseDot)

	ticks := e.TickStatusEffects(s, grid.SideEnemy)
	assert.Equal(t, 1, countActions(ticks, ActionStatusTick))
	assert.Equal(t, 1, countActions(ticks, ActionDeath))
	assert.True(t, dummy.Dead)
}

func TestPlayTurnFallsBackWhenTickKillsChosenActor(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}, {Unit: "gunner", Slot: 3}},
		[]Placement{{Unit: "grunt", Slot: 2}},
	)
	burning, ok := s.UnitAt(grid.SidePlayer, 2)
	require.True(t, ok)
	burning.Effects = []status.Active{{EffectID: "burn", Remaining: 2, Duration: 2, BaseDot: 1000, DamageType: "fire"}}

	turn, err := e.PlayTurn(s, &Choice{Slot: 2, AbilityID: "snipe", Target: 2}, util.New(3))
	require.NoError(t, err)
	assert.True(t, burning.Dead)
	assert.NotEmpty(t, turn.Rejected)
	assert.Equal(t, "player-3", turn.Actor, "the surviving unit acts instead")
	assert.Zero(t, countActions(turn.Actions, ActionPass))
	assert.Equal(t, grid.SideEnemy, s.Active)

	out := Summarize(s)
	assert.Positive(t, out.DamageByEffect["burn"])
	assert.NotContains(t, out.DamageByAbility, "burn")
}

func TestExecuteAbilityErrors(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}},
		[]Placement{{Unit: "grunt", Slot: 2}, {Unit: "grunt", Slot: 7}},
	)
	rng := util.New(1)

	_, err := e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 3, AbilityID: "snipe", Target: 2}, rng)
	assert.ErrorIs(t, err, ErrUnknownUnit)

	_, err = e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "scatter", Target: 2}, rng)
	assert.ErrorIs(t, err, ErrAbilityUnavailable)

	_, err = e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "stab", Target: 7}, rng)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = e.ExecuteAbility(s, grid.SidePlayer, Choice{Slot: 2, AbilityID: "snipe", Target: 10}, rng)
	assert.ErrorIs(t, err, grid.ErrInvalidSlot)

	_, err = e.ExecuteAbility(s, grid.SideEnemy, Choice{Slot: 2, AbilityID: "stab", Target: 2}, rng)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = e.PlayTurn(s, &Choice{Slot: 2, AbilityID: "stab", Target: 7}, rng)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Equal(t, 0, s.Turn, "rejected turns leave no trace")
	assert.Empty(t, s.Log)
}

func TestSelectAiActionIsLegal(t *testing.T) {
	e, s := newTestBattle(t,
		[]Placement{{Unit: "gunner", Slot: 2}, {Unit: "grenadier", Slot: 7}},
		[]Placement{{Unit: "grunt", Slot: 1}, {Unit: "grunt", Slot: 2}, {Unit: "grunt", Slot: 12}},
	)
	rng := util.New(21)
	for i := 0; i < 50; i++ {
		c, ok := e.SelectAiAction(s, grid.SidePlayer, rng)
		require.True(t, ok)
		targets, err := e.ValidTargets(s, grid.SidePlayer, c.Slot, c.AbilityID)
		require.NoError(t, err)
		assert.Contains(t, targets, c.Target)
	}
}

func TestSimulateTimesOut(t *testing.T) {
	e := NewEngine(testCatalog(t))
	out, s, err := e.Simulate(context.Background(), Setup{
		Player: []Placement{{Unit: "dummy", Slot: 2}},
		Waves:  [][]Placement{{{Unit: "dummy", Slot: 2}}},
	}, util.New(1), SimOptions{MaxTurns: 10})
	require.NoError(t, err)
	assert.True(t, out.TimedOut)
	assert.Equal(t, grid.SideEnemy, out.Winner)
	assert.Equal(t, 10, out.Turns)
	assert.True(t, s.Over())
	assert.False(t, out.Win())
}

func TestSimulateIsDeterministic(t *testing.T) {
	e := NewEngine(testCatalog(t))
	setup := Setup{
		Player: []Placement{{Unit: "gunner", Slot: 2}, {Unit: "grenadier", Slot: 7}},
		Waves: [][]Placement{
			{{Unit: "grunt", Slot: 1}, {Unit: "grunt", Slot: 2}, {Unit: "grunt", Slot: 3}},
			{{Unit: "grunt", Slot: 6}, {Unit: "crate", Slot: 2}},
		},
		Environment: map[string]float64{"fire": 1.5},
	}
	run := func() (Outcome, *State) {
		out, s, err := e.Simulate(context.Background(), setup, util.New(77), SimOptions{})
		require.NoError(t, err)
		out.BattleID = ""
		return out, s
	}
	a, sa := run()
	b, sb := run()
	assert.Equal(t, a, b)
	assert.Equal(t, sa.Log, sb.Log)
	assert.True(t, sa.Over())
}

func TestSimulateScriptedPlayer(t *testing.T) {
	e := NewEngine(testCatalog(t))
	calls := 0
	out, _, err := e.Simulate(context.Background(), Setup{
		Player: []Placement{{Unit: "gunner", Slot: 2}},
		Waves:  [][]Placement{{{Unit: "dummy", Slot: 2}}},
	}, util.New(1), SimOptions{Player: func(s *State) *Choice {
		calls++
		return &Choice{Slot: 2, AbilityID: "snipe", Target: 2}
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, out.Win())
	assert.Equal(t, 1, out.Turns)
}

func TestSimulateHonorsContext(t *testing.T) {
	e := NewEngine(testCatalog(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := e.Simulate(ctx, Setup{
		Player: []Placement{{Unit: "gunner", Slot: 2}},
		Waves:  [][]Placement{{{Unit: "dummy", Slot: 2}}},
	}, util.New(1), SimOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSetup(t *testing.T) {
	s, err := ParseSetup([]byte(`
name: ambush
player:
  - {unit: gunner, slot: 2, rank: 1}
waves:
  - - {unit: grunt, slot: 1}
    - {unit: grunt, slot: 3}
  - - {unit: dummy, slot: 12}
environment:
  fire: 1.25
`))
	require.NoError(t, err)
	assert.Equal(t, "ambush", s.Name)
	require.Len(t, s.Waves, 2)
	assert.Len(t, s.Waves[0], 2)
	assert.Equal(t, 12, s.Waves[1][0].Slot)
	assert.Equal(t, 1, s.Player[0].Rank)
	assert.Equal(t, 1.25, s.Environment["fire"])
}
