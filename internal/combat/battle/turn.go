package battle

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/status"
)

// TickStatusEffects ticks every living unit of side and applies resulting
// damage and deaths.
func (e *Engine) TickStatusEffects(s *State, side grid.Side) []Action {
	var actions []Action
	for _, u := range s.Units(side) {
		if !u.Alive() || len(u.Effects) == 0 {
			continue
		}
		var results []status.TickResult
		u.Effects, results = status.Tick(u.Effects, status.Target{
			Armor:       u.Armor,
			ArmorResist: u.Stats.ArmorResist,
			HPResist:    u.Stats.HPResist,
			ActiveArmor: u.ActiveArmor,
		}, e.catalog)
		for _, r := range results {
			if r.Damage > 0 {
				u.Armor = r.Result.ArmorRemaining
				u.HP -= r.Result.HPDamage
				if u.HP < 0 {
					u.HP = 0
				}
				actions = append(actions, Action{
					Type:        ActionStatusTick,
					Target:      u.ID,
					Slot:        u.Slot,
					EffectID:    r.EffectID,
					Raw:         r.Damage,
					ArmorDamage: r.Result.ArmorDamage,
					HPDamage:    r.Result.HPDamage,
				})
			}
			if r.Expired {
				actions = append(actions, Action{Type: ActionStatusExpired, Target: u.ID, Slot: u.Slot, EffectID: r.EffectID})
			}
		}
		actions = append(actions, e.settle(u, "")...)
	}
	return actions
}

// AdvanceCooldowns counts down every cooldown and reload timer of side and
// refills ammo when a reload completes.
func (e *Engine) AdvanceCooldowns(s *State, side grid.Side) []Action {
	var actions []Action
	for _, u := range s.Units(side) {
		if !u.Alive() {
			continue
		}
		countDown(u.Cooldowns)
		countDown(u.WeaponCooldowns)
		for _, id := range sortedKeys(u.Reload) {
			if u.Reload[id] <= 0 {
				continue
			}
			u.Reload[id]--
			if u.Reload[id] > 0 {
				continue
			}
			if w, ok := u.weapon(id); ok {
				u.Ammo[id] = w.Ammo
			}
			actions = append(actions, Action{Type: ActionReload, Actor: u.ID, Slot: u.Slot, Note: "reloaded " + id})
		}
	}
	return actions
}

func countDown(m map[string]int) {
	for k, v := range m {
		if v > 0 {
			m[k] = v - 1
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func anyImportantAlive(units []*CombatUnit) bool {
	for _, u := range units {
		if u.Alive() && u.Important() {
			return true
		}
	}
	return false
}

// CheckBattleEnd advances the wave or ends the battle. It is idempotent: once
// over, further calls change nothing.
func (e *Engine) CheckBattleEnd(s *State) []Action {
	if s.Over() {
		return nil
	}
	if !anyImportantAlive(s.Player) {
		return e.finish(s, grid.SideEnemy)
	}
	if anyImportantAlive(s.Enemy) {
		return nil
	}
	if s.Wave+1 >= s.TotalWaves {
		return e.finish(s, grid.SidePlayer)
	}
	next := s.Wave + 1
	enemy, err := e.instantiate(grid.SideEnemy, s.waves[next], next)
	if err != nil {
		e.log.Error().Err(err).Str("battle", s.ID).Int("wave", next).Msg("spawn wave")
		return e.finish(s, grid.SidePlayer)
	}
	s.Wave = next
	s.Enemy = enemy
	s.Phase = PhaseWaveCleared
	e.log.Debug().Str("battle", s.ID).Int("wave", next).Msg("wave cleared")
	actions := []Action{{Type: ActionWaveCleared, Note: fmt.Sprintf("wave %d spawned", next)}}
	if !anyImportantAlive(enemy) {
		return append(actions, e.CheckBattleEnd(s)...)
	}
	return actions
}

func (e *Engine) finish(s *State, winner grid.Side) []Action {
	s.Phase = PhaseOver
	s.Winner = winner
	e.log.Debug().Str("battle", s.ID).Stringer("winner", winner).Int("turn", s.Turn).Msg("battle over")
	return []Action{{Type: ActionBattleOver, Note: winner.String() + " wins"}}
}

// SelectAiAction picks uniformly among the (unit, ability) pairs of side
// that have a legal target, then uniformly among that ability's targets.
func (e *Engine) SelectAiAction(s *State, side grid.Side, rng *rand.Rand) (Choice, bool) {
	type option struct {
		unit    *CombatUnit
		profile catalog.AbilityProfile
		targets []int
	}
	var opts []option
	for _, u := range s.Units(side) {
		if !u.Alive() || u.Obstacle {
			continue
		}
		for _, p := range e.profiles(u) {
			if !u.ready(p) {
				continue
			}
			if targets := e.legalTargets(s, u, p); len(targets) > 0 {
				opts = append(opts, option{unit: u, profile: p, targets: targets})
			}
		}
	}
	if len(opts) == 0 {
		return Choice{}, false
	}
	pick := opts[rng.Intn(len(opts))]
	return Choice{
		Slot:      pick.unit.Slot,
		AbilityID: pick.profile.AbilityID,
		WeaponID:  pick.profile.WeaponID,
		Target:    pick.targets[rng.Intn(len(pick.targets))],
	}, true
}

// PlayTurn resolves one side-turn for the active side: status ticks, the
// chosen or AI-selected action, cooldown countdown and the end check. A nil
// choice lets the AI act. An invalid choice is rejected before anything is
// mutated. A choice the status ticks made illegal falls back to the AI and
// the reason is kept in Turn.Rejected. The turn is appended to the log and
// returned.
func (e *Engine) PlayTurn(s *State, choice *Choice, rng *rand.Rand) (Turn, error) {
	if s.Over() {
		return Turn{}, ErrBattleOver
	}
	side := s.Active
	if choice != nil {
		if _, _, err := e.validate(s, side, *choice); err != nil {
			return Turn{}, err
		}
	}
	if s.Phase == PhaseWaveCleared {
		s.Phase = PhaseInProgress
	}
	turn := Turn{Number: s.Turn + 1, Side: side, Target: -1}

	turn.Actions = append(turn.Actions, e.TickStatusEffects(s, side)...)
	turn.Actions = append(turn.Actions, e.CheckBattleEnd(s)...)

	if !s.Over() {
		var (
			c  Choice
			ok bool
		)
		if choice != nil {
			c, ok = *choice, true
			if _, _, err := e.validate(s, side, c); err != nil {
				turn.Rejected = err.Error()
				e.log.Debug().Err(err).Str("battle", s.ID).Int("slot", c.Slot).Msg("choice rejected after status ticks")
				c, ok = e.SelectAiAction(s, side, rng)
			}
		} else {
			c, ok = e.SelectAiAction(s, side, rng)
		}
		if ok {
			actor, _ := s.UnitAt(side, c.Slot)
			actions, err := e.ExecuteAbility(s, side, c, rng)
			if err != nil {
				return Turn{}, err
			}
			turn.Actor = actor.ID
			turn.Ability = c.AbilityID
			turn.Target = c.Target
			turn.Actions = append(turn.Actions, actions...)
		} else {
			turn.Actions = append(turn.Actions, Action{Type: ActionPass, Note: side.String() + " has no legal action"})
		}
		turn.Actions = append(turn.Actions, e.AdvanceCooldowns(s, side)...)
		turn.Actions = append(turn.Actions, e.CheckBattleEnd(s)...)
	}

	s.Turn++
	s.Active = side.Opponent()
	s.Log = append(s.Log, turn)
	return turn, nil
}
