package battle

import (
	"fmt"
	"math/rand"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/damage"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/status"
)

// HitInput builds the damage input for p landing on target, folding in the
// target's resistances and active status effects.
func HitInput(cat catalog.Catalog, p catalog.AbilityProfile, target *CombatUnit, env map[string]float64) damage.Input {
	mods := status.Collect(target.Effects, cat)
	return damage.Input{
		DamageType:    p.DamageType,
		Armor:         target.Armor,
		ArmorPiercing: p.ArmorPiercing,
		ArmorResist:   target.Stats.ArmorResist,
		HPResist:      target.Stats.HPResist,
		Environment:   env,
		StatusDamage:  mods.Damage,
		StatusArmor:   mods.Armor,
		BypassArmor:   target.ActiveArmor && mods.Stunned,
	}
}

// Volley builds the attack request of p fired by attacker at target with the
// given slot damage percent and shot count.
func Volley(cat catalog.Catalog, p catalog.AbilityProfile, attacker, target *CombatUnit, percent float64, shots int, env map[string]float64) damage.AttackRequest {
	return damage.AttackRequest{
		Min:     p.DamageMin,
		Max:     p.DamageMax,
		Power:   attacker.Stats.Power,
		Percent: percent,
		Shots:   shots,
		DodgeChance: damage.DodgeChance(
			attacker.Stats.Accuracy, p.Offense,
			target.Stats.Defense, target.Stats.Dodge,
			status.Stunned(target.Effects),
		),
		CritChance:     damage.CritChance(p.CritChance, attacker.Stats.Crit, p.CritBonus, cat.ExpandTags(target.Tags)),
		CritMultiplier: p.CritMultiplier,
		Hit:            HitInput(cat, p, target, env),
	}
}

// ExecuteAbility resolves one ability use by the unit of side at c.Slot and
// returns the logged actions. Cooldowns and ammo are charged; the end-of-turn
// countdown is left to AdvanceCooldowns.
func (e *Engine) ExecuteAbility(s *State, side grid.Side, c Choice, rng *rand.Rand) ([]Action, error) {
	if s.Over() {
		return nil, ErrBattleOver
	}
	u, p, err := e.validate(s, side, c)
	if err != nil {
		return nil, err
	}

	var actions []Action
	opp := side.Opponent()
	if p.Kind() == catalog.KindRandom {
		area, err := Impacts(side, u.Slot, p, c.Target)
		if err != nil {
			return nil, err
		}
		for _, draw := range grid.Draw(rng, area, p.Shots()) {
			// A draw without an eligible unit is a miss; its splash is not applied.
			if t, ok := s.UnitAt(opp, draw.Slot); !ok || !e.eligible(p, t) {
				actions = append(actions, Action{Type: ActionMiss, Actor: u.ID, Slot: draw.Slot, AbilityID: p.AbilityID})
				continue
			}
			hits := []grid.Hit{draw}
			if p.Splash != nil && len(p.Splash.Offsets) > 0 {
				hits = grid.ResolveSplash(hits, *p.Splash, side)
			}
			for _, h := range hits {
				t, ok := s.UnitAt(opp, h.Slot)
				if !ok || !e.eligible(p, t) {
					continue
				}
				actions = append(actions, e.strike(s, u, t, p, h.DamagePercent, 1, rng)...)
			}
		}
	} else {
		hits, err := Impacts(side, u.Slot, p, c.Target)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			t, ok := s.UnitAt(opp, h.Slot)
			if !ok || !e.eligible(p, t) {
				continue
			}
			actions = append(actions, e.strike(s, u, t, p, h.DamagePercent, p.Shots(), rng)...)
		}
	}

	actions = append(actions, e.charge(u, p)...)
	e.log.Debug().
		Str("battle", s.ID).
		Str("actor", u.ID).
		Str("ability", p.AbilityID).
		Int("target", c.Target).
		Int("actions", len(actions)).
		Msg("ability executed")
	return actions, nil
}

// CheckChoice reports why c cannot be played by side right now, or nil.
func (e *Engine) CheckChoice(s *State, side grid.Side, c Choice) error {
	_, _, err := e.validate(s, side, c)
	return err
}

// validate checks c against the current state without mutating it.
func (e *Engine) validate(s *State, side grid.Side, c Choice) (*CombatUnit, catalog.AbilityProfile, error) {
	if s.Over() {
		return nil, catalog.AbilityProfile{}, ErrBattleOver
	}
	if side != s.Active {
		return nil, catalog.AbilityProfile{}, ErrNotYourTurn
	}
	u, err := e.actor(s, side, c.Slot)
	if err != nil {
		return nil, catalog.AbilityProfile{}, err
	}
	p, ok := e.profile(u, c.AbilityID, c.WeaponID)
	if !ok || !u.ready(p) {
		return nil, catalog.AbilityProfile{}, fmt.Errorf("%q: %w", c.AbilityID, ErrAbilityUnavailable)
	}
	if !contains(e.legalTargets(s, u, p), c.Target) {
		if !grid.ValidSlot(c.Target) {
			return nil, catalog.AbilityProfile{}, fmt.Errorf("target slot %d: %w", c.Target, grid.ErrInvalidSlot)
		}
		return nil, catalog.AbilityProfile{}, fmt.Errorf("slot %d for %q: %w", c.Target, p.AbilityID, ErrInvalidTarget)
	}
	return u, p, nil
}

// strike fires one volley at target and applies status effects if any shot
// landed.
func (e *Engine) strike(s *State, u, target *CombatUnit, p catalog.AbilityProfile, percent float64, shots int, rng *rand.Rand) []Action {
	att := damage.ResolveAttack(rng, Volley(e.catalog, p, u, target, percent, shots, s.Environment))

	var actions []Action
	for _, shot := range att.Shots {
		if shot.Dodged {
			actions = append(actions, Action{Type: ActionDodge, Actor: u.ID, Target: target.ID, Slot: target.Slot, AbilityID: p.AbilityID})
			continue
		}
		if shot.Crit {
			actions = append(actions, Action{Type: ActionCrit, Actor: u.ID, Target: target.ID, Slot: target.Slot, AbilityID: p.AbilityID})
		}
		actions = append(actions, Action{
			Type:        ActionAttack,
			Actor:       u.ID,
			Target:      target.ID,
			Slot:        target.Slot,
			AbilityID:   p.AbilityID,
			Raw:         shot.Result.RawDamage,
			ArmorDamage: shot.Result.ArmorDamage,
			HPDamage:    shot.Result.HPDamage,
		})
	}
	target.Armor = att.ArmorRemaining
	target.HP -= att.HPDamage
	if target.HP < 0 {
		target.HP = 0
	}

	if att.Landed > 0 && target.HP > 0 && len(p.StatusEffects) > 0 {
		var apps []status.Application
		target.Effects, apps = status.Apply(rng, target.Effects, status.ApplyRequest{
			Chances:       p.StatusEffects,
			DamagePercent: percent,
			DamageDealt:   att.Total(),
			DotMultiplier: p.DotMultiplier,
			Environment:   s.Environment,
			Immune:        target.Stats.Immune,
		}, e.catalog)
		for _, app := range apps {
			typ := ActionStatusResist
			if app.Applied {
				typ = ActionStatusApplied
			}
			note := ""
			if app.Immune {
				note = "immune"
			} else if app.Refreshed {
				note = "refreshed"
			}
			actions = append(actions, Action{
				Type: typ, Actor: u.ID, Target: target.ID, Slot: target.Slot,
				AbilityID: p.AbilityID, EffectID: app.EffectID, Chance: app.Chance, Note: note,
			})
		}
	}
	return append(actions, e.settle(target, u.ID)...)
}

// settle marks a unit dead the first time its hit points reach zero.
func (e *Engine) settle(u *CombatUnit, killer string) []Action {
	if u.Dead || u.HP > 0 {
		return nil
	}
	u.Dead = true
	u.Effects = nil
	return []Action{{Type: ActionDeath, Actor: killer, Target: u.ID, Slot: u.Slot}}
}

// charge starts cooldowns and spends ammo. Counters are set one higher than
// declared because the acting side counts down at the end of this turn.
func (e *Engine) charge(u *CombatUnit, p catalog.AbilityProfile) []Action {
	u.Cooldowns[p.AbilityID] = p.Cooldown + 1
	u.WeaponCooldowns[p.WeaponID] = p.GlobalCooldown + 1
	if p.MaxAmmo <= 0 {
		return nil
	}
	u.Ammo[p.WeaponID] -= p.AmmoCost
	if u.Ammo[p.WeaponID] < 0 {
		u.Ammo[p.WeaponID] = 0
	}
	if u.Ammo[p.WeaponID] < p.AmmoCost {
		u.Reload[p.WeaponID] = p.ReloadTurns + 1
		return []Action{{Type: ActionReload, Actor: u.ID, Slot: u.Slot, Note: "reloading " + p.WeaponID}}
	}
	return nil
}

func contains(v []int, x int) bool {
	for _, y := range v {
		if y == x {
			return true
		}
	}
	return false
}
