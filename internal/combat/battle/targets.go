package battle

import (
	"fmt"
	"sort"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/targeting"
)

// Choice selects an ability use. WeaponID may be left empty when the ability
// id is unique across the actor's weapons. For fixed patterns Target is the
// actor's own slot.
type Choice struct {
	Slot      int    `json:"slot"`
	AbilityID string `json:"ability_id"`
	WeaponID  string `json:"weapon_id,omitempty"`
	Target    int    `json:"target"`
}

// Impacts resolves the opposing-grid slots an ability used at target
// affects, with splash folded in. For random patterns it returns the draw
// area without splash, since splash applies per drawn shot.
func Impacts(side grid.Side, attacker int, p catalog.AbilityProfile, target int) ([]grid.Hit, error) {
	var (
		hits []grid.Hit
		err  error
	)
	switch p.Kind() {
	case catalog.KindSingle:
		if !grid.ValidSlot(target) {
			return nil, fmt.Errorf("target slot %d: %w", target, grid.ErrInvalidSlot)
		}
		hits = []grid.Hit{{Slot: target, DamagePercent: 100, Count: 1}}
	case catalog.KindArea:
		hits, err = grid.ResolveAOE(target, *p.Pattern, side)
	case catalog.KindFixed:
		hits, err = fixedHits(side, attacker, *p.Pattern)
	case catalog.KindRandom:
		if p.Pattern.Type == grid.PatternFixed {
			return fixedHits(side, attacker, *p.Pattern)
		}
		return grid.ResolveAOE(target, *p.Pattern, side)
	}
	if err != nil {
		return nil, err
	}
	if p.Splash != nil && len(p.Splash.Offsets) > 0 {
		hits = grid.ResolveSplash(hits, *p.Splash, side)
	}
	return hits, nil
}

func fixedHits(side grid.Side, attacker int, pattern grid.Pattern) ([]grid.Hit, error) {
	fixed, err := grid.ResolveFixed(attacker, pattern, side)
	if err != nil {
		return nil, err
	}
	return grid.OpposingHits(fixed), nil
}

// profiles resolves the actor's abilities from the catalog.
func (e *Engine) profiles(u *CombatUnit) []catalog.AbilityProfile {
	if u.Obstacle {
		return nil
	}
	return catalog.Profiles(e.catalog, u.DefinitionID, u.Rank)
}

// AbilityProfile resolves an ability of u. An empty weaponID matches the
// first weapon carrying the ability.
func (e *Engine) AbilityProfile(u *CombatUnit, abilityID, weaponID string) (catalog.AbilityProfile, bool) {
	return e.profile(u, abilityID, weaponID)
}

func (e *Engine) profile(u *CombatUnit, abilityID, weaponID string) (catalog.AbilityProfile, bool) {
	for _, p := range e.profiles(u) {
		if p.AbilityID == abilityID && (weaponID == "" || p.WeaponID == weaponID) {
			return p, true
		}
	}
	return catalog.AbilityProfile{}, false
}

func (e *Engine) actor(s *State, side grid.Side, slot int) (*CombatUnit, error) {
	if !grid.ValidSlot(slot) {
		return nil, fmt.Errorf("actor slot %d: %w", slot, grid.ErrInvalidSlot)
	}
	u, ok := s.UnitAt(side, slot)
	if !ok {
		return nil, fmt.Errorf("%s slot %d: %w", side, slot, ErrUnknownUnit)
	}
	return u, nil
}

// AvailableAbilities lists the abilities of the unit at slot that are off
// cooldown, loaded and have at least one legal target.
func (e *Engine) AvailableAbilities(s *State, side grid.Side, slot int) ([]catalog.AbilityProfile, error) {
	u, err := e.actor(s, side, slot)
	if err != nil {
		return nil, err
	}
	var out []catalog.AbilityProfile
	for _, p := range e.profiles(u) {
		if !u.ready(p) {
			continue
		}
		if len(e.legalTargets(s, u, p)) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ValidTargets lists the legal target slots of an ability regardless of its
// cooldown state.
func (e *Engine) ValidTargets(s *State, side grid.Side, slot int, abilityID string) ([]int, error) {
	u, err := e.actor(s, side, slot)
	if err != nil {
		return nil, err
	}
	p, ok := e.profile(u, abilityID, "")
	if !ok {
		return nil, fmt.Errorf("%q: %w", abilityID, ErrAbilityUnavailable)
	}
	return e.legalTargets(s, u, p), nil
}

// Blockers indexes the living units of side for line-of-fire checks.
func (s *State) Blockers(side grid.Side) targeting.Blockers {
	alive := s.alive(side)
	occ := make([]targeting.Occupant, 0, len(alive))
	for _, u := range alive {
		occ = append(occ, u.occupant())
	}
	return targeting.ComputeBlockers(occ)
}

func (e *Engine) eligible(p catalog.AbilityProfile, t *CombatUnit) bool {
	return t.Alive() && targeting.CanTarget(t.Tags, p.Targets, e.catalog)
}

func (e *Engine) legalTargets(s *State, u *CombatUnit, p catalog.AbilityProfile) []int {
	opp := u.Side.Opponent()
	blockers := s.Blockers(opp)
	field := s.field()
	enemyAttacker := u.Side == grid.SideEnemy

	unblocked := func(slot int) bool {
		res, err := targeting.CheckLineOfFire(slot, p.LineOfFire, blockers)
		return err == nil && !res.Blocked
	}
	inRange := func(slot int) bool {
		d := field.RowDistance(u.Slot, slot, enemyAttacker)
		return d >= 0 && p.InRange(d)
	}
	touches := func(hits []grid.Hit) bool {
		for _, h := range hits {
			if t, ok := s.UnitAt(opp, h.Slot); ok && e.eligible(p, t) {
				return true
			}
		}
		return false
	}

	var out []int
	switch p.Kind() {
	case catalog.KindSingle:
		for _, t := range s.alive(opp) {
			if e.eligible(p, t) && inRange(t.Slot) && unblocked(t.Slot) {
				out = append(out, t.Slot)
			}
		}
		sort.Ints(out)
	case catalog.KindFixed:
		hits, err := Impacts(u.Side, u.Slot, p, u.Slot)
		if err != nil || len(hits) == 0 {
			return nil
		}
		if unblocked(aimPoint(u.Side, u.Slot, p, hits)) && touches(hits) {
			out = []int{u.Slot}
		}
	case catalog.KindRandom:
		if p.Pattern.Type == grid.PatternFixed {
			hits, err := Impacts(u.Side, u.Slot, p, u.Slot)
			if err != nil || len(hits) == 0 {
				return nil
			}
			if unblocked(aimPoint(u.Side, u.Slot, p, hits)) && touches(hits) {
				out = []int{u.Slot}
			}
			return out
		}
		fallthrough
	case catalog.KindArea:
		for _, slot := range grid.Slots() {
			if !inRange(slot) || !unblocked(slot) {
				continue
			}
			hits, err := Impacts(u.Side, u.Slot, p, slot)
			if err != nil {
				continue
			}
			if touches(hits) {
				out = append(out, slot)
			}
		}
	}
	return out
}

// aimPoint is where a fixed pattern is checked for blocking: the first
// pattern cell that lands on the opposing grid.
func aimPoint(side grid.Side, attacker int, p catalog.AbilityProfile, hits []grid.Hit) int {
	fixed, err := grid.ResolveFixed(attacker, *p.Pattern, side)
	if err == nil {
		for _, h := range fixed {
			if h.Opposing {
				return h.Slot
			}
		}
	}
	return hits[0].Slot
}
