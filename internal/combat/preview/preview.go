// Package preview estimates the outcome of an ability use without rolling
// dice or touching battle state.
package preview

import (
	"fmt"
	"sort"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/battle"
	"github.com/feiai2017/gridcombat/internal/combat/damage"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/status"
	"github.com/feiai2017/gridcombat/internal/combat/targeting"
)

// Request is an ability use to estimate.
type Request struct {
	Catalog     catalog.Catalog
	Profile     catalog.AbilityProfile
	Attacker    *battle.CombatUnit
	Environment map[string]float64
}

// Estimate is the projected effect on one defender.
type Estimate struct {
	TargetID      string  `json:"target_id"`
	Slot          int     `json:"slot"`
	DamagePercent float64 `json:"damage_percent"`
	HitCount      int     `json:"hit_count"`
	Shots         int     `json:"shots"`
	DodgeChance   float64 `json:"dodge_chance"`
	CritChance    float64 `json:"crit_chance"`
	// Min assumes every shot lands at the lowest roll without a crit; Max
	// assumes the highest roll and, when crits are possible, a crit on every
	// shot.
	Min           damage.Attack      `json:"min"`
	Max           damage.Attack      `json:"max"`
	StatusChances map[string]float64 `json:"status_chances,omitempty"`
	Blocked       bool               `json:"blocked,omitempty"`
	Cover         string             `json:"cover,omitempty"`
}

// Single estimates a single-target use against every eligible candidate, in
// slot order. Blocked candidates are included and flagged.
func Single(req Request, candidates []*battle.CombatUnit) []Estimate {
	blockers := blockersOf(candidates)
	var out []Estimate
	for _, t := range sorted(candidates) {
		if !eligible(req, t) {
			continue
		}
		est := estimate(req, t, 100, req.Profile.Shots())
		if res, err := targeting.CheckLineOfFire(t.Slot, req.Profile.LineOfFire, blockers); err == nil {
			est.Blocked = res.Blocked
			if res.Cover != nil {
				est.Cover = res.Cover.ID
			}
		}
		out = append(out, est)
	}
	return out
}

// Area estimates a movable pattern centered on center. Random patterns get
// the per-cell estimate of a single shot landing there.
func Area(req Request, center int, candidates []*battle.CombatUnit) ([]Estimate, error) {
	if req.Profile.Pattern == nil {
		return nil, fmt.Errorf("ability %q has no pattern", req.Profile.AbilityID)
	}
	hits, err := battle.Impacts(req.Attacker.Side, req.Attacker.Slot, req.Profile, center)
	if err != nil {
		return nil, err
	}
	return fromHits(req, hits, candidates), nil
}

// Fixed estimates a fixed pattern anchored at the attacker.
func Fixed(req Request, candidates []*battle.CombatUnit) ([]Estimate, error) {
	if req.Profile.Pattern == nil || req.Profile.Pattern.Type != grid.PatternFixed {
		return nil, fmt.Errorf("ability %q has no fixed pattern", req.Profile.AbilityID)
	}
	hits, err := battle.Impacts(req.Attacker.Side, req.Attacker.Slot, req.Profile, req.Attacker.Slot)
	if err != nil {
		return nil, err
	}
	return fromHits(req, hits, candidates), nil
}

// Ability dispatches on the profile kind. target is ignored for fixed
// patterns.
func Ability(req Request, target int, candidates []*battle.CombatUnit) ([]Estimate, error) {
	switch req.Profile.Kind() {
	case catalog.KindSingle:
		var out []Estimate
		for _, e := range Single(req, candidates) {
			if e.Slot == target {
				out = append(out, e)
			}
		}
		return out, nil
	case catalog.KindFixed:
		return Fixed(req, candidates)
	case catalog.KindRandom:
		if req.Profile.Pattern.Type == grid.PatternFixed {
			return Fixed(req, candidates)
		}
		return Area(req, target, candidates)
	default:
		return Area(req, target, candidates)
	}
}

func fromHits(req Request, hits []grid.Hit, candidates []*battle.CombatUnit) []Estimate {
	bySlot := make(map[int]*battle.CombatUnit, len(candidates))
	for _, c := range candidates {
		if c.Alive() {
			bySlot[c.Slot] = c
		}
	}
	shots := req.Profile.Shots()
	if req.Profile.Kind() == catalog.KindRandom {
		shots = 1
	}
	var out []Estimate
	for _, h := range hits {
		t, ok := bySlot[h.Slot]
		if !ok || !eligible(req, t) {
			continue
		}
		est := estimate(req, t, h.DamagePercent, shots)
		est.HitCount = h.Count
		out = append(out, est)
	}
	return out
}

func estimate(req Request, t *battle.CombatUnit, percent float64, shots int) Estimate {
	p := req.Profile
	if shots <= 0 {
		shots = p.Shots()
	}
	volley := battle.Volley(req.Catalog, p, req.Attacker, t, percent, shots, req.Environment)

	minRaw := damage.RawShot(p.DamageMin, volley.Power, percent, 1)
	maxMult := 1.0
	if volley.CritChance > 0 {
		maxMult = volley.CritMultiplier
	}
	maxRaw := damage.RawShot(p.DamageMax, volley.Power, percent, maxMult)

	est := Estimate{
		TargetID:      t.ID,
		Slot:          t.Slot,
		DamagePercent: percent,
		HitCount:      1,
		Shots:         shots,
		DodgeChance:   volley.DodgeChance,
		CritChance:    volley.CritChance,
		Min:           damage.Sequence(volley.Hit, repeat(minRaw, shots)),
		Max:           damage.Sequence(volley.Hit, repeat(maxRaw, shots)),
	}
	if len(p.StatusEffects) > 0 {
		est.StatusChances = make(map[string]float64, len(p.StatusEffects))
		for id, chance := range p.StatusEffects {
			if t.Stats.Immune(id) {
				est.StatusChances[id] = 0
				continue
			}
			est.StatusChances[id] = status.ApplyChance(chance, percent)
		}
	}
	return est
}

func eligible(req Request, t *battle.CombatUnit) bool {
	return t.Alive() && targeting.CanTarget(t.Tags, req.Profile.Targets, req.Catalog)
}

func blockersOf(units []*battle.CombatUnit) targeting.Blockers {
	occ := make([]targeting.Occupant, 0, len(units))
	for _, u := range units {
		if u.Alive() {
			occ = append(occ, targeting.Occupant{ID: u.ID, Slot: u.Slot, Strength: u.Blocking})
		}
	}
	return targeting.ComputeBlockers(occ)
}

func sorted(units []*battle.CombatUnit) []*battle.CombatUnit {
	out := append([]*battle.CombatUnit(nil), units...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
