package catalog

import (
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/targeting"
)

// Kind is the targeting shape of an ability.
type Kind int

const (
	KindSingle Kind = iota
	KindArea
	KindFixed
	KindRandom
)

func (k Kind) String() string {
	switch k {
	case KindArea:
		return "area"
	case KindFixed:
		return "fixed"
	case KindRandom:
		return "random"
	default:
		return "single"
	}
}

// AbilityProfile is an ability resolved for one unit, rank and weapon, with
// catalog defaults filled in.
type AbilityProfile struct {
	AbilityID string `json:"ability_id"`
	WeaponID  string `json:"weapon_id"`
	Name      string `json:"name"`
	Rank      int    `json:"rank"`

	DamageMin  int    `json:"damage_min"`
	DamageMax  int    `json:"damage_max"`
	DamageType string `json:"damage_type"`

	ShotsPerAttack int `json:"shots_per_attack"`
	AttacksPerUse  int `json:"attacks_per_use"`

	Targets    []string             `json:"targets,omitempty"`
	LineOfFire targeting.LineOfFire `json:"line_of_fire"`
	MinRange   int                  `json:"min_range"`
	MaxRange   int                  `json:"max_range"`

	Cooldown       int `json:"cooldown"`
	GlobalCooldown int `json:"global_cooldown"`
	AmmoCost       int `json:"ammo_cost"`
	MaxAmmo        int `json:"max_ammo"`
	ReloadTurns    int `json:"reload_turns"`

	ArmorPiercing  float64            `json:"armor_piercing"`
	Offense        int                `json:"offense"`
	CritChance     float64            `json:"crit_chance"`
	CritBonus      map[string]float64 `json:"crit_bonus,omitempty"`
	CritMultiplier float64            `json:"crit_multiplier"`

	StatusEffects map[string]float64 `json:"status_effects,omitempty"`
	DotMultiplier float64            `json:"dot_multiplier"`

	Pattern *grid.Pattern `json:"pattern,omitempty"`
	Splash  *grid.Pattern `json:"splash,omitempty"`
}

// Shots is the number of shots fired per use.
func (p AbilityProfile) Shots() int {
	return p.ShotsPerAttack * p.AttacksPerUse
}

// Kind classifies the profile by its pattern.
func (p AbilityProfile) Kind() Kind {
	switch {
	case p.Pattern == nil || len(p.Pattern.Offsets) == 0:
		return KindSingle
	case p.Pattern.Random:
		return KindRandom
	case p.Pattern.Type == grid.PatternFixed:
		return KindFixed
	default:
		return KindArea
	}
}

// InRange reports whether distance lies within the profile's range band. A
// zero maximum is unbounded.
func (p AbilityProfile) InRange(distance int) bool {
	if distance < p.MinRange {
		return false
	}
	return p.MaxRange <= 0 || distance <= p.MaxRange
}

// StatsAt returns the stat block for rank, clamped to the defined ranks.
func StatsAt(u UnitDefinition, rank int) (StatBlock, bool) {
	if len(u.Ranks) == 0 {
		return StatBlock{}, false
	}
	return u.Ranks[clampRank(rank, len(u.Ranks))], true
}

func clampRank(rank, n int) int {
	if rank < 0 {
		return 0
	}
	if rank >= n {
		return n - 1
	}
	return rank
}

// Profile resolves abilityID on weaponID of unitID at rank. Unresolved ids
// yield false rather than an error.
func Profile(cat Catalog, unitID string, rank int, weaponID, abilityID string) (AbilityProfile, bool) {
	u, ok := cat.Unit(unitID)
	if !ok {
		return AbilityProfile{}, false
	}
	for _, w := range u.Weapons {
		if w.ID != weaponID {
			continue
		}
		for _, id := range w.Abilities {
			if id == abilityID {
				return buildProfile(cat, w, abilityID, rank)
			}
		}
	}
	return AbilityProfile{}, false
}

// Profiles resolves every ability of every weapon of unitID, in declaration
// order. Unresolved abilities are skipped.
func Profiles(cat Catalog, unitID string, rank int) []AbilityProfile {
	u, ok := cat.Unit(unitID)
	if !ok {
		return nil
	}
	var out []AbilityProfile
	for _, w := range u.Weapons {
		for _, id := range w.Abilities {
			if p, ok := buildProfile(cat, w, id, rank); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

func buildProfile(cat Catalog, w WeaponDefinition, abilityID string, rank int) (AbilityProfile, bool) {
	a, ok := cat.Ability(abilityID)
	if !ok {
		return AbilityProfile{}, false
	}
	dmg := a.Damage
	if len(a.RankDamage) > 0 {
		dmg = a.RankDamage[clampRank(rank, len(a.RankDamage))]
	}
	p := AbilityProfile{
		AbilityID:      a.ID,
		WeaponID:       w.ID,
		Name:           a.Name,
		Rank:           rank,
		DamageMin:      dmg.Min,
		DamageMax:      dmg.Max,
		DamageType:     a.DamageType,
		ShotsPerAttack: atLeastOne(a.ShotsPerAttack),
		AttacksPerUse:  atLeastOne(a.AttacksPerUse),
		Targets:        a.Targets,
		LineOfFire:     a.LineOfFire,
		MinRange:       a.MinRange,
		MaxRange:       a.MaxRange,
		Cooldown:       a.Cooldown,
		GlobalCooldown: w.GlobalCooldown,
		AmmoCost:       a.AmmoCost,
		MaxAmmo:        w.Ammo,
		ReloadTurns:    w.ReloadTurns,
		ArmorPiercing:  a.ArmorPiercing,
		Offense:        a.Offense,
		CritChance:     a.Crit,
		CritBonus:      a.CritBonus,
		CritMultiplier: a.CritMultiplier,
		StatusEffects:  a.StatusEffects,
		DotMultiplier:  a.DotMultiplier,
		Pattern:        a.Pattern,
		Splash:         a.Splash,
	}
	if p.DamageMax < p.DamageMin {
		p.DamageMin, p.DamageMax = p.DamageMax, p.DamageMin
	}
	if p.AmmoCost <= 0 && p.MaxAmmo > 0 {
		p.AmmoCost = 1
	}
	if p.CritMultiplier <= 0 {
		p.CritMultiplier = 1.5
	}
	if p.DotMultiplier <= 0 {
		p.DotMultiplier = 1
	}
	return p, true
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
