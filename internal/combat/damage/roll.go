package damage

import (
	"math"
	"math/rand"
)

const (
	// DefaultCritMultiplier scales critical shots when an ability does not set one.
	DefaultCritMultiplier = 1.5
	// MaxDodgeChance caps every dodge chance.
	MaxDodgeChance = 95.0
	baseDodge      = 5.0
	stunnedDodge   = 20.0
)

// DodgeChance is the percent chance a shot misses the defender. Stunned
// defenders lose part of their evasion.
func DodgeChance(accuracy, offense, defense, dodge int, stunned bool) float64 {
	chance := float64(defense+dodge-(accuracy+offense)) + baseDodge
	if stunned {
		chance -= stunnedDodge
	}
	return clampPercent(chance, MaxDodgeChance)
}

// CritChance is the percent chance a shot is critical: the ability and
// attacker chances plus every bonus keyed by a tag the defender carries.
func CritChance(ability, attacker float64, bonus map[string]float64, defenderTags map[string]bool) float64 {
	chance := ability + attacker
	for tag, extra := range bonus {
		if defenderTags[tag] {
			chance += extra
		}
	}
	return clampPercent(chance, 100)
}

func clampPercent(v, max float64) float64 {
	return math.Max(0, math.Min(max, v))
}

// RawShot is the pre-mitigation damage of one shot: a uniform roll in
// [min,max], scaled by attacker power, slot percentage and crit multiplier.
func RawShot(roll, power int, percent, critMultiplier float64) int {
	v := float64(roll) * (1 + float64(power)/100) * percent / 100 * critMultiplier
	return floorNonNeg(v)
}

// Roll draws a uniform damage roll in [min,max].
func Roll(rng *rand.Rand, min, max int) int {
	if max < min {
		min, max = max, min
	}
	if max == min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

// AttackRequest describes a volley of shots against one defender.
type AttackRequest struct {
	Min, Max       int
	Power          int
	Percent        float64
	Shots          int
	DodgeChance    float64
	CritChance     float64
	CritMultiplier float64
	// Hit carries the defender's armor and modifiers; Raw is filled per shot.
	Hit Input
}

// Shot is one resolved shot of a volley.
type Shot struct {
	Dodged bool   `json:"dodged"`
	Crit   bool   `json:"crit"`
	Roll   int    `json:"roll"`
	Result Result `json:"result"`
}

// Attack is the outcome of a volley. Armor depletes between shots.
type Attack struct {
	Shots          []Shot `json:"shots"`
	ArmorDamage    int    `json:"armor_damage"`
	HPDamage       int    `json:"hp_damage"`
	ArmorRemaining int    `json:"armor_remaining"`
	Landed         int    `json:"landed"`
}

// Total is armor plus hit-point damage over the volley.
func (a Attack) Total() int {
	return a.ArmorDamage + a.HPDamage
}

// ResolveAttack rolls dodge, damage and crit for every shot in that order and
// resolves each shot against the armor left by the previous one.
func ResolveAttack(rng *rand.Rand, req AttackRequest) Attack {
	shots := req.Shots
	if shots <= 0 {
		shots = 1
	}
	critMult := req.CritMultiplier
	if critMult <= 0 {
		critMult = DefaultCritMultiplier
	}
	out := Attack{Shots: make([]Shot, 0, shots), ArmorRemaining: req.Hit.Armor}
	for i := 0; i < shots; i++ {
		if rng.Float64()*100 < req.DodgeChance {
			out.Shots = append(out.Shots, Shot{Dodged: true})
			continue
		}
		roll := Roll(rng, req.Min, req.Max)
		crit := rng.Float64()*100 < req.CritChance
		mult := 1.0
		if crit {
			mult = critMult
		}
		hit := req.Hit
		hit.Armor = out.ArmorRemaining
		hit.Raw = RawShot(roll, req.Power, req.Percent, mult)
		res := Resolve(hit)
		out.Shots = append(out.Shots, Shot{Crit: crit, Roll: roll, Result: res})
		out.ArmorDamage += res.ArmorDamage
		out.HPDamage += res.HPDamage
		out.ArmorRemaining = res.ArmorRemaining
		out.Landed++
	}
	return out
}

// Sequence resolves fixed raw values in order against a depleting armor
// pool. It is the deterministic counterpart of ResolveAttack.
func Sequence(hit Input, raws []int) Attack {
	out := Attack{Shots: make([]Shot, 0, len(raws)), ArmorRemaining: hit.Armor}
	for _, raw := range raws {
		h := hit
		h.Armor = out.ArmorRemaining
		h.Raw = raw
		res := Resolve(h)
		out.Shots = append(out.Shots, Shot{Result: res})
		out.ArmorDamage += res.ArmorDamage
		out.HPDamage += res.HPDamage
		out.ArmorRemaining = res.ArmorRemaining
		out.Landed++
	}
	return out
}
