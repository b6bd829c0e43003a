// Package damage splits raw damage into armor and hit-point damage after
// resistances, environment and status modifiers.
package damage

import "math"

// Input is everything the resolver needs about one hit.
type Input struct {
	Raw        int
	DamageType string
	// Armor is the target's remaining armor pool.
	Armor int
	// ArmorPiercing is the fraction of damage that skips armor. Values above 1
	// are read as percentages.
	ArmorPiercing float64
	ArmorResist   map[string]float64
	HPResist      map[string]float64
	Environment   map[string]float64
	// StatusDamage and StatusArmor hold the strongest active status modifier
	// per damage type.
	StatusDamage map[string]float64
	StatusArmor  map[string]float64
	// BypassArmor sends everything straight to hit points.
	BypassArmor bool
}

// Result is the outcome of one resolved hit.
type Result struct {
	RawDamage           int     `json:"raw_damage"`
	ArmorDamage         int     `json:"armor_damage"`
	HPDamage            int     `json:"hp_damage"`
	ArmorRemaining      int     `json:"armor_remaining"`
	EffectiveMultiplier float64 `json:"effective_multiplier"`
}

// Total is armor plus hit-point damage.
func (r Result) Total() int {
	return r.ArmorDamage + r.HPDamage
}

// Normalize reads a resistance entry. Values above 10 are percentages.
func Normalize(v float64) float64 {
	if v > 10 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	return v
}

// Multiplier looks up damageType in table. A missing entry is neutral.
func Multiplier(table map[string]float64, damageType string) float64 {
	if table == nil {
		return 1
	}
	v, ok := table[damageType]
	if !ok {
		return 1
	}
	return Normalize(v)
}

func piercingFraction(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	return math.Max(0, math.Min(1, v))
}

// Resolve applies the armor model to one hit.
//
// Raw damage is first scaled by status modifiers. Without armor, or when the
// target's armor is bypassed, everything is scaled by the hit-point multiplier.
// Otherwise the piercing share goes to hit points and the rest fills the
// armor's effective capacity; any overflow joins the piercing share.
func Resolve(in Input) Result {
	res := Result{RawDamage: in.Raw, ArmorRemaining: in.Armor}
	if in.Raw <= 0 {
		return res
	}
	armor := in.Armor
	if armor < 0 {
		armor = 0
	}
	adjusted := float64(in.Raw) * Multiplier(in.StatusDamage, in.DamageType)
	hpMult := Multiplier(in.HPResist, in.DamageType) * Multiplier(in.Environment, in.DamageType)

	if in.BypassArmor || armor == 0 {
		res.HPDamage = floorNonNeg(adjusted * hpMult)
		res.ArmorRemaining = armor
		res.EffectiveMultiplier = float64(res.Total()) / float64(in.Raw)
		return res
	}

	pierce := adjusted * piercingFraction(in.ArmorPiercing)
	armorable := adjusted - pierce
	armorMult := Multiplier(in.ArmorResist, in.DamageType) *
		Multiplier(in.StatusArmor, in.DamageType) *
		Multiplier(in.Environment, in.DamageType)

	var absorbed, overflow float64
	if armorMult <= 0 {
		absorbed = armorable
	} else {
		capacity := math.Floor(float64(armor) / armorMult)
		absorbed = math.Min(armorable, capacity)
		overflow = armorable - absorbed
	}

	armorDamage := floorNonNeg(absorbed * armorMult)
	if overflow > 0 || armorDamage > armor {
		armorDamage = armor
	}
	res.ArmorDamage = armorDamage
	res.ArmorRemaining = armor - armorDamage
	res.HPDamage = floorNonNeg((pierce + overflow) * hpMult)
	res.EffectiveMultiplier = float64(res.Total()) / float64(in.Raw)
	return res
}

func floorNonNeg(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Floor(v + 1e-9))
}
