// Package status applies, ticks and expires timed status effects on a unit.
package status

import (
	"math"
	"math/rand"
	"sort"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/damage"
)

// Definitions looks up status-effect definitions.
type Definitions interface {
	StatusEffect(id string) (catalog.StatusEffectDefinition, bool)
}

// Active is one status effect instance on a unit. At most one instance of a
// given effect id exists per unit; reapplication refreshes it.
type Active struct {
	EffectID   string `json:"effect_id"`
	Remaining  int    `json:"remaining"`
	Duration   int    `json:"duration"`
	Tick       int    `json:"tick"`
	BaseDot    int    `json:"base_dot"`
	DamageType string `json:"damage_type,omitempty"`
	Decays     bool   `json:"decays,omitempty"`
	Stun       bool   `json:"stun,omitempty"`
}

// Modifiers aggregates the active effects of a unit.
type Modifiers struct {
	Damage  map[string]float64
	Armor   map[string]float64
	Stunned bool
}

// Collect folds effects into per-type modifiers. The strongest multiplier
// per damage type wins.
func Collect(effects []Active, defs Definitions) Modifiers {
	var m Modifiers
	for _, a := range effects {
		if a.Stun {
			m.Stunned = true
		}
		def, ok := defs.StatusEffect(a.EffectID)
		if !ok {
			continue
		}
		m.Damage = strongest(m.Damage, def.DamageMultipliers)
		m.Armor = strongest(m.Armor, def.ArmorMultipliers)
	}
	return m
}

func strongest(dst, src map[string]float64) map[string]float64 {
	for k, v := range src {
		v = damage.Normalize(v)
		if dst == nil {
			dst = map[string]float64{}
		}
		if cur, ok := dst[k]; !ok || v > cur {
			dst[k] = v
		}
	}
	return dst
}

// Stunned reports whether any active effect stuns.
func Stunned(effects []Active) bool {
	for _, a := range effects {
		if a.Stun {
			return true
		}
	}
	return false
}

// ApplyChance scales a percent chance down when the hit landed at less than
// full damage percent.
func ApplyChance(chance, damagePercent float64) float64 {
	if damagePercent < 100 {
		chance *= math.Max(0, damagePercent) / 100
	}
	return math.Max(0, math.Min(100, chance))
}

// ApplyRequest describes a landed hit that may carry status effects.
type ApplyRequest struct {
	// Chances maps an effect id to its percent application chance.
	Chances       map[string]float64
	DamagePercent float64
	DamageDealt   int
	DotMultiplier float64
	Environment   map[string]float64
	Immune        func(effectID string) bool
}

// Application records the outcome of one effect roll.
type Application struct {
	EffectID  string  `json:"effect_id"`
	Chance    float64 `json:"chance"`
	Applied   bool    `json:"applied"`
	Refreshed bool    `json:"refreshed,omitempty"`
	Immune    bool    `json:"immune,omitempty"`
	BaseDot   int     `json:"base_dot,omitempty"`
}

// Apply rolls every effect of req in effect-id order and returns the updated
// effect list. Effects unknown to defs are skipped.
func Apply(rng *rand.Rand, effects []Active, req ApplyRequest, defs Definitions) ([]Active, []Application) {
	ids := make([]string, 0, len(req.Chances))
	for id := range req.Chances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := append([]Active(nil), effects...)
	var apps []Application
	for _, id := range ids {
		def, ok := defs.StatusEffect(id)
		if !ok {
			continue
		}
		if req.Immune != nil && req.Immune(id) {
			apps = append(apps, Application{EffectID: id, Immune: true})
			continue
		}
		chance := ApplyChance(req.Chances[id], req.DamagePercent)
		app := Application{EffectID: id, Chance: chance}
		if rng.Float64()*100 >= chance {
			apps = append(apps, app)
			continue
		}
		app.Applied = true
		app.BaseDot = BaseDot(def, req.DamageDealt, req.Environment, req.DotMultiplier)

		refreshed := false
		for i := range out {
			if out[i].EffectID != id {
				continue
			}
			out[i].Remaining = def.Duration
			out[i].Duration = def.Duration
			out[i].Tick = 0
			out[i].BaseDot = app.BaseDot
			refreshed = true
			break
		}
		if !refreshed && def.Duration > 0 {
			out = append(out, Active{
				EffectID:   id,
				Remaining:  def.Duration,
				Duration:   def.Duration,
				BaseDot:    app.BaseDot,
				DamageType: def.DamageType,
				Decays:     def.Decays,
				Stun:       def.Stun,
			})
		}
		app.Refreshed = refreshed
		apps = append(apps, app)
	}
	return out, apps
}

// BaseDot is the per-tick damage baked in at application: damage dealt plus
// the effect's flat bonus, scaled by the environment for the effect's own
// damage type and then by the ability multiplier.
func BaseDot(def catalog.StatusEffectDefinition, dealt int, env map[string]float64, abilityMult float64) int {
	if !def.Dot {
		return 0
	}
	if abilityMult <= 0 {
		abilityMult = 1
	}
	v := float64(dealt+def.DotBonus) * damage.Multiplier(env, def.DamageType) * abilityMult
	if v <= 0 {
		return 0
	}
	return int(math.Floor(v))
}

// DecayFactor scales tick damage. Decaying effects lose 1/duration of their
// base per tick; tick counts from 1.
func DecayFactor(duration, tick int, decays bool) float64 {
	if !decays || duration <= 0 {
		return 1
	}
	f := float64(duration-tick+1) / float64(duration)
	return math.Max(0, f)
}

// Target is the unit state a tick resolves against.
type Target struct {
	Armor       int
	ArmorResist map[string]float64
	HPResist    map[string]float64
	// ActiveArmor marks armor that is bypassed while stunned.
	ActiveArmor bool
}

// TickResult is one effect's tick.
type TickResult struct {
	EffectID string        `json:"effect_id"`
	Tick     int           `json:"tick"`
	Damage   int           `json:"damage"`
	Result   damage.Result `json:"result"`
	Expired  bool          `json:"expired"`
}

// Tick advances every effect by one turn. Damage-over-time runs through the
// armor model against a running armor total; the environment is not applied
// again. Expired effects are removed.
func Tick(effects []Active, target Target, defs Definitions) ([]Active, []TickResult) {
	mods := Collect(effects, defs)
	bypass := target.ActiveArmor && mods.Stunned
	armor := target.Armor

	out := make([]Active, 0, len(effects))
	results := make([]TickResult, 0, len(effects))
	for _, a := range effects {
		a.Tick++
		r := TickResult{EffectID: a.EffectID, Tick: a.Tick}
		if a.BaseDot > 0 {
			r.Damage = int(math.Floor(float64(a.BaseDot) * DecayFactor(a.Duration, a.Tick, a.Decays)))
			r.Result = damage.Resolve(damage.Input{
				Raw:          r.Damage,
				DamageType:   a.DamageType,
				Armor:        armor,
				ArmorResist:  target.ArmorResist,
				HPResist:     target.HPResist,
				StatusDamage: mods.Damage,
				StatusArmor:  mods.Armor,
				BypassArmor:  bypass,
			})
			armor = r.Result.ArmorRemaining
		}
		a.Remaining--
		if a.Remaining <= 0 {
			r.Expired = true
		} else {
			out = append(out, a)
		}
		results = append(results, r)
	}
	return out, results
}
