package catalog

import (
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/targeting"
)

// ArmorActive marks units whose armor is switched off while they are stunned.
const ArmorActive = "active"

// Document is the on-disk shape of a catalog file. A catalog directory may
// split these sections across several files.
type Document struct {
	Units         []UnitDefinition         `yaml:"units"`
	Abilities     []AbilityDefinition      `yaml:"abilities"`
	StatusEffects []StatusEffectDefinition `yaml:"status_effects"`
	// Tags maps a tag to the parent tags it implies.
	Tags map[string][]string `yaml:"tags"`
}

type UnitDefinition struct {
	ID        string             `yaml:"id" json:"id"`
	Name      string             `yaml:"name" json:"name"`
	Side      grid.Side          `yaml:"side" json:"side"`
	Tags      []string           `yaml:"tags" json:"tags"`
	Blocking  targeting.Strength `yaml:"blocking" json:"blocking"`
	ArmorType string             `yaml:"armor_type" json:"armor_type,omitempty"`
	// Obstacle units never count toward victory and never act.
	Obstacle bool               `yaml:"obstacle" json:"obstacle,omitempty"`
	Ranks    []StatBlock        `yaml:"ranks" json:"ranks"`
	Weapons  []WeaponDefinition `yaml:"weapons" json:"weapons"`
}

type StatBlock struct {
	HP          int                `yaml:"hp" json:"hp"`
	ArmorHP     int                `yaml:"armor_hp" json:"armor_hp"`
	Defense     int                `yaml:"defense" json:"defense"`
	Accuracy    int                `yaml:"accuracy" json:"accuracy"`
	Power       int                `yaml:"power" json:"power"`
	Dodge       int                `yaml:"dodge" json:"dodge"`
	Crit        float64            `yaml:"crit" json:"crit"`
	ArmorResist map[string]float64 `yaml:"armor_resist" json:"armor_resist,omitempty"`
	HPResist    map[string]float64 `yaml:"hp_resist" json:"hp_resist,omitempty"`
	Immunities  []string           `yaml:"immunities" json:"immunities,omitempty"`
}

// Immune reports whether the block lists effectID as an immunity.
func (s StatBlock) Immune(effectID string) bool {
	for _, id := range s.Immunities {
		if id == effectID {
			return true
		}
	}
	return false
}

type WeaponDefinition struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	// Ammo of zero means unlimited.
	Ammo           int      `yaml:"ammo" json:"ammo"`
	ReloadTurns    int      `yaml:"reload" json:"reload"`
	GlobalCooldown int      `yaml:"global_cooldown" json:"global_cooldown"`
	Abilities      []string `yaml:"abilities" json:"abilities"`
}

type DamageRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

type AbilityDefinition struct {
	ID         string        `yaml:"id" json:"id"`
	Name       string        `yaml:"name" json:"name"`
	Damage     DamageRange   `yaml:"damage" json:"damage"`
	RankDamage []DamageRange `yaml:"rank_damage" json:"rank_damage,omitempty"`
	DamageType string        `yaml:"damage_type" json:"damage_type"`

	ShotsPerAttack int `yaml:"shots" json:"shots"`
	AttacksPerUse  int `yaml:"attacks" json:"attacks"`

	Targets    []string             `yaml:"targets" json:"targets"`
	LineOfFire targeting.LineOfFire `yaml:"line_of_fire" json:"line_of_fire"`
	MinRange   int                  `yaml:"min_range" json:"min_range"`
	MaxRange   int                  `yaml:"max_range" json:"max_range"`

	Cooldown       int                `yaml:"cooldown" json:"cooldown"`
	AmmoCost       int                `yaml:"ammo_cost" json:"ammo_cost"`
	ArmorPiercing  float64            `yaml:"armor_piercing" json:"armor_piercing"`
	Offense        int                `yaml:"offense" json:"offense"`
	Crit           float64            `yaml:"crit" json:"crit"`
	CritBonus      map[string]float64 `yaml:"crit_bonus" json:"crit_bonus,omitempty"`
	CritMultiplier float64            `yaml:"crit_multiplier" json:"crit_multiplier,omitempty"`

	// StatusEffects maps an effect id to its percent application chance.
	StatusEffects map[string]float64 `yaml:"status_effects" json:"status_effects,omitempty"`
	DotMultiplier float64            `yaml:"dot_multiplier" json:"dot_multiplier,omitempty"`

	Pattern *grid.Pattern `yaml:"pattern" json:"pattern,omitempty"`
	Splash  *grid.Pattern `yaml:"splash" json:"splash,omitempty"`
}

type StatusEffectDefinition struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Duration   int    `yaml:"duration" json:"duration"`
	DamageType string `yaml:"damage_type" json:"damage_type"`
	// Dot marks effects that deal damage every turn.
	Dot      bool `yaml:"dot" json:"dot"`
	DotBonus int  `yaml:"dot_bonus" json:"dot_bonus"`
	Decays   bool `yaml:"decays" json:"decays"`
	Stun     bool `yaml:"stun" json:"stun"`
	// DamageMultipliers and ArmorMultipliers modify incoming damage per type
	// while the effect is active.
	DamageMultipliers map[string]float64 `yaml:"damage_mult" json:"damage_mult,omitempty"`
	ArmorMultipliers  map[string]float64 `yaml:"armor_mult" json:"armor_mult,omitempty"`
}
