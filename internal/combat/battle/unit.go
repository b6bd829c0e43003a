package battle

import (
	"fmt"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/status"
	"github.com/feiai2017/gridcombat/internal/combat/targeting"
)

// CombatUnit is the mutable battle instance of a catalog unit.
type CombatUnit struct {
	ID           string             `json:"id"`
	DefinitionID string             `json:"definition_id"`
	Name         string             `json:"name"`
	Side         grid.Side          `json:"side"`
	Slot         int                `json:"slot"`
	Rank         int                `json:"rank"`
	Tags         []string           `json:"tags,omitempty"`
	Blocking     targeting.Strength `json:"blocking"`
	ActiveArmor  bool               `json:"active_armor,omitempty"`
	Obstacle     bool               `json:"obstacle,omitempty"`
	Stats        catalog.StatBlock  `json:"stats"`

	HP       int  `json:"hp"`
	MaxHP    int  `json:"max_hp"`
	Armor    int  `json:"armor"`
	MaxArmor int  `json:"max_armor"`
	Dead     bool `json:"dead"`

	Weapons []catalog.WeaponDefinition `json:"-"`
	// Cooldowns are keyed by ability id, WeaponCooldowns by weapon id.
	Cooldowns       map[string]int  `json:"cooldowns,omitempty"`
	WeaponCooldowns map[string]int  `json:"weapon_cooldowns,omitempty"`
	Ammo            map[string]int  `json:"ammo,omitempty"`
	Reload          map[string]int  `json:"reload,omitempty"`
	Effects         []status.Active `json:"effects,omitempty"`
}

// Alive reports whether the unit can still act and be targeted.
func (u *CombatUnit) Alive() bool {
	return u != nil && !u.Dead
}

// Important units decide victory; obstacles never do.
func (u *CombatUnit) Important() bool {
	return !u.Obstacle
}

func newUnit(cat catalog.Catalog, side grid.Side, p Placement, wave int) (*CombatUnit, error) {
	if !grid.ValidSlot(p.Slot) {
		return nil, fmt.Errorf("unit %q slot %d: %w", p.Unit, p.Slot, grid.ErrInvalidSlot)
	}
	def, ok := cat.Unit(p.Unit)
	if !ok {
		return nil, fmt.Errorf("%q: %w", p.Unit, catalog.ErrUnknownUnit)
	}
	stats, _ := catalog.StatsAt(def, p.Rank)
	u := &CombatUnit{
		ID:              unitID(side, wave, p.Slot),
		DefinitionID:    def.ID,
		Name:            def.Name,
		Side:            side,
		Slot:            p.Slot,
		Rank:            p.Rank,
		Tags:            def.Tags,
		Blocking:        def.Blocking,
		ActiveArmor:     def.ArmorType == catalog.ArmorActive,
		Obstacle:        def.Obstacle,
		Stats:           stats,
		HP:              stats.HP,
		MaxHP:           stats.HP,
		Armor:           stats.ArmorHP,
		MaxArmor:        stats.ArmorHP,
		Weapons:         def.Weapons,
		Cooldowns:       map[string]int{},
		WeaponCooldowns: map[string]int{},
		Ammo:            map[string]int{},
		Reload:          map[string]int{},
	}
	if u.Name == "" {
		u.Name = def.ID
	}
	for _, w := range def.Weapons {
		if w.Ammo > 0 {
			u.Ammo[w.ID] = w.Ammo
		}
	}
	return u, nil
}

func unitID(side grid.Side, wave, slot int) string {
	if side == grid.SidePlayer {
		return fmt.Sprintf("player-%d", slot)
	}
	return fmt.Sprintf("enemy-w%d-%d", wave, slot)
}

func (u *CombatUnit) weapon(id string) (catalog.WeaponDefinition, bool) {
	for _, w := range u.Weapons {
		if w.ID == id {
			return w, true
		}
	}
	return catalog.WeaponDefinition{}, false
}

// ready reports whether the ability's own cooldown, its weapon's global
// cooldown and reload allow a use, and enough ammo is loaded.
func (u *CombatUnit) ready(p catalog.AbilityProfile) bool {
	if u.Cooldowns[p.AbilityID] > 0 || u.WeaponCooldowns[p.WeaponID] > 0 {
		return false
	}
	if p.MaxAmmo <= 0 {
		return true
	}
	if u.Reload[p.WeaponID] > 0 {
		return false
	}
	return u.Ammo[p.WeaponID] >= p.AmmoCost
}

func (u *CombatUnit) occupant() targeting.Occupant {
	return targeting.Occupant{ID: u.ID, Slot: u.Slot, Strength: u.Blocking}
}
