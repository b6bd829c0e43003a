package battle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/feiai2017/gridcombat/internal/combat/grid"
)

// Phase is the battle lifecycle.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseInProgress
	// PhaseWaveCleared lasts from the wave spawn until the next turn starts.
	PhaseWaveCleared
	PhaseOver
)

func (p Phase) String() string {
	switch p {
	case PhaseInProgress:
		return "in_progress"
	case PhaseWaveCleared:
		return "wave_cleared"
	case PhaseOver:
		return "over"
	default:
		return "setup"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ActionType names a logged sub-event.
type ActionType string

const (
	ActionAttack        ActionType = "attack"
	ActionDodge         ActionType = "dodge"
	ActionCrit          ActionType = "crit"
	ActionMiss          ActionType = "miss"
	ActionStatusApplied ActionType = "status_applied"
	ActionStatusResist  ActionType = "status_resisted"
	ActionStatusTick    ActionType = "status_tick"
	ActionStatusExpired ActionType = "status_expired"
	ActionDeath         ActionType = "death"
	ActionReload        ActionType = "reload"
	ActionPass          ActionType = "pass"
	ActionWaveCleared   ActionType = "wave_cleared"
	ActionBattleOver    ActionType = "battle_over"
)

// Action is one logged sub-event. The log is output only and never read
// back by the engine.
type Action struct {
	Type        ActionType `json:"type"`
	Actor       string     `json:"actor,omitempty"`
	Target      string     `json:"target,omitempty"`
	Slot        int        `json:"slot"`
	AbilityID   string     `json:"ability_id,omitempty"`
	EffectID    string     `json:"effect_id,omitempty"`
	Raw         int        `json:"raw,omitempty"`
	ArmorDamage int        `json:"armor_damage,omitempty"`
	HPDamage    int        `json:"hp_damage,omitempty"`
	Chance      float64    `json:"chance,omitempty"`
	Note        string     `json:"note,omitempty"`
}

// Damage is armor plus hit-point damage carried by the action.
func (a Action) Damage() int {
	return a.ArmorDamage + a.HPDamage
}

// Turn is the complete action list of one side-turn.
type Turn struct {
	Number  int       `json:"number"`
	Side    grid.Side `json:"side"`
	Actor   string    `json:"actor,omitempty"`
	Ability string    `json:"ability,omitempty"`
	Target  int       `json:"target"`
	// Rejected explains why an explicit choice was replaced by the AI.
	Rejected string   `json:"rejected,omitempty"`
	Actions  []Action `json:"actions"`
}

// Placement puts a catalog unit at a slot.
type Placement struct {
	Unit string `yaml:"unit" json:"unit"`
	Slot int    `yaml:"slot" json:"slot"`
	Rank int    `yaml:"rank" json:"rank"`
}

// Setup is everything needed to start a battle.
type Setup struct {
	Name        string             `yaml:"name" json:"name,omitempty"`
	Player      []Placement        `yaml:"player" json:"player"`
	Waves       [][]Placement      `yaml:"waves" json:"waves"`
	Environment map[string]float64 `yaml:"environment" json:"environment,omitempty"`
}

// ParseSetup decodes a YAML setup document.
func ParseSetup(data []byte) (Setup, error) {
	var s Setup
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Setup{}, fmt.Errorf("decode setup: %w", err)
	}
	return s, nil
}

// LoadSetup reads a YAML setup file.
func LoadSetup(path string) (Setup, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Setup{}, err
	}
	return ParseSetup(b)
}

// State is one battle. It is owned by a single caller; independent states
// may be resolved in parallel.
type State struct {
	ID          string             `json:"id"`
	Player      []*CombatUnit      `json:"player"`
	Enemy       []*CombatUnit      `json:"enemy"`
	Turn        int                `json:"turn"`
	Active      grid.Side          `json:"active"`
	Wave        int                `json:"wave"`
	TotalWaves  int                `json:"total_waves"`
	Phase       Phase              `json:"phase"`
	Winner      grid.Side          `json:"winner"`
	TimedOut    bool               `json:"timed_out,omitempty"`
	Environment map[string]float64 `json:"environment,omitempty"`
	Log         []Turn             `json:"log"`

	waves [][]Placement
}

// Over reports whether the battle has ended.
func (s *State) Over() bool {
	return s.Phase == PhaseOver
}

// Units returns the formation of side.
func (s *State) Units(side grid.Side) []*CombatUnit {
	if side == grid.SideEnemy {
		return s.Enemy
	}
	return s.Player
}

// UnitAt returns the living unit of side at slot.
func (s *State) UnitAt(side grid.Side, slot int) (*CombatUnit, bool) {
	for _, u := range s.Units(side) {
		if u.Slot == slot && u.Alive() {
			return u, true
		}
	}
	return nil, false
}

// Unit finds a unit by id on either side, dead or alive.
func (s *State) Unit(id string) (*CombatUnit, bool) {
	for _, side := range []grid.Side{grid.SidePlayer, grid.SideEnemy} {
		for _, u := range s.Units(side) {
			if u.ID == id {
				return u, true
			}
		}
	}
	return nil, false
}

func (s *State) alive(side grid.Side) []*CombatUnit {
	var out []*CombatUnit
	for _, u := range s.Units(side) {
		if u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

func (s *State) field() grid.Field {
	slots := func(side grid.Side) []int {
		var out []int
		for _, u := range s.alive(side) {
			out = append(out, u.Slot)
		}
		return out
	}
	return grid.Field{
		Player: grid.NewLayout(slots(grid.SidePlayer)),
		Enemy:  grid.NewLayout(slots(grid.SideEnemy)),
	}
}
