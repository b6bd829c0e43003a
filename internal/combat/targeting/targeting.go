// Package targeting decides which slots an attacker may legally engage:
// tag filters, per-column blocking and line-of-fire classes.
package targeting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/feiai2017/gridcombat/internal/combat/grid"
)

// TagAny matches every unit regardless of its tags.
const TagAny = "any"

// Strength is how much a unit obstructs fire aimed past it.
type Strength int

const (
	BlockNone Strength = iota
	BlockPartial
	BlockFull
)

func (s Strength) String() string {
	switch s {
	case BlockPartial:
		return "partial"
	case BlockFull:
		return "full"
	default:
		return "none"
	}
}

// MarshalText encodes the strength by name.
func (s Strength) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "none", "partial" or "full".
func (s *Strength) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "none", "":
		*s = BlockNone
	case "partial":
		*s = BlockPartial
	case "full":
		*s = BlockFull
	default:
		return fmt.Errorf("unknown blocking %q", string(text))
	}
	return nil
}

// LineOfFire classifies how an ability's shots travel.
type LineOfFire int

const (
	// Contact reaches only the nearest occupied row of a column.
	Contact LineOfFire = iota
	// Direct is stopped by full blockers.
	Direct
	// Precise is stopped by full blockers and reports partial cover.
	Precise
	// Indirect arcs over everything.
	Indirect
)

func (l LineOfFire) String() string {
	switch l {
	case Direct:
		return "direct"
	case Precise:
		return "precise"
	case Indirect:
		return "indirect"
	default:
		return "contact"
	}
}

// MarshalText encodes the class by name.
func (l LineOfFire) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a line-of-fire class name.
func (l *LineOfFire) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "contact", "":
		*l = Contact
	case "direct":
		*l = Direct
	case "precise":
		*l = Precise
	case "indirect":
		*l = Indirect
	default:
		return fmt.Errorf("unknown line of fire %q", string(text))
	}
	return nil
}

// TagExpander resolves tags to their transitive closure.
type TagExpander interface {
	ExpandTags(tags []string) map[string]bool
}

// CanTarget reports whether a unit carrying unitTags passes filter. An empty
// filter or one naming TagAny matches everything.
func CanTarget(unitTags []string, filter []string, tags TagExpander) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == TagAny {
			return true
		}
	}
	var expanded map[string]bool
	if tags != nil {
		expanded = tags.ExpandTags(unitTags)
	} else {
		expanded = make(map[string]bool, len(unitTags))
		for _, t := range unitTags {
			expanded[t] = true
		}
	}
	for _, f := range filter {
		if expanded[f] {
			return true
		}
	}
	return false
}

// Occupant is a living unit that may stand in the way of fire.
type Occupant struct {
	ID       string
	Slot     int
	Strength Strength
}

// Blockers indexes the occupants of one grid by column, front row first.
type Blockers struct {
	columns [grid.Columns][]Occupant
}

// ComputeBlockers builds the blocker index for the living units of a grid.
// Occupants on invalid slots are ignored.
func ComputeBlockers(occupants []Occupant) Blockers {
	var b Blockers
	for _, o := range occupants {
		c, ok := grid.SlotCoord(o.Slot)
		if !ok {
			continue
		}
		b.columns[c.Col] = append(b.columns[c.Col], o)
	}
	for col := range b.columns {
		sort.SliceStable(b.columns[col], func(i, j int) bool {
			return b.columns[col][i].Slot < b.columns[col][j].Slot
		})
	}
	return b
}

// Column returns the occupants of col ordered front to back.
func (b Blockers) Column(col int) []Occupant {
	if col < 0 || col >= grid.Columns {
		return nil
	}
	return b.columns[col]
}

// Result describes the line of fire to one slot.
type Result struct {
	Blocked bool
	// Blocker is the unit that stopped the shot when Blocked is set.
	Blocker *Occupant
	// Cover is the nearest partial blocker in front of an unblocked target.
	Cover *Occupant
}

// CheckLineOfFire evaluates class against the occupants in front of target
// in its column.
func CheckLineOfFire(target int, class LineOfFire, b Blockers) (Result, error) {
	tc, ok := grid.SlotCoord(target)
	if !ok {
		return Result{}, fmt.Errorf("target slot %d: %w", target, grid.ErrInvalidSlot)
	}
	if class == Indirect {
		return Result{}, nil
	}
	var res Result
	for _, o := range b.columns[tc.Col] {
		oc, _ := grid.SlotCoord(o.Slot)
		if oc.Row >= tc.Row {
			break
		}
		occ := o
		switch class {
		case Contact:
			return Result{Blocked: true, Blocker: &occ}, nil
		case Direct:
			if o.Strength == BlockFull {
				return Result{Blocked: true, Blocker: &occ}, nil
			}
		case Precise:
			// Same blocking as Direct; the nearest partial blocker is reported as cover.
			if o.Strength == BlockFull {
				return Result{Blocked: true, Blocker: &occ}, nil
			}
			if o.Strength == BlockPartial {
				res.Cover = &occ
			}
		}
	}
	return res, nil
}
