package grid

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// PatternType selects how a pattern is anchored.
type PatternType int

const (
	// PatternMovable is centered on a chosen reticle slot of the opposing grid.
	PatternMovable PatternType = iota
	// PatternFixed is anchored to the attacker and may reach across both grids.
	PatternFixed
)

func (t PatternType) String() string {
	if t == PatternFixed {
		return "fixed"
	}
	return "movable"
}

// MarshalText encodes the pattern type by name.
func (t PatternType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes "movable" or "fixed".
func (t *PatternType) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "movable", "":
		*t = PatternMovable
	case "fixed":
		*t = PatternFixed
	default:
		return fmt.Errorf("unknown pattern type %q", string(text))
	}
	return nil
}

// Offset is one cell of a pattern in screen space relative to its anchor.
type Offset struct {
	X             int     `yaml:"x" json:"x"`
	Y             int     `yaml:"y" json:"y"`
	DamagePercent float64 `yaml:"damage_percent" json:"damage_percent"`
	Weight        float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// Pattern is a target area. Random patterns draw one cell per shot.
type Pattern struct {
	Type    PatternType `yaml:"type" json:"type"`
	Random  bool        `yaml:"random,omitempty" json:"random,omitempty"`
	Offsets []Offset    `yaml:"cells" json:"cells"`
}

// Hit is an accumulated effect on one slot.
type Hit struct {
	Slot          int     `json:"slot"`
	DamagePercent float64 `json:"damage_percent"`
	Weight        float64 `json:"weight,omitempty"`
	Count         int     `json:"count"`
}

// FixedHit is a fixed-pattern cell tagged with the grid it landed on.
type FixedHit struct {
	Hit
	Opposing bool `json:"opposing"`
}

// ResolveAOE maps a movable pattern centered on a slot of the grid opposing
// attacker. Cells falling off the grid are dropped and cells landing on the
// same slot are merged.
func ResolveAOE(center int, p Pattern, attacker Side) ([]Hit, error) {
	c, ok := SlotCoord(center)
	if !ok {
		return nil, fmt.Errorf("center slot %d: %w", center, ErrInvalidSlot)
	}
	hits := make([]Hit, 0, len(p.Offsets))
	for _, off := range p.Offsets {
		slot, ok := CoordSlot(Coord{Col: c.Col + off.X, Row: c.Row + forward(off.Y, attacker)})
		if !ok {
			continue
		}
		hits = append(hits, Hit{Slot: slot, DamagePercent: off.DamagePercent, Weight: off.Weight, Count: 1})
	}
	return Accumulate(hits), nil
}

// ResolveFixed maps a fixed pattern anchored at the attacker slot. Cells are
// walked forward from the attacker's row; once they pass the attacker's front
// row they continue onto the opposing grid with the column mirrored. Cells off
// either grid are dropped. Results keep pattern order and are not merged.
func ResolveFixed(attacker int, p Pattern, side Side) ([]FixedHit, error) {
	a, ok := SlotCoord(attacker)
	if !ok {
		return nil, fmt.Errorf("attacker slot %d: %w", attacker, ErrInvalidSlot)
	}
	hits := make([]FixedHit, 0, len(p.Offsets))
	for _, off := range p.Offsets {
		steps := forward(off.Y, side)
		col := a.Col + off.X
		var (
			cell     Coord
			opposing bool
		)
		if steps <= a.Row {
			cell = Coord{Col: col, Row: a.Row - steps}
		} else {
			cell = Coord{Col: Columns - 1 - col, Row: steps - a.Row - 1}
			opposing = true
		}
		slot, ok := CoordSlot(cell)
		if !ok {
			continue
		}
		hits = append(hits, FixedHit{
			Hit:      Hit{Slot: slot, DamagePercent: off.DamagePercent, Weight: off.Weight, Count: 1},
			Opposing: opposing,
		})
	}
	return hits, nil
}

// OpposingHits keeps the fixed hits that landed on the opposing grid.
func OpposingHits(hits []FixedHit) []Hit {
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Opposing {
			out = append(out, h.Hit)
		}
	}
	return out
}

// ResolveSplash expands every impact with the splash pattern and accumulates
// the results per slot. Splash percentages scale with the impact percentage.
func ResolveSplash(impacts []Hit, splash Pattern, attacker Side) []Hit {
	var all []Hit
	for _, impact := range impacts {
		area, err := ResolveAOE(impact.Slot, splash, attacker)
		if err != nil {
			continue
		}
		for _, h := range area {
			h.DamagePercent = h.DamagePercent * impact.DamagePercent / 100
			h.Count = 1
			all = append(all, h)
		}
	}
	return Accumulate(all)
}

// Accumulate merges hits on the same slot, summing damage percentages, weights
// and hit counts. The result is ordered by slot.
func Accumulate(hits []Hit) []Hit {
	bySlot := make(map[int]*Hit, len(hits))
	order := make([]int, 0, len(hits))
	for _, h := range hits {
		if cur, ok := bySlot[h.Slot]; ok {
			cur.DamagePercent += h.DamagePercent
			cur.Weight += h.Weight
			cur.Count += h.Count
			continue
		}
		cp := h
		if cp.Count == 0 {
			cp.Count = 1
		}
		bySlot[h.Slot] = &cp
		order = append(order, h.Slot)
	}
	sort.Ints(order)
	out := make([]Hit, 0, len(order))
	for _, slot := range order {
		out = append(out, *bySlot[slot])
	}
	return out
}

// Draw picks n cells from hits by weight, one independent draw per shot.
// Cells without weight count as weight 1.
func Draw(rng *rand.Rand, hits []Hit, n int) []Hit {
	if len(hits) == 0 || n <= 0 {
		return nil
	}
	total := 0.0
	for _, h := range hits {
		total += weightOf(h)
	}
	out := make([]Hit, 0, n)
	for i := 0; i < n; i++ {
		r := rng.Float64() * total
		pick := hits[len(hits)-1]
		for _, h := range hits {
			r -= weightOf(h)
			if r < 0 {
				pick = h
				break
			}
		}
		pick.Count = 1
		out = append(out, pick)
	}
	return out
}

func weightOf(h Hit) float64 {
	if h.Weight <= 0 {
		return 1
	}
	return h.Weight
}
