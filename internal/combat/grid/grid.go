// Package grid maps formation slots to coordinates and resolves attack
// patterns into concrete affected slots.
//
// Each side fields a 5-5-3 triangular formation. Slots 0-4 form the front
// row, 5-9 the middle row and 11-13 the centered back row; slot 10 is never
// used. Row 0 is always the row closest to the opponent.
package grid

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// SlotCount is the size of the slot id space, including the unused slot.
	SlotCount = 14
	// UnusedSlot has no coordinate.
	UnusedSlot = 10
	// Columns is the width of the front and middle rows.
	Columns = 5
	// Rows is the formation depth.
	Rows = 3
)

// ErrInvalidSlot reports a slot id outside the valid slot set.
var ErrInvalidSlot = errors.New("invalid slot")

// Side identifies one of the two opposing formations.
type Side int

const (
	SidePlayer Side = iota
	SideEnemy
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SidePlayer {
		return SideEnemy
	}
	return SidePlayer
}

func (s Side) String() string {
	if s == SideEnemy {
		return "enemy"
	}
	return "player"
}

// MarshalText encodes the side as "player" or "enemy".
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes "player" or "enemy".
func (s *Side) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "player", "":
		*s = SidePlayer
	case "enemy":
		*s = SideEnemy
	default:
		return fmt.Errorf("unknown side %q", string(text))
	}
	return nil
}

// Coord is a slot position: Col counts from the left edge, Row from the front.
type Coord struct {
	Col int
	Row int
}

// ValidSlot reports whether slot addresses a usable position.
func ValidSlot(slot int) bool {
	return slot >= 0 && slot < SlotCount && slot != UnusedSlot
}

// SlotCoord converts a slot id to its coordinate.
func SlotCoord(slot int) (Coord, bool) {
	if !ValidSlot(slot) {
		return Coord{}, false
	}
	return Coord{Col: slot % Columns, Row: slot / Columns}, true
}

// CoordSlot converts a coordinate to its slot id.
func CoordSlot(c Coord) (int, bool) {
	if c.Row < 0 || c.Row >= Rows || c.Col < 0 || c.Col >= Columns {
		return 0, false
	}
	if c.Row == Rows-1 && (c.Col == 0 || c.Col == Columns-1) {
		return 0, false
	}
	return c.Row*Columns + c.Col, true
}

// Slots lists every valid slot in ascending order.
func Slots() []int {
	out := make([]int, 0, SlotCount-1)
	for slot := 0; slot < SlotCount; slot++ {
		if ValidSlot(slot) {
			out = append(out, slot)
		}
	}
	return out
}

// RowDistance is the range between an attacker and a target on the opposing
// grid: both row depths plus one. Opposing front rows are range 1.
func RowDistance(attacker, target int) (int, error) {
	a, ok := SlotCoord(attacker)
	if !ok {
		return 0, fmt.Errorf("attacker slot %d: %w", attacker, ErrInvalidSlot)
	}
	t, ok := SlotCoord(target)
	if !ok {
		return 0, fmt.Errorf("target slot %d: %w", target, ErrInvalidSlot)
	}
	return a.Row + t.Row + 1, nil
}

// forward converts a screen-space vertical offset into steps toward the
// opponent. The player grid sits at the bottom of the screen, so the player
// advances with negative y and the enemy with positive y.
func forward(y int, side Side) int {
	if side == SidePlayer {
		return -y
	}
	return y
}
