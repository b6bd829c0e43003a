package grid

// Layout collapses vacated rows of one formation. When every slot of a row is
// empty, the rows behind it advance by one for range purposes. Slot identity
// never changes; only the depth lookup is transformed.
type Layout struct {
	shift [Rows]int
}

// NewLayout builds the collapsed layout of a formation from its occupied
// slots. Invalid slots are ignored.
func NewLayout(occupied []int) Layout {
	var filled [Rows]bool
	for _, slot := range occupied {
		c, ok := SlotCoord(slot)
		if !ok {
			continue
		}
		filled[c.Row] = true
	}
	var l Layout
	empty := 0
	for row := 0; row < Rows; row++ {
		l.shift[row] = empty
		if !filled[row] {
			empty++
		}
	}
	return l
}

// Coord returns the collapsed coordinate of slot.
func (l Layout) Coord(slot int) (Coord, bool) {
	c, ok := SlotCoord(slot)
	if !ok {
		return Coord{}, false
	}
	c.Row -= l.shift[c.Row]
	return c, true
}

// Depth returns the collapsed row of slot, or -1 for an invalid slot.
func (l Layout) Depth(slot int) int {
	c, ok := l.Coord(slot)
	if !ok {
		return -1
	}
	return c.Row
}

// Field pairs the collapsed layouts of both formations.
type Field struct {
	Player Layout
	Enemy  Layout
}

// Layout returns the layout of side.
func (f Field) Layout(side Side) Layout {
	if side == SideEnemy {
		return f.Enemy
	}
	return f.Player
}

// RowDistance is the collapsed range from an attacker slot to a target slot
// on the opposing grid. attackerIsEnemy selects which layout each slot uses.
// It returns -1 when either slot is invalid.
func (f Field) RowDistance(attacker, target int, attackerIsEnemy bool) int {
	own, opp := f.Player, f.Enemy
	if attackerIsEnemy {
		own, opp = f.Enemy, f.Player
	}
	a := own.Depth(attacker)
	t := opp.Depth(target)
	if a < 0 || t < 0 {
		return -1
	}
	return a + t + 1
}
