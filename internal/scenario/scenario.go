// Package scenario loads scripted battles written in Lua.
//
// A script builds and returns a Scenario:
//
//	local s = Scenario.new("ambush")
//	s:player("gunner", 2)
//	s:wave({ {unit = "grunt", slot = 2}, {unit = "grunt", slot = 3, rank = 2} })
//	s:environment({ fire = 1.25 })
//	s:act(1, 2, "snipe", 2)
//	return s
package scenario

import (
	"errors"
	"fmt"
	"sort"

	"github.com/feiai2017/gridcombat/internal/combat/battle"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
)

// Scenario is a battle setup plus optional scripted player moves.
type Scenario struct {
	Name        string
	Player      []battle.Placement
	Waves       [][]battle.Placement
	Environment map[string]float64
	Moves       []Move
}

// Move is a scripted player action for one round. Round n is the player's
// n-th turn, counting from 1.
type Move struct {
	Round     int
	Slot      int
	AbilityID string
	WeaponID  string
	Target    int
}

// Setup returns the battle setup described by the scenario.
func (sc *Scenario) Setup() battle.Setup {
	env := make(map[string]float64, len(sc.Environment))
	for k, v := range sc.Environment {
		env[k] = v
	}
	return battle.Setup{
		Name:        sc.Name,
		Player:      append([]battle.Placement(nil), sc.Player...),
		Waves:       append([][]battle.Placement(nil), sc.Waves...),
		Environment: env,
	}
}

// Validate checks the scenario can start a battle.
func (sc *Scenario) Validate() error {
	var errs []error
	if len(sc.Player) == 0 {
		errs = append(errs, errors.New("scenario has no player units"))
	}
	if len(sc.Waves) == 0 {
		errs = append(errs, errors.New("scenario has no waves"))
	}
	for _, m := range sc.Moves {
		if m.Round < 1 {
			errs = append(errs, fmt.Errorf("move for slot %d: round must be positive", m.Slot))
		}
		if !grid.ValidSlot(m.Slot) {
			errs = append(errs, fmt.Errorf("round %d move: actor %w", m.Round, grid.ErrInvalidSlot))
		}
	}
	return errors.Join(errs...)
}

// Chooser plays the scripted move of the current round when it is legal and
// defers to the AI otherwise.
func (sc *Scenario) Chooser(e *battle.Engine) battle.Chooser {
	byRound := make(map[int]Move, len(sc.Moves))
	moves := append([]Move(nil), sc.Moves...)
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].Round < moves[j].Round })
	for _, m := range moves {
		if _, dup := byRound[m.Round]; !dup {
			byRound[m.Round] = m
		}
	}
	return func(s *battle.State) *battle.Choice {
		m, ok := byRound[Round(s)]
		if !ok {
			return nil
		}
		c := battle.Choice{Slot: m.Slot, AbilityID: m.AbilityID, WeaponID: m.WeaponID, Target: m.Target}
		if err := e.CheckChoice(s, grid.SidePlayer, c); err != nil {
			return nil
		}
		return &c
	}
}

// Round is the 1-based round of the current turn. The player opens every
// battle, so each round is a player turn followed by an enemy turn.
func Round(s *battle.State) int {
	return s.Turn/2 + 1
}
