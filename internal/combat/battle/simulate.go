package battle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/feiai2017/gridcombat/internal/combat/grid"
)

// DefaultMaxTurns bounds a simulation when the caller sets no limit.
const DefaultMaxTurns = 200

// Chooser scripts player decisions. Returning nil lets the AI act.
type Chooser func(s *State) *Choice

// SimOptions tunes Simulate.
type SimOptions struct {
	MaxTurns int
	// Player, when set, is consulted on every player turn.
	Player Chooser
}

// Outcome summarizes a finished battle.
type Outcome struct {
	BattleID        string         `json:"battle_id"`
	Winner          grid.Side      `json:"winner"`
	Turns           int            `json:"turns"`
	WavesCleared    int            `json:"waves_cleared"`
	TimedOut        bool           `json:"timed_out"`
	DamageByAbility map[string]int `json:"damage_by_ability,omitempty"`
	DamageByEffect  map[string]int `json:"damage_by_effect,omitempty"`
	DamageByUnit    map[string]int `json:"damage_by_unit,omitempty"`
	Deaths          int            `json:"deaths"`
}

// Win reports whether the player side won.
func (o Outcome) Win() bool {
	return o.Winner == grid.SidePlayer && !o.TimedOut
}

// Simulate plays a battle to the end with the AI on both sides unless a
// player chooser is given. Hitting the turn limit counts as a player defeat.
// The context is checked between turns.
func (e *Engine) Simulate(ctx context.Context, setup Setup, rng *rand.Rand, opts SimOptions) (Outcome, *State, error) {
	ctx, span := e.tracer.Start(ctx, "battle.Simulate")
	defer span.End()

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	s, err := e.InitializeBattle(setup)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, nil, err
	}
	span.SetAttributes(attribute.String("battle.id", s.ID), attribute.Int("battle.waves", s.TotalWaves))

	for !s.Over() {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return Outcome{}, s, err
		}
		if e.EnforceTurnLimit(s, maxTurns) {
			break
		}
		var choice *Choice
		if s.Active == grid.SidePlayer && opts.Player != nil {
			choice = opts.Player(s)
		}
		if _, err := e.PlayTurn(s, choice, rng); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Outcome{}, s, err
		}
	}

	out := Summarize(s)
	span.SetAttributes(
		attribute.String("battle.winner", out.Winner.String()),
		attribute.Int("battle.turns", out.Turns),
		attribute.Bool("battle.timed_out", out.TimedOut),
	)
	return out, s, nil
}

// EnforceTurnLimit ends s as a player defeat once maxTurns turns have been
// played. It reports whether it ended the battle.
func (e *Engine) EnforceTurnLimit(s *State, maxTurns int) bool {
	if s.Over() || maxTurns <= 0 || s.Turn < maxTurns {
		return false
	}
	s.Phase = PhaseOver
	s.Winner = grid.SideEnemy
	s.TimedOut = true
	e.log.Debug().Str("battle", s.ID).Int("turns", s.Turn).Msg("turn limit reached")
	return true
}

// Summarize aggregates the log of s.
func Summarize(s *State) Outcome {
	out := Outcome{
		BattleID:        s.ID,
		Winner:          s.Winner,
		Turns:           s.Turn,
		TimedOut:        s.TimedOut,
		DamageByAbility: map[string]int{},
		DamageByEffect:  map[string]int{},
		DamageByUnit:    map[string]int{},
	}
	for _, t := range s.Log {
		for _, a := range t.Actions {
			switch a.Type {
			case ActionAttack:
				out.DamageByAbility[a.AbilityID] += a.Damage()
				out.DamageByUnit[a.Actor] += a.Damage()
			case ActionStatusTick:
				out.DamageByEffect[a.EffectID] += a.Damage()
			case ActionWaveCleared:
				out.WavesCleared++
			case ActionDeath:
				out.Deaths++
			}
		}
	}
	if s.Over() && s.Winner == grid.SidePlayer && !s.TimedOut {
		out.WavesCleared++
	}
	return out
}

// MarshalPretty renders v as indented JSON.
func MarshalPretty(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return b, nil
}
