// Package battle runs turn-based battles between a player formation and
// successive enemy waves.
//
// The Engine holds no mutable state. Every operation takes the State it acts
// on and the random source to draw from, so one Engine may serve any number
// of independent battles concurrently.
package battle

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
)

var (
	// ErrBattleOver rejects actions after the battle ended.
	ErrBattleOver = errors.New("battle is over")
	// ErrUnknownUnit reports an actor that is missing or dead.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrAbilityUnavailable reports an ability that is not usable right now.
	ErrAbilityUnavailable = errors.New("ability unavailable")
	// ErrInvalidTarget reports a target outside the legal target set.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrNotYourTurn reports an actor of the side that is not active.
	ErrNotYourTurn = errors.New("not this side's turn")
	// ErrSlotOccupied reports two placements sharing a slot.
	ErrSlotOccupied = errors.New("slot occupied")
	// ErrNoWaves reports a setup without enemies.
	ErrNoWaves = errors.New("setup has no waves")
)

// Engine resolves battles against a catalog.
type Engine struct {
	catalog catalog.Catalog
	log     zerolog.Logger
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTracer sets the tracer used by Simulate.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine builds an engine over cat.
func NewEngine(cat catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		log:     zerolog.Nop(),
		tracer:  otel.Tracer("github.com/feiai2017/gridcombat/internal/combat/battle"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine resolves against.
func (e *Engine) Catalog() catalog.Catalog {
	return e.catalog
}

// InitializeBattle instantiates the player formation and the first wave.
// Unknown unit ids are skipped with a warning; invalid or duplicate slots
// are errors.
func (e *Engine) InitializeBattle(setup Setup) (*State, error) {
	if len(setup.Waves) == 0 {
		return nil, ErrNoWaves
	}
	player, err := e.instantiate(grid.SidePlayer, setup.Player, 0)
	if err != nil {
		return nil, fmt.Errorf("player formation: %w", err)
	}
	for i, wave := range setup.Waves {
		if err := checkPlacements(wave); err != nil {
			return nil, fmt.Errorf("wave %d: %w", i, err)
		}
	}
	enemy, err := e.instantiate(grid.SideEnemy, setup.Waves[0], 0)
	if err != nil {
		return nil, fmt.Errorf("wave 0: %w", err)
	}
	s := &State{
		ID:          uuid.NewString(),
		Player:      player,
		Enemy:       enemy,
		Active:      grid.SidePlayer,
		TotalWaves:  len(setup.Waves),
		Phase:       PhaseInProgress,
		Environment: setup.Environment,
		waves:       setup.Waves,
	}
	e.log.Debug().
		Str("battle", s.ID).
		Int("player_units", len(player)).
		Int("waves", s.TotalWaves).
		Msg("battle initialized")
	return s, nil
}

func checkPlacements(ps []Placement) error {
	seen := make(map[int]bool, len(ps))
	for _, p := range ps {
		if !grid.ValidSlot(p.Slot) {
			return fmt.Errorf("unit %q slot %d: %w", p.Unit, p.Slot, grid.ErrInvalidSlot)
		}
		if seen[p.Slot] {
			return fmt.Errorf("slot %d: %w", p.Slot, ErrSlotOccupied)
		}
		seen[p.Slot] = true
	}
	return nil
}

func (e *Engine) instantiate(side grid.Side, ps []Placement, wave int) ([]*CombatUnit, error) {
	if err := checkPlacements(ps); err != nil {
		return nil, err
	}
	units := make([]*CombatUnit, 0, len(ps))
	for _, p := range ps {
		u, err := newUnit(e.catalog, side, p, wave)
		if errors.Is(err, catalog.ErrUnknownUnit) {
			e.log.Warn().Str("unit", p.Unit).Int("slot", p.Slot).Msg("skipping unknown unit")
			continue
		}
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}
