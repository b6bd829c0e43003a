// Package storage defines persistence for finished battle reports.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feiai2017/gridcombat/internal/combat/battle"
)

var (
	ErrNotFound      = errors.New("report not found")
	ErrAlreadyExists = errors.New("report already exists")
)

// Report is a stored battle result with its full turn log.
type Report struct {
	ID           string    `json:"id"`
	BattleID     string    `json:"battle_id"`
	Name         string    `json:"name,omitempty"`
	Seed         int64     `json:"seed"`
	Winner       string    `json:"winner"`
	Turns        int       `json:"turns"`
	WavesCleared int       `json:"waves_cleared"`
	TimedOut     bool      `json:"timed_out"`
	CreatedAt    time.Time `json:"created_at"`
	// Outcome and Log hold the JSON encodings of battle.Outcome and the
	// battle's []battle.Turn.
	Outcome json.RawMessage `json:"outcome"`
	Log     json.RawMessage `json:"log,omitempty"`
}

// ReportStore persists reports.
type ReportStore interface {
	SaveReport(ctx context.Context, r Report) error
	GetReport(ctx context.Context, id string) (Report, error)
	// ListReports returns the newest reports first, at most limit of them.
	ListReports(ctx context.Context, limit int) ([]Report, error)
}

// NewReport captures a finished battle. withLog controls whether the turn log
// is kept; batch runs usually drop it.
func NewReport(name string, seed int64, out battle.Outcome, s *battle.State, withLog bool) (Report, error) {
	outcome, err := json.Marshal(out)
	if err != nil {
		return Report{}, fmt.Errorf("encode outcome: %w", err)
	}
	r := Report{
		ID:           uuid.NewString(),
		BattleID:     out.BattleID,
		Name:         name,
		Seed:         seed,
		Winner:       out.Winner.String(),
		Turns:        out.Turns,
		WavesCleared: out.WavesCleared,
		TimedOut:     out.TimedOut,
		CreatedAt:    time.Now().UTC(),
		Outcome:      outcome,
	}
	if withLog && s != nil {
		if r.Log, err = json.Marshal(s.Log); err != nil {
			return Report{}, fmt.Errorf("encode log: %w", err)
		}
	}
	return r, nil
}

// DecodeOutcome decodes the stored outcome.
func (r Report) DecodeOutcome() (battle.Outcome, error) {
	var out battle.Outcome
	if err := json.Unmarshal(r.Outcome, &out); err != nil {
		return battle.Outcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	return out, nil
}
