package main

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/feiai2017/gridcombat/internal/combat/battle"
	"github.com/feiai2017/gridcombat/internal/config"
	"github.com/feiai2017/gridcombat/internal/storage"
	"github.com/feiai2017/gridcombat/internal/util"
)

// singleResult is the output of a one-battle run.
type singleResult struct {
	Seed    int64          `json:"seed"`
	Outcome battle.Outcome `json:"outcome"`
	Log     []battle.Turn  `json:"log,omitempty"`
}

func runSingle(ctx context.Context, e *battle.Engine, run simRun, cfg config.Simulation, saveLog bool, store storage.ReportStore) (singleResult, error) {
	out, s, err := e.Simulate(ctx, run.setup, util.New(cfg.Seed), run.options(e, cfg.MaxTurns))
	if err != nil {
		return singleResult{}, err
	}
	res := singleResult{Seed: cfg.Seed, Outcome: out}
	if saveLog {
		res.Log = s.Log
	}
	if store != nil {
		rep, err := storage.NewReport(run.setup.Name, cfg.Seed, out, s, saveLog)
		if err != nil {
			return res, err
		}
		if err := store.SaveReport(ctx, rep); err != nil {
			return res, err
		}
	}
	return res, nil
}

// summary aggregates a batch.
type summary struct {
	Runs         int
	Wins         int
	TimedOut     int
	SumTurns     int
	WavesCleared int
	TotalDamage  int
	ByAbility    map[string]int
	ByEffect     map[string]int
	ByUnit       map[string]int
}

func newSummary() *summary {
	return &summary{ByAbility: map[string]int{}, ByEffect: map[string]int{}, ByUnit: map[string]int{}}
}

func (s *summary) add(o battle.Outcome) {
	s.Runs++
	if o.Win() {
		s.Wins++
	}
	if o.TimedOut {
		s.TimedOut++
	}
	s.SumTurns += o.Turns
	s.WavesCleared += o.WavesCleared
	for k, v := range o.DamageByAbility {
		s.ByAbility[k] += v
		s.TotalDamage += v
	}
	for k, v := range o.DamageByEffect {
		s.ByEffect[k] += v
		s.TotalDamage += v
	}
	for k, v := range o.DamageByUnit {
		s.ByUnit[k] += v
	}
}

func (s *summary) winRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Runs)
}

func (s *summary) avgTurns() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.SumTurns) / float64(s.Runs)
}

type share struct {
	ID    string  `json:"id"`
	Total int     `json:"total"`
	Ratio float64 `json:"ratio"`
}

// shares orders damage totals from largest to smallest.
func (s *summary) shares(m map[string]int) []share {
	out := make([]share, 0, len(m))
	for k, v := range m {
		ratio := 0.0
		if s.TotalDamage > 0 {
			ratio = float64(v) / float64(s.TotalDamage)
		}
		out = append(out, share{ID: k, Total: v, Ratio: ratio})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *summary) report() map[string]any {
	avgWaves := 0.0
	if s.Runs > 0 {
		avgWaves = float64(s.WavesCleared) / float64(s.Runs)
	}
	return map[string]any{
		"runs":         s.Runs,
		"win_rate":     s.winRate(),
		"timed_out":    s.TimedOut,
		"avg_turns":    s.avgTurns(),
		"avg_waves":    avgWaves,
		"total_damage": s.TotalDamage,
		"by_ability":   s.shares(s.ByAbility),
		"by_effect":    s.shares(s.ByEffect),
		"by_unit":      s.shares(s.ByUnit),
	}
}

// runBatch simulates cfg.Runs battles on cfg.Workers goroutines. Worker w
// takes runs w, w+workers, ... and seeds run i with util.WorkerSeed(seed, w, i),
// so a batch is reproducible for a fixed worker count.
func runBatch(ctx context.Context, e *battle.Engine, run simRun, cfg config.Simulation, store storage.ReportStore, log zerolog.Logger) (*summary, error) {
	meter := otel.Meter("github.com/feiai2017/gridcombat/cmd/simsvc")
	battles, err := meter.Int64Counter("gridcombat.sim.battles", metric.WithDescription("Simulated battles."))
	if err != nil {
		log.Warn().Err(err).Msg("create battle counter")
		battles = noop.Int64Counter{}
	}

	st := newSummary()
	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; i < cfg.Runs; i += cfg.Workers {
				if ctx.Err() != nil {
					return
				}
				seed := util.WorkerSeed(cfg.Seed, workerID, i)
				out, s, err := e.Simulate(ctx, run.setup, util.New(seed), run.options(e, cfg.MaxTurns))
				if err == nil && store != nil {
					var rep storage.Report
					if rep, err = storage.NewReport(run.setup.Name, seed, out, s, false); err == nil {
						err = store.SaveReport(ctx, rep)
					}
				}

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					log.Error().Err(err).Int64("seed", seed).Msg("battle failed")
				} else {
					st.add(out)
				}
				mu.Unlock()
				battles.Add(ctx, 1, metric.WithAttributes(attribute.Bool("win", out.Win())))
			}
		}(w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return st, err
	}
	return st, firstErr
}
