package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/battle"
	"github.com/feiai2017/gridcombat/internal/config"
	"github.com/feiai2017/gridcombat/internal/logging"
	gcotel "github.com/feiai2017/gridcombat/internal/platform/otel"
	"github.com/feiai2017/gridcombat/internal/scenario"
	"github.com/feiai2017/gridcombat/internal/storage"
	"github.com/feiai2017/gridcombat/internal/storage/sqlite"
	"github.com/feiai2017/gridcombat/internal/util"
)

func main() {
	var cfgPath, lang string
	var saveLog bool
	flag.StringVar(&cfgPath, "config", "", "run config file (yaml, json or toml)")
	flag.String("catalog", "", "catalog dir")
	flag.String("setup", "", "battle setup yaml")
	flag.String("scenario", "", "lua scenario script (overrides -setup)")
	flag.Int64("seed", 0, "seed (0 draws one)")
	flag.Int("n", 0, "number of simulations")
	flag.Int("workers", 0, "batch workers")
	flag.Int("max-turns", 0, "turn limit per battle")
	flag.String("out", "", "output file (single) or summary file (batch)")
	flag.String("db", "", "sqlite report store path")
	flag.String("log-level", "", "log level")
	flag.BoolVar(&saveLog, "log", true, "keep the full turn log when n==1")
	flag.StringVar(&lang, "lang", "en", "language for the printed summary")
	flag.Parse()

	cfg, err := config.LoadSimulation(cfgPath, flagOverrides())
	if err != nil {
		exitf("config: %v", err)
	}
	log := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := gcotel.Setup(ctx, "gridcombat-simsvc")
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() { _ = shutdown(context.Background()) }()

	cat, err := catalog.LoadDir(cfg.Catalog)
	if err != nil {
		exitf("catalog: %v", err)
	}
	run, err := loadRun(cfg)
	if err != nil {
		exitf("%v", err)
	}
	if cfg.Seed == 0 {
		if cfg.Seed, err = util.NewSeed(); err != nil {
			exitf("%v", err)
		}
	}
	log.Info().
		Str("catalog", cfg.Catalog).
		Str("battle", run.setup.Name).
		Int64("seed", cfg.Seed).
		Int("runs", cfg.Runs).
		Int("workers", cfg.Workers).
		Msg("simulation starting")

	engine := battle.NewEngine(cat, battle.WithLogger(log.With().Str("component", "battle").Logger()))

	var reports storage.ReportStore
	if cfg.DB != "" {
		db, err := sqlite.Open(cfg.DB)
		if err != nil {
			exitf("report store: %v", err)
		}
		defer db.Close()
		reports = db
	}

	p := message.NewPrinter(language.Make(lang))
	if cfg.Runs <= 1 {
		res, err := runSingle(ctx, engine, run, cfg, saveLog, reports)
		if err != nil {
			exitf("simulate: %v", err)
		}
		out, err := battle.MarshalPretty(res)
		if err != nil {
			exitf("encode result: %v", err)
		}
		if err := writeOut(cfg.Out, out); err != nil {
			exitf("write %s: %v", cfg.Out, err)
		}
		p.Fprintf(os.Stderr, "Single battle finished. Win=%v, turns=%d, waves=%d -> %s\n",
			res.Outcome.Win(), res.Outcome.Turns, res.Outcome.WavesCleared, outName(cfg.Out))
		return
	}

	sum, err := runBatch(ctx, engine, run, cfg, reports, log)
	if err != nil {
		exitf("batch: %v", err)
	}
	out, err := battle.MarshalPretty(sum.report())
	if err != nil {
		exitf("encode result: %v", err)
	}
	if err := writeOut(cfg.Out, out); err != nil {
		exitf("write %s: %v", cfg.Out, err)
	}
	p.Fprintf(os.Stderr, "Batch of %d done: win rate %.1f%%, avg turns %.1f, total damage %d -> %s\n",
		sum.Runs, 100*sum.winRate(), sum.avgTurns(), sum.TotalDamage, outName(cfg.Out))
}

// flagOverrides returns the flags given explicitly, keyed by config key.
func flagOverrides() map[string]any {
	keys := map[string]string{
		"catalog": "catalog", "setup": "setup", "scenario": "scenario", "seed": "seed",
		"n": "runs", "workers": "workers", "max-turns": "max_turns", "out": "out",
		"db": "db", "log-level": "log_level",
	}
	out := map[string]any{}
	flag.Visit(func(f *flag.Flag) {
		if key, ok := keys[f.Name]; ok {
			out[key] = f.Value.String()
		}
	})
	return out
}

// simRun is what every battle of a run starts from.
type simRun struct {
	setup   battle.Setup
	chooser func(*battle.Engine) battle.Chooser
}

func loadRun(cfg config.Simulation) (simRun, error) {
	if cfg.Scenario != "" {
		sc, err := scenario.LoadFile(cfg.Scenario)
		if err != nil {
			return simRun{}, fmt.Errorf("scenario: %w", err)
		}
		return simRun{setup: sc.Setup(), chooser: sc.Chooser}, nil
	}
	setup, err := battle.LoadSetup(cfg.Setup)
	if err != nil {
		return simRun{}, fmt.Errorf("setup: %w", err)
	}
	if setup.Name == "" {
		setup.Name = trimExt(filepath.Base(cfg.Setup))
	}
	return simRun{setup: setup}, nil
}

func (r simRun) options(e *battle.Engine, maxTurns int) battle.SimOptions {
	opts := battle.SimOptions{MaxTurns: maxTurns}
	if r.chooser != nil {
		opts.Player = r.chooser(e)
	}
	return opts
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

func writeOut(path string, b []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(b, '\n'))
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func outName(path string) string {
	if path == "" {
		return "stdout"
	}
	return filepath.Base(path)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "simsvc: "+format+"\n", args...)
	os.Exit(1)
}
