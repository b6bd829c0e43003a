package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/battle"
	"github.com/feiai2017/gridcombat/internal/config"
	"github.com/feiai2017/gridcombat/internal/logging"
	gcotel "github.com/feiai2017/gridcombat/internal/platform/otel"
	"github.com/feiai2017/gridcombat/internal/server"
	"github.com/feiai2017/gridcombat/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		exitf("config: %v", err)
	}
	log := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := gcotel.SetupEndpoint(ctx, "gridcombat-battleserver", cfg.OtelEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	cat, err := catalog.LoadDir(cfg.CatalogDir)
	if err != nil {
		exitf("catalog: %v", err)
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		exitf("report store: %v", err)
	}
	defer store.Close()

	engine := battle.NewEngine(cat, battle.WithLogger(log.With().Str("component", "battle").Logger()))
	srv := server.New(engine,
		server.WithLogger(log.With().Str("component", "http").Logger()),
		server.WithStore(store),
		server.WithMaxTurns(cfg.MaxTurns),
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("catalog", cfg.CatalogDir).Str("db", cfg.DBPath).Msg("battle server listening")
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("serve")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "battleserver: "+format+"\n", args...)
	os.Exit(1)
}
