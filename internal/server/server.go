// Package server exposes live battles, previews and stored reports over HTTP
// and streams AI-resolved battles over a websocket.
package server

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/feiai2017/gridcombat/internal/combat/battle"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/storage"
	"github.com/feiai2017/gridcombat/internal/util"
)

var errBattleNotFound = errors.New("battle not found")

// Server holds the live battles of one process. Each battle has its own lock;
// battles never share state.
type Server struct {
	engine   *battle.Engine
	store    storage.ReportStore
	log      zerolog.Logger
	maxTurns int
	seed     func() (int64, error)
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	battles map[string]*session

	started metric.Int64Counter
	turns   metric.Int64Counter
}

type session struct {
	mu    sync.Mutex
	state *battle.State
	rng   *rand.Rand
	seed  int64
	name  string
	saved bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithStore persists a report whenever a battle ends.
func WithStore(store storage.ReportStore) Option {
	return func(s *Server) { s.store = store }
}

// WithMaxTurns ends live battles as a player defeat after n turns.
func WithMaxTurns(n int) Option {
	return func(s *Server) { s.maxTurns = n }
}

// WithSeedSource replaces the source of seeds for battles created without
// one.
func WithSeedSource(f func() (int64, error)) Option {
	return func(s *Server) { s.seed = f }
}

// New builds a server around engine.
func New(engine *battle.Engine, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		log:      zerolog.Nop(),
		maxTurns: battle.DefaultMaxTurns,
		seed:     util.NewSeed,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		battles:  map[string]*session{},
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter("github.com/feiai2017/gridcombat/internal/server")
	s.started = s.counter(meter, "gridcombat.battles.started", "Live battles created.")
	s.turns = s.counter(meter, "gridcombat.turns.played", "Turns resolved for live battles.")
	return s
}

// counter falls back to a no-op instrument when the meter refuses name.
func (s *Server) counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		s.log.Warn().Err(err).Str("counter", name).Msg("create counter")
		return noop.Int64Counter{}
	}
	return c
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api.HandleFunc("/battles", s.createBattle).Methods(http.MethodPost)
	api.HandleFunc("/battles/{id}", s.getBattle).Methods(http.MethodGet)
	api.HandleFunc("/battles/{id}/turns", s.playTurn).Methods(http.MethodPost)
	api.HandleFunc("/battles/{id}/preview", s.preview).Methods(http.MethodPost)
	api.HandleFunc("/battles/{id}/units/{slot:[0-9]+}/abilities", s.abilities).Methods(http.MethodGet)
	api.HandleFunc("/battles/{id}/units/{slot:[0-9]+}/abilities/{ability}/targets", s.targets).Methods(http.MethodGet)
	api.HandleFunc("/battles/{id}/stream", s.stream).Methods(http.MethodGet)

	api.HandleFunc("/reports", s.listReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id}", s.getReport).Methods(http.MethodGet)

	// Subrouters answer misses themselves, so both routers need the JSON handlers.
	for _, router := range []*mux.Router{r, api} {
		router.NotFoundHandler = http.HandlerFunc(notFound)
		router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}
	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed")
}

func (s *Server) session(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.battles[id]
	if !ok {
		return nil, errBattleNotFound
	}
	return sess, nil
}

func (s *Server) add(sess *session) {
	s.mu.Lock()
	s.battles[sess.state.ID] = sess
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   http.StatusText(code),
		"message": msg,
		"status":  code,
	})
}

// statusOf maps engine and storage errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errBattleNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, battle.ErrBattleOver), errors.Is(err, battle.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, battle.ErrInvalidTarget),
		errors.Is(err, battle.ErrAbilityUnavailable),
		errors.Is(err, battle.ErrUnknownUnit),
		errors.Is(err, battle.ErrSlotOccupied),
		errors.Is(err, battle.ErrNoWaves),
		errors.Is(err, grid.ErrInvalidSlot):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, code, err.Error())
}
