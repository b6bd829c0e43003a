package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/combat/battle"
	"github.com/feiai2017/gridcombat/internal/combat/grid"
	"github.com/feiai2017/gridcombat/internal/combat/preview"
	"github.com/feiai2017/gridcombat/internal/storage"
	"github.com/feiai2017/gridcombat/internal/util"
)

type createBattleRequest struct {
	Setup battle.Setup `json:"setup"`
	// Seed of zero draws a fresh one.
	Seed int64 `json:"seed"`
}

type createBattleResponse struct {
	Seed  int64         `json:"seed"`
	State *battle.State `json:"state"`
}

func (s *Server) createBattle(w http.ResponseWriter, r *http.Request) {
	var req createBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	seed := req.Seed
	if seed == 0 {
		var err error
		if seed, err = s.seed(); err != nil {
			s.fail(w, r, fmt.Errorf("seed: %w", err))
			return
		}
	}
	state, err := s.engine.InitializeBattle(req.Setup)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess := &session{state: state, rng: util.New(seed), seed: seed, name: req.Setup.Name}
	s.add(sess)
	s.started.Add(r.Context(), 1)
	s.log.Info().Str("battle", state.ID).Int64("seed", seed).Int("waves", state.TotalWaves).Msg("battle created")
	writeJSON(w, http.StatusCreated, createBattleResponse{Seed: seed, State: state})
}

func (s *Server) getBattle(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, http.StatusOK, sess.state)
}

type turnResponse struct {
	Turn    battle.Turn     `json:"turn"`
	State   *battle.State   `json:"state"`
	Outcome *battle.Outcome `json:"outcome,omitempty"`
}

// playTurn resolves the active side's turn. The body is an optional
// battle.Choice; without one the AI acts.
func (s *Server) playTurn(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var choice *battle.Choice
	var c battle.Choice
	switch err := json.NewDecoder(r.Body).Decode(&c); {
	case errors.Is(err, io.EOF):
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	default:
		choice = &c
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if s.engine.EnforceTurnLimit(sess.state, s.maxTurns) {
		s.finish(r.Context(), sess)
		s.fail(w, r, battle.ErrBattleOver)
		return
	}
	if choice != nil && sess.state.Active != grid.SidePlayer {
		s.fail(w, r, fmt.Errorf("%s acts on its own: %w", sess.state.Active, battle.ErrNotYourTurn))
		return
	}
	turn, err := s.engine.PlayTurn(sess.state, choice, sess.rng)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.turns.Add(r.Context(), 1)
	resp := turnResponse{Turn: turn, State: sess.state}
	if sess.state.Over() {
		out := s.finish(r.Context(), sess)
		resp.Outcome = &out
	}
	writeJSON(w, http.StatusOK, resp)
}

func side(r *http.Request) (grid.Side, error) {
	var sd grid.Side
	v := r.URL.Query().Get("side")
	if v == "" {
		return grid.SidePlayer, nil
	}
	if err := sd.UnmarshalText([]byte(v)); err != nil {
		return sd, err
	}
	return sd, nil
}

func slotVar(r *http.Request) int {
	// The route pattern guarantees digits.
	slot, _ := strconv.Atoi(mux.Vars(r)["slot"])
	return slot
}

func (s *Server) abilities(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sd, err := side(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	profiles, err := s.engine.AvailableAbilities(sess.state, sd, slotVar(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []catalog.AbilityProfile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) targets(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sd, err := side(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	slots, err := s.engine.ValidTargets(sess.state, sd, slotVar(r), mux.Vars(r)["ability"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if slots == nil {
		slots = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": slots})
}

type previewRequest struct {
	Side      grid.Side `json:"side"`
	Slot      int       `json:"slot"`
	AbilityID string    `json:"ability_id"`
	WeaponID  string    `json:"weapon_id,omitempty"`
	Target    int       `json:"target"`
}

// preview estimates an ability use against the current state without
// changing it.
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	st := sess.state
	attacker, ok := st.UnitAt(req.Side, req.Slot)
	if !ok {
		s.fail(w, r, fmt.Errorf("%s slot %d: %w", req.Side, req.Slot, battle.ErrUnknownUnit))
		return
	}
	p, ok := s.engine.AbilityProfile(attacker, req.AbilityID, req.WeaponID)
	if !ok {
		s.fail(w, r, fmt.Errorf("%q: %w", req.AbilityID, battle.ErrAbilityUnavailable))
		return
	}
	ests, err := preview.Ability(preview.Request{
		Catalog:     s.engine.Catalog(),
		Profile:     p,
		Attacker:    attacker,
		Environment: st.Environment,
	}, req.Target, st.Units(req.Side.Opponent()))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", grid.ErrInvalidSlot, err))
		return
	}
	if ests == nil {
		ests = []preview.Estimate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ability": p, "estimates": ests})
}

// finish summarizes an ended battle and stores its report once.
func (s *Server) finish(ctx context.Context, sess *session) battle.Outcome {
	out := battle.Summarize(sess.state)
	if sess.saved || s.store == nil {
		return out
	}
	rep, err := storage.NewReport(sess.name, sess.seed, out, sess.state, true)
	if err == nil {
		err = s.store.SaveReport(ctx, rep)
	}
	if err != nil {
		s.log.Error().Err(err).Str("battle", sess.state.ID).Msg("save report")
		return out
	}
	sess.saved = true
	s.log.Info().Str("battle", sess.state.ID).Str("report", rep.ID).Stringer("winner", out.Winner).Msg("battle report saved")
	return out
}
