package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// streamMessage is one websocket frame.
type streamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// stream upgrades to a websocket and lets the AI play the rest of the battle
// for both sides, sending each turn and finally the outcome.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.log.Warn().Err(err).Msg("ws upgrade")
		return
	}
	defer conn.Close()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	st := sess.state
	s.log.Debug().Str("battle", st.ID).Str("remote", r.RemoteAddr).Msg("ws stream")

	send := func(typ string, data any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(streamMessage{Type: typ, Data: data}); err != nil {
			s.log.Warn().Err(err).Str("battle", st.ID).Msg("ws write")
			return false
		}
		return true
	}

	for !st.Over() {
		if r.Context().Err() != nil {
			return
		}
		if s.engine.EnforceTurnLimit(st, s.maxTurns) {
			break
		}
		turn, err := s.engine.PlayTurn(st, nil, sess.rng)
		if err != nil {
			send("error", err.Error())
			return
		}
		s.turns.Add(r.Context(), 1)
		if !send("turn", turn) {
			return
		}
	}

	out := s.finish(r.Context(), sess)
	send("outcome", out)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "battle over"),
		time.Now().Add(writeWait))
}
