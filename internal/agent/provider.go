// Package agent defines the move provider collaborator: an opaque, possibly
// slow, possibly failing capability that picks a move for a non-human seat.
package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/park285/game-arena/internal/domain"
)

// ErrProvider wraps every provider failure (transport, timeout, unusable
// response). The pending turn stays open; the orchestrator surfaces the
// error instead of retrying.
var ErrProvider = errors.New("agent provider failure")

// Request carries everything a provider needs to choose a move.
type Request struct {
	SessionID  string            `json:"session_id"`
	GameType   domain.GameType   `json:"game_type"`
	Seat       int               `json:"seat"`
	Provider   string            `json:"provider,omitempty"`
	ModelID    string            `json:"model_id,omitempty"`
	State      json.RawMessage   `json:"state"`
	LegalMoves []json.RawMessage `json:"legal_moves"`
}

// Provider chooses a move for a non-human seat. Implementations may block on
// network round trips; callers bound them with the context and must not hold
// session locks across the call.
type Provider interface {
	ChooseMove(ctx context.Context, req Request) (json.RawMessage, error)
}

// FirstLegal is a trivial provider that plays the first legal move. Used as
// a wiring fallback and in tests.
type FirstLegal struct{}

func (FirstLegal) ChooseMove(_ context.Context, req Request) (json.RawMessage, error) {
	if len(req.LegalMoves) == 0 {
		return nil, ErrProvider
	}
	return req.LegalMoves[0], nil
}

// Scripted replays a fixed move list, one per call. Test helper.
type Scripted struct {
	Moves []json.RawMessage
	next  int
}

func (s *Scripted) ChooseMove(_ context.Context, _ Request) (json.RawMessage, error) {
	if s.next >= len(s.Moves) {
		return nil, ErrProvider
	}
	mv := s.Moves[s.next]
	s.next++
	return mv, nil
}
