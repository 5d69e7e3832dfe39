// Package session owns the game session state machine: status transitions,
// move validation and commit, turn ordering, and rating updates on
// completion. It is the sole mutator of a session's state; persistence and
// agent turn-taking live in the arena orchestrator.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/obslog"
	"github.com/park285/game-arena/internal/rating"
	"github.com/park285/game-arena/internal/rules"
)

// RatingUpdate is one participant's rating change from a completed session.
type RatingUpdate struct {
	ParticipantID string
	Seat          int
	Before        int
	After         int
}

// MoveResult reports the outcome of a committed move.
type MoveResult struct {
	Record        domain.MoveRecord
	Completed     bool
	WinnerSeat    int // -1 for draw or not completed
	RatingUpdates []RatingUpdate
}

type Engine struct {
	registry *rules.Registry
	calc     *rating.Calculator
	logger   *zap.Logger
}

func NewEngine(registry *rules.Registry, calc *rating.Calculator) *Engine {
	return &Engine{registry: registry, calc: calc, logger: obslog.L()}
}

// NewSession builds a session in waiting with its initial state snapshot.
// The roster must already carry rating_before values captured from the
// participants.
func (e *Engine) NewSession(gt domain.GameType, roster []domain.SeatBinding) (*domain.Session, error) {
	adapter, err := e.registry.Get(gt)
	if err != nil {
		return nil, err
	}
	if err := checkRoster(adapter, len(roster)); err != nil {
		return nil, err
	}

	initial, err := adapter.InitialState(len(roster))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	seats := make([]domain.SeatBinding, len(roster))
	copy(seats, roster)
	for i := range seats {
		seats[i].Seat = i
	}

	return &domain.Session{
		ID:           uuid.NewString(),
		GameType:     gt,
		Status:       domain.StatusWaiting,
		InitialState: initial,
		CurrentState: initial,
		Roster:       seats,
		Moves:        []domain.MoveRecord{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Start transitions waiting → in_progress once the roster is complete and
// points the turn at the adapter's opening seat.
func (e *Engine) Start(s *domain.Session) error {
	if s.Status.Terminal() {
		return ErrSessionTerminal
	}
	if s.Status == domain.StatusInProgress {
		return nil
	}
	adapter, err := e.registry.Get(s.GameType)
	if err != nil {
		return err
	}
	if err := checkRoster(adapter, len(s.Roster)); err != nil {
		return err
	}
	turn, err := adapter.NextSeat(s.CurrentState)
	if err != nil {
		return err
	}

	now := time.Now()
	s.Status = domain.StatusInProgress
	s.Turn = turn
	s.StartedAt = now
	s.UpdatedAt = now
	return nil
}

// LegalMoves enumerates the payloads the seat may submit right now.
func (e *Engine) LegalMoves(s *domain.Session, seat int) ([]json.RawMessage, error) {
	if s.SeatOf(seat) == nil {
		return nil, ErrSeatUnknown
	}
	adapter, err := e.registry.Get(s.GameType)
	if err != nil {
		return nil, err
	}
	return adapter.LegalMoves(s.CurrentState, seat)
}

// SubmitMove validates and applies one move. On rejection the session is
// untouched: validate-then-commit, never commit-then-validate. On a legal
// move it appends the ledger entry, swaps in the successor state, advances
// the turn pointer, and, when the new state is terminal, completes the
// session and applies rating updates exactly once.
func (e *Engine) SubmitMove(s *domain.Session, seat int, payload json.RawMessage, latency time.Duration) (*MoveResult, error) {
	switch {
	case s.Status.Terminal():
		return nil, ErrSessionTerminal
	case s.Status == domain.StatusWaiting:
		return nil, ErrNotStarted
	}
	binding := s.SeatOf(seat)
	if binding == nil {
		return nil, ErrSeatUnknown
	}
	if seat != s.Turn {
		return nil, ErrNotYourTurn
	}

	adapter, err := e.registry.Get(s.GameType)
	if err != nil {
		return nil, err
	}

	// Notation is derived against the pre-move state, before commit.
	var notation string
	if n, ok := adapter.(rules.Notator); ok {
		if text, nerr := n.Notate(s.CurrentState, seat, payload); nerr == nil {
			notation = text
		}
	}

	next, err := adapter.Apply(s.CurrentState, seat, payload)
	if err != nil {
		if errors.Is(err, rules.ErrIllegalMove) {
			return nil, fmt.Errorf("%w: %s", ErrIllegalMove, string(payload))
		}
		return nil, err
	}

	turn, err := adapter.NextSeat(next)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := domain.MoveRecord{
		Seq:           len(s.Moves) + 1,
		Seat:          seat,
		ParticipantID: binding.ParticipantID,
		Payload:       payload,
		Notation:      notation,
		LatencyMS:     latency.Milliseconds(),
		PlayedAt:      now,
	}
	s.Moves = append(s.Moves, record)
	s.CurrentState = next
	s.Turn = turn
	s.UpdatedAt = now

	result := &MoveResult{Record: record, WinnerSeat: -1}

	terminal, winnerSeat, err := adapter.IsTerminal(next)
	if err != nil {
		return nil, err
	}
	if terminal {
		result.Completed = true
		result.WinnerSeat = winnerSeat
		result.RatingUpdates = e.complete(s, winnerSeat, now)
	}
	return result, nil
}

// Abort transitions waiting or in_progress to aborted. Ratings never change
// on abort.
func (e *Engine) Abort(s *domain.Session, reason string) error {
	if s.Status.Terminal() {
		return ErrSessionTerminal
	}
	now := time.Now()
	s.Status = domain.StatusAborted
	s.AbortReason = reason
	s.EndedAt = now
	s.UpdatedAt = now
	e.logger.Info("session_abort",
		zap.String("session_id", s.ID),
		zap.String("game_type", string(s.GameType)),
		zap.String("reason", reason),
	)
	return nil
}

// complete marks the session completed and applies the rating policy. A
// winning seat below zero records a draw (chess) or a split pot (poker).
func (e *Engine) complete(s *domain.Session, winnerSeat int, now time.Time) []RatingUpdate {
	s.Status = domain.StatusCompleted
	s.EndedAt = now
	s.UpdatedAt = now
	if winnerSeat >= 0 && winnerSeat < len(s.Roster) {
		ws := winnerSeat
		s.WinnerSeat = &ws
		s.WinnerID = s.Roster[winnerSeat].ParticipantID
	}

	updates := e.applyRatings(s, winnerSeat)
	e.logger.Info("session_complete",
		zap.String("session_id", s.ID),
		zap.String("game_type", string(s.GameType)),
		zap.String("winner_id", s.WinnerID),
		zap.Int("moves", len(s.Moves)),
	)
	return updates
}

// applyRatings writes rating_after for every seat. Two-seat sessions update
// both sides, including the draw case. Multi-way sessions pair the winner
// against every other seat at full K; a multi-way split leaves ratings
// unchanged.
func (e *Engine) applyRatings(s *domain.Session, winnerSeat int) []RatingUpdate {
	after := make([]int, len(s.Roster))
	for i := range s.Roster {
		after[i] = s.Roster[i].RatingBefore
	}

	switch {
	case len(s.Roster) == 2:
		outcome := rating.Draw
		switch winnerSeat {
		case 0:
			outcome = rating.AWins
		case 1:
			outcome = rating.BWins
		}
		after[0], after[1] = e.calc.Update(after[0], after[1], outcome)
	case winnerSeat >= 0:
		for i := range s.Roster {
			if i == winnerSeat {
				continue
			}
			after[winnerSeat], after[i] = e.calc.Update(after[winnerSeat], after[i], rating.AWins)
		}
	}

	updates := make([]RatingUpdate, len(s.Roster))
	for i := range s.Roster {
		v := after[i]
		s.Roster[i].RatingAfter = &v
		updates[i] = RatingUpdate{
			ParticipantID: s.Roster[i].ParticipantID,
			Seat:          i,
			Before:        s.Roster[i].RatingBefore,
			After:         v,
		}
	}
	return updates
}

// Replay re-applies the move ledger to the initial state and verifies it
// reproduces the recorded current state byte for byte.
func (e *Engine) Replay(s *domain.Session) error {
	adapter, err := e.registry.Get(s.GameType)
	if err != nil {
		return err
	}
	state := s.InitialState
	for _, mv := range s.Moves {
		next, err := adapter.Apply(state, mv.Seat, mv.Payload)
		if err != nil {
			return fmt.Errorf("replay seq %d: %w", mv.Seq, err)
		}
		state = next
	}
	if !bytes.Equal(state, s.CurrentState) {
		return fmt.Errorf("replay divergence: ledger does not reproduce current state")
	}
	return nil
}

func checkRoster(adapter rules.Adapter, seats int) error {
	min, max := adapter.SeatBounds()
	if seats < min || seats > max {
		return fmt.Errorf("%w: %s takes %d-%d seats, got %d",
			ErrInvalidRoster, adapter.GameType(), min, max, seats)
	}
	return nil
}
