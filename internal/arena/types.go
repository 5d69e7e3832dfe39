package arena

import (
	"context"
	"errors"

	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/session"
)

var (
	// ErrSessionNotFound means no live session exists under the id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrParticipantNotFound means a requested participant id is unknown.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrStaleSession means a concurrent writer advanced the session between
	// load and commit. Callers see it as a turn rejection.
	ErrStaleSession = errors.New("session modified concurrently")
)

// TurnEvent signals that a committed move (or session start) left the
// session in_progress with the given seat to act. The session itself knows
// nothing about humans vs agents; the orchestrator decides whether to call
// the move provider.
type TurnEvent struct {
	SessionID string
	GameType  domain.GameType
	Seat      int
}

// Repository archives terminal sessions and owns participant records. The
// completion path must be atomic: session result rows and both rating
// updates commit together, and reapplying a completed session is a no-op.
type Repository interface {
	GetParticipant(ctx context.Context, id string) (*domain.Participant, error)
	ListParticipants(ctx context.Context) ([]*domain.Participant, error)
	UpsertParticipant(ctx context.Context, p *domain.Participant) error

	// SaveResult archives a terminal session together with its move ledger
	// and, for completed sessions, the rating updates. Idempotent.
	SaveResult(ctx context.Context, s *domain.Session, updates []session.RatingUpdate) error

	Close() error
}
