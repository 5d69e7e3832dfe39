package arena

import (
	"errors"

	"github.com/park285/game-arena/internal/agent"
	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/session"
	"github.com/park285/game-arena/pkg/arenadto"
)

// ToDTO converts a session for outward consumers. Hidden per-seat detail
// (poker hole cards) stays inside the opaque state blob; redaction per
// viewer is the rules adapter's concern, not done here.
func ToDTO(s *domain.Session) *arenadto.Session {
	if s == nil {
		return nil
	}
	dto := &arenadto.Session{
		ID:          s.ID,
		GameType:    string(s.GameType),
		Status:      string(s.Status),
		State:       s.CurrentState,
		Turn:        s.Turn,
		WinnerID:    s.WinnerID,
		WinnerSeat:  s.WinnerSeat,
		AbortReason: s.AbortReason,
		CreatedAt:   s.CreatedAt,
	}
	if !s.EndedAt.IsZero() {
		t := s.EndedAt
		dto.EndedAt = &t
	}
	for _, b := range s.Roster {
		dto.Seats = append(dto.Seats, arenadto.Seat{
			Seat:         b.Seat,
			Participant:  b.ParticipantID,
			DisplayName:  b.DisplayName,
			Human:        b.Human,
			RatingBefore: b.RatingBefore,
			RatingAfter:  b.RatingAfter,
		})
	}
	for _, mv := range s.Moves {
		dto.Moves = append(dto.Moves, arenadto.Move{
			Seq:       mv.Seq,
			Seat:      mv.Seat,
			Payload:   mv.Payload,
			Notation:  mv.Notation,
			LatencyMS: mv.LatencyMS,
			PlayedAt:  mv.PlayedAt,
		})
	}
	return dto
}

// ToDomainError maps engine errors onto stable outward codes.
func ToDomainError(err error) *arenadto.DomainError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, session.ErrInvalidRoster):
		return &arenadto.DomainError{Code: arenadto.CodeInvalidRoster, Message: err.Error()}
	case errors.Is(err, session.ErrNotYourTurn):
		return &arenadto.DomainError{Code: arenadto.CodeNotYourTurn, Message: err.Error(), Retryable: true}
	case errors.Is(err, session.ErrIllegalMove):
		return &arenadto.DomainError{Code: arenadto.CodeIllegalMove, Message: err.Error(), Retryable: true}
	case errors.Is(err, session.ErrSessionTerminal):
		return &arenadto.DomainError{Code: arenadto.CodeSessionTerminal, Message: err.Error()}
	case errors.Is(err, agent.ErrProvider):
		return &arenadto.DomainError{Code: arenadto.CodeAgentProvider, Message: err.Error(), Retryable: true}
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrParticipantNotFound):
		return &arenadto.DomainError{Code: arenadto.CodeNotFound, Message: err.Error()}
	default:
		return &arenadto.DomainError{Code: arenadto.CodeInternal, Message: err.Error()}
	}
}
