package domain

import (
	"encoding/json"
	"time"
)

// GameType identifies the rule set a session plays under.
type GameType string

const (
	GameChess GameType = "chess"
	GamePoker GameType = "poker"
)

// Status represents a session lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
)

// Terminal reports whether no further moves are accepted in this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Participant is a human or model identity with one rating per game type.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Human       bool      `json:"human"`
	Provider    string    `json:"provider,omitempty"`
	ModelID     string    `json:"model_id,omitempty"`
	EloChess    int       `json:"elo_chess"`
	EloPoker    int       `json:"elo_poker"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rating returns the participant's rating for the given game type.
func (p *Participant) Rating(gt GameType) int {
	if gt == GamePoker {
		return p.EloPoker
	}
	return p.EloChess
}

// SetRating updates the rating for the given game type.
func (p *Participant) SetRating(gt GameType, rating int) {
	if gt == GamePoker {
		p.EloPoker = rating
		return
	}
	p.EloChess = rating
}

// SeatBinding ties one roster slot to a participant for a session's duration.
// RatingBefore is captured at session start; RatingAfter is written only when
// the session completes.
type SeatBinding struct {
	Seat          int    `json:"seat"`
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Human         bool   `json:"human"`
	RatingBefore  int    `json:"rating_before"`
	RatingAfter   *int   `json:"rating_after,omitempty"`
}

// MoveRecord is one immutable move ledger entry. Sequence numbers are
// monotonic per session, starting at 1, with no gaps.
type MoveRecord struct {
	Seq           int             `json:"seq"`
	Seat          int             `json:"seat"`
	ParticipantID string          `json:"participant_id"`
	Payload       json.RawMessage `json:"payload"`
	Notation      string          `json:"notation,omitempty"`
	LatencyMS     int64           `json:"latency_ms"`
	PlayedAt      time.Time       `json:"played_at"`
}

// Session is the full persisted state of one game session. The state
// snapshots are opaque to the engine; their semantics belong to the rules
// adapter for the session's game type.
type Session struct {
	ID           string          `json:"id"`
	GameType     GameType        `json:"game_type"`
	Status       Status          `json:"status"`
	InitialState json.RawMessage `json:"initial_state"`
	CurrentState json.RawMessage `json:"current_state"`
	Roster       []SeatBinding   `json:"roster"`
	Turn         int             `json:"turn"`
	WinnerSeat   *int            `json:"winner_seat,omitempty"`
	WinnerID     string          `json:"winner_id,omitempty"`
	Moves        []MoveRecord    `json:"moves"`
	AbortReason  string          `json:"abort_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    time.Time       `json:"started_at,omitzero"`
	EndedAt      time.Time       `json:"ended_at,omitzero"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SeatOf returns the binding for seat, or nil when out of range.
func (s *Session) SeatOf(seat int) *SeatBinding {
	if seat < 0 || seat >= len(s.Roster) {
		return nil
	}
	return &s.Roster[seat]
}

// SeatByParticipant returns the seat index bound to the participant, or -1.
func (s *Session) SeatByParticipant(participantID string) int {
	for i := range s.Roster {
		if s.Roster[i].ParticipantID == participantID {
			return i
		}
	}
	return -1
}

// LastMove returns the most recent ledger entry, or nil for a fresh session.
func (s *Session) LastMove() *MoveRecord {
	if len(s.Moves) == 0 {
		return nil
	}
	return &s.Moves[len(s.Moves)-1]
}
