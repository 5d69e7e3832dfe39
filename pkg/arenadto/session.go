package arenadto

import (
	"encoding/json"
	"time"
)

type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Human       bool   `json:"human"`
	Provider    string `json:"provider,omitempty"`
	ModelID     string `json:"model_id,omitempty"`
	EloChess    int    `json:"elo_chess"`
	EloPoker    int    `json:"elo_poker"`
}

type Seat struct {
	Seat         int    `json:"seat"`
	Participant  string `json:"participant_id"`
	DisplayName  string `json:"display_name"`
	Human        bool   `json:"human"`
	RatingBefore int    `json:"rating_before"`
	RatingAfter  *int   `json:"rating_after,omitempty"`
}

type Move struct {
	Seq       int             `json:"seq"`
	Seat      int             `json:"seat"`
	Payload   json.RawMessage `json:"payload"`
	Notation  string          `json:"notation,omitempty"`
	LatencyMS int64           `json:"latency_ms"`
	PlayedAt  time.Time       `json:"played_at"`
}

type Session struct {
	ID          string          `json:"id"`
	GameType    string          `json:"game_type"`
	Status      string          `json:"status"`
	State       json.RawMessage `json:"state"`
	Seats       []Seat          `json:"seats"`
	Turn        int             `json:"turn"`
	WinnerID    string          `json:"winner_id,omitempty"`
	WinnerSeat  *int            `json:"winner_seat,omitempty"`
	Moves       []Move          `json:"moves"`
	AbortReason string          `json:"abort_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
}
