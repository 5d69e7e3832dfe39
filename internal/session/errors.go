package session

import "errors"

var (
	// ErrInvalidRoster rejects a seat count outside the game type's bounds.
	// The session never enters in_progress.
	ErrInvalidRoster = errors.New("invalid roster for game type")

	// ErrNotYourTurn rejects a move from a seat other than the turn pointer.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrIllegalMove rejects a payload the rules adapter refuses. State is
	// unchanged.
	ErrIllegalMove = errors.New("illegal move")

	// ErrSessionTerminal rejects operations on a completed or aborted session.
	ErrSessionTerminal = errors.New("session already terminal")

	// ErrNotStarted rejects moves against a session still in waiting.
	ErrNotStarted = errors.New("session not started")

	// ErrSeatUnknown rejects a seat index outside the roster.
	ErrSeatUnknown = errors.New("unknown seat")
)
