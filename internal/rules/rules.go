package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/park285/game-arena/internal/domain"
)

var (
	// ErrIllegalMove is returned by Apply when the payload is not a legal
	// move in the given state. The state is never modified on rejection.
	ErrIllegalMove = errors.New("illegal move")

	// ErrUnknownGameType is returned by the registry for an unregistered tag.
	ErrUnknownGameType = errors.New("unknown game type")
)

// Adapter is the per-game-type rules capability. Implementations must be
// pure functions of their inputs: Apply copies the decoded state and returns
// a new snapshot, so replaying a move ledger from the initial state always
// reproduces the recorded current state. The only randomness allowed is
// inside InitialState (deck shuffling), whose result is captured in the
// returned snapshot.
type Adapter interface {
	GameType() domain.GameType

	// SeatBounds reports the inclusive roster size limits.
	SeatBounds() (min, max int)

	// InitialState builds the starting snapshot for the given seat count.
	InitialState(seats int) (json.RawMessage, error)

	// LegalMoves enumerates the payloads the seat may submit in this state.
	LegalMoves(state json.RawMessage, seat int) ([]json.RawMessage, error)

	// Apply validates and applies a move, returning the successor state or
	// ErrIllegalMove.
	Apply(state json.RawMessage, seat int, move json.RawMessage) (json.RawMessage, error)

	// IsTerminal reports whether the state admits no further moves, and the
	// winning seat (-1 for none/draw).
	IsTerminal(state json.RawMessage) (terminal bool, winnerSeat int, err error)

	// NextSeat reports which seat is to act in this state.
	NextSeat(state json.RawMessage) (int, error)
}

// Notator is an optional adapter capability turning a move payload into a
// display string. Purely derived; never affects engine state.
type Notator interface {
	Notate(state json.RawMessage, seat int, move json.RawMessage) (string, error)
}

// Registry maps game type tags to adapters. Owned by the orchestrator,
// populated at process start.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.GameType]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[domain.GameType]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.GameType()] = a
}

func (r *Registry) Get(gt domain.GameType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[gt]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGameType, gt)
	}
	return a, nil
}
