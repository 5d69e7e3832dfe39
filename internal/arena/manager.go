// Package arena coordinates game sessions: it assigns participants to seats,
// routes moves to the owning session under a per-session lock, archives
// terminal results, and drives agent turn-taking through the move provider.
package arena

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/game-arena/internal/agent"
	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/obslog"
	"github.com/park285/game-arena/internal/rules"
	"github.com/park285/game-arena/internal/session"
)

const turnEventBuffer = 64

type Manager struct {
	engine   *session.Engine
	registry *rules.Registry
	store    *Store
	repo     Repository
	provider agent.Provider

	agentTimeout time.Duration
	events       chan TurnEvent
	logger       *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type ManagerOption func(*Manager)

// WithAgentTimeout bounds each move provider call.
func WithAgentTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.agentTimeout = d
		}
	}
}

func NewManager(engine *session.Engine, registry *rules.Registry, store *Store, repo Repository, provider agent.Provider, opts ...ManagerOption) *Manager {
	m := &Manager{
		engine:       engine,
		registry:     registry,
		store:        store,
		repo:         repo,
		provider:     provider,
		agentTimeout: 30 * time.Second,
		events:       make(chan TurnEvent, turnEventBuffer),
		locks:        make(map[string]*sync.Mutex),
		logger:       obslog.L(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events exposes the turn-advanced stream. The agent loop is its normal
// consumer; tests may drain it directly.
func (m *Manager) Events() <-chan TurnEvent { return m.events }

// CreateSession seats the participants, builds the initial state through the
// rules adapter, persists the session in waiting, then starts it. Roster
// bounds are validated before anything is persisted.
func (m *Manager) CreateSession(ctx context.Context, gt domain.GameType, participantIDs []string) (*domain.Session, error) {
	roster := make([]domain.SeatBinding, 0, len(participantIDs))
	for _, pid := range participantIDs {
		p, err := m.repo.GetParticipant(ctx, pid)
		if err != nil {
			return nil, err
		}
		roster = append(roster, domain.SeatBinding{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Human:         p.Human,
			RatingBefore:  p.Rating(gt),
		})
	}

	sess, err := m.engine.NewSession(gt, roster)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	if err := m.engine.Start(sess); err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	if err := m.store.IndexParticipants(ctx, sess.ID, participantIDs...); err != nil {
		return nil, err
	}

	m.logger.Info("session_create",
		zap.String("session_id", sess.ID),
		zap.String("game_type", string(gt)),
		zap.Int("seats", len(sess.Roster)),
	)
	m.emit(TurnEvent{SessionID: sess.ID, GameType: gt, Seat: sess.Turn})
	return sess, nil
}

// GetSession loads a live session from the store.
func (m *Manager) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return m.store.Load(ctx, id)
}

// LegalMoves enumerates the current choice set for a seat.
func (m *Manager) LegalMoves(ctx context.Context, sessionID string, seat int) ([]json.RawMessage, error) {
	sess, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.engine.LegalMoves(sess, seat)
}

// SubmitMove validates, applies, and persists one move under the session's
// lock. The commit is double-checked against the store with a ledger-length
// CAS: losing the race surfaces as NotYourTurn rather than a silent
// overwrite. Terminal results are archived with their rating updates; an
// in_progress session emits a turn event for the next seat.
func (m *Manager) SubmitMove(ctx context.Context, sessionID string, seat int, payload json.RawMessage, latency time.Duration) (*session.MoveResult, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	expect := len(sess.Moves)

	result, err := m.engine.SubmitMove(sess, seat, payload, latency)
	if err != nil {
		return nil, err
	}

	if err := m.store.SaveCAS(ctx, sess, expect); err != nil {
		if errors.Is(err, ErrStaleSession) {
			return nil, session.ErrNotYourTurn
		}
		return nil, err
	}

	m.logger.Info("session_move",
		zap.String("session_id", sess.ID),
		zap.Int("seq", result.Record.Seq),
		zap.Int("seat", seat),
		zap.String("notation", result.Record.Notation),
		zap.String("status", string(sess.Status)),
	)

	if sess.Status.Terminal() {
		m.archive(ctx, sess, result.RatingUpdates)
	} else {
		m.emit(TurnEvent{SessionID: sess.ID, GameType: sess.GameType, Seat: sess.Turn})
	}
	return result, nil
}

// Abort transitions the session to aborted and archives it. Ratings are
// never touched on abort.
func (m *Manager) Abort(ctx context.Context, sessionID, reason string) (*domain.Session, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := m.engine.Abort(sess, reason); err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	m.archive(ctx, sess, nil)
	return sess, nil
}

// ServeAgents consumes turn events until the context ends, handling each in
// its own goroutine so a slow provider on one session never blocks another.
func (m *Manager) ServeAgents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			go func(ev TurnEvent) {
				if err := m.RunAgentTurn(ctx, ev); err != nil {
					m.logger.Warn("agent_turn_error",
						zap.String("session_id", ev.SessionID),
						zap.Int("seat", ev.Seat),
						zap.Error(err),
					)
				}
			}(ev)
		}
	}
}

// RunAgentTurn handles one turn event: if the seat is bound to an agent, it
// asks the provider to choose from the legal-move set and resubmits the
// answer through the normal move path. The provider call runs without the
// session lock; a stale answer is rejected by SubmitMove. Provider failures
// leave the turn open and are returned, never retried here.
func (m *Manager) RunAgentTurn(ctx context.Context, ev TurnEvent) error {
	sess, err := m.store.Load(ctx, ev.SessionID)
	if err != nil {
		return err
	}
	if sess.Status != domain.StatusInProgress || sess.Turn != ev.Seat {
		return nil
	}
	binding := sess.SeatOf(ev.Seat)
	if binding == nil || binding.Human {
		return nil
	}

	legal, err := m.engine.LegalMoves(sess, ev.Seat)
	if err != nil {
		return err
	}

	req := agent.Request{
		SessionID:  sess.ID,
		GameType:   sess.GameType,
		Seat:       ev.Seat,
		State:      sess.CurrentState,
		LegalMoves: legal,
	}
	if p, perr := m.repo.GetParticipant(ctx, binding.ParticipantID); perr == nil {
		req.Provider = p.Provider
		req.ModelID = p.ModelID
	}

	cctx, cancel := context.WithTimeout(ctx, m.agentTimeout)
	defer cancel()

	start := time.Now()
	move, err := m.provider.ChooseMove(cctx, req)
	if err != nil {
		m.logger.Warn("agent_move_error",
			zap.String("session_id", sess.ID),
			zap.Int("seat", ev.Seat),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: session %s seat %d: %v", agent.ErrProvider, sess.ID, ev.Seat, err)
	}

	_, err = m.SubmitMove(ctx, sess.ID, ev.Seat, move, time.Since(start))
	if errors.Is(err, session.ErrNotYourTurn) {
		// turn moved on while the provider was thinking
		return nil
	}
	return err
}

// archive persists a terminal session to the repository. The repository call
// is idempotent, so a failed attempt can be retried later by re-archiving.
func (m *Manager) archive(ctx context.Context, sess *domain.Session, updates []session.RatingUpdate) {
	if err := m.repo.SaveResult(ctx, sess, updates); err != nil {
		m.logger.Error("session_archive_error",
			zap.String("session_id", sess.ID),
			zap.String("status", string(sess.Status)),
			zap.Error(err),
		)
		return
	}
	m.logger.Info("session_archive",
		zap.String("session_id", sess.ID),
		zap.String("status", string(sess.Status)),
		zap.String("winner_id", sess.WinnerID),
	)
}

func (m *Manager) emit(ev TurnEvent) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("turn_event_dropped", zap.String("session_id", ev.SessionID))
	}
}

func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}
