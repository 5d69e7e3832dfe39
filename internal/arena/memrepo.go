package arena

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/session"
)

// memrepo is a development-only in-memory repository used when no DB is
// configured, and by tests.
type memrepo struct {
	mu sync.RWMutex

	participants map[string]*domain.Participant
	sessions     map[string]*domain.Session
}

func NewMemoryRepository() Repository {
	return &memrepo{
		participants: make(map[string]*domain.Participant),
		sessions:     make(map[string]*domain.Session),
	}
}

func (m *memrepo) Close() error { return nil }

func (m *memrepo) GetParticipant(_ context.Context, id string) (*domain.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (m *memrepo) ListParticipants(_ context.Context) ([]*domain.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memrepo) UpsertParticipant(_ context.Context, p *domain.Participant) error {
	if p == nil {
		return fmt.Errorf("nil participant")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.participants[p.ID] = &cp
	return nil
}

func (m *memrepo) SaveResult(_ context.Context, s *domain.Session, updates []session.RatingUpdate) error {
	if s == nil {
		return nil
	}
	if !s.Status.Terminal() {
		return fmt.Errorf("session %s is not terminal", s.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		// already archived, rating updates must not reapply
		return nil
	}
	cp := *s
	m.sessions[s.ID] = &cp

	gt := s.GameType
	for _, u := range updates {
		if p, ok := m.participants[u.ParticipantID]; ok {
			p.SetRating(gt, u.After)
			p.UpdatedAt = s.EndedAt
		}
	}
	return nil
}

// ArchivedSession returns the stored terminal session, for tests.
func (m *memrepo) ArchivedSession(id string) *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}
