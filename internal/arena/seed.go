package arena

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/park285/game-arena/internal/domain"
)

// SeedParticipants inserts a starter catalog of model participants when the
// repository is empty, so a fresh deployment always has opponents to seat.
func SeedParticipants(ctx context.Context, repo Repository, defaultRating int) error {
	existing, err := repo.ListParticipants(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	catalog := []struct {
		name     string
		provider string
		modelID  string
	}{
		{"GPT-4", "openai", "gpt-4"},
		{"Claude-3", "anthropic", "claude-3-opus"},
		{"GPT-3.5", "openai", "gpt-3.5-turbo"},
		{"Gemini-Pro", "google", "gemini-pro"},
	}

	now := time.Now()
	for _, entry := range catalog {
		p := &domain.Participant{
			ID:          uuid.NewString(),
			DisplayName: entry.name,
			Provider:    entry.provider,
			ModelID:     entry.modelID,
			EloChess:    defaultRating,
			EloPoker:    defaultRating,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repo.UpsertParticipant(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
