package arena

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/session"
)

type pgRepository struct {
	db *sql.DB
}

// NewRepository opens a Postgres-backed repository.
func NewRepository(databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &pgRepository{db: db}, nil
}

func (r *pgRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *pgRepository) GetParticipant(ctx context.Context, id string) (*domain.Participant, error) {
	const q = `
		SELECT id, display_name, human, provider, model_id, elo_chess, elo_poker, created_at, updated_at
		FROM participants WHERE id = $1`
	var (
		p                 domain.Participant
		provider, modelID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.DisplayName, &p.Human, &provider, &modelID,
		&p.EloChess, &p.EloPoker, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	p.Provider = provider.String
	p.ModelID = modelID.String
	return &p, nil
}

func (r *pgRepository) ListParticipants(ctx context.Context) ([]*domain.Participant, error) {
	const q = `
		SELECT id, display_name, human, provider, model_id, elo_chess, elo_poker, created_at, updated_at
		FROM participants ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		var (
			p                 domain.Participant
			provider, modelID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Human, &provider, &modelID,
			&p.EloChess, &p.EloPoker, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Provider = provider.String
		p.ModelID = modelID.String
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *pgRepository) UpsertParticipant(ctx context.Context, p *domain.Participant) error {
	if p == nil {
		return fmt.Errorf("nil participant")
	}
	const q = `
		INSERT INTO participants (id, display_name, human, provider, model_id, elo_chess, elo_poker, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			display_name=EXCLUDED.display_name,
			provider=EXCLUDED.provider,
			model_id=EXCLUDED.model_id,
			elo_chess=EXCLUDED.elo_chess,
			elo_poker=EXCLUDED.elo_poker,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.DisplayName, p.Human,
		nullIfEmpty(p.Provider), nullIfEmpty(p.ModelID),
		p.EloChess, p.EloPoker, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// SaveResult archives a terminal session in one transaction: the session
// row, its seats, the move ledger, and (for completions) both participants'
// new ratings. The session insert is the idempotency guard: if the row
// already exists the whole call is a no-op, so retrying a completed
// session's rating update cannot double-apply.
func (r *pgRepository) SaveResult(ctx context.Context, s *domain.Session, updates []session.RatingUpdate) error {
	if r == nil || r.db == nil || s == nil {
		return nil
	}
	if !s.Status.Terminal() {
		return fmt.Errorf("session %s is not terminal", s.ID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const insertSession = `
		INSERT INTO sessions (
			id, game_type, status, initial_state, current_state,
			winner_seat, winner_id, abort_reason,
			created_at, started_at, ended_at
		) VALUES ($1,$2,$3,$4::jsonb,$5::jsonb,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO NOTHING`

	res, err := tx.ExecContext(ctx, insertSession,
		s.ID, string(s.GameType), string(s.Status),
		string(s.InitialState), string(s.CurrentState),
		nullableSeat(s.WinnerSeat), nullIfEmpty(s.WinnerID), nullIfEmpty(s.AbortReason),
		s.CreatedAt, nullableTime(s.StartedAt), nullableTime(s.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		// already archived
		return tx.Commit()
	}

	const insertSeat = `
		INSERT INTO session_seats (session_id, seat, participant_id, rating_before, rating_after)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (session_id, seat) DO NOTHING`
	for _, b := range s.Roster {
		if _, err := tx.ExecContext(ctx, insertSeat,
			s.ID, b.Seat, b.ParticipantID, b.RatingBefore, nullableSeat(b.RatingAfter)); err != nil {
			return fmt.Errorf("insert seat %d: %w", b.Seat, err)
		}
	}

	const insertMove = `
		INSERT INTO moves (session_id, seq, seat, participant_id, payload, notation, latency_ms, played_at)
		VALUES ($1,$2,$3,$4,$5::jsonb,$6,$7,$8)
		ON CONFLICT (session_id, seq) DO NOTHING`
	for _, mv := range s.Moves {
		if _, err := tx.ExecContext(ctx, insertMove,
			s.ID, mv.Seq, mv.Seat, mv.ParticipantID,
			string(mv.Payload), nullIfEmpty(mv.Notation), mv.LatencyMS, mv.PlayedAt); err != nil {
			return fmt.Errorf("insert move %d: %w", mv.Seq, err)
		}
	}

	ratingColumn := "elo_chess"
	if s.GameType == domain.GamePoker {
		ratingColumn = "elo_poker"
	}
	updateRating := fmt.Sprintf(
		`UPDATE participants SET %s = $1, updated_at = $2 WHERE id = $3`, ratingColumn)
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, updateRating, u.After, s.EndedAt, u.ParticipantID); err != nil {
			return fmt.Errorf("update rating for %s: %w", u.ParticipantID, err)
		}
	}

	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullableSeat(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
