package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/game-arena/internal/domain"
)

const sessionTTL = 24 * time.Hour

// Store keeps live sessions in Redis, indexed by participant. Terminal
// sessions age out with the TTL; the durable archive is the Repository.
type Store struct {
	rdb *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for arena store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) Save(ctx context.Context, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(sess.ID), raw, sessionTTL).Err()
}

// SaveCAS persists the session only if the stored ledger still has
// expectMoves entries. A longer ledger means another writer committed a move
// between our load and save; the caller treats that as a stale turn.
func (s *Store) SaveCAS(ctx context.Context, sess *domain.Session, expectMoves int) error {
	key := sessionKey(sess.ID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var stored domain.Session
		if jerr := json.Unmarshal(raw, &stored); jerr != nil {
			return jerr
		}
		if stored.Status.Terminal() || len(stored.Moves) != expectMoves {
			return redis.TxFailedErr
		}

		newRaw, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, sessionTTL)
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	if err == redis.TxFailedErr {
		return ErrStaleSession
	}
	return err
}

func (s *Store) Load(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// IndexParticipants records which sessions a participant is seated in.
func (s *Store) IndexParticipants(ctx context.Context, sessionID string, participantIDs ...string) error {
	for _, pid := range participantIDs {
		if strings.TrimSpace(pid) == "" {
			continue
		}
		key := idxParticipantKey(pid)
		if err := s.rdb.SAdd(ctx, key, sessionID).Err(); err != nil {
			return err
		}
		// keep index TTL in step with session TTL
		_ = s.rdb.Expire(ctx, key, sessionTTL).Err()
	}
	return nil
}

// SessionsByParticipant returns the live session ids a participant is seated in.
func (s *Store) SessionsByParticipant(ctx context.Context, participantID string) ([]string, error) {
	return s.rdb.SMembers(ctx, idxParticipantKey(participantID)).Result()
}

func sessionKey(id string) string { return "arena:session:" + strings.TrimSpace(id) }

func idxParticipantKey(pid string) string { return "arena:index:participant:" + strings.TrimSpace(pid) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
