package conversationhistory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"care-assistant/internal/common/database"
	"care-assistant/internal/models"
)

var ErrStoreFailed = errors.New("SESSION_STORE_FAILED")

// Store keeps one JSON-encoded history per session under <prefix>history:<id>.
type Store struct {
	rdb *database.RedisClient
	ttl time.Duration
}

func NewStore(rdb *database.RedisClient, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) key(sessionID string) string {
	return s.rdb.Key("history", sessionID)
}

// Load returns the stored history, or nil for an unknown session.
func (s *Store) Load(ctx context.Context, sessionID string) ([]models.Turn, error) {
	val, err := s.rdb.Client.Get(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrStoreFailed, err)
	}

	var turns []models.Turn
	if err := json.Unmarshal([]byte(val), &turns); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrStoreFailed, err)
	}
	return turns, nil
}

// Save replaces the session's history and refreshes its expiry.
func (s *Store) Save(ctx context.Context, sessionID string, turns []models.Turn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStoreFailed, err)
	}
	if err := s.rdb.Client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save: %v", ErrStoreFailed, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrStoreFailed, err)
	}
	return nil
}
