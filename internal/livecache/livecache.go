// Package livecache persists the console's last-known-good queue snapshot in
// Redis so a restarted session can render before the first REST snapshot
// lands. It is strictly warm-start data: the next snapshot replaces it.
package livecache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/branchlabs/branch-cli/internal/api"
)

// DefaultTTL is how long a warm snapshot stays usable.
const DefaultTTL = 15 * time.Minute

// ErrDisabled is returned when no Redis address is configured.
var ErrDisabled = errors.New("live cache disabled (no redis address)")

// ErrMiss is returned when no snapshot exists for the key.
var ErrMiss = errors.New("live cache miss")

type envelope struct {
	CachedAt time.Time                  `json:"cached_at"`
	Items    []api.ConversationListItem `json:"items"`
}

// Store is a Redis-backed snapshot store. The zero-value address disables it;
// all operations then return ErrDisabled.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a Store against the given Redis address ("host:port"). An
// empty address yields a disabled store, which is valid and cheap.
func New(addr string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if addr == "" {
		return &Store{ttl: ttl}
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

// NewFromEnv creates a Store from BRANCH_REDIS_ADDR. Unset means disabled.
func NewFromEnv() *Store {
	return New(os.Getenv("BRANCH_REDIS_ADDR"), DefaultTTL)
}

// Enabled reports whether a Redis backend is configured.
func (s *Store) Enabled() bool {
	return s.rdb != nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// queueKey scopes snapshots per (server, agent). The base URL is hashed so
// keys stay short and contain no credentials or hostnames.
func queueKey(baseURL string, agentID int) string {
	sum := sha1.Sum([]byte(baseURL))
	return fmt.Sprintf("branch:queue:%s:%d", hex.EncodeToString(sum[:])[:6], agentID)
}

// SaveQueue stores the current queue snapshot with the store's TTL.
func (s *Store) SaveQueue(ctx context.Context, baseURL string, agentID int, items []api.ConversationListItem) error {
	if s.rdb == nil {
		return ErrDisabled
	}
	data, err := json.Marshal(envelope{CachedAt: time.Now().UTC(), Items: items})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, queueKey(baseURL, agentID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadQueue retrieves the warm snapshot and its capture time.
// Returns ErrMiss when absent or expired.
func (s *Store) LoadQueue(ctx context.Context, baseURL string, agentID int) ([]api.ConversationListItem, time.Time, error) {
	if s.rdb == nil {
		return nil, time.Time{}, ErrDisabled
	}
	data, err := s.rdb.Get(ctx, queueKey(baseURL, agentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, ErrMiss
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load snapshot: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return env.Items, env.CachedAt, nil
}

// Clear removes the snapshot for one (server, agent) pair.
func (s *Store) Clear(ctx context.Context, baseURL string, agentID int) error {
	if s.rdb == nil {
		return ErrDisabled
	}
	return s.rdb.Del(ctx, queueKey(baseURL, agentID)).Err()
}
