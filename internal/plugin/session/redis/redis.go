// Package redis stores login sessions in Redis with a TTL per session.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medb/medb/internal/config"
	registrysession "github.com/medb/medb/internal/registry/session"
	"github.com/medb/medb/internal/security"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 24 * time.Hour
	keyPrefix  = "medb:session:"
)

func init() {
	registrysession.Register(registrysession.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registrysession.Store, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis sessions: MEDB_REDIS_URL is required")
	}
	return LoadFromURL(ctx, cfg.RedisURL)
}

// LoadFromURL creates a session store from a Redis URL.
func LoadFromURL(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis sessions: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis sessions: ping failed: %w", err)
	}
	return &Store{client: client}, nil
}

// Store implements registrysession.Store. Keys are hashes of the token so a
// Redis dump does not leak usable cookies.
type Store struct {
	client *goredis.Client
}

func key(token string) string {
	return fmt.Sprintf("%s%x", keyPrefix, sha256.Sum256([]byte(token)))
}

func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()
	data, err := json.Marshal(registrysession.Session{
		ID:        token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, key(token), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return token, nil
}

func (s *Store) Lookup(ctx context.Context, token string) (*registrysession.Session, error) {
	data, err := s.client.Get(ctx, key(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		security.CountSessionLookup("redis", "miss")
		return nil, registrysession.ErrNotFound
	}
	if err != nil {
		security.CountSessionLookup("redis", "error")
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	var sess registrysession.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		security.CountSessionLookup("redis", "error")
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	security.CountSessionLookup("redis", "hit")
	return &sess, nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ registrysession.Store = (*Store)(nil)
