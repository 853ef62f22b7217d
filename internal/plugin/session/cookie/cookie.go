// Package cookie implements stateless sessions: the token is an HS256 JWT
// carried entirely by the client cookie.
package cookie

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medb/medb/internal/config"
	registrysession "github.com/medb/medb/internal/registry/session"
	"github.com/medb/medb/internal/security"
)

const defaultTTL = 24 * time.Hour

func init() {
	registrysession.Register(registrysession.Plugin{
		Name:   "cookie",
		Loader: load,
	})
}

func load(ctx context.Context) (registrysession.Store, error) {
	cfg := config.FromContext(ctx)
	keys, err := cfg.SessionSigningKeys()
	if err != nil {
		return nil, fmt.Errorf("cookie sessions: %w", err)
	}
	if len(keys) == 0 {
		if cfg != nil && cfg.Mode != config.ModeTesting {
			return nil, fmt.Errorf("cookie sessions: MEDB_SESSION_SECRET is required")
		}
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("cookie sessions: generate key: %w", err)
		}
		log.Warn("No session secret configured; using an ephemeral key, sessions end on restart")
		keys = [][]byte{key}
	}
	return New(keys...), nil
}

// Store implements registrysession.Store. The first key signs; every key verifies.
type Store struct {
	keys [][]byte
}

// New returns a Store signing with keys[0].
func New(keys ...[]byte) *Store {
	return &Store{keys: keys}
}

func (s *Store) Create(_ context.Context, userID string, ttl time.Duration) (string, error) {
	if len(s.keys) == 0 {
		return "", fmt.Errorf("cookie sessions: no signing key")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	signed, err := token.SignedString(s.keys[0])
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (s *Store) Lookup(_ context.Context, token string) (*registrysession.Session, error) {
	c, ok := s.parse(token)
	if !ok || c.Subject == "" || c.ExpiresAt == nil {
		security.CountSessionLookup("cookie", "miss")
		return nil, registrysession.ErrNotFound
	}
	security.CountSessionLookup("cookie", "hit")
	return &registrysession.Session{ID: c.ID, UserID: c.Subject, ExpiresAt: c.ExpiresAt.UTC()}, nil
}

// Delete is a no-op: the client cookie is cleared by the logout handler and
// the signed payload expires on its own.
func (s *Store) Delete(context.Context, string) error {
	return nil
}

func (s *Store) Close() error { return nil }

// parse tries every key; expiry and algorithm are enforced by the parser.
func (s *Store) parse(token string) (*jwt.RegisteredClaims, bool) {
	for _, key := range s.keys {
		var c jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err == nil {
			return &c, true
		}
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, false
		}
	}
	return nil, false
}

var _ registrysession.Store = (*Store)(nil)
