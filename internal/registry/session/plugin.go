package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Lookup for unknown, expired or tampered tokens.
var ErrNotFound = errors.New("session not found")

// Session binds an opaque token to a user id. It never carries user data.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists login sessions.
type Store interface {
	// Create starts a session for userID and returns its token.
	Create(ctx context.Context, userID string, ttl time.Duration) (string, error)
	// Lookup resolves a token to its session.
	Lookup(ctx context.Context, token string) (*Session, error)
	// Delete ends a session. Unknown tokens are not an error.
	Delete(ctx context.Context, token string) error
	Close() error
}

// Loader creates a session store from config.
type Loader func(ctx context.Context) (Store, error)

// Plugin represents a session store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a session store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered session store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named session store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown session store %q; valid: %v", name, Names())
}
