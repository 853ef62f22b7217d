package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
)

const (
	maxGeneratedBaseLen = 24
	usernameSuffixTries = 5
)

var (
	usernameStrip   = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	usernameLeading = regexp.MustCompile(`^[^a-zA-Z0-9]+`)
)

// AccountStore is the identity store surface account provisioning needs.
type AccountStore interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// AccountService creates users on their first login.
type AccountService struct {
	store AccountStore
	now   func() time.Time
	// suffix returns a number in [100, 999].
	suffix func() int
}

// NewAccountService returns an AccountService over store.
func NewAccountService(store AccountStore) *AccountService {
	return &AccountService{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		suffix: func() int { return rand.IntN(900) + 100 },
	}
}

// Provision returns the user for an OAuth profile, creating it with default
// buckets and a generated username when it does not exist yet. The boolean
// reports whether the user was created.
func (a *AccountService) Provision(ctx context.Context, p *security.Profile) (*model.User, bool, error) {
	if p == nil || p.Subject == "" {
		return nil, false, &registrystore.ValidationError{Field: "subject", Message: "profile has no subject"}
	}
	user, err := a.store.GetUser(ctx, p.Subject)
	if err == nil {
		return user, false, nil
	}
	var notFound *registrystore.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, false, fmt.Errorf("load user: %w", err)
	}

	username, err := a.GenerateUsername(ctx, p.Name)
	if err != nil {
		return nil, false, err
	}
	user = model.NewUser(p.Subject, p.Name, p.Email, p.Picture, a.now())
	user.Username = username
	if err := a.store.CreateUser(ctx, user); err != nil {
		var conflict *registrystore.ConflictError
		if !errors.As(err, &conflict) {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		// A concurrent login created the same user first.
		existing, getErr := a.store.GetUser(ctx, p.Subject)
		if getErr != nil {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		return existing, false, nil
	}
	log.Info("Created user", "user", user.ID, "username", user.Username)
	return user, true, nil
}

// UsernameBase derives the username candidate for a display name.
func UsernameBase(displayName string) string {
	base := usernameStrip.ReplaceAllString(displayName, "")
	base = usernameLeading.ReplaceAllString(base, "")
	if len(base) > maxGeneratedBaseLen {
		base = base[:maxGeneratedBaseLen]
	}
	if base == "" {
		return "User"
	}
	return base
}

// GenerateUsername picks a free username: the display name base, then a few
// random numeric suffixes, then a timestamp.
func (a *AccountService) GenerateUsername(ctx context.Context, displayName string) (string, error) {
	base := UsernameBase(displayName)
	candidates := []string{base}
	for i := 0; i < usernameSuffixTries; i++ {
		candidates = append(candidates, fmt.Sprintf("%s_%d", base, a.suffix()))
	}
	for _, c := range candidates {
		taken, err := a.store.UsernameExists(ctx, c)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return c, nil
		}
	}
	return fmt.Sprintf("User_%d", a.now().UnixMilli()), nil
}
