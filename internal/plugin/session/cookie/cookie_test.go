package cookie

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medb/medb/internal/config"
	registrysession "github.com/medb/medb/internal/registry/session"
	"github.com/stretchr/testify/require"
)

var (
	keyA = []byte("0123456789abcdef0123456789abcdef")
	keyB = []byte("fedcba9876543210fedcba9876543210")
)

func TestCreateAndLookup(t *testing.T) {
	store := New(keyA)
	ctx := context.Background()

	token, err := store.Create(ctx, "user-1", time.Hour)
	require.NoError(t, err)

	sess, err := store.Lookup(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "user-1", sess.UserID)
	require.NotEmpty(t, sess.ID)
	require.True(t, sess.ExpiresAt.After(time.Now()))
}

func TestLookupRejectsTamperedPayload(t *testing.T) {
	store := New(keyA)
	token, err := store.Create(context.Background(), "user-1", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(keyB)
	require.NoError(t, err)
	parts[1] = strings.Split(forged, ".")[1]

	_, err = store.Lookup(context.Background(), strings.Join(parts, "."))
	require.ErrorIs(t, err, registrysession.ErrNotFound)
}

func TestLookupRejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(keyA)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, token := range []string{hs512, none} {
		_, err := New(keyA).Lookup(context.Background(), token)
		require.ErrorIs(t, err, registrysession.ErrNotFound, token)
	}
}

func TestLookupRequiresSubjectAndExpiry(t *testing.T) {
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).SignedString(keyA)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(keyA)
	require.NoError(t, err)

	for _, token := range []string{noExp, noSub} {
		_, err := New(keyA).Lookup(context.Background(), token)
		require.ErrorIs(t, err, registrysession.ErrNotFound)
	}
}

func TestLookupRejectsOtherKey(t *testing.T) {
	token, err := New(keyB).Create(context.Background(), "user-1", time.Hour)
	require.NoError(t, err)

	_, err = New(keyA).Lookup(context.Background(), token)
	require.ErrorIs(t, err, registrysession.ErrNotFound)
}

func TestLookupAcceptsRotatedKey(t *testing.T) {
	token, err := New(keyB).Create(context.Background(), "user-1", time.Hour)
	require.NoError(t, err)

	sess, err := New(keyA, keyB).Lookup(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-1", sess.UserID)
}

func TestLookupRejectsExpired(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString(keyA)
	require.NoError(t, err)

	_, err = New(keyA, keyB).Lookup(context.Background(), token)
	require.ErrorIs(t, err, registrysession.ErrNotFound)
}

func TestLookupRejectsGarbage(t *testing.T) {
	store := New(keyA)
	for _, token := range []string{"", "abc", "a.b", "..."} {
		_, err := store.Lookup(context.Background(), token)
		require.ErrorIs(t, err, registrysession.ErrNotFound, token)
	}
}

func TestLoadRequiresSecretOutsideTesting(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := load(config.WithContext(context.Background(), &cfg))
	require.Error(t, err)

	cfg.Mode = config.ModeTesting
	store, err := load(config.WithContext(context.Background(), &cfg))
	require.NoError(t, err)
	require.NotNil(t, store)
}
