package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionSigningKeys(t *testing.T) {
	cfg := Config{SessionSecret: "current-secret-value, previous-secret-value"}
	keys, err := cfg.SessionSigningKeys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Len(t, keys[0], 32)
	require.NotEqual(t, keys[0], keys[1])

	again, err := cfg.SessionSigningKeys()
	require.NoError(t, err)
	require.Equal(t, keys, again)
}

func TestSessionSigningKeys_Unset(t *testing.T) {
	var cfg Config
	keys, err := cfg.SessionSigningKeys()
	require.NoError(t, err)
	require.Nil(t, keys)
}

func TestSessionSigningKeys_TooShort(t *testing.T) {
	cfg := Config{SessionSecret: "short"}
	_, err := cfg.SessionSigningKeys()
	require.Error(t, err)
}
