package validation_test

import (
	"errors"
	"strings"
	"testing"

	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/validation"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	Category string   `json:"category" validate:"required,fieldkey"`
	Title    string   `json:"title" validate:"required,max=10"`
	Tags     []string `json:"tags" validate:"max=2"`
}

func TestValidate(t *testing.T) {
	v := validation.New()
	require.NoError(t, v.Validate(createRequest{Category: "anime", Title: "Akira"}))

	tests := []struct {
		name  string
		req   createRequest
		field string
		msg   string
	}{
		{"missing title", createRequest{Category: "anime"}, "title", "title is required"},
		{"long title", createRequest{Category: "anime", Title: strings.Repeat("x", 11)}, "title", "title must not exceed 10 characters"},
		{"dotted category", createRequest{Category: "a.b", Title: "x"}, "category", "category cannot contain '.' or start with '$'"},
		{"too many tags", createRequest{Category: "anime", Title: "x", Tags: []string{"a", "b", "c"}}, "tags", "tags must not contain more than 2 items"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.req)
			var verr *registrystore.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.field, verr.Field)
			require.Equal(t, tc.msg, verr.Message)
		})
	}
}

func TestUsername(t *testing.T) {
	v := validation.New()

	for _, ok := range []string{"user", "user_123", "User99", "  ab  ", strings.Repeat("a", 30)} {
		name, err := v.Username(ok)
		require.NoError(t, err, ok)
		require.Equal(t, strings.TrimSpace(ok), name)
	}

	tests := map[string]string{
		"":                      "Username cannot be empty",
		"   ":                   "Username cannot be empty",
		strings.Repeat("a", 31): "Username must be 30 characters or less",
		"user-name":             "Username can only contain letters, numbers, and underscores, and must start with a letter or number",
		"user name":             "Username can only contain letters, numbers, and underscores, and must start with a letter or number",
		"_user":                 "Username can only contain letters, numbers, and underscores, and must start with a letter or number",
	}
	for raw, msg := range tests {
		_, err := v.Username(raw)
		var verr *registrystore.ValidationError
		require.True(t, errors.As(err, &verr), raw)
		require.Equal(t, msg, verr.Message, raw)
	}
}
