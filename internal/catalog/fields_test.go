package catalog

import (
	"errors"
	"testing"

	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTag(t *testing.T) {
	require.Equal(t, "science-fiction", NormalizeTag("Science Fiction"))
	require.Equal(t, "rpg", NormalizeTag("RPG"))
	require.Equal(t, []string{"a-b", "c"}, NormalizeTags([]string{"A B", "", "a b", "c"}))
}

func TestParseYear(t *testing.T) {
	y, err := ParseYear(float64(1999))
	require.NoError(t, err)
	require.Equal(t, YearDate(1999), *y)

	y, err = ParseYear("2004")
	require.NoError(t, err)
	require.Equal(t, YearDate(2004), *y)

	y, err = ParseYear("2010-06-15")
	require.NoError(t, err)
	require.Equal(t, 2010, y.Year())

	y, err = ParseYear("2010-06-15T12:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 2010, y.Year())

	for _, empty := range []any{nil, ""} {
		y, err = ParseYear(empty)
		require.NoError(t, err)
		require.Nil(t, y)
	}

	for _, bad := range []any{float64(999), float64(1999.5), float64(1.7e12), "soon", true} {
		_, err = ParseYear(bad)
		var verr *registrystore.ValidationError
		require.True(t, errors.As(err, &verr), "%v", bad)
	}
}

func TestValidateCategoryName(t *testing.T) {
	name, err := ValidateCategoryName("  Board Games ")
	require.NoError(t, err)
	require.Equal(t, "Board Games", name)

	for _, bad := range []string{"", "   ", "a.b", "$set", "this name is definitely longer than forty characters"} {
		_, err := ValidateCategoryName(bad)
		var verr *registrystore.ValidationError
		require.True(t, errors.As(err, &verr), bad)
	}

	_, err = ValidateCategoryName("Anime")
	var conflict *registrystore.ConflictError
	require.True(t, errors.As(err, &conflict))
}
