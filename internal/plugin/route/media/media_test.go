package media_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/plugin/route/media"
	"github.com/medb/medb/internal/testutil/testapi"
	"github.com/medb/medb/internal/validation"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *testapi.Env {
	t.Helper()
	env := testapi.New(t)
	media.MountRoutes(env.Router, catalog.NewService(env.Store), validation.New(), env.Auth)
	env.CreateUser(t, "u1", "alice")
	return env
}

func create(t *testing.T, env *testapi.Env, body map[string]any) int64 {
	t.Helper()
	w := env.Do(t, http.MethodPost, "/api/media", "u1", body)
	testapi.RequireStatus(t, w, http.StatusOK)
	out := testapi.JSON(t, w)
	require.Equal(t, "Media added successfully!", out["msg"])
	return int64(out["id"].(float64))
}

func TestRequiresAuthentication(t *testing.T) {
	env := setup(t)
	w := env.Do(t, http.MethodGet, "/api/media/movies/collection", testapi.Anonymous, nil)
	testapi.RequireStatus(t, w, http.StatusUnauthorized)
	require.Equal(t, map[string]any{"success": false, "message": "Authentication required"}, testapi.JSON(t, w))
}

func TestCreateListAndGet(t *testing.T) {
	env := setup(t)

	id1 := create(t, env, map[string]any{"category": "movies", "title": "Heat", "tier": "S", "isToDo": false, "year": 1995, "tags": []string{"Crime Drama"}})
	id2 := create(t, env, map[string]any{"category": "movies", "title": "Alien", "tier": "S", "isToDo": false})
	id3 := create(t, env, map[string]any{"category": "movies", "title": "Dune", "tier": "A", "isToDo": true})
	require.Equal(t, []int64{1, 2, 3}, []int64{id1, id2, id3})

	w := env.Do(t, http.MethodGet, "/api/media/movies/collection", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	out := testapi.JSON(t, w)
	list := out["media"].([]any)
	require.Len(t, list, 2)
	require.Equal(t, "Heat", list[0].(map[string]any)["title"])
	require.Equal(t, "Alien", list[1].(map[string]any)["title"])
	require.Equal(t, []any{"crime-drama"}, out["uniqueTags"])

	w = env.Do(t, http.MethodGet, "/api/media/movies/to-do", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Len(t, testapi.JSON(t, w)["media"], 1)

	w = env.Do(t, http.MethodGet, "/api/media/movies/1", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	item := testapi.JSON(t, w)
	require.Equal(t, "Heat", item["title"])
	require.Equal(t, "1995-01-01T00:00:00Z", item["year"])

	w = env.Do(t, http.MethodGet, "/api/media/movies/abc", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusBadRequest)

	w = env.Do(t, http.MethodGet, "/api/media/movies/99", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusNotFound)
}

func TestCreateValidation(t *testing.T) {
	env := setup(t)

	w := env.Do(t, http.MethodPost, "/api/media", "u1", map[string]any{"category": "movies", "tier": "S"})
	testapi.RequireStatus(t, w, http.StatusBadRequest)

	w = env.Do(t, http.MethodPost, "/api/media", "u1", map[string]any{"category": "games", "title": "Dune", "tier": "S"})
	testapi.RequireStatus(t, w, http.StatusBadRequest)

	w = env.Do(t, http.MethodPost, "/api/media", "u1", map[string]any{"category": "movies", "title": "Dune", "tier": "S", "year": 12})
	testapi.RequireStatus(t, w, http.StatusBadRequest)
}

func TestUpdateMovesToEndOfNewTier(t *testing.T) {
	env := setup(t)
	create(t, env, map[string]any{"category": "tv", "title": "Lost", "tier": "A"})
	create(t, env, map[string]any{"category": "tv", "title": "Fargo", "tier": "B"})

	w := env.Do(t, http.MethodPut, "/api/media/tv/1", "u1", map[string]any{"tier": "B", "year": nil})
	testapi.RequireStatus(t, w, http.StatusOK)
	out := testapi.JSON(t, w)
	require.Equal(t, "Updated successfully", out["msg"])
	moved := out["media"].(map[string]any)
	require.Equal(t, "B", moved["tier"])
	require.Equal(t, float64(1), moved["orderIndex"])

	w = env.Do(t, http.MethodPut, "/api/media/tv/1", "u1", map[string]any{"title": "  "})
	testapi.RequireStatus(t, w, http.StatusBadRequest)

	w = env.Do(t, http.MethodPut, "/api/media/tv/9", "u1", map[string]any{"title": "x"})
	testapi.RequireStatus(t, w, http.StatusNotFound)
}

func TestDeleteReclaimsTail(t *testing.T) {
	env := setup(t)
	create(t, env, map[string]any{"category": "games", "title": "Doom", "tier": "S"})
	create(t, env, map[string]any{"category": "games", "title": "Quake", "tier": "S", "isToDo": true})

	w := env.Do(t, http.MethodDelete, "/api/media/games/2", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Equal(t, map[string]any{"msg": "Media entry deleted successfully", "toDo": true}, testapi.JSON(t, w))

	w = env.Do(t, http.MethodDelete, "/api/media/games/2", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusNotFound)
	require.Equal(t, map[string]any{"error": "No such a media"}, testapi.JSON(t, w))

	require.Equal(t, int64(2), create(t, env, map[string]any{"category": "games", "title": "Hexen", "tier": "S"}))
}

func TestReorder(t *testing.T) {
	env := setup(t)
	for _, title := range []string{"a", "b", "c"} {
		create(t, env, map[string]any{"category": "anime", "title": title, "tier": "S"})
	}

	w := env.Do(t, http.MethodPut, "/api/media/anime/collection/S/reorder", "u1", map[string]any{"orderedIds": []any{3, "1", 2}})
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Equal(t, "Reordered successfully", testapi.JSON(t, w)["msg"])

	w = env.Do(t, http.MethodGet, "/api/media/anime/collection", "u1", nil)
	var titles []string
	for _, m := range testapi.JSON(t, w)["media"].([]any) {
		titles = append(titles, m.(map[string]any)["title"].(string))
	}
	require.Equal(t, []string{"c", "a", "b"}, titles)

	w = env.Do(t, http.MethodPut, "/api/media/anime/collection/S/reorder", "u1", map[string]any{"orderedIds": []any{}})
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Equal(t, "No changes", testapi.JSON(t, w)["msg"])

	w = env.Do(t, http.MethodPut, "/api/media/anime/collection/S/reorder", "u1", map[string]any{"orderedIds": []any{"x"}})
	testapi.RequireStatus(t, w, http.StatusBadRequest)

	w = env.Do(t, http.MethodPut, "/api/media/anime/collection/S/reorder", "u1", map[string]any{"orderedIds": []any{1, 1}})
	testapi.RequireStatus(t, w, http.StatusBadRequest)

	w = env.Do(t, http.MethodPut, "/api/media/anime/shelf/S/reorder", "u1", map[string]any{"orderedIds": []any{1}})
	testapi.RequireStatus(t, w, http.StatusBadRequest)
}

func TestCustomTypesAndExport(t *testing.T) {
	env := setup(t)

	w := env.Do(t, http.MethodPost, "/api/media/types", "u1", map[string]any{"name": "books"})
	testapi.RequireStatus(t, w, http.StatusCreated)
	require.Equal(t, map[string]any{"success": true, "name": "books"}, testapi.JSON(t, w))

	w = env.Do(t, http.MethodPost, "/api/media/types", "u1", map[string]any{"name": "books"})
	testapi.RequireStatus(t, w, http.StatusConflict)

	w = env.Do(t, http.MethodPost, "/api/media/types", "u1", map[string]any{"name": "Movies"})
	testapi.RequireStatus(t, w, http.StatusConflict)

	create(t, env, map[string]any{"category": "books", "title": `Say "Hi"`, "tier": "A", "description": "short"})

	w = env.Do(t, http.MethodGet, "/api/media/export", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	out := testapi.JSON(t, w)
	require.Equal(t, true, out["success"])
	require.Equal(t, catalog.ExportHeader+"\nbooks,\"Say \"\"Hi\"\"\",A,No,,,\"short\"", out["csv"])

	w = env.Do(t, http.MethodDelete, "/api/media/types/books", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusOK)

	u, err := env.Store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, u.CustomCategories())

	w = env.Do(t, http.MethodDelete, "/api/media/types/movies", "u1", nil)
	testapi.RequireStatus(t, w, http.StatusBadRequest)
}

func TestUpdateAndReorderShareItemPath(t *testing.T) {
	env := setup(t)
	create(t, env, map[string]any{"category": "games", "title": "Dune", "tier": "A"})
	create(t, env, map[string]any{"category": "games", "title": "Emma", "tier": "A"})

	w := env.Do(t, http.MethodPut, "/api/media/games/2", "u1", map[string]any{"title": "Emma!"})
	testapi.RequireStatus(t, w, http.StatusOK)

	w = env.Do(t, http.MethodPut, "/api/media/games/collection/A/reorder", "u1", map[string]any{"orderedIds": []any{2, 1}})
	testapi.RequireStatus(t, w, http.StatusOK)

	w = env.Do(t, http.MethodGet, "/api/media/games/collection", "u1", nil)
	media := testapi.JSON(t, w)["media"].([]any)
	require.Equal(t, "Emma!", media[0].(map[string]any)["title"])
}
