package user_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medb/medb/internal/catalog"
	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/plugin/route/user"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/testutil/testapi"
	"github.com/medb/medb/internal/validation"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *testapi.Env {
	t.Helper()
	env := testapi.New(t)
	passThrough := func(c *gin.Context) { c.Next() }
	user.MountRoutes(env.Router, env.Store, catalog.NewService(env.Store), validation.New(), env.Auth, passThrough)
	env.CreateUser(t, "u1", "alice")
	env.CreateUser(t, "u2", "bob")
	return env
}

func TestSetUsername(t *testing.T) {
	env := setup(t)

	w := env.Do(t, http.MethodPut, "/api/user/username", "u1", map[string]any{"username": "  alice_2 "})
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Equal(t, map[string]any{"username": "alice_2"}, testapi.JSON(t, w))

	w = env.Do(t, http.MethodPut, "/api/user/username", "u1", map[string]any{"username": "BOB"})
	testapi.RequireStatus(t, w, http.StatusConflict)
	require.Equal(t, "Username is already taken", testapi.JSON(t, w)["error"])

	w = env.Do(t, http.MethodPut, "/api/user/username", "u1", map[string]any{"username": "_bad"})
	testapi.RequireStatus(t, w, http.StatusBadRequest)
	require.Equal(t, "Username can only contain letters, numbers, and underscores, and must start with a letter or number", testapi.JSON(t, w)["error"])

	w = env.Do(t, http.MethodPut, "/api/user/username", "u1", map[string]any{"username": ""})
	testapi.RequireStatus(t, w, http.StatusBadRequest)
	require.Equal(t, "Username cannot be empty", testapi.JSON(t, w)["error"])

	// Setting the current name again is a no-op.
	w = env.Do(t, http.MethodPut, "/api/user/username", "u1", map[string]any{"username": "alice_2"})
	testapi.RequireStatus(t, w, http.StatusOK)
}

func TestRenameTier(t *testing.T) {
	env := setup(t)

	w := env.Do(t, http.MethodPut, "/api/user/movies/todo/S", "u1", map[string]any{"newTitle": "Must watch"})
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Equal(t, "User Tier changed successfully!", testapi.JSON(t, w)["msg"])

	u, err := env.Store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "Must watch", u.Movies.TodoTiers["S"])
	require.Equal(t, "S Tier", u.Movies.CollectionTiers["S"])

	w = env.Do(t, http.MethodPut, "/api/user/books/todo/S", "u1", map[string]any{"newTitle": "x"})
	testapi.RequireStatus(t, w, http.StatusNotFound)

	w = env.Do(t, http.MethodPut, "/api/user/movies/shelf/S", "u1", map[string]any{"newTitle": "x"})
	testapi.RequireStatus(t, w, http.StatusBadRequest)

	w = env.Do(t, http.MethodPut, "/api/user/movies/collection/S", "u1", map[string]any{"newTitle": ""})
	testapi.RequireStatus(t, w, http.StatusBadRequest)
}

func TestPublicProfile(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	w := env.Do(t, http.MethodGet, "/api/user/public/nobody", testapi.Anonymous, nil)
	testapi.RequireStatus(t, w, http.StatusNotFound)
	require.Equal(t, false, testapi.JSON(t, w)["success"])

	w = env.Do(t, http.MethodGet, "/api/user/public/alice", testapi.Anonymous, nil)
	testapi.RequireStatus(t, w, http.StatusForbidden)

	now := time.Now().UTC()
	for i, cat := range []string{"movies", "tv", "anime"} {
		_, _, err := env.Store.UpsertShareLink(ctx, &model.ShareLink{
			Token:       "tok-" + cat,
			UserID:      "u1",
			Category:    cat,
			ShareConfig: model.ShareConfig{Collection: true},
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	w = env.Do(t, http.MethodPut, "/api/user/profile", "u1", map[string]any{"isPublicProfile": true, "sharedListsOrder": []string{"anime", "movies"}})
	testapi.RequireStatus(t, w, http.StatusOK)
	require.Equal(t, true, testapi.JSON(t, w)["isPublicProfile"])

	w = env.Do(t, http.MethodGet, "/api/user/public/ALICE", testapi.Anonymous, nil)
	testapi.RequireStatus(t, w, http.StatusOK)
	out := testapi.JSON(t, w)
	require.Equal(t, true, out["success"])
	profile := out["user"].(map[string]any)
	require.Equal(t, "alice", profile["username"])
	require.NotContains(t, profile, "email")

	var order []string
	for _, l := range out["sharedLists"].([]any) {
		order = append(order, l.(map[string]any)["category"].(string))
	}
	require.Equal(t, []string{"anime", "movies", "tv"}, order)

	updated, err := env.Store.UpdateProfile(ctx, "u1", registrystore.ProfileUpdate{})
	require.NoError(t, err)
	require.True(t, updated.IsPublicProfile)
}
