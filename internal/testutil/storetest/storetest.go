// Package storetest holds behaviour checks every CatalogStore plugin must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/medb/medb/internal/model"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns an empty store for one subtest.
type Opener func(t *testing.T) registrystore.CatalogStore

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("Usernames", func(t *testing.T) { testUsernames(t, open(t)) })
	t.Run("Counters", func(t *testing.T) { testCounters(t, open(t)) })
	t.Run("ConcurrentIncrement", func(t *testing.T) { testConcurrentIncrement(t, open(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, open(t)) })
	t.Run("Friends", func(t *testing.T) { testFriends(t, open(t)) })
	t.Run("Items", func(t *testing.T) { testItems(t, open(t)) })
	t.Run("OrderIndexes", func(t *testing.T) { testOrderIndexes(t, open(t)) })
	t.Run("ShareLinks", func(t *testing.T) { testShareLinks(t, open(t)) })
	t.Run("Admin", func(t *testing.T) { testAdmin(t, open(t)) })
}

// now is truncated to what every backend can store.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func createUser(t *testing.T, s registrystore.CatalogStore, id string) *model.User {
	t.Helper()
	u := model.NewUser(id, "User "+id, id+"@example.com", "", now())
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func isNotFound(err error) bool {
	var nf *registrystore.NotFoundError
	return errors.As(err, &nf)
}

func isConflict(err error) bool {
	var c *registrystore.ConflictError
	return errors.As(err, &c)
}

func testUsers(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	u := createUser(t, s, "u1")

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u.DisplayName, got.DisplayName)
	assert.Equal(t, u.Email, got.Email)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Movies)
	assert.Equal(t, int64(0), got.Movies.Total)
	assert.Equal(t, model.DefaultTierLabels(), got.Movies.CollectionTiers)

	err = s.CreateUser(ctx, model.NewUser("u1", "Again", "", "", now()))
	assert.True(t, isConflict(err), "duplicate user: %v", err)

	_, err = s.GetUser(ctx, "missing")
	assert.True(t, isNotFound(err), "missing user: %v", err)

	public := true
	updated, err := s.UpdateProfile(ctx, "u1", registrystore.ProfileUpdate{
		IsPublicProfile:  &public,
		SharedListsOrder: []string{"tv", "movies"},
	})
	require.NoError(t, err)
	assert.True(t, updated.IsPublicProfile)
	assert.Equal(t, []string{"tv", "movies"}, updated.SharedListsOrder)

	touched := now().Add(time.Hour)
	require.NoError(t, s.TouchLastActive(ctx, "u1", touched))
	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.LastActiveAt)
	assert.True(t, touched.Equal(*got.LastActiveAt))

	createUser(t, s, "u2")
	users, err := s.GetUsers(ctx, []string{"u2", "missing", "u1"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u2", users[0].ID)
	assert.Equal(t, "u1", users[1].ID)
}

func testUsernames(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	createUser(t, s, "u1")
	createUser(t, s, "u2")

	exists, err := s.UsernameExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.SetUsername(ctx, "u1", "Alice"))

	exists, err = s.UsernameExists(ctx, "aLiCe")
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := s.FindUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)
	assert.Equal(t, "Alice", found.Username)

	err = s.SetUsername(ctx, "u2", "ALICE")
	assert.True(t, isConflict(err), "taken username: %v", err)

	// Regex metacharacters must match literally.
	_, err = s.FindUserByUsername(ctx, "Alic.")
	assert.True(t, isNotFound(err), "pattern lookup: %v", err)

	err = s.SetUsername(ctx, "missing", "bob")
	assert.True(t, isNotFound(err), "missing user: %v", err)
}

func testCounters(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	createUser(t, s, "u1")
	movies := model.BucketRef{Category: model.CategoryMovies}

	n, err := s.IncrementTotal(ctx, "u1", movies)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.IncrementTotal(ctx, "u1", movies)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := s.DecrementTotalIfEquals(ctx, "u1", movies, 1)
	require.NoError(t, err)
	assert.False(t, ok, "stale expectation must not match")

	ok, err = s.DecrementTotalIfEquals(ctx, "u1", movies, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Movies.Total)
	assert.Equal(t, int64(0), u.TV.Total, "other buckets are independent")

	require.NoError(t, s.DefineCategory(ctx, "u1", "books"))
	books := model.BucketRef{Category: "books", Custom: true}
	n, err = s.IncrementTotal(ctx, "u1", books)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.IncrementTotal(ctx, "missing", movies)
	assert.True(t, isNotFound(err), "missing user: %v", err)

	require.NoError(t, s.RemoveCategory(ctx, "u1", "books"))
	_, err = s.IncrementTotal(ctx, "u1", books)
	assert.True(t, isNotFound(err), "removed category: %v", err)
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	_, ok = u.Ref("books")
	assert.False(t, ok, "increment must not recreate a removed category")
}

func testConcurrentIncrement(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	createUser(t, s, "u1")
	ref := model.BucketRef{Category: model.CategoryGames}

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.IncrementTotal(ctx, "u1", ref)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seen[n] = true
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, seen, workers)
	for i := int64(1); i <= workers; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func testCategories(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	createUser(t, s, "u1")

	require.NoError(t, s.DefineCategory(ctx, "u1", "books"))
	err := s.DefineCategory(ctx, "u1", "books")
	assert.True(t, isConflict(err), "duplicate category: %v", err)

	err = s.DefineCategory(ctx, "missing", "books")
	assert.True(t, isNotFound(err), "missing user: %v", err)

	books := model.BucketRef{Category: "books", Custom: true}
	require.NoError(t, s.SetTierLabel(ctx, "u1", books, true, "S", "Must read"))
	require.NoError(t, s.SetTierLabel(ctx, "u1", model.BucketRef{Category: model.CategoryTV}, false, "A", "Great"))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"books"}, u.CustomCategories())
	assert.Equal(t, "Must read", u.NewTypes["books"].TodoTiers["S"])
	assert.Equal(t, model.DefaultTierLabels()["S"], u.NewTypes["books"].CollectionTiers["S"])
	assert.Equal(t, "Great", u.TV.CollectionTiers["A"])

	require.NoError(t, s.RemoveCategory(ctx, "u1", "books"))
	err = s.RemoveCategory(ctx, "u1", "books")
	assert.True(t, isNotFound(err), "removed twice: %v", err)

	err = s.SetTierLabel(ctx, "u1", books, false, "S", "x")
	assert.True(t, isNotFound(err), "label on removed category: %v", err)
}

func testFriends(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	createUser(t, s, "a")
	createUser(t, s, "b")

	req := model.FriendRequest{From: "a", To: "b", Status: model.FriendRequestPending, CreatedAt: now()}
	require.NoError(t, s.AddFriendRequest(ctx, req))

	for _, id := range []string{"a", "b"} {
		u, err := s.GetUser(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, u.PendingRequest("a", "b"), "request mirrored on %s", id)
	}

	found, err := s.ResolveFriendRequest(ctx, "b", "a", model.FriendRequestAccepted)
	require.NoError(t, err)
	assert.False(t, found, "direction matters")

	found, err = s.ResolveFriendRequest(ctx, "a", "b", model.FriendRequestAccepted)
	require.NoError(t, err)
	assert.True(t, found)
	require.NoError(t, s.AddFriendship(ctx, "a", "b"))
	require.NoError(t, s.AddFriendship(ctx, "a", "b"))

	a, err := s.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, a.PendingRequest("a", "b"))
	assert.Equal(t, []string{"b"}, a.Friends)
	require.Len(t, a.FriendRequests, 1)
	assert.Equal(t, model.FriendRequestAccepted, a.FriendRequests[0].Status)

	found, err = s.ResolveFriendRequest(ctx, "a", "b", model.FriendRequestRejected)
	require.NoError(t, err)
	assert.False(t, found, "already resolved")

	require.NoError(t, s.RemoveFriendship(ctx, "b", "a"))
	b, err := s.GetUser(ctx, "b")
	require.NoError(t, err)
	assert.False(t, b.IsFriend("a"))
	a, err = s.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.False(t, a.IsFriend("b"))
}

func item(userID, category string, id int64, tier string, toDo bool, order float64, title string) *model.Item {
	return &model.Item{
		UserID:     userID,
		Category:   category,
		ID:         id,
		Title:      title,
		Tier:       tier,
		ToDo:       toDo,
		OrderIndex: order,
		Tags:       []string{},
	}
}

func testItems(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	createUser(t, s, "u1")

	year := time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)
	first := item("u1", "movies", 1, "S", false, 0, "The Matrix")
	first.Year = &year
	first.Tags = []string{"sci-fi"}
	first.Description = "red pill"
	require.NoError(t, s.InsertItem(ctx, first))
	require.NoError(t, s.InsertItem(ctx, item("u1", "movies", 2, "S", false, 1, "Alien")))
	require.NoError(t, s.InsertItem(ctx, item("u1", "movies", 3, "A", false, 0, "Heat")))
	require.NoError(t, s.InsertItem(ctx, item("u1", "movies", 4, "S", true, 0, "Dune")))
	require.NoError(t, s.InsertItem(ctx, item("u1", "tv", 1, "S", false, 0, "Lost")))

	err := s.InsertItem(ctx, item("u1", "movies", 1, "B", false, 0, "dup"))
	assert.True(t, isConflict(err), "duplicate sequence number: %v", err)

	got, err := s.GetItem(ctx, "u1", "movies", 1)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", got.Title)
	require.NotNil(t, got.Year)
	assert.True(t, year.Equal(*got.Year))
	assert.Equal(t, []string{"sci-fi"}, got.Tags)
	assert.Equal(t, "red pill", got.Description)

	_, err = s.GetItem(ctx, "u1", "movies", 99)
	assert.True(t, isNotFound(err), "missing item: %v", err)

	collection := false
	list, err := s.ListItems(ctx, registrystore.ItemQuery{UserID: "u1", Category: "movies", ToDo: &collection})
	require.NoError(t, err)
	assert.Equal(t, []string{"Heat", "The Matrix", "Alien"}, titles(list))

	all, err := s.ListItems(ctx, registrystore.ItemQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	tail, found, err := s.MaxOrderIndex(ctx, model.ListKey{UserID: "u1", Category: "movies", Tier: "S"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, float64(1), tail)

	_, found, err = s.MaxOrderIndex(ctx, model.ListKey{UserID: "u1", Category: "movies", Tier: "F"})
	require.NoError(t, err)
	assert.False(t, found)

	title := "The Matrix Reloaded"
	updated, err := s.UpdateItem(ctx, "u1", "movies", 1, registrystore.ItemUpdate{Title: &title, ClearYear: true})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Nil(t, updated.Year)
	assert.Equal(t, "red pill", updated.Description)

	_, err = s.UpdateItem(ctx, "u1", "movies", 99, registrystore.ItemUpdate{Title: &title})
	assert.True(t, isNotFound(err), "update missing: %v", err)

	deleted, err := s.DeleteItem(ctx, "u1", "movies", 2)
	require.NoError(t, err)
	assert.Equal(t, "Alien", deleted.Title)
	_, err = s.DeleteItem(ctx, "u1", "movies", 2)
	assert.True(t, isNotFound(err), "deleted twice: %v", err)

	n, err := s.DeleteCategoryItems(ctx, "u1", "movies")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	rest, err := s.ListItems(ctx, registrystore.ItemQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lost"}, titles(rest))
}

func testOrderIndexes(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	createUser(t, s, "u1")
	for i, title := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertItem(ctx, item("u1", "anime", int64(i+1), "B", false, float64(i), title)))
	}
	require.NoError(t, s.InsertItem(ctx, item("u1", "anime", 4, "C", false, 0, "other tier")))

	key := model.ListKey{UserID: "u1", Category: "anime", Tier: "B"}
	require.NoError(t, s.SetOrderIndexes(ctx, key, []int64{3, 4, 1, 2}))

	collection := false
	list, err := s.ListItems(ctx, registrystore.ItemQuery{UserID: "u1", Category: "anime", ToDo: &collection})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "other tier"}, titles(list))

	other, err := s.GetItem(ctx, "u1", "anime", 4)
	require.NoError(t, err)
	assert.Equal(t, float64(0), other.OrderIndex, "items outside the list are untouched")

	require.NoError(t, s.SetOrderIndexes(ctx, key, nil))
}

func testShareLinks(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	createUser(t, s, "u1")

	link := &model.ShareLink{
		Token:       "tok-1",
		UserID:      "u1",
		Category:    "movies",
		ShareConfig: model.ShareConfig{Collection: true},
		CreatedAt:   now(),
	}
	created, existed, err := s.UpsertShareLink(ctx, link)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "tok-1", created.Token)

	again := *link
	again.Token = "tok-2"
	again.ShareConfig = model.ShareConfig{Collection: true, Todo: true}
	updated, existed, err := s.UpsertShareLink(ctx, &again)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "tok-1", updated.Token, "existing token is kept")
	assert.True(t, updated.ShareConfig.Todo)

	byToken, err := s.GetShareLinkByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "movies", byToken.Category)
	assert.Equal(t, model.ShareConfig{Collection: true, Todo: true}, byToken.ShareConfig)

	_, err = s.GetShareLinkByToken(ctx, "tok-2")
	assert.True(t, isNotFound(err), "replacement token never stored: %v", err)

	clash := &model.ShareLink{Token: "tok-1", UserID: "u1", Category: "tv", ShareConfig: model.ShareConfig{Todo: true}, CreatedAt: now()}
	_, _, err = s.UpsertShareLink(ctx, clash)
	assert.True(t, isConflict(err), "token collision: %v", err)

	tv := &model.ShareLink{Token: "tok-3", UserID: "u1", Category: "tv", ShareConfig: model.ShareConfig{Todo: true}, CreatedAt: now().Add(time.Second)}
	_, _, err = s.UpsertShareLink(ctx, tv)
	require.NoError(t, err)

	links, err := s.ListShareLinks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "movies", links[0].Category)
	assert.Equal(t, "tv", links[1].Category)

	got, err := s.GetShareLink(ctx, "u1", "tv")
	require.NoError(t, err)
	assert.Equal(t, "tok-3", got.Token)

	require.NoError(t, s.DeleteShareLink(ctx, "u1", "movies"))
	require.NoError(t, s.DeleteShareLink(ctx, "u1", "movies"))
	_, err = s.GetShareLink(ctx, "u1", "movies")
	assert.True(t, isNotFound(err), "deleted link: %v", err)
}

func testAdmin(t *testing.T, s registrystore.CatalogStore) {
	ctx := context.Background()
	day := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	for i, fx := range []struct {
		created time.Time
		active  time.Time
		items   int
	}{
		{day.AddDate(0, -1, 0), day, 3},
		{day, day, 1},
		{day.AddDate(0, 0, 1), day.AddDate(0, 0, 1), 5},
	} {
		id := fmt.Sprintf("user%d", i)
		u := model.NewUser(id, "User "+id, "", "", fx.created)
		u.LastActiveAt = &fx.active
		require.NoError(t, s.CreateUser(ctx, u))
		for j := 0; j < fx.items; j++ {
			_, err := s.IncrementTotal(ctx, id, model.BucketRef{Category: model.CategoryMovies})
			require.NoError(t, err)
		}
	}
	require.NoError(t, s.DefineCategory(ctx, "user1", "books"))
	for j := 0; j < 3; j++ {
		_, err := s.IncrementTotal(ctx, "user1", model.BucketRef{Category: "books", Custom: true})
		require.NoError(t, err)
	}

	total, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	daily, err := s.CountActivity(ctx, registrystore.ActivityLastActive, day.AddDate(0, 0, -1), registrystore.PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, []registrystore.PeriodCount{
		{Period: "2026-03-10", Count: 2},
		{Period: "2026-03-11", Count: 1},
	}, daily)

	monthly, err := s.CountActivity(ctx, registrystore.ActivityCreated, day.AddDate(0, -2, 0), registrystore.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, []registrystore.PeriodCount{
		{Period: "2026-02", Count: 1},
		{Period: "2026-03", Count: 2},
	}, monthly)

	page, err := s.ListUsersPage(ctx, registrystore.AdminUserQuery{Page: 1, Limit: 2, Sort: "totalRecords"})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "user2", page[0].ID)
	assert.Equal(t, int64(5), page[0].TotalRecords)
	assert.Equal(t, "user1", page[1].ID)
	assert.Equal(t, int64(4), page[1].TotalRecords)

	page, err = s.ListUsersPage(ctx, registrystore.AdminUserQuery{Page: 2, Limit: 2, Sort: "totalRecords"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "user0", page[0].ID)

	page, err = s.ListUsersPage(ctx, registrystore.AdminUserQuery{Page: 1, Limit: 10, Sort: "createdAt", Asc: true})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "user0", page[0].ID)
}

func titles(items []model.Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].Title
	}
	return out
}
