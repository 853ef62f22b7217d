package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/medb/medb/internal/config"
	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/plugin/store/mongo"
	registrymigrate "github.com/medb/medb/internal/registry/migrate"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/testutil/storetest"
	"github.com/medb/medb/internal/testutil/testmongo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func openStore(t *testing.T, uri string) *mongo.MongoStore {
	t.Helper()
	ctx := context.Background()
	store, err := mongo.Open(ctx, uri, testmongo.DatabaseName(t))
	require.NoError(t, err)
	require.NoError(t, mongo.EnsureSchema(ctx, store.Database()))
	t.Cleanup(func() {
		_ = store.Database().Drop(context.Background())
		_ = store.Close(context.Background())
	})
	return store
}

func TestStoreConformance(t *testing.T) {
	uri := testmongo.StartMongo(t)
	storetest.Run(t, func(t *testing.T) registrystore.CatalogStore {
		return openStore(t, uri)
	})
}

func TestMigrationsAndLoader(t *testing.T) {
	uri := testmongo.StartMongo(t)
	_ = mongo.ForceImport

	cfg := config.DefaultConfig()
	cfg.DatastoreType = "mongo"
	cfg.DatastoreMigrateAtStart = true
	cfg.DBURL = uri
	cfg.DBName = testmongo.DatabaseName(t)
	ctx := config.WithContext(context.Background(), &cfg)

	require.NoError(t, registrymigrate.RunAll(ctx))
	// Index creation is idempotent.
	require.NoError(t, registrymigrate.RunAll(ctx))

	loader, err := registrystore.Select("mongo")
	require.NoError(t, err)
	store, err := loader(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	require.NoError(t, store.CreateUser(ctx, model.NewUser("u1", "One", "", "", time.Now())))
	require.NoError(t, store.SetUsername(ctx, "u1", "Neo"))
	require.NoError(t, store.CreateUser(ctx, model.NewUser("u2", "Two", "", "", time.Now())))

	// The unique index is case-insensitive, so a racing writer that skipped
	// the lookup still loses.
	err = store.SetUsername(ctx, "u2", "NEO")
	var conflict *registrystore.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestMigrateLegacyYears(t *testing.T) {
	uri := testmongo.StartMongo(t)
	store := openStore(t, uri)
	ctx := context.Background()
	media := store.Database().Collection("media")

	epoch := time.Date(2001, time.June, 15, 0, 0, 0, 0, time.UTC)
	_, err := media.InsertMany(ctx, []any{
		bson.D{{Key: "userID", Value: "u1"}, {Key: "mediaType", Value: "movies"}, {Key: "ID", Value: int64(1)}, {Key: "year", Value: 1999}},
		bson.D{{Key: "userID", Value: "u1"}, {Key: "mediaType", Value: "movies"}, {Key: "ID", Value: int64(2)}, {Key: "year", Value: epoch.UnixMilli()}},
		bson.D{{Key: "userID", Value: "u1"}, {Key: "mediaType", Value: "movies"}, {Key: "ID", Value: int64(3)}, {Key: "year", Value: epoch}},
		bson.D{{Key: "userID", Value: "u1"}, {Key: "mediaType", Value: "movies"}, {Key: "ID", Value: int64(4)}},
	})
	require.NoError(t, err)

	years, epochs, err := mongo.MigrateLegacyYears(ctx, store.Database())
	require.NoError(t, err)
	assert.Equal(t, int64(1), years)
	assert.Equal(t, int64(1), epochs)

	first, err := store.GetItem(ctx, "u1", "movies", 1)
	require.NoError(t, err)
	require.NotNil(t, first.Year)
	assert.True(t, time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC).Equal(*first.Year))

	second, err := store.GetItem(ctx, "u1", "movies", 2)
	require.NoError(t, err)
	require.NotNil(t, second.Year)
	assert.True(t, epoch.Equal(*second.Year))

	untouched, err := store.GetItem(ctx, "u1", "movies", 4)
	require.NoError(t, err)
	assert.Nil(t, untouched.Year)

	// Running again finds nothing left to convert.
	years, epochs, err = mongo.MigrateLegacyYears(ctx, store.Database())
	require.NoError(t, err)
	assert.Zero(t, years)
	assert.Zero(t, epochs)
}
