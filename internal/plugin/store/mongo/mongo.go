package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/medb/medb/internal/config"
	registrymigrate "github.com/medb/medb/internal/registry/migrate"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names match the documents written by earlier deployments.
const (
	colUsers  = "users"
	colMedia  = "media"
	colShares = "sharelinks"

	defaultDBName = "medb"
)

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.CatalogStore, error) {
			cfg := config.FromContext(ctx)
			client, err := connect(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return &MongoStore{client: client, db: client.Database(databaseName(cfg))}, nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &mongoMigrator{}})
	registrymigrate.Register(registrymigrate.Plugin{Order: 200, Migrator: &legacyYearMigrator{}})
}

func connect(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(cfg.DBURL)
	if cfg.DBMaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
		if security.DBPoolMaxConnections != nil {
			security.DBPoolMaxConnections.Set(float64(cfg.DBMaxOpenConns))
		}
	}
	if cfg.DBMaxIdleConns > 0 {
		opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
	}
	opts.SetPoolMonitor(&event.PoolMonitor{Event: observePool})
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func observePool(e *event.PoolEvent) {
	if security.DBPoolOpenConnections == nil {
		return
	}
	switch e.Type {
	case event.ConnectionCreated:
		security.DBPoolOpenConnections.Inc()
	case event.ConnectionClosed:
		security.DBPoolOpenConnections.Dec()
	}
}

// databaseName returns the configured database, else the one in the URL path.
func databaseName(cfg *config.Config) string {
	if cfg.DBName != "" {
		return cfg.DBName
	}
	if u, err := url.Parse(cfg.DBURL); err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

// Open connects to uri and returns a store on database dbName. Used by tests
// and tools that do not go through the plugin registry.
func Open(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	cfg := config.DefaultConfig()
	cfg.DBURL = uri
	cfg.DBName = dbName
	client, err := connect(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return &MongoStore{client: client, db: client.Database(databaseName(&cfg))}, nil
}

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-schema" }
func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart || cfg.DatastoreType != "mongo" {
		return nil
	}

	log.Info("Running migration", "name", m.Name())
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("mongo migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	if err := EnsureSchema(ctx, client.Database(databaseName(cfg))); err != nil {
		return err
	}
	log.Info("MongoDB schema migration complete")
	return nil
}

// EnsureSchema creates the collections and indexes the store relies on.
func EnsureSchema(ctx context.Context, db *mongo.Database) error {
	caseInsensitive := &options.Collation{Locale: "en", Strength: 2}
	collections := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "ID", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true).SetCollation(caseInsensitive).SetName("unique_username_ci"),
			},
			{Keys: bson.D{{Key: "lastActiveAt", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: 1}}},
		},
		colMedia: {
			{
				Keys:    bson.D{{Key: "userID", Value: 1}, {Key: "mediaType", Value: 1}, {Key: "ID", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_media_sequence"),
			},
			{Keys: bson.D{
				{Key: "userID", Value: 1}, {Key: "mediaType", Value: 1}, {Key: "toDo", Value: 1},
				{Key: "tier", Value: 1}, {Key: "orderIndex", Value: -1},
			}},
		},
		colShares: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys:    bson.D{{Key: "userID", Value: 1}, {Key: "mediaType", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_share_per_category"),
			},
		},
	}

	for name, indexes := range collections {
		// Ensure collection exists
		_ = db.CreateCollection(ctx, name)
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("mongo migration: failed to create indexes for %s: %w", name, err)
		}
	}
	return nil
}

// MongoStore implements registrystore.CatalogStore using MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func (s *MongoStore) users() *mongo.Collection  { return s.db.Collection(colUsers) }
func (s *MongoStore) media() *mongo.Collection  { return s.db.Collection(colMedia) }
func (s *MongoStore) shares() *mongo.Collection { return s.db.Collection(colShares) }

// Ping checks the primary is reachable; used by the readiness endpoint.
func (s *MongoStore) Ping(ctx context.Context) error {
	return storeErr("ping", s.client.Ping(ctx, nil))
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Database returns the underlying database handle.
func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

// storeErr maps driver failures to store errors. Timeouts and network
// failures become UnavailableError.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return &registrystore.UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ registrystore.CatalogStore = (*MongoStore)(nil)
