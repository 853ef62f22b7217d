package mongo

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/medb/medb/internal/config"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// legacyYearMigrator rewrites media years stored as plain numbers. Values
// that look like a calendar year become January 1st UTC of that year; any
// other number is treated as epoch milliseconds.
type legacyYearMigrator struct{}

func (m *legacyYearMigrator) Name() string { return "mongo-legacy-years" }

func (m *legacyYearMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || !cfg.DatastoreMigrateAtStart || cfg.DatastoreType != "mongo" {
		return nil
	}

	log.Info("Running migration", "name", m.Name())
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("legacy year migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	years, epochs, err := MigrateLegacyYears(ctx, client.Database(databaseName(cfg)))
	if err != nil {
		return err
	}
	log.Info("Legacy years converted", "years", years, "timestamps", epochs)
	return nil
}

var numericYear = bson.D{{Key: "$type", Value: bson.A{"int", "long", "double", "decimal"}}}

// MigrateLegacyYears converts numeric media years in place and returns the
// number of year-like and timestamp-like values rewritten.
func MigrateLegacyYears(ctx context.Context, db *mongo.Database) (int64, int64, error) {
	media := db.Collection(colMedia)

	yearFilter := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "year", Value: numericYear}},
		bson.D{{Key: "year", Value: bson.D{{Key: "$gt", Value: 1000}, {Key: "$lt", Value: 3000}}}},
	}}}
	toYearDate := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: "year", Value: bson.D{{Key: "$dateFromParts", Value: bson.D{
		{Key: "year", Value: bson.D{{Key: "$toInt", Value: "$year"}}},
		{Key: "month", Value: 1},
		{Key: "day", Value: 1},
	}}}}}}}}
	years, err := media.UpdateMany(ctx, yearFilter, toYearDate)
	if err != nil {
		return 0, 0, storeErr("migrate legacy years", err)
	}

	toDate := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: "year", Value: bson.D{
		{Key: "$toDate", Value: bson.D{{Key: "$toLong", Value: "$year"}}},
	}}}}}}
	epochs, err := media.UpdateMany(ctx, bson.D{{Key: "year", Value: numericYear}}, toDate)
	if err != nil {
		return years.ModifiedCount, 0, storeErr("migrate legacy timestamps", err)
	}
	return years.ModifiedCount, epochs.ModifiedCount, nil
}
