package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/medb/medb/internal/config"
	registrymigrate "github.com/medb/medb/internal/registry/migrate"
	"github.com/urfave/cli/v3"

	// Store plugins register their migrators alongside their loaders.
	_ "github.com/medb/medb/internal/plugin/store/mongo"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db-url",
				Sources: cli.EnvVars("MEDB_DB_URL"),
				Usage:   "MongoDB connection URL",
			},
			&cli.StringFlag{
				Name:    "db-kind",
				Sources: cli.EnvVars("MEDB_DB_KIND"),
				Usage:   "Store backend",
				Value:   "mongo",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.DefaultConfig()
			cfg.DBURL = cmd.String("db-url")
			cfg.DatastoreType = cmd.String("db-kind")
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			// Running the command is the request to migrate.
			cfg.DatastoreMigrateAtStart = true
			if strings.TrimSpace(cfg.DBURL) == "" {
				return fmt.Errorf("--db-url (or MONGO_URI) is required")
			}
			ctx = config.WithContext(ctx, &cfg)

			log.Info("Running migrations...", "db", cfg.DatastoreType, "migrators", registrymigrate.Names())
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}
