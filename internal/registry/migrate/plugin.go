package migrate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
)

// Migrator brings one backend's schema and data up to date. Migrators must
// be idempotent and return nil when their backend is not the configured one.
type Migrator interface {
	Name() string
	Migrate(ctx context.Context) error
}

// Plugin is a migrator registered from a package init(). Lower Order runs first.
type Plugin struct {
	Order    int
	Migrator Migrator
}

var plugins []Plugin

// Register adds a migration plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

func sorted() []Plugin {
	out := slices.Clone(plugins)
	slices.SortStableFunc(out, func(a, b Plugin) int { return a.Order - b.Order })
	return out
}

// Names returns the registered migrator names in execution order.
func Names() []string {
	var names []string
	for _, p := range sorted() {
		names = append(names, p.Migrator.Name())
	}
	return names
}

// RunAll runs every registered migrator in order and stops at the first failure.
func RunAll(ctx context.Context) error {
	for _, p := range sorted() {
		start := time.Now()
		if err := p.Migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migration %s failed: %w", p.Migrator.Name(), err)
		}
		log.Debug("Migration finished", "name", p.Migrator.Name(), "duration", time.Since(start))
	}
	return nil
}
