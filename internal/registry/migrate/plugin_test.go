package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	name string
	err  error
	ran  *[]string
}

func (f fakeMigrator) Name() string { return f.name }

func (f fakeMigrator) Migrate(context.Context) error {
	*f.ran = append(*f.ran, f.name)
	return f.err
}

func TestRunAll(t *testing.T) {
	saved := plugins
	t.Cleanup(func() { plugins = saved })
	plugins = nil

	var ran []string
	Register(Plugin{Order: 200, Migrator: fakeMigrator{name: "years", ran: &ran}})
	Register(Plugin{Order: 100, Migrator: fakeMigrator{name: "indexes", ran: &ran}})
	require.Equal(t, []string{"indexes", "years"}, Names())
	require.NoError(t, RunAll(context.Background()))
	require.Equal(t, []string{"indexes", "years"}, ran)

	ran = nil
	Register(Plugin{Order: 150, Migrator: fakeMigrator{name: "broken", err: errors.New("boom"), ran: &ran}})
	err := RunAll(context.Background())
	require.ErrorContains(t, err, "migration broken failed: boom")
	require.Equal(t, []string{"indexes", "broken"}, ran)
}
