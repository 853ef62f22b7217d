package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/medb/medb/internal/model"
	"github.com/medb/medb/internal/plugin/store/memory"
	"github.com/medb/medb/internal/plugin/store/metrics"
	registrystore "github.com/medb/medb/internal/registry/store"
	"github.com/medb/medb/internal/security"
	"github.com/medb/medb/internal/testutil/storetest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestWrappedStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) registrystore.CatalogStore {
		return metrics.Wrap(memory.New())
	})
}

func TestWrapRecordsLatency(t *testing.T) {
	security.InitMetrics(nil)
	store := metrics.Wrap(memory.New())
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, model.NewUser("u1", "One", "", "", time.Now())))
	_, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)

	// One series per operation label.
	require.GreaterOrEqual(t, testutil.CollectAndCount(security.StoreLatency, "medb_store_latency_seconds"), 2)
}
