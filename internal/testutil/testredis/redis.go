// Package testredis runs a real Redis server for session store tests that
// need server-side key expiry rather than miniredis' simulated clock.
package testredis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Start runs a Redis container for the duration of the test and returns a
// redis:// URL of database 0.
// Skipped under -short since it needs a container runtime.
func Start(tb testing.TB) string {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping Redis container in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		tb.Fatalf("start redis container: %v", err)
	}
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			tb.Errorf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		tb.Fatalf("redis endpoint: %v", err)
	}
	return fmt.Sprintf("redis://%s/0", endpoint)
}
