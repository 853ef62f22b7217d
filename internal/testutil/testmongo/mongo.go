package testmongo

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// StartMongo starts a disposable MongoDB container and returns its connection URI.
// Skipped under -short since it needs a container runtime.
func StartMongo(tb testing.TB) string {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping MongoDB container in short mode")
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		tb.Fatalf("start mongodb container: %v", err)
	}

	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			tb.Errorf("terminate mongodb container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		tb.Fatalf("build mongodb connection string: %v", err)
	}

	return uri
}

var unsafeDBChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// DatabaseName returns a database name unique to the running test.
func DatabaseName(tb testing.TB) string {
	tb.Helper()
	base := strings.ToLower(unsafeDBChars.ReplaceAllString(tb.Name(), "_"))
	if len(base) > 40 {
		base = base[len(base)-40:]
	}
	return "t_" + base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
