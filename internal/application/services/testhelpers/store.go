// Package testhelpers provides shared fixtures for service and worker
// tests: an in-memory store, a throwaway postgres database, and
// factories for the common lifecycle setups.
package testhelpers

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hackload-kz/payment-sub008/internal/infrastructure/persistence/sqlite"
)

// QuietLogger returns a logger that only surfaces errors, so test output
// stays readable.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// NewStore opens a fresh in-memory store. Each call returns a fully
// isolated database; the store closes with the test.
func NewStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(":memory:", QuietLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("closing test store: %v", err)
		}
	})
	return store
}
