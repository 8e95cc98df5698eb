package datastore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radioval/internal/conf"
	"radioval/internal/validation"
)

func TestMySQLOpenRequiresHostAndDatabase(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Host = "localhost"

	store := New(settings, nil)
	require.NotNil(t, store)
	require.IsType(t, &MySQLStore{}, store)

	err := store.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host or database")
}

func TestMySQLCloseWithoutOpen(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true

	store := New(settings, nil)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}

// TestMySQLMetricsRoundTrip runs against a real server when one is provided
// through the environment, e.g.
//
//	RADIOVAL_TEST_MYSQL_HOST=127.0.0.1 RADIOVAL_TEST_MYSQL_DATABASE=radioval_test go test ./internal/datastore
func TestMySQLMetricsRoundTrip(t *testing.T) {
	host := os.Getenv("RADIOVAL_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("RADIOVAL_TEST_MYSQL_HOST not set")
	}

	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Host = host
	settings.Output.MySQL.Port = envOr("RADIOVAL_TEST_MYSQL_PORT", "3306")
	settings.Output.MySQL.Username = envOr("RADIOVAL_TEST_MYSQL_USER", "radioval")
	settings.Output.MySQL.Password = os.Getenv("RADIOVAL_TEST_MYSQL_PASSWORD")
	settings.Output.MySQL.Database = envOr("RADIOVAL_TEST_MYSQL_DATABASE", "radioval_test")

	store := New(settings, nil)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	metrics := []validation.Metric{
		{Catalogue: "NVSS", Name: validation.MetricRAOffset, Value: 0.4, Uncertainty: 0.05, Threshold: 1, Result: validation.ResultPass, N: 42},
	}
	require.NoError(t, store.SaveMetrics(ctx, metrics))

	got, err := store.GetMetrics(ctx, "NVSS")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, metrics[0], got[0])
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
