package fitmetrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end tests for the full workflow: object store to local data
// directory to consolidated frame to HTTP API.

func TestIntegration_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	storeDir := t.TempDir()
	seedStoreDir(t, storeDir)

	config := DefaultConfig()
	config.DataDir = filepath.Join(t.TempDir(), "data_files")
	config.Store = "file://" + storeDir
	config.SyncWorkers = 2

	ctx := context.Background()

	store, err := OpenStore(ctx, config)
	require.NoError(t, err)

	// Initial sync, the way serve does it on startup
	syncer := NewSyncer(store, config.DataDir, config.SyncWorkers)
	result, err := syncer.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, result.Files, 2)
	t.Logf("Synced %d files, %d bytes in %s", len(result.Files), result.TotalBytes, result.Duration)

	catalog, err := ScanDir(config.DataDir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"distance", "steps"}, catalog.Metrics())

	server := NewServer(config, store)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	// Query across entities with an inclusive date range
	var points []Point
	resp := getJSON(t, ts.URL+"/metrics/steps?entity=alice,bob&start_date=2023-01-02&end_date=2023-01-03", &points)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, points, 3)
	for _, point := range points {
		assert.Equal(t, "steps", point.Metric)
	}

	// Publish a new metric file to the store, then refresh over the API
	writeParquet(t, filepath.Join(storeDir, "heart_rate_daily.parquet"), []dateRow{
		{Entity: "alice", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Steps: 62},
	})

	refreshResp, err := http.Post(ts.URL+"/refresh-metrics", "application/json", nil)
	require.NoError(t, err)
	defer refreshResp.Body.Close()
	require.Equal(t, http.StatusOK, refreshResp.StatusCode)

	var envelope statusResponse
	require.NoError(t, json.NewDecoder(refreshResp.Body).Decode(&envelope))
	assert.Equal(t, "Data files refreshed from S3.", envelope.Message)

	var rates []Point
	resp = getJSON(t, ts.URL+"/metrics/heart_rate?entity=alice", &rates)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, rates, 1)
	assert.Equal(t, float64(62), rates[0].Value)
	assert.Equal(t, "2023-01-02", rates[0].Date.String())
}

func TestIntegration_ServerShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	config := DefaultConfig()
	config.DataDir = filepath.Join(t.TempDir(), "data_files")
	config.Listen = "127.0.0.1:0"
	config.ShutdownGraceSecs = 1

	server := NewServer(config, nil)
	go server.Run()

	// Give ListenAndServe a moment to bind before asking it to stop
	time.Sleep(100 * time.Millisecond)
	server.Shutdown(nil)

	select {
	case <-server.Terminated():
		require.NoError(t, server.Err())
	case <-time.After(5 * time.Second):
		t.Fatal("server did not terminate within 5s")
	}
}
