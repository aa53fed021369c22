package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratewatch/internal/config"
	"ratewatch/internal/logging"
	"ratewatch/internal/runner"
	"ratewatch/internal/snapshot"
)

const searchBody = `{"results":{"$values":[
  {"name":"30 Yr Fixed","products":{"$values":[
    {"rate":6.25,"apr":6.31,"monthlyPayments":13847.1,"discounts":1.0},
    {"rate":6.5,"apr":6.52,"monthlyPayments":14215.0,"discounts":0.0}
  ]}},
  {"name":"7 Year ARM","products":{"$values":[
    {"rate":5.875,"apr":6.9,"monthlyPayments":13304.2,"discounts":0.0}
  ]}}
]}}`

func TestLoadEnv(t *testing.T) {
	require.NoError(t, loadEnv(""))
	require.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RATEWATCH_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("RATEWATCH_TEST_VALUE") })

	require.NoError(t, loadEnv(path))
	require.Equal(t, "from-dotenv", os.Getenv("RATEWATCH_TEST_VALUE"))
}

func TestBuild_RunsAgainstUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/search/GetResults", r.URL.Path)
		assert.Equal(t, "ratewatch-test", r.Header.Get("User-Agent"))
		b, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(b), `"formId":"36323431"`), string(b))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.HTTP.UserAgent = "ratewatch-test"
	cfg.HTTP.MinRequestIntervalMs = 0
	cfg.Snapshot.Path = filepath.Join(t.TempDir(), "last_rates.json")

	r, closeFn, err := build(cfg, logging.Discard())
	require.NoError(t, err)
	defer closeFn()

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runner.ExitOK, runner.ExitCode(err))
	require.Equal(t, int32(2), calls.Load())
	require.Len(t, res.Changes, 2)
	require.False(t, res.Notified, "mail is not configured")

	saved, err := snapshot.NewFileStore(cfg.Snapshot.Path).Load(context.Background())
	require.NoError(t, err)
	// lowest points wins over lowest rate
	require.InDelta(t, 6.5, saved["30yr_fixed"].Rate, 0)
	require.InDelta(t, 5.875, saved["7_1_arm"].Rate, 0)
}

func TestBuild_RejectsMissingWidget(t *testing.T) {
	cfg := config.Default()
	cfg.API.FormID = ""
	_, _, err := build(cfg, logging.Discard())
	require.ErrorContains(t, err, "optimalblue client")
}

func TestScheduled_InvalidSpec(t *testing.T) {
	cfg := config.Default()
	cfg.Schedule = "every tuesday"
	require.Equal(t, runner.ExitFatal, scheduled(context.Background(), &runner.Runner{}, cfg, logging.Discard()))
}
