package ui

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/scheduler"
	"github.com/leapstack-labs/macroscope/internal/testutil"
	"github.com/leapstack-labs/macroscope/internal/ui/features/playground"
)

func newTestServer(t *testing.T, watchFile string) *Server {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	srv, err := NewServer(Config{
		Playground: playground.Options{
			Adapter:   adapter.New(testutil.NewStubEngine(), logger),
			Scheduler: scheduler.Config{MinInterval: time.Millisecond},
			Source:    "fn main() {}",
		},
		SessionSecret: "test-secret-key-32-bytes-long!!",
		Logger:        logger,
		WatchFile:     watchFile,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Registry().Close)
	return srv
}

func TestServer_Handler(t *testing.T) {
	srv := newTestServer(t, "")
	handler, err := srv.Handler()
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "SOURCE_FILE fn main() {}")
	assert.Equal(t, 1, srv.Registry().Len())

	resp, err = http.Get(ts.URL + "/static/style.css")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServer_MissingWatchFile(t *testing.T) {
	_, err := NewServer(Config{
		Playground: playground.Options{Adapter: adapter.New(testutil.NewStubEngine(), nil)},
		WatchFile:  filepath.Join(t.TempDir(), "missing.rs"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestServer_WatchSourceUpdatesWorkspaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.rs")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0600))

	srv := newTestServer(t, path)
	ws, err := srv.Registry().Create(context.Background())
	require.NoError(t, err)
	require.Equal(t, "first", ws.Buffer.Value())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.watchSource(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("second"), 0600))

	require.Eventually(t, func() bool {
		return strings.Contains(ws.View.Syntax(), "second")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "second", ws.Buffer.Value())
}
