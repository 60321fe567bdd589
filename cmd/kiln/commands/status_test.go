package commands

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnproject/kiln/pkg/server"
	"github.com/kilnproject/kiln/pkg/templates"
)

func newStatusServer(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>kiln</h1>"), 0o644)
	require.NoError(t, err)

	provider, err := templates.Load(templates.Config{Paths: []string{dir}})
	require.NoError(t, err)

	cfg := server.Config{RequestTimeout: 5 * time.Second}
	ts := httptest.NewServer(server.NewRouter(cfg, provider, "1.2.3"))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	return u.Host
}

func TestCheckStatusHealthy(t *testing.T) {
	addr := newStatusServer(t)
	client := &http.Client{Timeout: 2 * time.Second}

	status := checkStatus(client, addr)

	assert.True(t, status.Running)
	assert.True(t, status.Healthy)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, uint64(1), status.Generation)
	assert.Equal(t, []string{"index.html"}, status.Templates)
	assert.Equal(t, "Server is running and healthy", status.Message)
}

func TestCheckStatusNotRunning(t *testing.T) {
	client := &http.Client{Timeout: 500 * time.Millisecond}

	status := checkStatus(client, "127.0.0.1:1")

	assert.False(t, status.Running)
	assert.False(t, status.Healthy)
	assert.Equal(t, "Server is not running", status.Message)
}
