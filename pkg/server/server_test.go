package server

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnproject/kiln/pkg/templates"
)

func newTestProvider(t *testing.T) *templates.Provider {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>hi</p>"), 0644))

	provider, err := templates.Load(templates.Config{Paths: []string{dir}})
	require.NoError(t, err)
	return provider
}

// freePort grabs an ephemeral port and releases it for the server to bind.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestServerGracefulShutdown(t *testing.T) {
	s := NewServer(Config{Host: "127.0.0.1", Port: freePort(t)}, newTestProvider(t), "test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// Let the listener come up, then trigger shutdown
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerDrainsInFlightRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	// A template whose render parks on a channel keeps one request in
	// flight across the shutdown.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slow.html"), []byte("{{hold}}"), 0644))
	provider, err := templates.Load(templates.Config{
		Paths: []string{dir},
		Funcs: template.FuncMap{
			"hold": func() string {
				close(entered)
				<-release
				return "drained"
			},
		},
	})
	require.NoError(t, err)

	port := freePort(t)
	s := NewServer(Config{Host: "127.0.0.1", Port: port}, provider, "test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	addr := fmt.Sprintf("http://127.0.0.1:%d", port)
	probe := &http.Client{
		Timeout:   time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	require.Eventually(t, func() bool {
		resp, err := probe.Get(addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond, "server never came up")

	type result struct {
		status int
		body   string
		err    error
	}
	inFlight := make(chan result, 1)
	go func() {
		resp, err := http.Get(addr + "/pages/slow.html")
		if err != nil {
			inFlight <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		inFlight <- result{status: resp.StatusCode, body: string(body)}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}

	// Shutdown while the request is parked
	cancel()

	// The listener closes before the drain finishes: new connections are
	// refused while the parked request is still being served
	require.Eventually(t, func() bool {
		resp, err := probe.Get(addr + "/health")
		if err == nil {
			resp.Body.Close()
		}
		return err != nil
	}, 5*time.Second, 10*time.Millisecond, "listener still accepting after shutdown")

	close(release)

	res := <-inFlight
	require.NoError(t, res.err, "in-flight request must survive the drain")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "drained", res.body)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not finish draining")
	}
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	s := NewServer(Config{Host: "127.0.0.1", Port: port}, newTestProvider(t), "test")

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestServerStopIdempotent(t *testing.T) {
	s := NewServer(Config{Host: "127.0.0.1", Port: freePort(t)}, newTestProvider(t), "test")

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestServerConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}
