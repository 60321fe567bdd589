// Package lifecycle ties the process together: it loads the initial
// template snapshot, runs the watch loop, serves HTTP, and turns SIGINT or
// SIGTERM into one graceful shutdown.
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kilnproject/kiln/internal/logger"
)

// SignalInstallError reports a shutdown coordinator that could not be set
// up. Without working signal delivery the process cannot be stopped
// cleanly, so this error is fatal.
type SignalInstallError struct {
	Err error
}

func (e *SignalInstallError) Error() string {
	return fmt.Sprintf("installing shutdown signals: %v", e.Err)
}

func (e *SignalInstallError) Unwrap() error {
	return e.Err
}

// ShutdownCoordinator turns termination signals into a single broadcast.
//
// The first SIGINT or SIGTERM closes Done, exactly once. Further signals
// are handed back to the runtime default, so a second Ctrl+C kills a
// process stuck in its drain.
type ShutdownCoordinator struct {
	signals []os.Signal
	ch      chan os.Signal
	done    chan struct{}

	once sync.Once

	mu     sync.Mutex
	reason os.Signal
}

// NewShutdownCoordinator validates the signal set and prepares the
// coordinator. Signals are not installed until Start.
//
// With no arguments the coordinator listens for SIGINT and SIGTERM, which
// it treats identically.
func NewShutdownCoordinator(signals ...os.Signal) (*ShutdownCoordinator, error) {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	for _, sig := range signals {
		if sig == nil {
			return nil, &SignalInstallError{Err: errors.New("nil signal")}
		}
		if sig == os.Kill {
			return nil, &SignalInstallError{Err: errors.New("SIGKILL cannot be trapped")}
		}
	}

	return &ShutdownCoordinator{
		signals: signals,
		ch:      make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}, nil
}

// Start installs the signal handlers and begins listening.
func (c *ShutdownCoordinator) Start() {
	signal.Notify(c.ch, c.signals...)

	go func() {
		sig, ok := <-c.ch
		if !ok {
			return
		}
		logger.Info("shutdown signal received", "signal", sig.String())
		c.trigger(sig)
	}()
}

// Trigger requests shutdown programmatically, as if a signal had arrived.
func (c *ShutdownCoordinator) Trigger() {
	c.trigger(nil)
}

func (c *ShutdownCoordinator) trigger(reason os.Signal) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()

		// Restore default disposition so a repeat signal is not absorbed
		// by a drain that has hung
		signal.Stop(c.ch)
		close(c.done)
	})
}

// Done closes once, on the first signal or Trigger call.
func (c *ShutdownCoordinator) Done() <-chan struct{} {
	return c.done
}

// Reason returns the signal that started shutdown, or nil for a
// programmatic Trigger or if shutdown has not started.
func (c *ShutdownCoordinator) Reason() os.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Stop uninstalls the signal handlers without triggering shutdown.
func (c *ShutdownCoordinator) Stop() {
	signal.Stop(c.ch)
}
