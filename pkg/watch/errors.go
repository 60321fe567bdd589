package watch

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Subscription.Next after Close.
var ErrClosed = errors.New("watch: subscription closed")

// ErrOverflow is reported by a Source when the OS event queue overran and
// change notifications were lost.
var ErrOverflow = errors.New("watch: event overflow")

// SetupError reports a watch root that could not be resolved or subscribed
// to. Setup is all-or-nothing, so a SetupError means no subscription from
// the same watcher is left open.
type SetupError struct {
	Root string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("watch setup for %q: %v", e.Root, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// StreamError reports a subscription stream that failed after setup
// succeeded. It ends the watch loop; the rest of the process is unaffected.
type StreamError struct {
	Root string
	Err  error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("watch stream for %q: %v", e.Root, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ReloadError reports a single failed reload attempt. The previous snapshot
// stays live and the watch loop keeps running.
type ReloadError struct {
	Root string
	Err  error
}

func (e *ReloadError) Error() string {
	if e.Root == "" {
		return fmt.Sprintf("reload: %v", e.Err)
	}
	return fmt.Sprintf("reload after change under %q: %v", e.Root, e.Err)
}

func (e *ReloadError) Unwrap() error {
	return e.Err
}
