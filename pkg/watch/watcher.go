package watch

import (
	"context"
	"errors"
	"sync"

	"github.com/kilnproject/kiln/internal/logger"
)

// MultiRootWatcher merges the change streams of several watch roots into a
// single batch channel. Setup is all-or-nothing: either every configured
// root resolves and subscribes, or no subscription is left open.
type MultiRootWatcher struct {
	roots []string
	subs  []Subscription

	events chan Batch
	wg     sync.WaitGroup

	mu        sync.Mutex
	streamErr error

	closeOnce sync.Once
}

// NewMultiRootWatcher resolves every path against source and opens one
// subscription per root. On the first failure it closes the subscriptions
// opened so far and returns a SetupError for the offending path.
func NewMultiRootWatcher(ctx context.Context, source Source, paths []string) (*MultiRootWatcher, error) {
	if len(paths) == 0 {
		return nil, &SetupError{Err: errors.New("no watch roots configured")}
	}

	w := &MultiRootWatcher{
		events: make(chan Batch, 16),
	}

	for _, path := range paths {
		root, err := source.ResolveRoot(ctx, path)
		if err != nil {
			w.closeAll()
			return nil, &SetupError{Root: path, Err: err}
		}

		sub, err := source.Subscribe(ctx, root)
		if err != nil {
			w.closeAll()
			return nil, &SetupError{Root: root, Err: err}
		}

		w.roots = append(w.roots, root)
		w.subs = append(w.subs, sub)
	}

	return w, nil
}

// Roots returns the resolved watch roots.
func (w *MultiRootWatcher) Roots() []string {
	roots := make([]string, len(w.roots))
	copy(roots, w.roots)
	return roots
}

// Start launches one forwarding goroutine per subscription and returns
// immediately. The merged channel closes once every stream has ended,
// whether by ctx, Close, or a stream failure. Whatever ended the merge,
// every subscription is closed before the channel closes, so no branch
// keeps pumping events nobody will read.
func (w *MultiRootWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	for i, sub := range w.subs {
		w.wg.Add(1)
		go w.forward(ctx, cancel, w.roots[i], sub)
	}

	go func() {
		w.wg.Wait()
		cancel()
		_ = w.Close()
		close(w.events)
	}()
}

// forward pumps one subscription into the merged channel. Control batches
// are dropped; only file changes reach the consumer. The first stream
// failure is recorded and tears down the sibling streams.
func (w *MultiRootWatcher) forward(ctx context.Context, cancel context.CancelFunc, root string, sub Subscription) {
	defer w.wg.Done()

	for {
		batch, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, ErrClosed) {
				w.recordFailure(&StreamError{Root: root, Err: err})
				cancel()
			}
			return
		}

		if batch.Kind != KindFilesChanged {
			continue
		}

		select {
		case w.events <- batch:
		case <-ctx.Done():
			return
		}
	}
}

func (w *MultiRootWatcher) recordFailure(err *StreamError) {
	w.mu.Lock()
	if w.streamErr == nil {
		w.streamErr = err
	}
	w.mu.Unlock()
}

// Events returns the merged batch channel.
func (w *MultiRootWatcher) Events() <-chan Batch {
	return w.events
}

// Err reports the first stream failure, or nil if the watcher stopped
// cleanly. Meaningful once Events is closed.
func (w *MultiRootWatcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.streamErr
}

// Close shuts down every subscription. Safe to call more than once.
func (w *MultiRootWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.closeAll()
	})
	return err
}

func (w *MultiRootWatcher) closeAll() error {
	var first error
	for i, sub := range w.subs {
		if err := sub.Close(); err != nil {
			if first == nil {
				first = err
			}
			logger.Warn("failed to close watch subscription",
				logger.KeyRoot, w.roots[i],
				logger.KeyError, err,
			)
		}
	}
	return first
}
