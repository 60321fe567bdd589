package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kilnproject/kiln/internal/logger"
)

const defaultCoalesceWindow = 100 * time.Millisecond

// FSSource watches directory roots through fsnotify. Raw events are
// coalesced into batches: the window restarts on every event, so a burst of
// writes from an editor or a build step lands as a single batch.
type FSSource struct {
	window time.Duration
}

// NewFSSource returns a filesystem source with the given coalescing window.
// A non-positive window selects the default.
func NewFSSource(window time.Duration) *FSSource {
	if window <= 0 {
		window = defaultCoalesceWindow
	}
	return &FSSource{window: window}
}

// ResolveRoot canonicalizes path, following symlinks, and verifies it is a
// directory.
func (s *FSSource) ResolveRoot(_ context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory", resolved)
	}

	return resolved, nil
}

// Subscribe opens a recursive watch on root. The stream starts with a single
// KindSync batch once the directory tree is registered.
func (s *FSSource) Subscribe(_ context.Context, root string) (Subscription, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sub := &fsSubscription{
		root:    root,
		watcher: watcher,
		window:  s.window,
		batches: make(chan Batch, 16),
		done:    make(chan struct{}),
	}

	if err := sub.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}

	go sub.run()
	return sub, nil
}

type fsSubscription struct {
	root    string
	watcher *fsnotify.Watcher
	window  time.Duration
	batches chan Batch
	done    chan struct{}

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// addTree registers dir and every non-hidden subdirectory with the watcher.
func (s *fsSubscription) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != dir && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		return s.watcher.Add(path)
	})
}

func (s *fsSubscription) run() {
	defer close(s.batches)

	if !s.deliver(Batch{Root: s.root, Kind: KindSync}) {
		return
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.record(pending, event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.window)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-fire:
					default:
					}
				}
				timer.Reset(s.window)
			}

		case <-fire:
			timer = nil
			fire = nil
			files := make([]string, 0, len(pending))
			for path := range pending {
				files = append(files, path)
			}
			sort.Strings(files)
			pending = make(map[string]struct{})
			if !s.deliver(Batch{Root: s.root, Kind: KindFilesChanged, Files: files}) {
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				if !s.deliver(Batch{Root: s.root, Kind: KindOverflow}) {
					return
				}
				continue
			}
			s.fail(err)
			// The stream is dead either way; drop the inotify watches now
			// rather than waiting for the consumer's Close
			_ = s.Close()
			return
		}
	}
}

// record folds one raw event into the pending set. It reports whether the
// coalescing window should (re)start.
func (s *fsSubscription) record(pending map[string]struct{}, event fsnotify.Event) bool {
	// Permission churn alone never invalidates content
	if event.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := s.addTree(event.Name); err != nil {
				logger.Warn("failed to watch new directory",
					logger.KeyRoot, s.root,
					"path", event.Name,
					logger.KeyError, err,
				)
			}
			return false
		}
	}

	rel, err := filepath.Rel(s.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	pending[rel] = struct{}{}
	return true
}

func (s *fsSubscription) deliver(batch Batch) bool {
	select {
	case s.batches <- batch:
		return true
	case <-s.done:
		return false
	}
}

func (s *fsSubscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *fsSubscription) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return ErrClosed
}

// Next returns the next batch from the stream.
func (s *fsSubscription) Next(ctx context.Context) (Batch, error) {
	select {
	case batch, ok := <-s.batches:
		if !ok {
			return Batch{}, s.failure()
		}
		return batch, nil
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	}
}

// Close stops the watch and releases the inotify descriptors.
func (s *fsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})
	return err
}
