package watch

import "context"

// BatchKind classifies a notification batch.
type BatchKind int

const (
	// KindFilesChanged carries paths whose contents changed under a root.
	KindFilesChanged BatchKind = iota
	// KindSync marks the source catching up with pre-existing state. It
	// carries no file paths and consumers skip it.
	KindSync
	// KindOverflow marks lost notifications after an OS queue overrun. It
	// carries no file paths and consumers skip it.
	KindOverflow
)

func (k BatchKind) String() string {
	switch k {
	case KindFilesChanged:
		return "files-changed"
	case KindSync:
		return "sync"
	case KindOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Batch is one coalesced change notification from a single root.
type Batch struct {
	// Root is the resolved root the batch was observed under.
	Root string
	// Kind tells whether the batch carries file changes or is a control
	// notification from the source itself.
	Kind BatchKind
	// Files holds the changed paths, relative to Root. Empty unless Kind
	// is KindFilesChanged.
	Files []string
}

// Subscription is an open change stream for one resolved root.
type Subscription interface {
	// Next blocks until a batch arrives, the stream fails, or ctx is done.
	// After Close it returns ErrClosed.
	Next(ctx context.Context) (Batch, error)
	// Close releases the stream. Safe to call more than once.
	Close() error
}

// Source produces change notifications for directory roots. The filesystem
// implementation lives in this package; tests substitute their own.
type Source interface {
	// ResolveRoot canonicalizes a configured path and verifies it names a
	// watchable directory.
	ResolveRoot(ctx context.Context, path string) (string, error)
	// Subscribe opens a change stream for a resolved root.
	Subscribe(ctx context.Context, root string) (Subscription, error)
}
