package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSSourceResolveRoot(t *testing.T) {
	source := NewFSSource(0)
	ctx := context.Background()

	t.Run("Directory", func(t *testing.T) {
		dir := t.TempDir()
		root, err := source.ResolveRoot(ctx, dir)
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(root))
	})

	t.Run("Symlink", func(t *testing.T) {
		target := t.TempDir()
		link := filepath.Join(t.TempDir(), "link")
		require.NoError(t, os.Symlink(target, link))

		root, err := source.ResolveRoot(ctx, link)
		require.NoError(t, err)

		resolved, err := filepath.EvalSymlinks(target)
		require.NoError(t, err)
		assert.Equal(t, resolved, root)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := source.ResolveRoot(ctx, filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("RegularFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "f.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		_, err := source.ResolveRoot(ctx, file)
		assert.Error(t, err)
	})
}

// nextTimeout wraps Next with a test deadline.
func nextTimeout(t *testing.T, sub Subscription) (Batch, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sub.Next(ctx)
}

func TestFSSourceSubscribe(t *testing.T) {
	source := NewFSSource(20 * time.Millisecond)
	ctx := context.Background()

	dir := t.TempDir()
	root, err := source.ResolveRoot(ctx, dir)
	require.NoError(t, err)

	sub, err := source.Subscribe(ctx, root)
	require.NoError(t, err)
	defer sub.Close()

	// The stream opens with a sync marker
	batch, err := nextTimeout(t, sub)
	require.NoError(t, err)
	assert.Equal(t, KindSync, batch.Kind)

	require.NoError(t, os.WriteFile(filepath.Join(root, "page.html"), []byte("<p>hi</p>"), 0644))

	batch, err = nextTimeout(t, sub)
	require.NoError(t, err)
	assert.Equal(t, KindFilesChanged, batch.Kind)
	assert.Equal(t, root, batch.Root)
	assert.Contains(t, batch.Files, "page.html")
}

func TestFSSourceCoalescesBurst(t *testing.T) {
	source := NewFSSource(50 * time.Millisecond)
	ctx := context.Background()

	root, err := source.ResolveRoot(ctx, t.TempDir())
	require.NoError(t, err)

	sub, err := source.Subscribe(ctx, root)
	require.NoError(t, err)
	defer sub.Close()

	_, err = nextTimeout(t, sub) // sync marker
	require.NoError(t, err)

	for _, name := range []string{"a.html", "b.html", "c.html"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0644))
	}

	batch, err := nextTimeout(t, sub)
	require.NoError(t, err)
	assert.Equal(t, KindFilesChanged, batch.Kind)
	assert.Equal(t, []string{"a.html", "b.html", "c.html"}, batch.Files)
}

func TestFSSourceNewSubdirectory(t *testing.T) {
	source := NewFSSource(20 * time.Millisecond)
	ctx := context.Background()

	root, err := source.ResolveRoot(ctx, t.TempDir())
	require.NoError(t, err)

	sub, err := source.Subscribe(ctx, root)
	require.NoError(t, err)
	defer sub.Close()

	_, err = nextTimeout(t, sub) // sync marker
	require.NoError(t, err)

	nested := filepath.Join(root, "partials")
	require.NoError(t, os.Mkdir(nested, 0755))

	// The new directory is picked up; a file created inside it must be seen.
	// Allow a moment for the watch registration to land.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(nested, "nav.html"), []byte("x"), 0644))

	batch, err := nextTimeout(t, sub)
	require.NoError(t, err)
	assert.Equal(t, KindFilesChanged, batch.Kind)
	assert.Contains(t, batch.Files, filepath.Join("partials", "nav.html"))
}

func TestFSSourceIgnoresHiddenFiles(t *testing.T) {
	source := NewFSSource(20 * time.Millisecond)
	ctx := context.Background()

	root, err := source.ResolveRoot(ctx, t.TempDir())
	require.NoError(t, err)

	sub, err := source.Subscribe(ctx, root)
	require.NoError(t, err)
	defer sub.Close()

	_, err = nextTimeout(t, sub) // sync marker
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".swapfile"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.html"), []byte("x"), 0644))

	batch, err := nextTimeout(t, sub)
	require.NoError(t, err)
	assert.Equal(t, []string{"real.html"}, batch.Files)
}

func TestFSSourceClose(t *testing.T) {
	source := NewFSSource(0)
	ctx := context.Background()

	root, err := source.ResolveRoot(ctx, t.TempDir())
	require.NoError(t, err)

	sub, err := source.Subscribe(ctx, root)
	require.NoError(t, err)

	_, err = nextTimeout(t, sub) // sync marker
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, err = nextTimeout(t, sub)
	assert.ErrorIs(t, err, ErrClosed)
}
