package templates

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilnproject/kiln/internal/logger"
)

// DefaultExtensions are the file extensions compiled into a snapshot when the
// config does not name its own.
var DefaultExtensions = []string{".html", ".tmpl"}

// Config configures the template provider.
type Config struct {
	// Paths are the directories scanned for template files, in order.
	// A later path redefines templates with the same base name from an
	// earlier one, which is how deployments override built-in templates.
	Paths []string

	// Extensions are the file extensions treated as templates.
	// Defaults to DefaultExtensions when empty.
	Extensions []string

	// Funcs are extra functions available to all templates.
	Funcs template.FuncMap
}

// Provider owns the current template snapshot.
//
// Concurrency model: single writer, many readers. Reload compiles a whole
// new snapshot off to the side and publishes it with one atomic pointer
// swap; Current is a single atomic load and never blocks, not even while a
// reload is running. A mutex serializes concurrent Reload calls so two
// compilations never race.
type Provider struct {
	paths      []string
	extensions []string
	funcs      template.FuncMap

	reloadMu   sync.Mutex
	generation atomic.Uint64
	current    atomic.Pointer[Snapshot]
}

// Load creates a provider and compiles the initial snapshot.
// All configured paths must exist and compile cleanly; a service should not
// come up without a working template set.
func Load(cfg Config) (*Provider, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("no template paths configured")
	}

	for _, p := range cfg.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("template path %q: %w", p, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("template path %q is not a directory", p)
		}
	}

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	p := &Provider{
		paths:      append([]string{}, cfg.Paths...),
		extensions: exts,
		funcs:      cfg.Funcs,
	}

	if err := p.Reload(context.Background()); err != nil {
		return nil, err
	}

	return p, nil
}

// Current returns the current snapshot. Never nil after a successful Load.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// WatchRoots returns the directories a watcher should observe for changes.
func (p *Provider) WatchRoots() []string {
	roots := make([]string, len(p.paths))
	copy(roots, p.paths)
	return roots
}

// Generation returns the generation of the live snapshot.
func (p *Provider) Generation() uint64 {
	return p.Current().Generation()
}

// Reload compiles a fresh snapshot from the configured paths and swaps it in.
//
// On compile failure the previous snapshot stays live and the error is
// returned; the generation counter only advances on success. Reloads are
// serialized: a second caller blocks until the first compilation finishes.
func (p *Provider) Reload(ctx context.Context) error {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	set, err := p.compile()
	if err != nil {
		return err
	}

	snapshot := &Snapshot{
		generation: p.generation.Add(1),
		set:        set,
		names:      templateNames(set),
		loadedAt:   time.Now(),
	}
	p.current.Store(snapshot)

	logger.Debug("template snapshot swapped",
		logger.KeyGeneration, snapshot.generation,
		logger.KeyTemplates, len(snapshot.names),
		logger.KeyDurationMs, logger.Duration(start),
	)

	return nil
}

// compile parses every template file under the configured paths into a
// single set. Files are keyed by base name, so a file in a later path
// redefines its namesake from an earlier one.
func (p *Provider) compile() (*template.Template, error) {
	root := template.New("").Funcs(p.funcs)

	parsed := 0
	for _, dir := range p.paths {
		files, err := p.collectFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("scanning template path %q: %w", dir, err)
		}

		for _, file := range files {
			content, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("reading template %q: %w", file, err)
			}

			name := filepath.Base(file)
			if _, err := root.New(name).Parse(string(content)); err != nil {
				return nil, fmt.Errorf("parsing template %q: %w", file, err)
			}
			parsed++
		}
	}

	if parsed == 0 {
		return nil, fmt.Errorf("no template files found under %s", strings.Join(p.paths, ", "))
	}

	return root, nil
}

// collectFiles walks one template directory and returns its template files
// in lexical order.
func (p *Provider) collectFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden directories like .git
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		for _, ext := range p.extensions {
			if strings.HasSuffix(d.Name(), ext) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
