package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"
)

// Snapshot is an immutable bundle of compiled templates.
//
// A snapshot is produced whole by a reload and never mutated afterwards.
// Request handlers grab the current snapshot once per render and keep using
// it for the whole response, so a reload that completes mid-render never
// mixes template generations within one page.
type Snapshot struct {
	generation uint64
	set        *template.Template
	names      []string
	loadedAt   time.Time
}

// Generation returns the monotonically increasing reload generation.
// The snapshot compiled at startup is generation 1.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// LoadedAt returns the time the snapshot was compiled.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Names returns the sorted names of all compiled templates.
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether a template with the given name exists in the snapshot.
func (s *Snapshot) Has(name string) bool {
	return s.set.Lookup(name) != nil
}

// Render executes the named template with the given data.
//
// The template executes into a local buffer first so a mid-render failure
// never leaves a half-written response body on the wire.
func (s *Snapshot) Render(w io.Writer, name string, data any) error {
	if s.set.Lookup(name) == nil {
		return fmt.Errorf("template %q not found in snapshot generation %d", name, s.generation)
	}

	var buf bytes.Buffer
	if err := s.set.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("rendering template %q: %w", name, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

// templateNames collects the defined, non-empty template names from a set.
func templateNames(set *template.Template) []string {
	var names []string
	for _, t := range set.Templates() {
		if t.Name() == "" || t.Tree == nil {
			continue
		}
		names = append(names, t.Name())
	}
	sort.Strings(names)
	return names
}
