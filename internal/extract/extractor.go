// Package extract turns raw CSV exports into normalized line items.
// One extractor per institution format; each encapsulates the column
// layout, date format, separators and sign convention of that export.
package extract

import (
	"fmt"
	"strings"

	"lucid/internal/core"
)

// Batch is the result of extracting one file. Malformed rows are skipped
// and counted rather than failing the batch.
type Batch struct {
	Lines   []core.NormalizedLine
	Skipped int
}

// Extractor parses a raw file into a batch of normalized lines.
type Extractor interface {
	Extract(data []byte) (Batch, error)
	Source() core.Source
}

// Registry holds extractors keyed by source format.
type Registry struct {
	extractors map[core.Source]Extractor
}

func NewRegistry() *Registry {
	return &Registry{extractors: make(map[core.Source]Extractor)}
}

// Register adds an extractor. Panics on a duplicate source.
func (r *Registry) Register(e Extractor) {
	if _, ok := r.extractors[e.Source()]; ok {
		panic("duplicate extractor source: " + string(e.Source()))
	}
	r.extractors[e.Source()] = e
}

// Get returns the extractor for a source format.
func (r *Registry) Get(source core.Source) (Extractor, error) {
	e, ok := r.extractors[source]
	if !ok {
		return nil, fmt.Errorf("no extractor registered for source %q", source)
	}
	return e, nil
}

// DefaultRegistry returns a registry with all built-in extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&BankExtractor{})
	r.Register(&CardExtractor{})
	return r
}

// headerIndex maps lowercased, trimmed column names to their positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// field returns the lowercased, trimmed cell for a named column, or "".
func field(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(rec[i]))
}
