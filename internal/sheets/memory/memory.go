// Package memory is an in-process sheets.Exporter for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"nedwiyt/internal/sheets"
)

// Exporter keeps the tabs of every export in memory.
type Exporter struct {
	mu      sync.Mutex
	exports []map[string][][]any
	err     error
}

var _ sheets.Exporter = (*Exporter)(nil)

func New() *Exporter { return &Exporter{} }

// FailWith makes subsequent exports return err. Nil restores success.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// Export records the rendered tabs and returns a synthetic reference.
func (e *Exporter) Export(ctx context.Context, s sheets.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	tabs := make(map[string][][]any, 3)
	for _, t := range s.Tabs() {
		tabs[t.Name] = t.Rows
	}
	e.exports = append(e.exports, tabs)
	return fmt.Sprintf("mem:%d", len(e.exports)), nil
}

// Count is the number of successful exports.
func (e *Exporter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.exports)
}

// Last returns the rows of tab from the latest export.
func (e *Exporter) Last(tab string) ([][]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.exports) == 0 {
		return nil, false
	}
	rows, ok := e.exports[len(e.exports)-1][tab]
	return rows, ok
}
