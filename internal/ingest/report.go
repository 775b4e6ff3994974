// Package ingest turns source files (boundary shapefiles, census and
// air-quality CSVs, the LDRRMD hazard matrix, cyclone GeoJSON, climate
// YAML) into model records ready for the store.
package ingest

import (
	"fmt"
	"strings"
)

// MaxNamed caps how many skipped item names a report keeps.
const MaxNamed = 10

// Report counts the outcome of one load.
type Report struct {
	Processed int
	Skipped   int
	Errored   int
	// Named holds the first MaxNamed skipped or failed items.
	Named []string
}

// Skip counts an item that was left out and remembers its name.
func (r *Report) Skip(name string) {
	r.Skipped++
	r.name(name)
}

// Fail counts an item that could not be parsed.
func (r *Report) Fail(name string, err error) {
	r.Errored++
	r.name(fmt.Sprintf("%s: %v", name, err))
}

func (r *Report) name(s string) {
	if len(r.Named) < MaxNamed {
		r.Named = append(r.Named, s)
	}
}

// String renders the counts on one line.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "processed=%d skipped=%d errored=%d", r.Processed, r.Skipped, r.Errored)
	return b.String()
}

// Merge adds o's counts and names to r. A nil o is ignored.
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	r.Processed += o.Processed
	r.Skipped += o.Skipped
	r.Errored += o.Errored
	for _, n := range o.Named {
		r.name(n)
	}
}
