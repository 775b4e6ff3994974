// Package fetcher parses tabular source files (CSV exports and XLSX
// workbooks) into rows keyed by their header.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Record is one CSV data row. Fields are keyed by the trimmed header name.
type Record struct {
	Line   int
	Fields map[string]string
}

// Get returns the first non-empty field among the candidate column names.
func (r Record) Get(names ...string) string {
	for _, n := range names {
		if v := r.Fields[n]; v != "" {
			return v
		}
	}
	return ""
}

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
	// Required lists header names that must be present.
	Required []string
}

// StreamRecords reads a headed CSV and sends each data row as a Record.
// Caller must consume the record channel. Both channels are closed when
// processing completes.
func StreamRecords(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Record, <-chan error) {
	recCh := make(chan Record, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(recCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if err == io.EOF {
			errCh <- eris.New("csv: empty input")
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read header")
			return
		}
		for i, h := range header {
			header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}
		if err := requireColumns(header, opts.Required); err != nil {
			errCh <- err
			return
		}

		line := 1
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			row, err := reader.Read()
			if err == io.EOF {
				return
			}
			line++
			if err != nil {
				errCh <- eris.Wrapf(err, "csv: read line %d", line)
				return
			}

			rec := Record{Line: line, Fields: make(map[string]string, len(header))}
			for i, h := range header {
				if i < len(row) {
					rec.Fields[h] = strings.TrimSpace(row[i])
				}
			}

			select {
			case recCh <- rec:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return recCh, errCh
}

// ReadRecords collects every record of a headed CSV.
func ReadRecords(ctx context.Context, r io.Reader, opts CSVOptions) ([]Record, error) {
	recCh, errCh := StreamRecords(ctx, r, opts)
	var out []Record
	for rec := range recCh {
		out = append(out, rec)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

func requireColumns(header, required []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, r := range required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("csv: missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}
