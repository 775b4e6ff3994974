package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the worksheet to read.
type XLSXOptions struct {
	SheetIndex int
	// SheetName wins over SheetIndex. Matching ignores case and
	// surrounding spaces.
	SheetName string
}

// ReadSheet reads one worksheet and returns its rows as trimmed cell
// strings. Rows keep their sheet position; missing rows come back nil.
func ReadSheet(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	out := make([][]string, len(sheet.Rows))
	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		out[i] = make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			out[i][j] = strings.TrimSpace(cell.String())
		}
	}
	return out, nil
}

func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if want := strings.TrimSpace(opts.SheetName); want != "" {
		if s, ok := f.Sheet[want]; ok {
			return s, nil
		}
		for _, s := range f.Sheets {
			if strings.EqualFold(strings.TrimSpace(s.Name), want) {
				return s, nil
			}
		}
		return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (%d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
