// Package export renders tabular results as workbook files.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Output formats.
const (
	FormatXLSX    = "xlsx"
	FormatParquet = "parquet"
	FormatSQLite  = "sqlite"
)

// ErrDuplicateSheet is returned when two sheet names differ only in case.
// Spreadsheet and SQLite names are case-insensitive, so the second sheet would
// overwrite the first.
var ErrDuplicateSheet = errors.New("duplicate sheet name")

// Sheet is a named table: a header row followed by data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// AppendStrings appends a row of text cells.
func (s *Sheet) AppendStrings(cells []string) {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	s.Rows = append(s.Rows, row)
}

// Workbook is an ordered set of sheets.
type Workbook struct {
	Sheets []*Sheet
}

// AddSheet appends a new sheet and returns it.
func (w *Workbook) AddSheet(name string, header []string) *Sheet {
	s := &Sheet{Name: name, Header: header}
	w.Sheets = append(w.Sheets, s)
	return s
}

// RowCount returns the number of data rows across all sheets.
func (w *Workbook) RowCount() int64 {
	var n int64
	for _, s := range w.Sheets {
		n += int64(len(s.Rows))
	}
	return n
}

// checkNames reports the first pair of sheets whose names are equal ignoring
// case.
func (w *Workbook) checkNames() error {
	seen := make(map[string]string, len(w.Sheets))
	for _, s := range w.Sheets {
		key := strings.ToLower(s.Name)
		if first, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q and %q", ErrDuplicateSheet, first, s.Name)
		}
		seen[key] = s.Name
	}
	return nil
}

// FormatFor infers the output format from a path's extension. Anything
// unrecognized is written as xlsx.
func FormatFor(path string) string {
	p := strings.TrimSuffix(strings.ToLower(path), "/")
	switch filepath.Ext(p) {
	case ".parquet":
		return FormatParquet
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatXLSX
	}
}

// Encode renders wb in a workbook format. Parquet is handled by the tables
// package since it needs typed rows.
func Encode(ctx context.Context, wb *Workbook, format string) ([]byte, error) {
	switch format {
	case FormatXLSX, "":
		return EncodeXLSX(wb)
	case FormatSQLite:
		return EncodeSQLite(ctx, wb)
	default:
		return nil, fmt.Errorf("unsupported workbook format: %s", format)
	}
}

// cellText renders a cell the way it is stored in text-only formats.
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
