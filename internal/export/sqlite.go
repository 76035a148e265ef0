package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// EncodeSQLite renders wb as a SQLite database file, one TEXT-only table per
// sheet. The database is built in a scratch directory and returned as bytes
// so it can go through the same sinks as other formats.
func EncodeSQLite(ctx context.Context, wb *Workbook) ([]byte, error) {
	if err := wb.checkNames(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "record-latency-sqlite-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "out.db")
	if err := writeSQLite(ctx, path, wb); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read database: %w", err)
	}
	return data, nil
}

func writeSQLite(ctx context.Context, path string, wb *Workbook) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, s := range wb.Sheets {
		if err := writeTable(ctx, tx, s); err != nil {
			return fmt.Errorf("table %q: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return db.Close()
}

func writeTable(ctx context.Context, tx *sql.Tx, s *Sheet) error {
	cols := columnNames(s)
	if len(cols) == 0 {
		return nil
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c) + " TEXT"
		marks[i] = "?"
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.Name), strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(s.Name), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i, row := range s.Rows {
		for j := range args {
			if j < len(row) {
				args[j] = cellText(row[j])
			} else {
				args[j] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

// columnNames returns the header, padded with generated names when a data
// row is wider than it.
func columnNames(s *Sheet) []string {
	width := len(s.Header)
	for _, r := range s.Rows {
		width = max(width, len(r))
	}
	cols := make([]string, width)
	for i := range cols {
		if i < len(s.Header) && s.Header[i] != "" {
			cols[i] = s.Header[i]
		} else {
			cols[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	return cols
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
