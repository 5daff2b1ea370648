/*
Package sqlite writes export sheets into a SQLite file.

PURPOSE:
  A workbook is a single SQLite database holding one table per export
  sheet plus a catalog table. It is an export artifact, not a store:
  each WriteTable replaces the sheet wholesale and nothing reads it back
  into the book.

KEY TABLES:
  sheets:      Catalog (name, columns as JSON, row count, export time)
  sheet_<name> One TEXT column per header, plus row_no

TRANSACTIONS:
  WriteTable drops, recreates and fills a sheet inside one transaction,
  so a failed write leaves the previous version in place.

USAGE:
  wb, err := sqlite.Open("./exports/contracts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer wb.Close()

  for _, sh := range export.AllSheets(wos, invs) {
      if err := wb.WriteTable(ctx, sh.Name, sh.Table); err != nil { ... }
  }

SEE ALSO:
  - export/rows.go: Sheet flattening
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/contract-admin/export"
)

// ErrInvalidSheetName is returned for names outside [a-z0-9_].
var ErrInvalidSheetName = errors.New("invalid sheet name")

var sheetName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Workbook is a SQLite file of export sheets.
type Workbook struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// SheetInfo is one catalog entry.
type SheetInfo struct {
	Name       string    `json:"name"`
	Columns    []string  `json:"columns"`
	RowCount   int       `json:"row_count"`
	ExportedAt time.Time `json:"exported_at"`
}

// Open creates or opens a workbook at path.
// Use ":memory:" for an in-memory workbook.
func Open(path string) (*Workbook, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	wb := &Workbook{db: db, now: time.Now}
	if err := wb.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate workbook: %w", err)
	}
	return wb, nil
}

// Close closes the database connection.
func (w *Workbook) Close() error {
	return w.db.Close()
}

func (w *Workbook) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sheets (
		name TEXT PRIMARY KEY,
		columns TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		exported_at TEXT NOT NULL
	);
	`
	_, err := w.db.Exec(schema)
	return err
}

// WriteTable replaces the named sheet with t.
func (w *Workbook) WriteTable(ctx context.Context, name string, t export.Table) error {
	if !sheetName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSheetName, name)
	}
	if len(t.Headers) == 0 {
		return fmt.Errorf("sheet %q has no columns", name)
	}
	columns, err := json.Marshal(t.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.withTx(ctx, func(tx *sql.Tx) error {
		table := quoteIdent("sheet_" + name)
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop sheet: %w", err)
		}

		defs := make([]string, len(t.Headers))
		cols := make([]string, len(t.Headers))
		marks := make([]string, len(t.Headers))
		for i, h := range t.Headers {
			cols[i] = quoteIdent(h)
			defs[i] = cols[i] + " TEXT"
			marks[i] = "?"
		}
		create := fmt.Sprintf("CREATE TABLE %s (row_no INTEGER PRIMARY KEY, %s)", table, strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}

		insert := fmt.Sprintf("INSERT INTO %s (row_no, %s) VALUES (?, %s)", table, strings.Join(cols, ", "), strings.Join(marks, ", "))
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(t.Headers)+1)
		for i, row := range t.Rows {
			if len(row) != len(t.Headers) {
				return fmt.Errorf("row %d has %d fields, want %d", i+1, len(row), len(t.Headers))
			}
			args[0] = i + 1
			for j, cell := range row {
				args[j+1] = cell
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert row %d: %w", i+1, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sheets (name, columns, row_count, exported_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				columns = excluded.columns,
				row_count = excluded.row_count,
				exported_at = excluded.exported_at
		`, name, string(columns), len(t.Rows), w.now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to record sheet: %w", err)
		}
		return nil
	})
}

// WriteSheets writes every sheet in order, stopping at the first failure.
func (w *Workbook) WriteSheets(ctx context.Context, sheets []export.Sheet) error {
	for _, sh := range sheets {
		if err := w.WriteTable(ctx, sh.Name, sh.Table); err != nil {
			return fmt.Errorf("sheet %s: %w", sh.Name, err)
		}
	}
	return nil
}

// Sheets lists the catalog ordered by name.
func (w *Workbook) Sheets(ctx context.Context) ([]SheetInfo, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT name, columns, row_count, exported_at FROM sheets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sheets: %w", err)
	}
	defer rows.Close()

	var out []SheetInfo
	for rows.Next() {
		var info SheetInfo
		var columns, exportedAt string
		if err := rows.Scan(&info.Name, &columns, &info.RowCount, &exportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sheet: %w", err)
		}
		if err := json.Unmarshal([]byte(columns), &info.Columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
		}
		info.ExportedAt, _ = time.Parse(time.RFC3339, exportedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}

// ReadTable loads a sheet back in row order.
func (w *Workbook) ReadTable(ctx context.Context, name string) (export.Table, error) {
	if !sheetName.MatchString(name) {
		return export.Table{}, fmt.Errorf("%w: %q", ErrInvalidSheetName, name)
	}
	var columns string
	err := w.db.QueryRowContext(ctx, `SELECT columns FROM sheets WHERE name = ?`, name).Scan(&columns)
	if errors.Is(err, sql.ErrNoRows) {
		return export.Table{}, fmt.Errorf("sheet %q not found", name)
	}
	if err != nil {
		return export.Table{}, fmt.Errorf("failed to query sheet: %w", err)
	}

	t := export.Table{}
	if err := json.Unmarshal([]byte(columns), &t.Headers); err != nil {
		return export.Table{}, fmt.Errorf("failed to unmarshal columns: %w", err)
	}

	cols := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		cols[i] = quoteIdent(h)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY row_no", strings.Join(cols, ", "), quoteIdent("sheet_"+name))
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return export.Table{}, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		cells := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return export.Table{}, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = c.String
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

func (w *Workbook) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
