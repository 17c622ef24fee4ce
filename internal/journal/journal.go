// Package journal keeps the export history in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	formreport "github.com/porticus-lab/go-form-report"
)

//go:embed schema.sql
var schemaFS embed.FS

// timeLayout is fixed width so that timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite backed [formreport.Journal].
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal: creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: opening database: %w", err)
	}
	// SQLite handles one writer; a single connection also keeps
	// ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("journal: reading schema: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("journal: applying schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record implements [formreport.Journal].
func (s *Store) Record(ctx context.Context, e formreport.JournalEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exports (session, report, format, target, location, bytes, digest, failure, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Session, e.Report, string(e.Format), e.Target, e.Location, e.Bytes, e.Digest, e.Failure, e.Error,
		e.At.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("journal: recording export: %w", err)
	}
	return nil
}

// Filter narrows [Store.Recent].
type Filter struct {
	Report     string
	FailedOnly bool
	Limit      int
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]formreport.JournalEntry, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query := `SELECT session, report, format, target, location, bytes, digest, failure, error, created_at
		FROM exports WHERE 1 = 1`
	var args []any
	if f.Report != "" {
		query += ` AND report = ?`
		args = append(args, f.Report)
	}
	if f.FailedOnly {
		query += ` AND failure != ''`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: querying exports: %w", err)
	}
	defer rows.Close()

	var out []formreport.JournalEntry
	for rows.Next() {
		var (
			e       formreport.JournalEntry
			format  string
			created string
		)
		if err := rows.Scan(&e.Session, &e.Report, &format, &e.Target, &e.Location, &e.Bytes,
			&e.Digest, &e.Failure, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("journal: scanning export: %w", err)
		}
		e.Format = formreport.Format(format)
		if e.At, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("journal: bad timestamp %q: %w", created, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: reading exports: %w", err)
	}
	return out, nil
}
