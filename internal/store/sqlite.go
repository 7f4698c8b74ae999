package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite keeps connections in a single database file, one row per subtopic.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path. ":memory:" opens a
// private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS connections (
			principal     TEXT    NOT NULL,
			idea          TEXT    NOT NULL,
			position      INTEGER NOT NULL,
			sub           TEXT    NOT NULL,
			children_json TEXT    NOT NULL,
			updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (principal, idea, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_principal ON connections(principal);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Topics(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT principal FROM connections ORDER BY principal`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	topics := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("listing topics: %w", err)
		}
		topics = append(topics, p)
	}
	return topics, rows.Err()
}

func (s *SQLite) Load(ctx context.Context, principal, idea string) (Connections, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sub, children_json FROM connections
		WHERE principal = ? AND idea = ?
		ORDER BY position`, principal, idea)
	if err != nil {
		return nil, fmt.Errorf("loading connections of %q: %w", idea, err)
	}
	defer rows.Close()

	var conns Connections
	for rows.Next() {
		var (
			sub      string
			children string
		)
		if err := rows.Scan(&sub, &children); err != nil {
			return nil, fmt.Errorf("loading connections of %q: %w", idea, err)
		}
		c := Connection{Subtopic: sub}
		if err := json.Unmarshal([]byte(children), &c.Children); err != nil {
			return nil, fmt.Errorf("decoding children of %q: %w", sub, err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (s *SQLite) Save(ctx context.Context, principal, idea string, conns Connections) error {
	if len(conns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving connections of %q: %w", idea, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM connections WHERE principal = ? AND idea = ?`, principal, idea); err != nil {
		return fmt.Errorf("clearing connections of %q: %w", idea, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO connections (principal, idea, position, sub, children_json)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("saving connections of %q: %w", idea, err)
	}
	defer stmt.Close()

	for i, c := range conns {
		children := c.Children
		if children == nil {
			children = []string{}
		}
		b, err := json.Marshal(children)
		if err != nil {
			return fmt.Errorf("encoding children of %q: %w", c.Subtopic, err)
		}
		if _, err := stmt.ExecContext(ctx, principal, idea, i, c.Subtopic, string(b)); err != nil {
			return fmt.Errorf("saving subtopic %q: %w", c.Subtopic, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
