package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"lorepatch/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore caches representative patches per mailing list in a local
// SQLite database so a list can be shown before the archive answers.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS patches (
	list             TEXT NOT NULL,
	message_id       TEXT NOT NULL,
	position         INTEGER NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	author_name      TEXT NOT NULL DEFAULT '',
	author_email     TEXT NOT NULL DEFAULT '',
	version          INTEGER NOT NULL DEFAULT 1,
	number_in_series INTEGER NOT NULL DEFAULT 0,
	total_in_series  INTEGER NOT NULL DEFAULT 1,
	updated          TEXT NOT NULL DEFAULT '',
	in_reply_to      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (list, message_id)
);

CREATE INDEX IF NOT EXISTS patches_by_position ON patches (list, position);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertPatches stores patches of a list at positions start, start+1, ...
func (s *SQLiteStore) UpsertPatches(ctx context.Context, list string, start int, patches []model.Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patches (list, message_id, position, title, author_name, author_email,
			version, number_in_series, total_in_series, updated, in_reply_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(list, message_id) DO UPDATE SET
			position         = excluded.position,
			title            = excluded.title,
			author_name      = excluded.author_name,
			author_email     = excluded.author_email,
			version          = excluded.version,
			number_in_series = excluded.number_in_series,
			total_in_series  = excluded.total_in_series,
			updated          = excluded.updated,
			in_reply_to      = excluded.in_reply_to
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range patches {
		inReplyTo := ""
		if p.InReplyTo != nil {
			inReplyTo = p.InReplyTo.Href
		}
		_, err := stmt.ExecContext(ctx, list, p.ID(), start+i, p.Title, p.Author.Name, p.Author.Email,
			p.Version, p.NumberInSeries, p.TotalInSeries, p.Updated, inReplyTo)
		if err != nil {
			return fmt.Errorf("upsert patch %s: %w", p.ID(), err)
		}
	}
	return tx.Commit()
}

// LoadPatches returns the cached patches of a list in position order.
func (s *SQLiteStore) LoadPatches(ctx context.Context, list string) ([]model.Patch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, title, author_name, author_email, version,
			number_in_series, total_in_series, updated, in_reply_to
		FROM patches WHERE list = ? ORDER BY position`, list)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patches []model.Patch
	for rows.Next() {
		var p model.Patch
		var inReplyTo string
		if err := rows.Scan(&p.MessageID.Href, &p.Title, &p.Author.Name, &p.Author.Email, &p.Version,
			&p.NumberInSeries, &p.TotalInSeries, &p.Updated, &inReplyTo); err != nil {
			return nil, err
		}
		if inReplyTo != "" {
			p.InReplyTo = &model.MessageID{Href: inReplyTo}
		}
		patches = append(patches, p)
	}
	return patches, rows.Err()
}

func (s *SQLiteStore) CountPatches(ctx context.Context, list string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patches WHERE list = ?", list).Scan(&count)
	return count, err
}

// DeletePatches drops the cache of one list.
func (s *SQLiteStore) DeletePatches(ctx context.Context, list string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM patches WHERE list = ?", list)
	return err
}

// GetMetadata returns the value stored under key, or "" when absent.
func (s *SQLiteStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

func (s *SQLiteStore) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

const lastListKey = "last_list"

// GetLastList returns the list that was open when the TUI last exited.
func (s *SQLiteStore) GetLastList(ctx context.Context) (string, error) {
	return s.GetMetadata(ctx, lastListKey)
}

func (s *SQLiteStore) SetLastList(ctx context.Context, list string) error {
	return s.SetMetadata(ctx, lastListKey, list)
}
