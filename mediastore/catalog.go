package mediastore

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS media (
	id            TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	uri           TEXT NOT NULL,
	size          INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS media_created_at ON media (created_at);
`

// Catalog records every entry saved through it in a SQLite database and
// forwards the content to the wrapped Sink.
type Catalog struct {
	db   *sql.DB
	sink Sink
}

// OpenCatalog opens (and migrates) the SQLite database at dsn.
//
// Arguments:
//   - dsn: A go-sqlite3 data source name, e.g. "media/catalog.db" or ":memory:".
//   - sink: The sink that stores the content.
//
// Returns:
//   - *Catalog: The catalog; Close it when done.
//   - error: An error if the database cannot be opened or migrated.
func OpenCatalog(dsn string, sink Sink) (*Catalog, error) {
	if sink == nil {
		return nil, errors.New("catalog requires a sink")
	}
	if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create catalog dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", dsn)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate catalog")
	}
	return &Catalog{db: db, sink: sink}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Save stores the content in the wrapped sink and records the entry.
func (c *Catalog) Save(ctx context.Context, req Request, r io.Reader) (Entry, error) {
	entry, err := c.sink.Save(ctx, req, r)
	if err != nil {
		return Entry{}, err
	}
	if err := c.Record(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Record inserts or replaces an entry.
func (c *Catalog) Record(ctx context.Context, entry Entry) error {
	_, err := c.db.ExecContext(ctx, `
INSERT OR REPLACE INTO media (id, display_name, mime_type, relative_path, uri, size, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.DisplayName, entry.MIMEType, entry.RelativePath,
		entry.URI, entry.Size, entry.CreatedAt.UnixNano())
	if err != nil {
		return errors.Wrapf(err, "record %s", entry.DisplayName)
	}
	return nil
}

// Open reads content back through the wrapped sink when it supports reading.
func (c *Catalog) Open(ctx context.Context, entry Entry) (io.ReadCloser, error) {
	opener, ok := c.sink.(Opener)
	if !ok {
		return nil, errors.Errorf("sink %T cannot open entries", c.sink)
	}
	return opener.Open(ctx, entry)
}

// Get returns the entry with the given id.
func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT id, display_name, mime_type, relative_path, uri, size, created_at
FROM media WHERE id = ?`, id.String())
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, errors.Wrapf(ErrNotFound, "%s", id)
	}
	return entry, err
}

// List returns entries whose MIME type starts with mimePrefix (e.g. "image/"),
// oldest first. An empty prefix lists everything.
func (c *Catalog) List(ctx context.Context, mimePrefix string) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT id, display_name, mime_type, relative_path, uri, size, created_at
FROM media WHERE mime_type LIKE ? ESCAPE '\'
ORDER BY created_at, display_name`, escapeLike(mimePrefix)+"%")
	if err != nil {
		return nil, errors.Wrap(err, "list catalog")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, errors.Wrap(rows.Err(), "list catalog")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e       Entry
		id      string
		created int64
	)
	if err := s.Scan(&id, &e.DisplayName, &e.MIMEType, &e.RelativePath, &e.URI, &e.Size, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, errors.Wrap(err, "scan media entry")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "parse id %q", id)
	}
	e.ID = parsed
	e.CreatedAt = time.Unix(0, created).UTC()
	return e, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
