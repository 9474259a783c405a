// Package evalcache stores generated datatable bodies keyed by a content
// etag, so re-rendering a report for an unchanged model skips the expensive
// evaluation on the producing side. Bodies are gzip-compressed blobs in a
// single-table SQLite database.
package evalcache

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "modernc.org/sqlite"
)

// ErrMiss is returned by Get when the etag has no cached body.
var ErrMiss = errors.New("evalcache: miss")

// Cache is a datatable blob cache.
type Cache struct {
	db *sql.DB
}

// Open opens or creates a cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open evalcache %s: %w", path, err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS datatables (
		etag TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		created INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create evalcache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Put stores a datatable body under an etag, replacing any previous entry.
func (c *Cache) Put(etag string, body []byte) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return fmt.Errorf("compress datatable: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress datatable: %w", err)
	}
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO datatables (etag, body, created) VALUES (?, ?, ?)",
		etag, buf.Bytes(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put datatable %s: %w", etag, err)
	}
	return nil
}

// Get returns the cached body for an etag, or ErrMiss.
func (c *Cache) Get(etag string) ([]byte, error) {
	var blob []byte
	err := c.db.QueryRow(
		"SELECT body FROM datatables WHERE etag = ?", etag).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get datatable %s: %w", etag, err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decompress datatable %s: %w", etag, err)
	}
	defer func() { _ = zr.Close() }()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress datatable %s: %w", etag, err)
	}
	return body, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error { return c.db.Close() }
