// Package sqlite provides the content-addressed extraction cache.
package sqlite

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/giraffeguru/paperchat/pkg/models"
)

// Cache is a disk-backed map from content digest to extracted text.
// Losing it only costs recomputation, never correctness, so read
// failures degrade to misses and a corrupt store is rebuilt empty.
type Cache struct {
	db *sql.DB
}

const createExtractionsTable = `
CREATE TABLE IF NOT EXISTS extractions (
	digest TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	source_label TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// New opens the cache database at path, creating the schema if needed.
// An unreadable or corrupt database is deleted and recreated once.
func New(path string) (*Cache, error) {
	db, err := open(path)
	if err != nil {
		log.Printf("cache db unusable, rebuilding empty: %v", err)
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("remove corrupt cache db: %w", rmErr)
		}
		db, err = open(path)
		if err != nil {
			return nil, err
		}
	}
	return &Cache{db: db}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(createExtractionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return db, nil
}

// HashBytes computes the cache key for an exact byte sequence.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// Get retrieves a cached extraction. Any read error counts as a miss;
// the cache is an optimization, not a correctness dependency.
func (c *Cache) Get(digest string) (models.ExtractionEntry, bool) {
	var e models.ExtractionEntry
	err := c.db.QueryRow(
		`SELECT digest, content, source_label, created_at FROM extractions WHERE digest = ?`,
		digest,
	).Scan(&e.Digest, &e.Content, &e.SourceLabel, &e.CreatedAt)
	if err != nil {
		return models.ExtractionEntry{}, false
	}
	return e, true
}

// Put stores an extraction. Last writer wins: concurrent writers for
// the same digest produce value-equal entries, so the overwrite is
// idempotent. The write is synchronous and atomic per row.
func (c *Cache) Put(digest, content, sourceLabel string) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO extractions (digest, content, source_label, created_at)
		 VALUES (?, ?, ?, ?)`,
		digest, content, sourceLabel, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats returns the entry count and approximate serialized size.
func (c *Cache) Stats() (models.CacheStats, error) {
	var stats models.CacheStats
	err := c.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(content)), 0) FROM extractions`,
	).Scan(&stats.Entries, &stats.Bytes)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

// Clear removes entries. A zero olderThan wipes everything; a positive
// value removes only entries past that age. Maintenance use only,
// never called on a request path.
func (c *Cache) Clear(olderThan time.Duration) error {
	var err error
	if olderThan > 0 {
		cutoff := time.Now().UTC().Add(-olderThan)
		_, err = c.db.Exec(`DELETE FROM extractions WHERE created_at < ?`, cutoff)
	} else {
		_, err = c.db.Exec(`DELETE FROM extractions`)
	}
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
