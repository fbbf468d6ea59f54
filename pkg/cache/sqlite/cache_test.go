package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extractions.db")
	c, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHashBytes(t *testing.T) {
	h1 := HashBytes([]byte("openapi: 3.0.0"))
	h2 := HashBytes([]byte("openapi: 3.0.0"))
	h3 := HashBytes([]byte("openapi: 3.1.0"))

	if h1 != h2 {
		t.Error("same input should produce same digest")
	}
	if h1 == h3 {
		t.Error("different input should produce different digest")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestHashBytesNoCollisions(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 500; i++ {
		input := fmt.Sprintf("document body %d", i)
		h := HashBytes([]byte(input))
		if prev, ok := seen[h]; ok {
			t.Fatalf("digest collision between %q and %q", prev, input)
		}
		seen[h] = input
	}
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t)
	digest := HashBytes([]byte("spec bytes"))

	if err := c.Put(digest, "condensed reference", "ctg-oas-v2.yaml"); err != nil {
		t.Fatal(err)
	}

	e, ok := c.Get(digest)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if e.Content != "condensed reference" {
		t.Errorf("unexpected content: %s", e.Content)
	}
	if e.SourceLabel != "ctg-oas-v2.yaml" {
		t.Errorf("unexpected label: %s", e.SourceLabel)
	}

	if _, ok := c.Get(HashBytes([]byte("other bytes"))); ok {
		t.Error("expected miss for different digest")
	}
}

func TestGetNeverReturnsOtherKeysValue(t *testing.T) {
	c := newTestCache(t)
	da := HashBytes([]byte("input a"))
	db := HashBytes([]byte("input b"))

	if err := c.Put(da, "value a", "a"); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(db, "value b", "b"); err != nil {
		t.Fatal(err)
	}

	ea, _ := c.Get(da)
	eb, _ := c.Get(db)
	if ea.Content != "value a" || eb.Content != "value b" {
		t.Errorf("cross-key contamination: %q / %q", ea.Content, eb.Content)
	}
}

func TestPutIdempotent(t *testing.T) {
	c := newTestCache(t)
	digest := HashBytes([]byte("spec"))

	if err := c.Put(digest, "v1", "spec"); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(digest, "v1", "spec"); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry after repeated put, got %d", stats.Entries)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t)

	_ = c.Put("d1", "abcde", "l1")
	_ = c.Put("d2", "fghij", "l2")

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.Bytes != 10 {
		t.Errorf("expected 10 bytes, got %d", stats.Bytes)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t)

	_ = c.Put("d1", "x", "l")
	_ = c.Put("d2", "y", "l")

	if err := c.Clear(0); err != nil {
		t.Fatal(err)
	}

	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("expected 0 entries after clear, got %d", stats.Entries)
	}
}

func TestClearOlderThanKeepsFreshEntries(t *testing.T) {
	c := newTestCache(t)

	_ = c.Put("fresh", "x", "l")

	if err := c.Clear(time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("fresh"); !ok {
		t.Error("age sweep should not remove fresh entries")
	}
}

func TestCorruptStoreIsRebuiltEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extractions.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := New(path)
	if err != nil {
		t.Fatalf("corrupt store should be treated as empty, got: %v", err)
	}
	defer c.Close()

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Errorf("expected empty rebuilt cache, got %d entries", stats.Entries)
	}
}

func TestOpenAppliesConnectionPragmas(t *testing.T) {
	c := newTestCache(t)

	var journalMode string
	if err := c.db.QueryRow(`PRAGMA journal_mode`).Scan(&journalMode); err != nil {
		t.Fatal(err)
	}
	if journalMode != "wal" {
		t.Errorf("expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := c.db.QueryRow(`PRAGMA busy_timeout`).Scan(&busyTimeout); err != nil {
		t.Fatal(err)
	}
	if busyTimeout != 5000 {
		t.Errorf("expected busy_timeout=5000, got %d", busyTimeout)
	}
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extractions.db")

	c, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	digest := HashBytes([]byte("persistent"))
	if err := c.Put(digest, "kept", "spec"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()

	e, ok := c2.Get(digest)
	if !ok || e.Content != "kept" {
		t.Error("entry should survive process restart")
	}
}
