package models

import "time"

// ExtractionEntry stores the condensed form of one schema document,
// keyed by the digest of its exact input bytes.
type ExtractionEntry struct {
	Digest      string    `json:"digest"`
	Content     string    `json:"content"`
	SourceLabel string    `json:"source_label"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheStats reports extraction cache size for operational visibility.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Bytes   int64 `json:"bytes"`
}
