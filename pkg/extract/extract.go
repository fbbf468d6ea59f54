// Package extract condenses structured reference documents (API specs
// and similar) into short textual guides, caching results by content
// digest so identical bytes are never reprocessed.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/giraffeguru/paperchat/pkg/cache/sqlite"
	"github.com/giraffeguru/paperchat/pkg/genai"
)

// Format declares how raw document bytes should be normalized before
// extraction.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// FormatForFile guesses the format from a file name.
func FormatForFile(name string) Format {
	switch {
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return FormatYAML
	case strings.HasSuffix(name, ".json"):
		return FormatJSON
	default:
		return FormatText
	}
}

// maxPromptBytes bounds how much of the normalized document is sent to
// the generation backend.
const maxPromptBytes = 200_000

const extractionInstruction = `Produce a condensed reference guide for the API specification below, under 2000 tokens. Preserve parameter names, required/optional status, enum values, and defaults. Omit prose descriptions that do not affect how requests are built.`

// Extractor turns raw schema-document bytes into condensed reference
// text, backed by the persistent extraction cache.
type Extractor struct {
	cache *sqlite.Cache
	gen   genai.Generator
}

// New creates an Extractor. The cache may not be nil; caching is the
// component's central performance contract.
func New(cache *sqlite.Cache, gen genai.Generator) *Extractor {
	return &Extractor{cache: cache, gen: gen}
}

// Extract returns the condensed form of raw, computing it at most once
// per distinct byte sequence. Parse and generation failures are fatal
// for the call and are never cached.
func (e *Extractor) Extract(ctx context.Context, raw []byte, label string, format Format) (string, error) {
	digest := sqlite.HashBytes(raw)
	if entry, ok := e.cache.Get(digest); ok {
		return entry.Content, nil
	}

	normalized, err := normalize(raw, format)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", label, err)
	}
	if len(normalized) > maxPromptBytes {
		normalized = truncateAtRune(normalized, maxPromptBytes)
	}

	prompt := fmt.Sprintf("%s\n\nDocument (%s):\n%s", extractionInstruction, label, normalized)
	result, err := e.gen.Generate(ctx, genai.GenerateRequest{Parts: []genai.Part{{Text: prompt}}})
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", label, err)
	}

	if err := e.cache.Put(digest, result, label); err != nil {
		// The result is still valid; a failed write only costs a
		// recomputation on the next call.
		log.Printf("cache put failed for %s: %v", label, err)
	}
	return result, nil
}

// truncateAtRune cuts s to at most n bytes without splitting a
// multi-byte rune at the boundary.
func truncateAtRune(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func normalize(raw []byte, format Format) (string, error) {
	switch format {
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return "", fmt.Errorf("invalid yaml: %w", err)
		}
		canonical, err := yaml.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("canonicalize yaml: %w", err)
		}
		return string(canonical), nil
	case FormatJSON:
		if !json.Valid(raw) {
			return "", fmt.Errorf("invalid json")
		}
		return string(raw), nil
	default:
		return string(raw), nil
	}
}
