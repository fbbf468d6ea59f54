// Package papers identifies research papers across preprint servers and
// derives the deterministic names and URLs used to fetch and cache them.
package papers

import (
	"fmt"
	"strings"
)

// Source identifies a paper provider.
type Source string

const (
	SourceArxiv   Source = "arxiv"
	SourceMedrxiv Source = "medrxiv"
	SourceBiorxiv Source = "biorxiv"
)

// SourceConfig describes one paper provider.
type SourceConfig struct {
	Name        Source
	DisplayName string
	BaseURL     string
	PatternHint string
}

var sourceConfigs = map[Source]SourceConfig{
	SourceArxiv: {
		Name:        SourceArxiv,
		DisplayName: "arXiv",
		BaseURL:     "https://arxiv.org",
		PatternHint: "e.g., 2510.01309 or cs/0211011",
	},
	SourceMedrxiv: {
		Name:        SourceMedrxiv,
		DisplayName: "medRxiv",
		BaseURL:     "https://www.medrxiv.org",
		PatternHint: "e.g., 10.1101/2023.12.06.23299426v1",
	},
	SourceBiorxiv: {
		Name:        SourceBiorxiv,
		DisplayName: "bioRxiv",
		BaseURL:     "https://www.biorxiv.org",
		PatternHint: "e.g., 10.1101/2025.03.13.642940v2",
	},
}

// Config returns the provider configuration for a source.
func Config(s Source) (SourceConfig, bool) {
	cfg, ok := sourceConfigs[s]
	return cfg, ok
}

// Ref is a validated, immutable paper reference.
type Ref struct {
	// ID is the normalized paper identifier.
	ID string
	// Source is the provider the paper lives on.
	Source Source
	// Category is the arXiv subject category for old-format IDs, empty
	// otherwise.
	Category string
}

// Parse validates a raw paper identifier against the given source's
// pattern. An empty source triggers auto-detection across all known
// providers. The returned Ref is the only way to obtain URLs and blob
// names, so an invalid identifier can never reach the network.
func Parse(id string, source Source) (Ref, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Ref{}, fmt.Errorf("empty paper id")
	}

	if source == "" {
		detected, ok := detect(id)
		if !ok {
			return Ref{}, fmt.Errorf("unrecognized paper id format: %s", id)
		}
		source = detected
	}

	switch source {
	case SourceArxiv:
		return parseArxiv(id)
	case SourceMedrxiv:
		return parseRxiv(id, SourceMedrxiv)
	case SourceBiorxiv:
		return parseRxiv(id, SourceBiorxiv)
	default:
		return Ref{}, fmt.Errorf("unknown paper source: %s", source)
	}
}

func detect(id string) (Source, bool) {
	for _, s := range []Source{SourceArxiv, SourceMedrxiv, SourceBiorxiv} {
		if _, err := Parse(id, s); err == nil {
			return s, true
		}
	}
	return "", false
}

// BlobName derives the deterministic remote blob name for the paper.
// The same identifier always maps to the same name; this is the dedup
// key shared by every request referencing the paper.
func (r Ref) BlobName() string {
	replacer := strings.NewReplacer(".", "-", "/", "-")
	return strings.ToLower(fmt.Sprintf("%s-%s", r.Source, replacer.Replace(r.ID)))
}

// DisplayName returns the human-readable label for the remote blob.
func (r Ref) DisplayName() string {
	cfg := sourceConfigs[r.Source]
	return fmt.Sprintf("%s-%s.pdf", cfg.DisplayName, r.ID)
}

// SourceDisplayName returns the provider's display name.
func (r Ref) SourceDisplayName() string {
	return sourceConfigs[r.Source].DisplayName
}
