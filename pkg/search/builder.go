// Package search builds upstream trial-registry query parameters from
// free-text input, using a cached condensation of the registry's API
// specification as reference material for the generation backend.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/giraffeguru/paperchat/pkg/extract"
	"github.com/giraffeguru/paperchat/pkg/genai"
)

// Input is a free-text search request.
type Input struct {
	Keywords string   `json:"keywords"`
	Statuses []string `json:"statuses,omitempty"`
	Location string   `json:"location,omitempty"`
}

// Output holds the generated query parameters.
type Output struct {
	QueryParams map[string]string `json:"queryParams"`
}

var queryParamsSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"query.term": {"type": "STRING"},
		"query.cond": {"type": "STRING"},
		"query.locn": {"type": "STRING"},
		"filter.overallStatus": {"type": "STRING"}
	},
	"required": ["query.term"],
	"propertyOrdering": ["query.term", "query.cond", "filter.overallStatus", "query.locn"]
}`)

// minimalAPIInfo is the built-in fallback reference used when no API
// specification file is configured or it cannot be processed.
const minimalAPIInfo = `ClinicalTrials.gov API Essential Parameters:

Required:
- query.term (string): other terms to search for

Optional Query:
- query.locn (string): Location search terms
- query.cond (string): Conditions or diseases to search for

This API uses Essie expression syntax for each field.

Rules:
- Use comma-separated values for arrays
- Set reasonable defaults for pagination`

// Builder generates registry query parameters.
type Builder struct {
	extractor *extract.Extractor
	gen       genai.Generator
	specPath  string
}

// New creates a Builder. specPath may be empty; the minimal built-in
// reference is used instead.
func New(extractor *extract.Extractor, gen genai.Generator, specPath string) *Builder {
	return &Builder{extractor: extractor, gen: gen, specPath: specPath}
}

// BuildQuery turns free-text input into validated query parameters.
// The API-spec condensation is served from the extraction cache on
// every call after the first.
func (b *Builder) BuildQuery(ctx context.Context, in Input) (Output, error) {
	if strings.TrimSpace(in.Keywords) == "" {
		return Output{}, fmt.Errorf("keywords are required")
	}

	apiInfo := b.apiInfo(ctx)

	prompt := fmt.Sprintf(`Build ClinicalTrials.gov API query parameters.

Input:
The user is looking for %s
- Statuses: %s
- Location: %s

API Reference:
%s

Instructions:
1. Use query.term for other terms
2. Use query.cond for conditions and diseases
3. Use query.locn for location if provided
4. Use filter.overallStatus for comma-separated statuses if provided
5. Only include parameters that have values
6. Ensure status values are valid from the API spec

Use Essie expression syntax for fields.

Return a JSON object with parameter names as keys and their values.`,
		in.Keywords, orNone(strings.Join(in.Statuses, ", ")), orNone(in.Location), apiInfo)

	raw, err := b.gen.Generate(ctx, genai.GenerateRequest{
		Parts:  []genai.Part{{Text: prompt}},
		Schema: queryParamsSchema,
	})
	if err != nil {
		return Output{}, fmt.Errorf("build query: %w", err)
	}

	var params map[string]string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &params); err != nil {
		log.Printf("query builder produced unparseable output: %q", raw)
		return Output{}, fmt.Errorf("query output was not valid JSON: %w", err)
	}
	return Output{QueryParams: params}, nil
}

// apiInfo returns the condensed API reference, falling back to the
// built-in minimal reference when the spec file is absent or broken.
func (b *Builder) apiInfo(ctx context.Context) string {
	if b.specPath == "" {
		return minimalAPIInfo
	}

	raw, err := os.ReadFile(b.specPath)
	if err != nil {
		log.Printf("api spec unreadable, using minimal reference: %v", err)
		return minimalAPIInfo
	}

	label := filepath.Base(b.specPath)
	info, err := b.extractor.Extract(ctx, raw, label, extract.FormatForFile(label))
	if err != nil {
		log.Printf("api spec extraction failed, using minimal reference: %v", err)
		return minimalAPIInfo
	}
	return info
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
