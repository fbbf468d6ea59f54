package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giraffeguru/paperchat/pkg/cache/sqlite"
	"github.com/giraffeguru/paperchat/pkg/extract"
	"github.com/giraffeguru/paperchat/pkg/genai"
)

type scriptedGenerator struct {
	calls   int
	outputs []string
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, req genai.GenerateRequest) (string, error) {
	var text string
	for _, p := range req.Parts {
		text += p.Text
	}
	g.prompts = append(g.prompts, text)
	out := g.outputs[g.calls%len(g.outputs)]
	g.calls++
	return out, nil
}

func newBuilder(t *testing.T, gen genai.Generator, specPath string) *Builder {
	t.Helper()
	cache, err := sqlite.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return New(extract.New(cache, gen), gen, specPath)
}

func TestBuildQueryWithSpecFile(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "ctg-oas-v2.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte("openapi: 3.0.0\npaths: {}\n"), 0o644))

	gen := &scriptedGenerator{outputs: []string{
		"condensed API guide",
		`{"query.term":"glioblastoma","query.locn":"Boston"}`,
		`{"query.term":"glioblastoma"}`,
	}}
	b := newBuilder(t, gen, specPath)

	out, err := b.BuildQuery(context.Background(), Input{Keywords: "glioblastoma", Location: "Boston"})
	require.NoError(t, err)
	assert.Equal(t, "glioblastoma", out.QueryParams["query.term"])
	assert.Equal(t, "Boston", out.QueryParams["query.locn"])

	// First call: one extraction + one query build.
	assert.Equal(t, 2, gen.calls)
	assert.Contains(t, gen.prompts[1], "condensed API guide")

	// Second call reuses the cached extraction.
	_, err = b.BuildQuery(context.Background(), Input{Keywords: "glioblastoma"})
	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls, "spec must not be re-extracted")
}

func TestBuildQueryFallsBackToMinimalInfo(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{`{"query.term":"asthma"}`}}
	b := newBuilder(t, gen, "")

	out, err := b.BuildQuery(context.Background(), Input{Keywords: "asthma"})
	require.NoError(t, err)
	assert.Equal(t, "asthma", out.QueryParams["query.term"])
	assert.Contains(t, gen.prompts[0], "Essential Parameters")
}

func TestBuildQueryMissingSpecFileFallsBack(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{`{"query.term":"asthma"}`}}
	b := newBuilder(t, gen, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := b.BuildQuery(context.Background(), Input{Keywords: "asthma"})
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.prompts[0], "Essential Parameters")
}

func TestBuildQueryRequiresKeywords(t *testing.T) {
	b := newBuilder(t, &scriptedGenerator{outputs: []string{"{}"}}, "")
	_, err := b.BuildQuery(context.Background(), Input{Keywords: "   "})
	assert.Error(t, err)
}

func TestBuildQueryUnparseableOutput(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"definitely not json"}}
	b := newBuilder(t, gen, "")
	_, err := b.BuildQuery(context.Background(), Input{Keywords: "asthma"})
	assert.Error(t, err)
}
