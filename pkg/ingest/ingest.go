// Package ingest guarantees that exactly one remote copy of a paper's
// PDF exists under its deterministic blob name, tolerating concurrent
// creators without a distributed lock.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/giraffeguru/paperchat/pkg/genai"
	"github.com/giraffeguru/paperchat/pkg/papers"
)

// ErrUpstreamData marks a fatal problem with the downloaded document
// itself (bad status, wrong format, oversize). Retrying cannot fix it,
// and callers must be able to tell it apart from transient failures.
var ErrUpstreamData = errors.New("upstream document invalid")

var pdfMagic = []byte("%PDF")

// Outcome reports how a blob was resolved.
type Outcome string

const (
	// OutcomeFound means the blob already existed remotely.
	OutcomeFound Outcome = "found"
	// OutcomeCreatedNew means this call uploaded the blob.
	OutcomeCreatedNew Outcome = "created"
)

// Resolution is the result of a successful Ensure.
type Resolution struct {
	Blob    genai.Blob
	Outcome Outcome
}

// Ingester downloads paper PDFs and places them in the remote blob
// store under deterministic names.
type Ingester struct {
	store     genai.BlobStore
	http      *http.Client
	maxBytes  int64
	userAgent string
}

// New creates an Ingester. maxBytes bounds accepted PDF sizes.
func New(store genai.BlobStore, httpClient *http.Client, maxBytes int64, userAgent string) *Ingester {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Ingester{
		store:     store,
		http:      httpClient,
		maxBytes:  maxBytes,
		userAgent: userAgent,
	}
}

// Ensure resolves the canonical remote copy of the paper:
// fetch by name; on miss download, validate, and create; on a creation
// race re-fetch the winner's copy. At most one logical remote copy per
// paper results, regardless of concurrent callers.
func (in *Ingester) Ensure(ctx context.Context, ref papers.Ref) (Resolution, error) {
	name := ref.BlobName()

	blob, err := in.store.Fetch(ctx, name)
	if err == nil {
		return Resolution{Blob: blob, Outcome: OutcomeFound}, nil
	}
	if !errors.Is(err, genai.ErrNotFound) {
		return Resolution{}, fmt.Errorf("fetch blob %s: %w", name, err)
	}

	data, err := in.Download(ctx, ref)
	if err != nil {
		return Resolution{}, err
	}

	blob, err = in.store.Create(ctx, name, data, "application/pdf", ref.DisplayName())
	if err == nil {
		return Resolution{Blob: blob, Outcome: OutcomeCreatedNew}, nil
	}
	if !errors.Is(err, genai.ErrAlreadyExists) {
		return Resolution{}, fmt.Errorf("create blob %s: %w", name, err)
	}

	// A concurrent creator won the race; their copy is just as good.
	log.Printf("blob %s created concurrently, re-fetching", name)
	blob, err = in.store.Fetch(ctx, name)
	if err != nil {
		return Resolution{}, fmt.Errorf("re-fetch blob %s after conflict: %w", name, err)
	}
	return Resolution{Blob: blob, Outcome: OutcomeFound}, nil
}

// Download retrieves the paper's PDF from its source and validates the
// payload. Validation failures wrap ErrUpstreamData.
func (in *Ingester) Download(ctx context.Context, ref papers.Ref) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.PDFURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	if in.userAgent != "" {
		req.Header.Set("User-Agent", in.userAgent)
	}

	resp, err := in.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref.PDFURL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrUpstreamData, ref.SourceDisplayName(), resp.StatusCode)
	}

	// Read one byte past the limit so oversize bodies are detected
	// without buffering them whole.
	data, err := io.ReadAll(io.LimitReader(resp.Body, in.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	if int64(len(data)) > in.maxBytes {
		return nil, fmt.Errorf("%w: pdf exceeds %d byte limit", ErrUpstreamData, in.maxBytes)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("%w: downloaded content is not a pdf", ErrUpstreamData)
	}
	return data, nil
}
