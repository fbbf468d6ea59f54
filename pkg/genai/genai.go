// Package genai defines the narrow capabilities this service consumes
// from the generation backend: named blob storage and schema-constrained
// text generation.
package genai

import (
	"context"
	"encoding/json"
	"errors"
)

// Sentinel errors used by the ingestion protocol. The store must
// distinguish "name not found" from "name already taken" atomically;
// everything else is an ordinary failure.
var (
	ErrNotFound      = errors.New("blob not found")
	ErrAlreadyExists = errors.New("blob already exists")
)

// Blob is a handle to a remote document the backend can reference in
// generation requests without re-transmission.
type Blob struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
}

// BlobStore is the remote document store. Create must fail with
// ErrAlreadyExists when the name is taken rather than overwriting.
type BlobStore interface {
	Fetch(ctx context.Context, name string) (Blob, error)
	Create(ctx context.Context, name string, data []byte, mimeType, displayName string) (Blob, error)
}

// Part is one piece of generation input: either text or a reference to
// a previously uploaded blob.
type Part struct {
	Text         string
	FileURI      string
	FileMimeType string
}

// GenerateRequest describes one generation call. A non-nil Schema is
// enforced by the backend (schema-constrained decoding), not merely
// requested in prose.
type GenerateRequest struct {
	Parts  []Part
	Schema json.RawMessage
}

// Generator produces text from a generation request.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
