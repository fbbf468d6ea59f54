package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client talks to the Gemini REST API. It implements both BlobStore
// (the Files API) and Generator (generateContent).
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Gemini client for the given API key and model.
func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Fetch retrieves a file handle by its deterministic name.
func (c *Client) Fetch(ctx context.Context, name string) (Blob, error) {
	url := fmt.Sprintf("%s/v1beta/files/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Blob{}, fmt.Errorf("create fetch request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Blob{}, fmt.Errorf("fetch blob %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Blob{}, fmt.Errorf("read fetch response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		// The Files API reports unknown names as 403 for some key
		// scopes and 404 for others; both mean "not here".
		return Blob{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return Blob{}, fmt.Errorf("fetch blob %s: %s", name, errorMessage(resp.StatusCode, body))
	}

	var blob Blob
	if err := json.Unmarshal(body, &blob); err != nil {
		return Blob{}, fmt.Errorf("decode blob %s: %w", name, err)
	}
	return blob, nil
}

// Create uploads data under an explicit name. A name conflict maps to
// ErrAlreadyExists so callers can recover by re-fetching.
func (c *Client) Create(ctx context.Context, name string, data []byte, mimeType, displayName string) (Blob, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return Blob{}, fmt.Errorf("create metadata part: %w", err)
	}
	meta := map[string]any{
		"file": map[string]string{
			"name":        "files/" + name,
			"displayName": displayName,
		},
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return Blob{}, fmt.Errorf("encode metadata: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", mimeType)
	filePart, err := w.CreatePart(fileHeader)
	if err != nil {
		return Blob{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := filePart.Write(data); err != nil {
		return Blob{}, fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return Blob{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return Blob{}, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())

	resp, err := c.http.Do(req)
	if err != nil {
		return Blob{}, fmt.Errorf("upload blob %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Blob{}, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := errorMessage(resp.StatusCode, body)
		if resp.StatusCode == http.StatusConflict || strings.Contains(msg, "already exists") {
			return Blob{}, ErrAlreadyExists
		}
		return Blob{}, fmt.Errorf("upload blob %s: %s", name, msg)
	}

	var created struct {
		File Blob `json:"file"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return Blob{}, fmt.Errorf("decode upload response: %w", err)
	}
	return created.File, nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	FileURI  string `json:"file_uri"`
	MimeType string `json:"mime_type"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

// Generate issues a generateContent call and returns the raw text of
// the first candidate.
func (c *Client) Generate(ctx context.Context, greq GenerateRequest) (string, error) {
	parts := make([]part, 0, len(greq.Parts))
	for _, p := range greq.Parts {
		if p.FileURI != "" {
			parts = append(parts, part{FileData: &fileData{FileURI: p.FileURI, MimeType: p.FileMimeType}})
			continue
		}
		parts = append(parts, part{Text: p.Text})
	}

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	}
	if greq.Schema != nil {
		body.GenerationConfig = &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   greq.Schema,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate: %s", errorMessage(resp.StatusCode, respBody))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate: no candidates in response")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func errorMessage(status int, body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Error.Message, status)
	}
	return fmt.Sprintf("HTTP %d", status)
}
