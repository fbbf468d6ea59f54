package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/giraffeguru/paperchat/pkg/models"
)

// ErrContractViolation marks generation output that fails the
// structured response contract. It indicates a backend fault, not a
// user or network error, and is never patched into a guessed value.
var ErrContractViolation = errors.New("structured response contract violated")

// ResponseSchema is the output shape enforced on the generation
// backend via schema-constrained decoding.
var ResponseSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"content": {
			"type": "STRING",
			"description": "Main response content in markdown format"
		},
		"suggestedQuestions": {
			"type": "ARRAY",
			"items": {
				"type": "OBJECT",
				"properties": {
					"text": {"type": "STRING", "description": "The suggested question text"},
					"description": {"type": "STRING", "description": "Optional description of what this question explores"}
				},
				"required": ["text"],
				"propertyOrdering": ["text", "description"]
			},
			"description": "Context-aware suggested questions based on current conversation"
		},
		"responseType": {
			"type": "STRING",
			"enum": ["welcome", "answer", "clarification", "error"],
			"description": "Type of response for UI handling"
		}
	},
	"required": ["content", "responseType"],
	"propertyOrdering": ["content", "suggestedQuestions", "responseType"]
}`)

// ParseStructured parses raw generation output against the contract.
// It either yields a fully valid response or fails atomically with
// ErrContractViolation; it never returns a partially filled value.
func ParseStructured(raw string) (models.StructuredResponse, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.StructuredResponse{}, fmt.Errorf("%w: empty output", ErrContractViolation)
	}

	// Unknown extra fields are tolerated; only missing or invalid
	// required fields violate the contract.
	var resp models.StructuredResponse
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return models.StructuredResponse{}, fmt.Errorf("%w: %v", ErrContractViolation, err)
	}

	if resp.Content == "" {
		return models.StructuredResponse{}, fmt.Errorf("%w: missing content", ErrContractViolation)
	}
	if !resp.ResponseType.Valid() {
		return models.StructuredResponse{}, fmt.Errorf("%w: invalid responseType %q", ErrContractViolation, resp.ResponseType)
	}
	for _, q := range resp.SuggestedQuestions {
		if q.Text == "" {
			return models.StructuredResponse{}, fmt.Errorf("%w: suggested question without text", ErrContractViolation)
		}
	}

	if resp.SuggestedQuestions == nil {
		resp.SuggestedQuestions = []models.SuggestedQuestion{}
	}
	return resp, nil
}
