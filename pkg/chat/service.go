package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/giraffeguru/paperchat/pkg/genai"
	"github.com/giraffeguru/paperchat/pkg/ingest"
	"github.com/giraffeguru/paperchat/pkg/models"
	"github.com/giraffeguru/paperchat/pkg/papers"
)

// Ingester resolves a paper's canonical remote blob.
type Ingester interface {
	Ensure(ctx context.Context, ref papers.Ref) (ingest.Resolution, error)
}

// Service answers paper conversation requests. It holds no per-session
// state; each call is fully determined by the request it receives.
type Service struct {
	ingester Ingester
	gen      genai.Generator
}

// NewService creates a chat Service.
func NewService(ingester Ingester, gen genai.Generator) *Service {
	return &Service{ingester: ingester, gen: gen}
}

// Respond handles one conversation turn end to end: validate the
// request, classify the turn, attach the paper on first contact, issue
// a schema-constrained generation call, and enforce the response
// contract on the result.
func (s *Service) Respond(ctx context.Context, req models.ChatRequest) (models.StructuredResponse, error) {
	if err := ValidateTranscript(req.Messages); err != nil {
		return models.StructuredResponse{}, err
	}
	ref, err := papers.Parse(req.PaperID, papers.Source(req.Source))
	if err != nil {
		return models.StructuredResponse{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	current := req.Messages[len(req.Messages)-1]

	var parts []genai.Part
	switch Classify(req.Messages) {
	case FirstTurn:
		res, err := s.ingester.Ensure(ctx, ref)
		if err != nil {
			return models.StructuredResponse{}, fmt.Errorf("obtain paper %s: %w", ref.ID, err)
		}

		prompt := answerPrompt(ref, current.Content)
		if DetectIntent(current.Content) == IntentWelcome {
			prompt = welcomePrompt(ref)
		}
		parts = []genai.Part{
			{FileURI: res.Blob.URI, FileMimeType: res.Blob.MimeType},
			{Text: prompt},
		}
	case FollowUp:
		history := req.Messages[:len(req.Messages)-1]
		parts = []genai.Part{{Text: followUpPrompt(ref, history, current.Content)}}
	}

	raw, err := s.gen.Generate(ctx, genai.GenerateRequest{Parts: parts, Schema: ResponseSchema})
	if err != nil {
		return models.StructuredResponse{}, fmt.Errorf("generate response: %w", err)
	}

	resp, err := ParseStructured(raw)
	if err != nil {
		// Keep the offending output in the log; it is the only
		// evidence of what the backend actually produced.
		log.Printf("contract violation for paper %s, raw output: %q", ref.ID, raw)
		return models.StructuredResponse{}, err
	}

	resp.Content = papers.RewritePageRefs(resp.Content)
	for i := range resp.SuggestedQuestions {
		resp.SuggestedQuestions[i].Text = papers.RewritePageRefs(resp.SuggestedQuestions[i].Text)
		resp.SuggestedQuestions[i].Description = papers.RewritePageRefs(resp.SuggestedQuestions[i].Description)
	}
	return resp, nil
}
