package models

// ChatMessage represents a single turn in a paper conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles. The transcript supplied by the client is the only
// conversation state the server ever sees.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is the body of POST /api/papers/chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	PaperID  string        `json:"paperId"`
	Source   string        `json:"source"`
}

// ResponseType classifies a structured response for UI handling.
type ResponseType string

const (
	ResponseWelcome       ResponseType = "welcome"
	ResponseAnswer        ResponseType = "answer"
	ResponseClarification ResponseType = "clarification"
	ResponseError         ResponseType = "error"
)

// Valid reports whether t is one of the known response types.
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseWelcome, ResponseAnswer, ResponseClarification, ResponseError:
		return true
	}
	return false
}

// SuggestedQuestion is a follow-up question the model proposes.
type SuggestedQuestion struct {
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// StructuredResponse is the machine-parseable shape the generation
// backend must produce. Content and ResponseType are always present;
// SuggestedQuestions is an empty slice rather than nil when absent.
type StructuredResponse struct {
	Content            string              `json:"content"`
	SuggestedQuestions []SuggestedQuestion `json:"suggestedQuestions"`
	ResponseType       ResponseType        `json:"responseType"`
}

// ChatAPIResponse is the success body of POST /api/papers/chat.
type ChatAPIResponse struct {
	Response   string             `json:"response"`
	Structured StructuredResponse `json:"structured"`
}

// APIError is the failure body for every endpoint, distinct from the
// success shape so clients never need to inspect status codes alone.
type APIError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
