// Package chat implements the stateless conversation protocol: the
// client-supplied transcript is the only session state, and every
// response must satisfy the structured output contract.
package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/giraffeguru/paperchat/pkg/models"
	"github.com/giraffeguru/paperchat/pkg/papers"
)

// ErrValidation marks malformed requests (bad transcript, bad paper
// id). Handlers map it to a 4xx status; it is never retried.
var ErrValidation = errors.New("invalid request")

// Turn is the conversation state reconstructed from the transcript.
type Turn int

const (
	// FirstTurn means the paper has not been shown to the model yet
	// and must be ingested and attached.
	FirstTurn Turn = iota
	// FollowUp means the model has already analyzed the paper; only
	// the textual history is sent.
	FollowUp
)

// Classify determines the turn from the transcript: FirstTurn iff it
// holds exactly the current user message. Once any assistant turn
// exists the session is FollowUp for the rest of the transcript; the
// protocol has no way to "forget" the paper mid-conversation.
func Classify(messages []models.ChatMessage) Turn {
	if len(messages) == 1 {
		return FirstTurn
	}
	return FollowUp
}

// ValidateTranscript checks the protocol invariant: a non-empty
// transcript whose last turn is user-authored.
func ValidateTranscript(messages []models.ChatMessage) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: transcript is empty", ErrValidation)
	}
	if messages[len(messages)-1].Role != models.RoleUser {
		return fmt.Errorf("%w: last message must be from user", ErrValidation)
	}
	return nil
}

// Intent classifies what the current user message asks for.
type Intent int

const (
	// IntentQuestion is a substantive question about the paper.
	IntentQuestion Intent = iota
	// IntentWelcome requests an orientation message with suggested
	// follow-up questions.
	IntentWelcome
)

var welcomePhrases = []string{"welcome message", "suggested questions"}

// DetectIntent recognizes the fixed welcome-request phrases by
// case-insensitive substring match.
func DetectIntent(message string) Intent {
	lower := strings.ToLower(message)
	for _, phrase := range welcomePhrases {
		if strings.Contains(lower, phrase) {
			return IntentWelcome
		}
	}
	return IntentQuestion
}

const citationGuidelines = `Guidelines for content field:
- CRITICAL: Always format page references using EXACTLY this format: (page X) for single pages or (page X, page Y) for multiple pages. Examples: "(page 1)", "(page 2, page 6)". NEVER use formats like "page 1,3" or "page 1-3"
- CRITICAL: ONLY state information you can actually find in the PDF content
- NEVER make assumptions or educated guesses about information not explicitly stated
- If you cannot find specific information, clearly state "I cannot find this information in the paper"
- Never make up or hallucinate page references - only cite pages where you actually found the information
- Do NOT start responses with "Based on my analysis" or "According to the paper"
- Use markdown formatting for better readability`

// welcomePrompt builds the first-turn orientation prompt.
func welcomePrompt(ref papers.Ref) string {
	return fmt.Sprintf(`%s

You are helping with %s paper %s. After analyzing the PDF, create a brief welcome message.

For the content field: Provide a brief welcome message with one sentence summary of what this paper is about.

For suggestedQuestions: Create 4-5 specific questions that users can ask about THIS particular paper. Make them specific to the paper's content, methodology, and findings - not generic questions.

Set responseType to "welcome".`, ref.AIContext(), ref.SourceDisplayName(), ref.ID)
}

// answerPrompt builds the first-turn question prompt.
func answerPrompt(ref papers.Ref, question string) string {
	return fmt.Sprintf(`%s

You are helping with %s paper %s. You are part of GiraffeGuru, a tool for exploring academic papers.

Answer this question: %s

%s

For suggestedQuestions: Provide 2-4 contextually relevant follow-up questions based on your answer and the current conversation. Make them specific to this paper's content, not generic.

Set responseType to "answer".`, ref.AIContext(), ref.SourceDisplayName(), ref.ID, question, citationGuidelines)
}

// followUpPrompt builds the prompt for later turns. The paper is not
// re-attached; the backend relies on its retained context for the
// previously uploaded blob.
func followUpPrompt(ref papers.Ref, history []models.ChatMessage, question string) string {
	return fmt.Sprintf(`%s

Continue our conversation about %s paper %s. You have already analyzed the PDF content. You are part of GiraffeGuru, a tool for exploring academic papers.

%sCurrent question: %s

%s

For suggestedQuestions: Provide 2-4 contextually relevant suggested questions based on our conversation history. Make them specific to this paper and our current discussion thread.

Set responseType to "answer".`, ref.AIContext(), ref.SourceDisplayName(), ref.ID, renderHistory(history), question, citationGuidelines)
}

// renderHistory serializes prior turns for inclusion in a follow-up
// prompt. Returns "" when there is no history.
func renderHistory(history []models.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	for i, msg := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		speaker := "Assistant"
		if msg.Role == models.RoleUser {
			speaker = "Human"
		}
		fmt.Fprintf(&b, "%s: %s", speaker, msg.Content)
	}
	b.WriteString("\n\n---\n\n")
	return b.String()
}
