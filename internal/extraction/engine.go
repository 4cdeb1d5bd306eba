package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"crm-platform/internal/crm"
)

// Engine wraps the external text-understanding capability with the prompting
// contract, input truncation and schema validation. The capability itself is
// an injected interface; no vendor SDK leaks in here.

// Result is the structured knowledge extracted from one interaction.
type Result struct {
	Summary             string   `json:"summary"`
	PersonalFacts       []string `json:"personal_facts"`
	BusinessContext     []string `json:"business_context"`
	Commitments         []string `json:"commitments"`
	FollowUpSuggestions []string `json:"follow_up_suggestions"`
	SuggestedOpener     string   `json:"suggested_opener,omitempty"`
}

// ChatCompleter is the text-understanding capability boundary. It must
// return the model's raw response text for a system+user prompt pair,
// requesting JSON-object output where the backend supports it.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ParseError marks a response that did not match the result schema.
// Callers treat it as a skippable failure for that one item, never as a
// batch abort.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extraction: response did not match schema: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

const systemPrompt = `You are analyzing a conversation (call transcript or email) between a business and their customer.

Extract structured information from the conversation. Output ONLY valid JSON matching this exact schema:

{
  "summary": "2-4 sentences summarizing the key points of this interaction",
  "personal_facts": ["array of personal details about the customer (family, hobbies, preferences, etc)"],
  "business_context": ["array of business-relevant facts (role, company size, budget, timeline, pain points, etc)"],
  "commitments": ["array of promises or commitments made by either party"],
  "follow_up_suggestions": ["array of actionable next steps, time-bound when possible"],
  "suggested_opener": "optional single sentence opener for the next conversation"
}

Rules:
- DO NOT invent facts. Only include information explicitly stated or clearly implied.
- Keep facts short, concrete, and directly attributable to the conversation.
- Commitments should capture promises made by either party (deadlines, deliverables, callbacks).
- Follow-up suggestions should be actionable and specific.
- If a category has no relevant items, use an empty array [].
- Output ONLY the JSON object, no markdown formatting, no explanation.`

const (
	maxInputChars = 5000
	headKeep      = 1000
	tailKeep      = 4000

	truncationMarker = "[...content truncated for processing...]"
)

// truncateForContext bounds long input by keeping the first headKeep chars
// (greeting, context) and the last tailKeep chars (conclusions,
// commitments). Recency-weighted: decisions cluster near conversation ends.
func truncateForContext(text string) string {
	if len(text) <= maxInputChars {
		return text
	}
	return text[:headKeep] + "\n\n" + truncationMarker + "\n\n" + text[len(text)-tailKeep:]
}

type Engine struct {
	chat ChatCompleter
}

func NewEngine(chat ChatCompleter) *Engine {
	return &Engine{chat: chat}
}

// Extract runs the capability over text and validates the response against
// the Result schema.
func (e *Engine) Extract(ctx context.Context, text string, source crm.InteractionSource) (Result, error) {
	sourceContext := "This is an email conversation."
	if source == crm.SourceCall {
		sourceContext = "This is a phone call transcript."
	}
	userPrompt := sourceContext + "\n\n---\n\n" + truncateForContext(text)

	raw, err := e.chat.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return Result{}, fmt.Errorf("extraction: completion failed: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, &ParseError{Raw: raw, Err: fmt.Errorf("empty response")}
	}

	var out Result
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&out); err != nil {
		return Result{}, &ParseError{Raw: raw, Err: err}
	}

	// Nil slices become empty so callers can range without nil checks.
	if out.PersonalFacts == nil {
		out.PersonalFacts = []string{}
	}
	if out.BusinessContext == nil {
		out.BusinessContext = []string{}
	}
	if out.Commitments == nil {
		out.Commitments = []string{}
	}
	if out.FollowUpSuggestions == nil {
		out.FollowUpSuggestions = []string{}
	}
	return out, nil
}
