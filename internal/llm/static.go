package llm

import (
	"context"
	"strings"
)

// Static answers without a network call. It keeps dev mode and the CLI
// usable with no credentials: keyword classification for plain requests,
// a canned feedback document for JSON-mode requests.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Generate(_ context.Context, req Request) (string, error) {
	if req.JSONMode {
		return staticFeedbackDoc, nil
	}

	var lastUser string
	for _, m := range req.Messages {
		if m.Role == RoleUser {
			lastUser = m.Content
		}
	}
	lower := strings.ToLower(lastUser)
	switch {
	case strings.Contains(lower, "refund") || strings.Contains(lower, "invoice") ||
		strings.Contains(lower, "charge") || strings.Contains(lower, "payment"):
		return "billing", nil
	case strings.Contains(lower, "price") || strings.Contains(lower, "quote") ||
		strings.Contains(lower, "demo") || strings.Contains(lower, "upgrade"):
		return "sales", nil
	default:
		return "support", nil
	}
}

const staticFeedbackDoc = `{
  "feedback": [
    "Good opening that acknowledges the customer's problem.",
    "Close with a concrete next step instead of a generic sign-off."
  ],
  "scores": [
    {"label": "Grammar", "score": 85, "max": 100, "justification": "clear with minor errors"},
    {"label": "Tone", "score": 90, "max": 100, "justification": "professional and warm"}
  ]
}`
