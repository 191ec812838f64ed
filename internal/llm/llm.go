package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Request is the provider-agnostic form of a generation call. Model is a
// hint; adapters fall back to their configured default when it is empty.
type Request struct {
	Messages []Message
	Model    string
	JSONMode bool
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
)

// ProviderError classifies a failed adapter call. Transient failures are
// worth retrying on the same provider; permanent ones are not, though a
// different provider may still succeed.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s: %s failure (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %s failure: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Retryable() bool {
	return e.Kind == KindTransient
}

// KindForStatus maps an HTTP status to an error kind. Rate limits and
// server errors may clear on retry; other client errors (auth, validation)
// will not.
func KindForStatus(status int) ErrorKind {
	if status == 429 || status >= 500 {
		return KindTransient
	}
	return KindPermanent
}

var emphasisMarkers = []string{"**", "__", "`"}

// Normalize strips decorative emphasis markup some models wrap answers in
// and trims surrounding whitespace. Idempotent: normalizing clean text is
// a no-op.
func Normalize(text string) string {
	for _, marker := range emphasisMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	return strings.TrimSpace(text)
}
