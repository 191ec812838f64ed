package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"triagekit/internal/llm"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

type Example struct {
	Prompt   string
	Response string
}

// Task carries everything domain-specific about one kind of generation:
// the system instructions, a description of the expected output, and
// few-shot examples. Nothing else in the pipeline knows the domain.
type Task struct {
	Instructions string
	SchemaHint   string
	Examples     []Example
	Model        string
	JSONMode     bool
}

type Deliverer interface {
	Send(ctx context.Context, req llm.Request) (string, error)
}

type GenerationError struct {
	Attempts     int
	LastParseErr error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.LastParseErr)
}

func (e *GenerationError) Unwrap() error {
	return e.LastParseErr
}

type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

type Runner struct {
	deliverer   Deliverer
	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(deliverer Deliverer, opts Options) *Runner {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Runner{
		deliverer:   deliverer,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		sleep:       sleepContext,
	}
}

// Run sends the assembled conversation, parses the reply, and on parse
// failure shows the model its rejected output plus the reason before
// retrying. Parse failures are almost always formatting slips, so the
// system turn stays fixed and only the conversation grows. Delivery
// exhaustion is terminal immediately.
func Run[T any](ctx context.Context, r *Runner, conv []llm.Message, task Task, parseFn func(string) (T, error)) (T, error) {
	var zero T
	messages := Assemble(conv, task)
	var lastParseErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, r.retryDelay); err != nil {
				return zero, err
			}
		}
		raw, err := r.deliverer.Send(ctx, llm.Request{Messages: messages, Model: task.Model, JSONMode: task.JSONMode})
		if err != nil {
			return zero, err
		}
		value, parseErr := parseFn(raw)
		if parseErr == nil {
			return value, nil
		}
		lastParseErr = parseErr
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: raw},
			llm.Message{Role: llm.RoleUser, Content: correction(parseErr)},
		)
	}
	return zero, &GenerationError{Attempts: r.maxAttempts, LastParseErr: lastParseErr}
}

// Assemble builds the normalized conversation: one system turn from the
// task, then the remaining turns flattened into a single consolidated
// user turn with user responses renumbered for positional context. A
// leading system turn in the input is replaced, never kept.
func Assemble(conv []llm.Message, task Task) []llm.Message {
	if len(conv) > 0 && conv[0].Role == llm.RoleSystem {
		conv = conv[1:]
	}
	out := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt(task)}}
	if flat := flattenTurns(conv); flat != "" {
		out = append(out, llm.Message{Role: llm.RoleUser, Content: flat})
	}
	return out
}

func systemPrompt(task Task) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(task.Instructions))
	if hint := strings.TrimSpace(task.SchemaHint); hint != "" {
		b.WriteString("\n\nOutput format:\n")
		b.WriteString(hint)
	}
	if len(task.Examples) > 0 {
		b.WriteString("\n\nExamples:")
		for _, ex := range task.Examples {
			b.WriteString("\nInput: ")
			b.WriteString(strings.TrimSpace(ex.Prompt))
			b.WriteString("\nOutput: ")
			b.WriteString(strings.TrimSpace(ex.Response))
		}
	}
	return b.String()
}

func flattenTurns(conv []llm.Message) string {
	var b strings.Builder
	userTurn := 0
	for _, m := range conv {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case llm.RoleUser:
			userTurn++
			fmt.Fprintf(&b, "User response #%d:\n%s", userTurn, content)
		case llm.RoleAssistant:
			fmt.Fprintf(&b, "Assistant said:\n%s", content)
		default:
			b.WriteString(content)
		}
	}
	return b.String()
}

func correction(parseErr error) string {
	return fmt.Sprintf("Your previous reply could not be used: %v. Reply again and follow the required output format exactly.", parseErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
