package orchestrate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"triagekit/internal/llm"
)

type fakeDeliverer struct {
	replies  []string
	requests []llm.Request
}

func (f *fakeDeliverer) Send(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	if len(f.requests) > len(f.replies) {
		return "", errors.New("unexpected extra send")
	}
	return f.replies[len(f.requests)-1], nil
}

func newTestRunner(d Deliverer) *Runner {
	r := New(d, Options{})
	r.sleep = func(context.Context, time.Duration) error { return nil }
	return r
}

func TestRunFirstAttemptSuccess(t *testing.T) {
	d := &fakeDeliverer{replies: []string{"billing"}}
	r := newTestRunner(d)

	got, err := Run(context.Background(), r, []llm.Message{{Role: llm.RoleUser, Content: "charge me twice"}},
		Task{Instructions: "Classify the message."},
		func(raw string) (string, error) { return raw, nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "billing" {
		t.Fatalf("unexpected result %q", got)
	}
	if len(d.requests) != 1 {
		t.Fatalf("expected a single delivery, got %d", len(d.requests))
	}
}

func TestRunCorrectiveRetry(t *testing.T) {
	d := &fakeDeliverer{replies: []string{"garbage", "billing"}}
	r := newTestRunner(d)

	parse := func(raw string) (string, error) {
		if raw != "billing" {
			return "", errors.New("not a known category")
		}
		return raw, nil
	}
	got, err := Run(context.Background(), r, nil, Task{Instructions: "Classify."}, parse)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "billing" {
		t.Fatalf("unexpected result %q", got)
	}

	second := d.requests[1].Messages
	if len(second) != len(d.requests[0].Messages)+2 {
		t.Fatalf("retry should extend the conversation by two turns")
	}
	if second[0] != d.requests[0].Messages[0] {
		t.Fatalf("system turn must stay fixed across retries")
	}
	rejected := second[len(second)-2]
	reason := second[len(second)-1]
	if rejected.Role != llm.RoleAssistant || rejected.Content != "garbage" {
		t.Fatalf("expected rejected output as assistant turn, got %+v", rejected)
	}
	if reason.Role != llm.RoleUser || !strings.Contains(reason.Content, "not a known category") {
		t.Fatalf("expected rejection reason in user turn, got %+v", reason)
	}
}

func TestRunBudgetExhausted(t *testing.T) {
	d := &fakeDeliverer{replies: []string{"a", "b", "c", "d"}}
	r := newTestRunner(d)

	_, err := Run(context.Background(), r, nil, Task{Instructions: "x"},
		func(string) (string, error) { return "", errors.New("always malformed") })
	var ge *GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if ge.Attempts != DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxAttempts, ge.Attempts)
	}
	if len(d.requests) != DefaultMaxAttempts {
		t.Fatalf("expected %d deliveries, got %d", DefaultMaxAttempts, len(d.requests))
	}
	if ge.LastParseErr == nil || !strings.Contains(ge.LastParseErr.Error(), "always malformed") {
		t.Fatalf("expected last parse reason attached, got %v", ge.LastParseErr)
	}
}

type failingDeliverer struct{ err error }

func (f *failingDeliverer) Send(context.Context, llm.Request) (string, error) { return "", f.err }

func TestRunDeliveryFailureTerminal(t *testing.T) {
	want := errors.New("all providers exhausted")
	r := newTestRunner(&failingDeliverer{err: want})

	_, err := Run(context.Background(), r, nil, Task{Instructions: "x"},
		func(raw string) (string, error) { return raw, nil })
	if !errors.Is(err, want) {
		t.Fatalf("expected delivery error surfaced unchanged, got %v", err)
	}
}

func TestAssembleReplacesLeadingSystemTurn(t *testing.T) {
	conv := []llm.Message{
		{Role: llm.RoleSystem, Content: "old instructions"},
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleAssistant, Content: "reply"},
		{Role: llm.RoleUser, Content: "second"},
	}
	out := Assemble(conv, Task{Instructions: "new instructions", SchemaHint: "one word"})
	if len(out) != 2 {
		t.Fatalf("expected system + consolidated user turn, got %d messages", len(out))
	}
	if out[0].Role != llm.RoleSystem || strings.Contains(out[0].Content, "old instructions") {
		t.Fatalf("leading system turn should be replaced: %+v", out[0])
	}
	if !strings.Contains(out[0].Content, "one word") {
		t.Fatalf("schema hint missing from system turn")
	}
	user := out[1].Content
	if !strings.Contains(user, "User response #1:\nfirst") || !strings.Contains(user, "User response #2:\nsecond") {
		t.Fatalf("user turns not renumbered:\n%s", user)
	}
	if !strings.Contains(user, "Assistant said:\nreply") {
		t.Fatalf("assistant turn missing from flattened context:\n%s", user)
	}
	if strings.Index(user, "first") > strings.Index(user, "second") {
		t.Fatalf("turn order not preserved:\n%s", user)
	}
}

func TestAssembleIncludesExamples(t *testing.T) {
	out := Assemble(nil, Task{
		Instructions: "Classify.",
		Examples:     []Example{{Prompt: "my card was charged", Response: "billing"}},
	})
	if len(out) != 1 {
		t.Fatalf("empty conversation should yield only the system turn, got %d", len(out))
	}
	if !strings.Contains(out[0].Content, "Input: my card was charged") || !strings.Contains(out[0].Content, "Output: billing") {
		t.Fatalf("examples missing:\n%s", out[0].Content)
	}
}
