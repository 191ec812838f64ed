package triage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"triagekit/internal/dispatch"
	"triagekit/internal/llm"
	"triagekit/internal/orchestrate"
	"triagekit/internal/parse"
	"triagekit/internal/store"
	"triagekit/internal/taxonomy"
)

// Service is the caller-facing surface of the pipeline: classify customer
// text into a team category, or score a practice conversation. It owns
// the task prompts; no other package knows the domain.
type Service struct {
	Runner     *orchestrate.Runner
	Taxonomy   taxonomy.Taxonomy
	Dispatcher *dispatch.Dispatcher
	Audit      *store.Store

	classifier *parse.Classifier
	logger     *log.Logger
}

func NewService(runner *orchestrate.Runner, tax taxonomy.Taxonomy, dispatcher *dispatch.Dispatcher, audit *store.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		Runner:     runner,
		Taxonomy:   tax,
		Dispatcher: dispatcher,
		Audit:      audit,
		classifier: tax.Classifier(),
		logger:     logger,
	}
}

// Classify routes customer text to one of the taxonomy's categories. On
// success the message is pushed to the matching team queue and the
// outcome recorded; both collaborators are optional and best effort.
func (s *Service) Classify(ctx context.Context, text, contextText string) (string, error) {
	conv := []llm.Message{{Role: llm.RoleUser, Content: text}}
	task := s.classifyTask(contextText)

	category, err := orchestrate.Run(ctx, s.Runner, conv, task, s.classifier.Classify)
	if err != nil {
		s.record(ctx, "classify", "failed", err.Error(), attemptsFrom(err))
		return "", err
	}
	s.record(ctx, "classify", "ok", category, 0)

	if s.Dispatcher != nil {
		env := dispatch.Envelope{Category: category, Text: text, Context: contextText}
		if err := s.Dispatcher.Push(ctx, env); err != nil {
			s.logger.Printf("triage dispatch failed category=%s err=%v", category, err)
		}
	}
	return category, nil
}

// GenerateFeedback scores a practice conversation against the scenario.
// Scores are required; itemized feedback may legitimately be empty.
func (s *Service) GenerateFeedback(ctx context.Context, conv []llm.Message, scenario string) (parse.Feedback, error) {
	task := s.feedbackTask(scenario)
	rules := parse.Rules{RequireScores: true}

	fb, err := orchestrate.Run(ctx, s.Runner, conv, task, func(raw string) (parse.Feedback, error) {
		return parse.ParseFeedback(raw, rules)
	})
	if err != nil {
		s.record(ctx, "feedback", "failed", err.Error(), attemptsFrom(err))
		return parse.Feedback{}, err
	}
	s.record(ctx, "feedback", "ok", fmt.Sprintf("%d items, %d scores", len(fb.Items), len(fb.Scores)), 0)
	return fb, nil
}

func (s *Service) classifyTask(contextText string) orchestrate.Task {
	labels := s.Taxonomy.Labels()
	var b strings.Builder
	b.WriteString("You route customer messages to the right team. ")
	b.WriteString("Read the customer's message and reply with exactly one category label, nothing else.")
	if contextText = strings.TrimSpace(contextText); contextText != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(contextText)
	}
	return orchestrate.Task{
		Instructions: b.String(),
		SchemaHint:   "A single word, one of: " + strings.Join(labels, " | "),
	}
}

func (s *Service) feedbackTask(scenario string) orchestrate.Task {
	instructions := "You are a communication coach. Review the trainee's responses in the conversation below and assess how well they handled the scenario."
	if scenario = strings.TrimSpace(scenario); scenario != "" {
		instructions += "\n\nScenario:\n" + scenario
	}
	return orchestrate.Task{
		Instructions: instructions,
		SchemaHint: `A JSON object: {"feedback": [string, ...], "scores": [{"label": string, "score": int, "max": int, "justification": string}, ...]}. ` +
			`Score at least one category (for example Grammar or Tone) out of 100.`,
		Examples: []orchestrate.Example{
			{
				Prompt:   "User response #1:\nDear customer, we fix now.",
				Response: `{"feedback":["Expand the greeting and say what will happen next."],"scores":[{"label":"Grammar","score":60,"max":100,"justification":"missing articles and tense"}]}`,
			},
		},
		JSONMode: true,
	}
}

func (s *Service) record(ctx context.Context, task, status, detail string, attempts int) {
	if s.Audit == nil {
		return
	}
	err := s.Audit.RecordOutcome(ctx, store.Outcome{Task: task, Status: status, Detail: detail, Attempts: attempts})
	if err != nil {
		s.logger.Printf("triage audit record failed task=%s err=%v", task, err)
	}
}

func attemptsFrom(err error) int {
	var ge *orchestrate.GenerationError
	if errors.As(err, &ge) {
		return ge.Attempts
	}
	return 0
}
