package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"triagekit/internal/llm"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
)

// Observer receives a diagnostic event per failed attempt and per
// exhausted provider. Implementations must not influence delivery; a nil
// observer is valid.
type Observer interface {
	AttemptFailed(deliveryID, provider string, attempt int, kind llm.ErrorKind, err error)
	ProviderExhausted(deliveryID, provider string, attempts int)
}

type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	Observer   Observer
}

// Cause records how one provider failed before delivery moved on.
type Cause struct {
	Provider string
	Attempts int
	Err      error
}

type ExhaustedError struct {
	Causes []Cause
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		parts = append(parts, fmt.Sprintf("%s (%d attempts): %v", c.Provider, c.Attempts, c.Err))
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() error {
	if len(e.Causes) == 0 {
		return nil
	}
	return e.Causes[len(e.Causes)-1].Err
}

// Deliverer tries each provider in order, retrying transient failures on
// the same provider with linear backoff and skipping ahead on permanent
// ones. It holds no per-call state, so one instance is safe for
// concurrent Sends.
type Deliverer struct {
	providers  []llm.Provider
	maxRetries int
	baseDelay  time.Duration
	observer   Observer
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(providers []llm.Provider, opts Options) *Deliverer {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Deliverer{
		providers:  providers,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		observer:   opts.Observer,
		sleep:      sleepContext,
	}
}

// Send returns the first successful completion, or *ExhaustedError with
// one cause per provider in configured order. Total attempts are bounded
// by len(providers) × MaxRetries.
func (d *Deliverer) Send(ctx context.Context, req llm.Request) (string, error) {
	if len(d.providers) == 0 {
		return "", errors.New("no providers configured")
	}
	deliveryID := uuid.NewString()
	causes := make([]Cause, 0, len(d.providers))

	for _, provider := range d.providers {
		var lastErr error
		attempts := 0
		for attempt := 1; attempt <= d.maxRetries; attempt++ {
			if attempt > 1 {
				if err := d.sleep(ctx, d.baseDelay*time.Duration(attempt-1)); err != nil {
					return "", err
				}
			}
			out, err := provider.Generate(ctx, req)
			attempts = attempt
			if err == nil {
				return out, nil
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			kind := llm.KindTransient
			var pe *llm.ProviderError
			if errors.As(err, &pe) {
				kind = pe.Kind
			}
			d.notifyAttempt(deliveryID, provider.Name(), attempt, kind, err)
			if kind == llm.KindPermanent {
				break
			}
		}
		d.notifyExhausted(deliveryID, provider.Name(), attempts)
		causes = append(causes, Cause{Provider: provider.Name(), Attempts: attempts, Err: lastErr})
	}
	return "", &ExhaustedError{Causes: causes}
}

func (d *Deliverer) notifyAttempt(deliveryID, provider string, attempt int, kind llm.ErrorKind, err error) {
	if d.observer == nil {
		return
	}
	d.observer.AttemptFailed(deliveryID, provider, attempt, kind, err)
}

func (d *Deliverer) notifyExhausted(deliveryID, provider string, attempts int) {
	if d.observer == nil {
		return
	}
	d.observer.ProviderExhausted(deliveryID, provider, attempts)
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
