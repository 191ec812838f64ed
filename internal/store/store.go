package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"triagekit/internal/delivery"
	"triagekit/internal/llm"
)

// Store is an outcome log, not conversation storage: one row per
// completed top-level call and one per failed delivery attempt.
type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("missing database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type Outcome struct {
	ID       string
	Task     string
	Status   string
	Detail   string
	Attempts int
}

type Attempt struct {
	DeliveryID string
	Provider   string
	Attempt    int
	Kind       string
	Detail     string
}

func (s *Store) RecordOutcome(ctx context.Context, o Outcome) error {
	if s == nil {
		return nil
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_outcomes (id, task, status, detail, attempts) VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.Task, o.Status, o.Detail, o.Attempts)
	return err
}

func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_attempts (delivery_id, provider, attempt, kind, detail) VALUES ($1, $2, $3, $4, $5)`,
		a.DeliveryID, a.Provider, a.Attempt, a.Kind, a.Detail)
	return err
}

func (s *Store) AttemptsForDelivery(ctx context.Context, deliveryID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT delivery_id, provider, attempt, kind, detail FROM delivery_attempts WHERE delivery_id = $1 ORDER BY id`,
		deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.DeliveryID, &a.Provider, &a.Attempt, &a.Kind, &a.Detail); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Observer adapts the store into a delivery observer. Writes are best
// effort; a failed insert never disturbs delivery.
func (s *Store) Observer() delivery.Observer {
	if s == nil {
		return nil
	}
	return &attemptObserver{store: s}
}

type attemptObserver struct {
	store *Store
}

func (o *attemptObserver) AttemptFailed(deliveryID, provider string, attempt int, kind llm.ErrorKind, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	_ = o.store.RecordAttempt(ctx, Attempt{
		DeliveryID: deliveryID,
		Provider:   provider,
		Attempt:    attempt,
		Kind:       string(kind),
		Detail:     detail,
	})
}

func (o *attemptObserver) ProviderExhausted(string, string, int) {}
