package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dispatcher hands classified messages to the team queues that consume
// pipeline output. One redis list per category.
type Dispatcher struct {
	client *redis.Client
}

type Envelope struct {
	Category string `json:"category"`
	Text     string `json:"text"`
	Context  string `json:"context,omitempty"`
}

func New(url string) (*Dispatcher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{client: redis.NewClient(opt)}, nil
}

func (d *Dispatcher) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *Dispatcher) Push(ctx context.Context, env Envelope) error {
	if d == nil {
		return nil
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return d.client.LPush(ctx, queueKey(env.Category), payload).Err()
}

func (d *Dispatcher) Pop(ctx context.Context, category string, timeout time.Duration) (Envelope, error) {
	var env Envelope
	res, err := d.client.BRPop(ctx, timeout, queueKey(category)).Result()
	if err != nil {
		return env, err
	}
	if len(res) < 2 {
		return env, redis.Nil
	}
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return env, err
	}
	return env, nil
}

func (d *Dispatcher) Depth(ctx context.Context, category string) (int64, error) {
	return d.client.LLen(ctx, queueKey(category)).Result()
}

func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

func queueKey(category string) string {
	return "triage:" + category
}
