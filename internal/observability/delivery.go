package observability

import (
	"log"
	"sync"

	"triagekit/internal/delivery"
	"triagekit/internal/llm"
)

// DeliveryObserver logs one line per failed attempt and per exhausted
// provider, and keeps per-provider failure counters. Safe to share across
// concurrent deliveries; nil-safe like every observer in this system.
type DeliveryObserver struct {
	logger *log.Logger

	mu        sync.Mutex
	failures  map[string]int64
	exhausted map[string]int64
}

func NewDeliveryObserver(logger *log.Logger) *DeliveryObserver {
	if logger == nil {
		logger = log.Default()
	}
	return &DeliveryObserver{
		logger:    logger,
		failures:  make(map[string]int64),
		exhausted: make(map[string]int64),
	}
}

func (o *DeliveryObserver) AttemptFailed(deliveryID, provider string, attempt int, kind llm.ErrorKind, err error) {
	if o == nil {
		return
	}
	o.mu.Lock()
	o.failures[provider]++
	o.mu.Unlock()
	o.logger.Printf("delivery attempt failed delivery_id=%s provider=%s attempt=%d kind=%s err=%v",
		deliveryID, provider, attempt, kind, err)
}

func (o *DeliveryObserver) ProviderExhausted(deliveryID, provider string, attempts int) {
	if o == nil {
		return
	}
	o.mu.Lock()
	o.exhausted[provider]++
	o.mu.Unlock()
	o.logger.Printf("delivery provider exhausted delivery_id=%s provider=%s attempts=%d",
		deliveryID, provider, attempts)
}

func (o *DeliveryObserver) Failures(provider string) int64 {
	if o == nil {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failures[provider]
}

// Multi fans events out to several observers, dropping nil entries.
func Multi(observers ...delivery.Observer) delivery.Observer {
	kept := make([]delivery.Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			kept = append(kept, o)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return multiObserver(kept)
}

type multiObserver []delivery.Observer

func (m multiObserver) AttemptFailed(deliveryID, provider string, attempt int, kind llm.ErrorKind, err error) {
	for _, o := range m {
		o.AttemptFailed(deliveryID, provider, attempt, kind, err)
	}
}

func (m multiObserver) ProviderExhausted(deliveryID, provider string, attempts int) {
	for _, o := range m {
		o.ProviderExhausted(deliveryID, provider, attempts)
	}
}
