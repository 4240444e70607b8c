package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the minimum spacing between alert fan-outs. A
// guardian polling every 30s against a persistently exposed breaker would
// otherwise page on every cycle.
const DefaultMinInterval = 5 * time.Minute

// Dispatcher fans out events to matching webhook configurations. Each
// event type is throttled on its own, so an exposure alert never holds back
// a circuit failure.
type Dispatcher struct {
	configs []Config
	limit   rate.Limit
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
// A non-positive minInterval disables throttling.
func NewDispatcher(configs []Config, minInterval time.Duration, logger *slog.Logger) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Dispatcher{
		configs:  configs,
		limit:    limit,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Dispatch sends the event to all webhooks whose Events list matches.
// Deliveries run in the background; Wait blocks until they finish.
// Returns false when no webhook subscribes to the event or it was
// throttled. Unsubscribed events do not count against the limit.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) bool {
	var targets []Config
	for _, cfg := range d.configs {
		if matches(cfg.Events, event) {
			targets = append(targets, cfg)
		}
	}
	if len(targets) == 0 {
		return false
	}
	if !d.limiter(event.Type).Allow() {
		d.logger.Debug("alert throttled", "type", event.Type, "cycle_id", event.CycleID)
		return false
	}
	for _, cfg := range targets {
		d.wg.Add(1)
		go func(cfg Config) {
			defer d.wg.Done()
			if err := Send(ctx, cfg, event); err != nil {
				d.logger.Error("alert delivery failed", "url", cfg.URL, "error", err)
			}
		}(cfg)
	}
	return true
}

func (d *Dispatcher) limiter(eventType string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[eventType]
	if !ok {
		l = rate.NewLimiter(d.limit, 1)
		d.limiters[eventType] = l
	}
	return l
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func matches(events []string, event Event) bool {
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if e == event.Type {
			return true
		}
	}
	return false
}
