package scraper

import (
	"context"
	"math/rand"
	"time"

	"github.com/aluiziolira/asx-scraper/config"
)

// Throttle enforces a rolling request budget followed by a random pause.
// It is not safe for concurrent use.
type Throttle struct {
	limit       int
	window      time.Duration
	margin      time.Duration
	delay       time.Duration
	randomDelay time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	rand  func() float64

	requests []time.Time
}

// NewThrottle builds a throttle from the rate settings in cfg.
func NewThrottle(cfg *config.Config) *Throttle {
	return &Throttle{
		limit:       cfg.MaxRequestsPerMinute,
		window:      cfg.RateWindow,
		margin:      cfg.RateMargin,
		delay:       cfg.Delay,
		randomDelay: cfg.RandomDelay,
		now:         time.Now,
		sleep:       sleepContext,
		rand:        rand.Float64,
	}
}

// Wait blocks until another request fits in the window, records it and then
// sleeps the jitter delay. It returns the total time spent waiting.
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	var waited time.Duration

	now := t.now()
	t.prune(now)

	if len(t.requests) >= t.limit {
		pause := t.window - now.Sub(t.requests[0]) + t.margin
		if pause > 0 {
			if err := t.sleep(ctx, pause); err != nil {
				return waited, err
			}
			waited += pause
			now = t.now()
			t.prune(now)
		}
	}
	t.requests = append(t.requests, now)

	jitter := t.delay + time.Duration(t.rand()*float64(t.randomDelay))
	if jitter > 0 {
		if err := t.sleep(ctx, jitter); err != nil {
			return waited, err
		}
		waited += jitter
	}
	return waited, nil
}

// Pending returns the number of requests still inside the window.
func (t *Throttle) Pending() int {
	t.prune(t.now())
	return len(t.requests)
}

func (t *Throttle) prune(now time.Time) {
	kept := t.requests[:0]
	for _, at := range t.requests {
		if now.Sub(at) < t.window {
			kept = append(kept, at)
		}
	}
	t.requests = kept
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
