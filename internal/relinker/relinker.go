// Package relinker implements the peer-relinker loop: a periodic sweep
// that re-resolves and re-links every configured peer endpoint, so a
// peer's address can change under it without a manual reconnect.
package relinker

import (
	"context"
	"log/slog"
	"time"
)

var log = slog.Default()

// Locator is the collaborator interface that links a label to a
// reachable endpoint. Each concrete Locator owns whatever
// transport-level connection caching it needs.
type Locator interface {
	Link(label, endpoint string) error
}

// Relinker owns the ticking reconnect loop. It runs on its own
// goroutine: Locator implementations must be safe to call from
// outside the reactor goroutine, since Link performs blocking network
// I/O that the reactor's single-threaded model cannot afford to do
// inline.
type Relinker struct {
	Endpoints map[string][]string // label -> every configured endpoint
	Interval  time.Duration
	Locator   Locator
}

func New(endpoints map[string][]string, interval time.Duration, locator Locator) *Relinker {
	return &Relinker{Endpoints: endpoints, Interval: interval, Locator: locator}
}

// Run ticks every Interval until ctx is cancelled, relinking all
// configured peers on each tick. Ticks never overlap: a slow relink
// pass simply delays the next tick rather than running concurrently
// with it.
func (r *Relinker) Run(ctx context.Context) {
	if r.Interval <= 0 {
		r.Interval = 30 * time.Second
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick attempts to link every configured endpoint for every label,
// ignoring individual failures rather than stopping at the first
// reachable endpoint in a label's list.
func (r *Relinker) tick() {
	for label, endpoints := range r.Endpoints {
		linked := 0
		for _, endpoint := range endpoints {
			if err := r.Locator.Link(label, endpoint); err != nil {
				log.Warn("relink attempt failed", "label", label, "endpoint", endpoint, "err", err)
				continue
			}
			linked++
		}
		if linked == 0 {
			log.Error("no reachable endpoint for peer", "label", label)
		}
	}
}
