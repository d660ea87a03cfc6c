// Package jobs contains the long-running background loops started by the server.
//
// invitation_purger.go implements the InvitationPurger, which periodically
// deletes team invitations whose expiry has passed. Redemption checks expiry
// on its own, so the purger only keeps the table from growing; a missed run
// never lets an expired link through.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/projecthub/projecthub/internal/telemetry"
)

// DefaultPurgeInterval is used when invitations.purge_interval is not set.
const DefaultPurgeInterval = time.Hour

// ExpiredInvitationStore deletes invitations that expired at or before now.
type ExpiredInvitationStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// InvitationPurger periodically removes expired team invitations.
type InvitationPurger struct {
	store    ExpiredInvitationStore
	interval time.Duration
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewInvitationPurger creates an InvitationPurger. A non-positive interval
// selects DefaultPurgeInterval.
func NewInvitationPurger(store ExpiredInvitationStore, interval time.Duration) *InvitationPurger {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	return &InvitationPurger{
		store:    store,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the purge loop until ctx is cancelled or Stop is called. It
// purges once immediately, then on every tick. Start blocks; run it in its
// own goroutine.
func (p *InvitationPurger) Start(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("invitation purger started", "interval", p.interval)
	p.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-p.stopChan:
			slog.Info("invitation purger stopped")
			return
		case <-ctx.Done():
			slog.Info("invitation purger context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit and waits for it. It is safe to call more
// than once, and before Start has run.
func (p *InvitationPurger) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
}

// Done is closed when Start returns.
func (p *InvitationPurger) Done() <-chan struct{} {
	return p.done
}

// RunOnce deletes every invitation that has expired by now and returns the
// number removed. Failures are logged; the next tick retries.
func (p *InvitationPurger) RunOnce(ctx context.Context) int64 {
	n, err := p.store.PurgeExpired(ctx, p.now())
	if err != nil {
		slog.Error("failed to purge expired invitations", "error", err)
		return 0
	}
	if n > 0 {
		telemetry.InvitationsPurgedTotal.Add(float64(n))
		slog.Info("purged expired invitations", "count", n)
	}
	return n
}
