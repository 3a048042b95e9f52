// Package poller drives the periodic status refresh loop.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

// Source produces one status snapshot per call. An error means the helper
// itself failed; the poller degrades that to a helper-down snapshot.
type Source interface {
	Status(ctx context.Context) (status.Snapshot, error)
}

// UpdateFunc receives every snapshot. changed is true when the tracker saw
// a classification, charging, or availability transition.
type UpdateFunc func(snap status.Snapshot, tr status.Transition, changed bool)

// Poller polls a Source on a fixed interval. All polling happens on the
// Run goroutine, so at most one helper invocation is in flight at a time;
// ticks that arrive while a poll is still running are dropped by the
// ticker, never overlapped.
type Poller struct {
	source   Source
	tracker  *status.Tracker
	interval time.Duration
	refresh  chan struct{}
	log      *slog.Logger
}

func New(source Source, tracker *status.Tracker, interval time.Duration, log *slog.Logger) *Poller {
	return &Poller{
		source:   source,
		tracker:  tracker,
		interval: interval,
		refresh:  make(chan struct{}, 1),
		log:      log,
	}
}

// Refresh requests an immediate poll, from the tray menu or D-Bus. The
// request is coalesced when one is already pending.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run polls once immediately, then on every tick or refresh request until
// the context is canceled. Cancellation also kills any in-flight helper
// process, since the helper runs under this context.
func (p *Poller) Run(ctx context.Context, onUpdate UpdateFunc) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx, onUpdate)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, onUpdate)
		case <-p.refresh:
			p.poll(ctx, onUpdate)
		}
	}
}

func (p *Poller) poll(ctx context.Context, onUpdate UpdateFunc) {
	snap, err := p.source.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Warn("helper poll failed", "err", err)
		snap = status.Snapshot{TakenAt: time.Now(), Availability: status.HelperDown}
	} else {
		p.log.Debug("poll",
			"availability", snap.Availability.String(),
			"level", snap.Level,
			"level_known", snap.LevelKnown,
			"charging", snap.Charging)
	}

	tr, changed := p.tracker.Observe(snap)
	onUpdate(snap, tr, changed)
}
