// Package poll provides self-rescheduling poll loops that hold a steady
// cadence when the backend is responsive and degrade to longer delays when
// it is slow, rather than saturating it with overlapping requests.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kverlaine/opsdeck/internal/clock"
)

// Config holds the timing policy for one loop.
type Config struct {
	// Interval is the nominal cadence the loop tries to hold.
	Interval time.Duration
	// MinDelay floors the delay between cycles on the fast path.
	MinDelay time.Duration
	// SlowThreshold is the cycle duration above which back-off applies.
	SlowThreshold time.Duration
	// SlowMinDelay floors the delay after a slow cycle.
	SlowMinDelay time.Duration
	// SlowMargin is added to a slow cycle's duration to space out the next.
	SlowMargin time.Duration
	// ResumeDefer pushes the first tick later after Start, used when a view
	// just regained visibility to avoid an immediate burst.
	ResumeDefer time.Duration
}

// Loop runs a tick function on an adaptive schedule. The visibility
// precondition is checked at the top of every cycle; when it fails the
// loop stops itself.
type Loop struct {
	name    string
	cfg     Config
	clk     clock.Clock
	visible func() bool
	tick    func(ctx context.Context)
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	timer   clock.Timer
	cancel  context.CancelFunc
}

// New creates a Loop. visible may be nil, meaning always visible.
func New(name string, cfg Config, clk clock.Clock, visible func() bool, tick func(ctx context.Context), logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if visible == nil {
		visible = func() bool { return true }
	}
	return &Loop{
		name:    name,
		cfg:     cfg,
		clk:     clk,
		visible: visible,
		tick:    tick,
		logger:  logger,
	}
}

// Start begins polling. Calling Start while the loop is already running is
// a no-op. When deferred is true the first cycle waits ResumeDefer instead
// of running immediately.
func (l *Loop) Start(ctx context.Context, deferred bool) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	delay := time.Duration(0)
	if deferred && l.cfg.ResumeDefer > 0 {
		delay = l.cfg.ResumeDefer
	}
	l.timer = l.clk.AfterFunc(delay, func() { l.cycle(runCtx) })
	l.mu.Unlock()
}

// Stop clears the running flag and cancels any scheduled timer. A cycle
// already in flight is allowed to finish; its result still has to pass the
// caller's staleness check before being applied.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// Running reports whether the loop is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// cycle runs one tick and schedules the next.
func (l *Loop) cycle(ctx context.Context) {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	if !l.visible() {
		l.logger.Debug("poll loop no longer visible, stopping", "loop", l.name)
		l.Stop()
		return
	}

	start := l.clk.Now()
	l.tick(ctx)
	duration := l.clk.Now().Sub(start)

	delay := l.nextDelay(duration)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.timer = l.clk.AfterFunc(delay, func() { l.cycle(ctx) })
}

// nextDelay applies the back-off policy to one measured cycle duration.
func (l *Loop) nextDelay(duration time.Duration) time.Duration {
	if l.cfg.SlowThreshold > 0 && duration > l.cfg.SlowThreshold {
		delay := duration + l.cfg.SlowMargin
		if delay < l.cfg.SlowMinDelay {
			delay = l.cfg.SlowMinDelay
		}
		l.logger.Debug("slow poll cycle, backing off",
			"loop", l.name, "duration", duration, "next_delay", delay)
		return delay
	}
	delay := l.cfg.Interval - duration
	if delay < l.cfg.MinDelay {
		delay = l.cfg.MinDelay
	}
	return delay
}
