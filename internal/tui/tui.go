// Package tui is the operator console: a tabbed bubbletea UI over the
// command gateway with per-view polling, cached fallbacks, and guarded
// destructive actions.
package tui

import (
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kverlaine/opsdeck/internal/clock"
	"github.com/kverlaine/opsdeck/internal/config"
	"github.com/kverlaine/opsdeck/internal/deploy"
	"github.com/kverlaine/opsdeck/internal/gateway"
	"github.com/kverlaine/opsdeck/internal/store"
)

// TUI assembles and runs the console.
type TUI struct {
	cfg      *config.Config
	gw       gateway.Gateway
	st       *store.Store
	clk      clock.Clock
	logger   *slog.Logger
	profiles []deploy.Profile
	runner   *deploy.Runner
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a TUI over the given gateway.
func New(cfg *config.Config, gw gateway.Gateway, opts ...Option) *TUI {
	t := &TUI{
		cfg:    cfg,
		gw:     gw,
		clk:    clock.System(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.runner == nil {
		t.runner = deploy.NewRunner(gw, t.clk, t.logger)
	}
	return t
}

// WithStore sets the settings store used to persist advanced mode and
// the last deploy selection.
func WithStore(st *store.Store) Option {
	return func(t *TUI) { t.st = st }
}

// WithClock overrides the clock, for tests.
func WithClock(clk clock.Clock) Option {
	return func(t *TUI) { t.clk = clk }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *TUI) { t.logger = logger }
}

// WithProfiles sets the deployable profiles shown in the deploy view.
func WithProfiles(profiles []deploy.Profile) Option {
	return func(t *TUI) { t.profiles = profiles }
}

// WithDeployRunner overrides the pipeline runner, for tests.
func WithDeployRunner(r *deploy.Runner) Option {
	return func(t *TUI) { t.runner = r }
}

// Run starts the console and blocks until it exits. In a non-interactive
// environment it falls back to a one-shot plain-text status dump.
func (t *TUI) Run() error {
	if !isTerminal() {
		t.logger.Info("not a terminal, using plain output")
		return t.runSimple()
	}

	d := &dispatcher{}
	m := newModel(t, d)

	p := tea.NewProgram(m, tea.WithAltScreen())
	d.bind(p.Send)
	defer m.stopLoops()

	_, err := p.Run()
	return err
}

// dispatcher forwards messages from poll-loop and late-result goroutines
// into the bubbletea program once it exists. Messages sent before bind
// are dropped; nothing polls before Init runs anyway.
type dispatcher struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

func (d *dispatcher) bind(send func(tea.Msg)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send = send
}

// Send forwards msg to the program, if bound.
func (d *dispatcher) Send(msg tea.Msg) {
	d.mu.RLock()
	send := d.send
	d.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}
