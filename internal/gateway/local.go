package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kverlaine/opsdeck/internal/clock"
)

// Handler executes one named command. Args arrive as raw JSON; the returned
// value is marshaled into the Result payload.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Local dispatches commands to in-process handlers. It is the backend used
// in local mode and the execution core the agent serves over its socket.
type Local struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	clk      clock.Clock
	logger   *slog.Logger
}

// NewLocal creates an empty Local gateway. A nil clock falls back to the
// system clock, a nil logger to slog.Default().
func NewLocal(clk clock.Clock, logger *slog.Logger) *Local {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		handlers: make(map[string]Handler),
		clk:      clk,
		logger:   logger,
	}
}

// Register binds a handler to a command name. Registering a duplicate name
// panics: command tables are assembled once at startup.
func (l *Local) Register(command string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.handlers[command]; ok {
		panic(fmt.Sprintf("gateway: duplicate handler for %q", command))
	}
	l.handlers[command] = h
}

// Commands returns the registered command names, sorted.
func (l *Local) Commands() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.handlers))
	for name := range l.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke dispatches a command, timing it and converting every failure mode
// (unknown command, bad args, handler error, handler panic) into a Result.
func (l *Local) Invoke(ctx context.Context, command string, args any) (res Result) {
	start := l.clk.Now()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("handler panic", "command", command, "panic", r)
			res = Failf("internal error in %s: %v", command, r)
		}
		res.ElapsedMs = l.clk.Now().Sub(start).Milliseconds()
	}()

	l.mu.RLock()
	h, ok := l.handlers[command]
	l.mu.RUnlock()
	if !ok {
		return Failf("unknown command: %s", command)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return Failf("encode args for %s: %v", command, err)
	}

	out, err := h(ctx, raw)
	if err != nil {
		l.logger.Debug("command failed", "command", command, "error", err)
		return Fail(err)
	}
	return Succeed(out)
}
