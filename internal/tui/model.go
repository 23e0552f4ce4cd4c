package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kverlaine/opsdeck/internal/cache"
	"github.com/kverlaine/opsdeck/internal/clock"
	"github.com/kverlaine/opsdeck/internal/config"
	"github.com/kverlaine/opsdeck/internal/deploy"
	"github.com/kverlaine/opsdeck/internal/dockerops"
	"github.com/kverlaine/opsdeck/internal/gateway"
	"github.com/kverlaine/opsdeck/internal/guard"
	"github.com/kverlaine/opsdeck/internal/poll"
	"github.com/kverlaine/opsdeck/internal/store"
	"github.com/kverlaine/opsdeck/internal/sysinfo"
	"github.com/kverlaine/opsdeck/internal/toolkit"
	"github.com/kverlaine/opsdeck/internal/view"
)

// model is the bubbletea model for the console.
type model struct {
	cfg    *config.Config
	gw     gateway.Gateway
	st     *store.Store
	clk    clock.Clock
	logger *slog.Logger
	d      *dispatcher

	// Consistency control.
	tracker *view.Tracker
	lock    *guard.ActionLock
	confirm *guard.Confirm

	// Per-view data caches.
	systemCache *cache.Box[sysinfo.Snapshot]
	dockerCache *cache.Box[[]dockerops.ContainerInfo]
	toolsCache  *cache.Box[[]toolkit.Status]
	// failed marks views whose last refresh produced nothing usable, so
	// an empty cache renders a retry hint instead of the loading text.
	failed map[view.View]bool

	// Poll loops, keyed by the view they refresh.
	loops   map[view.View]*poll.Loop
	rootCtx context.Context

	// Deploy state.
	profiles    []deploy.Profile
	runner      *deploy.Runner
	branches    []string
	branchIdx   int
	deployState *deploy.State

	// UI state.
	spinner    spinner.Model
	active     view.View
	selection  map[view.View]int
	advanced   bool
	notice     string
	noticeErr  bool
	lastRMs    int64 // elapsed ms of the last applied refresh
	width      int
	height     int
	quitting   bool
}

// dockerLifecycleArgs mirrors the docker.* command argument shape.
type dockerLifecycleArgs struct {
	Name string `json:"name"`
}

// toolInstallArgs mirrors the tools.install argument shape.
type toolInstallArgs struct {
	Name string `json:"name"`
}

// newModel builds the model and its poll loops. Loops are created here
// but only started from Init and view switches.
func newModel(t *TUI, d *dispatcher) *model {
	m := &model{
		cfg:       t.cfg,
		gw:        t.gw,
		st:        t.st,
		clk:       t.clk,
		logger:    t.logger,
		d:         d,
		tracker:   view.NewTracker(view.System),
		lock:      guard.NewActionLock(),
		confirm:   guard.NewConfirm(t.clk, t.cfg.Confirm.Window),
		profiles:  t.profiles,
		runner:    t.runner,
		active:    view.System,
		selection: make(map[view.View]int),
		failed:    make(map[view.View]bool),
		rootCtx:   context.Background(),
	}

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot

	m.systemCache = cache.NewBox[sysinfo.Snapshot](t.clk, t.cfg.Poll.System.CacheTTL)
	m.dockerCache = cache.NewBox[[]dockerops.ContainerInfo](t.clk, t.cfg.Poll.Docker.CacheTTL)
	m.toolsCache = cache.NewBox[[]toolkit.Status](t.clk, t.cfg.Poll.Tools.CacheTTL)

	if m.st != nil {
		m.advanced = m.st.GetBool(store.KeyAdvancedMode, false)
	}

	m.loops = map[view.View]*poll.Loop{
		view.System: poll.New("system", pollConfig(t.cfg.Poll.System), t.clk,
			m.visibleFn(view.System), m.pollTick(view.System), t.logger),
		view.Docker: poll.New("docker", pollConfig(t.cfg.Poll.Docker), t.clk,
			m.visibleFn(view.Docker), m.pollTick(view.Docker), t.logger),
		view.Tools: poll.New("tools", pollConfig(t.cfg.Poll.Tools), t.clk,
			m.visibleFn(view.Tools), m.pollTick(view.Tools), t.logger),
	}

	return m
}

func pollConfig(vp config.ViewPollConfig) poll.Config {
	return poll.Config{
		Interval:      vp.Interval,
		MinDelay:      vp.MinDelay,
		SlowThreshold: vp.SlowThreshold,
		SlowMinDelay:  vp.SlowMinDelay,
		SlowMargin:    vp.SlowMargin,
		ResumeDefer:   vp.ResumeDefer,
	}
}

// visibleFn is the poll-loop visibility precondition: the loop's view
// must still be the live view.
func (m *model) visibleFn(v view.View) func() bool {
	return func() bool { return m.tracker.Current() == v }
}

// commandForView maps a polled view to its refresh command.
func commandForView(v view.View) string {
	switch v {
	case view.System:
		return "system.snapshot"
	case view.Docker:
		return "docker.list"
	case view.Tools:
		return "tools.list"
	default:
		return ""
	}
}

// pollTick returns the loop tick body for v: stamp a ticket, fetch under
// the soft timeout, deliver the result to the program. Runs on the loop's
// timer goroutine.
func (m *model) pollTick(v view.View) func(ctx context.Context) {
	return func(ctx context.Context) {
		tk := m.tracker.BeginRender(v)
		res := m.fetch(ctx, v, tk)
		m.d.Send(refreshMsg{view: v, ticket: tk, res: res})
	}
}

// softTimeoutFor picks the budget for a view's refresh: the system
// snapshot samples CPU and gets the longer one, listing polls get the
// short one.
func (m *model) softTimeoutFor(v view.View) time.Duration {
	if v == view.System {
		return m.cfg.Gateway.SnapshotTimeout
	}
	return m.cfg.Gateway.PollTimeout
}

// fetch invokes the view's refresh command under its soft-timeout
// budget. A late-but-good response is forwarded as its own message and
// re-checked for staleness there.
func (m *model) fetch(ctx context.Context, v view.View, tk view.Ticket) gateway.Result {
	command := commandForView(v)
	return gateway.WithSoftTimeout(ctx, m.clk, m.softTimeoutFor(v),
		func(ctx context.Context) gateway.Result {
			return m.gw.Invoke(ctx, command, nil)
		},
		gateway.Result{},
		func(late gateway.Result) {
			m.d.Send(refreshMsg{view: v, ticket: tk, res: late, late: true})
		},
	)
}

// refreshCmd is the manual-refresh variant of pollTick, run as a
// bubbletea command.
func (m *model) refreshCmd(v view.View, tk view.Ticket) tea.Cmd {
	return func() tea.Msg {
		res := m.fetch(m.rootCtx, v, tk)
		return refreshMsg{view: v, ticket: tk, res: res}
	}
}

// stopLoops halts all poll loops; called when the program exits.
func (m *model) stopLoops() {
	for _, l := range m.loops {
		l.Stop()
	}
}

// selected returns the selection index for the active view, clamped to n.
func (m *model) selected(n int) int {
	if n == 0 {
		return 0
	}
	idx := m.selection[m.active]
	if idx >= n {
		idx = n - 1
		m.selection[m.active] = idx
	}
	if idx < 0 {
		idx = 0
		m.selection[m.active] = 0
	}
	return idx
}

// selectedContainer returns the container under the cursor, if any.
func (m *model) selectedContainer() (dockerops.ContainerInfo, bool) {
	entry, ok := m.dockerCache.Get()
	if !ok || len(entry.Value) == 0 {
		return dockerops.ContainerInfo{}, false
	}
	return entry.Value[m.selected(len(entry.Value))], true
}

// selectedTool returns the tool status under the cursor, if any.
func (m *model) selectedTool() (toolkit.Status, bool) {
	entry, ok := m.toolsCache.Get()
	if !ok || len(entry.Value) == 0 {
		return toolkit.Status{}, false
	}
	return entry.Value[m.selected(len(entry.Value))], true
}

// selectedProfile returns the deploy profile under the cursor, if any.
func (m *model) selectedProfile() (deploy.Profile, bool) {
	if len(m.profiles) == 0 {
		return deploy.Profile{}, false
	}
	return m.profiles[m.selected(len(m.profiles))], true
}

// selectedBranch returns the branch under the branch cursor, if any.
func (m *model) selectedBranch() string {
	if len(m.branches) == 0 {
		return ""
	}
	if m.branchIdx >= len(m.branches) {
		m.branchIdx = len(m.branches) - 1
	}
	return m.branches[m.branchIdx]
}

// busy reports whether any domain has an action in flight.
func (m *model) busy() bool {
	for _, domain := range []guard.Domain{guard.DomainDocker, guard.DomainTools, guard.DomainDeploy} {
		if _, pending := m.lock.Pending(domain); pending {
			return true
		}
	}
	return false
}

// setNotice replaces the one-line status notice.
func (m *model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// persist writes a setting, ignoring a nil store.
func (m *model) persist(key string, value any) {
	if m.st == nil {
		return
	}
	if err := m.st.Set(key, value); err != nil {
		m.logger.Warn("persist setting failed", "key", key, "error", err)
	}
}

// Init implements tea.Model: start polling the initial view.
func (m *model) Init() tea.Cmd {
	m.loops[m.active].Start(m.rootCtx, false)
	return tea.EnterAltScreen
}

// switchView performs every invalidation a tab change requires: the
// confirm record dies, the epoch advances, single-visibility data is
// dropped, and polling moves to the new view with a resume defer.
func (m *model) switchView(v view.View) {
	if v == m.active {
		return
	}
	old := m.active
	m.active = v
	m.confirm.OnViewChanged()
	m.tracker.BeginRender(v)
	m.setNotice("", false)
	// The entering view gets a clean slate; its deferred poll decides
	// whether the failure is still real.
	delete(m.failed, v)

	// Container data must not survive navigation away; it reflects a
	// moment that may be long gone by the time the user returns.
	if old == view.Docker {
		m.dockerCache.Clear()
	}

	if loop, ok := m.loops[old]; ok {
		loop.Stop()
	}
	if loop, ok := m.loops[v]; ok {
		loop.Start(m.rootCtx, true)
	}
}

// moveSelection moves the cursor within the active view's list and feeds
// the selection change into the confirm guard.
func (m *model) moveSelection(delta, listLen int) {
	if listLen == 0 {
		return
	}
	idx := m.selection[m.active] + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= listLen {
		idx = listLen - 1
	}
	m.selection[m.active] = idx

	if m.active == view.Docker {
		if c, ok := m.selectedContainer(); ok {
			m.confirm.OnTargetChanged(c.Name)
		}
	}
}

// elapsedNotice summarizes a refresh outcome for the notice line.
func elapsedNotice(res gateway.Result) (string, bool) {
	if res.OK {
		return "", false
	}
	if res.Stale && res.Error == "" {
		return "backend slow, showing cached data", false
	}
	return res.Error, true
}

// ageOf renders a cache entry's age for display.
func (m *model) ageOf(fetchedAt time.Time) time.Duration {
	return m.clk.Now().Sub(fetchedAt)
}
