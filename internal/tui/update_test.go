package tui

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kverlaine/opsdeck/internal/clock"
	"github.com/kverlaine/opsdeck/internal/config"
	"github.com/kverlaine/opsdeck/internal/deploy"
	"github.com/kverlaine/opsdeck/internal/dockerops"
	"github.com/kverlaine/opsdeck/internal/gateway"
	"github.com/kverlaine/opsdeck/internal/guard"
	"github.com/kverlaine/opsdeck/internal/store"
	"github.com/kverlaine/opsdeck/internal/sysinfo"
	"github.com/kverlaine/opsdeck/internal/toolkit"
	"github.com/kverlaine/opsdeck/internal/view"
)

func newTestModel(t *testing.T, mock *gateway.Mock) (*model, *clock.Fake, *store.Store) {
	t.Helper()

	clk := clock.NewFake()
	st, err := store.Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	tui := New(config.Default(), mock,
		WithClock(clk),
		WithStore(st),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithProfiles([]deploy.Profile{
			{Name: "web", Service: "web", WorkDir: "/srv/web", GitEnabled: true, Remote: "origin"},
			{Name: "cache", Service: "redis"},
		}),
	)

	m := newModel(tui, &dispatcher{})
	m.width = 100
	m.height = 30
	return m, clk, st
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testContainers() []dockerops.ContainerInfo {
	return []dockerops.ContainerInfo{
		{ID: "c1", Name: "web-1", Image: "nginx:latest", State: "running", Status: "Up 2 hours"},
		{ID: "c2", Name: "db-1", Image: "postgres:16", State: "exited", Status: "Exited (0)"},
	}
}

func TestHandleRefresh_AppliesFreshResult(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())

	tk := m.tracker.BeginRender(view.System)
	snap := sysinfo.Snapshot{Hostname: "host-a", CPUPercent: 12.5}
	m.handleRefresh(refreshMsg{view: view.System, ticket: tk, res: gateway.Succeed(snap)})

	entry, ok := m.systemCache.Get()
	if !ok {
		t.Fatal("system cache should hold the applied snapshot")
	}
	if entry.Value.Hostname != "host-a" {
		t.Errorf("hostname = %q, want host-a", entry.Value.Hostname)
	}
	if entry.Stale {
		t.Error("fresh result should not be marked stale")
	}
}

func TestHandleRefresh_DropsStaleTicket(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())

	old := m.tracker.BeginRender(view.System)
	m.tracker.BeginRender(view.System) // a newer render cycle started

	m.handleRefresh(refreshMsg{
		view:   view.System,
		ticket: old,
		res:    gateway.Succeed(sysinfo.Snapshot{Hostname: "ghost"}),
	})

	if _, ok := m.systemCache.Get(); ok {
		t.Error("stale-ticket result must not touch the cache")
	}
}

func TestHandleRefresh_LateResultDroppedAfterViewSwitch(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())

	tk := m.tracker.BeginRender(view.Docker)
	m.tracker.BeginRender(view.System) // user navigated away

	m.handleRefresh(refreshMsg{
		view:   view.Docker,
		ticket: tk,
		res:    gateway.Succeed(testContainers()),
		late:   true,
	})

	if _, ok := m.dockerCache.Get(); ok {
		t.Error("late result for a dead view must be dropped")
	}
}

func TestHandleRefresh_FailureMarksCacheStale(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.Docker
	m.dockerCache.Put(testContainers())

	tk := m.tracker.BeginRender(view.Docker)
	m.handleRefresh(refreshMsg{
		view:   view.Docker,
		ticket: tk,
		res:    gateway.Failf("docker daemon unreachable"),
	})

	entry, ok := m.dockerCache.Get()
	if !ok {
		t.Fatal("failed refresh must keep the previous value available")
	}
	if !entry.Stale {
		t.Error("failed refresh must mark the cache stale")
	}
	if !m.noticeErr || !strings.Contains(m.notice, "unreachable") {
		t.Errorf("notice = %q (err=%v), want the failure reason", m.notice, m.noticeErr)
	}
}

func TestHandleRefresh_SoftTimeoutNotice(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.systemCache.Put(sysinfo.Snapshot{Hostname: "host-a"})

	tk := m.tracker.BeginRender(view.System)
	m.handleRefresh(refreshMsg{view: view.System, ticket: tk, res: gateway.Result{Stale: true}})

	if m.noticeErr {
		t.Error("a soft timeout is not an error condition")
	}
	if !strings.Contains(m.notice, "cached") {
		t.Errorf("notice = %q, want the slow-backend hint", m.notice)
	}
}

func TestSoftTimeoutBudget_PerView(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.cfg.Gateway.SnapshotTimeout = 7 * time.Second
	m.cfg.Gateway.PollTimeout = 300 * time.Millisecond

	if got := m.softTimeoutFor(view.System); got != 7*time.Second {
		t.Errorf("system budget = %v, want the snapshot budget", got)
	}
	if got := m.softTimeoutFor(view.Docker); got != 300*time.Millisecond {
		t.Errorf("docker budget = %v, want the poll budget", got)
	}
	if got := m.softTimeoutFor(view.Tools); got != 300*time.Millisecond {
		t.Errorf("tools budget = %v, want the poll budget", got)
	}
}

func TestFetch_PollBudgetGovernsListingPolls(t *testing.T) {
	mock := gateway.NewMock()
	release := mock.Gate("docker.list")
	defer release()

	m, clk, _ := newTestModel(t, mock)
	m.cfg.Gateway.SnapshotTimeout = time.Hour // must never be consulted here
	m.cfg.Gateway.PollTimeout = 100 * time.Millisecond

	tk := m.tracker.BeginRender(view.Docker)
	resultCh := make(chan gateway.Result, 1)
	go func() {
		resultCh <- m.fetch(context.Background(), view.Docker, tk)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for clk.PendingTimers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fetch never armed its timeout")
		}
		time.Sleep(time.Millisecond)
	}
	clk.Advance(100 * time.Millisecond)

	select {
	case res := <-resultCh:
		if !res.Stale {
			t.Errorf("blocked poll must degrade at the poll budget, got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not return after the poll budget elapsed")
	}
}

func TestHandleRefresh_FatalFailureShowsRetry(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())

	tk := m.tracker.BeginRender(view.System)
	m.handleRefresh(refreshMsg{view: view.System, ticket: tk, res: gateway.Failf("sampling failed")})

	if body := m.renderSystem(); !strings.Contains(body, "Press R to retry") {
		t.Errorf("no cache + failed fetch must offer a retry, got %q", body)
	}

	tk = m.tracker.BeginRender(view.System)
	m.handleRefresh(refreshMsg{view: view.System, ticket: tk, res: gateway.Succeed(sysinfo.Snapshot{Hostname: "host-a"})})

	if body := m.renderSystem(); strings.Contains(body, "retry") {
		t.Errorf("a successful refresh must clear the retry state, got %q", body)
	}
}

func TestHandleRefresh_FailureKeepsCacheOverRetryHint(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.Docker
	m.dockerCache.Put(testContainers())

	tk := m.tracker.BeginRender(view.Docker)
	m.handleRefresh(refreshMsg{view: view.Docker, ticket: tk, res: gateway.Failf("daemon unreachable")})

	body := m.renderDocker()
	if strings.Contains(body, "retry") {
		t.Errorf("cached data must keep rendering through failures, got %q", body)
	}
	if !strings.Contains(body, "web-1") {
		t.Errorf("cached containers missing from %q", body)
	}
}

func TestSwitchView_ResetsRetryState(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.Docker

	tk := m.tracker.BeginRender(view.Docker)
	m.handleRefresh(refreshMsg{view: view.Docker, ticket: tk, res: gateway.Failf("daemon unreachable")})
	if body := m.renderDocker(); !strings.Contains(body, "Press R to retry") {
		t.Fatalf("expected the retry hint, got %q", body)
	}

	m.switchView(view.System)
	m.switchView(view.Docker)

	if body := m.renderDocker(); !strings.Contains(body, "Listing containers") {
		t.Errorf("re-entering a view must restart from the loading state, got %q", body)
	}
}

func TestSwitchView_ClearsDockerCacheAndConfirm(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.Docker
	m.dockerCache.Put(testContainers())
	m.confirm.Arm("docker.remove", "web-1")

	m.switchView(view.System)

	if _, ok := m.dockerCache.Get(); ok {
		t.Error("container data must not survive navigation away")
	}
	if m.confirm.Armed("docker.remove", "web-1") {
		t.Error("tab switch must disarm any pending confirmation")
	}
	if m.tracker.Current() != view.System {
		t.Errorf("current view = %v, want system", m.tracker.Current())
	}
}

func TestSwitchView_MovesPollLoop(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.loops[view.System].Start(m.rootCtx, false)

	m.switchView(view.Docker)

	if m.loops[view.System].Running() {
		t.Error("old view's loop should be stopped")
	}
	if !m.loops[view.Docker].Running() {
		t.Error("new view's loop should be running")
	}
}

func TestManualRefresh_InvalidatesInFlightResults(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	inFlight := m.tracker.BeginRender(view.System)

	_, cmd := m.Update(keyRunes("R"))
	if cmd == nil {
		t.Fatal("manual refresh should return a fetch command")
	}
	if !m.tracker.IsStale(inFlight) {
		t.Error("manual refresh must invalidate older in-flight tickets")
	}
}

func TestDockerRemove_RequiresAdvancedMode(t *testing.T) {
	mock := gateway.NewMock()
	m, _, _ := newTestModel(t, mock)
	m.active = view.Docker
	m.dockerCache.Put(testContainers())

	_, cmd := m.Update(keyRunes("x"))

	if cmd != nil {
		t.Error("remove without advanced mode must not dispatch")
	}
	if !m.noticeErr || !strings.Contains(m.notice, "advanced") {
		t.Errorf("notice = %q, want the advanced-mode hint", m.notice)
	}
	if m.confirm.Armed("docker.remove", "web-1") {
		t.Error("gated key must not arm a confirmation")
	}
}

func TestDockerRemove_TwoPressConfirm(t *testing.T) {
	mock := gateway.NewMock()
	m, _, _ := newTestModel(t, mock)
	m.active = view.Docker
	m.advanced = true
	m.dockerCache.Put(testContainers())

	// First press arms; nothing is dispatched.
	_, cmd := m.Update(keyRunes("x"))
	if cmd != nil {
		t.Fatal("first press must not dispatch")
	}
	if !m.confirm.Armed("docker.remove", "web-1") {
		t.Fatal("first press should arm the confirmation")
	}
	if _, pending := m.lock.Pending(guard.DomainDocker); pending {
		t.Fatal("no action should be in flight after arming")
	}

	// Second press consumes the confirmation and dispatches.
	_, cmd = m.Update(keyRunes("x"))
	if cmd == nil {
		t.Fatal("second press should dispatch the remove")
	}
	if kind, pending := m.lock.Pending(guard.DomainDocker); !pending || kind != "remove" {
		t.Errorf("lock = (%q, %v), want (remove, true)", kind, pending)
	}
	if m.confirm.Armed("docker.remove", "web-1") {
		t.Error("consumed confirmation must not stay armed")
	}
}

func TestDockerRemove_ConfirmExpires(t *testing.T) {
	mock := gateway.NewMock()
	m, clk, _ := newTestModel(t, mock)
	m.active = view.Docker
	m.advanced = true
	m.dockerCache.Put(testContainers())

	m.Update(keyRunes("x"))
	clk.Advance(m.cfg.Confirm.Window + time.Second)

	// Past the window the press re-arms instead of executing.
	_, cmd := m.Update(keyRunes("x"))
	if cmd != nil {
		t.Error("expired confirmation must not dispatch")
	}
	if _, pending := m.lock.Pending(guard.DomainDocker); pending {
		t.Error("no action should be in flight after expiry")
	}
	if !m.confirm.Armed("docker.remove", "web-1") {
		t.Error("the late press should have re-armed")
	}
}

func TestDockerRemove_SelectionChangeDisarms(t *testing.T) {
	mock := gateway.NewMock()
	m, _, _ := newTestModel(t, mock)
	m.active = view.Docker
	m.advanced = true
	m.dockerCache.Put(testContainers())

	m.Update(keyRunes("x")) // arm for web-1
	m.Update(keyRunes("j")) // move to db-1

	if m.confirm.Armed("docker.remove", "web-1") {
		t.Error("selection change must disarm the old target")
	}

	// The press on the new target arms for it, it does not execute.
	_, cmd := m.Update(keyRunes("x"))
	if cmd != nil {
		t.Error("first press on the new target must not dispatch")
	}
	if !m.confirm.Armed("docker.remove", "db-1") {
		t.Error("press should arm for the newly selected container")
	}
}

func TestDockerAction_LockBlocksSecondDispatch(t *testing.T) {
	mock := gateway.NewMock()
	m, _, _ := newTestModel(t, mock)
	m.active = view.Docker
	m.dockerCache.Put(testContainers())
	m.lock.TryAcquire(guard.DomainDocker, "restart")

	_, cmd := m.Update(keyRunes("s"))

	if cmd != nil {
		t.Error("a held domain lock must block dispatch")
	}
	if !m.noticeErr || !strings.Contains(m.notice, "restart") {
		t.Errorf("notice = %q, want the pending action kind", m.notice)
	}
}

func TestActionDone_ReleasesLockAndRefreshes(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.Docker
	m.dockerCache.Put(testContainers())
	m.lock.TryAcquire(guard.DomainDocker, "stop")

	_, cmd := m.Update(actionDoneMsg{
		domain: guard.DomainDocker,
		kind:   "stop",
		target: "web-1",
		res:    gateway.Result{OK: true, ElapsedMs: 120},
	})

	if _, pending := m.lock.Pending(guard.DomainDocker); pending {
		t.Error("completion must release the domain lock")
	}
	entry, _ := m.dockerCache.Get()
	if !entry.Stale {
		t.Error("completed action must mark the listing stale")
	}
	if cmd == nil {
		t.Error("completion on the active view should schedule a refresh")
	}
	if !strings.Contains(m.notice, "done") {
		t.Errorf("notice = %q, want a completion message", m.notice)
	}
}

func TestActionDone_FailureSurfacesError(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.System // not the docker view: no refresh scheduled
	m.lock.TryAcquire(guard.DomainDocker, "start")

	_, cmd := m.Update(actionDoneMsg{
		domain: guard.DomainDocker,
		kind:   "start",
		target: "web-1",
		res:    gateway.Failf("no such container"),
	})

	if cmd != nil {
		t.Error("no refresh should be scheduled for an inactive view")
	}
	if !m.noticeErr || !strings.Contains(m.notice, "no such container") {
		t.Errorf("notice = %q, want the failure reason", m.notice)
	}
}

func TestToolsInstall_SkipsInstalled(t *testing.T) {
	mock := gateway.NewMock()
	m, _, _ := newTestModel(t, mock)
	m.active = view.Tools
	m.toolsCache.Put([]toolkit.Status{
		{Tool: toolkit.Tool{Name: "git"}, Installed: true, Version: "2.43"},
	})

	_, cmd := m.Update(keyRunes("i"))

	if cmd != nil {
		t.Error("installing an installed tool must be a no-op")
	}
	if _, pending := m.lock.Pending(guard.DomainTools); pending {
		t.Error("no install should be in flight")
	}
}

func TestToolsInstall_DispatchesUnderLock(t *testing.T) {
	mock := gateway.NewMock()
	m, _, _ := newTestModel(t, mock)
	m.active = view.Tools
	m.toolsCache.Put([]toolkit.Status{
		{Tool: toolkit.Tool{Name: "jq"}, Installed: false},
	})

	_, cmd := m.Update(keyRunes("i"))

	if cmd == nil {
		t.Fatal("install should dispatch")
	}
	if kind, pending := m.lock.Pending(guard.DomainTools); !pending || kind != "install" {
		t.Errorf("lock = (%q, %v), want (install, true)", kind, pending)
	}
}

func TestSettingsToggle_PersistsAndDisarms(t *testing.T) {
	m, _, st := newTestModel(t, gateway.NewMock())
	m.active = view.Settings
	m.advanced = true
	m.confirm.Arm("docker.remove", "web-1")

	m.Update(keyRunes("a"))

	if m.advanced {
		t.Error("toggle should have turned advanced mode off")
	}
	if st.GetBool(store.KeyAdvancedMode, true) {
		t.Error("advanced mode must persist as off")
	}
	if m.confirm.Armed("docker.remove", "web-1") {
		t.Error("disabling advanced mode must disarm confirmations")
	}
}

func TestDeploy_BranchRequiredForGitProfile(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.Deploy // profile "web" is git-enabled, no branches loaded

	_, cmd := m.Update(keyRunes("d"))

	if cmd != nil {
		t.Error("deploy without a branch must not start")
	}
	if !m.noticeErr || !strings.Contains(m.notice, "branch") {
		t.Errorf("notice = %q, want the branch hint", m.notice)
	}
	if _, pending := m.lock.Pending(guard.DomainDeploy); pending {
		t.Error("no run should be in flight")
	}
}

func TestDeploy_StartOnlySkipsBranchCheck(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.Deploy

	_, cmd := m.Update(keyRunes("S"))

	if cmd == nil {
		t.Fatal("start-only should dispatch without a branch")
	}
	if _, pending := m.lock.Pending(guard.DomainDeploy); !pending {
		t.Error("the deploy domain should be locked")
	}
}

func TestHandleBranches_RestoresLastBranch(t *testing.T) {
	m, _, st := newTestModel(t, gateway.NewMock())
	m.active = view.Deploy
	if err := st.Set(store.KeyLastBranch, "develop"); err != nil {
		t.Fatal(err)
	}

	m.handleBranches(branchesMsg{
		profile:  "web",
		branches: []string{"main", "staging", "develop"},
	})

	if m.branchIdx != 2 {
		t.Errorf("branchIdx = %d, want the persisted branch restored", m.branchIdx)
	}
	if m.selectedBranch() != "develop" {
		t.Errorf("selected branch = %q, want develop", m.selectedBranch())
	}
}

func TestHandleBranches_IgnoredAfterSelectionMoved(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.active = view.Deploy
	m.selection[view.Deploy] = 1 // "cache" selected now

	m.handleBranches(branchesMsg{profile: "web", branches: []string{"main"}})

	if len(m.branches) != 0 {
		t.Error("a listing for a deselected profile must be dropped")
	}
}

func TestDeployProgress_UpdatesState(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())

	m.Update(deployProgressMsg{state: deploy.State{RunID: "r1", Running: true}})

	if m.deployState == nil || m.deployState.RunID != "r1" || !m.deployState.Running {
		t.Errorf("deployState = %+v, want the streamed run", m.deployState)
	}
}

func TestDeployDone_ReleasesLock(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())
	m.lock.TryAcquire(guard.DomainDeploy, "pull-and-start")

	m.Update(deployDoneMsg{state: deploy.State{RunID: "r1", Summary: "deployed web@main"}})

	if _, pending := m.lock.Pending(guard.DomainDeploy); pending {
		t.Error("run completion must release the deploy lock")
	}
	if m.noticeErr || !strings.Contains(m.notice, "deployed") {
		t.Errorf("notice = %q (err=%v), want the run summary", m.notice, m.noticeErr)
	}
}

func TestElapsedNotice(t *testing.T) {
	tests := []struct {
		name    string
		res     gateway.Result
		want    string
		wantErr bool
	}{
		{"success clears", gateway.Result{OK: true}, "", false},
		{"soft timeout", gateway.Result{Stale: true}, "backend slow, showing cached data", false},
		{"failure", gateway.Failf("boom"), "boom", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, isErr := elapsedNotice(tt.res)
			if got != tt.want || isErr != tt.wantErr {
				t.Errorf("elapsedNotice() = (%q, %v), want (%q, %v)", got, isErr, tt.want, tt.wantErr)
			}
		})
	}
}

func TestViewNavigationKeys(t *testing.T) {
	m, _, _ := newTestModel(t, gateway.NewMock())

	m.Update(keyRunes("3"))
	if m.active != view.Docker {
		t.Errorf("after '3' active = %v, want docker", m.active)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.active != view.Deploy {
		t.Errorf("after tab active = %v, want deploy", m.active)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.active != view.Docker {
		t.Errorf("after shift+tab active = %v, want docker", m.active)
	}
}
