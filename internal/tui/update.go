package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kverlaine/opsdeck/internal/deploy"
	"github.com/kverlaine/opsdeck/internal/dockerops"
	"github.com/kverlaine/opsdeck/internal/gateway"
	"github.com/kverlaine/opsdeck/internal/guard"
	"github.com/kverlaine/opsdeck/internal/store"
	"github.com/kverlaine/opsdeck/internal/sysinfo"
	"github.com/kverlaine/opsdeck/internal/toolkit"
	"github.com/kverlaine/opsdeck/internal/view"
)

// refreshMsg delivers one fetch result stamped with the ticket it was
// started under. Stale tickets are dropped without touching state.
type refreshMsg struct {
	view   view.View
	ticket view.Ticket
	res    gateway.Result
	late   bool
}

// actionDoneMsg delivers the outcome of a user-initiated mutating action.
type actionDoneMsg struct {
	domain guard.Domain
	kind   string
	target string
	res    gateway.Result
}

// branchesMsg delivers the branch list for a deploy profile.
type branchesMsg struct {
	profile  string
	branches []string
	err      error
}

// deployProgressMsg streams pipeline state during a run.
type deployProgressMsg struct {
	state deploy.State
}

// deployDoneMsg marks the end of a pipeline run.
type deployDoneMsg struct {
	state deploy.State
	err   error
}

// Update implements tea.Model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.handleRefresh(msg)
		return m, nil

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case branchesMsg:
		m.handleBranches(msg)
		return m, nil

	case deployProgressMsg:
		st := msg.state
		m.deployState = &st
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case deployDoneMsg:
		m.lock.Release(guard.DomainDeploy)
		if msg.err != nil {
			m.setNotice(msg.err.Error(), true)
		} else {
			st := msg.state
			m.deployState = &st
			m.setNotice(st.Summary, st.LastError != "")
		}
		return m, nil

	default:
		return m, nil
	}
}

// handleRefresh applies a fetch result, or drops it if its ticket went
// stale while the fetch was in flight.
func (m *model) handleRefresh(msg refreshMsg) {
	if m.tracker.IsStale(msg.ticket) {
		m.logger.Debug("dropping stale refresh",
			"view", msg.view, "epoch", msg.ticket.Epoch, "late", msg.late)
		return
	}

	if !msg.res.OK {
		// Soft-timeout or failure: keep showing the cache, marked stale.
		m.failed[msg.view] = true
		switch msg.view {
		case view.System:
			m.systemCache.MarkStale()
		case view.Docker:
			m.dockerCache.MarkStale()
		case view.Tools:
			m.toolsCache.MarkStale()
		}
		text, isErr := elapsedNotice(msg.res)
		m.setNotice(text, isErr)
		return
	}

	switch msg.view {
	case view.System:
		var snap sysinfo.Snapshot
		if err := gateway.Decode(msg.res, &snap); err != nil {
			m.failed[msg.view] = true
			m.setNotice(err.Error(), true)
			return
		}
		m.systemCache.Put(snap)
	case view.Docker:
		var containers []dockerops.ContainerInfo
		if err := gateway.Decode(msg.res, &containers); err != nil {
			m.failed[msg.view] = true
			m.setNotice(err.Error(), true)
			return
		}
		m.dockerCache.Put(containers)
	case view.Tools:
		var statuses []toolkit.Status
		if err := gateway.Decode(msg.res, &statuses); err != nil {
			m.failed[msg.view] = true
			m.setNotice(err.Error(), true)
			return
		}
		m.toolsCache.Put(statuses)
	}

	m.failed[msg.view] = false
	m.lastRMs = msg.res.ElapsedMs
	m.setNotice("", false)
}

// handleActionDone releases the action lock and schedules a refresh so
// the list reflects the new reality.
func (m *model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	m.lock.Release(msg.domain)

	if !msg.res.OK {
		m.setNotice(fmt.Sprintf("%s %s failed: %s", msg.kind, msg.target, msg.res.Error), true)
	} else {
		m.setNotice(fmt.Sprintf("%s %s done (%dms)", msg.kind, msg.target, msg.res.ElapsedMs), false)
	}

	switch msg.domain {
	case guard.DomainDocker:
		m.dockerCache.MarkStale()
		if m.active == view.Docker {
			tk := m.tracker.BeginRender(view.Docker)
			return m, m.refreshCmd(view.Docker, tk)
		}
	case guard.DomainTools:
		m.toolsCache.MarkStale()
		if m.active == view.Tools {
			tk := m.tracker.BeginRender(view.Tools)
			return m, m.refreshCmd(view.Tools, tk)
		}
	}
	return m, nil
}

// handleBranches applies a branch listing for the still-selected profile.
func (m *model) handleBranches(msg branchesMsg) {
	profile, ok := m.selectedProfile()
	if !ok || profile.Name != msg.profile {
		// Selection moved on; this listing is for somebody else.
		return
	}
	if msg.err != nil {
		m.setNotice(msg.err.Error(), true)
		return
	}
	m.branches = msg.branches
	m.branchIdx = 0
	if m.st != nil {
		if last := m.st.GetString(store.KeyLastBranch, ""); last != "" {
			for i, b := range m.branches {
				if b == last {
					m.branchIdx = i
					break
				}
			}
		}
	}
	m.setNotice(fmt.Sprintf("%d branches", len(msg.branches)), false)
}

// handleKey routes keyboard input.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys.
	switch key {
	case "ctrl+c", "q":
		m.quitting = true
		m.stopLoops()
		return m, tea.Quit

	case "1", "2", "3", "4", "5":
		idx := int(key[0] - '1')
		m.switchView(view.All[idx])
		return m, nil

	case "tab":
		m.switchView(nextView(m.active))
		return m, nil

	case "shift+tab":
		m.switchView(prevView(m.active))
		return m, nil

	case "R":
		// Manual refresh of the active view, if it is a polled one.
		if commandForView(m.active) == "" {
			return m, nil
		}
		tk := m.tracker.BeginRender(m.active)
		return m, m.refreshCmd(m.active, tk)

	case "up", "k":
		m.moveSelection(-1, m.activeListLen())
		return m, nil

	case "down", "j":
		m.moveSelection(1, m.activeListLen())
		return m, nil
	}

	switch m.active {
	case view.Docker:
		return m.handleDockerKey(key)
	case view.Tools:
		return m.handleToolsKey(key)
	case view.Deploy:
		return m.handleDeployKey(key)
	case view.Settings:
		return m.handleSettingsKey(key)
	}
	return m, nil
}

// activeListLen returns the length of the active view's selectable list.
func (m *model) activeListLen() int {
	switch m.active {
	case view.Docker:
		if entry, ok := m.dockerCache.Get(); ok {
			return len(entry.Value)
		}
	case view.Tools:
		if entry, ok := m.toolsCache.Get(); ok {
			return len(entry.Value)
		}
	case view.Deploy:
		return len(m.profiles)
	}
	return 0
}

func nextView(v view.View) view.View {
	for i, candidate := range view.All {
		if candidate == v {
			return view.All[(i+1)%len(view.All)]
		}
	}
	return v
}

func prevView(v view.View) view.View {
	for i, candidate := range view.All {
		if candidate == v {
			return view.All[(i+len(view.All)-1)%len(view.All)]
		}
	}
	return v
}

// handleDockerKey handles container lifecycle keys.
func (m *model) handleDockerKey(key string) (tea.Model, tea.Cmd) {
	c, ok := m.selectedContainer()
	if !ok {
		return m, nil
	}

	switch key {
	case "s":
		return m.dispatchDocker("start", c.Name)
	case "t":
		return m.dispatchDocker("stop", c.Name)
	case "r":
		return m.dispatchDocker("restart", c.Name)
	case "x":
		if !m.advanced {
			m.setNotice("remove requires advanced mode (settings view)", true)
			return m, nil
		}
		if m.confirm.Consume("docker.remove", c.Name) {
			return m.dispatchDocker("remove", c.Name)
		}
		m.confirm.Arm("docker.remove", c.Name)
		m.setNotice(fmt.Sprintf("press x again within %s to remove %s",
			m.confirm.Remaining().Round(time.Second), c.Name), false)
		return m, nil
	}
	return m, nil
}

// dispatchDocker runs one container lifecycle command under the docker
// domain lock.
func (m *model) dispatchDocker(kind, name string) (tea.Model, tea.Cmd) {
	if !m.lock.TryAcquire(guard.DomainDocker, kind) {
		pending, _ := m.lock.Pending(guard.DomainDocker)
		m.setNotice(fmt.Sprintf("%s already in progress", pending), true)
		return m, nil
	}
	m.setNotice(fmt.Sprintf("%s %s...", kind, name), false)
	return m, tea.Batch(
		m.actionCmd(guard.DomainDocker, kind, name, "docker."+kind, dockerLifecycleArgs{Name: name}),
		m.spinner.Tick,
	)
}

// handleToolsKey handles tool installation.
func (m *model) handleToolsKey(key string) (tea.Model, tea.Cmd) {
	if key != "i" {
		return m, nil
	}
	tool, ok := m.selectedTool()
	if !ok {
		return m, nil
	}
	if tool.Installed {
		m.setNotice(fmt.Sprintf("%s is already installed", tool.Name), false)
		return m, nil
	}
	if !m.lock.TryAcquire(guard.DomainTools, "install") {
		m.setNotice("an install is already in progress", true)
		return m, nil
	}
	m.setNotice(fmt.Sprintf("installing %s...", tool.Name), false)
	return m, tea.Batch(
		m.actionCmd(guard.DomainTools, "install", tool.Name, "tools.install", toolInstallArgs{Name: tool.Name}),
		m.spinner.Tick,
	)
}

// actionCmd invokes a mutating command with the hard action timeout.
func (m *model) actionCmd(domain guard.Domain, kind, target, command string, args any) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.Gateway.ActionTimeout)
		defer cancel()
		res := m.gw.Invoke(ctx, command, args)
		return actionDoneMsg{domain: domain, kind: kind, target: target, res: res}
	}
}

// handleDeployKey handles the deploy view: branch loading and selection,
// and the two run modes.
func (m *model) handleDeployKey(key string) (tea.Model, tea.Cmd) {
	profile, ok := m.selectedProfile()
	if !ok {
		return m, nil
	}

	switch key {
	case "b":
		if len(m.branches) > 0 {
			m.branchIdx = (m.branchIdx + 1) % len(m.branches)
		}
		return m, nil

	case "B":
		if !profile.GitEnabled {
			m.setNotice(fmt.Sprintf("%s has no git integration", profile.Name), false)
			return m, nil
		}
		m.setNotice("loading branches...", false)
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(m.rootCtx, m.cfg.Gateway.ActionTimeout)
			defer cancel()
			branches, err := deploy.Branches(ctx, m.gw, profile.Name)
			return branchesMsg{profile: profile.Name, branches: branches, err: err}
		}

	case "d":
		return m.startDeploy(profile, deploy.ModePullAndStart)

	case "S":
		return m.startDeploy(profile, deploy.ModeStartOnly)
	}
	return m, nil
}

// startDeploy launches a pipeline run under the deploy domain lock.
func (m *model) startDeploy(profile deploy.Profile, mode deploy.Mode) (tea.Model, tea.Cmd) {
	branch := m.selectedBranch()
	if mode == deploy.ModePullAndStart && profile.GitEnabled && branch == "" {
		m.setNotice("select a branch first (B to load, b to cycle)", true)
		return m, nil
	}
	if !m.lock.TryAcquire(guard.DomainDeploy, string(mode)) {
		m.setNotice("a deployment is already running", true)
		return m, nil
	}

	m.persist(store.KeyLastProfile, profile.Name)
	if branch != "" {
		m.persist(store.KeyLastBranch, branch)
	}
	m.setNotice(fmt.Sprintf("deploying %s (%s)...", profile.Name, mode), false)

	run := func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.rootCtx, 10*m.cfg.Gateway.ActionTimeout)
		defer cancel()
		state, err := m.runner.Run(ctx, profile, branch, mode, func(s deploy.State) {
			m.d.Send(deployProgressMsg{state: s})
		})
		return deployDoneMsg{state: state, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// handleSettingsKey toggles advanced mode.
func (m *model) handleSettingsKey(key string) (tea.Model, tea.Cmd) {
	if key != "a" {
		return m, nil
	}
	m.advanced = !m.advanced
	m.persist(store.KeyAdvancedMode, m.advanced)
	if !m.advanced {
		// Destructive affordances just disappeared; any armed
		// confirmation dies with them.
		m.confirm.OnAdvancedModeDisabled()
		m.setNotice("advanced mode off", false)
	} else {
		m.setNotice("advanced mode on: destructive actions visible", false)
	}
	return m, nil
}
