package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kverlaine/opsdeck/internal/deploy"
	"github.com/kverlaine/opsdeck/internal/guard"
	"github.com/kverlaine/opsdeck/internal/view"
)

const (
	minWidth  = 60
	minHeight = 15
)

// View implements tea.Model.
func (m *model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.width < minWidth || m.height < minHeight {
		return fmt.Sprintf("Terminal too small (need at least %dx%d)", minWidth, minHeight)
	}

	var sections []string
	sections = append(sections, m.renderTabs())
	sections = append(sections, m.renderDivider())
	sections = append(sections, m.renderBody())
	sections = append(sections, m.renderDivider())
	sections = append(sections, m.renderNotice())
	sections = append(sections, m.renderFooter())

	content := strings.Join(sections, "\n")
	rendered := styles.Container.Width(safeWidth(m.width - 2)).Render(content)
	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, rendered)
}

func safeWidth(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// renderTabs draws the tab bar with the active view highlighted.
func (m *model) renderTabs() string {
	parts := make([]string, 0, len(view.All))
	for i, v := range view.All {
		label := fmt.Sprintf("%d:%s", i+1, v.Title())
		if v == m.active {
			parts = append(parts, styles.TabActive.Render("["+label+"]"))
		} else {
			parts = append(parts, styles.TabInactive.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, " ")
}

func (m *model) renderDivider() string {
	return styles.Divider.Render(strings.Repeat("-", safeWidth(m.width-4)))
}

// renderBody dispatches to the active view's renderer.
func (m *model) renderBody() string {
	switch m.active {
	case view.System:
		return m.renderSystem()
	case view.Docker:
		return m.renderDocker()
	case view.Tools:
		return m.renderTools()
	case view.Deploy:
		return m.renderDeploy()
	case view.Settings:
		return m.renderSettings()
	default:
		return ""
	}
}

// staleBadge renders the cached-data indicator for an entry's age.
func (m *model) staleBadge(stale bool, ageText string) string {
	if !stale {
		return ""
	}
	return styles.Stale.Render(fmt.Sprintf(" [cached %s ago]", ageText))
}

func (m *model) renderSystem() string {
	entry, ok := m.systemCache.Get()
	if !ok {
		if m.failed[view.System] {
			return styles.ErrText.Render("Host metrics unavailable. Press R to retry.")
		}
		return styles.Label.Render("Collecting host metrics...")
	}
	snap := entry.Value

	var b strings.Builder
	badge := m.staleBadge(entry.Stale || !m.systemCache.Fresh(), humanAge(m.ageOf(entry.FetchedAt)))
	b.WriteString(styles.Title.Render(snap.Hostname) + badge + "\n")
	b.WriteString(styles.Label.Render("platform  ") + styles.Value.Render(snap.Platform) + "\n")
	b.WriteString(styles.Label.Render("kernel    ") + styles.Value.Render(snap.KernelVersion) + "\n")
	b.WriteString(styles.Label.Render("uptime    ") + styles.Value.Render(humanUptime(snap.UptimeSec)) + "\n")
	b.WriteString("\n")
	b.WriteString(styles.Label.Render("cpu       ") +
		styles.Value.Render(fmt.Sprintf("%.1f%% of %d cores", snap.CPUPercent, snap.CPUCount)) + "\n")
	b.WriteString(styles.Label.Render("load      ") +
		styles.Value.Render(fmt.Sprintf("%.2f %.2f %.2f", snap.Load1, snap.Load5, snap.Load15)) + "\n")
	b.WriteString(styles.Label.Render("memory    ") +
		styles.Value.Render(fmt.Sprintf("%s / %s (%.1f%%)",
			humanBytes(snap.MemUsed), humanBytes(snap.MemTotal), snap.MemPercent)) + "\n")
	for _, d := range snap.Disks {
		b.WriteString(styles.Label.Render(fmt.Sprintf("disk %-5s", d.Path)) +
			styles.Value.Render(fmt.Sprintf("%s / %s (%.1f%%)",
				humanBytes(d.Used), humanBytes(d.Total), d.UsedPercent)) + "\n")
	}
	return b.String()
}

func (m *model) renderDocker() string {
	entry, ok := m.dockerCache.Get()
	if !ok {
		if m.failed[view.Docker] {
			return styles.ErrText.Render("Container list unavailable. Press R to retry.")
		}
		return styles.Label.Render("Listing containers...")
	}
	containers := entry.Value
	if len(containers) == 0 {
		return styles.Label.Render("No containers.")
	}

	var b strings.Builder
	badge := m.staleBadge(entry.Stale || !m.dockerCache.Fresh(), humanAge(m.ageOf(entry.FetchedAt)))
	b.WriteString(styles.Title.Render(fmt.Sprintf("%d containers", len(containers))) + badge)
	if kind, pending := m.lock.Pending(guard.DomainDocker); pending {
		b.WriteString(styles.Notice.Render(fmt.Sprintf("  (%s in progress)", kind)))
	}
	b.WriteString("\n")

	sel := m.selected(len(containers))
	for i, c := range containers {
		state := styles.StateStopped.Render(c.State)
		if c.Running() {
			state = styles.StateRunning.Render(c.State)
		}
		line := fmt.Sprintf("%-24s %-28s %s  %s",
			truncate(c.Name, 24), truncate(c.Image, 28), state, c.Status)
		if i == sel {
			line = styles.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if m.advanced {
		if c, ok := m.selectedContainer(); ok && m.confirm.Armed("docker.remove", c.Name) {
			b.WriteString("\n" + styles.ErrText.Render(
				fmt.Sprintf("confirm remove %s: press x again (%s left)",
					c.Name, humanAge(m.confirm.Remaining()))))
		}
	}
	return b.String()
}

func (m *model) renderTools() string {
	entry, ok := m.toolsCache.Get()
	if !ok {
		if m.failed[view.Tools] {
			return styles.ErrText.Render("Tool probe failed. Press R to retry.")
		}
		return styles.Label.Render("Probing tools...")
	}
	statuses := entry.Value

	var b strings.Builder
	badge := m.staleBadge(entry.Stale || !m.toolsCache.Fresh(), humanAge(m.ageOf(entry.FetchedAt)))
	b.WriteString(styles.Title.Render("Developer tools") + badge)
	if kind, pending := m.lock.Pending(guard.DomainTools); pending {
		b.WriteString(styles.Notice.Render(fmt.Sprintf("  (%s in progress)", kind)))
	}
	b.WriteString("\n")

	sel := m.selected(len(statuses))
	for i, st := range statuses {
		mark := styles.StateStopped.Render("missing")
		detail := ""
		if st.Installed {
			mark = styles.StateRunning.Render("ok")
			detail = styles.Label.Render(st.Version)
		}
		line := fmt.Sprintf("%-18s %-8s %s", st.Name, mark, detail)
		if i == sel {
			line = styles.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *model) renderDeploy() string {
	if len(m.profiles) == 0 {
		return styles.Label.Render("No deploy profiles. Create " + m.cfg.Deploy.ProfilesFile + " to get started.")
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("Deploy profiles") + "\n")

	sel := m.selected(len(m.profiles))
	for i, p := range m.profiles {
		git := ""
		if p.GitEnabled {
			git = styles.Label.Render(" (git)")
		}
		line := fmt.Sprintf("%-20s %s%s", p.Name, p.Service, git)
		if i == sel {
			line = styles.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if branch := m.selectedBranch(); branch != "" {
		b.WriteString("\n" + styles.Label.Render("branch    ") + styles.Value.Render(branch) +
			styles.Label.Render(fmt.Sprintf("  (%d available, b to cycle)", len(m.branches))) + "\n")
	} else {
		b.WriteString("\n" + styles.Label.Render("branch    ") + styles.Label.Render("none loaded (B to load)") + "\n")
	}

	if m.deployState != nil {
		b.WriteString("\n" + m.renderPipeline(m.deployState))
	}
	return b.String()
}

// renderPipeline draws the step list and recent log of a run.
func (m *model) renderPipeline(st *deploy.State) string {
	var b strings.Builder
	header := fmt.Sprintf("run %s  %s", truncate(st.RunID, 8), st.Profile)
	if st.Branch != "" {
		header += "@" + st.Branch
	}
	if st.Running {
		header += styles.StepRunning.Render("  RUNNING")
	}
	b.WriteString(styles.Title.Render(header) + "\n")

	for _, step := range st.Steps {
		var style lipgloss.Style
		switch step.Status {
		case deploy.StatusRunning:
			style = styles.StepRunning
		case deploy.StatusSuccess:
			style = styles.StepSuccess
		case deploy.StatusFailed:
			style = styles.StepFailed
		case deploy.StatusSkipped:
			style = styles.StepSkipped
		default:
			style = styles.StepPending
		}
		line := fmt.Sprintf("  %-12s %s", step.Name, style.Render(string(step.Status)))
		if step.Message != "" {
			line += "  " + styles.Label.Render(truncate(step.Message, 60))
		}
		b.WriteString(line + "\n")
	}

	if st.Summary != "" {
		style := styles.StepSuccess
		if st.LastError != "" {
			style = styles.StepFailed
		}
		b.WriteString(style.Render(st.Summary) + "\n")
	}
	return b.String()
}

func (m *model) renderSettings() string {
	var b strings.Builder
	b.WriteString(styles.Title.Render("Settings") + "\n")

	mode := styles.Label.Render("off")
	if m.advanced {
		mode = styles.StateRunning.Render("on")
	}
	b.WriteString(styles.Label.Render("advanced mode  ") + mode +
		styles.Label.Render("  (a to toggle; gates destructive actions)") + "\n")
	b.WriteString("\n")
	b.WriteString(styles.Label.Render("snapshot budget") + " " + styles.Value.Render(m.cfg.Gateway.SnapshotTimeout.String()) + "\n")
	b.WriteString(styles.Label.Render("poll budget    ") + styles.Value.Render(m.cfg.Gateway.PollTimeout.String()) + "\n")
	b.WriteString(styles.Label.Render("confirm window ") + styles.Value.Render(m.cfg.Confirm.Window.String()) + "\n")
	b.WriteString(styles.Label.Render("profiles file  ") + styles.Value.Render(m.cfg.Deploy.ProfilesFile) + "\n")
	b.WriteString(styles.Label.Render("settings file  ") + styles.Value.Render(m.cfg.Paths.Settings) + "\n")
	b.WriteString(styles.Label.Render("agent socket   ") + styles.Value.Render(m.cfg.Paths.Socket) + "\n")
	return b.String()
}

func (m *model) renderNotice() string {
	if m.notice == "" {
		return " "
	}
	text := m.notice
	if m.busy() {
		text = m.spinner.View() + " " + text
	}
	if m.noticeErr {
		return styles.ErrText.Render(text)
	}
	return styles.Notice.Render(text)
}

// renderFooter shows the active view's key bindings.
func (m *model) renderFooter() string {
	common := "1-5/tab views  j/k move  R refresh  q quit"
	if m.lastRMs > 0 {
		common += fmt.Sprintf("  [%dms]", m.lastRMs)
	}
	switch m.active {
	case view.Docker:
		keys := "s start  t stop  r restart"
		if m.advanced {
			keys += "  x remove"
		}
		return styles.Footer.Render(keys + "  |  " + common)
	case view.Tools:
		return styles.Footer.Render("i install  |  " + common)
	case view.Deploy:
		return styles.Footer.Render("B load branches  b cycle branch  d deploy  S start-only  |  " + common)
	case view.Settings:
		return styles.Footer.Render("a toggle advanced  |  " + common)
	default:
		return styles.Footer.Render(common)
	}
}
