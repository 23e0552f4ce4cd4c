package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the console.
var styles = struct {
	Container lipgloss.Style
	Divider   lipgloss.Style

	TabActive   lipgloss.Style
	TabInactive lipgloss.Style

	Title    lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Footer   lipgloss.Style
	Notice   lipgloss.Style
	ErrText  lipgloss.Style
	Stale    lipgloss.Style
	Selected lipgloss.Style

	StateRunning lipgloss.Style
	StateStopped lipgloss.Style

	StepPending lipgloss.Style
	StepRunning lipgloss.Style
	StepSuccess lipgloss.Style
	StepFailed  lipgloss.Style
	StepSkipped lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	TabActive: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	TabInactive: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")),

	Label: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Value: lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Notice: lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")),

	ErrText: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	Stale: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Selected: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		Background(lipgloss.Color("236")),

	StateRunning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	StateStopped: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	StepPending: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	StepRunning: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220")),

	StepSuccess: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	StepFailed: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196")),

	StepSkipped: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),
}
