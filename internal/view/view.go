// Package view names the console views and tracks render epochs so
// asynchronous results can be discarded once they are no longer relevant.
package view

// View identifies one of the console's views. Exactly one is current
// at any instant.
type View string

const (
	System   View = "system"
	Tools    View = "tools"
	Docker   View = "docker"
	Deploy   View = "deploy"
	Settings View = "settings"
)

// All lists the views in display order.
var All = []View{System, Tools, Docker, Deploy, Settings}

// Title returns the human-readable name used in the tab bar.
func (v View) Title() string {
	switch v {
	case System:
		return "System"
	case Tools:
		return "Tools"
	case Docker:
		return "Docker"
	case Deploy:
		return "Deploy"
	case Settings:
		return "Settings"
	default:
		return string(v)
	}
}
