// Package toolkit detects and installs the developer tools the console
// curates for the tools view.
package toolkit

import (
	"context"
	"fmt"
	"strings"

	osexec "github.com/kverlaine/opsdeck/internal/exec"
)

// Tool describes one curated developer tool.
type Tool struct {
	// Name is the display name and install key.
	Name string `json:"name"`
	// Binary is the executable probed on PATH.
	Binary string `json:"binary"`
	// VersionArgs are passed to the binary to read its version.
	VersionArgs []string `json:"-"`
	// InstallCmd is the command line used to install the tool.
	InstallCmd []string `json:"-"`
}

// Status is a Tool plus its detection result.
type Status struct {
	Tool
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
}

// DefaultTools is the curated set. Install commands assume a Debian-family
// host; other distributions install manually.
func DefaultTools() []Tool {
	return []Tool{
		{Name: "git", Binary: "git", VersionArgs: []string{"--version"}, InstallCmd: []string{"apt-get", "install", "-y", "git"}},
		{Name: "docker", Binary: "docker", VersionArgs: []string{"--version"}, InstallCmd: []string{"sh", "-c", "curl -fsSL https://get.docker.com | sh"}},
		{Name: "docker compose", Binary: "docker-compose", VersionArgs: []string{"--version"}, InstallCmd: []string{"apt-get", "install", "-y", "docker-compose-plugin"}},
		{Name: "jq", Binary: "jq", VersionArgs: []string{"--version"}, InstallCmd: []string{"apt-get", "install", "-y", "jq"}},
		{Name: "htop", Binary: "htop", VersionArgs: []string{"--version"}, InstallCmd: []string{"apt-get", "install", "-y", "htop"}},
	}
}

// Kit answers detection and install requests for a fixed tool set.
type Kit struct {
	tools  []Tool
	runner osexec.CommandRunner
}

// NewKit creates a Kit over the given tools.
func NewKit(tools []Tool, runner osexec.CommandRunner) *Kit {
	return &Kit{tools: tools, runner: runner}
}

// Statuses probes every curated tool.
func (k *Kit) Statuses(ctx context.Context) []Status {
	out := make([]Status, 0, len(k.tools))
	for _, tool := range k.tools {
		st := Status{Tool: tool}
		if _, err := k.runner.LookPath(tool.Binary); err == nil {
			st.Installed = true
			st.Version = k.probeVersion(ctx, tool)
		}
		out = append(out, st)
	}
	return out
}

// probeVersion reads the first line of the tool's version output.
// A probe failure leaves the version empty; the tool is still installed.
func (k *Kit) probeVersion(ctx context.Context, tool Tool) string {
	if len(tool.VersionArgs) == 0 {
		return ""
	}
	out, err := k.runner.Run(ctx, tool.Binary, tool.VersionArgs...)
	if err != nil {
		return ""
	}
	line := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0]
	return line
}

// Install runs the install command for the named tool. Installing an
// already-present tool is allowed (upgrades are the installer's business).
func (k *Kit) Install(ctx context.Context, name string) (string, error) {
	for _, tool := range k.tools {
		if tool.Name != name {
			continue
		}
		if len(tool.InstallCmd) == 0 {
			return "", fmt.Errorf("no install command for %s", name)
		}
		out, err := k.runner.RunCombined(ctx, tool.InstallCmd[0], tool.InstallCmd[1:]...)
		if err != nil {
			return string(out), fmt.Errorf("install %s: %w", name, err)
		}
		return string(out), nil
	}
	return "", fmt.Errorf("unknown tool: %s", name)
}
