package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Info is the connection record the agent writes to agent.json so the
// console and CLI commands can find it from any directory inside the
// project.
type Info struct {
	SocketPath string    `json:"socket_path"`
	PIDPath    string    `json:"pid_path"`
	LogPath    string    `json:"log_path"`
	StartTime  time.Time `json:"start_time"`
	PID        int       `json:"pid"`
}

// agentInfoFile is the discovery file name under the project dot dir.
const agentInfoFile = "agent.json"

// projectMarkers are directories that mark a project root.
var projectMarkers = []string{".git", ".opsdeck"}

// FindProjectRoot walks up from startDir looking for a project marker.
// It returns the directory containing the marker, or startDir (made
// absolute) if none is found.
func FindProjectRoot(startDir string) string {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "."
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return startDir
	}

	dir := absDir
	for {
		for _, marker := range projectMarkers {
			if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && info.IsDir() {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir
		}
		dir = parent
	}
}

// InfoPath returns the agent.json path under the project's dot dir.
func InfoPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".opsdeck", agentInfoFile)
}

// FindInfo locates agent.json for the project containing startDir.
func FindInfo(startDir string) (*Info, error) {
	infoPath := InfoPath(FindProjectRoot(startDir))
	info, err := ReadInfo(infoPath)
	if err != nil {
		return nil, fmt.Errorf("agent info not found (checked %s)", infoPath)
	}
	return info, nil
}

// WriteInfo writes the connection record.
func WriteInfo(path string, info *Info) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent info: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write agent info: %w", err)
	}
	return nil
}

// ReadInfo reads a connection record.
func ReadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent info: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal agent info: %w", err)
	}
	return &info, nil
}

// RemoveInfo deletes the connection record if present.
func RemoveInfo(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove agent info: %w", err)
	}
	return nil
}
