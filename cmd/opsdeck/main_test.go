package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kverlaine/opsdeck/internal/deploy"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		path string
		root string
		want string
	}{
		{".opsdeck/settings.json", "/srv/app", "/srv/app/.opsdeck/settings.json"},
		{"/var/run/opsdeck.sock", "/srv/app", "/var/run/opsdeck.sock"},
		{"", "/srv/app", ""},
	}

	for _, tt := range tests {
		if got := resolvePath(tt.path, tt.root); got != tt.want {
			t.Errorf("resolvePath(%q, %q) = %q, want %q", tt.path, tt.root, got, tt.want)
		}
	}
}

func TestStepPrinter_PrintsEachTransitionOnce(t *testing.T) {
	var buf bytes.Buffer
	p := &stepPrinter{w: &buf, seen: make(map[deploy.StepName]deploy.StepStatus)}

	running := deploy.State{Steps: []deploy.Step{
		{Name: deploy.StepPullCode, Status: deploy.StatusRunning},
		{Name: deploy.StepStopOld, Status: deploy.StatusPending},
		{Name: deploy.StepDeployNew, Status: deploy.StatusPending},
	}}
	p.report(running)
	p.report(running) // duplicate snapshot must not re-print

	done := deploy.State{Steps: []deploy.Step{
		{Name: deploy.StepPullCode, Status: deploy.StatusSuccess},
		{Name: deploy.StepStopOld, Status: deploy.StatusSkipped, Message: "stop disabled"},
		{Name: deploy.StepDeployNew, Status: deploy.StatusFailed, Message: "compose up failed"},
	}}
	p.report(done)

	out := buf.String()
	if got := strings.Count(out, "running"); got != 1 {
		t.Errorf("running printed %d times, want 1:\n%s", got, out)
	}
	for _, want := range []string{"success", "stop disabled", "compose up failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "pending") {
		t.Errorf("pending steps must not be printed:\n%s", out)
	}
}
