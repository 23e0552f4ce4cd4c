// Package deploy runs the deployment pipeline: ordered, individually
// skippable steps against the command gateway, with failure
// short-circuiting and per-step structured logs.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kverlaine/opsdeck/internal/clock"
	"github.com/kverlaine/opsdeck/internal/gateway"
)

// StepName names one pipeline step.
type StepName string

// Pipeline steps in fixed execution order.
const (
	StepPullCode  StepName = "pull_code"
	StepStopOld   StepName = "stop_old"
	StepDeployNew StepName = "deploy_new"
)

// StepOrder is the fixed execution order.
var StepOrder = []StepName{StepPullCode, StepStopOld, StepDeployNew}

// StepStatus is the lifecycle state of one step within a run.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusRunning StepStatus = "running"
	StatusSuccess StepStatus = "success"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// Mode selects which steps a run force-skips.
type Mode string

const (
	// ModePullAndStart honors all three steps per profile policy.
	ModePullAndStart Mode = "pull-and-start"
	// ModeStartOnly force-skips pull_code and stop_old and starts the
	// existing container/service directly.
	ModeStartOnly Mode = "start-only"
)

// Step is one step's live status within a run.
type Step struct {
	Name    StepName   `json:"name"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message"`
}

// StepResult is one append-only log entry per executed or skipped step.
type StepResult struct {
	Step      StepName `json:"step"`
	OK        bool     `json:"ok"`
	Skipped   bool     `json:"skipped"`
	Commands  []string `json:"commands,omitempty"`
	Output    string   `json:"output,omitempty"`
	Error     string   `json:"error,omitempty"`
	ElapsedMs int64    `json:"elapsed_ms"`
}

// State is the full pipeline state for one run. It is replaced, not
// mutated in place from outside the runner, on each new run.
type State struct {
	RunID     string       `json:"run_id"`
	Profile   string       `json:"profile"`
	Branch    string       `json:"branch,omitempty"`
	Mode      Mode         `json:"mode"`
	Running   bool         `json:"running"`
	LastRunAt time.Time    `json:"last_run_at"`
	LastError string       `json:"last_error,omitempty"`
	Summary   string       `json:"summary"`
	Steps     []Step       `json:"steps"`
	Logs      []StepResult `json:"logs"`
}

// StepIndex returns the position of name in Steps, or -1.
func (s *State) StepIndex(name StepName) int {
	for i := range s.Steps {
		if s.Steps[i].Name == name {
			return i
		}
	}
	return -1
}

// snapshot deep-copies the state so progress observers never alias the
// runner's working copy.
func (s *State) snapshot() State {
	out := *s
	out.Steps = append([]Step(nil), s.Steps...)
	out.Logs = append([]StepResult(nil), s.Logs...)
	return out
}

// stepOutput is the payload the deploy backend commands return.
type stepOutput struct {
	Commands []string `json:"commands"`
	Output   string   `json:"output"`
}

// Errors surfaced to callers before any pipeline state changes.
var (
	ErrRunInProgress = errors.New("a deployment is already running")
	ErrBranchMissing = errors.New("branch selection is required when git integration is enabled")
)

// ProgressFunc observes state after every step transition. The runner
// calls it once before any step executes and once after each step
// resolves; it never batches updates for the whole run.
type ProgressFunc func(State)

// Runner orchestrates pipeline runs. At most one run may be active per
// Runner.
type Runner struct {
	gw     gateway.Gateway
	clk    clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewRunner creates a Runner. If logger is nil, slog.Default() is used.
func NewRunner(gw gateway.Gateway, clk clock.Clock, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{gw: gw, clk: clk, logger: logger}
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Run executes the pipeline for profile on the already-resolved branch.
// Branch discovery is the caller's job (see Branches); Run only validates
// that a branch is present when the policy requires one.
func (r *Runner) Run(ctx context.Context, profile Profile, branch string, mode Mode, onProgress ProgressFunc) (State, error) {
	// Validation failures surface before any backend call or state change.
	if mode == ModePullAndStart && profile.GitEnabled && branch == "" {
		return State{}, ErrBranchMissing
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return State{}, ErrRunInProgress
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	state := State{
		RunID:   uuid.NewString(),
		Profile: profile.Name,
		Branch:  branch,
		Mode:    mode,
		Running: true,
	}
	for _, name := range StepOrder {
		state.Steps = append(state.Steps, Step{Name: name, Status: StatusPending})
	}

	report := func() {
		if onProgress != nil {
			onProgress(state.snapshot())
		}
	}

	r.logger.Info("pipeline run starting",
		"run_id", state.RunID, "profile", profile.Name, "branch", branch, "mode", mode)

	// Show the full step list before anything executes.
	report()

	failed := false
	for i, name := range StepOrder {
		if skip, reason := r.shouldSkip(name, profile, mode); skip {
			state.Steps[i].Status = StatusSkipped
			state.Steps[i].Message = reason
			state.Logs = append(state.Logs, StepResult{Step: name, OK: true, Skipped: true})
			report()
			continue
		}

		state.Steps[i].Status = StatusRunning
		state.Steps[i].Message = ""
		report()

		res := r.gw.Invoke(ctx, commandForStep(name), stepArgs{
			Profile: profile.Name,
			Branch:  branch,
			Rebuild: mode == ModePullAndStart,
		})

		entry := StepResult{Step: name, ElapsedMs: res.ElapsedMs}
		var out stepOutput
		if decodeErr := gateway.Decode(res, &out); decodeErr == nil && res.OK {
			entry.OK = true
			entry.Commands = out.Commands
			entry.Output = out.Output
			state.Steps[i].Status = StatusSuccess
		} else {
			entry.Error = res.Error
			if res.Error == "" && decodeErr != nil {
				entry.Error = decodeErr.Error()
			}
			state.Steps[i].Status = StatusFailed
			state.Steps[i].Message = entry.Error
			state.LastError = fmt.Sprintf("%s: %s", name, entry.Error)
			failed = true
		}
		state.Logs = append(state.Logs, entry)
		report()

		if failed {
			// No step after a failure is attempted. Rollback, if any,
			// is the backend's own responsibility for that step.
			break
		}
	}

	state.Running = false
	state.LastRunAt = r.clk.Now()
	state.Summary = r.summarize(&state, failed)
	report()

	r.logger.Info("pipeline run finished",
		"run_id", state.RunID, "summary", state.Summary, "failed", failed)

	return state, nil
}

// shouldSkip applies workflow-mode force-skips first, then profile policy.
func (r *Runner) shouldSkip(name StepName, profile Profile, mode Mode) (bool, string) {
	if mode == ModeStartOnly && (name == StepPullCode || name == StepStopOld) {
		return true, "skipped in start-only mode"
	}
	switch name {
	case StepPullCode:
		if !profile.GitEnabled {
			return true, "git integration disabled for profile"
		}
	case StepStopOld:
		if profile.SkipStop {
			return true, "stop disabled by profile policy"
		}
	}
	return false, ""
}

// summarize builds the one-line human-readable outcome.
func (r *Runner) summarize(state *State, failed bool) string {
	if failed {
		return fmt.Sprintf("deploy of %s failed: %s", state.Profile, state.LastError)
	}
	executed, skipped := 0, 0
	for _, s := range state.Steps {
		switch s.Status {
		case StatusSuccess:
			executed++
		case StatusSkipped:
			skipped++
		}
	}
	if state.Branch != "" {
		return fmt.Sprintf("deployed %s@%s (%d steps, %d skipped)", state.Profile, state.Branch, executed, skipped)
	}
	return fmt.Sprintf("deployed %s (%d steps, %d skipped)", state.Profile, executed, skipped)
}

// stepArgs are the arguments every deploy backend command receives.
type stepArgs struct {
	Profile string `json:"profile"`
	Branch  string `json:"branch,omitempty"`
	Rebuild bool   `json:"rebuild"`
}

// commandForStep maps a step to its backend command.
func commandForStep(name StepName) string {
	switch name {
	case StepPullCode:
		return "deploy.pull"
	case StepStopOld:
		return "deploy.stop"
	case StepDeployNew:
		return "deploy.start"
	default:
		return string(name)
	}
}

// Branches resolves the selectable branch list for a profile. The caller
// requires a non-empty selection before invoking Run when git integration
// is enabled.
func Branches(ctx context.Context, gw gateway.Gateway, profileName string) ([]string, error) {
	res := gw.Invoke(ctx, "deploy.branches", stepArgs{Profile: profileName})
	var branches []string
	if err := gateway.Decode(res, &branches); err != nil {
		return nil, err
	}
	return branches, nil
}
