package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	osexec "github.com/kverlaine/opsdeck/internal/exec"
	"github.com/kverlaine/opsdeck/internal/gateway"
)

// Backend implements the deploy.* gateway commands by shelling out to
// git and docker on the host.
type Backend struct {
	runner   osexec.CommandRunner
	profiles []Profile
}

// NewBackend creates a Backend over the loaded profile set.
func NewBackend(runner osexec.CommandRunner, profiles []Profile) *Backend {
	return &Backend{runner: runner, profiles: profiles}
}

// Profiles returns the loaded profile set.
func (b *Backend) Profiles() []Profile {
	return b.profiles
}

// RegisterHandlers binds the deploy commands onto the local gateway.
func (b *Backend) RegisterHandlers(g *gateway.Local) {
	g.Register("deploy.branches", b.wrap(b.branches))
	g.Register("deploy.pull", b.wrap(b.pull))
	g.Register("deploy.stop", b.wrap(b.stop))
	g.Register("deploy.start", b.wrap(b.start))
}

// wrap decodes the common args envelope and resolves the profile before
// dispatching to the step implementation.
func (b *Backend) wrap(fn func(context.Context, Profile, stepArgs) (any, error)) gateway.Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args stepArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
		if args.Profile == "" {
			return nil, fmt.Errorf("profile is required")
		}
		profile, err := FindProfile(b.profiles, args.Profile)
		if err != nil {
			return nil, err
		}
		return fn(ctx, profile, args)
	}
}

// branches lists remote branches for the profile's checkout, with the
// remote prefix stripped.
func (b *Backend) branches(ctx context.Context, p Profile, _ stepArgs) (any, error) {
	if !p.GitEnabled {
		return []string{}, nil
	}
	if _, err := b.runner.Run(ctx, "git", "-C", p.WorkDir, "fetch", "--prune", p.Remote); err != nil {
		return nil, fmt.Errorf("git fetch: %w", err)
	}
	out, err := b.runner.Run(ctx, "git", "-C", p.WorkDir,
		"for-each-ref", "--format=%(refname:short)", "refs/remotes/"+p.Remote)
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref: %w", err)
	}

	prefix := p.Remote + "/"
	var branches []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		name := strings.TrimPrefix(strings.TrimSpace(line), prefix)
		if name == "" || name == "HEAD" {
			continue
		}
		branches = append(branches, name)
	}
	return branches, nil
}

// pull checks out and fast-forwards the requested branch.
func (b *Backend) pull(ctx context.Context, p Profile, args stepArgs) (any, error) {
	if args.Branch == "" {
		return nil, fmt.Errorf("branch is required")
	}
	cmds := [][]string{
		{"git", "-C", p.WorkDir, "fetch", "--prune", p.Remote},
		{"git", "-C", p.WorkDir, "checkout", args.Branch},
		{"git", "-C", p.WorkDir, "pull", "--ff-only", p.Remote, args.Branch},
	}
	return b.runAll(ctx, cmds)
}

// stop halts the currently running service.
func (b *Backend) stop(ctx context.Context, p Profile, _ stepArgs) (any, error) {
	var cmd []string
	if p.ComposeFile != "" {
		cmd = []string{"docker", "compose", "-f", p.ComposeFile, "stop", p.Service}
	} else {
		cmd = []string{"docker", "stop", p.Service}
	}
	return b.runAll(ctx, [][]string{cmd})
}

// start brings the service up. A rebuild (pull-and-start runs) rebuilds
// the image; otherwise the existing container is started as-is.
func (b *Backend) start(ctx context.Context, p Profile, args stepArgs) (any, error) {
	var cmd []string
	switch {
	case p.ComposeFile != "" && args.Rebuild:
		cmd = []string{"docker", "compose", "-f", p.ComposeFile, "up", "-d", "--build", p.Service}
	case p.ComposeFile != "":
		cmd = []string{"docker", "compose", "-f", p.ComposeFile, "start", p.Service}
	default:
		cmd = []string{"docker", "start", p.Service}
	}
	return b.runAll(ctx, [][]string{cmd})
}

// runAll executes the command sequence, stopping at the first failure.
// Output of every executed command is accumulated so failures still show
// what happened.
func (b *Backend) runAll(ctx context.Context, cmds [][]string) (any, error) {
	result := stepOutput{}
	var output strings.Builder
	for _, cmd := range cmds {
		line := strings.Join(cmd, " ")
		result.Commands = append(result.Commands, line)
		out, err := b.runner.RunCombined(ctx, cmd[0], cmd[1:]...)
		output.Write(out)
		if err != nil {
			result.Output = output.String()
			return nil, fmt.Errorf("%s: %w", line, err)
		}
	}
	result.Output = output.String()
	return result, nil
}
