package deploy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes one deployable service.
type Profile struct {
	// Name identifies the profile in the UI and on the command line.
	Name string `yaml:"name" json:"name"`
	// Service is the compose service or container name to manage.
	Service string `yaml:"service" json:"service"`
	// WorkDir is the checkout directory git and compose commands run in.
	WorkDir string `yaml:"workdir" json:"workdir"`
	// ComposeFile, when set, routes lifecycle commands through docker
	// compose instead of plain docker.
	ComposeFile string `yaml:"compose_file,omitempty" json:"compose_file,omitempty"`
	// GitEnabled turns the pull_code step on. Profiles without a git
	// checkout (prebuilt images) leave it off.
	GitEnabled bool `yaml:"git" json:"git"`
	// Remote is the git remote branches are listed from and pulled
	// against. Defaults to origin.
	Remote string `yaml:"remote,omitempty" json:"remote,omitempty"`
	// SkipStop disables the stop_old step for services that handle
	// their own graceful replacement.
	SkipStop bool `yaml:"skip_stop,omitempty" json:"skip_stop,omitempty"`
}

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads and validates the profiles file. A missing file is
// not an error; it yields an empty set so the deploy view can explain
// how to create one.
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	seen := make(map[string]bool, len(file.Profiles))
	for i := range file.Profiles {
		p := &file.Profiles[i]
		if p.Name == "" {
			return nil, fmt.Errorf("profile %d: name is required", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate profile name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Service == "" {
			return nil, fmt.Errorf("profile %q: service is required", p.Name)
		}
		if p.GitEnabled && p.WorkDir == "" {
			return nil, fmt.Errorf("profile %q: workdir is required when git is enabled", p.Name)
		}
		if p.Remote == "" {
			p.Remote = "origin"
		}
	}
	return file.Profiles, nil
}

// FindProfile returns the named profile from the set.
func FindProfile(profiles []Profile, name string) (Profile, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown profile: %s", name)
}
