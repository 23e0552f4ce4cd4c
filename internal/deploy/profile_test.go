package deploy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProfiles_ParsesAndDefaults(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  - name: web
    service: web
    workdir: /srv/web
    compose_file: /srv/web/docker-compose.yml
    git: true
  - name: cache
    service: redis
    remote: upstream
`)
	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "origin", profiles[0].Remote, "remote should default to origin")
	assert.Equal(t, "upstream", profiles[1].Remote)
	assert.True(t, profiles[0].GitEnabled)
	assert.False(t, profiles[1].GitEnabled)
	assert.Equal(t, "/srv/web/docker-compose.yml", profiles[0].ComposeFile)
}

func TestLoadProfiles_MissingFileIsEmpty(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err, "a missing profiles file is not an error")
	assert.Empty(t, profiles)
}

func TestLoadProfiles_Validation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", "profiles:\n  - service: web\n"},
		{"missing service", "profiles:\n  - name: web\n"},
		{"git without workdir", "profiles:\n  - name: web\n    service: web\n    git: true\n"},
		{"duplicate names", "profiles:\n  - name: web\n    service: a\n  - name: web\n    service: b\n"},
		{"malformed yaml", "profiles: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadProfiles(writeProfiles(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestFindProfile(t *testing.T) {
	profiles := []Profile{{Name: "web", Service: "web"}}

	found, err := FindProfile(profiles, "web")
	require.NoError(t, err)
	assert.Equal(t, "web", found.Name)

	_, err = FindProfile(profiles, "api")
	assert.Error(t, err, "unknown profile must error")
}
