package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/meilihook/configs"
	"github.com/Aman-CERP/meilihook/internal/config"
)

func TestConfigInit_WritesUserTemplate(t *testing.T) {
	// Given: no user config
	dir := isolateCLI(t)

	// When: running config init
	out, err := execute(t, dir, "", "config", "init")

	// Then: the template is written to the XDG path
	require.NoError(t, err)
	assert.Contains(t, out, "Created configuration")
	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))
}

func TestConfigInit_KeepsExistingWithoutForce(t *testing.T) {
	// Given: an existing user config
	dir := isolateCLI(t)
	path := config.GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))

	// When: running config init without --force
	out, err := execute(t, dir, "", "config", "init")

	// Then: the file is untouched
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, _ := os.ReadFile(path)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestConfigInit_ForceBacksUpProjectFile(t *testing.T) {
	// Given: an existing project config
	dir := isolateCLI(t)
	path := filepath.Join(dir, config.ProjectFile)
	require.NoError(t, os.WriteFile(path, []byte("hooks:\n  published_field: live\n"), 0o600))

	// When: re-initialising with --force
	out, err := execute(t, dir, "", "config", "init", "--project", "--force")

	// Then: the template replaces it and one backup holds the old content
	require.NoError(t, err)
	assert.Contains(t, out, "Backup")
	data, _ := os.ReadFile(path)
	assert.Equal(t, configs.ProjectConfigTemplate, string(data))

	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, _ := os.ReadFile(backups[0])
	assert.Contains(t, string(old), "published_field: live")
}

func TestConfigRestore_NewestBackup(t *testing.T) {
	// Given: a project config that was overwritten with --force
	dir := isolateCLI(t)
	path := filepath.Join(dir, config.ProjectFile)
	require.NoError(t, os.WriteFile(path, []byte("hooks:\n  published_field: live\n"), 0o600))
	_, err := execute(t, dir, "", "config", "init", "--project", "--force")
	require.NoError(t, err)

	// When: restoring
	out, err := execute(t, dir, "", "config", "restore", "--project")

	// Then: the original content is back
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")
	data, _ := os.ReadFile(path)
	assert.Contains(t, string(data), "published_field: live")
}

func TestConfigShow_MasksAPIKey(t *testing.T) {
	// Given: an API key from the environment
	dir := isolateCLI(t)
	t.Setenv("MEILIHOOK_API_KEY", "masterKey-abcdef1234")

	// When: showing the merged config as JSON
	out, err := execute(t, dir, "", "config", "show", "--json")

	// Then: only the last four characters survive
	require.NoError(t, err)
	assert.NotContains(t, out, "masterKey")

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "********1234", cfg.Connector.APIKey)
	assert.Equal(t, "bleve", cfg.Connector.Backend)
}

func TestConfigShow_YAMLDefaults(t *testing.T) {
	// Given: an isolated environment
	dir := isolateCLI(t)

	// When: showing defaults
	out, err := execute(t, dir, "", "config", "show", "--source", "defaults")

	// Then: YAML with the default backend is printed
	require.NoError(t, err)
	assert.Contains(t, out, "# source: defaults")
	assert.Contains(t, out, "backend: meilisearch")
	assert.Contains(t, out, "published_field: published_at")
}

func TestConfigShow_UnknownSource(t *testing.T) {
	dir := isolateCLI(t)

	_, err := execute(t, dir, "", "config", "show", "--source", "user")

	assert.Error(t, err)
}

func TestConfigPath(t *testing.T) {
	// Given: an isolated environment
	dir := isolateCLI(t)

	// When: printing both paths
	userOut, err := execute(t, dir, "", "config", "path")
	require.NoError(t, err)
	projectOut, err := execute(t, dir, "", "config", "path", "--project")
	require.NoError(t, err)

	// Then: they point at the XDG file and the project file
	assert.Equal(t, config.GetUserConfigPath()+"\n", userOut)
	assert.Equal(t, filepath.Join(dir, config.ProjectFile)+"\n", projectOut)
}
