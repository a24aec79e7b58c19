package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_LocalBackendWithoutDaemon(t *testing.T) {
	// Given: a sqlite backend and no daemon
	dir := isolateCLI(t)
	t.Setenv("MEILIHOOK_BACKEND", "sqlite")
	t.Setenv("MEILIHOOK_LOCAL_PATH", filepath.Join(dir, "entries.db"))

	// When: checking
	out, err := execute(t, dir, "", "check")

	// Then: config and index pass, and the missing daemon is a warning
	require.NoError(t, err)
	assert.Contains(t, out, "Config valid (backend: sqlite)")
	assert.Contains(t, out, "Local index open")
	assert.Contains(t, out, "Daemon not running")
}

func TestCheck_InvalidConfig(t *testing.T) {
	// Given: an unknown backend
	dir := isolateCLI(t)
	t.Setenv("MEILIHOOK_BACKEND", "elastic")

	// When: checking
	_, err := execute(t, dir, "", "check")

	// Then: validation fails
	assert.Error(t, err)
}

func TestSearch_MeilisearchHasNoLocalSearch(t *testing.T) {
	// Given: the meilisearch backend
	dir := isolateCLI(t)
	t.Setenv("MEILIHOOK_BACKEND", "meilisearch")
	t.Setenv("MEILIHOOK_HOST", "http://127.0.0.1:7700")

	// When: searching
	_, err := execute(t, dir, "", "search", "article", "hello")

	// Then: the user is pointed at a local backend
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support local search")
}

func TestCheck_PreflightRejectsLongSocketPath(t *testing.T) {
	// Given: a socket path longer than sun_path allows
	dir := isolateCLI(t)
	t.Setenv("MEILIHOOK_SOCKET", "/tmp/"+strings.Repeat("s", 120)+".sock")

	// When: checking
	out, err := execute(t, dir, "", "check")

	// Then: the socket check fails the command
	require.Error(t, err)
	assert.Contains(t, out, "socket_path")
	assert.Contains(t, err.Error(), "preflight failed")
}
