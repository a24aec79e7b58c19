package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateCLI points every path the CLI touches at temp directories and
// selects a bleve index with telemetry off. It returns the project dir.
func isolateCLI(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	// Unix socket paths are length-limited; keep this one short.
	sockDir, err := os.MkdirTemp("", "mh")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })
	t.Setenv("MEILIHOOK_SOCKET", filepath.Join(sockDir, "d.sock"))

	t.Setenv("MEILIHOOK_BACKEND", "bleve")
	t.Setenv("MEILIHOOK_LOCAL_PATH", filepath.Join(home, "index.bleve"))
	t.Setenv("MEILIHOOK_TELEMETRY_ENABLED", "false")

	for _, k := range []string{
		"MEILIHOOK_HOST", "MEILIHOOK_API_KEY", "MEILIHOOK_INDEX_PREFIX",
		"MEILIHOOK_PUBLISHED_FIELD", "MEILIHOOK_COLLECTIONS", "MEILIHOOK_WATCH_ROOT",
	} {
		t.Setenv(k, "")
	}

	return t.TempDir()
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, dir string, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--dir", dir))

	err := cmd.Execute()
	return buf.String(), err
}
