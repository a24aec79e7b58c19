package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{
			name:     "required pass is not critical",
			result:   CheckResult{Status: StatusPass, Required: true},
			expected: false,
		},
		{
			name:     "required fail is critical",
			result:   CheckResult{Status: StatusFail, Required: true},
			expected: true,
		},
		{
			name:     "optional fail is not critical",
			result:   CheckResult{Status: StatusFail, Required: false},
			expected: false,
		},
		{
			name:     "required warn is not critical",
			result:   CheckResult{Status: StatusWarn, Required: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_New(t *testing.T) {
	// Given: default options
	checker := New()

	// Then: the default disk minimum applies
	assert.Equal(t, uint64(MinDiskSpaceBytes), checker.minDiskBytes)
}

func TestChecker_WithMinDiskSpace(t *testing.T) {
	checker := New(WithMinDiskSpace(42))

	assert.Equal(t, uint64(42), checker.minDiskBytes)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected bool
	}{
		{
			name:     "no results",
			results:  []CheckResult{},
			expected: false,
		},
		{
			name: "all pass",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusPass, Required: true},
			},
			expected: false,
		},
		{
			name: "warning only",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusWarn, Required: false},
			},
			expected: false,
		},
		{
			name: "optional failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: false},
			},
			expected: false,
		},
		{
			name: "required failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: true},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_CheckWritePermissions_Writable(t *testing.T) {
	// Given: a writable directory
	tmpDir := t.TempDir()

	// When: checking write permissions
	result := New().CheckWritePermissions(tmpDir)

	// Then: passes and leaves nothing behind
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "data_dir_writable", result.Name)
	assert.True(t, result.Required)
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChecker_CheckWritePermissions_MissingDirUsesParent(t *testing.T) {
	// Given: a data dir that does not exist yet
	missing := filepath.Join(t.TempDir(), "a", "b")

	// When: checking write permissions
	result := New().CheckWritePermissions(missing)

	// Then: the existing parent is writable, so it passes without creating the dir
	assert.Equal(t, StatusPass, result.Status)
	assert.NoDirExists(t, missing)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	// Given: a read-only directory (skip on CI/root)
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer func() { _ = os.Chmod(readOnlyDir, 0o755) }()

	// When: checking write permissions
	result := New().CheckWritePermissions(readOnlyDir)

	// Then: fails
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	// A zero minimum always passes.
	pass := New(WithMinDiskSpace(0)).CheckDiskSpace(dir)
	assert.Equal(t, StatusPass, pass.Status)
	assert.Contains(t, pass.Message, "free")

	// No filesystem has this much room.
	fail := New(WithMinDiskSpace(1 << 62)).CheckDiskSpace(dir)
	assert.Equal(t, StatusFail, fail.Status)
	assert.True(t, fail.IsCritical())
}

func TestChecker_CheckSocketPath(t *testing.T) {
	checker := New()

	ok := checker.CheckSocketPath("/tmp/meilihook/daemon.sock")
	assert.Equal(t, StatusPass, ok.Status)

	long := checker.CheckSocketPath("/" + strings.Repeat("x", MaxSocketPathLen))
	assert.Equal(t, StatusFail, long.Status)
	assert.NotEmpty(t, long.Details)
}

func TestChecker_CheckContentRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "article.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o600))

	checker := New()
	assert.Equal(t, StatusPass, checker.CheckContentRoot(dir).Status)
	assert.Equal(t, StatusFail, checker.CheckContentRoot(file).Status)
	assert.Equal(t, StatusFail, checker.CheckContentRoot(filepath.Join(dir, "missing")).Status)
}

func TestChecker_CheckFileDescriptors_NeverCritical(t *testing.T) {
	result := New().CheckFileDescriptors()

	assert.Equal(t, "file_descriptors", result.Name)
	assert.False(t, result.IsCritical())
}

func TestChecker_RunAll_SelectsChecksByTarget(t *testing.T) {
	// Given: a target without a content root
	checker := New(WithMinDiskSpace(0))
	target := Target{DataDir: t.TempDir(), SocketPath: "/tmp/mh.sock"}

	// When: running all checks
	results := checker.RunAll(context.Background(), target)

	// Then: the watcher checks are skipped
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	assert.True(t, names["data_dir_writable"])
	assert.True(t, names["disk_space"])
	assert.True(t, names["socket_path"])
	assert.False(t, names["content_root"])
	assert.False(t, names["file_descriptors"])
	assert.False(t, checker.HasCriticalFailures(results))

	// When: a content root is added
	target.ContentRoot = t.TempDir()
	results = checker.RunAll(context.Background(), target)

	// Then: the watcher checks run too
	assert.Len(t, results, 5)
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{
			name: "all pass",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusPass},
			},
			expected: "ready",
		},
		{
			name: "with warnings",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusWarn},
			},
			expected: "ready_with_warnings",
		},
		{
			name: "with critical failure",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusFail, Required: true},
			},
			expected: "failed",
		},
		{
			name: "with optional failure",
			results: []CheckResult{
				{Status: StatusPass},
				{Status: StatusFail, Required: false},
			},
			expected: "ready_with_warnings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}
