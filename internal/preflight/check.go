package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes the paths a meilihook process will use.
type Target struct {
	// DataDir holds the local index and the telemetry database.
	DataDir string
	// SocketPath is the daemon's Unix socket.
	SocketPath string
	// ContentRoot is the watched directory. Empty skips the watcher checks.
	ContentRoot string
}

// Checker performs preflight validation checks.
type Checker struct {
	minDiskBytes uint64
}

// Option configures a Checker.
type Option func(*Checker)

// WithMinDiskSpace overrides MinDiskSpaceBytes.
func WithMinDiskSpace(bytes uint64) Option {
	return func(c *Checker) {
		c.minDiskBytes = bytes
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{minDiskBytes: MinDiskSpaceBytes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check that applies to target.
func (c *Checker) RunAll(_ context.Context, target Target) []CheckResult {
	var results []CheckResult

	if target.DataDir != "" {
		results = append(results, c.CheckWritePermissions(target.DataDir))
		results = append(results, c.CheckDiskSpace(target.DataDir))
	}
	if target.SocketPath != "" {
		results = append(results, c.CheckSocketPath(target.SocketPath))
	}
	if target.ContentRoot != "" {
		results = append(results, c.CheckContentRoot(target.ContentRoot))
		results = append(results, c.CheckFileDescriptors())
	}

	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckWritePermissions checks that files can be created under path. A
// missing path is checked at its nearest existing parent, where it would be
// created.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	result := CheckResult{
		Name:     "data_dir_writable",
		Required: true,
	}

	dir := existingAncestor(path)
	f, err := os.CreateTemp(dir, ".meilihook-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	result.Status = StatusPass
	result.Message = path
	return result
}

// CheckContentRoot checks that the watched directory exists.
func (c *Checker) CheckContentRoot(root string) CheckResult {
	result := CheckResult{
		Name:     "content_root",
		Required: true,
	}

	info, err := os.Stat(root)
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s: %v", root, err)
	case !info.IsDir():
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", root)
	default:
		result.Status = StatusPass
		result.Message = root
	}
	return result
}

func existingAncestor(path string) string {
	dir := filepath.Clean(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
