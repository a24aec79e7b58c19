package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the lowest open-file limit the watcher runs well with.
// fsnotify holds one descriptor per watched directory.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks the open-file limit. A low limit is a warning
// because the watcher falls back to polling when it runs out.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name: "file_descriptors",
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}
	result.Status = StatusPass
	return result
}
