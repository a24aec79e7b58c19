package preflight

import "fmt"

// MaxSocketPathLen is the longest portable Unix socket path. sun_path is
// 104 bytes on macOS and 108 on Linux, both including the NUL.
const MaxSocketPathLen = 103

// CheckSocketPath fails when the daemon socket path cannot be bound.
func (c *Checker) CheckSocketPath(path string) CheckResult {
	result := CheckResult{
		Name:     "socket_path",
		Required: true,
	}

	if len(path) > MaxSocketPathLen {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%d bytes (maximum: %d)", len(path), MaxSocketPathLen)
		result.Details = "Set daemon.socket_path or MEILIHOOK_SOCKET to a shorter path"
		return result
	}
	result.Status = StatusPass
	result.Message = path
	return result
}
