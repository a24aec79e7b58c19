// Package preflight checks that the host can run meilihook before the daemon
// or watcher starts.
//
// The checks cover:
//   - A writable data directory for the local index and telemetry
//   - Free disk space under the data directory
//   - The Unix socket path length limit
//   - The content root and file descriptor limit when watching
//
// Use the Checker type to run them:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, SocketPath: sock})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
