// Package logging configures slog for meilihook.
//
// By default logs are JSON on stderr. With --debug, or when logging.file is
// set, they are also written to a size-rotated file under ~/.meilihook/logs,
// which `meilihook logs` can tail and filter.
package logging
