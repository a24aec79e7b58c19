package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
	// OpRename indicates a file was renamed away from this path.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a change to one entry file.
type FileEvent struct {
	// Path is relative to the watched root, slash separated.
	Path string

	Operation Operation

	// Timestamp is when the event was last seen.
	Timestamp time.Time
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 200ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 100
	EventBufferSize int

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 100,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// EntryPath splits a relative path of the form <collection>/<id>.json.
// Hidden segments, other extensions and files directly under the root or
// nested deeper are rejected.
func EntryPath(rel string) (collection, id string, ok bool) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return "", "", false
	}
	collection, name := parts[0], parts[1]
	if collection == "" || strings.HasPrefix(collection, ".") || strings.HasPrefix(name, ".") {
		return "", "", false
	}
	if filepath.Ext(name) != ".json" {
		return "", "", false
	}
	id = strings.TrimSuffix(name, ".json")
	if id == "" {
		return "", "", false
	}
	return collection, id, true
}

// isCollectionDir reports whether rel names a directory that may hold entries.
func isCollectionDir(rel string) bool {
	rel = filepath.ToSlash(rel)
	return rel != "." && rel != "" && !strings.Contains(rel, "/") && !strings.HasPrefix(rel, ".")
}
