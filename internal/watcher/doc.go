// Package watcher turns a directory of JSON records into hook calls.
//
// The directory is laid out one folder per collection:
//
//	<root>/<collection>/<id>.json
//
// Changes are picked up with fsnotify, falling back to polling where fsnotify
// is unavailable (network mounts, some container volumes). Events are
// debounced per path so an editor's write-rename-chmod burst yields a single
// hook call, then handed to a Dispatcher in batches.
//
// Usage:
//
//	w, err := watcher.NewContentWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	d := watcher.NewDispatcher(root, listener, logger)
//	go d.Run(ctx, w.Events())
//	return w.Start(ctx, root)
package watcher
