package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/meilihook/internal/entry"
)

// Hooks is the set of lifecycle hooks a Dispatcher drives.
type Hooks interface {
	AfterCreate(ctx context.Context, collection string, e entry.Entry)
	AfterUpdate(ctx context.Context, collection string, e entry.Entry)
	AfterDelete(ctx context.Context, collection string, records entry.Records)
}

// Dispatcher maps entry file events onto hook calls.
type Dispatcher struct {
	root   string
	hooks  Hooks
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher for files under root.
func NewDispatcher(root string, hooks Hooks, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{root: root, hooks: hooks, logger: logger}
}

// Run dispatches batches until the channel closes or ctx ends.
func (d *Dispatcher) Run(ctx context.Context, batches <-chan []FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			d.Dispatch(ctx, batch)
		}
	}
}

// Dispatch handles one batch in order.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []FileEvent) {
	for _, ev := range batch {
		if ctx.Err() != nil {
			return
		}
		d.dispatchOne(ctx, ev)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, ev FileEvent) {
	collection, id, ok := EntryPath(ev.Path)
	if !ok {
		return
	}

	switch ev.Operation {
	case OpDelete, OpRename:
		d.hooks.AfterDelete(ctx, collection, entry.Single(entry.Entry{entry.IDField: id}))

	case OpCreate, OpModify:
		e, err := d.readEntry(ev.Path, id)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				d.logger.Debug("entry_file_vanished", slog.String("path", ev.Path))
				return
			}
			d.logger.Warn("entry_file_skipped",
				slog.String("path", ev.Path),
				slog.String("collection", collection),
				slog.String("error", err.Error()))
			return
		}
		if ev.Operation == OpCreate {
			d.hooks.AfterCreate(ctx, collection, e)
		} else {
			d.hooks.AfterUpdate(ctx, collection, e)
		}
	}
}

// readEntry loads and decodes an entry file. The file name is the record id:
// a missing id is filled in from it and a conflicting one is replaced, so the
// delete for the same file removes the same document.
func (d *Dispatcher) readEntry(rel, id string) (entry.Entry, error) {
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	e, err := entry.Decode(data)
	if err != nil {
		return nil, err
	}
	if body, ok := e.ID(); ok && body != id {
		d.logger.Warn("entry_id_mismatch",
			slog.String("path", rel),
			slog.String("file_id", id),
			slog.String("body_id", body))
	}
	e[entry.IDField] = id
	return e, nil
}
