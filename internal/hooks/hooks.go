// Package hooks implements the lifecycle hooks a content host calls after a
// record is created, updated or deleted.
//
// Every hook forwards to a connector and swallows the connector's error: the
// failure is logged and counted, never returned. A host write must succeed
// regardless of search index consistency.
package hooks

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Aman-CERP/meilihook/internal/connector"
	"github.com/Aman-CERP/meilihook/internal/entry"
	"github.com/Aman-CERP/meilihook/internal/errors"
)

// DefaultPublishedField is the field that separates drafts from public records.
const DefaultPublishedField = "published_at"

// Hook outcomes reported to a Recorder.
const (
	OutcomeIndexed            = "indexed"
	OutcomeSkippedUnpublished = "skipped_unpublished"
	OutcomeDeleted            = "deleted"
	OutcomeFailed             = "failed"
)

// Operation names used in log records.
const (
	OpAfterCreate = "afterCreate"
	OpAfterUpdate = "afterUpdate"
	OpAfterDelete = "afterDelete"
)

// Recorder receives one outcome per hook call.
type Recorder interface {
	Record(collection, outcome string)
}

// Listener holds the hooks for one connector.
type Listener struct {
	conn           connector.Connector
	logger         *slog.Logger
	recorder       Recorder
	publishedField string
	collections    map[string]struct{}
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger used for hook failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Listener) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(h *Listener) { h.recorder = r }
}

// WithPublishedField overrides the published state field name.
func WithPublishedField(field string) Option {
	return func(h *Listener) {
		if field != "" {
			h.publishedField = field
		}
	}
}

// WithCollections restricts the hooks to the named collections.
// Calls for other collections are ignored. An empty list allows all.
func WithCollections(names ...string) Option {
	return func(h *Listener) {
		if len(names) == 0 {
			h.collections = nil
			return
		}
		h.collections = make(map[string]struct{}, len(names))
		for _, n := range names {
			h.collections[n] = struct{}{}
		}
	}
}

// NewListener creates hooks that forward to conn.
func NewListener(conn connector.Connector, opts ...Option) *Listener {
	h := &Listener{
		conn:           conn,
		logger:         slog.Default(),
		publishedField: DefaultPublishedField,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AfterCreate indexes a newly created record unless it is an unpublished draft.
func (h *Listener) AfterCreate(ctx context.Context, collection string, e entry.Entry) {
	h.addEntry(ctx, OpAfterCreate, collection, e)
}

// AfterUpdate re-indexes an updated record unless it is an unpublished draft.
func (h *Listener) AfterUpdate(ctx context.Context, collection string, e entry.Entry) {
	h.addEntry(ctx, OpAfterUpdate, collection, e)
}

// AfterDelete removes one or many records from the index.
// Ids are forwarded in input order; records without an id are left out.
func (h *Listener) AfterDelete(ctx context.Context, collection string, records entry.Records) {
	if !h.handles(collection) {
		return
	}

	ids, dropped := records.IDs()
	if dropped > 0 {
		h.logger.Warn("hook_records_without_id",
			slog.String("collection", collection),
			slog.String("operation", OpAfterDelete),
			slog.Int("dropped", dropped))
	}
	if len(ids) == 0 {
		return
	}

	if err := h.conn.DeleteEntries(ctx, collection, ids); err != nil {
		h.fail(ctx, OpAfterDelete, collection, err, slog.Int("ids", len(ids)))
		return
	}
	h.record(collection, OutcomeDeleted)
}

func (h *Listener) addEntry(ctx context.Context, op, collection string, e entry.Entry) {
	if !h.handles(collection) {
		return
	}

	if !e.Publishable(h.publishedField) {
		h.logger.Debug("hook_skipped_unpublished",
			slog.String("collection", collection),
			slog.String("operation", op))
		h.record(collection, OutcomeSkippedUnpublished)
		return
	}

	if err := h.conn.AddOneEntry(ctx, collection, e); err != nil {
		id, _ := e.ID()
		h.fail(ctx, op, collection, err, slog.String("entry_id", id))
		return
	}
	h.record(collection, OutcomeIndexed)
}

func (h *Listener) fail(ctx context.Context, op, collection string, err error, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("collection", collection),
		slog.String("operation", op),
		slog.String("delivery_id", uuid.NewString()),
	}
	attrs = append(attrs, extra...)
	attrs = append(attrs, errors.LogAttrs(err)...)

	h.logger.LogAttrs(ctx, slog.LevelError, "hook_failed", attrs...)
	h.record(collection, OutcomeFailed)
}

func (h *Listener) handles(collection string) bool {
	if h.collections == nil {
		return true
	}
	_, ok := h.collections[collection]
	return ok
}

func (h *Listener) record(collection, outcome string) {
	if h.recorder != nil {
		h.recorder.Record(collection, outcome)
	}
}
