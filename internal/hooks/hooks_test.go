package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Aman-CERP/meilihook/internal/entry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type addCall struct {
	Collection string
	Entry      entry.Entry
}

type deleteCall struct {
	Collection string
	IDs        []string
}

// fakeConnector records calls and returns the configured errors.
type fakeConnector struct {
	mu        sync.Mutex
	adds      []addCall
	deletes   []deleteCall
	addErr    error
	deleteErr error
}

func (f *fakeConnector) AddOneEntry(_ context.Context, collection string, e entry.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, addCall{Collection: collection, Entry: e})
	return f.addErr
}

func (f *fakeConnector) DeleteEntries(_ context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deleteCall{Collection: collection, IDs: ids})
	return f.deleteErr
}

func (f *fakeConnector) Close() error { return nil }

type countingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *countingRecorder) Record(collection, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, collection+":"+outcome)
}

func newTestListener(conn *fakeConnector, opts ...Option) (*Listener, *bytes.Buffer, *countingRecorder) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := &countingRecorder{}
	opts = append([]Option{WithLogger(logger), WithRecorder(rec)}, opts...)
	return NewListener(conn, opts...), &buf, rec
}

func TestAfterCreate_PublishedFieldAbsent_AddsOnce(t *testing.T) {
	conn := &fakeConnector{}
	h, _, rec := newTestListener(conn)

	e := entry.Entry{"id": "1", "title": "hello"}
	h.AfterCreate(context.Background(), "article", e)

	require.Len(t, conn.adds, 1)
	assert.Equal(t, "article", conn.adds[0].Collection)
	assert.Equal(t, e, conn.adds[0].Entry)
	assert.Equal(t, []string{"article:indexed"}, rec.outcomes)
}

func TestAfterUpdate_PublishedFieldAbsent_AddsOnce(t *testing.T) {
	conn := &fakeConnector{}
	h, _, _ := newTestListener(conn)

	h.AfterUpdate(context.Background(), "article", entry.Entry{"id": "1"})

	assert.Len(t, conn.adds, 1)
}

func TestAddHooks_PublishedTruthy_Adds(t *testing.T) {
	conn := &fakeConnector{}
	h, _, _ := newTestListener(conn)

	h.AfterCreate(context.Background(), "article", entry.Entry{"id": "1", "published_at": "2024-01-01T00:00:00.000Z"})
	h.AfterUpdate(context.Background(), "article", entry.Entry{"id": "1", "published_at": "2024-01-02T00:00:00.000Z"})

	assert.Len(t, conn.adds, 2)
}

func TestAddHooks_PublishedFalsy_DoesNotAdd(t *testing.T) {
	falsy := []any{nil, false, "", json.Number("0")}

	for _, v := range falsy {
		conn := &fakeConnector{}
		h, _, rec := newTestListener(conn)

		h.AfterCreate(context.Background(), "article", entry.Entry{"id": "1", "published_at": v})
		h.AfterUpdate(context.Background(), "article", entry.Entry{"id": "1", "published_at": v})

		assert.Empty(t, conn.adds, "value %#v", v)
		assert.Equal(t, []string{"article:skipped_unpublished", "article:skipped_unpublished"}, rec.outcomes)
	}
}

func TestAddHooks_CustomPublishedField(t *testing.T) {
	conn := &fakeConnector{}
	h, _, _ := newTestListener(conn, WithPublishedField("publishedAt"))

	h.AfterCreate(context.Background(), "article", entry.Entry{"id": "1", "publishedAt": nil, "published_at": "x"})

	assert.Empty(t, conn.adds)
}

func TestAfterDelete_SingleRecord(t *testing.T) {
	conn := &fakeConnector{}
	h, _, rec := newTestListener(conn)

	h.AfterDelete(context.Background(), "article", entry.Single(entry.Entry{"id": json.Number("12")}))

	require.Len(t, conn.deletes, 1)
	assert.Equal(t, []string{"12"}, conn.deletes[0].IDs)
	assert.Equal(t, []string{"article:deleted"}, rec.outcomes)
}

func TestAfterDelete_BatchKeepsInputOrder(t *testing.T) {
	conn := &fakeConnector{}
	h, _, _ := newTestListener(conn)

	records, err := entry.DecodeRecords([]byte(`[{"id": 5}, {"id": 2}, {"id": 9}]`))
	require.NoError(t, err)

	h.AfterDelete(context.Background(), "article", records)

	require.Len(t, conn.deletes, 1)
	assert.Equal(t, []string{"5", "2", "9"}, conn.deletes[0].IDs)
}

func TestAfterDelete_NoIDs_SkipsConnector(t *testing.T) {
	conn := &fakeConnector{}
	h, logs, _ := newTestListener(conn)

	h.AfterDelete(context.Background(), "article", entry.Records{{"title": "x"}})

	assert.Empty(t, conn.deletes)
	assert.Contains(t, logs.String(), "hook_records_without_id")
}

func TestHooks_ConnectorFailureIsSwallowedAndLogged(t *testing.T) {
	conn := &fakeConnector{
		addErr:    stderrors.New("index unavailable"),
		deleteErr: stderrors.New("index unavailable"),
	}
	h, logs, rec := newTestListener(conn)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		h.AfterCreate(ctx, "article", entry.Entry{"id": "1"})
		h.AfterUpdate(ctx, "article", entry.Entry{"id": "1"})
		h.AfterDelete(ctx, "article", entry.Single(entry.Entry{"id": "1"}))
	})

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "hook_failed", record["msg"])
	assert.Equal(t, "article", record["collection"])
	assert.Equal(t, OpAfterCreate, record["operation"])
	assert.Equal(t, "index unavailable", record["error"])
	assert.NotEmpty(t, record["delivery_id"])

	assert.Equal(t, []string{"article:failed", "article:failed", "article:failed"}, rec.outcomes)
}

func TestHooks_CollectionFilter(t *testing.T) {
	conn := &fakeConnector{}
	h, _, _ := newTestListener(conn, WithCollections("article"))
	ctx := context.Background()

	h.AfterCreate(ctx, "comment", entry.Entry{"id": "1"})
	h.AfterDelete(ctx, "comment", entry.Single(entry.Entry{"id": "1"}))
	h.AfterCreate(ctx, "article", entry.Entry{"id": "1"})

	assert.Len(t, conn.adds, 1)
	assert.Empty(t, conn.deletes)
}
