package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/meilihook/internal/entry"
)

// testSocketPath returns a short socket path; sun_path is limited to ~108 bytes
// so t.TempDir() is not used.
func testSocketPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("/tmp", fmt.Sprintf("meilihook-%s-%d.sock", name, time.Now().UnixNano()))
	t.Cleanup(func() { _ = os.Remove(path) })
	return path
}

func daemonTestConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		SocketPath:    testSocketPath(t, "daemon"),
		PIDPath:       filepath.Join(dir, "daemon.pid"),
		LockPath:      filepath.Join(dir, "daemon.lock"),
		Timeout:       5 * time.Second,
		FlushInterval: time.Hour,
	}
}

// waitForSocket polls until the daemon answers.
func waitForSocket(t *testing.T, c *Client) {
	t.Helper()
	require.Eventually(t, c.IsRunning, 2*time.Second, 10*time.Millisecond)
}

type handlerCall struct {
	Method     string
	Collection string
	Entry      entry.Entry
	IDs        []string
}

type fakeHandler struct {
	mu    sync.Mutex
	calls []handlerCall
}

func (f *fakeHandler) AfterCreate(_ context.Context, collection string, e entry.Entry) {
	f.add(handlerCall{Method: MethodAfterCreate, Collection: collection, Entry: e})
}

func (f *fakeHandler) AfterUpdate(_ context.Context, collection string, e entry.Entry) {
	f.add(handlerCall{Method: MethodAfterUpdate, Collection: collection, Entry: e})
}

func (f *fakeHandler) AfterDelete(_ context.Context, collection string, records entry.Records) {
	ids, _ := records.IDs()
	f.add(handlerCall{Method: MethodAfterDelete, Collection: collection, IDs: ids})
}

func (f *fakeHandler) Status() StatusResult {
	return StatusResult{Backend: "fake", Outcomes: map[string]map[string]int64{"article": {"indexed": 2}}}
}

func (f *fakeHandler) add(c handlerCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeHandler) snapshot() []handlerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]handlerCall(nil), f.calls...)
}

// fakeConnector records connector calls for daemon tests.
type fakeConnector struct {
	mu      sync.Mutex
	added   []string
	deleted []string
	closed  bool
	err     error
}

func (f *fakeConnector) AddOneEntry(_ context.Context, collection string, e entry.Entry) error {
	id, _ := e.ID()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, collection+"/"+id)
	return f.err
}

func (f *fakeConnector) DeleteEntries(_ context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.deleted = append(f.deleted, collection+"/"+id)
	}
	return f.err
}

func (f *fakeConnector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConnector) state() (added, deleted []string, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added...), append([]string(nil), f.deleted...), f.closed
}
