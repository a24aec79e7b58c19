package connector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/meilihook/internal/entry"
	"github.com/Aman-CERP/meilihook/internal/errors"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

func newMeiliServer(t *testing.T, status int, body string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var reqs []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   string(data),
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func TestMeilisearch_AddOneEntry_SeedsPrimaryKeyOnce(t *testing.T) {
	srv, requests := newMeiliServer(t, http.StatusAccepted, `{"taskUid": 1}`)
	m := NewMeilisearch(Config{Host: srv.URL, APIKey: "secret"})
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.AddOneEntry(ctx, "article", entry.Entry{"id": "1", "title": "a"}))
	require.NoError(t, m.AddOneEntry(ctx, "article", entry.Entry{"id": "2", "title": "b"}))

	reqs := requests()
	require.Len(t, reqs, 2)

	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/indexes/article/documents", reqs[0].Path)
	assert.Equal(t, "primaryKey=id", reqs[0].Query)
	assert.Equal(t, "Bearer secret", reqs[0].Auth)
	assert.Empty(t, reqs[1].Query)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0]["title"])
}

func TestMeilisearch_IndexUID(t *testing.T) {
	m := NewMeilisearch(Config{
		IndexPrefix: "cms_",
		Indexes:     map[string]string{"restaurant": "places"},
	})

	assert.Equal(t, "places", m.IndexUID("restaurant"))
	assert.Equal(t, "cms_article", m.IndexUID("article"))
}

func TestMeilisearch_DeleteEntries(t *testing.T) {
	srv, requests := newMeiliServer(t, http.StatusAccepted, `{"taskUid": 2}`)
	m := NewMeilisearch(Config{Host: srv.URL + "/"})
	defer m.Close()

	require.NoError(t, m.DeleteEntries(context.Background(), "article", []string{"3", "1", "2"}))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/indexes/article/documents/delete-batch", reqs[0].Path)
	assert.Empty(t, reqs[0].Auth)
	assert.JSONEq(t, `["3","1","2"]`, reqs[0].Body)
}

func TestMeilisearch_DeleteEntries_EmptyIsNoop(t *testing.T) {
	srv, requests := newMeiliServer(t, http.StatusAccepted, `{}`)
	m := NewMeilisearch(Config{Host: srv.URL})
	defer m.Close()

	require.NoError(t, m.DeleteEntries(context.Background(), "article", nil))
	assert.Empty(t, requests())
}

func TestMeilisearch_APIErrorIsDecoded(t *testing.T) {
	srv, _ := newMeiliServer(t, http.StatusBadRequest,
		`{"message":"Document identifier is invalid","code":"invalid_document_id","type":"invalid_request","link":"https://docs.meilisearch.com/errors#invalid_document_id"}`)
	m := NewMeilisearch(Config{Host: srv.URL})
	defer m.Close()

	err := m.AddOneEntry(context.Background(), "article", entry.Entry{"id": "bad id"})
	require.Error(t, err)

	assert.Equal(t, errors.ErrCodeIndexRejected, errors.GetCode(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_document_id", apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestMeilisearch_ServerErrorWithoutBody(t *testing.T) {
	srv, _ := newMeiliServer(t, http.StatusInternalServerError, ``)
	m := NewMeilisearch(Config{Host: srv.URL})
	defer m.Close()

	err := m.DeleteEntries(context.Background(), "article", []string{"1"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexFailed, errors.GetCode(err))
}

func TestMeilisearch_PrimaryKeyRetriedAfterFailure(t *testing.T) {
	srv, requests := newMeiliServer(t, http.StatusServiceUnavailable, `{}`)
	m := NewMeilisearch(Config{Host: srv.URL})
	defer m.Close()

	ctx := context.Background()
	_ = m.AddOneEntry(ctx, "article", entry.Entry{"id": "1"})
	_ = m.AddOneEntry(ctx, "article", entry.Entry{"id": "2"})

	reqs := requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "primaryKey=id", reqs[1].Query)
}

func TestMeilisearch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	m := NewMeilisearch(Config{Host: host})
	defer m.Close()

	err := m.AddOneEntry(context.Background(), "article", entry.Entry{"id": "1"})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNetwork, errors.GetCategory(err))
}

func TestMeilisearch_Health(t *testing.T) {
	srv, requests := newMeiliServer(t, http.StatusOK, `{"status":"available"}`)
	m := NewMeilisearch(Config{Host: srv.URL})
	defer m.Close()

	require.NoError(t, m.Health(context.Background()))
	assert.Equal(t, "/health", requests()[0].Path)
}

func TestMeilisearch_ClosedRejectsCalls(t *testing.T) {
	m := NewMeilisearch(Config{})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	err := m.AddOneEntry(context.Background(), "article", entry.Entry{"id": "1"})
	assert.Equal(t, errors.ErrCodeIndexClosed, errors.GetCode(err))
}

func TestNew_Backends(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Meilisearch{}, c)
	_ = c.Close()

	c, err = New(Config{Backend: BackendBleve})
	require.NoError(t, err)
	assert.IsType(t, &Bleve{}, c)
	_ = c.Close()

	c, err = New(Config{Backend: BackendSQLite})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, c)
	_ = c.Close()

	_, err = New(Config{Backend: "elastic"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownBackend, errors.GetCode(err))
}
