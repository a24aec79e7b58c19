package connector

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/meilihook/internal/entry"
	"github.com/Aman-CERP/meilihook/internal/errors"
	"github.com/Aman-CERP/meilihook/pkg/version"
)

// Meilisearch talks to a Meilisearch server over its REST API.
// Writes are accepted asynchronously by the server; the connector does not
// wait for the resulting task to finish.
type Meilisearch struct {
	client  *http.Client
	cfg     Config
	limiter *limiter

	// seeded holds index uids that already received a primary key hint.
	seeded *lru.Cache[string, struct{}]

	mu     sync.RWMutex
	closed bool
}

var (
	_ Connector     = (*Meilisearch)(nil)
	_ HealthChecker = (*Meilisearch)(nil)
)

// APIError is the error body returned by Meilisearch for non-2xx responses.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
	Link    string `json:"link"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("meilisearch: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("meilisearch: %s (%s): %s", e.Code, e.Type, e.Message)
}

// NewMeilisearch creates a Meilisearch connector. Zero config values take defaults.
func NewMeilisearch(cfg Config) *Meilisearch {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.PrimaryKey == "" {
		cfg.PrimaryKey = DefaultPrimaryKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	seeded, _ := lru.New[string, struct{}](DefaultSeededCacheSize)

	return &Meilisearch{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		cfg:     cfg,
		limiter: newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		seeded:  seeded,
	}
}

// IndexUID maps a collection to its Meilisearch index uid.
func (m *Meilisearch) IndexUID(collection string) string {
	if uid, ok := m.cfg.Indexes[collection]; ok && uid != "" {
		return uid
	}
	return m.cfg.IndexPrefix + collection
}

// AddOneEntry adds or replaces one document.
func (m *Meilisearch) AddOneEntry(ctx context.Context, collection string, e entry.Entry) error {
	uid := m.IndexUID(collection)

	path := "/indexes/" + url.PathEscape(uid) + "/documents"
	first := !m.seeded.Contains(uid)
	if first {
		path += "?primaryKey=" + url.QueryEscape(m.cfg.PrimaryKey)
	}

	if err := m.do(ctx, http.MethodPost, path, []entry.Entry{e}); err != nil {
		return fmt.Errorf("add entry to index %s: %w", uid, err)
	}
	if first {
		m.seeded.Add(uid, struct{}{})
	}
	return nil
}

// DeleteEntries removes documents by id.
func (m *Meilisearch) DeleteEntries(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	uid := m.IndexUID(collection)

	path := "/indexes/" + url.PathEscape(uid) + "/documents/delete-batch"
	if err := m.do(ctx, http.MethodPost, path, ids); err != nil {
		return fmt.Errorf("delete entries from index %s: %w", uid, err)
	}
	return nil
}

// Health checks that the server answers /health.
func (m *Meilisearch) Health(ctx context.Context) error {
	return m.do(ctx, http.MethodGet, "/health", nil)
}

// Close releases idle connections.
func (m *Meilisearch) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.client.CloseIdleConnections()
	return nil
}

func (m *Meilisearch) do(ctx context.Context, method, path string, body any) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return errors.New(errors.ErrCodeIndexClosed, "connector is closed", nil)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return errors.New(errors.ErrCodeIndexTimeout, "rate limiter wait", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidEntry, "encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.cfg.Host+path, reader)
	if err != nil {
		return errors.InternalError("build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.New(errors.ErrCodeIndexTimeout, "request timed out", err).
				WithDetail("host", m.cfg.Host)
		}
		return errors.NetworkError("request failed", err).
			WithDetail("host", m.cfg.Host).
			WithSuggestion("check that Meilisearch is running and connector.host is correct")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return decodeAPIError(resp)
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}

	code := errors.ErrCodeIndexFailed
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		code = errors.ErrCodeIndexRejected
	}

	he := errors.New(code, apiErr.Message, apiErr).
		WithDetail("status", fmt.Sprintf("%d", resp.StatusCode))
	if apiErr.Code != "" {
		he.WithDetail("meili_code", apiErr.Code)
	}
	if apiErr.Link != "" {
		he.WithSuggestion("see " + apiErr.Link)
	}
	return he
}
