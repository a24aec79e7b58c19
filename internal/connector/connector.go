// Package connector mediates calls from the lifecycle hooks into a search index.
package connector

import (
	"context"
	"time"

	"github.com/Aman-CERP/meilihook/internal/entry"
	"github.com/Aman-CERP/meilihook/internal/errors"
)

// Backend names accepted by New.
const (
	BackendMeilisearch = "meilisearch"
	BackendBleve       = "bleve"
	BackendSQLite      = "sqlite"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultHost              = "http://127.0.0.1:7700"
	DefaultPrimaryKey        = "id"
	DefaultTimeout           = 10 * time.Second
	DefaultRequestsPerSecond = 20.0
	DefaultBurst             = 10
	DefaultSeededCacheSize   = 256
)

// Connector adds and removes records in a search index.
type Connector interface {
	// AddOneEntry indexes or replaces a single record of collection.
	AddOneEntry(ctx context.Context, collection string, e entry.Entry) error

	// DeleteEntries removes records of collection by id.
	DeleteEntries(ctx context.Context, collection string, ids []string) error

	// Close releases resources held by the connector.
	Close() error
}

// Hit is one search result from a local backend.
type Hit struct {
	Collection string  `json:"collection"`
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
}

// Searcher is implemented by backends that can be queried locally.
type Searcher interface {
	Search(ctx context.Context, collection, query string, limit int) ([]Hit, error)
}

// HealthChecker is implemented by backends with a remote dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Backend string

	// Meilisearch
	Host              string
	APIKey            string
	PrimaryKey        string
	IndexPrefix       string
	Indexes           map[string]string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	// Local backends
	LocalPath string
}

// New creates the connector named by cfg.Backend.
func New(cfg Config) (Connector, error) {
	switch cfg.Backend {
	case "", BackendMeilisearch:
		return NewMeilisearch(cfg), nil
	case BackendBleve:
		return NewBleve(cfg.LocalPath)
	case BackendSQLite:
		return NewSQLite(cfg.LocalPath)
	default:
		return nil, errors.New(errors.ErrCodeUnknownBackend, "unknown connector backend: "+cfg.Backend, nil).
			WithSuggestion("use one of: meilisearch, bleve, sqlite")
	}
}

// docKey is the document key used by local backends.
func docKey(collection, id string) string {
	return collection + "/" + id
}
