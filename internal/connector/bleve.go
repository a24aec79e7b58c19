package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/meilihook/internal/entry"
	"github.com/Aman-CERP/meilihook/internal/errors"
)

// Bleve indexes records into an embedded bleve index.
type Bleve struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var (
	_ Connector = (*Bleve)(nil)
	_ Searcher  = (*Bleve)(nil)
)

type bleveDocument struct {
	Collection string `json:"collection"`
	Content    string `json:"content"`
}

// NewBleve opens or creates a bleve index at path. An empty path creates an
// in-memory index. A corrupt index directory is cleared and recreated.
func NewBleve(path string) (*Bleve, error) {
	indexMapping := bleveMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.IOError("create index directory", err)
		}

		if validErr := validateBleveIndex(path); validErr != nil {
			slog.Warn("bleve_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot clear corrupt index", rmErr).
					WithDetail("path", path)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil {
			slog.Warn("bleve_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot clear unreadable index", rmErr).
					WithDetail("path", path)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, errors.IOError("open bleve index", err)
	}

	return &Bleve{index: idx, path: path}, nil
}

func bleveMapping() *mapping.IndexMappingImpl {
	collectionField := bleve.NewTextFieldMapping()
	collectionField.Analyzer = keyword.Name

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("collection", collectionField)
	doc.AddFieldMappingsAt("content", contentField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// validateBleveIndex reports an error when an existing index directory has a
// missing or unparseable index_meta.json.
func validateBleveIndex(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("read index_meta.json: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// AddOneEntry indexes e under collection/id.
func (b *Bleve) AddOneEntry(_ context.Context, collection string, e entry.Entry) error {
	id, ok := e.ID()
	if !ok {
		return errors.New(errors.ErrCodeMissingID, "entry has no id", nil).
			WithDetail("collection", collection)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.ErrCodeIndexClosed, "index is closed", nil)
	}

	doc := bleveDocument{Collection: collection, Content: e.Text()}
	if err := b.index.Index(docKey(collection, id), doc); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "index document", err).
			WithDetail("id", id)
	}
	return nil
}

// DeleteEntries removes the given ids of collection in one batch.
func (b *Bleve) DeleteEntries(_ context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.ErrCodeIndexClosed, "index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(docKey(collection, id))
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "delete documents", err)
	}
	return nil
}

// Search runs a match query over content. An empty collection searches all.
func (b *Bleve) Search(ctx context.Context, collection, q string, limit int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errors.New(errors.ErrCodeIndexClosed, "index is closed", nil)
	}
	if strings.TrimSpace(q) == "" {
		return []Hit{}, nil
	}

	match := bleve.NewMatchQuery(q)
	match.SetField("content")

	var root query.Query = match
	if collection != "" {
		term := bleve.NewTermQuery(collection)
		term.SetField("collection")
		root = bleve.NewConjunctionQuery(match, term)
	}

	req := bleve.NewSearchRequest(root)
	req.Size = limit

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "search", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		coll, id, _ := strings.Cut(h.ID, "/")
		hits = append(hits, Hit{Collection: coll, ID: id, Score: h.Score})
	}
	return hits, nil
}

// Close closes the index.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
