package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/hektorlabs/vdbgate/internal/embeddings"
)

// timeNow is a variable for testing purposes.
var timeNow = time.Now

const descriptorFile = "collections.json"

// ChromemConfig holds configuration for the embedded chromem-go engine.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ChromemEngine implements Engine on chromem-go, an embeddable vector
// database with persistence to gob files.
//
// Mutations are persisted write-through by chromem-go, so Sync only has the
// sidecar descriptor file left to flush. Collection descriptors (dimension,
// metric, creation time) are kept in that sidecar because chromem-go does
// not expose collection metadata after creation.
//
// Similarity is computed as cosine over normalized vectors regardless of the
// declared metric; the metric is recorded on the descriptor and echoed back.
// This is a known limitation of the embedded engine.
type ChromemEngine struct {
	db       *chromem.DB
	embedder embeddings.Embedder
	config   ChromemConfig
	logger   *zap.Logger

	mu          sync.Mutex // protects descriptors and the sidecar file
	descriptors map[string]descriptor
}

// descriptor is the persisted per-collection record.
type descriptor struct {
	Dimension int       `json:"dimension"`
	Metric    Metric    `json:"metric"`
	CreatedAt time.Time `json:"created_at"`
}

// NewChromemEngine opens (or creates) the persistent store at cfg.Path.
func NewChromemEngine(cfg ChromemConfig, embedder embeddings.Embedder, logger *zap.Logger) (*ChromemEngine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: storage path is required", ErrInvalidConfig)
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	e := &ChromemEngine{
		db:          db,
		embedder:    embedder,
		config:      cfg,
		logger:      logger,
		descriptors: make(map[string]descriptor),
	}

	if err := e.loadDescriptors(); err != nil {
		return nil, fmt.Errorf("loading collection descriptors: %w", err)
	}

	logger.Info("chromem engine initialized",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
		zap.Int("collections", len(e.descriptors)),
	)

	return e, nil
}

// embeddingFunc bridges the Embedder interface to chromem's callback.
func (e *ChromemEngine) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.embedder.EmbedQuery(ctx, text)
	}
}

// CreateCollection creates a new collection and records its descriptor.
func (e *ChromemEngine) CreateCollection(ctx context.Context, spec CollectionSpec) (CollectionInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.descriptors[spec.Name]; ok {
		return CollectionInfo{}, fmt.Errorf("%w: %s", ErrCollectionExists, spec.Name)
	}

	meta := map[string]string{
		"dimension": fmt.Sprintf("%d", spec.Dimension),
		"metric":    string(spec.Metric),
	}
	if _, err := e.db.CreateCollection(spec.Name, meta, e.embeddingFunc()); err != nil {
		return CollectionInfo{}, fmt.Errorf("creating collection %s: %w", spec.Name, err)
	}

	desc := descriptor{
		Dimension: spec.Dimension,
		Metric:    spec.Metric,
		CreatedAt: timeNow().UTC(),
	}
	e.descriptors[spec.Name] = desc
	if err := e.saveDescriptorsLocked(); err != nil {
		e.logger.Warn("failed to persist collection descriptors", zap.Error(err))
	}

	e.logger.Info("created collection",
		zap.String("collection", spec.Name),
		zap.Int("dimension", spec.Dimension),
		zap.String("metric", string(spec.Metric)),
	)

	return CollectionInfo{
		Name:          spec.Name,
		Dimension:     desc.Dimension,
		Metric:        desc.Metric,
		DocumentCount: 0,
		CreatedAt:     desc.CreatedAt,
	}, nil
}

// DeleteCollection deletes a collection and all its documents.
func (e *ChromemEngine) DeleteCollection(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.descriptors[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	if err := e.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	delete(e.descriptors, name)
	if err := e.saveDescriptorsLocked(); err != nil {
		e.logger.Warn("failed to persist collection descriptors", zap.Error(err))
	}

	e.logger.Info("deleted collection", zap.String("collection", name))
	return nil
}

// ListCollections returns descriptors for all collections.
func (e *ChromemEngine) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	infos := make([]CollectionInfo, 0, len(e.descriptors))
	for name, desc := range e.descriptors {
		count := 0
		if col := e.db.GetCollection(name, e.embeddingFunc()); col != nil {
			count = col.Count()
		}
		infos = append(infos, CollectionInfo{
			Name:          name,
			Dimension:     desc.Dimension,
			Metric:        desc.Metric,
			DocumentCount: count,
			CreatedAt:     desc.CreatedAt,
		})
	}
	return infos, nil
}

// AddText indexes one document and returns its engine-assigned ID.
func (e *ChromemEngine) AddText(ctx context.Context, collection string, doc Document) (string, error) {
	col, err := e.getCollection(collection)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	meta := metadataToString(doc.Metadata)
	if doc.Type != "" {
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		meta["doc_type"] = doc.Type
	}

	err = col.AddDocuments(ctx, []chromem.Document{{
		ID:       id,
		Content:  doc.Content,
		Metadata: meta,
	}}, 1)
	if err != nil {
		return "", fmt.Errorf("adding document to %s: %w", collection, err)
	}

	return id, nil
}

// Search returns up to k results ordered by descending similarity.
func (e *ChromemEngine) Search(ctx context.Context, collection, query string, k int, filters map[string]any) ([]SearchResult, error) {
	col, err := e.getCollection(collection)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= document count.
	count := col.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := col.Query(ctx, query, k, metadataToString(filters), nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Content:  r.Content,
			Metadata: metadataFromString(r.Metadata),
		}
	}
	return out, nil
}

// Stats returns engine-wide counters.
func (e *ChromemEngine) Stats(ctx context.Context) (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats Stats
	stats.Collections = len(e.descriptors)
	for name, desc := range e.descriptors {
		col := e.db.GetCollection(name, e.embeddingFunc())
		if col == nil {
			continue
		}
		count := col.Count()
		stats.TotalVectors += count
		// 4 bytes per float32 component.
		stats.MemoryUsageBytes += int64(count) * int64(desc.Dimension) * 4
	}
	stats.IndexSize = int64(stats.TotalVectors)
	return stats, nil
}

// Sync flushes remaining engine state to durable storage. Document writes
// are already persisted write-through; only the descriptor sidecar remains.
func (e *ChromemEngine) Sync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.saveDescriptorsLocked(); err != nil {
		return fmt.Errorf("persisting collection descriptors: %w", err)
	}
	return nil
}

func (e *ChromemEngine) getCollection(name string) (*chromem.Collection, error) {
	e.mu.Lock()
	_, known := e.descriptors[name]
	e.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	col := e.db.GetCollection(name, e.embeddingFunc())
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return col, nil
}

func (e *ChromemEngine) descriptorPath() string {
	return filepath.Join(e.config.Path, descriptorFile)
}

func (e *ChromemEngine) loadDescriptors() error {
	content, err := os.ReadFile(e.descriptorPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(content, &e.descriptors)
}

// saveDescriptorsLocked writes the sidecar atomically via temp file + rename.
// Callers must hold e.mu.
func (e *ChromemEngine) saveDescriptorsLocked() error {
	content, err := json.MarshalIndent(e.descriptors, "", "  ")
	if err != nil {
		return err
	}

	tmp := e.descriptorPath() + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, e.descriptorPath())
}

// metadataToString converts open metadata to chromem's string map.
func metadataToString(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// metadataFromString widens chromem's string map back to open metadata.
func metadataFromString(metadata map[string]string) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
