// Package engine provides the vector engine interface, its embedded
// implementation, and the lifecycle manager that owns the single shared
// engine handle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for engine operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrBackendUnavailable is returned when the engine handle is not Ready.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Metric is a similarity metric for a collection.
type Metric string

// Supported similarity metrics.
const (
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
	MetricDotProduct Metric = "dot_product"
)

// ValidMetric reports whether m is one of the supported metrics.
func ValidMetric(m Metric) bool {
	switch m {
	case MetricCosine, MetricEuclidean, MetricDotProduct:
		return true
	}
	return false
}

// MaxDimension is the largest accepted embedding dimension.
const MaxDimension = 4096

// CollectionSpec describes a collection to create.
type CollectionSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Name          string    `json:"name"`
	Dimension     int       `json:"dimension"`
	Metric        Metric    `json:"metric"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Document is a text document submitted for indexing. The ID is assigned by
// the engine, never by the client.
type Document struct {
	Content  string
	Metadata map[string]any
	Type     string
}

// SearchResult is a single similarity search hit.
type SearchResult struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// Stats holds engine-wide counters.
type Stats struct {
	TotalVectors     int   `json:"total_vectors"`
	MemoryUsageBytes int64 `json:"memory_usage_bytes"`
	IndexSize        int64 `json:"index_size"`
	Collections      int   `json:"collections"`
}

// Engine is the narrow synchronous interface to the vector backend.
//
// Implementations must be safe for concurrent use; the gateway dispatches
// calls from many requests against one handle without serializing them.
type Engine interface {
	CreateCollection(ctx context.Context, spec CollectionSpec) (CollectionInfo, error)
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]CollectionInfo, error)

	// AddText indexes a document and returns its engine-assigned ID.
	AddText(ctx context.Context, collection string, doc Document) (string, error)

	// Search returns up to k results ordered by descending relevance.
	// Filters are matched against document metadata, uninterpreted by the
	// gateway.
	Search(ctx context.Context, collection, query string, k int, filters map[string]any) ([]SearchResult, error)

	Stats(ctx context.Context) (Stats, error)

	// Sync flushes engine state to durable storage.
	Sync(ctx context.Context) error
}

// OperationError wraps an engine failure with the operation name. The
// underlying engine error never crosses the gateway boundary verbatim.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("engine operation %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying engine error.
func (e *OperationError) Unwrap() error { return e.Err }
