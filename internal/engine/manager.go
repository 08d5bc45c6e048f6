package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hektorlabs/vdbgate/internal/metrics"
)

// State is the lifecycle state of the managed engine handle.
type State int

// Lifecycle states. Ready is the only state from which operations are
// dispatched; Failed is terminal until process restart.
const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

// String returns the state name for logs and the health endpoint.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Factory constructs the underlying engine. It is invoked at most once per
// process; a failure latches the manager in Failed.
type Factory func() (Engine, error)

// Manager owns the single shared engine handle.
//
// Initialization is single-flight: concurrent first users converge on one
// construction and observe the same handle. After Ready, operations are
// dispatched without manager-side locking; concurrency safety of the engine
// itself is the engine's contract.
type Manager struct {
	factory Factory
	logger  *zap.Logger

	mu       sync.Mutex
	state    State
	engine   Engine
	initErr  error
	initDone chan struct{}

	shutdownOnce sync.Once
}

// NewManager creates a manager around the given engine factory.
func NewManager(factory Factory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory: factory,
		logger:  logger,
		state:   StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initialize constructs the engine if it has not been constructed yet.
//
// It is idempotent: a Ready manager returns immediately. Concurrent callers
// during construction block until the one construction finishes and share
// its outcome. The construction error is returned to the caller that
// triggered it; later callers observe Failed and get ErrBackendUnavailable
// without a retry.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateReady:
		m.mu.Unlock()
		return nil

	case StateFailed:
		m.mu.Unlock()
		return ErrBackendUnavailable

	case StateInitializing:
		done := m.initDone
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if m.State() != StateReady {
			return ErrBackendUnavailable
		}
		return nil
	}

	// StateUninitialized: this caller performs the construction.
	m.state = StateInitializing
	m.initDone = make(chan struct{})
	done := m.initDone
	m.mu.Unlock()

	eng, err := m.factory()

	m.mu.Lock()
	if err != nil {
		m.state = StateFailed
		m.initErr = err
		m.logger.Error("engine initialization failed", zap.Error(err))
	} else {
		m.state = StateReady
		m.engine = eng
		m.logger.Info("engine initialized")
	}
	close(done)
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}
	return nil
}

// get returns the ready engine, lazily initializing on first use.
func (m *Manager) get(ctx context.Context) (Engine, error) {
	m.mu.Lock()
	if m.state == StateReady {
		eng := m.engine
		m.mu.Unlock()
		return eng, nil
	}
	m.mu.Unlock()

	if err := m.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrBackendUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return nil, ErrBackendUnavailable
	}
	return m.engine, nil
}

// CreateCollection validates nothing itself; callers validate first. It
// passes through to the engine and wraps failures.
func (m *Manager) CreateCollection(ctx context.Context, spec CollectionSpec) (CollectionInfo, error) {
	eng, err := m.get(ctx)
	if err != nil {
		return CollectionInfo{}, err
	}

	defer metrics.ObserveOperation("create_collection", spec.Name, time.Now())
	info, err := eng.CreateCollection(ctx, spec)
	if err != nil {
		return CollectionInfo{}, wrapOp("create_collection", err)
	}
	return info, nil
}

// DeleteCollection removes a collection.
func (m *Manager) DeleteCollection(ctx context.Context, name string) error {
	eng, err := m.get(ctx)
	if err != nil {
		return err
	}

	defer metrics.ObserveOperation("delete_collection", name, time.Now())
	if err := eng.DeleteCollection(ctx, name); err != nil {
		return wrapOp("delete_collection", err)
	}
	metrics.VectorsTotal.DeleteLabelValues(name)
	return nil
}

// ListCollections returns all collection descriptors.
func (m *Manager) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	eng, err := m.get(ctx)
	if err != nil {
		return nil, err
	}

	defer metrics.ObserveOperation("list_collections", "", time.Now())
	infos, err := eng.ListCollections(ctx)
	if err != nil {
		return nil, wrapOp("list_collections", err)
	}
	return infos, nil
}

// AddDocument indexes one document and returns its engine-assigned ID.
func (m *Manager) AddDocument(ctx context.Context, collection string, doc Document) (string, error) {
	eng, err := m.get(ctx)
	if err != nil {
		return "", err
	}

	defer metrics.ObserveOperation("add_document", collection, time.Now())
	id, err := eng.AddText(ctx, collection, doc)
	if err != nil {
		return "", wrapOp("add_document", err)
	}
	metrics.VectorsTotal.WithLabelValues(collection).Inc()
	return id, nil
}

// BatchFailure reports one failed insert within a batch.
type BatchFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// AddBatch indexes documents one by one. Validation atomicity is the
// caller's responsibility; past that point insert failures are reported
// per element, and successful elements stay indexed.
func (m *Manager) AddBatch(ctx context.Context, collection string, docs []Document) ([]string, []BatchFailure, error) {
	eng, err := m.get(ctx)
	if err != nil {
		return nil, nil, err
	}

	defer metrics.ObserveOperation("add_batch", collection, time.Now())

	ids := make([]string, 0, len(docs))
	var failures []BatchFailure
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return ids, failures, err
		}
		id, err := eng.AddText(ctx, collection, doc)
		if err != nil {
			// A missing collection fails the whole batch, not per element.
			if isNotFound(err) {
				return nil, nil, wrapOp("add_batch", err)
			}
			m.logger.Warn("batch insert failed for element",
				zap.String("collection", collection),
				zap.Int("index", i),
				zap.Error(err),
			)
			failures = append(failures, BatchFailure{Index: i, Error: "insert failed"})
			continue
		}
		ids = append(ids, id)
		metrics.VectorsTotal.WithLabelValues(collection).Inc()
	}
	return ids, failures, nil
}

// Search runs a similarity query. Results come back in the engine's
// relevance order; the gateway neither re-sorts nor truncates below k.
func (m *Manager) Search(ctx context.Context, collection, query string, k int, filters map[string]any) ([]SearchResult, error) {
	eng, err := m.get(ctx)
	if err != nil {
		return nil, err
	}

	defer metrics.ObserveOperation("search", collection, time.Now())
	results, err := eng.Search(ctx, collection, query, k, filters)
	if err != nil {
		return nil, wrapOp("search", err)
	}
	return results, nil
}

// Stats returns engine-wide counters.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	eng, err := m.get(ctx)
	if err != nil {
		return Stats{}, err
	}

	defer metrics.ObserveOperation("stats", "", time.Now())
	stats, err := eng.Stats(ctx)
	if err != nil {
		return Stats{}, wrapOp("stats", err)
	}
	return stats, nil
}

// Shutdown flushes the engine to durable storage. It runs at most once,
// after the listener has stopped accepting requests. A flush failure is
// logged and returned as a warning; the process still exits.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		eng := m.engine
		ready := m.state == StateReady
		m.mu.Unlock()

		if !ready || eng == nil {
			return
		}

		m.logger.Info("flushing engine before shutdown")
		if syncErr := eng.Sync(ctx); syncErr != nil {
			m.logger.Warn("engine flush failed", zap.Error(syncErr))
			err = fmt.Errorf("engine flush: %w", syncErr)
			return
		}
		m.logger.Info("engine flushed")
	})
	return err
}

// wrapOp passes sentinel errors through for taxonomy mapping and wraps
// everything else so engine-internal errors never cross the boundary bare.
func wrapOp(op string, err error) error {
	if isNotFound(err) || isExists(err) {
		return err
	}
	return &OperationError{Op: op, Err: err}
}
