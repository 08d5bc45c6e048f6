package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEngine is a scriptable Engine for manager tests.
type stubEngine struct {
	addErr    error
	searchErr error
	syncErr   error

	mu      sync.Mutex
	added   int
	synced  int
	nextID  int
	addHook func(doc Document) error
}

func (s *stubEngine) CreateCollection(ctx context.Context, spec CollectionSpec) (CollectionInfo, error) {
	return CollectionInfo{Name: spec.Name, Dimension: spec.Dimension, Metric: spec.Metric}, nil
}

func (s *stubEngine) DeleteCollection(ctx context.Context, name string) error { return nil }

func (s *stubEngine) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	return nil, nil
}

func (s *stubEngine) AddText(ctx context.Context, collection string, doc Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addHook != nil {
		if err := s.addHook(doc); err != nil {
			return "", err
		}
	}
	if s.addErr != nil {
		return "", s.addErr
	}
	s.added++
	s.nextID++
	return string(rune('a' + s.nextID - 1)), nil
}

func (s *stubEngine) Search(ctx context.Context, collection, query string, k int, filters map[string]any) ([]SearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return []SearchResult{{ID: "1", Score: 0.9}}, nil
}

func (s *stubEngine) Stats(ctx context.Context) (Stats, error) { return Stats{}, nil }

func (s *stubEngine) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced++
	return s.syncErr
}

func readyManager(t *testing.T, eng Engine) *Manager {
	t.Helper()
	m := NewManager(func() (Engine, error) { return eng, nil }, zap.NewNop())
	require.NoError(t, m.Initialize(context.Background()))
	require.Equal(t, StateReady, m.State())
	return m
}

func TestManager_InitializeIdempotent(t *testing.T) {
	var constructions int32
	m := NewManager(func() (Engine, error) {
		atomic.AddInt32(&constructions, 1)
		return &stubEngine{}, nil
	}, zap.NewNop())

	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&constructions))
}

func TestManager_ConcurrentInitializeSingleConstruction(t *testing.T) {
	var constructions int32
	m := NewManager(func() (Engine, error) {
		atomic.AddInt32(&constructions, 1)
		return &stubEngine{}, nil
	}, zap.NewNop())

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Initialize(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&constructions))
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, StateReady, m.State())
}

func TestManager_FailedStateLatches(t *testing.T) {
	var constructions int32
	m := NewManager(func() (Engine, error) {
		atomic.AddInt32(&constructions, 1)
		return nil, errors.New("disk on fire")
	}, zap.NewNop())

	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Equal(t, StateFailed, m.State())

	// Later callers observe Failed without a retry.
	err = m.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&constructions))
}

func TestManager_OperationsOnFailedHandle(t *testing.T) {
	m := NewManager(func() (Engine, error) {
		return nil, errors.New("boom")
	}, zap.NewNop())
	_ = m.Initialize(context.Background())

	_, err := m.Search(context.Background(), "c", "q", 5, nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = m.Stats(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestManager_LazyInitializationOnFirstUse(t *testing.T) {
	var constructions int32
	m := NewManager(func() (Engine, error) {
		atomic.AddInt32(&constructions, 1)
		return &stubEngine{}, nil
	}, zap.NewNop())

	_, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&constructions))
	assert.Equal(t, StateReady, m.State())
}

func TestManager_WrapsEngineErrors(t *testing.T) {
	eng := &stubEngine{searchErr: errors.New("segment unreadable")}
	m := readyManager(t, eng)

	_, err := m.Search(context.Background(), "c", "q", 5, nil)
	require.Error(t, err)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "search", opErr.Op)
	assert.Contains(t, opErr.Error(), "segment unreadable")
}

func TestManager_SentinelErrorsPassThrough(t *testing.T) {
	eng := &stubEngine{addErr: ErrCollectionNotFound}
	m := readyManager(t, eng)

	_, err := m.AddDocument(context.Background(), "missing", Document{Content: "x"})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	var opErr *OperationError
	assert.False(t, errors.As(err, &opErr), "sentinels must not be wrapped")
}

func TestManager_AddBatchPartialFailure(t *testing.T) {
	calls := 0
	eng := &stubEngine{}
	eng.addHook = func(doc Document) error {
		calls++
		if calls == 2 {
			return errors.New("flaky insert")
		}
		return nil
	}
	m := readyManager(t, eng)

	docs := []Document{{Content: "a"}, {Content: "b"}, {Content: "c"}}
	ids, failures, err := m.AddBatch(context.Background(), "col", docs)
	require.NoError(t, err)

	assert.Len(t, ids, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, "insert failed", failures[0].Error)
}

func TestManager_AddBatchMissingCollectionFailsWhole(t *testing.T) {
	eng := &stubEngine{addErr: ErrCollectionNotFound}
	m := readyManager(t, eng)

	ids, failures, err := m.AddBatch(context.Background(), "missing", []Document{{Content: "a"}})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.Nil(t, ids)
	assert.Nil(t, failures)
}

func TestManager_ShutdownFlushesOnce(t *testing.T) {
	eng := &stubEngine{}
	m := readyManager(t, eng)

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, 1, eng.synced)
}

func TestManager_ShutdownBeforeInitializeIsNoop(t *testing.T) {
	m := NewManager(func() (Engine, error) { return &stubEngine{}, nil }, zap.NewNop())
	assert.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, StateUninitialized, m.State())
}

func TestManager_ShutdownReportsFlushFailure(t *testing.T) {
	eng := &stubEngine{syncErr: errors.New("sidecar write failed")}
	m := readyManager(t, eng)

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sidecar write failed")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
}
