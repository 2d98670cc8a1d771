package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"envirotrack/pkg/domain"
)

// DefaultStorageKey is the key the root document is stored under.
const DefaultStorageKey = "etp4-v1"

const defaultWriteTimeout = 10 * time.Second

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreKey overrides the storage key.
func WithStoreKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithStoreLogger sets the logger used for load and write failures.
func WithStoreLogger(log *zap.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStoreMetrics attaches Prometheus collectors.
func WithStoreMetrics(m *Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithWriteTimeout bounds each backend write.
func WithWriteTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

type writeRequest struct {
	payload []byte
	result  chan error
	flush   bool
}

// Store keeps the root state in memory and writes every committed state
// through to a key-value backend. Writes are performed by a single goroutine
// in the order Save was called, so the backend always converges on the last
// saved state. A failed write is logged and counted; the in-memory state is
// not rolled back.
type Store struct {
	kv           domain.KVStore
	key          string
	log          *zap.Logger
	metrics      *Metrics
	writeTimeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	cache   domain.RootState
	loaded  bool
	queue   []writeRequest
	closing bool
	lastErr error

	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewStore starts a store over kv. Call Close to stop the writer.
func NewStore(kv domain.KVStore, opts ...StoreOption) *Store {
	s := &Store{
		kv:           kv,
		key:          DefaultStorageKey,
		log:          zap.NewNop(),
		writeTimeout: defaultWriteTimeout,
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }

// Load returns the root state. The backend is read once; later calls return
// the cached state. A missing value, a backend error, or a document that does
// not parse all yield an empty root state.
func (s *Store) Load(ctx context.Context) domain.RootState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cache
	}
	s.cache = s.read(ctx)
	s.loaded = true
	return s.cache
}

func (s *Store) read(ctx context.Context) domain.RootState {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("load root state", zap.String("key", s.key), zap.Error(err))
		return domain.NewRootState()
	}
	if !ok || len(data) == 0 {
		return domain.NewRootState()
	}
	root := domain.NewRootState()
	if err := json.Unmarshal(data, &root); err != nil {
		s.log.Warn("parse root state", zap.String("key", s.key), zap.Int("bytes", len(data)), zap.Error(err))
		return domain.NewRootState()
	}
	return root.Normalize()
}

// Save replaces the cached state and queues it for writing. The returned
// channel receives exactly one value once the write has been attempted.
func (s *Store) Save(state domain.RootState) <-chan error {
	result := make(chan error, 1)
	payload, err := json.Marshal(state)
	if err != nil {
		s.log.Error("encode root state", zap.String("key", s.key), zap.Error(err))
		s.metrics.storeWrite(err)
		result <- err
		return result
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		result <- ErrStoreClosed
		return result
	}
	s.cache = state
	s.loaded = true
	s.queue = append(s.queue, writeRequest{payload: payload, result: result})
	s.metrics.setQueueDepth(len(s.queue))
	s.cond.Signal()
	return result
}

// Flush waits for every write queued before the call and returns the most
// recent write failure since the previous Flush, or nil.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.queue = append(s.queue, writeRequest{flush: true, result: done})
	s.cond.Signal()
	s.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending writes, stops the writer, and closes the backend.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.cond.Broadcast()
		s.mu.Unlock()
		<-s.stopped
		s.closeErr = s.kv.Close()
	})
	return s.closeErr
}

func (s *Store) run() {
	defer close(s.stopped)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closing {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		req := s.queue[0]
		s.queue[0] = writeRequest{}
		s.queue = s.queue[1:]
		s.metrics.setQueueDepth(len(s.queue))
		if req.flush {
			err := s.lastErr
			s.lastErr = nil
			s.mu.Unlock()
			req.result <- err
			continue
		}
		s.mu.Unlock()

		err := s.write(req.payload)
		if err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
		req.result <- err
	}
}

func (s *Store) write(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	err := s.kv.Set(ctx, s.key, payload)
	s.metrics.storeWrite(err)
	if err != nil {
		s.log.Error("persist root state",
			zap.String("key", s.key),
			zap.Int("bytes", len(payload)),
			zap.Error(err))
		return err
	}
	s.log.Debug("persisted root state", zap.String("key", s.key), zap.Int("bytes", len(payload)))
	return nil
}
