package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"envirotrack/internal/core"
	"envirotrack/pkg/domain"
)

var testNow = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

func clockAt(t time.Time) core.Clock {
	return core.ClockFunc(func() time.Time { return t })
}

func seqIDs(prefix string) core.IDGenerator {
	var n atomic.Int64
	return core.IDFunc(func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	})
}

func newRepository() *core.Repository {
	return core.NewRepository(seqIDs("id"), clockAt(testNow), nil)
}

func testProfile() domain.Profile {
	return domain.Profile{Name: "Dana Reyes", Facility: "Bayport Refinery", Agency: "TCEQ"}
}

// fakeKV records every write and can be told to fail.
type fakeKV struct {
	mu     sync.Mutex
	values map[string][]byte
	writes [][]byte
	getErr error
	setErr error
	closed bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: make(map[string][]byte)}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = append([]byte(nil), value...)
	f.writes = append(f.writes, f.values[key])
	return nil
}

func (f *fakeKV) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeKV) failWrites(err error) {
	f.mu.Lock()
	f.setErr = err
	f.mu.Unlock()
}

func (f *fakeKV) value(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

func (f *fakeKV) writeLog() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

var errBackend = errors.New("backend unavailable")

func newTestStore(t *testing.T, kv domain.KVStore, opts ...core.StoreOption) *core.Store {
	t.Helper()
	s := core.NewStore(kv, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestService(t *testing.T, opts ...core.Option) (*core.Service, *fakeKV) {
	t.Helper()
	kv := newFakeKV()
	store := newTestStore(t, kv)
	base := []core.Option{core.WithClock(clockAt(testNow)), core.WithIDGenerator(seqIDs("id"))}
	return core.NewService(store, append(base, opts...)...), kv
}

func mustCreate(t *testing.T, svc *core.Service) string {
	t.Helper()
	id, err := svc.CreateWorkspace(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return id
}
