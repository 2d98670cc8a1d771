package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type fakeClient struct {
	values map[string][]byte
	setErr error
	closed bool
}

func newFakeClient() *fakeClient { return &fakeClient{values: map[string][]byte{}} }

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	if f.setErr != nil {
		return goredis.NewStatusResult("", f.setErr)
	}
	if expiration != 0 {
		return goredis.NewStatusResult("", errors.New("unexpected expiry"))
	}
	f.values[key] = append([]byte(nil), value.([]byte)...)
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestStoreUsesPrefix(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := NewStoreWithClient(fc, "")
	if err := s.Set(ctx, "etp4-v1", []byte(`{"order":[]}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := fc.values["envirotrack:etp4-v1"]; !ok {
		t.Fatalf("expected prefixed key, have %v", fc.values)
	}
	got, ok, err := s.Get(ctx, "etp4-v1")
	if err != nil || !ok || string(got) != `{"order":[]}` {
		t.Fatalf("unexpected %q ok=%v err=%v", got, ok, err)
	}
}

func TestStoreMissingKey(t *testing.T) {
	s := NewStoreWithClient(newFakeClient(), "test:")
	_, ok, err := s.Get(context.Background(), "absent")
	if err != nil || ok {
		t.Fatalf("expected absent key, ok=%v err=%v", ok, err)
	}
}

func TestStoreSetError(t *testing.T) {
	fc := newFakeClient()
	fc.setErr = errors.New("READONLY")
	s := NewStoreWithClient(fc, "test:")
	if err := s.Set(context.Background(), "k", []byte("{}")); err == nil || !errors.Is(err, fc.setErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := s.Close(); err != nil || !fc.closed {
		t.Fatalf("close not forwarded: %v", err)
	}
}
