package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"envirotrack/internal/blob/core"
)

func TestStoreMockedFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 || store.Bucket() != "mock-bucket" {
		t.Fatalf("unexpected store identity")
	}
	key := "exports/ws-1/backup.json"
	info, err := store.Put(ctx, key, strings.NewReader(`{"profile":{}}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"workspace": "ws-1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != key || info.ETag != "etag123" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"profile":{}}` || got.ContentType != "application/json" {
		t.Fatalf("unexpected object %+v %q", got, body)
	}

	ok, err := store.Delete(ctx, key)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, err = store.Delete(ctx, key)
	if err != nil || ok {
		t.Fatalf("second delete: ok=%v err=%v", ok, err)
	}
	if _, _, err := store.Get(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListPaginates(t *testing.T) {
	ctx := context.Background()
	rt := &fakeTransport{objects: make(map[string]fakeObject), pageSize: 2}
	store := newFakeStore(rt)
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("exports/ws-1/%02d.csv", i)
		if _, err := store.Put(ctx, key, strings.NewReader("tag\n"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	if _, err := store.Put(ctx, "exports/ws-2/x.csv", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	infos, err := store.List(ctx, "exports/ws-1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 5 {
		t.Fatalf("expected 5 objects across pages, got %d", len(infos))
	}
	for i, info := range infos {
		if want := fmt.Sprintf("exports/ws-1/%02d.csv", i); info.Key != want {
			t.Fatalf("entry %d: want %s got %s", i, want, info.Key)
		}
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestDecodeChunked(t *testing.T) {
	if out, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\n\r\n")); !ok || string(out) != "hello" {
		t.Fatalf("unexpected decode %q ok=%v", out, ok)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("plain body should not decode")
	}
	if _, ok := decodeChunked([]byte("zz\r\nhello\r\n0\r\n")); ok {
		t.Fatalf("bad size should not decode")
	}
}
