package domain

import "context"

// KVStore is the host storage facility: one opaque value per key. Get reports
// (nil, false, nil) when the key has never been written.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
