// Package kv holds the key-value stores backing rate limit counters.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal key-value contract the core relies on.
// A zero ttl stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetByPrefix(ctx context.Context, prefix string) ([][]byte, error)
}
