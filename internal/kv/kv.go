// Package kv abstracts the key-value substrate that session state is
// persisted in. The aggregation layer only sees this interface, so
// tests and single-node deployments can run on the in-memory store
// while production uses redis.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal get/set/delete key-value store. Set is an upsert.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
