// Package kvstore persists the storefront's small JSON documents (the saved
// cart and the order log) behind a key-value interface.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the durable key-value surface used by the cart and order log.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
