// Package metadata is a small key/value table for engine bookkeeping, e.g.
// the download watermark of the last completed sync cycle.
package metadata

import "context"

// Repository describes key/value storage. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
