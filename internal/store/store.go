// Package store holds the key-value engines posts are persisted in. Every
// engine stores one opaque value per post id and offers per-key atomic
// read-modify-write; nothing here knows what a post looks like.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get and Update when the key is absent.
	ErrNotFound = errors.New("store: key not found")

	// ErrSkipUpdate may be returned from an Update callback to leave the
	// stored value untouched.
	ErrSkipUpdate = errors.New("store: skip update")
)

// UpdateFunc receives the current value of a key and returns its replacement.
type UpdateFunc func(current []byte) ([]byte, error)

// ScanFunc is called once per stored record. Returning an error stops the scan.
type ScanFunc func(id string, value []byte) error

type Store interface {
	Put(ctx context.Context, id string, value []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	// Update atomically replaces the value of an existing key.
	Update(ctx context.Context, id string, fn UpdateFunc) error
	// Scan visits every record once, in no particular order. Writes that
	// happen during a scan may or may not be observed.
	Scan(ctx context.Context, fn ScanFunc) error
	// Flush returns once every prior Put and Update is durable.
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
