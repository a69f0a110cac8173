// Package storage defines the durable state record shared by every component
// and the contract its backends implement. The record is read and written
// wholesale: callers read-modify-write the full structure and the last save
// wins. There is no concurrent-writer protection beyond that; tabwarden is a
// single-user tool with one writer on the hot path (the tracker tick).
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the underlying backend cannot serve a
// read or write (not ready, closed, quota, connection refused).
var ErrUnavailable = errors.New("storage: backend unavailable")

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store is the persistence contract. Load returns defaults when the backend
// holds no data yet; Save replaces the durable state wholesale; Initialize is
// idempotent and backfills top-level fields introduced after the data was
// first written, without discarding anything.
type Store interface {
	Load(ctx context.Context) (Data, error)
	Save(ctx context.Context, data Data) error
	Initialize(ctx context.Context) error
	Close() error
}
