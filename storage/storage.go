// Package storage defines the credential store abstraction. Exactly one
// record is ever persisted; the store is keyed internally and exposes no
// query interface.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no credential record exists.
var ErrNotFound = errors.New("credential record not found")

// Store persists the single serialized credential record. The record bytes
// are opaque to the store; field layout belongs to the auth package.
type Store interface {
	// Load returns the persisted record, or ErrNotFound if none exists.
	Load(ctx context.Context) ([]byte, error)
	// Save writes the record, replacing any previous version.
	Save(ctx context.Context, data []byte) error
	// Clear deletes the record. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
