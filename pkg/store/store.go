// Package store persists signed documents keyed by their id:version
// composite. Saved bytes are immutable: a version is written once and never
// rewritten, so storage can only ever disagree with a signature by
// corruption, which verification reports as a hash mismatch rather than a
// storage error.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

var (
	// ErrNotFound: no document under that id:version.
	ErrNotFound = errors.New("document not found")

	// ErrVersionExists: versions are write-once.
	ErrVersionExists = errors.New("document version already stored")

	// ErrStorage wraps backend failures so callers can tell an unreachable
	// or corrupt store apart from a cryptographic failure.
	ErrStorage = errors.New("document storage failure")
)

// Storage is the document persistence boundary. Implementations must be safe
// for concurrent use.
type Storage interface {
	// Put saves the document under its id:version key. Storing the same
	// version twice fails with ErrVersionExists.
	Put(ctx context.Context, doc *contracts.Document) error

	// Get loads one exact version.
	Get(ctx context.Context, id, version string) (*contracts.Document, error)

	// Latest loads the most recently stored version of id.
	Latest(ctx context.Context, id string) (*contracts.Document, error)

	// Versions lists the stored version ids of a document, oldest first.
	Versions(ctx context.Context, id string) ([]string, error)
}

func storageKey(id, version string) (string, error) {
	if id == "" || version == "" {
		return "", fmt.Errorf("%w: empty id or version", ErrStorage)
	}
	return id + ":" + version, nil
}
