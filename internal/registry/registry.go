// Package registry tracks metadata for ingested documents: which session
// owns them, how they were embedded, and when they arrived.
package registry

import (
	"context"
	"errors"

	"github.com/hyperjump/kotaeru/internal/models"
)

// ErrNotFound reports that no document with the given id is registered.
var ErrNotFound = errors.New("document not registered")

// Registry is the durable catalog of ingested documents.
type Registry interface {
	Create(ctx context.Context, meta models.DocumentMetadata) error
	Get(ctx context.Context, docID string) (models.DocumentMetadata, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.DocumentMetadata, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	Delete(ctx context.Context, docID string) error
	Close() error
}
