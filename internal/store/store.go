// Package store persists scene documents. Every save creates a new version
// of the scene; loading returns the latest one.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cherish/cherish/backend-go/internal/document"
)

var (
	ErrNotFound = errors.New("scene not found")
	ErrConflict = errors.New("scene version conflict")
)

// Scene is a stored scene with its latest document.
type Scene struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	OwnerID   string                  `json:"ownerId"`
	Version   int                     `json:"version"`
	Document  *document.SceneDocument `json:"document,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// Store is implemented by Memory, File and Postgres.
type Store interface {
	// Create stores a new scene at version 1.
	Create(ctx context.Context, s *Scene) (*Scene, error)
	// Get returns the scene with its latest document.
	Get(ctx context.Context, id string) (*Scene, error)
	// List returns every scene without documents, most recently updated
	// first. An empty ownerID lists all owners.
	List(ctx context.Context, ownerID string) ([]Scene, error)
	// Save stores doc as the next version and returns that version.
	Save(ctx context.Context, id string, doc *document.SceneDocument) (int, error)
	Delete(ctx context.Context, id string) error
}
