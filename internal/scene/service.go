// Package scene serves the stored scenes over HTTP: listing, creation,
// deletion, document download and upload, and compiled draw commands.
package scene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/engine"
	"github.com/cherish/cherish/backend-go/internal/store"
	"github.com/cherish/cherish/backend-go/internal/typeid"
)

var (
	ErrNotFound  = errors.New("scene not found")
	ErrForbidden = errors.New("forbidden")
	ErrOpen      = errors.New("scene is open for editing")
	ErrInvalid   = errors.New("invalid scene document")
)

// Live gives access to scenes that are open in a collaboration room. Their
// state is newer than the stored one.
type Live interface {
	Snapshot(sceneID string) (*document.SceneDocument, bool)
	Render(sceneID string) (string, bool)
}

type Service struct {
	store store.Store
	live  Live
}

// NewService creates a service over st. live may be nil.
func NewService(st store.Store, live Live) *Service {
	return &Service{store: st, live: live}
}

type Scene struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	Version   int    `json:"version"`
	Live      bool   `json:"live"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Create stores a new scene owned by ownerID. With sample set it starts
// from the three default canvases, otherwise it is empty.
func (s *Service) Create(ctx context.Context, name, ownerID string, sample bool) (*Scene, error) {
	doc := document.NewEmptyDocument("")
	if sample {
		doc = document.NewSampleDocument()
	}

	stored, err := s.store.Create(ctx, &store.Scene{
		ID:       typeid.NewSceneID(),
		Name:     name,
		OwnerID:  ownerID,
		Document: doc,
	})
	if err != nil {
		return nil, fmt.Errorf("create scene: %w", err)
	}
	return s.toScene(stored), nil
}

func (s *Service) Get(ctx context.Context, sceneID string) (*Scene, error) {
	stored, err := s.get(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	return s.toScene(stored), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Scene, error) {
	stored, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}

	scenes := make([]Scene, len(stored))
	for i := range stored {
		scenes[i] = *s.toScene(&stored[i])
	}
	return scenes, nil
}

// Delete removes a scene. Only its owner may delete it, and not while it
// is open.
func (s *Service) Delete(ctx context.Context, sceneID, userID string) error {
	stored, err := s.get(ctx, sceneID)
	if err != nil {
		return err
	}
	if stored.OwnerID != userID {
		return ErrForbidden
	}
	if s.isLive(sceneID) {
		return ErrOpen
	}
	if err := s.store.Delete(ctx, sceneID); err != nil {
		return mapStoreError(err)
	}
	return nil
}

// Document returns the newest document of a scene, live if the scene is
// open.
func (s *Service) Document(ctx context.Context, sceneID string) (*document.SceneDocument, error) {
	if s.live != nil {
		if doc, ok := s.live.Snapshot(sceneID); ok {
			return doc, nil
		}
	}
	stored, err := s.get(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	return stored.Document, nil
}

// Draw returns the draw commands of a scene as JSON.
func (s *Service) Draw(ctx context.Context, sceneID string) (string, error) {
	if s.live != nil {
		if out, ok := s.live.Render(sceneID); ok {
			return out, nil
		}
	}
	stored, err := s.get(ctx, sceneID)
	if err != nil {
		return "", err
	}
	eng := engine.NewEngine()
	if err := eng.LoadRecord(stored.Document); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return eng.Render(), nil
}

// Import stores doc as the next version of a scene. The document must
// load; scenes open for editing are refused.
func (s *Service) Import(ctx context.Context, sceneID, userID string, doc *document.SceneDocument) (int, error) {
	stored, err := s.get(ctx, sceneID)
	if err != nil {
		return 0, err
	}
	if stored.OwnerID != userID {
		return 0, ErrForbidden
	}
	if s.isLive(sceneID) {
		return 0, ErrOpen
	}
	if _, err := engine.BuildScene(doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	version, err := s.store.Save(ctx, sceneID, doc)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return version, nil
}

func (s *Service) get(ctx context.Context, sceneID string) (*store.Scene, error) {
	stored, err := s.store.Get(ctx, sceneID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return stored, nil
}

func (s *Service) isLive(sceneID string) bool {
	if s.live == nil {
		return false
	}
	_, ok := s.live.Snapshot(sceneID)
	return ok
}

func (s *Service) toScene(st *store.Scene) *Scene {
	return &Scene{
		ID:        st.ID,
		Name:      st.Name,
		OwnerID:   st.OwnerID,
		Version:   st.Version,
		Live:      s.isLive(st.ID),
		CreatedAt: st.CreatedAt.Format(time.RFC3339),
		UpdatedAt: st.UpdatedAt.Format(time.RFC3339),
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
