package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/cherish/cherish/backend-go/internal/document"
)

// Memory keeps scenes in process memory. Documents are deep-copied on the
// way in and out so callers never share state with the store.
type Memory struct {
	mu     sync.RWMutex
	scenes map[string]*Scene
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{scenes: make(map[string]*Scene), now: time.Now}
}

func (m *Memory) Create(_ context.Context, s *Scene) (*Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scenes[s.ID]; ok {
		return nil, fmt.Errorf("create scene %s: %w", s.ID, ErrConflict)
	}
	stored, err := cloneScene(s)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	stored.Version = 1
	stored.CreatedAt, stored.UpdatedAt = now, now
	m.scenes[s.ID] = stored
	return cloneScene(stored)
}

func (m *Memory) Get(_ context.Context, id string) (*Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scenes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneScene(s)
}

func (m *Memory) List(_ context.Context, ownerID string) ([]Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Scene, 0, len(m.scenes))
	for _, s := range m.scenes {
		if ownerID != "" && s.OwnerID != ownerID {
			continue
		}
		summary := *s
		summary.Document = nil
		out = append(out, summary)
	}
	sortRecent(out)
	return out, nil
}

func (m *Memory) Save(_ context.Context, id string, doc *document.SceneDocument) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scenes[id]
	if !ok {
		return 0, ErrNotFound
	}
	var copied document.SceneDocument
	if err := copier.CopyWithOption(&copied, doc, copier.Option{DeepCopy: true}); err != nil {
		return 0, fmt.Errorf("copy document: %w", err)
	}
	s.Document = &copied
	s.Version++
	s.UpdatedAt = m.now().UTC()
	return s.Version, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scenes[id]; !ok {
		return ErrNotFound
	}
	delete(m.scenes, id)
	return nil
}

func cloneScene(s *Scene) (*Scene, error) {
	var out Scene
	if err := copier.CopyWithOption(&out, s, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy scene: %w", err)
	}
	return &out, nil
}

func sortRecent(scenes []Scene) {
	slices.SortFunc(scenes, func(a, b Scene) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
