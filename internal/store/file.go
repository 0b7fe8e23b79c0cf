package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cherish/cherish/backend-go/internal/document"
)

// File keeps one JSON file per scene in a directory. Only the latest
// version is kept on disk.
type File struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scene dir: %w", err)
	}
	return &File{dir: dir, now: time.Now}, nil
}

func (f *File) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("scene id %q: %w", id, ErrNotFound)
	}
	return filepath.Join(f.dir, id+".json"), nil
}

func (f *File) Create(_ context.Context, s *Scene) (*Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.path(s.ID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p); err == nil {
		return nil, fmt.Errorf("create scene %s: %w", s.ID, ErrConflict)
	}
	stored := *s
	now := f.now().UTC()
	stored.Version = 1
	stored.CreatedAt, stored.UpdatedAt = now, now
	if err := writeJSON(p, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (f *File) Get(_ context.Context, id string) (*Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(id)
}

func (f *File) read(id string) (*Scene, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, err
	}
	var s Scene
	if err := readJSON(p, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (f *File) List(_ context.Context, ownerID string) ([]Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	out := []Scene{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		s, err := f.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if ownerID != "" && s.OwnerID != ownerID {
			continue
		}
		s.Document = nil
		out = append(out, *s)
	}
	sortRecent(out)
	return out, nil
}

func (f *File) Save(_ context.Context, id string, doc *document.SceneDocument) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.read(id)
	if err != nil {
		return 0, err
	}
	s.Document = doc
	s.Version++
	s.UpdatedAt = f.now().UTC()
	p, _ := f.path(id)
	if err := writeJSON(p, s); err != nil {
		return 0, err
	}
	return s.Version, nil
}

func (f *File) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete scene: %w", err)
	}
	return nil
}

// ReadDocument loads a bare scene document from path.
func ReadDocument(path string) (*document.SceneDocument, error) {
	var doc document.SceneDocument
	if err := readJSON(path, &doc); err != nil {
		return nil, err
	}
	doc.FilePath = path
	return &doc, nil
}

// WriteDocument writes doc to path as JSON.
func WriteDocument(path string, doc *document.SceneDocument) error {
	return writeJSON(path, doc)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically through a temporary file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".scene-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
