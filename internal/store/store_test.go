package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cherish/cherish/backend-go/internal/document"
)

// clock returns a time source that advances one second per call.
func clock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	mem := NewMemory()
	mem.now = clock()
	file, err := NewFile(t.TempDir())
	require.NoError(t, err)
	file.now = clock()
	return map[string]Store{"memory": mem, "file": file}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			created, err := st.Create(ctx, &Scene{
				ID:       "scene_a",
				Name:     "First",
				OwnerID:  "user_1",
				Document: document.NewSampleDocument(),
			})
			require.NoError(t, err)
			assert.Equal(t, 1, created.Version)

			_, err = st.Create(ctx, &Scene{ID: "scene_a"})
			assert.ErrorIs(t, err, ErrConflict)

			got, err := st.Get(ctx, "scene_a")
			require.NoError(t, err)
			assert.Equal(t, "First", got.Name)
			require.NotNil(t, got.Document)
			assert.Len(t, got.Document.Canvases, 3)

			doc := document.NewEmptyDocument("")
			version, err := st.Save(ctx, "scene_a", doc)
			require.NoError(t, err)
			assert.Equal(t, 2, version)

			got, err = st.Get(ctx, "scene_a")
			require.NoError(t, err)
			assert.Equal(t, 2, got.Version)
			assert.Empty(t, got.Document.Canvases)

			require.NoError(t, st.Delete(ctx, "scene_a"))
			_, err = st.Get(ctx, "scene_a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, st.Delete(ctx, "scene_a"), ErrNotFound)
			_, err = st.Save(ctx, "scene_a", doc)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, s := range []Scene{
				{ID: "scene_a", OwnerID: "user_1"},
				{ID: "scene_b", OwnerID: "user_2"},
				{ID: "scene_c", OwnerID: "user_1"},
			} {
				s.Document = document.NewEmptyDocument("")
				_, err := st.Create(ctx, &s)
				require.NoError(t, err)
			}
			_, err := st.Save(ctx, "scene_a", document.NewEmptyDocument(""))
			require.NoError(t, err)

			all, err := st.List(ctx, "")
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "scene_a", all[0].ID, "most recently saved first")
			assert.Nil(t, all[0].Document)

			mine, err := st.List(ctx, "user_1")
			require.NoError(t, err)
			assert.Len(t, mine, 2)
		})
	}
}

func TestMemoryIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	doc := document.NewSampleDocument()
	_, err := m.Create(ctx, &Scene{ID: "scene_a", Document: doc})
	require.NoError(t, err)

	doc.Canvases[0].Name = "changed"
	got, err := m.Get(ctx, "scene_a")
	require.NoError(t, err)
	assert.Equal(t, "Canvas0", got.Document.Canvases[0].Name)

	got.Document.Canvases[0].Name = "changed again"
	again, err := m.Get(ctx, "scene_a")
	require.NoError(t, err)
	assert.Equal(t, "Canvas0", again.Document.Canvases[0].Name)
}

func TestFileRejectsPathIDs(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	_, err = f.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, WriteDocument(path, document.NewSampleDocument()))

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.FilePath)
	assert.Len(t, doc.Canvases, 3)

	_, err = ReadDocument(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = ReadDocument(path)
	assert.Error(t, err)
}
