package export

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cherish/cherish/backend-go/internal/asset"
	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/engine"
	"github.com/cherish/cherish/backend-go/internal/scene"
	"github.com/cherish/cherish/backend-go/internal/typeid"
)

func canvasDoc(c document.Canvas) *document.SceneDocument {
	doc := document.NewEmptyDocument("")
	doc.Canvases = []document.Canvas{c}
	return doc
}

func buildCanvas(t *testing.T, c document.Canvas) *engine.Canvas {
	t.Helper()
	sc, err := engine.BuildScene(canvasDoc(c))
	require.NoError(t, err)
	out := sc.Canvas(c.ID)
	require.NotNil(t, out)
	return out
}

func strokeCanvas() document.Canvas {
	return document.Canvas{
		ID:       0,
		Name:     "Canvas0",
		Rotation: document.Quat{0, 0, 0, 1},
		Visible:  true,
		Strokes: []document.Stroke{{
			Points:    []document.Vec3{{-0.25, 0, 0}, {0.25, 0, 0}},
			Color:     document.Color{1, 0, 0, 1},
			Primitive: document.PrimitiveLineStripAdjacency,
		}},
		Photos: []document.Photo{},
	}
}

func photoCanvas() document.Canvas {
	return document.Canvas{
		ID:       4,
		Name:     "Canvas4",
		Rotation: document.Quat{0, 0, 0, 1},
		Visible:  true,
		Strokes:  []document.Stroke{},
		Photos: []document.Photo{{
			ID: 0, Path: "/assets/photo.png",
			Width: 0.5, Height: 0.5, Opacity: 1,
		}},
	}
}

// splitImage is red on its upper half and blue on its lower half.
func splitImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.RGBA{R: 255, A: 255}
			if y >= 2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func assertColor(t *testing.T, want color.RGBA, img *image.RGBA, x, y int) {
	t.Helper()
	got := img.RGBAAt(x, y)
	assert.InDelta(t, want.R, got.R, 2, "red at %d,%d", x, y)
	assert.InDelta(t, want.G, got.G, 2, "green at %d,%d", x, y)
	assert.InDelta(t, want.B, got.B, 2, "blue at %d,%d", x, y)
	assert.InDelta(t, want.A, got.A, 2, "alpha at %d,%d", x, y)
}

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{R: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	gray  = color.RGBA{0x99, 0x99, 0x99, 255}
)

func TestRenderCanvasStroke(t *testing.T) {
	c := buildCanvas(t, strokeCanvas())

	// Frame rect is [-0.75, 0.75] x [-0.5, 0.5], 200 pixels per unit.
	img, err := RenderCanvas(c, Options{Width: 300}, nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 200), img.Bounds())

	assertColor(t, red, img, 150, 100)
	assertColor(t, red, img, 101, 100)
	assertColor(t, white, img, 150, 50)
	assertColor(t, white, img, 50, 100)
	assertColor(t, white, img, 5, 5)
}

func TestRenderCanvasStrokeWidth(t *testing.T) {
	c := buildCanvas(t, strokeCanvas())

	thin, err := RenderCanvas(c, Options{Width: 300}, nil)
	require.NoError(t, err)
	thick, err := RenderCanvas(c, Options{Width: 300, StrokeWidth: 20}, nil)
	require.NoError(t, err)

	assertColor(t, white, thin, 150, 108)
	assertColor(t, red, thick, 150, 108)
}

func TestRenderCanvasPhoto(t *testing.T) {
	c := buildCanvas(t, photoCanvas())

	var asked string
	load := func(path string) (image.Image, error) {
		asked = path
		return splitImage(), nil
	}

	// Frame rect is [-0.75, 0.75] squared; the photo covers pixels 100 to 200.
	img, err := RenderCanvas(c, Options{Width: 300}, load)
	require.NoError(t, err)
	assert.Equal(t, "/assets/photo.png", asked)
	assert.Equal(t, image.Rect(0, 0, 300, 300), img.Bounds())

	assertColor(t, red, img, 150, 110)
	assertColor(t, blue, img, 150, 190)
	assertColor(t, white, img, 150, 90)
	assertColor(t, white, img, 90, 150)
}

func TestRenderCanvasPhotoPlaceholder(t *testing.T) {
	c := buildCanvas(t, photoCanvas())

	img, err := RenderCanvas(c, Options{Width: 300}, nil)
	require.NoError(t, err)
	assertColor(t, gray, img, 150, 150)

	failing := func(string) (image.Image, error) { return nil, os.ErrNotExist }
	img, err = RenderCanvas(c, Options{Width: 300}, failing)
	require.NoError(t, err)
	assertColor(t, gray, img, 150, 150)
}

func TestRenderCanvasEmpty(t *testing.T) {
	c := buildCanvas(t, document.Canvas{ID: 0, Name: "Canvas0", Visible: true})

	img, err := RenderCanvas(c, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, DefaultWidth, DefaultWidth), img.Bounds())
	assertColor(t, white, img, DefaultWidth/2, DefaultWidth/2)

	_, err = RenderCanvas(c, Options{Width: -1}, nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

type fakeDocs map[string]*document.SceneDocument

func (f fakeDocs) Document(_ context.Context, sceneID string) (*document.SceneDocument, error) {
	doc, ok := f[sceneID]
	if !ok {
		return nil, scene.ErrNotFound
	}
	return doc, nil
}

func newRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/scenes/{sceneId}/canvases/{canvasId}/image.png", h.CanvasImage).Methods("GET")
	return r
}

func TestCanvasImageHandler(t *testing.T) {
	docs := fakeDocs{"scene_a": canvasDoc(strokeCanvas())}
	router := newRouter(NewHandler(docs, nil, 2048))

	tests := []struct {
		name   string
		url    string
		status int
	}{
		{"default width", "/api/scenes/scene_a/canvases/0/image.png", http.StatusOK},
		{"custom width", "/api/scenes/scene_a/canvases/0/image.png?width=150&stroke=4", http.StatusOK},
		{"unknown scene", "/api/scenes/scene_b/canvases/0/image.png", http.StatusNotFound},
		{"unknown canvas", "/api/scenes/scene_a/canvases/7/image.png", http.StatusNotFound},
		{"bad canvas id", "/api/scenes/scene_a/canvases/x/image.png", http.StatusBadRequest},
		{"too wide", "/api/scenes/scene_a/canvases/0/image.png?width=4096", http.StatusBadRequest},
		{"zero width", "/api/scenes/scene_a/canvases/0/image.png?width=0", http.StatusBadRequest},
		{"bad stroke", "/api/scenes/scene_a/canvases/0/image.png?stroke=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCanvasImageHandlerResponse(t *testing.T) {
	docs := fakeDocs{"scene_a": canvasDoc(strokeCanvas())}
	router := newRouter(NewHandler(docs, nil, 2048))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenes/scene_a/canvases/0/image.png?width=150", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="Canvas0.png"`, rec.Header().Get("Content-Disposition"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 150, 100), img.Bounds())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "canvas", sanitize(""))
	assert.Equal(t, "Canvas0", sanitize("Canvas0"))
	assert.Equal(t, "my-sketch-v2", sanitize("my sketch/v2"))
}

func TestAssetLoader(t *testing.T) {
	dir := t.TempDir()
	assets := asset.NewHandler(dir)

	id := typeid.NewAssetID()
	f, err := os.Create(filepath.Join(dir, id+".png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, splitImage()))
	require.NoError(t, f.Close())

	load := AssetLoader(assets)
	img, err := load("/assets/" + id + ".png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())

	_, err = load("/elsewhere/" + id + ".png")
	assert.Error(t, err)

	_, err = load("/assets/" + typeid.NewAssetID() + ".png")
	assert.ErrorIs(t, err, asset.ErrNotFound)
}
