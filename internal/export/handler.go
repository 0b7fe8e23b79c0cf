package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/cherish/cherish/backend-go/internal/asset"
	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/engine"
	"github.com/cherish/cherish/backend-go/internal/scene"
)

// Documents returns the newest document of a scene.
type Documents interface {
	Document(ctx context.Context, sceneID string) (*document.SceneDocument, error)
}

type Handler struct {
	docs     Documents
	load     PhotoLoader
	maxWidth int
}

func NewHandler(docs Documents, load PhotoLoader, maxWidth int) *Handler {
	return &Handler{docs: docs, load: load, maxWidth: maxWidth}
}

// CanvasImage handles GET /api/scenes/{sceneId}/canvases/{canvasId}/image.png.
// The optional width and stroke query parameters are in pixels.
func (h *Handler) CanvasImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	canvasID, err := strconv.ParseUint(vars["canvasId"], 10, 0)
	if err != nil {
		http.Error(w, "invalid canvas id", http.StatusBadRequest)
		return
	}

	opt := Options{Width: DefaultWidth}
	if v := r.URL.Query().Get("width"); v != "" {
		opt.Width, err = strconv.Atoi(v)
		if err != nil || opt.Width <= 0 || opt.Width > h.maxWidth {
			http.Error(w, fmt.Sprintf("invalid width: must be 1 to %d", h.maxWidth), http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("stroke"); v != "" {
		opt.StrokeWidth, err = strconv.ParseFloat(v, 64)
		if err != nil || opt.StrokeWidth <= 0 || opt.StrokeWidth > 64 {
			http.Error(w, "invalid stroke width", http.StatusBadRequest)
			return
		}
	}

	doc, err := h.docs.Document(r.Context(), vars["sceneId"])
	if errors.Is(err, scene.ErrNotFound) {
		http.Error(w, "scene not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load scene for export", "error", err, "sceneId", vars["sceneId"])
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sc, err := engine.BuildScene(doc)
	if err != nil {
		http.Error(w, "scene document does not load", http.StatusUnprocessableEntity)
		return
	}
	c := sc.Canvas(uint(canvasID))
	if c == nil {
		http.Error(w, "canvas not found", http.StatusNotFound)
		return
	}

	slog.Info("export started", "sceneId", vars["sceneId"], "canvas", c.Name(), "width", opt.Width)

	img, err := RenderCanvas(c, opt, h.load)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("encode canvas image", "error", err)
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.png"`, sanitize(c.Name())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())

	slog.Info("export complete", "canvas", c.Name(), "size", buf.Len())
}

func sanitize(name string) string {
	if name == "" {
		return "canvas"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

// AssetLoader resolves photo paths of the form /assets/<id>.png against
// the asset store. Other paths are not loaded.
func AssetLoader(assets *asset.Handler) PhotoLoader {
	return func(path string) (image.Image, error) {
		id, ok := strings.CutPrefix(path, "/assets/")
		if !ok {
			return nil, fmt.Errorf("not an asset path: %q", path)
		}
		file, err := assets.Path(strings.TrimSuffix(id, ".png"))
		if err != nil {
			return nil, err
		}
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return png.Decode(f)
	}
}
