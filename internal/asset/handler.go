// Package asset stores the images that photos on a canvas are textured with.
package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"

	"github.com/cherish/cherish/backend-go/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

var ErrNotFound = errors.New("asset not found")

// UploadResponse is returned from the upload endpoint. Aspect is height over
// width, the ratio a photo keeps when it is placed on a canvas.
type UploadResponse struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Aspect float64 `json:"aspect"`
	Type   string  `json:"type"`
	Name   string  `json:"name"`
}

var supportedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/bmp":  true,
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	dir string
}

func NewHandler(dir string) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
// Every accepted image is stored as PNG.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType, _, _ := strings.Cut(header.Header.Get("Content-Type"), ";")
	if !supportedTypes[strings.TrimSpace(contentType)] {
		http.Error(w, "only PNG, JPEG and BMP images are supported", http.StatusBadRequest)
		return
	}

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		http.Error(w, "image has no pixels", http.StatusBadRequest)
		return
	}

	assetID := typeid.NewAssetID()
	filename := assetID + ".png"
	if err := h.writePNG(filepath.Join(h.dir, filename), img); err != nil {
		slog.Error("store asset", "error", err, "asset", assetID)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	slog.Debug("asset stored", "asset", assetID, "source", format)

	resp := UploadResponse{
		ID:     assetID,
		URL:    fmt.Sprintf("/assets/%s", filename),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Aspect: float64(bounds.Dy()) / float64(bounds.Dx()),
		Type:   "png",
		Name:   header.Filename,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("encode png: %w", err)
	}
	return out.Close()
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Path returns the file of a stored asset, checking that it exists.
func (h *Handler) Path(assetID string) (string, error) {
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	path := filepath.Join(h.dir, assetID+".png")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return path, nil
}

// Delete removes an asset file from disk.
func (h *Handler) Delete(assetID string) error {
	path, err := h.Path(assetID)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
