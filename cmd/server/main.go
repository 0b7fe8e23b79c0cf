package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/cherish/cherish/backend-go/internal/asset"
	"github.com/cherish/cherish/backend-go/internal/auth"
	"github.com/cherish/cherish/backend-go/internal/collab"
	"github.com/cherish/cherish/backend-go/internal/config"
	"github.com/cherish/cherish/backend-go/internal/document"
	"github.com/cherish/cherish/backend-go/internal/export"
	mw "github.com/cherish/cherish/backend-go/internal/middleware"
	"github.com/cherish/cherish/backend-go/internal/scene"
	"github.com/cherish/cherish/backend-go/internal/store"
	"github.com/cherish/cherish/backend-go/internal/typeid"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scenes, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open scene store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	authService := auth.NewService(cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	// Document loader and saver for the collaboration hub
	docLoader := func(ctx context.Context, sceneID string) (*document.SceneDocument, error) {
		s, err := scenes.Get(ctx, sceneID)
		if err != nil {
			return nil, err
		}
		return s.Document, nil
	}
	docSaver := func(ctx context.Context, sceneID string, doc *document.SceneDocument) error {
		_, err := scenes.Save(ctx, sceneID, doc)
		return err
	}

	hub := collab.NewHub(docLoader, docSaver, cfg.AutosaveInterval)
	go hub.Run()

	sceneService := scene.NewService(scenes, hub)
	sceneHandler := scene.NewHandler(sceneService)
	assetHandler := asset.NewHandler(cfg.AssetDir)
	exportHandler := export.NewHandler(sceneService, export.AssetLoader(assetHandler), cfg.ExportMaxWidth)
	origins := mw.SplitOrigins(cfg.AllowedOrigins)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(origins))

	// Auth routes (public)
	r.HandleFunc("/auth/token", authHandler.Token).Methods("POST", "OPTIONS")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Asset endpoints
	r.Handle("/assets/upload", authService.AuthMiddleware(http.HandlerFunc(assetHandler.Upload))).Methods("POST", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/scenes", sceneHandler.List).Methods("GET")
	api.HandleFunc("/scenes", sceneHandler.Create).Methods("POST")
	api.HandleFunc("/scenes/{sceneId}", sceneHandler.Get).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}", sceneHandler.Delete).Methods("DELETE")
	api.HandleFunc("/scenes/{sceneId}/document", sceneHandler.GetDocument).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}/document", sceneHandler.PutDocument).Methods("PUT")
	api.HandleFunc("/scenes/{sceneId}/draw", sceneHandler.Draw).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}/canvases/{canvasId}/image.png", exportHandler.CanvasImage).Methods("GET")

	// WebSocket endpoint
	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(authService.AuthMiddleware)
	ws.HandleFunc("/scene/{sceneId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, scenes, mw.OriginPatterns(origins))
	})

	// Preflight for every route; CORS answers it
	r.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first to save all dirty scenes
		slog.Info("saving all scenes...")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore uses Postgres when a database URL is configured and one JSON
// file per scene otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		fs, err := store.NewFile(cfg.SceneDir)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("storing scenes on disk", "dir", cfg.SceneDir)
		return fs, func() {}, nil
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := store.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("storing scenes in postgres")
	return pg, pool.Close, nil
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, scenes store.Store, originPatterns []string) {
	sceneID := mux.Vars(r)["sceneId"]
	user := auth.UserFromContext(r.Context())

	if _, err := scenes.Get(r.Context(), sceneID); err != nil {
		http.Error(w, "scene not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := collab.NewClient(hub, conn, user.ID, user.DisplayName, sceneID, typeid.NewClientID())
	if !hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
