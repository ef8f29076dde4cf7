package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tunedeck/internal/auth"
	"tunedeck/internal/catalog"
	"tunedeck/internal/config"
	"tunedeck/internal/media"
	"tunedeck/internal/playlist"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether the persistence backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP layer is built on
type Deps struct {
	Auth      *auth.Service
	Catalog   *catalog.Service
	Playlists *playlist.Service
	Store     *media.Store
	DB        Pinger
	Logger    *logrus.Logger
}

// Server exposes the REST API and serves stored audio
type Server struct {
	config    *config.Config
	auth      *auth.Service
	catalog   *catalog.Service
	playlists *playlist.Service
	store     *media.Store
	db        Pinger
	logger    *logrus.Logger
	watcher   *media.Watcher
	started   time.Time
}

// New creates a server instance
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{
		config:    cfg,
		auth:      deps.Auth,
		catalog:   deps.Catalog,
		playlists: deps.Playlists,
		store:     deps.Store,
		db:        deps.DB,
		logger:    deps.Logger,
		started:   time.Now(),
	}
}

// Router builds the HTTP handler with all routes and middleware
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.panicRecoveryMiddleware)
	r.Use(s.requestLoggingMiddleware)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get(s.config.SongsURLPrefix()+"/{file}", s.handleServeAudio)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware(s.respondWithServiceError))

			r.Get("/auth/me", s.handleMe)

			r.Get("/songs", s.handleListSongs)
			r.Post("/songs/upload", s.handleUploadSong)
			r.Get("/songs/{id}", s.handleGetSong)
			r.Delete("/songs/{id}", s.handleDeleteSong)

			r.Post("/playlists", s.handleCreatePlaylist)
			r.Get("/playlists/my-playlists", s.handleMyPlaylists)
			r.Get("/playlists/{id}", s.handleGetPlaylist)
			r.Delete("/playlists/{id}", s.handleDeletePlaylist)
			r.Post("/playlists/{id}/songs", s.handleAddSong)
			r.Delete("/playlists/{id}/songs/{songId}", s.handleRemoveSong)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			s.respondWithError(w, r, http.StatusNotFound, "Route not found", nil)
		})
	})

	if s.config.Server.StaticDir != "" {
		r.Get("/*", s.handleHome)
	}

	return r
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	if s.config.Media.WatchForChanges {
		if err := s.startFileWatcher(); err != nil {
			s.logger.WithError(err).Warn("Could not start file watcher")
		} else {
			defer s.stopFileWatcher()
		}
	}

	httpServer := &http.Server{
		Addr:         s.config.GetAddress(),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	songs, err := s.catalog.ListSongs(ctx)
	songCount := 0
	if err == nil {
		songCount = len(songs)
	}

	s.logger.WithFields(logrus.Fields{
		"address":   fmt.Sprintf("http://%s", s.config.GetAddress()),
		"songs":     songCount,
		"songs_dir": s.store.Dir(),
		"driver":    s.config.Database.Driver,
	}).Info("Tunedeck server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
