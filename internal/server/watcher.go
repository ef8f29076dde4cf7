package server

import (
	"context"
	"time"

	"tunedeck/internal/media"
)

// startFileWatcher reports song files removed from disk behind the catalog's back
func (s *Server) startFileWatcher() error {
	watcher := media.NewWatcher(s.store, s.handleRemovedFile, s.logger)
	if err := watcher.Start(); err != nil {
		return err
	}
	s.watcher = watcher
	return nil
}

// handleRemovedFile lets the catalog check whether a song still points at fileURL
func (s *Server) handleRemovedFile(fileURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.catalog.FileRemoved(ctx, fileURL)
}

// stopFileWatcher closes the watcher (idempotent).
func (s *Server) stopFileWatcher() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
