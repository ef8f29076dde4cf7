package catalog

import (
	"context"
	"errors"
	"time"

	"tunedeck/internal/apperr"

	"github.com/sirupsen/logrus"
)

// OrphanGracePeriod is how old a file without a record must be before it
// may be pruned. Younger files can belong to an upload whose record is
// about to be saved.
const OrphanGracePeriod = time.Minute

// ReconcileReport lists disagreements between stored files and song records
type ReconcileReport struct {
	OrphanFiles     []string `json:"orphanFiles"`     // files without a record
	DanglingRecords []string `json:"danglingRecords"` // song IDs whose file is missing
	Pruned          []string `json:"pruned,omitempty"`
	Recent          []string `json:"recent,omitempty"` // orphans left alone, too new to prune
}

// Reconcile compares the songs directory with the catalog. With prune set,
// orphan files older than the grace period are removed. Dangling records are
// only reported.
func (s *Service) Reconcile(ctx context.Context, prune bool) (*ReconcileReport, error) {
	files, err := s.media.List()
	if err != nil {
		return nil, err
	}

	songs, err := s.songs.ListSongs(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, "Failed to list songs", err)
	}

	referenced := make(map[string]bool, len(songs))
	report := &ReconcileReport{
		OrphanFiles:     []string{},
		DanglingRecords: []string{},
	}

	for _, song := range songs {
		referenced[song.FileURL] = true
		if !s.media.Exists(song.FileURL) {
			report.DanglingRecords = append(report.DanglingRecords, song.ID)
		}
	}

	for _, fileURL := range files {
		if referenced[fileURL] {
			continue
		}
		report.OrphanFiles = append(report.OrphanFiles, fileURL)
		if prune {
			if s.isRecent(fileURL) {
				report.Recent = append(report.Recent, fileURL)
				continue
			}
			if err := s.media.Delete(fileURL); err != nil {
				s.logger.WithError(err).WithField("file_url", fileURL).Error("Failed to prune orphan file")
				continue
			}
			report.Pruned = append(report.Pruned, fileURL)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"orphan_files":     len(report.OrphanFiles),
		"dangling_records": len(report.DanglingRecords),
		"pruned":           len(report.Pruned),
		"recent":           len(report.Recent),
	}).Info("Catalog reconciled")

	return report, nil
}

// isRecent reports whether fileURL was written within the grace period. A
// file that cannot be inspected counts as recent.
func (s *Service) isRecent(fileURL string) bool {
	modTime, err := s.media.ModTime(fileURL)
	if err != nil {
		s.logger.WithError(err).WithField("file_url", fileURL).Warn("Failed to inspect orphan file, not pruning")
		return true
	}
	return s.now().Sub(modTime) < s.orphanGrace
}

// FileRemoved is called when a stored file disappears outside of DeleteSong.
// It warns if a song still points at the file.
func (s *Service) FileRemoved(ctx context.Context, fileURL string) {
	song, err := s.songs.GetSongByFileURL(ctx, fileURL)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.WithError(err).WithField("file_url", fileURL).Error("Failed to look up removed file")
		}
		return
	}

	s.logger.WithFields(logrus.Fields{
		"song_id":  song.ID,
		"title":    song.Title,
		"file_url": fileURL,
	}).Warn("File of an existing song was removed from disk")
}
