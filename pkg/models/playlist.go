package models

import (
	"slices"
	"time"
)

// Playlist is a user-owned ordered list of song references.
// Songs holds song IDs only; a referenced song may no longer exist.
type Playlist struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	IsPublic    bool      `json:"isPublic" bson:"isPublic"`
	CreatedBy   string    `json:"createdBy" bson:"createdBy"`
	Songs       []string  `json:"songs" bson:"songs"`
	Version     int64     `json:"version" bson:"version"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasSong reports whether songID is already referenced
func (p *Playlist) HasSong(songID string) bool {
	return slices.Contains(p.Songs, songID)
}

// PopulatedPlaylist is a playlist view with song references resolved.
// Dangling references are left out of Songs but kept in SongIDs.
type PopulatedPlaylist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	CreatedBy   string    `json:"createdBy"`
	Songs       []Song    `json:"songs"`
	SongIDs     []string  `json:"songIds"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
