package models

import "time"

// Song is a catalog entry backed by one stored audio file
type Song struct {
	ID         string    `json:"id" bson:"_id"`
	Title      string    `json:"title" bson:"title"`
	Artist     string    `json:"artist" bson:"artist"`
	Album      string    `json:"album,omitempty" bson:"album,omitempty"`
	Duration   int       `json:"duration" bson:"duration"` // in seconds
	FileURL    string    `json:"fileUrl" bson:"fileUrl"`
	UploadedBy string    `json:"uploadedBy" bson:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}
