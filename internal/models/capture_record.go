package models

import (
	"time"
)

// CaptureRecord is one stored result kept in the history table. Notes are
// stored in canonical note-line text.
type CaptureRecord struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	SessionID       string    `gorm:"index" json:"session_id"`
	Source          string    `gorm:"not null" json:"source"` // "udp", "http" or "capture"
	AddedCount      int       `json:"added_count"`
	AddedNotesText  string    `gorm:"type:text" json:"added_notes_text"`
	FullTrackText   string    `gorm:"type:text" json:"full_track_text"`
	ResultTimestamp string    `json:"result_timestamp,omitempty"`
}
