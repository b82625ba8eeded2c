// Package history keeps every stored melody result in Postgres, beyond the
// single slot the bridge serves.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/notation"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Entry is a history record with its notes parsed back into events.
type Entry struct {
	ID         uint               `json:"id"`
	SessionID  string             `json:"session_id"`
	Source     string             `json:"source"`
	AddedNotes []models.NoteEvent `json:"added_notes"`
	FullTrack  []models.NoteEvent `json:"full_track"`
	Timestamp  string             `json:"timestamp,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record stores result under sessionID.
func (r *Repository) Record(ctx context.Context, sessionID, source string, result models.MelodyResult) error {
	rec, err := toRecord(sessionID, source, result)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var records []models.CaptureRecord
	if err := r.recentQuery(ctx, clampLimit(limit)).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entry, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Repository) recentQuery(ctx context.Context, limit int) *gorm.DB {
	return r.db.WithContext(ctx).Order("created_at desc, id desc").Limit(limit)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func toRecord(sessionID, source string, result models.MelodyResult) (models.CaptureRecord, error) {
	added, err := notation.NotesToText(result.AddedNotes)
	if err != nil {
		return models.CaptureRecord{}, err
	}
	full, err := notation.NotesToText(result.FullTrack)
	if err != nil {
		return models.CaptureRecord{}, err
	}
	return models.CaptureRecord{
		SessionID:       sessionID,
		Source:          source,
		AddedCount:      len(result.AddedNotes),
		AddedNotesText:  added,
		FullTrackText:   full,
		ResultTimestamp: result.Timestamp,
	}, nil
}

func fromRecord(rec models.CaptureRecord) (Entry, error) {
	added, err := parseNotes(rec.AddedNotesText)
	if err != nil {
		return Entry{}, fmt.Errorf("history record %d: %w", rec.ID, err)
	}
	full, err := parseNotes(rec.FullTrackText)
	if err != nil {
		return Entry{}, fmt.Errorf("history record %d: %w", rec.ID, err)
	}
	return Entry{
		ID:         rec.ID,
		SessionID:  rec.SessionID,
		Source:     rec.Source,
		AddedNotes: added,
		FullTrack:  full,
		Timestamp:  rec.ResultTimestamp,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

// parseNotes treats empty text as no notes.
func parseNotes(text string) ([]models.NoteEvent, error) {
	notes, err := notation.NotesFromText(text)
	if errors.Is(err, notation.ErrEmptyMelody) {
		return []models.NoteEvent{}, nil
	}
	return notes, err
}
