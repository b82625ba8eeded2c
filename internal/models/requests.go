package models

// Length units accepted by CompleteRequest.LengthUnit
const (
	LengthUnitBar  = "bar"
	LengthUnitStep = "step"
	LengthUnitMS   = "ms"
)

// CompleteRequest asks for a continuation of a seed melody.
// It is both the HTTP body of POST /complete and the capture datagram sent by the controller.
type CompleteRequest struct {
	OriginalNotes []NoteEvent  `json:"original_notes" binding:"required,dive"`
	Mood          string       `json:"mood" binding:"required"`
	BPM           float64      `json:"bpm" binding:"required,gt=0"`
	LengthValue   float64      `json:"length_value" binding:"required,gt=0"`
	LengthUnit    string       `json:"length_unit" binding:"required"`
	Adventureness float64      `json:"adventureness" binding:"gte=0,lte=100"`
	Chords        []ChordEvent `json:"chords,omitempty"`
}

// CompleteResponse is returned by POST /complete.
type CompleteResponse struct {
	FullTrack  []NoteEvent `json:"full_track"`
	AddedNotes []NoteEvent `json:"added_notes"`
}

// DefaultSeedResponse is returned by GET /default.
type DefaultSeedResponse struct {
	Notes      []NoteEvent         `json:"notes"`
	BPM        float64             `json:"bpm"`
	NotesText  string              `json:"notes_text"`
	Chords     []ChordEvent        `json:"chords"`
	ChordsText string              `json:"chords_text"`
	Voicings   map[string][]string `json:"voicings"`
}

// BridgeLatestResponse is returned by GET /bridge/latest.
type BridgeLatestResponse struct {
	AddedNotes []NoteEvent `json:"added_notes"`
	FullTrack  []NoteEvent `json:"full_track"`
	Timestamp  *string     `json:"timestamp"`
	HasData    bool        `json:"has_data"`
	SessionID  string      `json:"session_id,omitempty"`
}

// NotifyRequest is the body of POST /bridge/notify-max.
type NotifyRequest struct {
	Event string         `json:"event" binding:"required"`
	Data  map[string]any `json:"data"`
}
