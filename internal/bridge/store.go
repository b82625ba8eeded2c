// Package bridge connects the controller's UDP traffic to the HTTP consumers:
// it owns the capture session and the single-slot result store, the receive
// loop, and the outbound notifier.
package bridge

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Conceptual-Machines/melody-bridge/internal/models"
	"github.com/Conceptual-Machines/melody-bridge/internal/payload"
)

// State is the capture session state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateStored
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateStored:
		return "stored"
	default:
		return "idle"
	}
}

// Capture describes a session opened by StartCapture.
type Capture struct {
	SessionID   string
	ListenStart time.Time
}

// Snapshot is a consistent copy of the latest result.
type Snapshot struct {
	Result    models.MelodyResult
	Timestamp time.Time
	HasData   bool
	SessionID string
}

// Status summarises the capture session without copying the result.
type Status struct {
	State       State
	SessionID   string
	ListenStart time.Time
	StoredAt    time.Time
	AddedNotes  int
}

// Store is the process-wide capture session and single-slot result cache.
// All methods are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	state       State
	sessionID   string
	listenStart time.Time
	latest      models.MelodyResult
	storedAt    time.Time

	now   func() time.Time
	newID func() string
}

// NewStore returns an idle store.
func NewStore() *Store {
	return &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// StartCapture opens a new session and discards any stored result so a
// poller cannot mistake it for the answer to this capture.
func (s *Store) StartCapture() Capture {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateListening
	s.sessionID = s.newID()
	s.listenStart = s.now()
	s.latest = models.MelodyResult{}
	s.storedAt = time.Time{}

	return Capture{SessionID: s.sessionID, ListenStart: s.listenStart}
}

// StoreResult validates obj as a result payload and stores it.
// On error the store is left unchanged.
func (s *Store) StoreResult(obj map[string]any) (Snapshot, error) {
	result, err := payload.DecodeResult(obj)
	if err != nil {
		return Snapshot{}, err
	}
	return s.StoreMelody(result), nil
}

// StoreMelody stores an already decoded result. Results arriving while idle
// are accepted and attached to the most recent session, if any.
func (s *Store) StoreMelody(result models.MelodyResult) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateStored
	s.latest = result.Clone()
	s.storedAt = s.now()

	return s.snapshotLocked()
}

// ReadLatest returns the stored result, if any. It never waits for one.
func (s *Store) ReadLatest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateStored {
		return Snapshot{SessionID: s.sessionID}
	}
	return s.snapshotLocked()
}

// Status reports the current session state.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:       s.state,
		SessionID:   s.sessionID,
		ListenStart: s.listenStart,
		StoredAt:    s.storedAt,
	}
	if s.state == StateStored {
		st.AddedNotes = len(s.latest.AddedNotes)
	}
	return st
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Result:    s.latest.Clone(),
		Timestamp: s.storedAt,
		HasData:   true,
		SessionID: s.sessionID,
	}
}
