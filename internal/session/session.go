// Package session tracks per-connection state: the accumulated transcript,
// sequence counters, and the open/closed flag.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Segment is one transcribed utterance in the session transcript.
type Segment struct {
	Seq       int
	Text      string
	Timestamp time.Time // utterance start time
}

// Session is the server-side state for one client connection. It is the sole
// owner of its transcript.
type Session struct {
	ID        string
	StartedAt time.Time

	mu       sync.Mutex
	active   bool
	epoch    uint64 // bumped by Clear; results from older epochs are stale
	seq      int
	segments []Segment
}

// Active reports whether the session's connection is still open.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close marks the session inactive. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// Epoch returns the current clear epoch.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Append adds a transcription segment if the session is still active and the
// result belongs to the current clear epoch. It returns the assigned sequence
// number and whether the segment was accepted.
func (s *Session) Append(text string, ts time.Time, epoch uint64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || epoch != s.epoch {
		return 0, false
	}
	s.seq++
	s.segments = append(s.segments, Segment{Seq: s.seq, Text: text, Timestamp: ts})
	return s.seq, true
}

// Clear atomically resets the transcript and bumps the clear epoch so that
// in-flight results for already-segmented audio are discarded on arrival.
func (s *Session) Clear() {
	s.mu.Lock()
	s.segments = nil
	s.epoch++
	s.mu.Unlock()
}

// FullText joins all transcript segments with single spaces.
func (s *Session) FullText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := make([]string, 0, len(s.segments))
	for _, seg := range s.segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

// SegmentCount returns the number of transcript segments.
func (s *Session) SegmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}

// Registry tracks all live sessions by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new active session with a fresh id.
func (r *Registry) Create() *Session {
	s := &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		active:    true,
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and deregisters a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
