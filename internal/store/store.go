// Package store archives sessions, transcript segments and summaries in
// Postgres. Persistence is optional: a Store with a nil pool is a no-op and
// the server runs fully in memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Session is one archived client connection.
type Session struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	SegmentCount int        `json:"segment_count"`
}

// Segment is one transcribed utterance within a session.
type Segment struct {
	SessionID string    `json:"session_id"`
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a stored summarization result.
type Summary struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Summary     string    `json:"summary"`
	NotionURL   *string   `json:"notion_url,omitempty"`
	NotionTitle *string   `json:"notion_title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) enabled() bool {
	return s != nil && s.db != nil
}

func (s *Store) CreateSession(ctx context.Context, id string, startedAt time.Time) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, started_at)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, id, startedAt)
	return err
}

func (s *Store) CloseSession(ctx context.Context, id string, endedAt time.Time, segmentCount int) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET ended_at = $2, segment_count = $3 WHERE id = $1
	`, id, endedAt, segmentCount)
	return err
}

func (s *Store) InsertSegment(ctx context.Context, seg Segment) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO transcript_segments (session_id, sequence, text, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, sequence) DO NOTHING
	`, seg.SessionID, seg.Sequence, seg.Text, seg.CreatedAt)
	return err
}

// ClearSegments removes the archived transcript for a session, mirroring the
// in-memory clear.
func (s *Store) ClearSegments(ctx context.Context, sessionID string) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		DELETE FROM transcript_segments WHERE session_id = $1
	`, sessionID)
	return err
}

func (s *Store) GetTranscript(ctx context.Context, sessionID string) ([]Segment, error) {
	if !s.enabled() {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT session_id, sequence, text, created_at
		FROM transcript_segments
		WHERE session_id = $1
		ORDER BY sequence
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.SessionID, &seg.Sequence, &seg.Text, &seg.CreatedAt); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	if !s.enabled() {
		return nil, nil
	}
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, started_at, ended_at, COALESCE(segment_count, 0)
		FROM sessions WHERE id = $1
	`, id).Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.SegmentCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SaveSummary(ctx context.Context, sessionID, summary string, notionURL, notionTitle *string) error {
	if !s.enabled() {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO summaries (id, session_id, summary, notion_url, notion_title)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
	`, sessionID, summary, notionURL, notionTitle)
	return err
}

func (s *Store) ListSummaries(ctx context.Context, sessionID string) ([]Summary, error) {
	if !s.enabled() {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, summary, notion_url, notion_title, created_at
		FROM summaries
		WHERE session_id = $1
		ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.SessionID, &sum.Summary, &sum.NotionURL, &sum.NotionTitle, &sum.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
