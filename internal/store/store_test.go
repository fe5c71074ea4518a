package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// getTestDB returns a database pool for testing.
// Skips the test if DATABASE_URL is not set.
func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

func TestNilPoolIsNoOp(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	if err := s.CreateSession(ctx, "s1", time.Now()); err != nil {
		t.Errorf("CreateSession with nil pool: %v", err)
	}
	if err := s.InsertSegment(ctx, Segment{SessionID: "s1", Sequence: 1, Text: "hi"}); err != nil {
		t.Errorf("InsertSegment with nil pool: %v", err)
	}
	segments, err := s.GetTranscript(ctx, "s1")
	if err != nil {
		t.Errorf("GetTranscript with nil pool: %v", err)
	}
	if segments != nil {
		t.Errorf("GetTranscript with nil pool = %v, want nil", segments)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	id := uuid.NewString()
	started := time.Now().UTC().Truncate(time.Millisecond)

	if err := s.CreateSession(ctx, id, started); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		seg := Segment{SessionID: id, Sequence: i, Text: "segment text", CreatedAt: time.Now().UTC()}
		if err := s.InsertSegment(ctx, seg); err != nil {
			t.Fatalf("InsertSegment %d failed: %v", i, err)
		}
	}

	segments, err := s.GetTranscript(ctx, id)
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if len(segments) != 3 {
		t.Errorf("segment count = %d, want 3", len(segments))
	}
	for i, seg := range segments {
		if seg.Sequence != i+1 {
			t.Errorf("segment %d sequence = %d, want %d", i, seg.Sequence, i+1)
		}
	}

	if err := s.CloseSession(ctx, id, time.Now().UTC(), 3); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess == nil {
		t.Fatal("GetSession returned nil for an existing session")
	}
	if sess.EndedAt == nil {
		t.Error("session should have an end time after CloseSession")
	}
	if sess.SegmentCount != 3 {
		t.Errorf("segment_count = %d, want 3", sess.SegmentCount)
	}

	// Cleanup
	_, _ = db.Exec(ctx, "DELETE FROM transcript_segments WHERE session_id = $1", id)
	_, _ = db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
}

func TestClearSegments(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	id := uuid.NewString()
	if err := s.CreateSession(ctx, id, time.Now().UTC()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := s.InsertSegment(ctx, Segment{SessionID: id, Sequence: 1, Text: "to be cleared", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("InsertSegment failed: %v", err)
	}

	if err := s.ClearSegments(ctx, id); err != nil {
		t.Fatalf("ClearSegments failed: %v", err)
	}
	segments, err := s.GetTranscript(ctx, id)
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("segment count after clear = %d, want 0", len(segments))
	}

	_, _ = db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
}

func TestSaveSummary(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	id := uuid.NewString()
	if err := s.CreateSession(ctx, id, time.Now().UTC()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	url := "https://notion.so/test-page"
	title := "Test Summary"
	if err := s.SaveSummary(ctx, id, "# Test Summary\n- point", &url, &title); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}

	summaries, err := s.ListSummaries(ctx, id)
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summary count = %d, want 1", len(summaries))
	}
	if summaries[0].NotionURL == nil || *summaries[0].NotionURL != url {
		t.Errorf("notion_url = %v, want %q", summaries[0].NotionURL, url)
	}

	_, _ = db.Exec(ctx, "DELETE FROM summaries WHERE session_id = $1", id)
	_, _ = db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
}
