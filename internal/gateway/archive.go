package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/lukasbauer/tabscribe/internal/store"
)

// Read-only view over the Postgres archive. Without DATABASE_URL every
// lookup answers with no rows, so these endpoints return 404.

type archivedSessionResponse struct {
	Session  store.Session   `json:"session"`
	Segments []store.Segment `json:"segments"`
}

type archivedSummariesResponse struct {
	SessionID string          `json:"session_id"`
	Summaries []store.Summary `json:"summaries"`
}

func (g *Gateway) handleGetSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	sess, err := g.store.GetSession(req.Context(), id)
	if err != nil {
		captureError(req, err, "gateway: archived session lookup failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if sess == nil {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	segments, err := g.store.GetTranscript(req.Context(), id)
	if err != nil {
		captureError(req, err, "gateway: archived transcript lookup failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, archivedSessionResponse{Session: *sess, Segments: segments})
}

func (g *Gateway) handleListSummaries(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	sess, err := g.store.GetSession(req.Context(), id)
	if err != nil {
		captureError(req, err, "gateway: archived session lookup failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if sess == nil {
		writeJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	summaries, err := g.store.ListSummaries(req.Context(), id)
	if err != nil {
		captureError(req, err, "gateway: summaries lookup failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, archivedSummariesResponse{SessionID: id, Summaries: summaries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
