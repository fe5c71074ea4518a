// Package gateway exposes the WebSocket endpoint, fans transcription
// results and queue updates back out to connected clients, and routes
// control messages to the rest of the pipeline.
package gateway

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/tabscribe/internal/audio"
	"github.com/lukasbauer/tabscribe/internal/dispatch"
	"github.com/lukasbauer/tabscribe/internal/eventlog"
	"github.com/lukasbauer/tabscribe/internal/relay"
	"github.com/lukasbauer/tabscribe/internal/segment"
	"github.com/lukasbauer/tabscribe/internal/session"
	"github.com/lukasbauer/tabscribe/internal/store"
	"github.com/lukasbauer/tabscribe/internal/vad"
)

type Config struct {
	// Audio contract for binary frames.
	SampleRate int
	Format     audio.Format

	// SilenceThreshold is the RMS level below which a frame counts as silence.
	SilenceThreshold float64
	Segmenter        segment.Config

	// Optional HMAC secret. When set, /ws requires a valid bearer token.
	JWTSecret string
}

// Gateway owns the HTTP surface and the set of connected clients.
type Gateway struct {
	cfg        Config
	logger     *log.Logger
	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	relay      *relay.Relay
	store      *store.Store
	eventLog   *eventlog.Logger

	mu      sync.Mutex
	clients map[string]*client

	mux *http.ServeMux
}

func New(cfg Config, logger *log.Logger, registry *session.Registry, d *dispatch.Dispatcher, r *relay.Relay, s *store.Store, eventLog *eventlog.Logger) *Gateway {
	g := &Gateway{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		dispatcher: d,
		relay:      r,
		store:      s,
		eventLog:   eventLog,
		clients:    make(map[string]*client),
		mux:        http.NewServeMux(),
	}
	g.routes()
	return g
}

func (g *Gateway) routes() {
	g.mux.HandleFunc("GET /healthz", g.handleHealthz)
	g.mux.HandleFunc("GET /ws", g.handleWS)
	g.mux.HandleFunc("GET /sessions/{id}", g.handleGetSession)
	g.mux.HandleFunc("GET /sessions/{id}/summaries", g.handleListSummaries)
}

// newSegmenter builds the per-session VAD classifier and segmenter from the
// gateway's audio settings.
func (g *Gateway) newSegmenter(sessionID string) (*segment.Segmenter, error) {
	classifier, err := vad.NewClassifier(g.cfg.SilenceThreshold)
	if err != nil {
		return nil, err
	}
	return segment.New(sessionID, g.cfg.Segmenter, classifier)
}

// Handler returns the gateway's HTTP handler with middleware applied.
func (g *Gateway) Handler() http.Handler {
	return withSentryRecovery(withCORS(g.mux))
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Run pumps dispatcher output to clients until ctx is cancelled: results go
// to their owning session, queue updates are broadcast to everyone.
func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case res, ok := <-g.dispatcher.Results():
			if !ok {
				return
			}
			g.deliverResult(res)

		case n, ok := <-g.dispatcher.QueueUpdates():
			if !ok {
				return
			}
			g.broadcast(queueStatusMsg{
				Type:                msgQueueStatus,
				ProcessingCount:     n,
				CurrentlyProcessing: n > 0,
				Timestamp:           unixSeconds(time.Now()),
			})
		}
	}
}

// deliverResult appends a finished transcription to its session and sends
// the event to the client. Results for closed sessions or stale clear
// epochs are dropped.
func (g *Gateway) deliverResult(res dispatch.Result) {
	g.mu.Lock()
	c := g.clients[res.SessionID]
	g.mu.Unlock()
	if c == nil {
		return
	}

	seq, ok := c.sess.Append(res.Text, res.SourceTime, res.Epoch)
	if !ok {
		g.logger.Printf("gateway: dropping late result for session %s", res.SessionID)
		return
	}

	if g.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = g.store.InsertSegment(ctx, store.Segment{
				SessionID: res.SessionID,
				Sequence:  seq,
				Text:      res.Text,
				CreatedAt: res.DeliveredAt,
			})
		}()
	}
	g.eventLog.LogAsync(res.SessionID, eventlog.EventTranscriptionCompleted, map[string]any{
		"sequence":    seq,
		"text_length": len(res.Text),
	})

	c.send(transcriptionMsg{
		Type:            msgTranscription,
		Text:            res.Text,
		Sequence:        seq,
		ServerTimestamp: unixSeconds(res.SourceTime),
		ClientTimestamp: unixSeconds(time.Now()),
	})
}

// broadcast sends a message to every connected client.
func (g *Gateway) broadcast(msg any) {
	g.mu.Lock()
	clients := make([]*client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.send(msg)
	}
}

func (g *Gateway) register(c *client) {
	g.mu.Lock()
	g.clients[c.sess.ID] = c
	g.mu.Unlock()
}

func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	delete(g.clients, c.sess.ID)
	g.mu.Unlock()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
