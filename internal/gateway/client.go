package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lukasbauer/tabscribe/internal/audio"
	"github.com/lukasbauer/tabscribe/internal/eventlog"
	"github.com/lukasbauer/tabscribe/internal/relay"
	"github.com/lukasbauer/tabscribe/internal/segment"
	"github.com/lukasbauer/tabscribe/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one live WebSocket connection with its session state. The read
// loop is the only goroutine touching the segmenter; outbound messages go
// through the outbox channel so only the write loop writes to the socket.
type client struct {
	gw   *Gateway
	sess *session.Session
	seg  *segment.Segmenter

	conn   *websocket.Conn
	connMu sync.Mutex

	outbox    chan any
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

func (g *Gateway) handleWS(w http.ResponseWriter, req *http.Request) {
	if g.cfg.JWTSecret != "" {
		if err := g.authorizeWS(req); err != nil {
			g.logger.Printf("gateway: rejected connection from %s: %v", req.RemoteAddr, err)
			http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		g.logger.Printf("gateway: upgrade failed: %v", err)
		return
	}

	sess := g.registry.Create()
	seg, err := g.newSegmenter(sess.ID)
	if err != nil {
		g.logger.Printf("gateway: segmenter init failed: %v", err)
		captureError(req, err, "gateway: segmenter configuration error")
		conn.Close()
		g.registry.Remove(sess.ID)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		gw:     g,
		sess:   sess,
		seg:    seg,
		conn:   conn,
		outbox: make(chan any, 256),
		ctx:    ctx,
		cancel: cancel,
	}

	g.register(c)
	g.logger.Printf("gateway: session %s connected from %s", sess.ID, req.RemoteAddr)
	g.eventLog.LogAsync(sess.ID, eventlog.EventSessionConnected, map[string]any{
		"remote_addr": req.RemoteAddr,
	})
	if g.store != nil {
		go func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = g.store.CreateSession(sctx, sess.ID, sess.StartedAt)
		}()
	}

	go c.writeLoop()
	c.readLoop()
}

// send queues a message for the write loop. A full outbox means the client
// stopped reading; the connection is torn down rather than blocking the
// rest of the server.
func (c *client) send(msg any) {
	select {
	case c.outbox <- msg:
	default:
		c.gw.logger.Printf("gateway: session %s outbox full, closing slow client", c.sess.ID)
		c.close()
	}
}

func (c *client) write(msg any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.outbox:
			if err := c.write(msg); err != nil {
				c.gw.logger.Printf("gateway: write error for session %s: %v", c.sess.ID, err)
				c.close()
				return
			}
		}
	}
}

func (c *client) readLoop() {
	defer c.cleanup()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.gw.logger.Printf("gateway: session %s closed", c.sess.ID)
			} else {
				c.gw.logger.Printf("gateway: read error for session %s: %v", c.sess.ID, err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := c.handleAudio(payload); err != nil {
				c.gw.logger.Printf("gateway: audio contract violation for session %s: %v", c.sess.ID, err)
				// Written synchronously: the connection is torn down right
				// after, so the outbox would lose the message.
				_ = c.write(infoMsg{Type: msgError, Message: err.Error()})
				// The stream is unrecoverable once frame boundaries are
				// unknown; drop the connection.
				return
			}

		case websocket.TextMessage:
			c.handleControl(payload)
		}
	}
}

// handleAudio decodes one PCM frame, runs it through the segmenter, and
// enqueues any completed utterance.
func (c *client) handleAudio(payload []byte) error {
	samples, err := audio.DecodeFrame(payload, c.gw.cfg.Format)
	if err != nil {
		return fmt.Errorf("malformed audio frame: %w", err)
	}

	u := c.seg.Push(samples)
	if u == nil {
		return nil
	}
	c.enqueueUtterance(u)
	return nil
}

func (c *client) enqueueUtterance(u *segment.Utterance) {
	dur := u.Duration(c.gw.cfg.SampleRate)
	c.gw.logger.Printf("gateway: session %s utterance segmented, %.2fs", c.sess.ID, dur.Seconds())
	c.gw.eventLog.LogAsync(c.sess.ID, eventlog.EventUtteranceSegmented, map[string]any{
		"duration_ms": dur.Milliseconds(),
		"samples":     len(u.Samples),
	})

	if err := c.gw.dispatcher.Enqueue(u, c.sess.Epoch()); err != nil {
		c.gw.logger.Printf("gateway: enqueue failed for session %s: %v", c.sess.ID, err)
	}
}

// handleControl dispatches a client JSON message. Malformed or unknown
// messages are logged and skipped, they never end the connection.
func (c *client) handleControl(payload []byte) {
	var msg controlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.gw.logger.Printf("gateway: invalid JSON from session %s: %v", c.sess.ID, err)
		return
	}

	switch msg.Type {
	case "ping":
		c.send(pongMsg{Type: msgPong})

	case "get_full_transcription":
		c.send(fullTranscriptionMsg{
			Type:  msgFullTranscription,
			Text:  c.sess.FullText(),
			Count: c.sess.SegmentCount(),
		})

	case "clear_transcription":
		c.handleClear()

	case "summarize":
		go c.handleSummarize(msg.Prompt, msg.Text)

	default:
		c.gw.logger.Printf("gateway: unknown message type %q from session %s", msg.Type, c.sess.ID)
	}
}

func (c *client) handleClear() {
	c.sess.Clear()
	c.gw.logger.Printf("gateway: session %s transcript cleared", c.sess.ID)
	c.gw.eventLog.LogAsync(c.sess.ID, eventlog.EventTranscriptCleared, nil)

	if c.gw.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.gw.store.ClearSegments(ctx, c.sess.ID)
		}()
	}

	c.send(infoMsg{Type: msgTranscriptionCleared, Message: "Transcription history cleared"})
}

// handleSummarize runs the summarize pipeline off the read loop so audio
// keeps flowing while Gemini works.
func (c *client) handleSummarize(customPrompt, clientText string) {
	transcript := clientText
	if transcript == "" {
		transcript = c.sess.FullText()
	}

	progress := func(stage relay.Stage) {
		switch stage {
		case relay.StageSummarizing:
			c.send(infoMsg{Type: msgSummaryProcessing, Message: "AI summarization in progress..."})
		case relay.StageSavingNotion:
			c.send(infoMsg{Type: msgNotionProcessing, Message: "Saving to Notion..."})
		}
	}

	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Minute)
	defer cancel()

	out, err := c.gw.relay.Summarize(ctx, transcript, customPrompt, progress)
	if err != nil {
		if errors.Is(err, relay.ErrEmptyTranscript) {
			c.send(summaryResultMsg{Type: msgSummaryResult, Success: false, Message: "No text available for summarization."})
			return
		}
		c.gw.logger.Printf("gateway: summarize failed for session %s: %v", c.sess.ID, err)
		c.gw.eventLog.LogAsync(c.sess.ID, eventlog.EventSummaryFailed, map[string]any{"error": err.Error()})
		c.send(summaryResultMsg{Type: msgSummaryResult, Success: false, Message: err.Error()})
		return
	}

	result := summaryResultMsg{Type: msgSummaryResult, Success: true, Summary: out.Summary}
	var notionURL, notionTitle *string
	if out.Notion != nil {
		result.NotionResult = &notionResultMsg{
			Success: out.Notion.Success,
			URL:     out.Notion.URL,
			Title:   out.Notion.Title,
			Message: out.Notion.Message,
		}
		if out.Notion.Success {
			notionURL, notionTitle = &out.Notion.URL, &out.Notion.Title
			c.gw.eventLog.LogAsync(c.sess.ID, eventlog.EventNotionSaved, map[string]any{
				"url":   out.Notion.URL,
				"title": out.Notion.Title,
			})
		}
	}

	c.gw.eventLog.LogAsync(c.sess.ID, eventlog.EventSummaryGenerated, map[string]any{
		"summary_length": len(out.Summary),
	})
	if c.gw.store != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = c.gw.store.SaveSummary(sctx, c.sess.ID, out.Summary, notionURL, notionTitle)
	}

	c.send(result)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}

// cleanup tears the session down after the read loop exits: any utterance
// still buffering is flushed into the queue first so trailing speech is not
// lost, then pending jobs are discarded.
func (c *client) cleanup() {
	if u := c.seg.Flush(); u != nil {
		c.enqueueUtterance(u)
	}

	c.sess.Close()
	c.gw.unregister(c)
	c.gw.dispatcher.DiscardSession(c.sess.ID)
	c.close()

	c.gw.eventLog.LogAsync(c.sess.ID, eventlog.EventSessionClosed, map[string]any{
		"segments": c.sess.SegmentCount(),
	})
	if c.gw.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.gw.store.CloseSession(ctx, c.sess.ID, time.Now().UTC(), c.sess.SegmentCount())
	}
	c.gw.registry.Remove(c.sess.ID)

	c.gw.logger.Printf("gateway: session %s cleaned up", c.sess.ID)
}
