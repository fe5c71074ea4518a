// Package dispatch runs transcription jobs against the ASR engine through a
// bounded worker pool while keeping per-session delivery order.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/tabscribe/internal/asr"
	"github.com/lukasbauer/tabscribe/internal/segment"
)

// Job wraps an utterance queued for transcription.
type Job struct {
	Utterance  *segment.Utterance
	Epoch      uint64 // session clear epoch captured at enqueue
	EnqueuedAt time.Time
}

// Result is a completed transcription tagged with its owning session.
type Result struct {
	SessionID   string
	Text        string
	SourceTime  time.Time // utterance start
	DeliveredAt time.Time
	Epoch       uint64
}

// Config holds dispatcher tuning.
type Config struct {
	Workers    int
	QueueSize  int
	SampleRate int
	Timeout    time.Duration // per engine call, 0 for none
	Filter     asr.FilterConfig
}

// Dispatcher owns the global job queue and the worker pool. Sessions are
// serialized: at most one job per session is in the global queue at a time,
// which guarantees results reach the client in source-timestamp order.
type Dispatcher struct {
	cfg    Config
	engine asr.Engine
	logger *log.Logger

	jobs    chan Job
	results chan Result
	queue   chan int // in-flight count updates, latest wins

	inflight atomic.Int64

	mu          sync.Mutex
	pending     map[string][]Job // session-local FIFO behind the outstanding job
	outstanding map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher and starts its workers.
func New(engine asr.Engine, cfg Config, logger *log.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:         cfg,
		engine:      engine,
		logger:      logger,
		jobs:        make(chan Job, cfg.QueueSize),
		results:     make(chan Result, 64),
		queue:       make(chan int, 64),
		pending:     make(map[string][]Job),
		outstanding: make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Results returns the channel of completed transcriptions.
func (d *Dispatcher) Results() <-chan Result { return d.results }

// QueueUpdates returns the channel of in-flight count changes.
func (d *Dispatcher) QueueUpdates() <-chan int { return d.queue }

// InFlight returns the current number of jobs between enqueue and
// completion or abandonment.
func (d *Dispatcher) InFlight() int64 { return d.inflight.Load() }

// Enqueue accepts an utterance for transcription. The job counts as in-flight
// immediately; if another job for the same session is outstanding it waits in
// the session-local queue and enters the global pool once that job finishes.
// The session's clear epoch is attached so the gateway can discard results
// that complete after a clear.
func (d *Dispatcher) Enqueue(u *segment.Utterance, epoch uint64) error {
	select {
	case <-d.ctx.Done():
		return fmt.Errorf("dispatcher is stopped")
	default:
	}

	job := Job{Utterance: u, Epoch: epoch, EnqueuedAt: time.Now()}
	d.inflight.Add(1)
	d.notifyQueue()

	d.mu.Lock()
	if d.outstanding[u.SessionID] {
		d.pending[u.SessionID] = append(d.pending[u.SessionID], job)
		d.mu.Unlock()
		return nil
	}
	d.outstanding[u.SessionID] = true
	d.mu.Unlock()

	d.submit(job)
	return nil
}

// DiscardSession drops any session-local pending jobs for a disconnected
// session. The outstanding job, if any, keeps running; its result is dropped
// at delivery because the session is no longer active.
func (d *Dispatcher) DiscardSession(sessionID string) {
	d.mu.Lock()
	dropped := len(d.pending[sessionID])
	delete(d.pending, sessionID)
	d.mu.Unlock()

	if dropped > 0 {
		d.inflight.Add(int64(-dropped))
		d.notifyQueue()
		d.logger.Printf("dispatch: dropped %d pending jobs for closed session %s", dropped, sessionID)
	}
}

// Stop shuts down the workers and closes the output channels.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	close(d.results)
	close(d.queue)
}

// submit places a job in the global queue, abandoning it if the queue is full.
func (d *Dispatcher) submit(job Job) {
	select {
	case d.jobs <- job:
	default:
		d.logger.Printf("dispatch: queue full, abandoning utterance for session %s", job.Utterance.SessionID)
		d.abandon(job)
	}
}

// abandon accounts for a job that will never produce a result and lets the
// session's next pending job through.
func (d *Dispatcher) abandon(job Job) {
	d.inflight.Add(-1)
	d.notifyQueue()
	d.releaseNext(job.Utterance.SessionID)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.jobs:
			d.process(job)
		}
	}
}

// process runs one job: one engine call plus one immediate retry. An engine
// failure after the retry abandons the job without a result; it never
// surfaces as a session error.
func (d *Dispatcher) process(job Job) {
	u := job.Utterance

	text, err := d.transcribe(u)
	if err != nil {
		text, err = d.transcribe(u)
	}

	if err != nil {
		d.logger.Printf("dispatch: transcription failed after retry for session %s: %v", u.SessionID, err)
		sentry.CaptureException(fmt.Errorf("transcription abandoned for session %s: %w", u.SessionID, err))
	} else if asr.ValidText(text, d.cfg.Filter) {
		res := Result{
			SessionID:   u.SessionID,
			Text:        text,
			SourceTime:  u.Start,
			DeliveredAt: time.Now().UTC(),
			Epoch:       job.Epoch,
		}
		select {
		case d.results <- res:
		case <-d.ctx.Done():
		}
	}
	// Empty or filtered text completes the job with no event, matching the
	// engine's behavior for unintelligible audio.

	d.inflight.Add(-1)
	d.notifyQueue()
	d.releaseNext(u.SessionID)
}

func (d *Dispatcher) transcribe(u *segment.Utterance) (string, error) {
	ctx := d.ctx
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	return d.engine.Transcribe(ctx, u.Samples, d.cfg.SampleRate)
}

// releaseNext moves the session's next pending job into the global queue, or
// clears the outstanding flag when none remain.
func (d *Dispatcher) releaseNext(sessionID string) {
	d.mu.Lock()
	queue := d.pending[sessionID]
	if len(queue) == 0 {
		delete(d.pending, sessionID)
		delete(d.outstanding, sessionID)
		d.mu.Unlock()
		return
	}
	next := queue[0]
	if len(queue) == 1 {
		delete(d.pending, sessionID)
	} else {
		d.pending[sessionID] = queue[1:]
	}
	d.mu.Unlock()

	d.submit(next)
}

// notifyQueue publishes the current in-flight count, displacing the oldest
// unread update if the channel is full so receivers always see fresh state.
func (d *Dispatcher) notifyQueue() {
	n := int(d.inflight.Load())
	for {
		select {
		case d.queue <- n:
			return
		default:
			select {
			case <-d.queue:
			default:
			}
		}
	}
}
