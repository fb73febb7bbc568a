// Package orchestrator drives the end-to-end per-file upload workflow:
// validate, enqueue, open the realtime channel, upload, wait for results,
// collect review decisions, submit, advance. Exactly one file is in flight
// at any time.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/wu-transcripts/uploader/internal/channel"
	"github.com/wu-transcripts/uploader/internal/models"
	"github.com/wu-transcripts/uploader/internal/review"
)

// State is the lifecycle state of one queued file.
type State string

const (
	StateQueued                      State = "queued"
	StateUploading                   State = "uploading"
	StateAwaitingChannelConfirmation State = "awaiting_channel_confirmation"
	StateAwaitingResult              State = "awaiting_result"
	StateAwaitingReview              State = "awaiting_review"
	StateSubmitting                  State = "submitting"
	StateCompletedSuccess            State = "completed_success"
	StateCompletedError              State = "completed_error"
)

// StatusAllProcessed is the batch status reported once the queue drains.
const StatusAllProcessed = "All files processed."

// Transport is the slice of the HTTP client the orchestrator needs.
type Transport interface {
	UploadFile(ctx context.Context, name string, r io.Reader, mimeType string, onProgress func(float64)) error
	FetchFlaggedCourses(ctx context.Context, fileName string) ([]models.FlaggedDegreeGroup, error)
	SubmitDecisions(ctx context.Context, fileName string, decisions []models.FlaggedDegreeGroup) error
}

// Channels is the slice of the channel manager the orchestrator needs.
type Channels interface {
	Open(fileName string, cb channel.Callbacks) *channel.Session
	Close(fileName string)
}

// Reviewer collects the user's corrections for the flagged groups of the
// current file into the decision map. It blocks until the user submits.
type Reviewer interface {
	Review(ctx context.Context, groups []models.FlaggedDegreeGroup, decisions models.DecisionMap) error
}

// OpenFileFunc supplies the byte stream for a pending file at upload time.
type OpenFileFunc func(f models.PendingFile) (io.ReadCloser, error)

// ProgressFunc observes upload progress for the named file.
type ProgressFunc func(fileName string, pct float64)

// Options bound validation and retry behavior.
type Options struct {
	MaxFiles        int
	MaxFileSize     int64
	AllowedTypes    []string
	FetchAttempts   int           // bounded retries when the flagged payload is unexpectedly empty
	FetchRetryDelay time.Duration // fixed backoff between those retries
	SettleDelay     time.Duration // pause before re-entering the loop for the next file
}

// DefaultOptions mirror the backend's published limits.
func DefaultOptions() Options {
	return Options{
		MaxFiles:        100,
		MaxFileSize:     5 * 1024 * 1024,
		AllowedTypes:    []string{"application/pdf", "image/jpeg", "image/png", "text/csv"},
		FetchAttempts:   3,
		FetchRetryDelay: 500 * time.Millisecond,
		SettleDelay:     100 * time.Millisecond,
	}
}

// FileResult is the terminal outcome for one file.
type FileResult struct {
	File    models.PendingFile
	State   State
	Message string
}

// BatchResult reports one processed selection batch.
type BatchResult struct {
	Invalid []models.InvalidFile
	Results []FileResult
	Status  string
}

// Controller owns the upload queue and all per-file coordination state. All
// state lives on the controller; nothing is package-level.
type Controller struct {
	transport Transport
	channels  Channels
	reviewer  Reviewer
	openFile  OpenFileFunc
	opts      Options
	sleep     func(time.Duration)
	progress  ProgressFunc

	mu        sync.Mutex
	queue     []models.PendingFile
	states    map[string]State
	current   string
	decisions models.DecisionMap
	abort     context.CancelFunc
	runDone   chan struct{}
}

// New creates a Controller. openFile supplies file bytes at upload time;
// progress may be nil.
func New(t Transport, ch Channels, r Reviewer, openFile OpenFileFunc, opts Options, progress ProgressFunc) *Controller {
	if opts.FetchAttempts <= 0 {
		opts.FetchAttempts = 3
	}
	return &Controller{
		transport: t,
		channels:  ch,
		reviewer:  r,
		openFile:  openFile,
		opts:      opts,
		sleep:     time.Sleep,
		progress:  progress,
		states:    make(map[string]State),
		decisions: make(models.DecisionMap),
	}
}

// SetSleep replaces the delay clock so tests run without real timers.
func (c *Controller) SetSleep(sleep func(time.Duration)) { c.sleep = sleep }

// CurrentFile returns the name of the file being actively processed, or "".
func (c *Controller) CurrentFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// StateOf returns the lifecycle state recorded for a file.
func (c *Controller) StateOf(fileName string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[fileName]
	return st, ok
}

// QueueLength returns how many files remain queued (including the current one).
func (c *Controller) QueueLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Decisions exposes the live decision map for the file under review.
func (c *Controller) Decisions() models.DecisionMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decisions
}

// ProcessBatch validates a selection, enqueues the valid files, and drives
// each one through its full lifecycle sequentially. Calling it while a batch
// is mid-processing aborts the active batch (best-effort channel close) and
// resets all queue and review state before the new batch starts.
func (c *Controller) ProcessBatch(ctx context.Context, files []models.PendingFile) (*BatchResult, error) {
	c.abortActive()

	valid, invalid, err := c.ValidateSelection(files)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	defer close(done)

	c.mu.Lock()
	c.queue = append([]models.PendingFile(nil), valid...)
	c.states = make(map[string]State)
	c.decisions = make(models.DecisionMap)
	for _, f := range valid {
		c.states[f.Name] = StateQueued
	}
	c.abort = cancel
	c.runDone = done
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.abort = nil
		c.runDone = nil
		c.current = ""
		c.mu.Unlock()
	}()

	result := &BatchResult{Invalid: invalid}
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			break
		}
		head := c.queue[0]
		c.current = head.Name
		c.mu.Unlock()

		fr := c.processFile(runCtx, head)

		c.mu.Lock()
		if len(c.queue) > 0 && c.queue[0].Name == head.Name {
			c.queue = c.queue[1:]
		}
		c.states[head.Name] = fr.State
		c.current = ""
		remaining := len(c.queue)
		c.mu.Unlock()

		result.Results = append(result.Results, fr)

		if runCtx.Err() != nil {
			c.resetQueue()
			return result, runCtx.Err()
		}
		if remaining > 0 && c.opts.SettleDelay > 0 {
			// Let state updates propagate before re-entering the loop.
			c.sleep(c.opts.SettleDelay)
		}
	}

	result.Status = StatusAllProcessed
	return result, nil
}

// abortActive cancels any in-flight batch, closes its channel, and waits for
// its run loop to exit.
func (c *Controller) abortActive() {
	c.mu.Lock()
	cancel := c.abort
	done := c.runDone
	current := c.current
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if current != "" {
		c.channels.Close(current)
	}
	if done != nil {
		<-done
	}
	c.resetQueue()
}

func (c *Controller) resetQueue() {
	c.mu.Lock()
	c.queue = nil
	c.decisions = make(models.DecisionMap)
	c.mu.Unlock()
}

func (c *Controller) setState(fileName string, st State) {
	c.mu.Lock()
	c.states[fileName] = st
	c.mu.Unlock()
}

// sessionEvent is one channel callback serialized into the processing loop.
type sessionEvent struct {
	kind sessionEventKind
	err  error
}

type sessionEventKind int

const (
	evConfirmed sessionEventKind = iota
	evReady
	evNoFlagged
	evClosed
)

// processFile drives one file from queued to a terminal state. The channel
// session is always closed (and its teardown awaited) before returning, so
// the queue never advances past a live session.
func (c *Controller) processFile(ctx context.Context, f models.PendingFile) FileResult {
	events := make(chan sessionEvent, 8)
	push := func(ev sessionEvent) {
		// Never block a socket goroutine on a slow consumer.
		select {
		case events <- ev:
		default:
		}
	}

	c.setState(f.Name, StateAwaitingChannelConfirmation)
	c.channels.Open(f.Name, channel.Callbacks{
		OnConfirmed: func() { push(sessionEvent{kind: evConfirmed}) },
		OnReady:     func() { push(sessionEvent{kind: evReady}) },
		OnNoFlagged: func() { push(sessionEvent{kind: evNoFlagged}) },
		OnClosed:    func(err error) { push(sessionEvent{kind: evClosed, err: err}) },
	})
	defer c.channels.Close(f.Name)

	// The channel must be confirmed before any bytes flow, otherwise the
	// readiness event could be missed.
	ev, err := waitEvent(ctx, events)
	if err != nil {
		return c.fail(f, "upload aborted")
	}
	switch ev.kind {
	case evConfirmed:
	case evClosed:
		if ev.err != nil {
			return c.fail(f, ev.err.Error())
		}
		return c.fail(f, "notification channel closed before it was confirmed")
	default:
		return c.fail(f, "unexpected channel event before confirmation")
	}

	c.setState(f.Name, StateUploading)
	src, err := c.openFile(f)
	if err != nil {
		return c.fail(f, "could not read file: "+err.Error())
	}
	onProgress := func(pct float64) {
		if c.progress != nil {
			c.progress(f.Name, pct)
		}
	}
	uploadErr := c.transport.UploadFile(ctx, f.Name, src, f.MIMEType, onProgress)
	src.Close()
	if uploadErr != nil {
		return c.fail(f, "upload failed: "+uploadErr.Error())
	}

	c.setState(f.Name, StateAwaitingResult)
	for {
		ev, err := waitEvent(ctx, events)
		if err != nil {
			return c.fail(f, "processing aborted")
		}
		switch ev.kind {
		case evNoFlagged:
			// Nothing to review; the server is closing the channel.
			return c.succeed(f, "processed with no courses to review")
		case evReady:
			return c.reviewAndSubmit(ctx, f)
		case evClosed:
			if ev.err != nil {
				return c.fail(f, ev.err.Error())
			}
			return c.fail(f, "notification channel closed before results were available")
		case evConfirmed:
			// Duplicate confirmation after a reconnect; keep waiting.
		}
	}
}

// reviewAndSubmit fetches flagged courses (with bounded retries for an
// unexpectedly empty payload), runs the review, and submits the decisions.
func (c *Controller) reviewAndSubmit(ctx context.Context, f models.PendingFile) FileResult {
	var groups []models.FlaggedDegreeGroup
	for attempt := 1; attempt <= c.opts.FetchAttempts; attempt++ {
		fetched, err := c.transport.FetchFlaggedCourses(ctx, f.Name)
		if err != nil {
			return c.fail(f, "flagged course fetch failed: "+err.Error())
		}
		if len(fetched) > 0 {
			groups = fetched
			break
		}
		// Readiness and item availability are not perfectly atomic on the
		// backend; an empty payload right after "ready" is usually transient.
		if attempt < c.opts.FetchAttempts {
			c.sleep(c.opts.FetchRetryDelay)
		}
	}
	if len(groups) == 0 {
		return c.fail(f, fmt.Sprintf("no flagged courses returned after %d attempts", c.opts.FetchAttempts))
	}
	// Decisions are keyed by the queued name, not whatever the backend
	// echoed back.
	for i := range groups {
		groups[i].FileName = f.Name
	}

	c.setState(f.Name, StateAwaitingReview)
	c.mu.Lock()
	decisions := c.decisions
	c.mu.Unlock()
	if err := c.reviewer.Review(ctx, groups, decisions); err != nil {
		return c.fail(f, "review failed: "+err.Error())
	}

	c.setState(f.Name, StateSubmitting)
	submission, err := review.BuildSubmission(f.Name, groups, decisions)
	if err != nil {
		return c.fail(f, "invalid corrections: "+err.Error())
	}
	if err := c.transport.SubmitDecisions(ctx, f.Name, submission); err != nil {
		return c.fail(f, "decision submission failed: "+err.Error())
	}
	decisions.ClearFile(f.Name)
	return c.succeed(f, "decisions submitted")
}

func (c *Controller) succeed(f models.PendingFile, msg string) FileResult {
	c.setState(f.Name, StateCompletedSuccess)
	return FileResult{File: f, State: StateCompletedSuccess, Message: msg}
}

func (c *Controller) fail(f models.PendingFile, reason string) FileResult {
	c.setState(f.Name, StateCompletedError)
	fmt.Printf("[Orchestrator] %s failed: %s\n", f.Name, reason)
	return FileResult{File: f, State: StateCompletedError, Message: reason}
}

func waitEvent(ctx context.Context, events <-chan sessionEvent) (sessionEvent, error) {
	select {
	case <-ctx.Done():
		return sessionEvent{}, ctx.Err()
	case ev := <-events:
		return ev, nil
	}
}
