// Package app holds the application state controller. It owns the current
// analysis and the cached history, and orchestrates the analysis client and
// the history adapter in response to user intents.
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/reviewdesk/internal/export"
	"github.com/joescharf/reviewdesk/internal/models"
)

var (
	// ErrEmptyReview is returned when Analyze gets blank review text.
	ErrEmptyReview = errors.New("review text is empty")
	// ErrNothingToExport is returned by Export when no result is displayed.
	ErrNothingToExport = errors.New("no analysis to export")
)

// replySaveTimeout bounds one background reply write.
const replySaveTimeout = 30 * time.Second

// Analyzer produces a result for a review; it must not fail.
type Analyzer interface {
	Analyze(ctx context.Context, reviewText, tone string) models.AnalysisResult
}

// History is the soft-failing persistence contract.
type History interface {
	List(ctx context.Context) []models.ReviewRecord
	Create(ctx context.Context, reviewText, tone string, sentiment models.Sentiment, issues []string, reply string) *models.ReviewRecord
	Update(ctx context.Context, id, reply string) bool
	Delete(ctx context.Context, id string) bool
}

// Controller is safe for concurrent use.
type Controller struct {
	analyzer Analyzer
	history  History
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	observers  []func(State)

	// latestEdit maps a record id to the sequence of its newest reply edit.
	replySeq   uint64
	latestEdit map[string]uint64

	listSeq     uint64
	appliedList uint64

	saveMu  sync.Mutex
	pending sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for exports.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns an idle controller. Call Refresh to load the history cache.
func New(analyzer Analyzer, history History, opts ...Option) *Controller {
	c := &Controller{
		analyzer: analyzer,
		history:  history,
		logger:   slog.Default(),
		now:      time.Now,
		state:    initialState(),

		latestEdit: map[string]uint64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "controller")
	return c
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// commit must be called with c.mu held; it releases the lock, then notifies
// observers with the new snapshot.
func (c *Controller) commit() State {
	snap := c.state.clone()
	observers := append([]func(State){}, c.observers...)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(snap.clone())
	}
	return snap
}

// Refresh reloads the cached history list.
func (c *Controller) Refresh(ctx context.Context) State {
	seq := c.beginList()
	hist := c.history.List(ctx)
	c.mu.Lock()
	c.applyHistory(seq, hist)
	return c.commit()
}

// beginList numbers a history listing before it is issued.
func (c *Controller) beginList() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listSeq++
	return c.listSeq
}

// applyHistory must be called with c.mu held. A listing issued before the
// one already applied is dropped so the cache never moves backwards.
func (c *Controller) applyHistory(seq uint64, hist []models.ReviewRecord) {
	if seq < c.appliedList {
		return
	}
	c.appliedList = seq
	c.state.History = hist
}

// Analyze runs one analysis, persists it and updates the cached history.
// Only the response of the most recent request is applied to the state;
// superseded responses are still saved to history.
func (c *Controller) Analyze(ctx context.Context, reviewText, tone string) (State, error) {
	if strings.TrimSpace(reviewText) == "" {
		return c.Snapshot(), ErrEmptyReview
	}
	if strings.TrimSpace(tone) == "" {
		tone = models.DefaultTone
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state.Phase = PhaseLoading
	c.state.ReviewText = reviewText
	c.state.Tone = tone
	c.state.CurrentID = ""
	c.state.Unsaved = false
	c.commit()

	res := c.analyzer.Analyze(ctx, reviewText, tone)
	res.Issues = models.TruncateIssues(res.Issues)
	saved := c.history.Create(ctx, reviewText, tone, res.Sentiment, res.Issues, res.Reply)
	listSeq := c.beginList()
	hist := c.history.List(ctx)

	c.mu.Lock()
	c.applyHistory(listSeq, hist)
	if gen != c.generation {
		c.logger.Debug("discarding superseded analysis", "generation", gen, "latest", c.generation)
		return c.commit(), nil
	}
	c.state.Phase = PhaseReady
	c.state.Result = &res
	c.state.EditableReply = res.Reply
	if saved != nil {
		c.state.CurrentID = saved.ID
	}
	return c.commit(), nil
}

// UpdateReply changes the editable reply immediately. If the current
// analysis is persisted, the new reply is written back in the background;
// failures are logged and leave Unsaved set.
func (c *Controller) UpdateReply(text string) State {
	c.mu.Lock()
	c.state.EditableReply = text
	id := c.state.CurrentID
	var seq uint64
	if id != "" {
		c.replySeq++
		seq = c.replySeq
		c.latestEdit[id] = seq
		c.state.Unsaved = true
	}
	snap := c.commit()

	if id != "" {
		c.pending.Add(1)
		go c.saveReply(id, text, seq)
	}
	return snap
}

func (c *Controller) saveReply(id, text string, seq uint64) {
	defer c.pending.Done()

	// Writes are serialized and a write superseded by a newer edit of the same
	// record is skipped, so each stored reply ends up as its latest edit.
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	superseded := seq != c.latestEdit[id]
	c.mu.Unlock()
	if superseded {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), replySaveTimeout)
	defer cancel()
	ok := c.history.Update(ctx, id, text)
	if !ok {
		c.logger.Warn("reply not saved", "id", id)
	}

	c.mu.Lock()
	if ok {
		for i := range c.state.History {
			if c.state.History[i].ID == id {
				c.state.History[i].Reply = text
			}
		}
		if seq == c.latestEdit[id] {
			delete(c.latestEdit, id)
			if c.state.CurrentID == id {
				c.state.Unsaved = false
			}
		}
	}
	c.commit()
}

// Wait blocks until all background reply writes have finished.
func (c *Controller) Wait() {
	c.pending.Wait()
}

// LoadFromHistory displays rec as the current analysis without persisting
// anything.
func (c *Controller) LoadFromHistory(rec models.ReviewRecord) State {
	c.mu.Lock()
	c.generation++
	c.state.Phase = PhaseReady
	c.state.ReviewText = rec.ReviewText
	c.state.Tone = rec.Tone
	c.state.Result = models.ResultFromRecord(&rec)
	c.state.EditableReply = rec.Reply
	c.state.CurrentID = rec.ID
	c.state.Unsaved = false
	return c.commit()
}

// Clear resets the current analysis. History is left untouched and any
// in-flight analysis will not be applied.
func (c *Controller) Clear() State {
	c.mu.Lock()
	c.generation++
	hist := c.state.History
	c.state = initialState()
	c.state.History = hist
	return c.commit()
}

// DeleteFromHistory deletes record id and refreshes the cached history.
func (c *Controller) DeleteFromHistory(ctx context.Context, id string) bool {
	ok := c.history.Delete(ctx, id)
	seq := c.beginList()
	hist := c.history.List(ctx)

	c.mu.Lock()
	c.applyHistory(seq, hist)
	if ok && c.state.CurrentID == id {
		c.state.CurrentID = ""
		c.state.Unsaved = false
	}
	c.commit()
	return ok
}

// Export renders the displayed sentiment, issues and edited reply.
func (c *Controller) Export() (export.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Result == nil {
		return export.Document{}, ErrNothingToExport
	}
	r := c.state.Result
	return export.New(r.Sentiment, r.Issues, c.state.EditableReply, c.now()), nil
}
