// Package history exposes review persistence with a soft-failure contract:
// errors are logged and reported as empty, nil or false results so callers
// keep working when the backend is unavailable.
package history

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joescharf/reviewdesk/internal/models"
	"github.com/joescharf/reviewdesk/internal/store"
)

// Adapter wraps a store.Store.
type Adapter struct {
	store  store.Store
	limit  int
	logger *slog.Logger
}

// New returns an Adapter listing at most limit records (store.DefaultListLimit
// when limit <= 0). A nil logger uses slog.Default().
func New(s store.Store, limit int, logger *slog.Logger) *Adapter {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{store: s, limit: limit, logger: logger.With("component", "history")}
}

// List returns the newest records first. Any failure yields an empty list.
func (a *Adapter) List(ctx context.Context) []models.ReviewRecord {
	recs, err := a.store.ListReviews(ctx, a.limit)
	if err != nil {
		a.logger.Warn("list reviews failed", "error", err)
		return []models.ReviewRecord{}
	}
	out := make([]models.ReviewRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, *r)
	}
	return out
}

// Get returns the record with id, or nil if it is missing or unreadable.
func (a *Adapter) Get(ctx context.Context, id string) *models.ReviewRecord {
	r, err := a.store.GetReview(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("get review failed", "id", id, "error", err)
		}
		return nil
	}
	return r
}

// Create persists a new record and returns it with ID and CreatedAt set.
// It returns nil on failure.
func (a *Adapter) Create(ctx context.Context, reviewText, tone string, sentiment models.Sentiment, issues []string, reply string) *models.ReviewRecord {
	r := &models.ReviewRecord{
		ReviewText: reviewText,
		Tone:       tone,
		Sentiment:  models.ParseSentiment(string(sentiment)),
		Issues:     models.TruncateIssues(issues),
		Reply:      reply,
	}
	if err := a.store.CreateReview(ctx, r); err != nil {
		a.logger.Error("create review failed", "error", err)
		return nil
	}
	a.logger.Debug("review saved", "id", r.ID, "sentiment", r.Sentiment)
	return r
}

// Update replaces the reply of record id. It reports false if the record
// does not exist or the write failed.
func (a *Adapter) Update(ctx context.Context, id, reply string) bool {
	if err := a.store.UpdateReviewReply(ctx, id, reply); err != nil {
		a.logger.Warn("update review failed", "id", id, "error", err)
		return false
	}
	return true
}

// Delete removes record id and reports whether it succeeded.
func (a *Adapter) Delete(ctx context.Context, id string) bool {
	if err := a.store.DeleteReview(ctx, id); err != nil {
		a.logger.Warn("delete review failed", "id", id, "error", err)
		return false
	}
	return true
}
