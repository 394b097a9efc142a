package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/reviewdesk/internal/models"
)

// ErrNotFound is returned when no review matches the given id.
var ErrNotFound = errors.New("review not found")

// DefaultListLimit bounds how many reviews a history listing returns.
const DefaultListLimit = 50

// Store defines the persistence interface for review history.
type Store interface {
	// ListReviews returns up to limit reviews, newest first.
	ListReviews(ctx context.Context, limit int) ([]*models.ReviewRecord, error)
	GetReview(ctx context.Context, id string) (*models.ReviewRecord, error)
	// CreateReview assigns ID and CreatedAt on r and persists it.
	CreateReview(ctx context.Context, r *models.ReviewRecord) error
	// UpdateReviewReply changes only the reply of the review with id.
	UpdateReviewReply(ctx context.Context, id, reply string) error
	DeleteReview(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend   string
	DBPath    string
	LocalPath string
	RemoteURL string
	RemoteKey string
	Table     string
}

// Open constructs the backend named in opts and runs its migrations.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case BackendSQLite, "":
		s, err = NewSQLiteStore(opts.DBPath)
	case BackendLocal:
		s, err = NewLocalStore(opts.LocalPath)
	case BackendRemote:
		s, err = NewRemoteStore(opts.RemoteURL, opts.RemoteKey, opts.Table)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate %s store: %w", opts.Backend, err)
	}
	return s, nil
}

// newULID generates a new ULID string.
func newULID(t time.Time) string {
	entropy := rand.New(rand.NewSource(t.UnixNano()))
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(entropy, 0)).String()
}

func copyRecord(r *models.ReviewRecord) *models.ReviewRecord {
	c := *r
	c.Issues = append([]string(nil), r.Issues...)
	return &c
}
