package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joescharf/reviewdesk/internal/models"
)

// HistoryKey is the document key holding the serialized review list.
const HistoryKey = "review_history"

// LocalStore keeps the review history as one JSON key/value document on
// disk. The list under HistoryKey is stored newest first and every write
// replaces the whole document.
type LocalStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewLocalStore returns a LocalStore backed by the file at path.
func NewLocalStore(path string) (*LocalStore, error) {
	if path == "" {
		return nil, fmt.Errorf("local store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}
	return &LocalStore{path: path, now: time.Now}, nil
}

// Migrate creates an empty document if none exists.
func (s *LocalStore) Migrate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat local store: %w", err)
	}
	return s.writeDoc(map[string]json.RawMessage{}, nil)
}

func (s *LocalStore) Close() error { return nil }

// readDoc returns the raw document and the decoded history list.
func (s *LocalStore) readDoc() (map[string]json.RawMessage, []*models.ReviewRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read local store: %w", err)
	}

	doc := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nil, fmt.Errorf("decode local store: %w", err)
		}
	}

	var list []*models.ReviewRecord
	if raw, ok := doc[HistoryKey]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", HistoryKey, err)
		}
	}
	// null entries carry no record; drop them.
	kept := list[:0]
	for _, r := range list {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return doc, kept, nil
}

// writeDoc serializes list under HistoryKey and atomically replaces the file.
func (s *LocalStore) writeDoc(doc map[string]json.RawMessage, list []*models.ReviewRecord) error {
	if list == nil {
		list = []*models.ReviewRecord{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", HistoryKey, err)
	}
	doc[HistoryKey] = raw

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace local store: %w", err)
	}
	return nil
}

func (s *LocalStore) ListReviews(_ context.Context, limit int) ([]*models.ReviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, list, err := s.readDoc()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *LocalStore) GetReview(_ context.Context, id string) (*models.ReviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, list, err := s.readDoc()
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *LocalStore) CreateReview(_ context.Context, r *models.ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, list, err := s.readDoc()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	rec := copyRecord(r)
	if rec.ID == "" {
		rec.ID = newULID(now)
	}
	rec.CreatedAt = now
	rec.Issues = models.TruncateIssues(rec.Issues)

	if err := s.writeDoc(doc, append([]*models.ReviewRecord{rec}, list...)); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	r.ID = rec.ID
	r.CreatedAt = rec.CreatedAt
	r.Issues = rec.Issues
	return nil
}

func (s *LocalStore) UpdateReviewReply(_ context.Context, id, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, list, err := s.readDoc()
	if err != nil {
		return err
	}
	for _, r := range list {
		if r.ID == id {
			r.Reply = reply
			if err := s.writeDoc(doc, list); err != nil {
				return fmt.Errorf("update review: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *LocalStore) DeleteReview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, list, err := s.readDoc()
	if err != nil {
		return err
	}
	kept := make([]*models.ReviewRecord, 0, len(list))
	for _, r := range list {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(list) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.writeDoc(doc, kept); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}
