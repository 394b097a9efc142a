package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/reviewdesk/internal/models"
)

// DefaultRemoteTable is the hosted table that holds reviews.
const DefaultRemoteTable = "reviews"

// RemoteStore talks to a hosted table store through its PostgREST-style HTTP
// interface. Ids and created_at are assigned by the store.
type RemoteStore struct {
	baseURL string
	key     string
	table   string
	client  *http.Client
}

// NewRemoteStore returns a RemoteStore for the project at baseURL.
func NewRemoteStore(baseURL, key, table string) (*RemoteStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote store URL is empty (set remote.url)")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse remote store URL: %w", err)
	}
	if table == "" {
		table = DefaultRemoteTable
	}
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		table:   table,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Migrate is a no-op; the hosted schema is managed outside this tool.
func (s *RemoteStore) Migrate(_ context.Context) error { return nil }

func (s *RemoteStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// remoteRow mirrors the table's columns. The id column may be text or a
// numeric identity, so it is decoded raw.
type remoteRow struct {
	ID         json.RawMessage  `json:"id,omitempty"`
	ReviewText string           `json:"review_text"`
	Tone       string           `json:"tone"`
	Sentiment  models.Sentiment `json:"sentiment"`
	Issues     []string         `json:"issues"`
	Reply      string           `json:"reply"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (row remoteRow) record() *models.ReviewRecord {
	id := strings.TrimSpace(string(row.ID))
	if unq, err := strconv.Unquote(id); err == nil {
		id = unq
	}
	return &models.ReviewRecord{
		ID:         id,
		ReviewText: row.ReviewText,
		Tone:       row.Tone,
		Sentiment:  models.ParseSentiment(string(row.Sentiment)),
		Issues:     models.TruncateIssues(row.Issues),
		Reply:      row.Reply,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func (s *RemoteStore) endpoint(q url.Values) string {
	u := s.baseURL + "/rest/v1/" + url.PathEscape(s.table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do sends one request and decodes the JSON array response into rows.
func (s *RemoteStore) do(ctx context.Context, method string, q url.Values, body any) ([]remoteRow, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(q), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if s.key != "" {
		req.Header.Set("apikey", s.key)
		req.Header.Set("Authorization", "Bearer "+s.key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, s.table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, s.table, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var rows []remoteRow
	if len(bytes.TrimSpace(data)) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return rows, nil
}

func eqID(id string) url.Values {
	return url.Values{"id": {"eq." + id}}
}

func (s *RemoteStore) ListReviews(ctx context.Context, limit int) ([]*models.ReviewRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := url.Values{
		"select": {"*"},
		"order":  {"created_at.desc"},
		"limit":  {strconv.Itoa(limit)},
	}
	rows, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	out := make([]*models.ReviewRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (s *RemoteStore) GetReview(ctx context.Context, id string) (*models.ReviewRecord, error) {
	q := eqID(id)
	q.Set("select", "*")
	q.Set("limit", "1")
	rows, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rows[0].record(), nil
}

func (s *RemoteStore) CreateReview(ctx context.Context, r *models.ReviewRecord) error {
	body := map[string]any{
		"review_text": r.ReviewText,
		"tone":        r.Tone,
		"sentiment":   string(r.Sentiment),
		"issues":      models.TruncateIssues(r.Issues),
		"reply":       r.Reply,
	}
	rows, err := s.do(ctx, http.MethodPost, nil, body)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("create review: store returned no row")
	}
	created := rows[0].record()
	if created.ID == "" {
		return fmt.Errorf("create review: store returned no id")
	}
	*r = *created
	return nil
}

func (s *RemoteStore) UpdateReviewReply(ctx context.Context, id, reply string) error {
	rows, err := s.do(ctx, http.MethodPatch, eqID(id), map[string]string{"reply": reply})
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *RemoteStore) DeleteReview(ctx context.Context, id string) error {
	rows, err := s.do(ctx, http.MethodDelete, eqID(id), nil)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
