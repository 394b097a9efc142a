package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/reviewdesk/internal/analysis"
	"github.com/joescharf/reviewdesk/internal/history"
	"github.com/joescharf/reviewdesk/internal/models"
	"github.com/joescharf/reviewdesk/internal/store"
)

// fixedAnalyzer returns the same result for every review.
type fixedAnalyzer struct {
	res   models.AnalysisResult
	calls int
	mu    sync.Mutex
}

func (a *fixedAnalyzer) Analyze(_ context.Context, _, _ string) models.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.res
}

// gatedAnalyzer blocks each call until a result is sent on its channel.
type gatedAnalyzer struct {
	started chan string
	results map[string]chan models.AnalysisResult
}

func newGatedAnalyzer(texts ...string) *gatedAnalyzer {
	g := &gatedAnalyzer{started: make(chan string, len(texts)), results: map[string]chan models.AnalysisResult{}}
	for _, t := range texts {
		g.results[t] = make(chan models.AnalysisResult, 1)
	}
	return g
}

func (g *gatedAnalyzer) Analyze(_ context.Context, text, _ string) models.AnalysisResult {
	g.started <- text
	return <-g.results[text]
}

// failingGenerator simulates an unreachable endpoint.
type failingGenerator struct{}

func (failingGenerator) Name() string { return "down" }
func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}

// recordingHistory records Create arguments and can simulate failures.
type recordingHistory struct {
	mu         sync.Mutex
	created    []models.ReviewRecord
	updates    []string
	failWrite  bool
	updateGate chan struct{}
}

func (h *recordingHistory) List(context.Context) []models.ReviewRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.ReviewRecord, 0, len(h.created))
	for i := len(h.created) - 1; i >= 0; i-- {
		out = append(out, h.created[i])
	}
	return out
}

func (h *recordingHistory) Create(_ context.Context, text, tone string, s models.Sentiment, issues []string, reply string) *models.ReviewRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := models.ReviewRecord{ReviewText: text, Tone: tone, Sentiment: s, Issues: issues, Reply: reply}
	h.created = append(h.created, rec)
	if h.failWrite {
		h.created[len(h.created)-1].ID = ""
		return nil
	}
	rec.ID = "rec-" + string(rune('a'+len(h.created)-1))
	h.created[len(h.created)-1].ID = rec.ID
	return &rec
}

func (h *recordingHistory) Update(_ context.Context, id, reply string) bool {
	if h.updateGate != nil {
		<-h.updateGate
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, reply)
	if h.failWrite {
		return false
	}
	for i := range h.created {
		if h.created[i].ID == id {
			h.created[i].Reply = reply
			return true
		}
	}
	return false
}

func (h *recordingHistory) Delete(context.Context, string) bool { return !h.failWrite }

func newLocalHistory(t *testing.T) *history.Adapter {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{
		Backend:   store.BackendLocal,
		LocalPath: filepath.Join(t.TempDir(), "history.json"),
	})
	require.NoError(t, err)
	return history.New(s, 0, nil)
}

var sampleResult = models.AnalysisResult{
	Sentiment: models.SentimentNegative,
	Issues:    []string{"late", "cold"},
	Reply:     "We are sorry.",
	Outcome:   models.OutcomeParsed,
}

func TestController_InitialState(t *testing.T) {
	c := New(&fixedAnalyzer{res: sampleResult}, &recordingHistory{})
	s := c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, models.DefaultTone, s.Tone)
	assert.Nil(t, s.Result)
	assert.NotNil(t, s.History)
}

func TestController_AnalyzePersistsAndCaches(t *testing.T) {
	h := newLocalHistory(t)
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	ctx := context.Background()

	var phases []Phase
	c.Subscribe(func(s State) { phases = append(phases, s.Phase) })

	s, err := c.Analyze(ctx, "Food was late and cold", "Apologetic")
	require.NoError(t, err)

	assert.Equal(t, []Phase{PhaseLoading, PhaseReady}, phases)
	assert.Equal(t, PhaseReady, s.Phase)
	require.NotNil(t, s.Result)
	assert.Equal(t, models.SentimentNegative, s.Result.Sentiment)
	assert.Equal(t, "We are sorry.", s.EditableReply)
	assert.NotEmpty(t, s.CurrentID)
	require.Len(t, s.History, 1)
	assert.Equal(t, s.CurrentID, s.History[0].ID)
	assert.Equal(t, "Apologetic", s.History[0].Tone)
}

func TestController_AnalyzeRejectsBlank(t *testing.T) {
	a := &fixedAnalyzer{res: sampleResult}
	c := New(a, &recordingHistory{})
	_, err := c.Analyze(context.Background(), "   \n", "Witty")
	assert.ErrorIs(t, err, ErrEmptyReview)
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, PhaseIdle, c.Snapshot().Phase)
}

func TestController_AnalyzeDefaultsTone(t *testing.T) {
	h := &recordingHistory{}
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	s, err := c.Analyze(context.Background(), "fine", "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTone, s.Tone)
	assert.Equal(t, models.DefaultTone, h.created[0].Tone)
}

func TestController_UnreachableEndpointScenario(t *testing.T) {
	h := &recordingHistory{}
	client := analysis.NewClient(failingGenerator{})
	c := New(client, h)

	s, err := c.Analyze(context.Background(), "This product is terrible, I want a refund", "Apologetic")
	require.NoError(t, err)

	require.NotNil(t, s.Result)
	assert.Equal(t, models.SentimentNeutral, s.Result.Sentiment)
	assert.Equal(t, analysis.UnreachableIssues, s.Result.Issues)
	assert.Equal(t, analysis.ApologyReply, s.Result.Reply)

	require.Len(t, h.created, 1, "a record is still attempted")
	assert.Equal(t, models.SentimentNeutral, h.created[0].Sentiment)
	assert.Equal(t, analysis.UnreachableIssues, h.created[0].Issues)
	assert.Equal(t, analysis.ApologyReply, h.created[0].Reply)
}

func TestController_PersistenceFailureStillReady(t *testing.T) {
	h := &recordingHistory{failWrite: true}
	c := New(&fixedAnalyzer{res: sampleResult}, h)

	s, err := c.Analyze(context.Background(), "text", "Witty")
	require.NoError(t, err)
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Empty(t, s.CurrentID)

	// Without a record id the edit stays in memory only.
	s = c.UpdateReply("edited")
	c.Wait()
	assert.Equal(t, "edited", s.EditableReply)
	assert.False(t, s.Unsaved)
	assert.Empty(t, h.updates)
}

func TestController_StaleResponseIgnored(t *testing.T) {
	g := newGatedAnalyzer("first", "second")
	h := &recordingHistory{}
	c := New(g, h)
	ctx := context.Background()

	firstDone := make(chan State)
	go func() {
		s, _ := c.Analyze(ctx, "first", "Professional")
		firstDone <- s
	}()
	require.Equal(t, "first", <-g.started)

	secondDone := make(chan State)
	go func() {
		s, _ := c.Analyze(ctx, "second", "Professional")
		secondDone <- s
	}()
	require.Equal(t, "second", <-g.started)

	g.results["second"] <- models.AnalysisResult{Sentiment: models.SentimentPositive, Issues: []string{}, Reply: "second reply"}
	<-secondDone
	g.results["first"] <- models.AnalysisResult{Sentiment: models.SentimentNegative, Issues: []string{}, Reply: "first reply"}
	<-firstDone

	s := c.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, "second", s.ReviewText)
	assert.Equal(t, "second reply", s.EditableReply)
	assert.Equal(t, models.SentimentPositive, s.Result.Sentiment)
	assert.Len(t, s.History, 2, "superseded analysis is still saved")
}

func TestController_UpdateReplyPersists(t *testing.T) {
	h := newLocalHistory(t)
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	ctx := context.Background()

	s, err := c.Analyze(ctx, "review", "Friendly")
	require.NoError(t, err)
	id := s.CurrentID

	s = c.UpdateReply("Thanks, we will do better.")
	assert.Equal(t, "Thanks, we will do better.", s.EditableReply)
	c.Wait()

	rec := h.Get(ctx, id)
	require.NotNil(t, rec)
	assert.Equal(t, "Thanks, we will do better.", rec.Reply)

	s = c.Snapshot()
	assert.False(t, s.Unsaved)
	assert.Equal(t, "Thanks, we will do better.", s.History[0].Reply)
	assert.Equal(t, "We are sorry.", s.Result.Reply, "original result is kept")
}

func TestController_UpdateReplyLastWriteWins(t *testing.T) {
	h := &recordingHistory{updateGate: make(chan struct{})}
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	_, err := c.Analyze(context.Background(), "review", "Friendly")
	require.NoError(t, err)

	c.UpdateReply("v1")
	c.UpdateReply("v2")
	c.UpdateReply("v3")
	close(h.updateGate)
	c.Wait()

	require.NotEmpty(t, h.updates)
	assert.Equal(t, "v3", h.updates[len(h.updates)-1])
	assert.Equal(t, "v3", h.List(context.Background())[0].Reply)
	assert.False(t, c.Snapshot().Unsaved)
}

func TestController_UpdateReplyKeepsLatestEditPerRecord(t *testing.T) {
	h := &recordingHistory{updateGate: make(chan struct{})}
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	ctx := context.Background()

	a := h.Create(ctx, "first", "Witty", models.SentimentNeutral, nil, "a0")
	b := h.Create(ctx, "second", "Witty", models.SentimentNeutral, nil, "b0")
	c.Refresh(ctx)

	c.LoadFromHistory(*a)
	c.UpdateReply("a1")
	c.UpdateReply("a2")
	c.LoadFromHistory(*b)
	c.UpdateReply("b1")
	close(h.updateGate)
	c.Wait()

	replies := map[string]string{}
	for _, rec := range h.List(ctx) {
		replies[rec.ID] = rec.Reply
	}
	assert.Equal(t, "a2", replies[a.ID])
	assert.Equal(t, "b1", replies[b.ID])

	s := c.Snapshot()
	assert.False(t, s.Unsaved)
	for _, rec := range s.History {
		assert.Equal(t, replies[rec.ID], rec.Reply, "cached reply of %s", rec.ID)
	}
}

func TestController_UpdateReplyFailureKeepsUnsaved(t *testing.T) {
	h := &recordingHistory{}
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	_, err := c.Analyze(context.Background(), "review", "Friendly")
	require.NoError(t, err)

	h.mu.Lock()
	h.failWrite = true
	h.mu.Unlock()

	c.UpdateReply("lost edit")
	c.Wait()
	s := c.Snapshot()
	assert.Equal(t, "lost edit", s.EditableReply)
	assert.True(t, s.Unsaved)
}

func TestController_LoadFromHistory(t *testing.T) {
	h := &recordingHistory{}
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	rec := models.ReviewRecord{
		ID: "old-1", ReviewText: "Loved it", Tone: "Witty",
		Sentiment: models.SentimentPositive, Issues: []string{"none"}, Reply: "Cheers!",
	}

	s := c.LoadFromHistory(rec)
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, "Loved it", s.ReviewText)
	assert.Equal(t, "Witty", s.Tone)
	assert.Equal(t, "old-1", s.CurrentID)
	assert.Equal(t, "Cheers!", s.EditableReply)
	require.NotNil(t, s.Result)
	assert.Equal(t, models.SentimentPositive, s.Result.Sentiment)
	assert.Empty(t, h.created, "loading never persists")
}

func TestController_ClearIdempotent(t *testing.T) {
	c := New(&fixedAnalyzer{res: sampleResult}, newLocalHistory(t))
	_, err := c.Analyze(context.Background(), "review", "Witty")
	require.NoError(t, err)

	once := c.Clear()
	twice := c.Clear()
	assert.Equal(t, once, twice)
	assert.Equal(t, PhaseIdle, once.Phase)
	assert.Nil(t, once.Result)
	assert.Empty(t, once.EditableReply)
	assert.Empty(t, once.CurrentID)
	assert.Equal(t, models.DefaultTone, once.Tone)
	assert.Len(t, once.History, 1, "history untouched")
}

func TestController_ClearDropsInFlight(t *testing.T) {
	g := newGatedAnalyzer("slow")
	c := New(g, &recordingHistory{})

	done := make(chan struct{})
	go func() {
		_, _ = c.Analyze(context.Background(), "slow", "Professional")
		close(done)
	}()
	<-g.started
	c.Clear()
	g.results["slow"] <- sampleResult
	<-done

	s := c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Nil(t, s.Result)
}

func TestController_DeleteFromHistory(t *testing.T) {
	h := newLocalHistory(t)
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	ctx := context.Background()

	s, err := c.Analyze(ctx, "first", "Witty")
	require.NoError(t, err)
	firstID := s.CurrentID
	s, err = c.Analyze(ctx, "second", "Witty")
	require.NoError(t, err)
	require.Len(t, s.History, 2)

	assert.True(t, c.DeleteFromHistory(ctx, firstID))
	s = c.Snapshot()
	require.Len(t, s.History, 1)
	assert.NotEqual(t, firstID, s.History[0].ID)
	assert.NotEmpty(t, s.CurrentID, "current record untouched")

	assert.True(t, c.DeleteFromHistory(ctx, s.CurrentID))
	s = c.Snapshot()
	assert.Empty(t, s.History)
	assert.Empty(t, s.CurrentID)

	assert.False(t, c.DeleteFromHistory(ctx, "missing"))
}

func TestController_Refresh(t *testing.T) {
	h := newLocalHistory(t)
	require.NotNil(t, h.Create(context.Background(), "earlier", "Witty", models.SentimentNeutral, nil, "r"))

	c := New(&fixedAnalyzer{res: sampleResult}, h)
	assert.Empty(t, c.Snapshot().History)
	s := c.Refresh(context.Background())
	assert.Len(t, s.History, 1)
}

// slowListHistory blocks its first List call until release is closed and
// then answers with the records it held when the call was made.
type slowListHistory struct {
	*recordingHistory
	calls   int
	started chan struct{}
	release chan struct{}
}

func (h *slowListHistory) List(ctx context.Context) []models.ReviewRecord {
	snapshot := h.recordingHistory.List(ctx)
	h.mu.Lock()
	h.calls++
	first := h.calls == 1
	h.mu.Unlock()
	if first {
		close(h.started)
		<-h.release
	}
	return snapshot
}

func TestController_OlderHistoryListingDropped(t *testing.T) {
	h := &slowListHistory{
		recordingHistory: &recordingHistory{},
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	c := New(&fixedAnalyzer{res: sampleResult}, h)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		c.Refresh(ctx)
		close(done)
	}()
	<-h.started

	s, err := c.Analyze(ctx, "review", "Friendly")
	require.NoError(t, err)
	require.Len(t, s.History, 1)

	close(h.release)
	<-done
	assert.Len(t, c.Snapshot().History, 1, "earlier empty listing must not replace the cache")
}

func TestController_Export(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	c := New(&fixedAnalyzer{res: sampleResult}, &recordingHistory{}, WithClock(func() time.Time { return now }))

	_, err := c.Export()
	assert.ErrorIs(t, err, ErrNothingToExport)

	_, err = c.Analyze(context.Background(), "review", "Witty")
	require.NoError(t, err)
	c.UpdateReply("Edited reply")
	c.Wait()

	doc, err := c.Export()
	require.NoError(t, err)
	assert.Equal(t, "review-response-1700000000000.txt", doc.Filename)
	assert.Contains(t, doc.Content, "SENTIMENT: Negative")
	assert.Contains(t, doc.Content, "- late\n- cold")
	assert.Contains(t, doc.Content, "REPLY:\nEdited reply")
}

func TestController_SnapshotIsolated(t *testing.T) {
	c := New(&fixedAnalyzer{res: sampleResult}, newLocalHistory(t))
	_, err := c.Analyze(context.Background(), "review", "Witty")
	require.NoError(t, err)

	s := c.Snapshot()
	s.Result.Issues[0] = "mutated"
	s.History[0].Reply = "mutated"
	fresh := c.Snapshot()
	assert.Equal(t, "late", fresh.Result.Issues[0])
	assert.Equal(t, "We are sorry.", fresh.History[0].Reply)
}
