package app

import "github.com/joescharf/reviewdesk/internal/models"

// Phase is the controller's view state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// State is a snapshot of everything the presentation layer renders.
type State struct {
	Phase         Phase                  `json:"phase"`
	ReviewText    string                 `json:"review_text"`
	Tone          string                 `json:"tone"`
	Result        *models.AnalysisResult `json:"result,omitempty"`
	EditableReply string                 `json:"editable_reply"`
	// CurrentID is the persisted record behind Result, if any.
	CurrentID string `json:"current_id,omitempty"`
	// Unsaved is set while an edited reply has not been written back.
	Unsaved bool                  `json:"unsaved"`
	History []models.ReviewRecord `json:"history"`
}

func initialState() State {
	return State{
		Phase:   PhaseIdle,
		Tone:    models.DefaultTone,
		History: []models.ReviewRecord{},
	}
}

// clone returns a copy that shares no slices or pointers with s.
func (s State) clone() State {
	out := s
	if s.Result != nil {
		r := *s.Result
		r.Issues = append([]string(nil), s.Result.Issues...)
		out.Result = &r
	}
	out.History = make([]models.ReviewRecord, len(s.History))
	for i, rec := range s.History {
		rec.Issues = append([]string(nil), rec.Issues...)
		out.History[i] = rec
	}
	return out
}
