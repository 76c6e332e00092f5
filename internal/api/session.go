package api

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/identity"
	"github.com/chgenberg/frejfund-site/internal/stage"
)

// Event kinds published by session handlers.
const (
	EventStage   = "stage"
	EventAnswers = "answers"
	EventReset   = "reset"
)

type sessionView struct {
	SessionID       string            `json:"session_id"`
	Stage           domain.Stage      `json:"stage"`
	StageName       string            `json:"stage_name"`
	Position        int               `json:"position"`
	Total           int               `json:"total"`
	Missing         []string          `json:"missing"`
	CanContinue     bool              `json:"can_continue"`
	Answers         map[string]any    `json:"answers"`
	Conversation    []domain.Message  `json:"conversation"`
	Artifacts       domain.Artifacts  `json:"artifacts"`
	HasSwotDiagram  bool              `json:"has_swot_diagram"`
	AnalysisAnswers map[string]any    `json:"analysis_answers"`
	AnalysisResults map[string]string `json:"analysis_results"`
	Prefilled       []string          `json:"prefilled"`
}

func newSessionView(sessionID string, snap *domain.SessionState) sessionView {
	pos, total := stage.Progress(snap.CurrentStage)
	missing := stage.MissingFor(snap.CurrentStage, snap.Answers)
	_, hasNext := stage.Next(snap.CurrentStage)

	prefilled := make([]string, 0, len(snap.Prefilled))
	for id := range snap.Prefilled {
		prefilled = append(prefilled, id)
	}
	sort.Strings(prefilled)
	if missing == nil {
		missing = []string{}
	}

	return sessionView{
		SessionID:       sessionID,
		Stage:           snap.CurrentStage,
		StageName:       stage.DisplayName(snap.CurrentStage),
		Position:        pos,
		Total:           total,
		Missing:         missing,
		CanContinue:     hasNext && len(missing) == 0,
		Answers:         snap.Answers,
		Conversation:    snap.ConversationLog,
		Artifacts:       snap.Artifacts,
		HasSwotDiagram:  snap.Artifacts.HasSwotDiagram(),
		AnalysisAnswers: snap.AnalysisAnswers,
		AnalysisResults: snap.AnalysisResults,
		Prefilled:       prefilled,
	}
}

// GetMe returns the current visitor.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	v, err := h.repo.GetVisitor(r.Context(), userID)
	if err != nil || v == nil {
		Error(w, http.StatusUnauthorized, "visitor not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      v.UserID,
		"display_name": v.DisplayName,
		"session_id":   identity.SessionIDFromContext(r.Context()),
		"session_ttl":  int64(v.SessionTTL(time.Duration(h.sessionTTL) * time.Second).Seconds()),
	})
}

// GetConfig returns the feature flags the frontend needs.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"text_enabled":   h.gen.TextAvailable(),
		"image_enabled":  h.gen.ImagesAvailable(),
		"places_enabled": h.gen.PlacesAvailable(),
		"strategies":     domain.Strategies,
		"segments":       domain.MarketSegments,
	})
}

// GetSession returns a snapshot of the caller's session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	JSON(w, http.StatusOK, newSessionView(sc.SessionID, sc.Store.Snapshot()))
}

// PutAnswers merges answer values into the session.
func (h *Handler) PutAnswers(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if !decodeJSON(w, r, &values) {
		return
	}
	sc := h.scope(r)
	sc.Store.MergeAnswers(values)
	h.publish(sc, EventAnswers, map[string]int{"count": len(values)})
	JSON(w, http.StatusOK, newSessionView(sc.SessionID, sc.Store.Snapshot()))
}

// ResetSession clears every answer, artifact and analysis value.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	sc.Store.Reset()
	slog.Info("Plan session reset", "user_id", sc.UserID, "session_id", sc.SessionID)
	h.publish(sc, EventReset, nil)
	JSON(w, http.StatusOK, newSessionView(sc.SessionID, sc.Store.Snapshot()))
}

type navigateRequest struct {
	Stage string `json:"stage"`
}

// Navigate jumps to any valid stage.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sc := h.scope(r)
	if err := stage.New(sc.Store).Navigate(domain.Stage(req.Stage)); err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	h.publish(sc, EventStage, map[string]string{"stage": req.Stage})
	JSON(w, http.StatusOK, newSessionView(sc.SessionID, sc.Store.Snapshot()))
}

// Continue advances to the next stage when the current one is complete.
func (h *Handler) Continue(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	m := stage.New(sc.Store)
	next, err := m.Continue()
	if err != nil {
		JSON(w, statusFor(err), map[string]any{"error": err.Error(), "missing": m.Missing()})
		return
	}
	h.publish(sc, EventStage, map[string]string{"stage": string(next)})
	JSON(w, http.StatusOK, newSessionView(sc.SessionID, sc.Store.Snapshot()))
}
