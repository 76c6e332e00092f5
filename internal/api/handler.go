// Package api provides HTTP handlers for the planner API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chgenberg/frejfund-site/internal/generation"
	"github.com/chgenberg/frejfund-site/internal/identity"
	"github.com/chgenberg/frejfund-site/internal/llm"
	"github.com/chgenberg/frejfund-site/internal/persistence"
	"github.com/chgenberg/frejfund-site/internal/report"
	"github.com/chgenberg/frejfund-site/internal/session"
	"github.com/chgenberg/frejfund-site/internal/stage"
	"github.com/chgenberg/frejfund-site/internal/store"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Publisher pushes session notifications to connected clients.
type Publisher interface {
	Publish(userID, sessionID, kind string, data any)
}

// Handler serves the plan session API.
type Handler struct {
	repo       store.Repository
	sessions   *session.Registry
	gen        *generation.Coordinator
	saves      *persistence.Manager
	reports    *report.Assembler
	events     Publisher
	sessionTTL int64
}

// Deps groups the collaborators of a Handler.
type Deps struct {
	Repo       store.Repository
	Sessions   *session.Registry
	Generator  *generation.Coordinator
	Saves      *persistence.Manager
	Reports    *report.Assembler
	Events     Publisher
	SessionTTL int64 // seconds
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		repo:       d.Repo,
		sessions:   d.Sessions,
		gen:        d.Generator,
		saves:      d.Saves,
		reports:    d.Reports,
		events:     d.Events,
		sessionTTL: d.SessionTTL,
	}
}

// RegisterRoutes registers every /api route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)

		r.Get("/session", h.GetSession)
		r.Put("/session/answers", h.PutAnswers)
		r.Post("/session/reset", h.ResetSession)
		r.Post("/stage/navigate", h.Navigate)
		r.Post("/stage/continue", h.Continue)

		r.Route("/generate", func(r chi.Router) {
			r.Post("/narrative", h.GenerateNarrative)
			r.Post("/swot", h.GenerateSwot)
			r.Get("/swot/diagram", h.SwotDiagram)
			r.Post("/competitors", h.GenerateCompetitors)
			r.Post("/logo", h.GenerateLogo)
			r.Post("/logo/standard", h.StandardLogo)
			r.Post("/manifest", h.GenerateManifest)
			r.Post("/advice", h.Advice)
			r.Post("/ask", h.Ask)
		})
		r.Get("/competitors/locations", h.CompetitorLocations)

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/catalog", h.Catalog)
			r.Put("/answers", h.PutAnalysisAnswers)
			r.Post("/reset-prefill", h.ResetAllPrefill)
			r.Post("/summary", h.Summary)
			r.Post("/radar", h.Radar)
			r.Post("/financial", h.Financial)
			r.Post("/market", h.MarketPosition)
			r.Post("/{category}/prefill", h.Prefill)
			r.Post("/{category}/refill", h.Refill)
			r.Post("/{category}/analyze", h.AnalyzeCategory)
			r.Post("/{category}/reset-prefill", h.ResetPrefill)
		})

		r.Route("/saves", func(r chi.Router) {
			r.Get("/", h.ListSaves)
			r.Post("/", h.Save)
			r.Post("/load", h.LoadSave)
			r.Post("/load-latest", h.LoadLatest)
		})

		r.Post("/report", h.BuildReport)
		r.Get("/report/download", h.DownloadReport)
		r.Get("/report/link", h.ReportLink)

		r.Get("/generations", h.ListGenerations)
	})
}

// scope resolves the caller's live session.
func (h *Handler) scope(r *http.Request) generation.Scope {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	return generation.Scope{
		UserID:    userID,
		SessionID: sessionID,
		Store:     h.sessions.Get(userID, sessionID),
	}
}

func (h *Handler) publish(sc generation.Scope, kind string, data any) {
	if h.events == nil {
		return
	}
	h.events.Publish(sc.UserID, sc.SessionID, kind, data)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, stage.ErrInvalidStage),
		errors.Is(err, generation.ErrMissingInput),
		errors.Is(err, generation.ErrUnknownAdvice),
		errors.Is(err, persistence.ErrInvalidHandle),
		errors.Is(err, persistence.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, generation.ErrUnknownCategory):
		return http.StatusNotFound
	case errors.Is(err, stage.ErrRequirementsNotMet),
		errors.Is(err, stage.ErrNoNextStage):
		return http.StatusConflict
	case errors.Is(err, generation.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llm.ErrMissingCredential):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// generationFailed reports a failed generation with the inline text the UI shows
// in place of the result.
func generationFailed(w http.ResponseWriter, sc generation.Scope, kind, text string, err error) {
	status := statusFor(err)
	if status == http.StatusBadGateway {
		slog.Warn("Generation request failed", "kind", kind, "user_id", sc.UserID, "session_id", sc.SessionID, "error", err)
	}
	JSON(w, status, map[string]string{"error": err.Error(), "text": text})
}
