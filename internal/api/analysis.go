package api

import (
	"errors"
	"net/http"

	"github.com/chgenberg/frejfund-site/internal/generation"
	"github.com/go-chi/chi/v5"
)

// Catalog returns the analysis question catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.gen.Catalog())
}

// PutAnalysisAnswers merges analysis answers into the session.
func (h *Handler) PutAnalysisAnswers(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if !decodeJSON(w, r, &values) {
		return
	}
	sc := h.scope(r)
	sc.Store.SetAnalysisAnswers(values)
	JSON(w, http.StatusOK, map[string]any{"analysis_answers": sc.Store.AnalysisAnswers()})
}

// Prefill fills a category from the plan answers once per session.
func (h *Handler) Prefill(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	res, err := h.gen.PrefillCategory(r.Context(), sc, chi.URLParam(r, "category"))
	writePrefill(w, res, err)
}

// Refill asks for fresh suggestions regardless of earlier prefills.
func (h *Handler) Refill(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	res, err := h.gen.RefillCategory(r.Context(), sc, chi.URLParam(r, "category"))
	writePrefill(w, res, err)
}

// writePrefill reports a prefill. A failed suggestion call still returns the
// values imported from the plan answers.
func writePrefill(w http.ResponseWriter, res generation.PrefillResult, err error) {
	switch {
	case errors.Is(err, generation.ErrUnknownCategory):
		Error(w, http.StatusNotFound, err.Error())
	case err != nil:
		JSON(w, http.StatusOK, map[string]any{
			"category": res.Category,
			"applied":  res.Applied,
			"skipped":  res.Skipped,
			"error":    err.Error(),
		})
	default:
		JSON(w, http.StatusOK, res)
	}
}

// ResetPrefill allows one category to be prefilled again.
func (h *Handler) ResetPrefill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "category")
	if _, ok := h.gen.Catalog().Category(id); !ok {
		Error(w, http.StatusNotFound, "unknown analysis category")
		return
	}
	h.scope(r).Store.ClearPrefilled(id)
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// ResetAllPrefill clears every prefill marker.
func (h *Handler) ResetAllPrefill(w http.ResponseWriter, r *http.Request) {
	h.scope(r).Store.ClearAllPrefilled()
	JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// AnalyzeCategory produces feedback on one category's answers.
func (h *Handler) AnalyzeCategory(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	text, err := h.gen.AnalyzeCategory(r.Context(), sc, chi.URLParam(r, "category"))
	if err != nil {
		if text == "" {
			Error(w, statusFor(err), err.Error())
			return
		}
		generationFailed(w, sc, generation.KindAnalyze, text, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"text": text})
}

// Summary produces the overall analysis and rating.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	sum, err := h.gen.Summarize(r.Context(), sc)
	if err != nil {
		generationFailed(w, sc, generation.KindSummary, sum.Text, err)
		return
	}
	JSON(w, http.StatusOK, sum)
}

// Radar scores the five radar categories, falling back to the stored rating.
func (h *Handler) Radar(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	radar, err := h.gen.RadarScores(r.Context(), sc, generation.StoredRating(sc.Store))
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, radar)
}

// Financial produces the five-year projection.
func (h *Handler) Financial(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	proj, err := h.gen.FinancialProjection(r.Context(), sc)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, proj)
}

// MarketPosition builds a market share breakdown from the analysis answers.
func (h *Handler) MarketPosition(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	res, err := h.gen.MarketPosition(r.Context(), sc)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, res)
}
