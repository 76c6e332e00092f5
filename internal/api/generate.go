package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/generation"
	"github.com/chgenberg/frejfund-site/internal/places"
)

// GenerateNarrative produces the business plan text.
func (h *Handler) GenerateNarrative(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	text, err := h.gen.GenerateNarrative(r.Context(), sc)
	if err != nil {
		generationFailed(w, sc, generation.KindNarrative, text, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"text": text})
}

// GenerateSwot produces the SWOT analysis and its diagram.
func (h *Handler) GenerateSwot(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	res, err := h.gen.GenerateSwot(r.Context(), sc)
	if err != nil {
		generationFailed(w, sc, generation.KindSwot, res.Text, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"text":        res.Text,
		"sections":    res.Sections,
		"has_diagram": len(res.Diagram) > 0,
	})
}

// SwotDiagram serves the last rendered SWOT diagram as PNG.
func (h *Handler) SwotDiagram(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	art := sc.Store.Artifacts()
	if !art.HasSwotDiagram() {
		Error(w, http.StatusNotFound, "no swot diagram")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(art.SwotDiagramImage)
}

// GenerateCompetitors produces the market share breakdown.
func (h *Handler) GenerateCompetitors(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	res, err := h.gen.GenerateCompetitors(r.Context(), sc)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, res)
}

// CompetitorLocations builds the breakdown and looks up each competitor's places.
// With ?source=market the breakdown comes from the analysis answers instead.
func (h *Handler) CompetitorLocations(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	var (
		res generation.CompetitorResult
		err error
	)
	if r.URL.Query().Get("source") == "market" {
		res, err = h.gen.MarketPosition(r.Context(), sc)
	} else {
		res, err = h.gen.GenerateCompetitors(r.Context(), sc)
	}
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}

	city := sc.Store.GetString(domain.KeyCity, "")
	if q := r.URL.Query().Get("city"); q != "" {
		city = q
	}
	locations, err := h.gen.LocateCompetitors(r.Context(), sc, city, res.Competitors)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}

	hits := make([]domain.Place, 0, len(locations))
	for _, l := range locations {
		hits = append(hits, l.Place)
	}
	lat, lng := places.Center(hits, city)
	JSON(w, http.StatusOK, map[string]any{
		"competitors":    res.Competitors,
		"fallback":       res.Fallback,
		"locations":      locations,
		"center":         map[string]float64{"lat": lat, "lng": lng},
		"places_enabled": h.gen.PlacesAvailable(),
	})
}

type logoRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateLogo creates a logo image. An empty body uses the default prompt.
func (h *Handler) GenerateLogo(w http.ResponseWriter, r *http.Request) {
	var req logoRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && err != io.EOF {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sc := h.scope(r)
	u, err := h.gen.GenerateLogo(r.Context(), sc, req.Prompt)
	if err != nil {
		generationFailed(w, sc, generation.KindLogo, "", err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"url": u})
}

// StandardLogo stores the placeholder logo for the company name.
func (h *Handler) StandardLogo(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	u, err := h.gen.StandardLogo(sc)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"url": u})
}

// GenerateManifest streams pending ticks over SSE until the manifest is ready.
func (h *Handler) GenerateManifest(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sc := h.scope(r)
	text, err := h.gen.GenerateManifest(r.Context(), sc, func(elapsed time.Duration) {
		data := fmt.Sprintf(`{"elapsed_ms":%d}`, elapsed.Milliseconds())
		if werr := writeSSE(w, "pending", data); werr != nil {
			slog.Debug("failed to write SSE pending event", "error", werr)
			return
		}
		flusher.Flush()
	})
	if r.Context().Err() != nil {
		slog.Info("Manifest client left before completion", "user_id", sc.UserID, "session_id", sc.SessionID)
		return
	}

	event := "manifest"
	payload := map[string]string{"text": text}
	if err != nil {
		event = "error"
		payload["error"] = err.Error()
	}
	data, merr := json.Marshal(payload)
	if merr != nil {
		slog.Warn("failed to marshal manifest response", "error", merr)
		return
	}
	if werr := writeSSE(w, event, string(data)); werr != nil {
		slog.Warn("failed to write SSE manifest event", "error", werr)
		return
	}
	flusher.Flush()
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

type adviceRequest struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
}

// Advice runs one topical advice prompt.
func (h *Handler) Advice(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sc := h.scope(r)
	text, err := h.gen.Advice(r.Context(), sc, generation.AdviceKind(req.Kind), req.Query)
	if err != nil {
		generationFailed(w, sc, generation.KindAdvice, text, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"text": text})
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask answers a free-form question. A failed call still returns the failure
// text, which is also appended to the conversation log.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sc := h.scope(r)
	answer, err := h.gen.Ask(r.Context(), sc, req.Question)
	if err != nil {
		if answer == "" {
			Error(w, statusFor(err), err.Error())
			return
		}
		generationFailed(w, sc, generation.KindAsk, answer, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"text": answer})
}

