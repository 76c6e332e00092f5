package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chgenberg/frejfund-site/internal/persistence"
	"github.com/chgenberg/frejfund-site/internal/report"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// Save writes the session to a timestamped record.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	handle, err := h.saves.Save(sc.UserID, sc.Store.Snapshot())
	if err != nil {
		slog.Error("Failed to save session", "error", err, "user_id", sc.UserID)
		Error(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"handle": handle})
}

// ListSaves returns the caller's record handles, newest first.
func (h *Handler) ListSaves(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	handles, err := h.saves.ListSaves(sc.UserID)
	if err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]any{"saves": handles})
}

type loadRequest struct {
	Handle string `json:"handle"`
}

// LoadSave restores a named record into the session.
func (h *Handler) LoadSave(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !persistence.ValidHandle(req.Handle) {
		Error(w, http.StatusBadRequest, persistence.ErrInvalidHandle.Error())
		return
	}
	sc := h.scope(r)
	rec, ok := h.saves.Load(sc.UserID, req.Handle)
	h.restore(w, r, rec, ok)
}

// LoadLatest restores the most recent record into the session.
func (h *Handler) LoadLatest(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	rec, ok := h.saves.LoadLatest(sc.UserID)
	h.restore(w, r, rec, ok)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request, rec persistence.Record, ok bool) {
	if !ok {
		JSON(w, http.StatusNotFound, map[string]any{
			"error":                "save not found",
			"user_data":            rec.UserData,
			"conversation_history": rec.ConversationHistory,
		})
		return
	}
	sc := h.scope(r)
	st, err := persistence.Restore(sc.Store, rec)
	if err != nil {
		slog.Error("Failed to restore session", "error", err, "user_id", sc.UserID)
		Error(w, http.StatusInternalServerError, "failed to restore session")
		return
	}
	h.publish(sc, EventStage, map[string]string{"stage": string(st)})
	JSON(w, http.StatusOK, newSessionView(sc.SessionID, sc.Store.Snapshot()))
}

// BuildReport renders the session to a PDF file.
func (h *Handler) BuildReport(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	path, doc, err := h.reports.Assemble(r.Context(), sc.UserID, sc.Store)
	if err != nil {
		slog.Error("Failed to assemble report", "error", err, "user_id", sc.UserID)
		Error(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	h.publish(sc, "artifact", map[string]string{"name": "pdf_path"})
	JSON(w, http.StatusCreated, map[string]any{
		"file":     filepath.Base(path),
		"sections": doc.Sections,
		"bytes":    len(doc.PDF),
	})
}

func (h *Handler) reportPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := h.scope(r).Store.Artifacts().PDFPath
	if path == "" {
		Error(w, http.StatusNotFound, "no report built")
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		Error(w, http.StatusNotFound, "report file missing")
		return "", false
	}
	return path, true
}

// DownloadReport serves the last built PDF as an attachment.
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	path, ok := h.reportPath(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

// ReportLink returns an inline download anchor for the last built PDF.
func (h *Handler) ReportLink(w http.ResponseWriter, r *http.Request) {
	path, ok := h.reportPath(w, r)
	if !ok {
		return
	}
	link, err := report.DownloadLink(path, r.URL.Query().Get("text"))
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to read report")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"html": link})
}

// ListGenerations returns the caller's recent generation ledger.
func (h *Handler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	sc := h.scope(r)
	limit := defaultLedgerLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLedgerLimit)
	}
	events, err := h.repo.ListGenerations(r.Context(), sc.UserID, limit)
	if err != nil {
		slog.Error("Failed to list generations", "error", err, "user_id", sc.UserID)
		Error(w, http.StatusInternalServerError, "failed to list generations")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"generations": events})
}
