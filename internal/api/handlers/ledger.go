package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/structa-ai/verdict/internal/ledger"
	"github.com/structa-ai/verdict/internal/service"
)

// LedgerHandler exposes read access to the audit ledger, with archive
// fallback for entries that predate this process.
type LedgerHandler struct {
	ledger *ledger.Ledger
	audit  *service.AuditService
}

func NewLedgerHandler(led *ledger.Ledger, audit *service.AuditService) *LedgerHandler {
	return &LedgerHandler{ledger: led, audit: audit}
}

func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Summary())
}

func (h *LedgerHandler) GetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	decision, err := h.audit.GetDecision(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "decision not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get decision")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// ListDecisions returns a stage's decisions.
func (h *LedgerHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	if stage == "" {
		writeError(w, http.StatusBadRequest, "stage query parameter is required")
		return
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	decisions, err := h.audit.DecisionsByStage(r.Context(), stage, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

func (h *LedgerHandler) GetInference(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inf, err := h.audit.GetInference(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "inference not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get inference")
		return
	}
	writeJSON(w, http.StatusOK, inf)
}

// ListInferences returns a topic's competing inferences.
func (h *LedgerHandler) ListInferences(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeError(w, http.StatusBadRequest, "topic query parameter is required")
		return
	}

	inferences, err := h.audit.InferencesByTopic(r.Context(), topic)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list inferences")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"inferences": inferences,
		"count":      len(inferences),
	})
}

// AuditBundle returns the full inspectable trail behind one decision.
func (h *LedgerHandler) AuditBundle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	bundle, err := h.audit.BuildBundle(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "decision not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build audit bundle")
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}
