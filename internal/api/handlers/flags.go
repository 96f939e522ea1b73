package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/structa-ai/verdict/internal/ledger"
	"github.com/structa-ai/verdict/internal/service"
)

// FlagHandler exposes the review-queue surface over ledger flags.
type FlagHandler struct {
	ledger *ledger.Ledger
	audit  *service.AuditService
}

func NewFlagHandler(led *ledger.Ledger, audit *service.AuditService) *FlagHandler {
	return &FlagHandler{ledger: led, audit: audit}
}

// List returns flags in insertion order; ?resolved=false narrows to the open
// review queue, served from the archive when the ledger is empty.
func (h *FlagHandler) List(w http.ResponseWriter, r *http.Request) {
	onlyOpen := r.URL.Query().Get("resolved") == "false"
	flags := h.audit.Flags(r.Context(), onlyOpen)
	writeJSON(w, http.StatusOK, map[string]any{
		"flags": flags,
		"count": len(flags),
	})
}

type resolveFlagRequest struct {
	Resolved *bool  `json:"resolved"`
	Note     string `json:"note,omitempty"`
}

// Resolve toggles a flag's resolved bit and records the reviewer's note, the
// one mutation review workflows are allowed.
func (h *FlagHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req := resolveFlagRequest{}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	resolved := true
	if req.Resolved != nil {
		resolved = *req.Resolved
	}

	flag, err := h.audit.ResolveFlag(r.Context(), id, resolved, req.Note)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "flag not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve flag")
		return
	}
	writeJSON(w, http.StatusOK, flag)
}
