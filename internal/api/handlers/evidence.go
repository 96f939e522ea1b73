package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/structa-ai/verdict/internal/domain"
	"github.com/structa-ai/verdict/internal/ledger"
	"github.com/structa-ai/verdict/internal/service"
	"github.com/structa-ai/verdict/internal/store"
)

// EvidenceHandler covers intake of evidence, assumptions, and inferences,
// plus archive-backed evidence similarity lookups.
type EvidenceHandler struct {
	ledger *ledger.Ledger
	audit  *service.AuditService
}

func NewEvidenceHandler(led *ledger.Ledger, audit *service.AuditService) *EvidenceHandler {
	return &EvidenceHandler{ledger: led, audit: audit}
}

type createEvidenceRequest struct {
	Type      string                `json:"type"`
	Source    domain.EvidenceSource `json:"source"`
	Content   any                   `json:"content"`
	Metadata  map[string]any        `json:"metadata,omitempty"`
	Embedding []float32             `json:"embedding,omitempty"`
}

func (h *EvidenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidEvidenceType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid evidence type")
		return
	}

	stored := h.ledger.AddEvidence(domain.Evidence{
		Type:      domain.EvidenceType(req.Type),
		Source:    req.Source,
		Content:   req.Content,
		Metadata:  req.Metadata,
		Embedding: req.Embedding,
	})
	h.audit.ArchiveEvidence(r.Context(), stored)

	writeJSON(w, http.StatusCreated, stored)
}

func (h *EvidenceHandler) CreateAssumption(w http.ResponseWriter, r *http.Request) {
	var a domain.Assumption
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if a.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	stored := h.ledger.AddAssumption(a)
	h.audit.ArchiveAssumption(r.Context(), stored)

	writeJSON(w, http.StatusCreated, stored)
}

func (h *EvidenceHandler) CreateInference(w http.ResponseWriter, r *http.Request) {
	var inf domain.Inference
	if err := json.NewDecoder(r.Body).Decode(&inf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if inf.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if inf.Confidence < 0 || inf.Confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be in [0,1]")
		return
	}

	stored := h.ledger.AddInference(inf)
	h.audit.ArchiveInference(r.Context(), stored)

	writeJSON(w, http.StatusCreated, stored)
}

func (h *EvidenceHandler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, err := h.ledger.Evidence(id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "evidence not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get evidence")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Similar returns archived evidence nearest to the given entry's embedding.
func (h *EvidenceHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := h.audit.SimilarEvidence(r.Context(), id, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArchiveUnavailable):
			writeError(w, http.StatusServiceUnavailable, "audit archive not configured")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "evidence not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to find similar evidence")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}
