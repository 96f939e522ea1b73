package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/structa-ai/verdict/internal/domain"
	"github.com/structa-ai/verdict/internal/ledger"
	"github.com/structa-ai/verdict/internal/service"
)

// RunHandler exposes the batch resolution entry point.
type RunHandler struct {
	stage  *service.ResolutionStage
	audit  *service.AuditService
	ledger *ledger.Ledger
}

func NewRunHandler(stage *service.ResolutionStage, audit *service.AuditService, led *ledger.Ledger) *RunHandler {
	return &RunHandler{stage: stage, audit: audit, ledger: led}
}

type resolveRunRequest struct {
	Stage       string              `json:"stage"`
	Evidence    []domain.Evidence   `json:"evidence,omitempty"`
	Assumptions []domain.Assumption `json:"assumptions,omitempty"`
	Inferences  []domain.Inference  `json:"inferences"`
	Strategies  []domain.Strategy   `json:"strategies"`
}

// Resolve appends the run's inputs to the ledger in dependency order
// (evidence and assumptions before the inferences that reference them), then
// resolves every topic in the batch.
func (h *RunHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Stage == "" {
		writeError(w, http.StatusBadRequest, "stage is required")
		return
	}
	if len(req.Inferences) == 0 {
		writeError(w, http.StatusBadRequest, "inferences are required")
		return
	}

	ctx := r.Context()

	for _, e := range req.Evidence {
		stored := h.ledger.AddEvidence(e)
		h.audit.ArchiveEvidence(ctx, stored)
	}
	for _, a := range req.Assumptions {
		stored := h.ledger.AddAssumption(a)
		h.audit.ArchiveAssumption(ctx, stored)
	}

	inferences := make([]domain.Inference, 0, len(req.Inferences))
	for _, inf := range req.Inferences {
		if inf.Stage == "" {
			inf.Stage = req.Stage
		}
		stored := h.ledger.AddInference(inf)
		h.audit.ArchiveInference(ctx, stored)
		inferences = append(inferences, stored)
	}

	result, err := h.stage.Run(req.Stage, inferences, req.Strategies)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.audit.ArchiveRun(ctx, result)

	writeJSON(w, http.StatusOK, result)
}
