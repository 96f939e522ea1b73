package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/structa-ai/verdict/internal/domain"
	"github.com/structa-ai/verdict/internal/ledger"
	"github.com/structa-ai/verdict/internal/store"
	"go.uber.org/zap"
)

// ErrArchiveUnavailable is returned by operations that need the durable
// archive when the service was built without one.
var ErrArchiveUnavailable = errors.New("audit archive not configured")

// AuditBundle reconstructs the complete trail behind one decision: the
// selected inference, every competing inference, all referenced evidence and
// assumptions, and the flags raised alongside.
type AuditBundle struct {
	Decision          domain.Decision     `json:"decision"`
	SelectedInference *domain.Inference   `json:"selected_inference,omitempty"`
	Competing         []domain.Inference  `json:"competing_inferences,omitempty"`
	Evidence          []domain.Evidence   `json:"evidence,omitempty"`
	Assumptions       []domain.Assumption `json:"assumptions,omitempty"`
	Flags             []domain.Flag       `json:"flags,omitempty"`
}

// AuditService builds audit bundles and mirrors ledger entries into the
// durable archive when one is configured. Reads go to the ledger first and
// fall back to the archive on a miss, so audit trails outlive a restart.
type AuditService struct {
	ledger *ledger.Ledger
	logger *zap.Logger

	evidenceArchive  domain.EvidenceArchive
	assumptionArch   domain.AssumptionArchive
	inferenceArchive domain.InferenceArchive
	decisionArchive  domain.DecisionArchive
	flagArchive      domain.FlagArchive
}

func NewAuditService(led *ledger.Ledger, logger *zap.Logger) *AuditService {
	return &AuditService{ledger: led, logger: logger}
}

// SetArchives wires the durable stores. Any may be nil; archiving degrades to
// a no-op and reads to ledger-only for the missing kinds.
func (s *AuditService) SetArchives(
	evidence domain.EvidenceArchive,
	assumptions domain.AssumptionArchive,
	inferences domain.InferenceArchive,
	decisions domain.DecisionArchive,
	flags domain.FlagArchive,
) {
	s.evidenceArchive = evidence
	s.assumptionArch = assumptions
	s.inferenceArchive = inferences
	s.decisionArchive = decisions
	s.flagArchive = flags
}

// GetDecision reads a decision from the ledger, falling back to the archive
// when the entry predates this process.
func (s *AuditService) GetDecision(ctx context.Context, id string) (*domain.Decision, error) {
	d, err := s.ledger.Decision(id)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) || s.decisionArchive == nil {
		return nil, err
	}
	archived, err := s.decisionArchive.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return archived, nil
}

// GetInference reads an inference with the same ledger-then-archive fallback.
func (s *AuditService) GetInference(ctx context.Context, id string) (*domain.Inference, error) {
	inf, err := s.ledger.Inference(id)
	if err == nil {
		return inf, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) || s.inferenceArchive == nil {
		return nil, err
	}
	archived, err := s.inferenceArchive.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return archived, nil
}

func (s *AuditService) getEvidence(ctx context.Context, id string) (*domain.Evidence, error) {
	e, err := s.ledger.Evidence(id)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) || s.evidenceArchive == nil {
		return nil, err
	}
	return s.evidenceArchive.GetByID(ctx, id)
}

func (s *AuditService) getAssumption(ctx context.Context, id string) (*domain.Assumption, error) {
	a, err := s.ledger.Assumption(id)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) || s.assumptionArch == nil {
		return nil, err
	}
	return s.assumptionArch.GetByID(ctx, id)
}

// DecisionsByStage lists a stage's decisions, serving from the archive when
// the ledger has none for that stage.
func (s *AuditService) DecisionsByStage(ctx context.Context, stage string, limit int) ([]domain.Decision, error) {
	decisions := s.ledger.DecisionsByStage(stage)
	if len(decisions) == 0 && s.decisionArchive != nil {
		return s.decisionArchive.ListByStage(ctx, stage, limit)
	}
	if limit > 0 && len(decisions) > limit {
		decisions = decisions[:limit]
	}
	return decisions, nil
}

// InferencesByTopic lists a topic's candidate inferences with the same
// ledger-then-archive fallback.
func (s *AuditService) InferencesByTopic(ctx context.Context, topic string) ([]domain.Inference, error) {
	inferences := s.ledger.InferencesByTopic(topic)
	if len(inferences) == 0 && s.inferenceArchive != nil {
		return s.inferenceArchive.ListByTopic(ctx, topic)
	}
	return inferences, nil
}

// Flags lists flags for review. An empty ledger with an archive configured
// serves the open queue from the archive.
func (s *AuditService) Flags(ctx context.Context, onlyOpen bool) []domain.Flag {
	flags := s.ledger.Flags(onlyOpen)
	if len(flags) == 0 && onlyOpen && s.flagArchive != nil {
		archived, err := s.flagArchive.ListOpen(ctx, 0)
		if err != nil {
			s.logger.Warn("failed to list archived open flags", zap.Error(err))
			return flags
		}
		return archived
	}
	return flags
}

func (s *AuditService) flagsForDecision(ctx context.Context, decisionID string) []domain.Flag {
	flags := s.ledger.FlagsForDecision(decisionID)
	if len(flags) == 0 && s.flagArchive != nil {
		archived, err := s.flagArchive.ListByDecision(ctx, decisionID)
		if err != nil {
			s.logger.Warn("failed to list archived flags for decision",
				zap.String("decision_id", decisionID), zap.Error(err))
			return flags
		}
		return archived
	}
	return flags
}

// BuildBundle assembles the audit trail for a decision. Each referenced
// entity is read from the ledger with an archive fallback; references missing
// from both are skipped, not fatal.
func (s *AuditService) BuildBundle(ctx context.Context, decisionID string) (*AuditBundle, error) {
	decision, err := s.GetDecision(ctx, decisionID)
	if err != nil {
		return nil, fmt.Errorf("decision %q: %w", decisionID, err)
	}

	bundle := &AuditBundle{
		Decision: *decision,
		Flags:    s.flagsForDecision(ctx, decisionID),
	}

	seenEvidence := make(map[string]bool)
	seenAssumptions := make(map[string]bool)
	collect := func(inf *domain.Inference) {
		for _, id := range inf.UsedEvidence {
			if seenEvidence[id] {
				continue
			}
			seenEvidence[id] = true
			if e, err := s.getEvidence(ctx, id); err == nil {
				bundle.Evidence = append(bundle.Evidence, *e)
			}
		}
		for _, id := range inf.UsedAssumptions {
			if seenAssumptions[id] {
				continue
			}
			seenAssumptions[id] = true
			if a, err := s.getAssumption(ctx, id); err == nil {
				bundle.Assumptions = append(bundle.Assumptions, *a)
			}
		}
	}

	if decision.SelectedInferenceID != "" {
		if inf, err := s.GetInference(ctx, decision.SelectedInferenceID); err == nil {
			bundle.SelectedInference = inf
			collect(inf)
		}
	}
	for _, id := range decision.CompetingInferences {
		inf, err := s.GetInference(ctx, id)
		if err != nil {
			continue
		}
		bundle.Competing = append(bundle.Competing, *inf)
		collect(inf)
	}

	return bundle, nil
}

// ArchiveRun mirrors a batch's decisions and flags into the durable archive.
// Failures are logged and swallowed; archiving never fails a resolution.
func (s *AuditService) ArchiveRun(ctx context.Context, result *BatchResult) {
	if s.decisionArchive != nil {
		for i := range result.Decisions {
			if err := s.decisionArchive.Create(ctx, &result.Decisions[i]); err != nil {
				s.logger.Warn("failed to archive decision",
					zap.String("decision_id", result.Decisions[i].ID),
					zap.Error(err))
			}
		}
	}
	if s.flagArchive != nil {
		for i := range result.Flags {
			if err := s.flagArchive.Create(ctx, &result.Flags[i]); err != nil {
				s.logger.Warn("failed to archive flag",
					zap.String("flag_id", result.Flags[i].ID),
					zap.Error(err))
			}
		}
	}
}

// ArchiveEvidence mirrors a ledger evidence entry, ArchiveAssumption and
// ArchiveInference likewise. All best-effort.
func (s *AuditService) ArchiveEvidence(ctx context.Context, e domain.Evidence) {
	if s.evidenceArchive == nil {
		return
	}
	if err := s.evidenceArchive.Create(ctx, &e); err != nil {
		s.logger.Warn("failed to archive evidence", zap.String("evidence_id", e.ID), zap.Error(err))
	}
}

func (s *AuditService) ArchiveAssumption(ctx context.Context, a domain.Assumption) {
	if s.assumptionArch == nil {
		return
	}
	if err := s.assumptionArch.Create(ctx, &a); err != nil {
		s.logger.Warn("failed to archive assumption", zap.String("assumption_id", a.ID), zap.Error(err))
	}
}

func (s *AuditService) ArchiveInference(ctx context.Context, inf domain.Inference) {
	if s.inferenceArchive == nil {
		return
	}
	if err := s.inferenceArchive.Create(ctx, &inf); err != nil {
		s.logger.Warn("failed to archive inference", zap.String("inference_id", inf.ID), zap.Error(err))
	}
}

// ResolveFlag toggles a flag's resolved bit and records the reviewer's note
// in the ledger and, when configured, the archive. A flag known only to the
// archive (created before a restart) is resolved there directly.
func (s *AuditService) ResolveFlag(ctx context.Context, id string, resolved bool, note string) (domain.Flag, error) {
	flag, err := s.ledger.ResolveFlag(id, resolved, note)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) || s.flagArchive == nil {
			return domain.Flag{}, err
		}
		if err := s.flagArchive.SetResolved(ctx, id, resolved, note); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Flag{}, ledger.ErrNotFound
			}
			return domain.Flag{}, err
		}
		archived, err := s.flagArchive.GetByID(ctx, id)
		if err != nil {
			return domain.Flag{}, err
		}
		return *archived, nil
	}

	if s.flagArchive != nil {
		if err := s.flagArchive.SetResolved(ctx, id, resolved, note); err != nil {
			s.logger.Warn("failed to update archived flag", zap.String("flag_id", id), zap.Error(err))
		}
	}
	return flag, nil
}

// SimilarEvidence finds archived evidence nearest to the given entry's
// embedding. Requires both the archive and an embedded entry.
func (s *AuditService) SimilarEvidence(ctx context.Context, evidenceID string, limit int) ([]domain.EvidenceWithScore, error) {
	if s.evidenceArchive == nil {
		return nil, ErrArchiveUnavailable
	}
	e, err := s.evidenceArchive.GetByID(ctx, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("evidence %q: %w", evidenceID, err)
	}
	if len(e.Embedding) == 0 {
		return nil, fmt.Errorf("evidence %q has no embedding", evidenceID)
	}
	return s.evidenceArchive.FindSimilar(ctx, e.Embedding, limit)
}
