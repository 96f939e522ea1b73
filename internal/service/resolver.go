package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/structa-ai/verdict/internal/domain"
	"github.com/structa-ai/verdict/internal/ledger"
	"go.uber.org/zap"
)

// ManualReviewPenalty scales a winner's confidence when the gap to the
// runner-up is below the conflict-gap threshold and the pick is temporary.
const ManualReviewPenalty = 0.8

// Rule names recorded in decision policy snapshots.
const (
	RuleThresholdFilter     = "threshold_filter"
	RuleSingleCandidate     = "single_candidate"
	RuleRankingCascade      = "ranking_cascade"
	RuleAutoResolve         = "auto_resolve"
	RuleManualReviewPenalty = "manual_review_penalty"
)

// ConflictResolution is the outcome of arbitrating one topic. The decision
// and flags have already been appended to the ledger when it is returned.
type ConflictResolution struct {
	Decision   domain.Decision         `json:"decision"`
	Flags      []domain.Flag           `json:"flags,omitempty"`
	Confidence float64                 `json:"confidence"`
	Method     domain.ResolutionMethod `json:"resolution_method"`
}

// ConflictResolver arbitrates competing inferences for a single topic into
// exactly one decision, recording the full trail in the ledger.
type ConflictResolver struct {
	policy *domain.Policy
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewConflictResolver(policy *domain.Policy, led *ledger.Ledger, logger *zap.Logger) *ConflictResolver {
	return &ConflictResolver{
		policy: policy,
		ledger: led,
		logger: logger,
	}
}

// candidate annotates an inference with its producer's policy weights.
type candidate struct {
	inference   domain.Inference
	reliability float64
	priority    int
}

// Resolve arbitrates one topic. It always yields exactly one decision; errors
// inside the algorithm degrade to a policy_violation decision/flag pair
// instead of propagating, so one topic can never abort a batch.
func (r *ConflictResolver) Resolve(topic string, inferences []domain.Inference, strategies []domain.Strategy, stage string) ConflictResolution {
	res, err := r.resolve(topic, inferences, strategies, stage)
	if err != nil {
		r.logger.Warn("resolution degraded to policy violation",
			zap.String("topic", topic),
			zap.Error(err))
		return r.violation(topic, inferences, stage, err)
	}
	return res
}

func (r *ConflictResolver) resolve(topic string, inferences []domain.Inference, strategies []domain.Strategy, stage string) (ConflictResolution, error) {
	accept := r.policy.Threshold(domain.ThresholdAcceptInference)
	gapMin := r.policy.Threshold(domain.ThresholdConflictGap)

	var valid []domain.Inference
	for _, inf := range inferences {
		if inf.Topic == topic && inf.Confidence >= accept {
			valid = append(valid, inf)
		}
	}

	switch len(valid) {
	case 0:
		return r.noValidCandidates(topic, inferences, accept, stage), nil
	case 1:
		return r.singleCandidate(topic, valid[0], accept, stage), nil
	}

	ranked, err := r.rank(valid, strategies, gapMin)
	if err != nil {
		return ConflictResolution{}, err
	}

	gap := ranked[0].inference.Confidence - ranked[1].inference.Confidence
	if gap >= gapMin {
		return r.autoResolve(topic, ranked, gap, gapMin, stage), nil
	}
	return r.manualReview(topic, ranked, gap, gapMin, stage), nil
}

// rank annotates each valid candidate with its producer's reliability and
// tiebreaker priority, then orders by the three-level cascade: confidence
// when the difference exceeds the conflict gap, then reliability when the
// difference exceeds 0.1, then tiebreaker priority (lower wins).
func (r *ConflictResolver) rank(valid []domain.Inference, strategies []domain.Strategy, gapMin float64) ([]candidate, error) {
	cands := make([]candidate, 0, len(valid))
	for _, inf := range valid {
		strat, err := strategyForMethod(strategies, inf.Method)
		if err != nil {
			return nil, err
		}
		cands = append(cands, candidate{
			inference:   inf,
			reliability: r.policy.GetSourceReliability(strat.SourceType),
			priority:    r.policy.TiebreakerPriority(strat.SourceType),
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if diff := a.inference.Confidence - b.inference.Confidence; math.Abs(diff) > gapMin {
			return diff > 0
		}
		if diff := a.reliability - b.reliability; math.Abs(diff) > domain.ReliabilityIndistinct {
			return diff > 0
		}
		return a.priority < b.priority
	})
	return cands, nil
}

// strategyForMethod maps an inference's method back to its producer. An
// unranked source type degrades to defaults elsewhere, but an unregistered
// method means the candidate's provenance cannot be established at all.
func strategyForMethod(strategies []domain.Strategy, method string) (domain.Strategy, error) {
	for _, s := range strategies {
		if s.Method == method {
			return s, nil
		}
	}
	return domain.Strategy{}, fmt.Errorf("no strategy registered for method %q", method)
}

func (r *ConflictResolver) noValidCandidates(topic string, original []domain.Inference, accept float64, stage string) ConflictResolution {
	var inferenceIDs, evidenceIDs, assumptionIDs []string
	for _, inf := range original {
		inferenceIDs = append(inferenceIDs, inf.ID)
		evidenceIDs = append(evidenceIDs, inf.UsedEvidence...)
		assumptionIDs = append(assumptionIDs, inf.UsedAssumptions...)
	}

	decision := r.ledger.AddDecision(domain.Decision{
		Topic:               topic,
		SelectedValue:       nil,
		SelectedInferenceID: "",
		CompetingInferences: inferenceIDs,
		Confidence:          0,
		Method:              domain.ResolutionPolicyViolation,
		Justification: fmt.Sprintf("no inference for %q cleared the acceptance threshold %.2f (%d candidate(s) considered)",
			topic, accept, len(original)),
		PolicyUsed: r.policy.Snapshot(RuleThresholdFilter),
		Stage:      stage,
	})

	flag := r.ledger.AddFlag(domain.Flag{
		Type:     domain.FlagLowConfidence,
		Severity: domain.SeverityHigh,
		Topic:    topic,
		Message: fmt.Sprintf("all %d candidate(s) for %q fell below the acceptance threshold %.2f; value left unresolved",
			len(original), topic, accept),
		EvidenceIDs:   evidenceIDs,
		AssumptionIDs: assumptionIDs,
		InferenceIDs:  inferenceIDs,
		DecisionID:    decision.ID,
	})

	return ConflictResolution{
		Decision:   decision,
		Flags:      []domain.Flag{flag},
		Confidence: 0,
		Method:     domain.ResolutionPolicyViolation,
	}
}

func (r *ConflictResolver) singleCandidate(topic string, inf domain.Inference, accept float64, stage string) ConflictResolution {
	decision := r.ledger.AddDecision(domain.Decision{
		Topic:               topic,
		SelectedValue:       inf.Value,
		SelectedInferenceID: inf.ID,
		CompetingInferences: []string{},
		Confidence:          inf.Confidence,
		Method:              domain.ResolutionAuto,
		Justification: fmt.Sprintf("%q was the only inference above the acceptance threshold %.2f; selected with confidence %.2f",
			inf.Method, accept, inf.Confidence),
		PolicyUsed: r.policy.Snapshot(RuleThresholdFilter, RuleSingleCandidate),
		Stage:      stage,
	})

	return ConflictResolution{
		Decision:   decision,
		Confidence: inf.Confidence,
		Method:     domain.ResolutionAuto,
	}
}

func (r *ConflictResolver) autoResolve(topic string, ranked []candidate, gap, gapMin float64, stage string) ConflictResolution {
	winner := ranked[0]

	decision := r.ledger.AddDecision(domain.Decision{
		Topic:               topic,
		SelectedValue:       winner.inference.Value,
		SelectedInferenceID: winner.inference.ID,
		CompetingInferences: competingIDs(ranked),
		Confidence:          winner.inference.Confidence,
		Method:              domain.ResolutionAuto,
		Justification: fmt.Sprintf("selected %q over %s: confidence gap %.0f%% meets the %.0f%% auto-resolve threshold",
			winner.inference.Method, strings.Join(rejectedMethods(ranked), ", "), gap*100, gapMin*100),
		PolicyUsed: r.policy.Snapshot(RuleThresholdFilter, RuleRankingCascade, RuleAutoResolve),
		Stage:      stage,
	})

	// Informational only; created already resolved.
	flag := r.ledger.AddFlag(domain.Flag{
		Type:     domain.FlagConflict,
		Severity: domain.SeverityLow,
		Topic:    topic,
		Message: fmt.Sprintf("%d competing inference(s) for %q resolved automatically in favor of %q",
			len(ranked)-1, topic, winner.inference.Method),
		InferenceIDs: inferenceIDs(ranked),
		DecisionID:   decision.ID,
		Resolved:     true,
	})

	return ConflictResolution{
		Decision:   decision,
		Flags:      []domain.Flag{flag},
		Confidence: winner.inference.Confidence,
		Method:     domain.ResolutionAuto,
	}
}

func (r *ConflictResolver) manualReview(topic string, ranked []candidate, gap, gapMin float64, stage string) ConflictResolution {
	winner := ranked[0]
	// Downstream consumers still get a usable value, penalized for the
	// unresolved ambiguity.
	confidence := winner.inference.Confidence * ManualReviewPenalty

	decision := r.ledger.AddDecision(domain.Decision{
		Topic:               topic,
		SelectedValue:       winner.inference.Value,
		SelectedInferenceID: winner.inference.ID,
		CompetingInferences: competingIDs(ranked),
		Confidence:          confidence,
		Method:              domain.ResolutionManualReview,
		Justification: fmt.Sprintf("temporarily selected %q over %s: confidence gap %.0f%% is below the %.0f%% auto-resolve threshold; manual review required",
			winner.inference.Method, strings.Join(rejectedMethods(ranked), ", "), gap*100, gapMin*100),
		PolicyUsed: r.policy.Snapshot(RuleThresholdFilter, RuleRankingCascade, RuleManualReviewPenalty),
		Stage:      stage,
	})

	flag := r.ledger.AddFlag(domain.Flag{
		Type:     domain.FlagConflict,
		Severity: domain.SeverityMedium,
		Topic:    topic,
		Message: fmt.Sprintf("confidence gap %.0f%% between %q and %q is below the %.0f%% threshold; review the temporary pick for %q",
			gap*100, winner.inference.Method, ranked[1].inference.Method, gapMin*100, topic),
		InferenceIDs: inferenceIDs(ranked),
		DecisionID:   decision.ID,
	})

	return ConflictResolution{
		Decision:   decision,
		Flags:      []domain.Flag{flag},
		Confidence: confidence,
		Method:     domain.ResolutionManualReview,
	}
}

// violation converts an internal error into the degraded decision/flag pair.
func (r *ConflictResolver) violation(topic string, inferences []domain.Inference, stage string, cause error) ConflictResolution {
	var ids []string
	for _, inf := range inferences {
		ids = append(ids, inf.ID)
	}

	decision := r.ledger.AddDecision(domain.Decision{
		Topic:               topic,
		SelectedValue:       nil,
		SelectedInferenceID: "",
		CompetingInferences: []string{},
		Confidence:          0,
		Method:              domain.ResolutionPolicyViolation,
		Justification:       fmt.Sprintf("resolution failed: %v", cause),
		PolicyUsed:          r.policy.Snapshot(),
		Stage:               stage,
	})

	flag := r.ledger.AddFlag(domain.Flag{
		Type:         domain.FlagPolicyViolation,
		Severity:     domain.SeverityCritical,
		Topic:        topic,
		Message:      fmt.Sprintf("resolution of %q failed: %v", topic, cause),
		InferenceIDs: ids,
		DecisionID:   decision.ID,
	})

	return ConflictResolution{
		Decision:   decision,
		Flags:      []domain.Flag{flag},
		Confidence: 0,
		Method:     domain.ResolutionPolicyViolation,
	}
}

func competingIDs(ranked []candidate) []string {
	ids := make([]string, 0, len(ranked)-1)
	for _, c := range ranked[1:] {
		ids = append(ids, c.inference.ID)
	}
	return ids
}

func inferenceIDs(ranked []candidate) []string {
	ids := make([]string, 0, len(ranked))
	for _, c := range ranked {
		ids = append(ids, c.inference.ID)
	}
	return ids
}

func rejectedMethods(ranked []candidate) []string {
	methods := make([]string, 0, len(ranked)-1)
	for _, c := range ranked[1:] {
		methods = append(methods, fmt.Sprintf("%q", c.inference.Method))
	}
	return methods
}
