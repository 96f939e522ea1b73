package service

import (
	"fmt"

	"github.com/structa-ai/verdict/internal/domain"
	"github.com/structa-ai/verdict/internal/ledger"
	"go.uber.org/zap"
)

// ResolutionSummary tallies how each topic in a batch was settled, one
// increment per topic.
type ResolutionSummary struct {
	AutoResolved     int `json:"auto_resolved"`
	ManualReview     int `json:"manual_review"`
	PolicyViolations int `json:"policy_violations"`
}

// BatchResult aggregates one resolution pass over a full set of inferences.
type BatchResult struct {
	Decisions      []domain.Decision `json:"decisions"`
	Flags          []domain.Flag     `json:"flags"`
	TotalDecisions int               `json:"total_decisions"`
	TotalFlags     int               `json:"total_flags"`
	Summary        ResolutionSummary `json:"resolution_summary"`
}

// ResolutionStage runs the conflict resolver across every topic present in a
// batch. One topic's failure never aborts the batch: the resolver degrades
// its own errors, and the stage additionally contains panics escaping it.
type ResolutionStage struct {
	resolver *ConflictResolver
	ledger   *ledger.Ledger
	logger   *zap.Logger
}

func NewResolutionStage(resolver *ConflictResolver, led *ledger.Ledger, logger *zap.Logger) *ResolutionStage {
	return &ResolutionStage{
		resolver: resolver,
		ledger:   led,
		logger:   logger,
	}
}

// Run groups inferences by topic (stable first-occurrence order) and resolves
// each in turn. Only a batch that cannot be grouped at all — an inference
// with no topic — returns an error, and only after it is logged.
func (s *ResolutionStage) Run(stage string, inferences []domain.Inference, strategies []domain.Strategy) (*BatchResult, error) {
	topics, byTopic, err := groupByTopic(inferences)
	if err != nil {
		s.logger.Error("batch cannot be grouped by topic", zap.Error(err))
		return nil, err
	}

	result := &BatchResult{
		Decisions: []domain.Decision{},
		Flags:     []domain.Flag{},
	}

	for _, topic := range topics {
		res := s.resolveTopic(topic, byTopic[topic], strategies, stage)

		result.Decisions = append(result.Decisions, res.Decision)
		result.Flags = append(result.Flags, res.Flags...)

		switch res.Method {
		case domain.ResolutionAuto:
			result.Summary.AutoResolved++
		case domain.ResolutionManualReview:
			result.Summary.ManualReview++
		case domain.ResolutionPolicyViolation:
			result.Summary.PolicyViolations++
		}

		s.logger.Debug("topic resolved",
			zap.String("stage", stage),
			zap.String("topic", topic),
			zap.String("method", string(res.Method)),
			zap.Float64("confidence", res.Confidence))
	}

	result.TotalDecisions = len(result.Decisions)
	result.TotalFlags = len(result.Flags)

	s.logger.Info("resolution batch complete",
		zap.String("stage", stage),
		zap.Int("topics", len(topics)),
		zap.Int("auto_resolved", result.Summary.AutoResolved),
		zap.Int("manual_review", result.Summary.ManualReview),
		zap.Int("policy_violations", result.Summary.PolicyViolations))

	return result, nil
}

// resolveTopic calls the resolver, containing any panic it lets escape. The
// resolver is the authoritative flag-emission point for errors it sees
// itself; this catch only fires when it never got to degrade, so a given
// failure produces exactly one POLICY_VIOLATION flag.
func (s *ResolutionStage) resolveTopic(topic string, inferences []domain.Inference, strategies []domain.Strategy, stage string) (res ConflictResolution) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		s.logger.Error("resolver panicked",
			zap.String("topic", topic),
			zap.Any("panic", rec))

		var ids []string
		for _, inf := range inferences {
			ids = append(ids, inf.ID)
		}

		decision := s.ledger.AddDecision(domain.Decision{
			Topic:               topic,
			CompetingInferences: []string{},
			Method:              domain.ResolutionPolicyViolation,
			Justification:       fmt.Sprintf("resolution failed: %v", rec),
			Stage:               stage,
		})
		flag := s.ledger.AddFlag(domain.Flag{
			Type:         domain.FlagPolicyViolation,
			Severity:     domain.SeverityCritical,
			Topic:        topic,
			Message:      fmt.Sprintf("resolution of %q failed: %v", topic, rec),
			InferenceIDs: ids,
			DecisionID:   decision.ID,
		})

		res = ConflictResolution{
			Decision: decision,
			Flags:    []domain.Flag{flag},
			Method:   domain.ResolutionPolicyViolation,
		}
	}()

	return s.resolver.Resolve(topic, inferences, strategies, stage)
}

// groupByTopic buckets inferences by topic, preserving the order in which
// each topic first appears.
func groupByTopic(inferences []domain.Inference) ([]string, map[string][]domain.Inference, error) {
	var topics []string
	byTopic := make(map[string][]domain.Inference)

	for i, inf := range inferences {
		if inf.Topic == "" {
			return nil, nil, fmt.Errorf("inference %d (id %q) has no topic", i, inf.ID)
		}
		if _, seen := byTopic[inf.Topic]; !seen {
			topics = append(topics, inf.Topic)
		}
		byTopic[inf.Topic] = append(byTopic[inf.Topic], inf)
	}
	return topics, byTopic, nil
}
