package service

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/structa-ai/verdict/internal/domain"
	"github.com/structa-ai/verdict/internal/ledger"
	"go.uber.org/zap"
)

func newTestStage(policy *domain.Policy) (*ResolutionStage, *ledger.Ledger) {
	led := ledger.New(zap.NewNop())
	resolver := NewConflictResolver(policy, led, zap.NewNop())
	return NewResolutionStage(resolver, led, zap.NewNop()), led
}

func topicInference(id, topic, method string, confidence float64) domain.Inference {
	return domain.Inference{
		ID:         id,
		Topic:      topic,
		Value:      "value-" + id,
		Confidence: confidence,
		Method:     method,
		Stage:      "resolution",
	}
}

func batchStrategies() []domain.Strategy {
	return []domain.Strategy{
		{Topic: "*", Method: "schedule_lookup", SourceType: "schedule"},
		{Topic: "*", Method: "vision_detect", SourceType: "vision"},
	}
}

func TestStageRun_TalliesPerTopicOutcomes(t *testing.T) {
	stage, led := newTestStage(testPolicy())

	inferences := []domain.Inference{
		// joist_size: single valid candidate -> auto
		topicInference("a1", "joist_size", "schedule_lookup", 0.92),
		topicInference("a2", "joist_size", "vision_detect", 0.55),
		// stud_spacing: close gap -> manual review
		topicInference("b1", "stud_spacing", "schedule_lookup", 0.85),
		topicInference("b2", "stud_spacing", "vision_detect", 0.80),
		// beam_depth: nothing passes -> policy violation
		topicInference("c1", "beam_depth", "vision_detect", 0.3),
	}

	result, err := stage.Run("resolution", inferences, batchStrategies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := ResolutionSummary{AutoResolved: 1, ManualReview: 1, PolicyViolations: 1}
	if diff := cmp.Diff(want, result.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	if result.TotalDecisions != 3 {
		t.Errorf("TotalDecisions = %d, want 3", result.TotalDecisions)
	}
	// manual review and policy violation each raise one flag
	if result.TotalFlags != 2 {
		t.Errorf("TotalFlags = %d, want 2", result.TotalFlags)
	}

	summary := led.Summary()
	if summary.TotalDecisions != result.TotalDecisions {
		t.Errorf("ledger decisions = %d, result decisions = %d", summary.TotalDecisions, result.TotalDecisions)
	}
	if summary.TotalFlags != result.TotalFlags {
		t.Errorf("ledger flags = %d, result flags = %d", summary.TotalFlags, result.TotalFlags)
	}
}

func TestStageRun_TopicsResolvedInFirstSeenOrder(t *testing.T) {
	stage, _ := newTestStage(testPolicy())

	inferences := []domain.Inference{
		topicInference("a1", "beam_depth", "schedule_lookup", 0.9),
		topicInference("b1", "joist_size", "schedule_lookup", 0.9),
		topicInference("a2", "beam_depth", "vision_detect", 0.5),
		topicInference("c1", "stud_spacing", "schedule_lookup", 0.9),
	}

	result, err := stage.Run("resolution", inferences, batchStrategies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var topics []string
	for _, d := range result.Decisions {
		topics = append(topics, d.Topic)
	}
	want := []string{"beam_depth", "joist_size", "stud_spacing"}
	if diff := cmp.Diff(want, topics); diff != "" {
		t.Errorf("topic order mismatch (-want +got):\n%s", diff)
	}
}

func TestStageRun_OneTopicFailureDoesNotAbortBatch(t *testing.T) {
	stage, _ := newTestStage(testPolicy())

	inferences := []domain.Inference{
		// joist_size resolves fine
		topicInference("a1", "joist_size", "schedule_lookup", 0.92),
		// stud_spacing has two valid candidates with an unregistered method
		topicInference("b1", "stud_spacing", "ghost_method", 0.9),
		topicInference("b2", "stud_spacing", "schedule_lookup", 0.88),
	}

	result, err := stage.Run("resolution", inferences, batchStrategies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Summary.AutoResolved != 1 {
		t.Errorf("AutoResolved = %d, want 1", result.Summary.AutoResolved)
	}
	if result.Summary.PolicyViolations != 1 {
		t.Errorf("PolicyViolations = %d, want 1", result.Summary.PolicyViolations)
	}

	// the failed topic still produced exactly one decision
	var violated *domain.Decision
	for i := range result.Decisions {
		if result.Decisions[i].Topic == "stud_spacing" {
			violated = &result.Decisions[i]
		}
	}
	if violated == nil {
		t.Fatal("no decision produced for the failed topic")
	}
	if violated.Method != domain.ResolutionPolicyViolation {
		t.Errorf("method = %s, want policy_violation", violated.Method)
	}
	if violated.SelectedValue != nil {
		t.Errorf("SelectedValue = %v, want nil", violated.SelectedValue)
	}
}

func TestStageRun_ContainsResolverPanic(t *testing.T) {
	// A nil policy makes the resolver panic on first threshold lookup; the
	// stage must convert that into a policy violation, not crash the batch.
	led := ledger.New(zap.NewNop())
	resolver := NewConflictResolver(nil, led, zap.NewNop())
	stage := NewResolutionStage(resolver, led, zap.NewNop())

	result, err := stage.Run("resolution", []domain.Inference{
		topicInference("a1", "joist_size", "schedule_lookup", 0.9),
	}, batchStrategies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Summary.PolicyViolations != 1 {
		t.Errorf("PolicyViolations = %d, want 1", result.Summary.PolicyViolations)
	}
	if result.TotalDecisions != 1 || result.TotalFlags != 1 {
		t.Errorf("got %d decisions %d flags, want exactly one of each",
			result.TotalDecisions, result.TotalFlags)
	}
	if result.Flags[0].Type != domain.FlagPolicyViolation {
		t.Errorf("flag type = %s, want POLICY_VIOLATION", result.Flags[0].Type)
	}
	if result.Flags[0].Severity != domain.SeverityCritical {
		t.Errorf("flag severity = %s, want critical", result.Flags[0].Severity)
	}
}

func TestStageRun_UngroupableBatchErrors(t *testing.T) {
	stage, led := newTestStage(testPolicy())

	_, err := stage.Run("resolution", []domain.Inference{
		{ID: "a1", Confidence: 0.9, Method: "schedule_lookup"},
	}, batchStrategies())
	if err == nil {
		t.Fatal("expected error for inference with no topic")
	}

	if led.Summary().TotalDecisions != 0 {
		t.Error("ungroupable batch must not produce decisions")
	}
}

func TestStageRun_EmptyBatch(t *testing.T) {
	stage, _ := newTestStage(testPolicy())

	result, err := stage.Run("resolution", nil, batchStrategies())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalDecisions != 0 || result.TotalFlags != 0 {
		t.Errorf("empty batch produced %d decisions %d flags", result.TotalDecisions, result.TotalFlags)
	}
}
