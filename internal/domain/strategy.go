package domain

import "context"

// Strategy describes a producer capable of answering a topic. The resolver
// consumes descriptors only; it uses them to map a candidate inference's
// method back to a source type for reliability and tiebreaker lookups.
type Strategy struct {
	Topic      string `json:"topic"`
	Method     string `json:"method"`
	SourceType string `json:"source_type"`
}

// StrategyResult is the output contract producers must honor. A failed run
// carries Err and zero confidence; a successful one carries the value with
// its provenance references.
type StrategyResult struct {
	OK              bool          `json:"ok"`
	Value           any           `json:"value,omitempty"`
	Confidence      float64       `json:"confidence"`
	Explanation     string        `json:"explanation,omitempty"`
	UsedEvidence    []string      `json:"used_evidence,omitempty"`
	UsedAssumptions []string      `json:"used_assumptions,omitempty"`
	Alternatives    []Alternative `json:"alternatives,omitempty"`
	Err             string        `json:"error,omitempty"`
}

// StrategyRunner is implemented by producers outside this engine. It is
// defined here so producers and the resolution pipeline agree on shape; the
// engine itself never invokes Infer.
type StrategyRunner interface {
	Descriptor() Strategy
	CanHandle(ctx context.Context, input any) bool
	Infer(ctx context.Context, input any) (StrategyResult, error)
}
