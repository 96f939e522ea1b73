package domain

// Policy threshold names and defaults.
const (
	ThresholdAcceptInference = "acceptInference"
	ThresholdConflictGap     = "conflictGap"

	DefaultAcceptInference = 0.7
	DefaultConflictGap     = 0.15

	// DefaultSourceReliability applies to source types the policy does not rank.
	DefaultSourceReliability = 0.5
	// DefaultTiebreakerPriority makes unranked sources lose every tiebreak.
	DefaultTiebreakerPriority = 999

	// ReliabilityIndistinct is the reliability difference below which two
	// sources are treated as statistically indistinguishable.
	ReliabilityIndistinct = 0.1
)

// Policy supplies the named thresholds, per-source reliability weights, and
// the ordered tiebreaker list the resolver consults. It is a pure lookup
// table; nothing mutates it during a run.
type Policy struct {
	Thresholds        map[string]float64 `yaml:"thresholds" json:"thresholds"`
	SourceReliability map[string]float64 `yaml:"source_reliability" json:"source_reliability"`
	Tiebreakers       []string           `yaml:"tiebreakers" json:"tiebreakers"`
}

func DefaultPolicy() *Policy {
	return &Policy{
		Thresholds: map[string]float64{
			ThresholdAcceptInference: DefaultAcceptInference,
			ThresholdConflictGap:     DefaultConflictGap,
		},
		SourceReliability: map[string]float64{},
	}
}

// Threshold returns the named threshold, falling back to the compiled
// default for the two well-known names and zero otherwise.
func (p *Policy) Threshold(name string) float64 {
	if v, ok := p.Thresholds[name]; ok {
		return v
	}
	switch name {
	case ThresholdAcceptInference:
		return DefaultAcceptInference
	case ThresholdConflictGap:
		return DefaultConflictGap
	}
	return 0
}

// GetSourceReliability returns the trust weight for a source type, 0.5 when
// the type is unranked.
func (p *Policy) GetSourceReliability(sourceType string) float64 {
	if v, ok := p.SourceReliability[sourceType]; ok {
		return v
	}
	return DefaultSourceReliability
}

// TiebreakerPriority returns the position of a source type in the ordered
// tiebreaker list (ascending is better). Unlisted sources get 999.
func (p *Policy) TiebreakerPriority(sourceType string) int {
	for i, st := range p.Tiebreakers {
		if st == sourceType {
			return i
		}
	}
	return DefaultTiebreakerPriority
}

// Snapshot freezes the policy state consulted during one resolution so the
// resulting decision remains auditable after the live policy changes.
func (p *Policy) Snapshot(rulesApplied ...string) PolicySnapshot {
	thresholds := map[string]float64{
		ThresholdAcceptInference: p.Threshold(ThresholdAcceptInference),
		ThresholdConflictGap:     p.Threshold(ThresholdConflictGap),
	}
	tiebreakers := make([]string, len(p.Tiebreakers))
	copy(tiebreakers, p.Tiebreakers)
	return PolicySnapshot{
		Thresholds:   thresholds,
		Tiebreakers:  tiebreakers,
		RulesApplied: rulesApplied,
	}
}
