package domain

import "testing"

func TestPolicy_ThresholdFallsBackToDefaults(t *testing.T) {
	p := &Policy{Thresholds: map[string]float64{ThresholdAcceptInference: 0.9}}

	if got := p.Threshold(ThresholdAcceptInference); got != 0.9 {
		t.Errorf("acceptInference = %v, want 0.9", got)
	}
	if got := p.Threshold(ThresholdConflictGap); got != DefaultConflictGap {
		t.Errorf("conflictGap = %v, want default %v", got, DefaultConflictGap)
	}
	if got := p.Threshold("unknownThreshold"); got != 0 {
		t.Errorf("unknown threshold = %v, want 0", got)
	}
}

func TestPolicy_SourceReliabilityDefaultsToHalf(t *testing.T) {
	p := &Policy{SourceReliability: map[string]float64{"schedule": 0.95}}

	if got := p.GetSourceReliability("schedule"); got != 0.95 {
		t.Errorf("schedule = %v, want 0.95", got)
	}
	if got := p.GetSourceReliability("folklore"); got != DefaultSourceReliability {
		t.Errorf("unranked source = %v, want %v", got, DefaultSourceReliability)
	}
}

func TestPolicy_TiebreakerPriorityIsListPosition(t *testing.T) {
	p := &Policy{Tiebreakers: []string{"schedule", "document_text", "vision"}}

	if got := p.TiebreakerPriority("schedule"); got != 0 {
		t.Errorf("schedule = %d, want 0", got)
	}
	if got := p.TiebreakerPriority("vision"); got != 2 {
		t.Errorf("vision = %d, want 2", got)
	}
	if got := p.TiebreakerPriority("folklore"); got != DefaultTiebreakerPriority {
		t.Errorf("unlisted source = %d, want %d", got, DefaultTiebreakerPriority)
	}
}

func TestPolicy_SnapshotIsDetachedFromLivePolicy(t *testing.T) {
	p := &Policy{
		Thresholds:  map[string]float64{ThresholdAcceptInference: 0.8},
		Tiebreakers: []string{"schedule", "vision"},
	}

	snap := p.Snapshot("thresholdFilter", "rankingCascade")

	p.Thresholds[ThresholdAcceptInference] = 0.1
	p.Tiebreakers[0] = "rumor"

	if got := snap.Thresholds[ThresholdAcceptInference]; got != 0.8 {
		t.Errorf("snapshot threshold = %v, want 0.8", got)
	}
	if snap.Tiebreakers[0] != "schedule" {
		t.Errorf("snapshot tiebreakers[0] = %q, want schedule", snap.Tiebreakers[0])
	}
	if len(snap.RulesApplied) != 2 || snap.RulesApplied[1] != "rankingCascade" {
		t.Errorf("rulesApplied = %v", snap.RulesApplied)
	}
}

func TestDefaultPolicy_CarriesCompiledThresholds(t *testing.T) {
	p := DefaultPolicy()

	if got := p.Threshold(ThresholdAcceptInference); got != DefaultAcceptInference {
		t.Errorf("acceptInference = %v, want %v", got, DefaultAcceptInference)
	}
	if got := p.Threshold(ThresholdConflictGap); got != DefaultConflictGap {
		t.Errorf("conflictGap = %v, want %v", got, DefaultConflictGap)
	}
}
