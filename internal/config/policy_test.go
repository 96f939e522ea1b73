package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/structa-ai/verdict/internal/domain"
)

func writePolicy(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	return path
}

func TestLoadPolicy_ReadsThresholdsAndTiebreakers(t *testing.T) {
	path := writePolicy(t, `
thresholds:
  acceptInference: 0.75
  conflictGap: 0.2
source_reliability:
  schedule: 0.95
  vision: 0.65
tiebreakers:
  - schedule
  - vision
`)

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := policy.Threshold(domain.ThresholdAcceptInference); got != 0.75 {
		t.Errorf("acceptInference = %v, want 0.75", got)
	}
	if got := policy.Threshold(domain.ThresholdConflictGap); got != 0.2 {
		t.Errorf("conflictGap = %v, want 0.2", got)
	}
	if got := policy.GetSourceReliability("schedule"); got != 0.95 {
		t.Errorf("schedule reliability = %v, want 0.95", got)
	}
	if got := policy.TiebreakerPriority("vision"); got != 1 {
		t.Errorf("vision priority = %d, want 1", got)
	}
}

func TestLoadPolicy_PartialFileKeepsDefaults(t *testing.T) {
	path := writePolicy(t, `
source_reliability:
  schedule: 0.9
`)

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := policy.Threshold(domain.ThresholdAcceptInference); got != domain.DefaultAcceptInference {
		t.Errorf("acceptInference = %v, want default %v", got, domain.DefaultAcceptInference)
	}
	if got := policy.Threshold(domain.ThresholdConflictGap); got != domain.DefaultConflictGap {
		t.Errorf("conflictGap = %v, want default %v", got, domain.DefaultConflictGap)
	}
}

func TestLoadPolicy_MissingFileUsesDefaults(t *testing.T) {
	policy, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := policy.Threshold(domain.ThresholdAcceptInference); got != domain.DefaultAcceptInference {
		t.Errorf("acceptInference = %v, want default %v", got, domain.DefaultAcceptInference)
	}
}

func TestLoadPolicy_MalformedYAMLErrors(t *testing.T) {
	path := writePolicy(t, "thresholds: [not, a, map")

	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadPolicy_RejectsOutOfRangeValues(t *testing.T) {
	cases := map[string]string{
		"threshold above one": `
thresholds:
  acceptInference: 1.5
`,
		"negative reliability": `
source_reliability:
  vision: -0.2
`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := writePolicy(t, contents)
			if _, err := LoadPolicy(path); err == nil {
				t.Fatal("expected range error")
			}
		})
	}
}
