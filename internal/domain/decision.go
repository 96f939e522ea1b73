package domain

import "time"

type ResolutionMethod string

const (
	ResolutionAuto            ResolutionMethod = "auto"
	ResolutionManualReview    ResolutionMethod = "manual_review"
	ResolutionPolicyViolation ResolutionMethod = "policy_violation"
)

// PolicySnapshot captures the policy state a decision was made under, so the
// decision can be audited without the live policy.
type PolicySnapshot struct {
	Thresholds   map[string]float64 `json:"thresholds"`
	Tiebreakers  []string           `json:"tiebreakers,omitempty"`
	RulesApplied []string           `json:"rules_applied,omitempty"`
}

// Decision is the single arbitrated outcome for a topic. SelectedValue is nil
// and SelectedInferenceID empty when the topic could not be resolved.
// CompetingInferences holds every candidate that was considered but not
// selected; it never contains SelectedInferenceID.
type Decision struct {
	ID                  string           `json:"id"`
	Topic               string           `json:"topic"`
	SelectedValue       any              `json:"selected_value"`
	SelectedInferenceID string           `json:"selected_inference_id"`
	CompetingInferences []string         `json:"competing_inferences"`
	Confidence          float64          `json:"confidence"`
	Method              ResolutionMethod `json:"method"`
	Justification       string           `json:"justification"`
	PolicyUsed          PolicySnapshot   `json:"policy_used"`
	Stage               string           `json:"stage"`
	CreatedAt           time.Time        `json:"created_at"`
}
