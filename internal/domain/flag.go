package domain

import "time"

type FlagType string

const (
	FlagLowConfidence   FlagType = "LOW_CONFIDENCE"
	FlagConflict        FlagType = "CONFLICT"
	FlagPolicyViolation FlagType = "POLICY_VIOLATION"
)

type FlagSeverity string

const (
	SeverityLow      FlagSeverity = "low"
	SeverityMedium   FlagSeverity = "medium"
	SeverityHigh     FlagSeverity = "high"
	SeverityCritical FlagSeverity = "critical"
)

func ValidSeverity(s string) bool {
	switch FlagSeverity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Flag is an out-of-band audit signal attached to a topic or decision.
// Resolved starts false; informational flags emitted alongside an
// auto-resolved decision are created already resolved. Toggling Resolved is
// the only mutation the ledger permits after insertion.
type Flag struct {
	ID             string       `json:"id"`
	Type           FlagType     `json:"type"`
	Severity       FlagSeverity `json:"severity"`
	Topic          string       `json:"topic"`
	Message        string       `json:"message"`
	EvidenceIDs    []string     `json:"evidence_ids,omitempty"`
	AssumptionIDs  []string     `json:"assumption_ids,omitempty"`
	InferenceIDs   []string     `json:"inference_ids,omitempty"`
	DecisionID     string       `json:"decision_id,omitempty"`
	Resolved       bool         `json:"resolved"`
	ResolutionNote string       `json:"resolution_note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
