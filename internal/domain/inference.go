package domain

import "time"

// Alternative is a value a producer considered but did not select.
type Alternative struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Inference is one producer's candidate answer for a topic. Multiple
// inferences may share a topic; they represent competing hypotheses and are
// immutable once created.
type Inference struct {
	ID              string        `json:"id"`
	Topic           string        `json:"topic"`
	Value           any           `json:"value"`
	Confidence      float64       `json:"confidence"`
	Method          string        `json:"method"`
	UsedEvidence    []string      `json:"used_evidence,omitempty"`
	UsedAssumptions []string      `json:"used_assumptions,omitempty"`
	Explanation     string        `json:"explanation,omitempty"`
	Alternatives    []Alternative `json:"alternatives,omitempty"`
	Stage           string        `json:"stage"`
	CreatedAt       time.Time     `json:"created_at"`
}
