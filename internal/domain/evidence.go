package domain

import "time"

type EvidenceType string

const (
	EvidenceScheduleRow   EvidenceType = "schedule_row"
	EvidenceTextSnippet   EvidenceType = "text_snippet"
	EvidenceDrawingRegion EvidenceType = "drawing_region"
	EvidenceDefaultTable  EvidenceType = "default_table"
)

func ValidEvidenceType(s string) bool {
	switch EvidenceType(s) {
	case EvidenceScheduleRow, EvidenceTextSnippet, EvidenceDrawingRegion, EvidenceDefaultTable:
		return true
	}
	return false
}

// EvidenceSource records where a piece of evidence came from.
type EvidenceSource struct {
	DocumentID string  `json:"document_id"`
	Page       int     `json:"page"`
	Extractor  string  `json:"extractor"`
	Confidence float64 `json:"confidence"`
}

// Evidence is a unit of raw extracted material (a schedule row, a text
// snippet). It is created by extractors before resolution and is referenced,
// never owned, by inferences.
type Evidence struct {
	ID        string         `json:"id"`
	Type      EvidenceType   `json:"type"`
	Source    EvidenceSource `json:"source"`
	Content   any            `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

// Assumption is a named default value used when evidence is absent.
type Assumption struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Value      any       `json:"value"`
	Basis      string    `json:"basis"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}
