package domain

import "context"

// Archive stores hold a durable copy of ledger entries so audit bundles can
// be rebuilt after a restart. Archiving is best-effort: the in-memory ledger
// remains the source of truth within a run.

type EvidenceWithScore struct {
	Evidence
	Score float64 `json:"score"`
}

type EvidenceArchive interface {
	Create(ctx context.Context, e *Evidence) error
	GetByID(ctx context.Context, id string) (*Evidence, error)
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]EvidenceWithScore, error)
}

type AssumptionArchive interface {
	Create(ctx context.Context, a *Assumption) error
	GetByID(ctx context.Context, id string) (*Assumption, error)
}

type InferenceArchive interface {
	Create(ctx context.Context, inf *Inference) error
	GetByID(ctx context.Context, id string) (*Inference, error)
	ListByTopic(ctx context.Context, topic string) ([]Inference, error)
}

type DecisionArchive interface {
	Create(ctx context.Context, d *Decision) error
	GetByID(ctx context.Context, id string) (*Decision, error)
	ListByStage(ctx context.Context, stage string, limit int) ([]Decision, error)
}

type FlagArchive interface {
	Create(ctx context.Context, f *Flag) error
	GetByID(ctx context.Context, id string) (*Flag, error)
	ListOpen(ctx context.Context, limit int) ([]Flag, error)
	ListByDecision(ctx context.Context, decisionID string) ([]Flag, error)
	SetResolved(ctx context.Context, id string, resolved bool, note string) error
}
