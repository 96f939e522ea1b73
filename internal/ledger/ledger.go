// Package ledger implements the append-only audit ledger. Every entity the
// resolution pipeline touches — evidence, assumptions, inferences, decisions,
// flags — is appended exactly once and never mutated afterwards, with one
// exception: a flag's resolved bit may be toggled by review workflows.
package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/structa-ai/verdict/internal/domain"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("ledger: entry not found")

// Summary reports running entity counts. Counts only ever grow.
type Summary struct {
	TotalEvidence    int `json:"total_evidence"`
	TotalAssumptions int `json:"total_assumptions"`
	TotalInferences  int `json:"total_inferences"`
	TotalDecisions   int `json:"total_decisions"`
	TotalFlags       int `json:"total_flags"`
}

// Ledger is safe for concurrent use; appends are serialized so concurrent
// topic resolutions never interleave a partial entry.
type Ledger struct {
	mu     sync.RWMutex
	newID  func() string
	logger *zap.Logger

	evidence    []domain.Evidence
	assumptions []domain.Assumption
	inferences  []domain.Inference
	decisions   []domain.Decision
	flags       []domain.Flag

	evidenceByID   map[string]int
	assumptionByID map[string]int
	inferenceByID  map[string]int
	decisionByID   map[string]int
	flagByID       map[string]int
}

type Option func(*Ledger)

// WithIDGenerator overrides the id generator (uuid.NewString by default).
// Tests inject deterministic generators here.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

func New(logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		newID:          uuid.NewString,
		logger:         logger,
		evidenceByID:   make(map[string]int),
		assumptionByID: make(map[string]int),
		inferenceByID:  make(map[string]int),
		decisionByID:   make(map[string]int),
		flagByID:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddEvidence appends a piece of evidence, assigning an id and creation time
// if the caller did not. The stored copy is returned.
func (l *Ledger) AddEvidence(e domain.Evidence) domain.Evidence {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stamp(&e.ID, &e.CreatedAt)
	l.evidenceByID[e.ID] = len(l.evidence)
	l.evidence = append(l.evidence, e)
	return e
}

func (l *Ledger) AddAssumption(a domain.Assumption) domain.Assumption {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stamp(&a.ID, &a.CreatedAt)
	l.assumptionByID[a.ID] = len(l.assumptions)
	l.assumptions = append(l.assumptions, a)
	return a
}

// AddInference appends a candidate inference. Dangling evidence or assumption
// references are the caller's problem; the ledger logs them and accepts the
// entry anyway.
func (l *Ledger) AddInference(inf domain.Inference) domain.Inference {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range inf.UsedEvidence {
		if _, ok := l.evidenceByID[id]; !ok {
			l.logger.Warn("inference references unknown evidence",
				zap.String("topic", inf.Topic),
				zap.String("evidence_id", id))
		}
	}
	for _, id := range inf.UsedAssumptions {
		if _, ok := l.assumptionByID[id]; !ok {
			l.logger.Warn("inference references unknown assumption",
				zap.String("topic", inf.Topic),
				zap.String("assumption_id", id))
		}
	}

	l.stamp(&inf.ID, &inf.CreatedAt)
	l.inferenceByID[inf.ID] = len(l.inferences)
	l.inferences = append(l.inferences, inf)
	return inf
}

func (l *Ledger) AddDecision(d domain.Decision) domain.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stamp(&d.ID, &d.CreatedAt)
	l.decisionByID[d.ID] = len(l.decisions)
	l.decisions = append(l.decisions, d)
	return d
}

func (l *Ledger) AddFlag(f domain.Flag) domain.Flag {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stamp(&f.ID, &f.CreatedAt)
	l.flagByID[f.ID] = len(l.flags)
	l.flags = append(l.flags, f)
	return f
}

// ResolveFlag toggles a flag's resolved bit and records the reviewer's note
// when one is given. This is the only mutation the ledger permits after
// insertion.
func (l *Ledger) ResolveFlag(id string, resolved bool, note string) (domain.Flag, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.flagByID[id]
	if !ok {
		return domain.Flag{}, ErrNotFound
	}
	l.flags[idx].Resolved = resolved
	if note != "" {
		l.flags[idx].ResolutionNote = note
	}
	return l.flags[idx], nil
}

func (l *Ledger) Evidence(id string) (*domain.Evidence, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.evidenceByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	e := l.evidence[idx]
	return &e, nil
}

func (l *Ledger) Assumption(id string) (*domain.Assumption, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.assumptionByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	a := l.assumptions[idx]
	return &a, nil
}

func (l *Ledger) Inference(id string) (*domain.Inference, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.inferenceByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	inf := l.inferences[idx]
	return &inf, nil
}

func (l *Ledger) Decision(id string) (*domain.Decision, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.decisionByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	d := l.decisions[idx]
	return &d, nil
}

func (l *Ledger) Flag(id string) (*domain.Flag, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.flagByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	f := l.flags[idx]
	return &f, nil
}

// Flags returns flags in insertion order. With onlyOpen set, resolved flags
// are skipped.
func (l *Ledger) Flags(onlyOpen bool) []domain.Flag {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Flag, 0, len(l.flags))
	for _, f := range l.flags {
		if onlyOpen && f.Resolved {
			continue
		}
		out = append(out, f)
	}
	return out
}

// FlagsForDecision returns every flag attached to a decision.
func (l *Ledger) FlagsForDecision(decisionID string) []domain.Flag {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Flag
	for _, f := range l.flags {
		if f.DecisionID == decisionID {
			out = append(out, f)
		}
	}
	return out
}

// Decisions returns all decisions in insertion order.
func (l *Ledger) Decisions() []domain.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Decision, len(l.decisions))
	copy(out, l.decisions)
	return out
}

// DecisionsByStage returns one stage's decisions in insertion order.
func (l *Ledger) DecisionsByStage(stage string) []domain.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Decision
	for _, d := range l.decisions {
		if d.Stage == stage {
			out = append(out, d)
		}
	}
	return out
}

// InferencesByTopic returns one topic's inferences in insertion order.
func (l *Ledger) InferencesByTopic(topic string) []domain.Inference {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Inference
	for _, inf := range l.inferences {
		if inf.Topic == topic {
			out = append(out, inf)
		}
	}
	return out
}

func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Summary{
		TotalEvidence:    len(l.evidence),
		TotalAssumptions: len(l.assumptions),
		TotalInferences:  len(l.inferences),
		TotalDecisions:   len(l.decisions),
		TotalFlags:       len(l.flags),
	}
}

// stamp fills in a generated id and creation time when the caller left them
// zero. Caller must hold l.mu.
func (l *Ledger) stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = l.newID()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
}
