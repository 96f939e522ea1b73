package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/structa-ai/verdict/internal/domain"
	"go.uber.org/zap"
)

func TestLedger_SummaryTracksEveryAdd(t *testing.T) {
	l := New(zap.NewNop())

	e := l.AddEvidence(domain.Evidence{Type: domain.EvidenceScheduleRow, Content: "S-201 row 4"})
	a := l.AddAssumption(domain.Assumption{Key: "joist_spacing", Value: "16in", Basis: "code default"})
	inf := l.AddInference(domain.Inference{
		Topic:           "joist_size",
		Value:           "2x10",
		Confidence:      0.9,
		Method:          "schedule_lookup",
		UsedEvidence:    []string{e.ID},
		UsedAssumptions: []string{a.ID},
	})
	d := l.AddDecision(domain.Decision{Topic: "joist_size", SelectedInferenceID: inf.ID})
	l.AddFlag(domain.Flag{Type: domain.FlagConflict, Severity: domain.SeverityLow, DecisionID: d.ID})

	got := l.Summary()
	want := Summary{TotalEvidence: 1, TotalAssumptions: 1, TotalInferences: 1, TotalDecisions: 1, TotalFlags: 1}
	if got != want {
		t.Errorf("Summary() = %+v, want %+v", got, want)
	}
}

func TestLedger_AssignsIDsAndKeepsCallerIDs(t *testing.T) {
	l := New(zap.NewNop())

	generated := l.AddEvidence(domain.Evidence{Type: domain.EvidenceTextSnippet})
	if generated.ID == "" {
		t.Error("expected generated id")
	}
	if generated.CreatedAt.IsZero() {
		t.Error("expected creation timestamp")
	}

	kept := l.AddInference(domain.Inference{ID: "inf-7", Topic: "joist_size"})
	if kept.ID != "inf-7" {
		t.Errorf("id = %q, want caller's inf-7", kept.ID)
	}
}

func TestLedger_InjectedIDGenerator(t *testing.T) {
	n := 0
	l := New(zap.NewNop(), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))

	first := l.AddEvidence(domain.Evidence{Type: domain.EvidenceScheduleRow})
	second := l.AddEvidence(domain.Evidence{Type: domain.EvidenceScheduleRow})

	if first.ID != "id-1" || second.ID != "id-2" {
		t.Errorf("ids = %q, %q, want id-1, id-2", first.ID, second.ID)
	}
}

func TestLedger_LookupsAndNotFound(t *testing.T) {
	l := New(zap.NewNop())

	d := l.AddDecision(domain.Decision{Topic: "joist_size"})

	got, err := l.Decision(d.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Topic != "joist_size" {
		t.Errorf("topic = %q", got.Topic)
	}

	if _, err := l.Decision("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := l.Inference("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := l.Evidence("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := l.Assumption("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLedger_DanglingReferencesAcceptedWithWarning(t *testing.T) {
	l := New(zap.NewNop())

	inf := l.AddInference(domain.Inference{
		Topic:        "joist_size",
		UsedEvidence: []string{"never-added"},
	})
	if inf.ID == "" {
		t.Fatal("inference with dangling reference should still be accepted")
	}
	if l.Summary().TotalInferences != 1 {
		t.Error("inference not recorded")
	}
}

func TestLedger_ResolveFlagIsOnlyMutation(t *testing.T) {
	l := New(zap.NewNop())

	f := l.AddFlag(domain.Flag{Type: domain.FlagConflict, Severity: domain.SeverityMedium})
	if f.Resolved {
		t.Fatal("flag should start unresolved")
	}

	updated, err := l.ResolveFlag(f.ID, true, "confirmed against addendum 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.Resolved {
		t.Error("flag not resolved")
	}
	if updated.ResolutionNote != "confirmed against addendum 3" {
		t.Errorf("note = %q, want the reviewer's note", updated.ResolutionNote)
	}

	stored, _ := l.Flag(f.ID)
	if !stored.Resolved {
		t.Error("resolution not persisted")
	}
	if stored.ResolutionNote != "confirmed against addendum 3" {
		t.Error("note not persisted")
	}

	// Reopening without a note keeps the earlier note.
	reopened, err := l.ResolveFlag(f.ID, false, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reopened.ResolutionNote != "confirmed against addendum 3" {
		t.Error("empty note must not erase the recorded one")
	}

	if _, err := l.ResolveFlag("missing", true, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLedger_FlagsFilterOpenOnly(t *testing.T) {
	l := New(zap.NewNop())

	l.AddFlag(domain.Flag{Type: domain.FlagConflict, Severity: domain.SeverityLow, Resolved: true})
	open := l.AddFlag(domain.Flag{Type: domain.FlagConflict, Severity: domain.SeverityMedium})

	all := l.Flags(false)
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}

	onlyOpen := l.Flags(true)
	if len(onlyOpen) != 1 || onlyOpen[0].ID != open.ID {
		t.Errorf("open flags = %+v, want just %s", onlyOpen, open.ID)
	}
}

func TestLedger_ReturnedCopiesAreDetached(t *testing.T) {
	l := New(zap.NewNop())

	d := l.AddDecision(domain.Decision{Topic: "joist_size", Justification: "original"})

	got, _ := l.Decision(d.ID)
	got.Justification = "tampered"

	again, _ := l.Decision(d.ID)
	if again.Justification != "original" {
		t.Error("ledger entry mutated through returned copy")
	}
}

func TestLedger_ConcurrentAppendsKeepExactCounts(t *testing.T) {
	l := New(zap.NewNop())

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				l.AddEvidence(domain.Evidence{Type: domain.EvidenceTextSnippet})
				l.AddFlag(domain.Flag{Type: domain.FlagConflict, Severity: domain.SeverityLow})
			}
		}()
	}
	wg.Wait()

	got := l.Summary()
	if got.TotalEvidence != workers*perWorker {
		t.Errorf("TotalEvidence = %d, want %d", got.TotalEvidence, workers*perWorker)
	}
	if got.TotalFlags != workers*perWorker {
		t.Errorf("TotalFlags = %d, want %d", got.TotalFlags, workers*perWorker)
	}
}
