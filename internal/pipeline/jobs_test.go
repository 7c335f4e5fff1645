package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rank"
)

func TestNewJob(t *testing.T) {
	inputs := []Input{{Filename: "a.pdf"}, {Filename: "b.docx"}}
	job := NewJob("job-1", inputs, nil, true)

	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if job.UseModel {
		t.Error("expected UseModel false without a rater")
	}
	if job.Explain {
		t.Error("expected Explain false without a rater")
	}
	if job.Progress.Total != 2 {
		t.Errorf("expected total 2, got %d", job.Progress.Total)
	}
	if len(job.Files) != 2 || job.Files[1] != "b.docx" {
		t.Errorf("unexpected files %v", job.Files)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusExtracting, "extracting"},
		{StatusScoring, "scoring"},
		{StatusExplaining, "explaining"},
		{StatusRanking, "ranking"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("weights: negative")
	job.AddError("archive: disk full")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "weights: negative" {
		t.Errorf("expected first error %q, got %q", "weights: negative", snap.Progress.Errors[0])
	}

	// The snapshot must not alias the job's slice.
	snap.Progress.Errors[0] = "changed"
	if job.Snapshot().Progress.Errors[0] != "weights: negative" {
		t.Error("snapshot errors alias job state")
	}
}

func TestJob_Counters(t *testing.T) {
	job := &Job{ID: "incr-test", UpdatedAt: time.Now()}
	job.SetTotal(3)
	job.IncrExtracted()
	job.IncrExtracted()
	job.IncrScored()

	snap := job.Snapshot()
	if snap.Progress.Total != 3 {
		t.Errorf("expected total 3, got %d", snap.Progress.Total)
	}
	if snap.Progress.Extracted != 2 {
		t.Errorf("expected 2 extracted, got %d", snap.Progress.Extracted)
	}
	if snap.Progress.Scored != 1 {
		t.Errorf("expected 1 scored, got %d", snap.Progress.Scored)
	}
}

func TestJob_SetBatchDropsInputs(t *testing.T) {
	job := NewJob("j", []Input{{Filename: "a.txt", Data: []byte("Cost\n$1")}}, nil, false)

	p := proposal.New("a.txt", 0)
	p.Scores[proposal.Technical] = proposal.ScoreResult{Value: 10, Fallback: "heuristic"}
	p.AddIssue(proposal.Issue{Kind: proposal.KindScoringServiceError})
	b := rank.NewBatch("j", []*proposal.Proposal{p}, rank.DefaultWeights(), proposal.StrategyModel, "m")

	job.SetBatch(b)
	if job.Inputs() != nil {
		t.Error("expected inputs to be released")
	}
	if job.Batch() != b {
		t.Error("expected batch to be stored")
	}
	snap := job.Snapshot()
	if snap.Progress.Fallbacks != 1 || snap.Progress.Issues != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestArchivedSnapshot(t *testing.T) {
	a := proposal.New("a.txt", 0)
	b := proposal.New("b.txt", 1)
	b.Scores[proposal.Cost] = proposal.ScoreResult{Value: 100}
	batch := rank.NewBatch("arch", []*proposal.Proposal{a, b}, rank.DefaultWeights(), proposal.StrategyHeuristic, "")

	snap := ArchivedSnapshot(batch)
	if snap.Status != StatusCompleted {
		t.Errorf("expected completed, got %q", snap.Status)
	}
	if snap.Files[0] != "a.txt" || snap.Files[1] != "b.txt" {
		t.Errorf("expected submission order, got %v", snap.Files)
	}
	if snap.UseModel {
		t.Error("expected heuristic batch")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := time.Duration(1<<uint(attempt)) * time.Second
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}

func TestJob_Weights(t *testing.T) {
	job := NewJob("w", nil, nil, false)
	def := rank.DefaultWeights()
	if job.Weights(def) != def {
		t.Error("expected fallback weights")
	}
	custom := rank.Weights{Cost: 1}
	job.SetWeights(custom)
	if job.Weights(def) != custom {
		t.Errorf("expected custom weights, got %+v", job.Weights(def))
	}
}
