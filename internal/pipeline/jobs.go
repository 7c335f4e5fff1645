package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rank"
	"github.com/dgallion1/bidrank/internal/rater"
)

// JobStatus represents the state of an evaluation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusScoring    JobStatus = "scoring"
	StatusExplaining JobStatus = "explaining"
	StatusRanking    JobStatus = "ranking"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one batch evaluation submitted over the API.
type Job struct {
	mu sync.Mutex

	ID       string   `json:"job_id"`
	Files    []string `json:"files"`
	UseModel bool     `json:"use_model"`
	Explain  bool     `json:"explain"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	inputs  []Input
	rater   *rater.Rater
	weights *rank.Weights
	batch   *rank.Batch
	errors  []string
}

// Progress tracks processing progress.
type Progress struct {
	Total     int      `json:"total"`
	Extracted int      `json:"extracted"`
	Scored    int      `json:"scored"`
	Fallbacks int      `json:"fallbacks"`
	Issues    int      `json:"issues"`
	Errors    []string `json:"errors"`
}

// NewJob returns a queued job for inputs. r is nil for heuristic scoring.
func NewJob(id string, inputs []Input, r *rater.Rater, explain bool) *Job {
	now := time.Now()
	files := make([]string, len(inputs))
	for i, in := range inputs {
		files[i] = in.Filename
	}
	return &Job{
		ID:        id,
		Files:     files,
		UseModel:  r != nil,
		Explain:   explain && r != nil,
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{Total: len(inputs)},
		CreatedAt: now,
		UpdatedAt: now,
		inputs:    inputs,
		rater:     r,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records a job-level error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotal records how many proposals the batch holds.
func (j *Job) SetTotal(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Total = n
	j.UpdatedAt = time.Now()
}

// IncrExtracted marks one more proposal extracted and segmented.
func (j *Job) IncrExtracted() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Extracted++
	j.UpdatedAt = time.Now()
}

// IncrScored marks one more proposal fully scored.
func (j *Job) IncrScored() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Scored++
	j.UpdatedAt = time.Now()
}

// Inputs returns the uploaded documents.
func (j *Job) Inputs() []Input {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inputs
}

// SetWeights overrides the server's default weights for this job.
func (j *Job) SetWeights(w rank.Weights) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.weights = &w
}

// Weights returns the per-job weights, or fallback when none were set.
func (j *Job) Weights(fallback rank.Weights) rank.Weights {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.weights == nil {
		return fallback
	}
	return *j.weights
}

// Rater returns the rater chosen at submission, nil for heuristic scoring.
func (j *Job) Rater() *rater.Rater {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rater
}

// SetBatch stores the ranked result and drops the raw uploads.
func (j *Job) SetBatch(b *rank.Batch) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.batch = b
	j.inputs = nil
	j.Progress.Fallbacks = b.FallbackCount()
	j.Progress.Issues = len(b.Issues)
	j.UpdatedAt = time.Now()
}

// Batch returns the ranked result, nil until the job completes.
func (j *Job) Batch() *rank.Batch {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.batch
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Files     []string  `json:"files"`
	UseModel  bool      `json:"use_model"`
	Explain   bool      `json:"explain"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		Files:     append([]string(nil), j.Files...),
		UseModel:  j.UseModel,
		Explain:   j.Explain,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ArchivedSnapshot describes a completed batch whose job has been evicted.
func ArchivedSnapshot(b *rank.Batch) JobSnapshot {
	files := make([]string, len(b.Proposals))
	for _, p := range b.Proposals {
		if p.Index >= 0 && p.Index < len(files) {
			files[p.Index] = p.ID
		}
	}
	return JobSnapshot{
		ID:       b.ID,
		Files:    files,
		UseModel: b.Strategy == proposal.StrategyModel,
		Status:   StatusCompleted,
		Phase:    "archived",
		Progress: Progress{
			Total:     len(b.Proposals),
			Extracted: len(b.Proposals),
			Scored:    len(b.Proposals),
			Fallbacks: b.FallbackCount(),
			Issues:    len(b.Issues),
			Errors:    []string{},
		},
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.CreatedAt,
	}
}
