package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/bidrank/internal/config"
	"github.com/dgallion1/bidrank/internal/parser"
	"github.com/dgallion1/bidrank/internal/rank"
	"github.com/dgallion1/bidrank/internal/store"
)

// ErrBatchNotReady is returned for a known job that has not completed.
var ErrBatchNotReady = errors.New("batch not ready")

// Archive persists completed batches beyond the job TTL.
type Archive interface {
	SaveBatch(ctx context.Context, b *rank.Batch) error
	LoadBatch(ctx context.Context, id string) (*rank.Batch, error)
}

// Orchestrator queues batch evaluations and runs them on a fixed set of
// workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	raters  *RaterSource
	archive Archive
	weights rank.Weights
	log     *slog.Logger
	cfg     config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. archive may be nil.
func NewOrchestrator(cfg config.Config, weights rank.Weights, raters *RaterSource, archive Archive, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		raters:  raters,
		archive: archive,
		weights: weights,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Raters returns the rater source for direct use by API handlers.
func (o *Orchestrator) Raters() *RaterSource {
	return o.raters
}

// Batch returns a completed batch, from memory or from the archive once
// the job has been evicted.
func (o *Orchestrator) Batch(ctx context.Context, id string) (*rank.Batch, error) {
	if job := o.jobs.Get(id); job != nil {
		if b := job.Batch(); b != nil {
			return b, nil
		}
		return nil, ErrBatchNotReady
	}
	if o.archive == nil {
		return nil, fmt.Errorf("batch %s: %w", id, store.ErrNotFound)
	}
	return o.archive.LoadBatch(ctx, id)
}

// process runs one job to completion.
func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID)

	ev := NewEvaluator(EvaluatorConfig{
		Weights:           job.Weights(o.weights),
		Rater:             job.Rater(),
		Explain:           job.Explain,
		Parser:            parser.Options{FallbackPdftotext: o.cfg.PDFFallbackPdftotext},
		MaxConcurrentRate: o.cfg.MaxConcurrentRate,
	}, log)

	b, err := ev.Run(ctx, job.ID, job.Inputs(), job)
	if err != nil {
		log.Error("evaluate failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "evaluate")
		return
	}

	if o.archive != nil {
		if err := o.archive.SaveBatch(ctx, b); err != nil {
			log.Warn("archive failed", "error", err)
			job.AddError(fmt.Sprintf("archive: %s", err))
		}
	}

	job.SetBatch(b)
	job.SetStatus(StatusCompleted, "done")
}
