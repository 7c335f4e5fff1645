package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/bidrank/internal/config"
	"github.com/dgallion1/bidrank/internal/parser"
	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rank"
	"github.com/dgallion1/bidrank/internal/rater"
	"github.com/dgallion1/bidrank/internal/scoring"
	"github.com/dgallion1/bidrank/internal/segment"
	"github.com/panjf2000/ants/v2"
)

// Fallback labels recorded on issues and score results.
const (
	FallbackHeuristic     = "heuristic"
	FallbackEmptySections = "empty_sections"
	FallbackZeroScore     = "score_0"
)

// Input is one uploaded proposal document.
type Input struct {
	Filename string
	Data     []byte
}

// Tracker receives progress as a batch moves through the pipeline.
// *Job implements it.
type Tracker interface {
	SetStatus(status JobStatus, phase string)
	SetTotal(n int)
	IncrExtracted()
	IncrScored()
}

type nopTracker struct{}

func (nopTracker) SetStatus(JobStatus, string) {}
func (nopTracker) SetTotal(int)                {}
func (nopTracker) IncrExtracted()              {}
func (nopTracker) IncrScored()                 {}

// EvaluatorConfig configures one batch evaluation.
type EvaluatorConfig struct {
	Weights rank.Weights
	// Rater selects external-model scoring for the whole batch; nil
	// selects the heuristic.
	Rater   *rater.Rater
	Explain bool
	Parser  parser.Options

	Workers           int // extraction parallelism, defaults to GOMAXPROCS
	MaxConcurrentRate int // concurrent proposals in the scoring phase
	ExcerptBytes      int

	Segmenter *segment.Segmenter
	Backoff   func(attempt int) time.Duration
}

// Evaluator runs extract, segment, score and rank over a batch.
type Evaluator struct {
	cfg       EvaluatorConfig
	scorer    scoring.Scorer
	heuristic *scoring.Heuristic
	log       *slog.Logger
}

func NewEvaluator(cfg EvaluatorConfig, log *slog.Logger) *Evaluator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxConcurrentRate <= 0 {
		cfg.MaxConcurrentRate = 5
	}
	if cfg.ExcerptBytes <= 0 {
		cfg.ExcerptBytes = 500
	}
	if cfg.Segmenter == nil {
		cfg.Segmenter = segment.New(nil)
	}
	if cfg.Backoff == nil {
		cfg.Backoff = Backoff
	}
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{
		cfg:       cfg,
		scorer:    scoring.Select(cfg.Rater),
		heuristic: scoring.NewHeuristic(),
		log:       log,
	}
}

// Strategy reports which scorer this evaluator uses for every proposal.
func (e *Evaluator) Strategy() proposal.Strategy { return e.scorer.Strategy() }

// Run evaluates inputs as one batch. Per-proposal failures are recorded as
// issues and never fail the run; only invalid weights do, before any work
// starts. tr may be nil.
func (e *Evaluator) Run(ctx context.Context, batchID string, inputs []Input, tr Tracker) (*rank.Batch, error) {
	if err := e.cfg.Weights.Validate(); err != nil {
		return nil, &config.ConfigError{Field: "weights", Err: err}
	}
	if tr == nil {
		tr = nopTracker{}
	}
	log := e.log.With("batch_id", batchID)
	start := time.Now()

	ids := proposalIDs(inputs)
	proposals := make([]*proposal.Proposal, len(inputs))
	for i := range inputs {
		proposals[i] = proposal.New(ids[i], i)
	}
	tr.SetTotal(len(proposals))

	// Phase 1: extract and segment, independently per proposal.
	tr.SetStatus(StatusExtracting, "extracting")
	err := runPool(e.cfg.Workers, len(proposals), func(i int) {
		e.prepare(proposals[i], inputs[i], log)
		tr.IncrExtracted()
	})
	if err != nil {
		return nil, err
	}

	// Barrier: cost normalization needs every extracted cost.
	costs := make([]*float64, len(proposals))
	for i, p := range proposals {
		costs[i] = p.Cost
	}
	baseline := scoring.NewCostBaseline(costs)

	// Phase 2: score. The baseline is read-only from here on.
	tr.SetStatus(StatusScoring, "scoring")
	err = runPool(e.cfg.MaxConcurrentRate, len(proposals), func(i int) {
		e.score(ctx, proposals[i], baseline, log)
		tr.IncrScored()
	})
	if err != nil {
		return nil, err
	}

	if e.cfg.Explain && e.cfg.Rater != nil {
		tr.SetStatus(StatusExplaining, "explaining")
		err = runPool(e.cfg.MaxConcurrentRate, len(proposals), func(i int) {
			e.explain(ctx, proposals[i], log)
		})
		if err != nil {
			return nil, err
		}
	}

	tr.SetStatus(StatusRanking, "ranking")
	model := ""
	if e.cfg.Rater != nil {
		model = e.cfg.Rater.Model()
	}
	b := rank.NewBatch(batchID, proposals, e.cfg.Weights, e.scorer.Strategy(), model)

	log.Info("evaluate.ok",
		"proposals", len(proposals),
		"strategy", b.Strategy,
		"fallbacks", b.FallbackCount(),
		"issues", len(b.Issues),
		"ms", time.Since(start).Milliseconds())
	return b, nil
}

// prepare extracts, segments and pulls the cost amount for one proposal.
func (e *Evaluator) prepare(p *proposal.Proposal, in Input, log *slog.Logger) {
	log = log.With("proposal", p.ID)

	doc, err := parser.Extract(bytes.NewReader(in.Data), in.Filename, e.cfg.Parser)
	if err != nil {
		log.Warn("evaluate.extract_failed", "error", err)
		p.AddIssue(proposal.Issue{
			Stage:    proposal.StageExtract,
			Kind:     proposal.KindExtractionError,
			Fallback: FallbackEmptySections,
			Detail:   err.Error(),
		})
		return
	}

	p.Text = doc.Text()
	p.Sections = e.cfg.Segmenter.Segment(p.Text)
	for _, s := range segment.Missing(p.Sections) {
		p.AddIssue(proposal.Issue{
			Stage:    proposal.StageSegment,
			Kind:     proposal.KindSegmentationMiss,
			Section:  s,
			Fallback: FallbackZeroScore,
			Detail:   fmt.Sprintf("no %s heading found", s.Label()),
		})
	}
	if amount, ok := scoring.ExtractCost(p.Sections[proposal.Cost]); ok {
		p.Cost = &amount
	}
	p.SetExcerpt(e.cfg.ExcerptBytes)
	log.Debug("evaluate.prepared", "pages", len(doc.Pages), "missing", len(segment.Missing(p.Sections)))
}

// score fills every section score, falling back to the heuristic when the
// rating service fails after retries.
func (e *Evaluator) score(ctx context.Context, p *proposal.Proposal, baseline scoring.CostBaseline, log *slog.Logger) {
	log = log.With("proposal", p.ID)
	for _, s := range proposal.AllSections {
		req := scoring.Request{
			ProposalID: p.ID,
			Section:    s,
			Text:       p.Sections[s],
			Baseline:   baseline,
		}
		if s == proposal.Cost {
			req.Cost = p.Cost
		}

		var res proposal.ScoreResult
		err := withRetry(ctx, log, e.cfg.Backoff, func() error {
			var err error
			res, err = e.scorer.Score(ctx, req)
			return err
		})
		if err != nil {
			res = e.fallback(ctx, p, req, err, log)
		}
		p.Scores[s] = res
	}
}

func (e *Evaluator) fallback(ctx context.Context, p *proposal.Proposal, req scoring.Request, cause error, log *slog.Logger) proposal.ScoreResult {
	reason := scoring.ReasonNetwork
	var sse *scoring.ScoringServiceError
	if errors.As(cause, &sse) {
		reason = sse.Reason
	}
	log.Warn("evaluate.fallback", "section", req.Section, "reason", reason, "error", cause)

	// The heuristic is local and does not fail.
	res, _ := e.heuristic.Score(ctx, req)
	res.Fallback = FallbackHeuristic
	p.AddIssue(proposal.Issue{
		Stage:    proposal.StageScore,
		Kind:     proposal.KindScoringServiceError,
		Section:  req.Section,
		Fallback: FallbackHeuristic,
		Detail:   reason + ": " + cause.Error(),
	})
	return res
}

// explain attaches model-written insights. Failures leave scores untouched.
func (e *Evaluator) explain(ctx context.Context, p *proposal.Proposal, log *slog.Logger) {
	if len(segment.Missing(p.Sections)) == len(proposal.AllSections) {
		return
	}
	var summary string
	err := withRetry(ctx, log, e.cfg.Backoff, func() error {
		var err error
		summary, err = e.cfg.Rater.Summarize(ctx, p.ID, p.Sections)
		return err
	})
	if err != nil {
		log.Warn("evaluate.explain_failed", "proposal", p.ID, "error", err)
		p.AddIssue(proposal.Issue{
			Stage:  proposal.StageExplain,
			Kind:   proposal.KindExplanationError,
			Detail: err.Error(),
		})
		return
	}
	p.Summary = summary
}

// runPool calls fn(i) for every i in [0, n) on an ants pool of the given
// size and waits for all calls to return.
func runPool(size, n int, fn func(i int)) error {
	if n == 0 {
		return nil
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("submit task %d: %w", i, err)
		}
	}
	wg.Wait()
	return nil
}

// proposalIDs derives an identity per input from its file name, suffixing
// repeats so IDs stay unique within the batch.
func proposalIDs(inputs []Input) []string {
	ids := make([]string, len(inputs))
	seen := make(map[string]int, len(inputs))
	for i, in := range inputs {
		id := filepath.Base(in.Filename)
		if id == "." || id == "/" || strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("proposal-%d", i+1)
		}
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s#%d", id, n)
		}
		ids[i] = id
	}
	return ids
}
