package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/dgallion1/bidrank/internal/config"
	"github.com/dgallion1/bidrank/internal/parser"
	"github.com/dgallion1/bidrank/internal/pipeline"
	"github.com/dgallion1/bidrank/internal/proposal"
	"github.com/dgallion1/bidrank/internal/rank"
	"github.com/dgallion1/bidrank/internal/rater"
	"github.com/dgallion1/bidrank/internal/report"
	"github.com/dgallion1/bidrank/internal/store"
	"github.com/google/uuid"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir         = flag.String("dir", "", "directory of proposals to rank")
		weightsFile = flag.String("weights", "", "weights JSON file (defaults to WEIGHTS_FILE or 0.3/0.4/0.3)")
		out         = flag.String("out", ".", "directory for ranked_output.{xlsx,json,pdf}")
		useModel    = flag.Bool("model", false, "score sections with the external rating service")
		explain     = flag.Bool("explain", false, "add a short summary per proposal (requires -model)")
		storePath   = flag.String("store", "", "sqlite store to read API keys from")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	paths, err := collectPaths(*dir, flag.Args())
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		printError("Error: pass --dir or one or more proposal files\n")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *weightsFile == "" {
		*weightsFile = cfg.WeightsFile
	}
	weights, err := config.LoadWeights(*weightsFile)
	if err != nil {
		logger.Error("invalid weights", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rt *rater.Rater
	if *useModel {
		var keys pipeline.KeyLookup
		if *storePath != "" {
			st, err := store.Open(*storePath)
			if err != nil {
				logger.Error("open store", "path", *storePath, "error", err)
				os.Exit(1)
			}
			defer st.Close()
			keys = st
		}
		rt, err = pipeline.NewRaterSource(cfg, keys, nil, logger).Get(ctx)
		if err != nil {
			logger.Error("rating service unavailable", "provider", cfg.RaterProvider, "error", err)
			os.Exit(1)
		}
	}

	inputs := make([]pipeline.Input, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			logger.Error("read proposal", "path", p, "error", err)
			os.Exit(1)
		}
		inputs = append(inputs, pipeline.Input{Filename: filepath.Base(p), Data: data})
	}

	ev := pipeline.NewEvaluator(pipeline.EvaluatorConfig{
		Weights:           weights,
		Rater:             rt,
		Explain:           *explain,
		Parser:            parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		MaxConcurrentRate: cfg.MaxConcurrentRate,
	}, logger)

	b, err := ev.Run(ctx, uuid.NewString(), inputs, nil)
	if err != nil {
		logger.Error("evaluation failed", "error", err)
		os.Exit(1)
	}

	printTable(os.Stdout, b)

	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Error("create output dir", "dir", *out, "error", err)
		os.Exit(1)
	}
	for _, f := range report.Formats {
		path := filepath.Join(*out, f.Filename())
		if err := writeReport(path, f, b); err != nil {
			logger.Error("write report", "path", path, "error", err)
			os.Exit(1)
		}
		logger.Info("report written", "path", path)
	}
}

// collectPaths gathers supported files from dir plus explicit arguments.
// Explicit files are kept even when unsupported so the batch reports them.
func collectPaths(dir string, args []string) ([]string, error) {
	var paths []string
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !parser.IsSupportedExtension(e.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
		sort.Strings(paths)
	}
	return append(paths, args...), nil
}

func printTable(w *os.File, b *rank.Batch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPROPOSAL\tTOTAL\tCOST\tTECHNICAL\tPAST PERF\tEXTRACTED COST\tISSUES")
	for _, p := range b.Proposals {
		cost := "-"
		if p.Cost != nil {
			cost = fmt.Sprintf("%.2f", *p.Cost)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.1f\t%.1f\t%.1f\t%s\t%d\n",
			p.Rank, p.ID, p.Total,
			p.Score(proposal.Cost), p.Score(proposal.Technical), p.Score(proposal.PastPerformance),
			cost, len(p.Issues))
	}
	tw.Flush()

	if len(b.Issues) > 0 {
		fmt.Fprintf(w, "\n%d issue(s):\n", len(b.Issues))
		for _, is := range b.Issues {
			fmt.Fprintf(w, "  %s [%s/%s] %s\n", is.ProposalID, is.Stage, is.Kind, is.Detail)
		}
	}
}

func writeReport(path string, f report.Format, b *rank.Batch) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(fh, f, b); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
