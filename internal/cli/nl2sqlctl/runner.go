package nl2sqlctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/codewithzichao/nl2sql/internal/align"
	"github.com/codewithzichao/nl2sql/internal/config"
	"github.com/codewithzichao/nl2sql/internal/dataset"
	"github.com/codewithzichao/nl2sql/internal/engine"
	"github.com/codewithzichao/nl2sql/internal/export"
	"github.com/codewithzichao/nl2sql/internal/observability"
	"github.com/codewithzichao/nl2sql/internal/pipeline"
	"github.com/codewithzichao/nl2sql/internal/storage"
	"github.com/codewithzichao/nl2sql/internal/storage/s3"
	"github.com/codewithzichao/nl2sql/internal/tokenize"
)

// errUsage marks bad invocations, which exit with status 2.
var errUsage = errors.New("invalid usage")

// Options carries the loaded configuration and optional collaborators. Nil
// collaborators are built from Config.
type Options struct {
	Config    config.Config
	Store     storage.ObjectStore
	Tokenizer tokenize.Tokenizer
	Executor  engine.Executor
	Stdout    io.Writer
	Stderr    io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	defaults.Stdout, defaults.Stderr = stdout, stderr

	if len(args) < 1 {
		writeUsage(stderr)
		return 2
	}
	logger := observability.NewLogger(defaults.Config, stderr)

	var err error
	command := strings.TrimSpace(args[0])
	switch command {
	case "encode":
		err = runEncode(ctx, args[1:], defaults, logger)
	case "score":
		err = runScore(ctx, args[1:], defaults, logger)
	case "span":
		err = runSpan(args[1:], defaults)
	case "help", "-h", "-help", "--help":
		writeUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
	if err != nil {
		if errors.Is(err, errUsage) {
			if err != errUsage {
				_, _ = fmt.Fprintf(stderr, "%s: %v\n", command, err)
			}
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "%s failed: %v\n", command, err)
		return 1
	}
	if err := observability.FlushTextfile(defaults.Config.Observability.MetricsTextfile); err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	return 0
}

func runEncode(ctx context.Context, args []string, opts Options, logger *slog.Logger) error {
	cfg := opts.Config
	fs := newFlagSet("encode", opts.Stderr)
	split := fs.String("split", "train", "dataset split: train, val or test")
	runID := fs.String("run", time.Now().UTC().Format("20060102T150405Z"), "run id used in export keys")
	outDir := fs.String("out", "", "write parts below this directory instead of the object store")
	shuffle := fs.Bool("shuffle", false, "shuffle examples with the configured seed")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var store storage.ObjectStore
	if cfg.Dataset.Source == "s3" || *outDir == "" {
		var err error
		if store, err = objectStore(ctx, opts); err != nil {
			return err
		}
	}
	collection, err := loadSplit(ctx, cfg, store, *split, logger)
	if err != nil {
		return err
	}
	p, err := newPipeline(opts, logger)
	if err != nil {
		return err
	}

	var sink export.Sink = export.StoreSink{Store: store}
	if *outDir != "" {
		sink = export.DirSink{Root: *outDir}
	}
	var perm []int
	if *shuffle {
		perm = dataset.Permutation(collection.Len(), newRand(cfg.Encoding.Seed))
	}
	parts, err := p.Export(ctx, collection, *runID, *split, perm, sink)
	if err != nil {
		return err
	}
	return writeJSON(opts.Stdout, map[string]any{
		"run_id":   *runID,
		"split":    *split,
		"examples": collection.Len(),
		"parts":    parts,
	})
}

func runScore(ctx context.Context, args []string, opts Options, logger *slog.Logger) error {
	cfg := opts.Config
	fs := newFlagSet("score", opts.Stderr)
	split := fs.String("split", "val", "gold dataset split: train, val or test")
	predictionsPath := fs.String("predictions", "", "predictions file, one JSON query per line")
	execute := fs.Bool("execute", false, "also compare execution results against the configured engine")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *predictionsPath == "" {
		return fmt.Errorf("%w: -predictions is required", errUsage)
	}

	var store storage.ObjectStore
	if cfg.Dataset.Source == "s3" {
		var err error
		if store, err = objectStore(ctx, opts); err != nil {
			return err
		}
	}
	collection, err := loadSplit(ctx, cfg, store, *split, logger)
	if err != nil {
		return err
	}
	preds, err := readPredictions(ctx, opener(cfg, store), *predictionsPath)
	if err != nil {
		return err
	}

	scoreOpts := pipeline.ScoreOptions{
		BatchSize: cfg.Encoding.BatchSize,
		Workers:   cfg.Engine.Workers,
		Logger:    logger,
	}
	if *execute {
		executor, closeFn, err := newExecutor(ctx, opts)
		if err != nil {
			return err
		}
		defer closeFn()
		scoreOpts.Executor = executor
	}
	report, err := pipeline.Score(ctx, collection, preds, scoreOpts)
	if err != nil {
		return err
	}

	out := map[string]any{
		"examples":         report.Examples,
		"field_accuracy":   report.FieldAccuracy(),
		"logical_accuracy": report.LogicalAccuracy(),
	}
	if report.Executed {
		out["execution_accuracy"] = report.ExecutionAccuracy()
		out["execution_failures"] = report.ExecutionFailures
	}
	return writeJSON(opts.Stdout, out)
}

func runSpan(args []string, opts Options) error {
	fs := newFlagSet("span", opts.Stderr)
	value := fs.String("value", "", "condition value to locate")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *value == "" || fs.NArg() < 1 {
		return fmt.Errorf("%w: want span -value <value> <question>", errUsage)
	}
	tokenizer, err := newTokenizer(opts)
	if err != nil {
		return err
	}
	tokens, err := tokenizer.Tokenize(strings.Join(fs.Args(), " "))
	if err != nil {
		return fmt.Errorf("tokenize question: %w", err)
	}
	span := align.Locate(*value, tokens)
	return writeJSON(opts.Stdout, map[string]any{
		"tokens": tokens,
		"start":  span.Start,
		"end":    span.End,
		"found":  span.Found(),
	})
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("nl2sqlctl "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func newPipeline(opts Options, logger *slog.Logger) (*pipeline.Pipeline, error) {
	tokenizer, err := newTokenizer(opts)
	if err != nil {
		return nil, err
	}
	return pipeline.New(tokenizer, pipeline.Options{
		MaxLength: opts.Config.Encoding.MaxLength,
		BatchSize: opts.Config.Encoding.BatchSize,
		Workers:   opts.Config.Engine.Workers,
		Logger:    logger,
	})
}

func newTokenizer(opts Options) (tokenize.Tokenizer, error) {
	if opts.Tokenizer != nil {
		return opts.Tokenizer, nil
	}
	cfg := opts.Config.Tokenizer
	if cfg.Kind == "wordpiece" {
		return tokenize.NewWordPiece(cfg.TokenizerFile)
	}
	f, err := os.Open(cfg.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	vocab, err := tokenize.LoadVocab(f)
	if err != nil {
		return nil, err
	}
	return tokenize.NewChars(vocab)
}

func objectStore(ctx context.Context, opts Options) (storage.ObjectStore, error) {
	if opts.Store != nil {
		return opts.Store, nil
	}
	store, err := s3.New(ctx, opts.Config.ObjectStore)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func opener(cfg config.Config, store storage.ObjectStore) dataset.Opener {
	if cfg.Dataset.Source == "s3" {
		return storage.Opener{Store: store}
	}
	return dataset.FileOpener{}
}

func loadSplit(ctx context.Context, cfg config.Config, store storage.ObjectStore, split string, logger *slog.Logger) (*dataset.Collection, error) {
	var records, tables string
	switch split {
	case "train":
		records, tables = cfg.Dataset.TrainPath, cfg.Dataset.TrainTablesPath
	case "val":
		records, tables = cfg.Dataset.ValPath, cfg.Dataset.ValTablesPath
	case "test":
		records, tables = cfg.Dataset.TestPath, cfg.Dataset.TestTablesPath
	default:
		return nil, fmt.Errorf("unknown split %q", split)
	}
	return dataset.Load(ctx, opener(cfg, store), []string{records}, []string{tables}, dataset.LoadOptions{
		Limit:  cfg.Dataset.RecordLimit(),
		Logger: logger,
	})
}

func readPredictions(ctx context.Context, o dataset.Opener, path string) ([]dataset.SQL, error) {
	rc, err := o.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	defer rc.Close()
	return pipeline.ReadPredictions(rc)
}

func newExecutor(ctx context.Context, opts Options) (engine.Executor, func(), error) {
	if opts.Executor != nil {
		return opts.Executor, func() {}, nil
	}
	cfg := opts.Config.Engine
	e, err := engine.Open(ctx, engine.Config{Driver: cfg.Driver, DSN: cfg.DSN, MaxOpenConns: cfg.MaxOpenConns})
	if err != nil {
		return nil, nil, err
	}
	return e, func() { _ = e.Close() }, nil
}

func writeJSON(w io.Writer, value any) error {
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(formatted))
	return err
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: nl2sqlctl <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  encode   pack and label a split, write parquet parts")
	_, _ = fmt.Fprintln(w, "  score    score a predictions file against a split")
	_, _ = fmt.Fprintln(w, "  span     locate a value in a tokenized question")
}
