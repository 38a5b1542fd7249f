package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/codewithzichao/nl2sql/internal/batch"
	"github.com/codewithzichao/nl2sql/internal/dataset"
	"github.com/codewithzichao/nl2sql/internal/engine"
	"github.com/codewithzichao/nl2sql/internal/observability"
	"github.com/codewithzichao/nl2sql/internal/score"
)

// decode runs model over c in its stored order, one batch at a time.
func (p *Pipeline) decode(ctx context.Context, c *dataset.Collection, model Model, fn func(r dataset.Range, preds []dataset.SQL) error) error {
	if model == nil {
		return fmt.Errorf("model is required")
	}
	perm := dataset.Identity(c.Len())
	for i, r := range dataset.Ranges(len(perm), p.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		test, err := p.builder.Test(c, perm, r)
		if err != nil {
			return fmt.Errorf("batch %d: build batch: %w", i, err)
		}
		packed, err := p.packer.Pack(test.Sequences)
		if err != nil {
			return fmt.Errorf("batch %d: pack batch: %w", i, err)
		}
		started := time.Now()
		preds, err := model.Predict(ctx, packed, test)
		if err != nil {
			return fmt.Errorf("batch %d: predict: %w", i, err)
		}
		observability.ObserveStage("predict", time.Since(started))
		if len(preds) != r.Len() {
			return fmt.Errorf("batch %d: model returned %d predictions for %d examples", i, len(preds), r.Len())
		}
		if err := fn(r, preds); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
	}
	return nil
}

// Predict writes one JSON query structure per line for every example of c,
// in order, and returns the number written.
func (p *Pipeline) Predict(ctx context.Context, c *dataset.Collection, model Model, w io.Writer) (int, error) {
	buffered := bufio.NewWriter(w)
	written := 0
	err := p.decode(ctx, c, model, func(_ dataset.Range, preds []dataset.SQL) error {
		n, err := WritePredictions(buffered, preds)
		written += n
		return err
	})
	if err != nil {
		return written, err
	}
	if err := buffered.Flush(); err != nil {
		return written, fmt.Errorf("flush predictions: %w", err)
	}
	p.logger.Info("predictions_written", slog.Int("count", written))
	return written, nil
}

// Evaluate decodes c with model and scores the result against the stored
// queries. A nil executor skips execution accuracy.
func (p *Pipeline) Evaluate(ctx context.Context, c *dataset.Collection, model Model, executor engine.Executor) (score.Report, error) {
	var report score.Report
	perm := dataset.Identity(c.Len())
	err := p.decode(ctx, c, model, func(r dataset.Range, preds []dataset.SQL) error {
		gold, tableIDs := batch.Queries(c, perm, r)
		return scoreBatch(ctx, &report, executor, p.workers, tableIDs, preds, gold)
	})
	if err != nil {
		return score.Report{}, err
	}
	logReport(p.logger, report)
	return report, nil
}

type ScoreOptions struct {
	BatchSize int
	Executor  engine.Executor
	// Workers bounds concurrent query executions per batch.
	Workers int
	Logger  *slog.Logger
}

// Score compares stored predictions against the gold queries of c, where
// preds[i] belongs to c.Examples[i].
func Score(ctx context.Context, c *dataset.Collection, preds []dataset.SQL, opts ScoreOptions) (score.Report, error) {
	if len(preds) != c.Len() {
		return score.Report{}, fmt.Errorf("got %d predictions for %d examples", len(preds), c.Len())
	}
	size := opts.BatchSize
	if size <= 0 {
		size = c.Len()
	}
	var report score.Report
	perm := dataset.Identity(c.Len())
	for i, r := range dataset.Ranges(len(perm), size) {
		if err := ctx.Err(); err != nil {
			return score.Report{}, err
		}
		gold, tableIDs := batch.Queries(c, perm, r)
		if err := scoreBatch(ctx, &report, opts.Executor, opts.Workers, tableIDs, preds[r.Start:r.End], gold); err != nil {
			return score.Report{}, fmt.Errorf("batch %d: %w", i, err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logReport(logger, report)
	return report, nil
}

func scoreBatch(ctx context.Context, report *score.Report, executor engine.Executor, workers int, tableIDs []string, preds, gold []dataset.SQL) error {
	started := time.Now()
	counts, wrong, err := score.Compare(preds, gold)
	if err != nil {
		return err
	}
	report.AddStructural(len(gold), counts, wrong)
	observability.ObserveScored(len(gold), wrong)
	counts.Each(observability.ObserveStructuralError)

	if executor != nil {
		execution, err := score.Execute(ctx, executor, workers, tableIDs, preds, gold)
		if err != nil {
			return err
		}
		report.AddExecution(execution)
		for _, outcome := range execution.Outcomes {
			observability.ObserveExecutionOutcome(string(outcome.Kind))
		}
	}
	observability.ObserveStage("score", time.Since(started))
	return nil
}

func logReport(logger *slog.Logger, report score.Report) {
	attrs := []any{
		slog.Int("examples", report.Examples),
		slog.Float64("logical_accuracy", report.LogicalAccuracy()),
	}
	if report.Executed {
		attrs = append(attrs,
			slog.Float64("execution_accuracy", report.ExecutionAccuracy()),
			slog.Int("execution_failures", report.ExecutionFailures),
		)
	}
	logger.Info("evaluation_scored", attrs...)
}

// WritePredictions encodes each structure as one JSON line.
func WritePredictions(w io.Writer, preds []dataset.SQL) (int, error) {
	enc := json.NewEncoder(w)
	for i, pred := range preds {
		if err := enc.Encode(pred); err != nil {
			return i, fmt.Errorf("encode prediction %d: %w", i, err)
		}
	}
	return len(preds), nil
}

// ReadPredictions decodes a stream written by WritePredictions.
func ReadPredictions(r io.Reader) ([]dataset.SQL, error) {
	dec := json.NewDecoder(r)
	var preds []dataset.SQL
	for {
		var pred dataset.SQL
		err := dec.Decode(&pred)
		if errors.Is(err, io.EOF) {
			return preds, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode prediction %d: %w", len(preds), err)
		}
		preds = append(preds, pred)
	}
}
