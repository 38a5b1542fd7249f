// Package pipeline drives batches through building, packing and labeling,
// and hands them to an external trainer or model.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/codewithzichao/nl2sql/internal/batch"
	"github.com/codewithzichao/nl2sql/internal/dataset"
	"github.com/codewithzichao/nl2sql/internal/encode"
	"github.com/codewithzichao/nl2sql/internal/labels"
	"github.com/codewithzichao/nl2sql/internal/observability"
	"github.com/codewithzichao/nl2sql/internal/tokenize"
)

// Encoded is one training batch ready for a classifier step.
type Encoded struct {
	Index  int
	Range  dataset.Range
	Train  batch.Train
	Packed encode.Batch
	Labels labels.Set
	Stats  labels.Stats
}

// Trainer runs one optimization step and returns the mean loss over the
// batch.
type Trainer interface {
	Step(ctx context.Context, encoded Encoded) (float64, error)
}

// Model decodes one packed test batch into a query structure per row.
type Model interface {
	Predict(ctx context.Context, packed encode.Batch, test batch.Test) ([]dataset.SQL, error)
}

type Options struct {
	MaxLength int
	BatchSize int
	// Workers bounds concurrent query executions during evaluation.
	Workers int
	Logger  *slog.Logger
}

type Pipeline struct {
	builder   *batch.Builder
	packer    *encode.Packer
	batchSize int
	workers   int
	logger    *slog.Logger
}

func New(tokenizer tokenize.Tokenizer, opts Options) (*Pipeline, error) {
	builder, err := batch.NewBuilder(tokenizer)
	if err != nil {
		return nil, err
	}
	packer, err := encode.NewPacker(tokenizer, opts.MaxLength)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{builder: builder, packer: packer, batchSize: opts.BatchSize, workers: opts.Workers, logger: logger}, nil
}

// Encode builds, packs and labels the examples perm[r.Start:r.End].
func (p *Pipeline) Encode(c *dataset.Collection, perm []int, r dataset.Range) (Encoded, error) {
	started := time.Now()
	train, err := p.builder.Train(c, perm, r)
	if err != nil {
		return Encoded{}, fmt.Errorf("build batch: %w", err)
	}
	observability.ObserveStage("build", time.Since(started))

	started = time.Now()
	packed, err := p.packer.Pack(train.Sequences)
	if err != nil {
		return Encoded{}, fmt.Errorf("pack batch: %w", err)
	}
	observability.ObserveStage("pack", time.Since(started))

	started = time.Now()
	set, stats, err := labels.Encode(labels.Input{
		Questions:    train.Questions,
		QuestionLens: packed.QuestionLens,
		HeaderCounts: packed.HeaderCounts,
		Answers:      train.Answers,
		Conditions:   train.Conditions,
	})
	if err != nil {
		return Encoded{}, fmt.Errorf("encode labels: %w", err)
	}
	observability.ObserveStage("label", time.Since(started))

	observability.ObserveEncoded(packed.Len(), stats.Unaligned, stats.OutOfRange)
	for _, seq := range packed.Sequences {
		if seq.Truncated != encode.SegmentNone {
			observability.ObserveTruncated(string(seq.Truncated))
		}
	}
	return Encoded{Range: r, Train: train, Packed: packed, Labels: set, Stats: stats}, nil
}

// Each encodes every batch of c in perm order and passes it to fn.
func (p *Pipeline) Each(ctx context.Context, c *dataset.Collection, perm []int, fn func(Encoded) error) error {
	for i, r := range dataset.Ranges(len(perm), p.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		encoded, err := p.Encode(c, perm, r)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		encoded.Index = i
		if err := fn(encoded); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
	}
	return nil
}

// TrainEpoch visits c once in a fresh random order and returns the mean
// per-example loss.
func (p *Pipeline) TrainEpoch(ctx context.Context, c *dataset.Collection, rng *rand.Rand, trainer Trainer) (float64, error) {
	if trainer == nil {
		return 0, fmt.Errorf("trainer is required")
	}
	if c.Len() == 0 {
		return 0, fmt.Errorf("dataset is empty")
	}
	var total float64
	var unaligned int
	err := p.Each(ctx, c, dataset.Permutation(c.Len(), rng), func(encoded Encoded) error {
		started := time.Now()
		loss, err := trainer.Step(ctx, encoded)
		if err != nil {
			return fmt.Errorf("trainer step: %w", err)
		}
		observability.ObserveStage("step", time.Since(started))
		total += loss * float64(encoded.Packed.Len())
		unaligned += encoded.Stats.Unaligned
		return nil
	})
	if err != nil {
		return 0, err
	}
	mean := total / float64(c.Len())
	p.logger.Info("epoch_trained",
		slog.Int("examples", c.Len()),
		slog.Float64("mean_loss", mean),
		slog.Int("unaligned_conditions", unaligned),
	)
	return mean, nil
}
