package score

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/codewithzichao/nl2sql/internal/dataset"
	"github.com/codewithzichao/nl2sql/internal/engine"
)

type OutcomeKind string

const (
	OutcomeMatch    OutcomeKind = "match"
	OutcomeMismatch OutcomeKind = "mismatch"
	OutcomeFailed   OutcomeKind = "failed"
)

// Outcome is the execution verdict for one example. Err is set when the
// predicted query failed to run.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

type Execution struct {
	Matches  int
	Failures int
	Outcomes []Outcome
}

// Execute runs gold and predicted structures per example on up to workers
// goroutines. A failing predicted query counts as a mismatch and does not
// stop the batch; a failing gold query is returned as an error.
func Execute(ctx context.Context, executor engine.Executor, workers int, tableIDs []string, preds, gold []dataset.SQL) (Execution, error) {
	if executor == nil {
		return Execution{}, fmt.Errorf("executor is required")
	}
	if len(preds) != len(gold) || len(tableIDs) != len(gold) {
		return Execution{}, fmt.Errorf("mismatched execution inputs: table_ids=%d predictions=%d gold=%d", len(tableIDs), len(preds), len(gold))
	}

	outcomes := make([]Outcome, len(gold))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range gold {
		g.Go(func() error {
			want, err := executor.Execute(ctx, tableIDs[i], gold[i])
			if err != nil {
				return fmt.Errorf("execute gold query %d on table %q: %w", i, tableIDs[i], err)
			}
			got, err := executor.Execute(ctx, tableIDs[i], preds[i])
			switch {
			case err != nil:
				outcomes[i] = Outcome{Kind: OutcomeFailed, Err: err}
			case got.Equal(want):
				outcomes[i] = Outcome{Kind: OutcomeMatch}
			default:
				outcomes[i] = Outcome{Kind: OutcomeMismatch}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Execution{}, err
	}

	out := Execution{Outcomes: outcomes}
	for _, outcome := range outcomes {
		switch outcome.Kind {
		case OutcomeMatch:
			out.Matches++
		case OutcomeFailed:
			out.Failures++
		}
	}
	return out, nil
}
