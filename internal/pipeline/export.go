package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewithzichao/nl2sql/internal/dataset"
	"github.com/codewithzichao/nl2sql/internal/export"
	"github.com/codewithzichao/nl2sql/internal/storage"
)

// Export writes every encoded batch of c as one parquet part and returns the
// number of parts written. A nil perm keeps the stored order.
func (p *Pipeline) Export(ctx context.Context, c *dataset.Collection, runID, split string, perm []int, sink export.Sink) (int, error) {
	if sink == nil {
		return 0, fmt.Errorf("export sink is required")
	}
	if perm == nil {
		perm = dataset.Identity(c.Len())
	}
	parts := 0
	err := p.Each(ctx, c, perm, func(encoded Encoded) error {
		rows, err := export.Rows(split, encoded.Index, encoded.Packed, encoded.Labels)
		if err != nil {
			return err
		}
		result, err := export.Encode(rows)
		if err != nil {
			return err
		}
		key, err := storage.ExportKey(runID, split, encoded.Index)
		if err != nil {
			return err
		}
		if err := sink.Write(ctx, key, result); err != nil {
			return err
		}
		p.logger.Debug("batch_exported", slog.String("key", key), slog.Int64("rows", result.RowCount))
		parts++
		return nil
	})
	if err != nil {
		return parts, err
	}
	p.logger.Info("export_completed", slog.String("run_id", runID), slog.String("split", split), slog.Int("parts", parts))
	return parts, nil
}
