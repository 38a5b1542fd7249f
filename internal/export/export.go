// Package export writes encoded batches and their labels as parquet, one row
// per example.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/codewithzichao/nl2sql/internal/encode"
	"github.com/codewithzichao/nl2sql/internal/labels"
	"github.com/codewithzichao/nl2sql/internal/storage"
)

const ContentType = "application/vnd.apache.parquet"

type Row struct {
	Split         string    `parquet:"split"`
	Batch         int64     `parquet:"batch"`
	Position      int64     `parquet:"position"`
	InputIDs      []int64   `parquet:"input_ids"`
	SegmentIDs    []int64   `parquet:"segment_ids"`
	AttentionMask []int64   `parquet:"attention_mask"`
	QuestionMask  []int64   `parquet:"question_mask"`
	HeaderMask    []int64   `parquet:"header_mask"`
	HeaderIndex   []int64   `parquet:"header_index"`
	QuestionLen   int64     `parquet:"question_len"`
	HeaderCount   int64     `parquet:"header_count"`
	Truncated     string    `parquet:"truncated"`
	Connector     int64     `parquet:"connector"`
	SelectCount   int64     `parquet:"select_count"`
	WhereCount    int64     `parquet:"where_count"`
	SelectColumn  []float64 `parquet:"select_column"`
	SelectAgg     []int64   `parquet:"select_agg"`
	WhereColumn   []float64 `parquet:"where_column"`
	WhereOperator []int64   `parquet:"where_operator"`
	WhereStart    []int64   `parquet:"where_start"`
	WhereEnd      []int64   `parquet:"where_end"`
}

// Rows flattens a packed batch and its label set. Row k of both must belong
// to the same example.
func Rows(split string, batchIndex int, packed encode.Batch, set labels.Set) ([]Row, error) {
	if packed.Len() != set.Len() {
		return nil, fmt.Errorf("batch has %d sequences but %d label rows", packed.Len(), set.Len())
	}
	rows := make([]Row, packed.Len())
	for k := range rows {
		rows[k] = Row{
			Split:         split,
			Batch:         int64(batchIndex),
			Position:      int64(k),
			InputIDs:      widen(packed.InputIDs[k]),
			SegmentIDs:    widen(packed.SegmentIDs[k]),
			AttentionMask: widen(packed.AttentionMask[k]),
			QuestionMask:  widen(packed.QuestionMask[k]),
			HeaderMask:    widen(packed.HeaderMask[k]),
			HeaderIndex:   widen(packed.HeaderIndex[k]),
			QuestionLen:   int64(packed.QuestionLens[k]),
			HeaderCount:   int64(packed.HeaderCounts[k]),
			Truncated:     string(packed.Sequences[k].Truncated),
			Connector:     int64(set.Connector[k]),
			SelectCount:   int64(set.SelectCount[k]),
			WhereCount:    int64(set.WhereCount[k]),
			SelectColumn:  set.SelectColumn[k],
			SelectAgg:     widen(set.SelectAgg[k]),
			WhereColumn:   set.WhereColumn[k],
			WhereOperator: widen(set.WhereOperator[k]),
			WhereStart:    widen(set.WhereStart[k]),
			WhereEnd:      widen(set.WhereEnd[k]),
		}
	}
	return rows, nil
}

type Result struct {
	Data     []byte
	RowCount int64
}

func Encode(rows []Row) (Result, error) {
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("rows are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Row](buf)
	if _, err := writer.Write(rows); err != nil {
		return Result{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return Result{Data: buf.Bytes(), RowCount: int64(len(rows))}, nil
}

// Sink receives each encoded part under its object key.
type Sink interface {
	Write(ctx context.Context, key string, result Result) error
}

// StoreSink uploads parts to an object store.
type StoreSink struct {
	Store storage.ObjectStore
}

func (s StoreSink) Write(ctx context.Context, key string, result Result) error {
	if _, err := s.Store.Put(ctx, key, bytes.NewReader(result.Data), int64(len(result.Data)), ContentType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// DirSink writes parts below a local directory, mirroring the key layout.
type DirSink struct {
	Root string
}

func (s DirSink) Write(_ context.Context, key string, result Result) error {
	target := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(target, result.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func widen(values []int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}
