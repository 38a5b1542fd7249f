// Package labels turns sparse ground-truth SQL into the dense per-batch
// targets of the multi-head classifier.
package labels

import (
	"fmt"

	"github.com/codewithzichao/nl2sql/internal/align"
	"github.com/codewithzichao/nl2sql/internal/batch"
	"github.com/codewithzichao/nl2sql/internal/dataset"
)

// NotApplicable marks a slot with no class, distinct from class id 0.
const NotApplicable = -1

// Set holds one row per example; column-indexed rows are Width wide.
// WhereEnd holds the inclusive last token of the value span.
type Set struct {
	Width         int
	Connector     []int
	SelectCount   []int
	WhereCount    []int
	SelectColumn  [][]float64
	SelectAgg     [][]int
	WhereColumn   [][]float64
	WhereOperator [][]int
	WhereStart    [][]int
	WhereEnd      [][]int
}

func (s Set) Len() int {
	return len(s.Connector)
}

// Stats counts ground truth that produced no label signal.
type Stats struct {
	Unaligned  int
	OutOfRange int
}

type Input struct {
	Questions    [][]string
	QuestionLens []int
	HeaderCounts []int
	Answers      []batch.Answer
	Conditions   [][]dataset.Condition
}

func (in Input) validate() error {
	n := len(in.Answers)
	if n == 0 {
		return fmt.Errorf("batch is empty")
	}
	if len(in.Questions) != n || len(in.QuestionLens) != n || len(in.HeaderCounts) != n || len(in.Conditions) != n {
		return fmt.Errorf("mismatched batch fields: questions=%d question_lens=%d header_counts=%d answers=%d conditions=%d",
			len(in.Questions), len(in.QuestionLens), len(in.HeaderCounts), n, len(in.Conditions))
	}
	return nil
}

func Encode(in Input) (Set, Stats, error) {
	if err := in.validate(); err != nil {
		return Set{}, Stats{}, err
	}
	set := newSet(len(in.Answers), maxOf(in.HeaderCounts))
	for b, answer := range in.Answers {
		encodeSelection(&set, b, answer)
	}
	var stats Stats
	for b, conds := range in.Conditions {
		encodeConditions(&set, &stats, b, conds, in.Questions[b], in.QuestionLens[b], in.HeaderCounts[b])
	}
	return set, stats, nil
}

func newSet(n, width int) Set {
	set := Set{
		Width:         width,
		Connector:     make([]int, n),
		SelectCount:   make([]int, n),
		WhereCount:    make([]int, n),
		SelectColumn:  make([][]float64, n),
		SelectAgg:     make([][]int, n),
		WhereColumn:   make([][]float64, n),
		WhereOperator: make([][]int, n),
		WhereStart:    make([][]int, n),
		WhereEnd:      make([][]int, n),
	}
	for b := 0; b < n; b++ {
		set.SelectColumn[b] = make([]float64, width)
		set.WhereColumn[b] = make([]float64, width)
		set.SelectAgg[b] = filled(width, NotApplicable)
		set.WhereOperator[b] = filled(width, NotApplicable)
		set.WhereStart[b] = filled(width, NotApplicable)
		set.WhereEnd[b] = filled(width, NotApplicable)
	}
	return set
}

func encodeSelection(set *Set, b int, answer batch.Answer) {
	set.Connector[b] = answer.Connector
	set.SelectCount[b] = len(answer.Select)
	if len(answer.Select) == 0 {
		return
	}
	mass := 1 / float64(len(answer.Select))
	for k, col := range answer.Select {
		if col < 0 || col >= set.Width {
			continue
		}
		set.SelectColumn[b][col] = mass
		if k < len(answer.Agg) {
			// Repeated columns keep the last aggregation.
			set.SelectAgg[b][col] = answer.Agg[k]
		}
	}
}

func encodeConditions(set *Set, stats *Stats, b int, conds []dataset.Condition, question []string, questionLen, headerCount int) {
	if len(conds) == 0 {
		if headerCount > 0 {
			uniform := 1 / float64(headerCount)
			for col := 0; col < headerCount; col++ {
				set.WhereColumn[b][col] = uniform
			}
		}
		return
	}

	mass := 1 / float64(len(conds))
	for _, cond := range conds {
		if cond.Column < 0 || cond.Column >= headerCount {
			stats.OutOfRange++
			continue
		}
		span := align.Locate(cond.Value, question)
		if !span.Found() || questionLen <= 0 {
			// Values the tokenizer cannot reproduce get no supervision.
			stats.Unaligned++
			continue
		}
		// Mass accumulates across repeated columns; operator and span keep
		// the last condition seen for the column.
		set.WhereColumn[b][cond.Column] += mass
		set.WhereOperator[b][cond.Column] = cond.Operator
		set.WhereStart[b][cond.Column] = min(span.Start, questionLen-1)
		set.WhereEnd[b][cond.Column] = min(span.End-1, questionLen-1)
	}

	count := 0
	for _, m := range set.WhereColumn[b] {
		if m > 0 {
			count++
		}
	}
	set.WhereCount[b] = count
}

func filled(n, value int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func maxOf(values []int) int {
	best := 0
	for _, v := range values {
		best = max(best, v)
	}
	return best
}
