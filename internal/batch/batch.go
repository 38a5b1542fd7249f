// Package batch slices dataset examples into parallel per-field arrays for
// one [start, end) range of a permutation.
package batch

import (
	"fmt"

	"github.com/codewithzichao/nl2sql/internal/dataset"
	"github.com/codewithzichao/nl2sql/internal/tokenize"
)

// Answer is the flattened ground truth of one example.
type Answer struct {
	SelectCount   int
	Select        []int
	Agg           []int
	CondCount     int
	CondColumns   []int
	CondOperators []int
	CondValues    []string
	Connector     int
}

func NewAnswer(sql dataset.SQL) Answer {
	answer := Answer{
		SelectCount:   len(sql.Agg),
		Select:        sql.Select,
		Agg:           sql.Agg,
		CondCount:     len(sql.Conds),
		CondColumns:   make([]int, len(sql.Conds)),
		CondOperators: make([]int, len(sql.Conds)),
		CondValues:    make([]string, len(sql.Conds)),
		Connector:     sql.CondConnOp,
	}
	for i, cond := range sql.Conds {
		answer.CondColumns[i] = cond.Column
		answer.CondOperators[i] = cond.Operator
		answer.CondValues[i] = cond.Value
	}
	return answer
}

// Raw keeps the untokenized question and headers for inspection.
type Raw struct {
	Question string
	Header   []string
}

// Sequences holds the tokenized inputs shared by the train and test variants.
type Sequences struct {
	Questions    [][]string
	Headers      [][][]string
	HeaderCounts []int
	HeaderTypes  [][]string
}

func (s Sequences) Len() int {
	return len(s.Questions)
}

type Train struct {
	Sequences
	SelectCounts []int
	Answers      []Answer
	Conditions   [][]dataset.Condition
	Raw          []Raw
}

// Test carries no ground truth.
type Test struct {
	Sequences
	RawQuestions []string
	TableIDs     []string
}

type Builder struct {
	Tokenizer tokenize.Tokenizer
}

func NewBuilder(tokenizer tokenize.Tokenizer) (*Builder, error) {
	if tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	return &Builder{Tokenizer: tokenizer}, nil
}

func (b *Builder) Train(c *dataset.Collection, perm []int, r dataset.Range) (Train, error) {
	out := Train{
		SelectCounts: make([]int, 0, r.Len()),
		Answers:      make([]Answer, 0, r.Len()),
		Conditions:   make([][]dataset.Condition, 0, r.Len()),
		Raw:          make([]Raw, 0, r.Len()),
	}
	err := b.each(c, perm, r, &out.Sequences, func(example dataset.Example, table dataset.Table) {
		out.SelectCounts = append(out.SelectCounts, len(example.SQL.Select))
		out.Answers = append(out.Answers, NewAnswer(example.SQL))
		out.Conditions = append(out.Conditions, example.SQL.Conds)
		out.Raw = append(out.Raw, Raw{Question: example.Question, Header: table.Header})
	})
	if err != nil {
		return Train{}, err
	}
	return out, nil
}

func (b *Builder) Test(c *dataset.Collection, perm []int, r dataset.Range) (Test, error) {
	out := Test{
		RawQuestions: make([]string, 0, r.Len()),
		TableIDs:     make([]string, 0, r.Len()),
	}
	err := b.each(c, perm, r, &out.Sequences, func(example dataset.Example, _ dataset.Table) {
		out.RawQuestions = append(out.RawQuestions, example.Question)
		out.TableIDs = append(out.TableIDs, example.TableID)
	})
	if err != nil {
		return Test{}, err
	}
	return out, nil
}

func (b *Builder) each(c *dataset.Collection, perm []int, r dataset.Range, seqs *Sequences, fn func(dataset.Example, dataset.Table)) error {
	if r.Start < 0 || r.End > len(perm) || r.Start > r.End {
		return fmt.Errorf("range [%d, %d) outside permutation of %d", r.Start, r.End, len(perm))
	}
	seqs.Questions = make([][]string, 0, r.Len())
	seqs.Headers = make([][][]string, 0, r.Len())
	seqs.HeaderCounts = make([]int, 0, r.Len())
	seqs.HeaderTypes = make([][]string, 0, r.Len())

	for i := r.Start; i < r.End; i++ {
		example := c.Examples[perm[i]]
		table, err := c.TableFor(example)
		if err != nil {
			return err
		}
		question, err := b.Tokenizer.Tokenize(example.Question)
		if err != nil {
			return fmt.Errorf("tokenize question: %w", err)
		}
		headers := make([][]string, len(table.Header))
		for h, name := range table.Header {
			headers[h], err = b.Tokenizer.Tokenize(name)
			if err != nil {
				return fmt.Errorf("tokenize header %q: %w", name, err)
			}
		}
		seqs.Questions = append(seqs.Questions, question)
		seqs.Headers = append(seqs.Headers, headers)
		seqs.HeaderCounts = append(seqs.HeaderCounts, len(table.Header))
		seqs.HeaderTypes = append(seqs.HeaderTypes, table.Types)
		fn(example, table)
	}
	return nil
}

// Queries returns the gold structures and table ids for a range.
func Queries(c *dataset.Collection, perm []int, r dataset.Range) ([]dataset.SQL, []string) {
	queries := make([]dataset.SQL, 0, r.Len())
	tableIDs := make([]string, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		example := c.Examples[perm[i]]
		queries = append(queries, example.SQL)
		tableIDs = append(tableIDs, example.TableID)
	}
	return queries, tableIDs
}
