// Package score compares predicted SQL structures with ground truth, both
// field by field and by executing them.
package score

import (
	"fmt"
	"sort"

	"github.com/codewithzichao/nl2sql/internal/dataset"
)

// Field names in the order errors are reported.
const (
	FieldSelectCount  = "sel_num"
	FieldSelect       = "sel"
	FieldAgg          = "agg"
	FieldCondCount    = "cond_num"
	FieldCondColumn   = "cond_col"
	FieldCondOperator = "cond_op"
	FieldCondValue    = "cond_val"
	FieldConnector    = "cond_conn_op"
)

// Counts tallies mismatching examples per field.
type Counts struct {
	SelectCount  int
	Select       int
	Agg          int
	CondCount    int
	CondColumn   int
	CondOperator int
	CondValue    int
	Connector    int
}

func (c Counts) Add(other Counts) Counts {
	return Counts{
		SelectCount:  c.SelectCount + other.SelectCount,
		Select:       c.Select + other.Select,
		Agg:          c.Agg + other.Agg,
		CondCount:    c.CondCount + other.CondCount,
		CondColumn:   c.CondColumn + other.CondColumn,
		CondOperator: c.CondOperator + other.CondOperator,
		CondValue:    c.CondValue + other.CondValue,
		Connector:    c.Connector + other.Connector,
	}
}

// Each visits the counters in reporting order.
func (c Counts) Each(fn func(field string, n int)) {
	fn(FieldSelectCount, c.SelectCount)
	fn(FieldSelect, c.Select)
	fn(FieldAgg, c.Agg)
	fn(FieldCondCount, c.CondCount)
	fn(FieldCondColumn, c.CondColumn)
	fn(FieldCondOperator, c.CondOperator)
	fn(FieldCondValue, c.CondValue)
	fn(FieldConnector, c.Connector)
}

// Compare scores aligned predictions against ground truth and returns the
// per-field error counts plus the number of examples with any error.
func Compare(preds, gold []dataset.SQL) (Counts, int, error) {
	if len(preds) != len(gold) {
		return Counts{}, 0, fmt.Errorf("%d predictions for %d ground-truth queries", len(preds), len(gold))
	}
	var counts Counts
	wrong := 0
	for i := range gold {
		if !compareOne(&counts, preds[i], gold[i]) {
			wrong++
		}
	}
	return counts, wrong, nil
}

func compareOne(counts *Counts, pred, gold dataset.SQL) bool {
	good := true

	if pred.CondConnOp != gold.CondConnOp {
		counts.Connector++
		good = false
	}
	if len(pred.Select) != len(gold.Select) {
		counts.SelectCount++
		good = false
	}
	if !sameSet(pred.Select, gold.Select) {
		counts.Select++
		good = false
	}
	// Compared even when the selections differ in size, which may line up
	// aggregations of different columns.
	predAgg := zipColumns(pred.Select, pred.Agg)
	goldAgg := zipColumns(gold.Select, gold.Agg)
	if !equalSlices(predAgg.sortedValues(), goldAgg.sortedValues()) {
		counts.Agg++
		good = false
	}

	if len(pred.Conds) != len(gold.Conds) {
		counts.CondCount++
		return false
	}

	predOps, goldOps := columnMap[int]{}, columnMap[int]{}
	predVals, goldVals := columnMap[string]{}, columnMap[string]{}
	for i := range pred.Conds {
		// A repeated column overwrites the earlier condition on purpose; the
		// comparison only sees the last one per column.
		predOps[pred.Conds[i].Column] = pred.Conds[i].Operator
		predVals[pred.Conds[i].Column] = pred.Conds[i].Value
		goldOps[gold.Conds[i].Column] = gold.Conds[i].Operator
		goldVals[gold.Conds[i].Column] = gold.Conds[i].Value
	}
	if !sameSet(predOps.keys(), goldOps.keys()) {
		counts.CondColumn++
		good = false
	}
	if !equalSlices(predOps.sortedValues(), goldOps.sortedValues()) {
		counts.CondOperator++
		good = false
	}
	if !equalSlices(predVals.sortedValues(), goldVals.sortedValues()) {
		counts.CondValue++
		good = false
	}
	return good
}

// columnMap keys a per-column attribute by column index.
type columnMap[V comparable] map[int]V

// zipColumns pairs columns with values up to the shorter list. Later
// duplicates overwrite earlier ones.
func zipColumns(columns, values []int) columnMap[int] {
	m := columnMap[int]{}
	for i := 0; i < len(columns) && i < len(values); i++ {
		m[columns[i]] = values[i]
	}
	return m
}

func (m columnMap[V]) keys() []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// sortedValues reads the values in ascending column order.
func (m columnMap[V]) sortedValues() []V {
	keys := m.keys()
	values := make([]V, len(keys))
	for i, k := range keys {
		values[i] = m[k]
	}
	return values
}

func sameSet(a, b []int) bool {
	left := make(map[int]bool, len(a))
	for _, v := range a {
		left[v] = true
	}
	right := make(map[int]bool, len(b))
	for _, v := range b {
		right[v] = true
	}
	if len(left) != len(right) {
		return false
	}
	for v := range left {
		if !right[v] {
			return false
		}
	}
	return true
}

func equalSlices[V comparable](a, b []V) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
