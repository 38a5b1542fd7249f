package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownTable = errors.New("unknown table")

// Condition is a single WHERE predicate encoded on the wire as
// [column_index, operator_id, value].
type Condition struct {
	Column   int
	Operator int
	Value    string
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Column, c.Operator, c.Value})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode condition: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("decode condition: want 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &c.Column); err != nil {
		return fmt.Errorf("decode condition column: %w", err)
	}
	if err := json.Unmarshal(raw[1], &c.Operator); err != nil {
		return fmt.Errorf("decode condition operator: %w", err)
	}
	if err := json.Unmarshal(raw[2], &c.Value); err != nil {
		return fmt.Errorf("decode condition value: %w", err)
	}
	return nil
}

// SQL is the structured query target. It doubles as the prediction output
// format, one object per line.
type SQL struct {
	Select     []int       `json:"sel"`
	Agg        []int       `json:"agg"`
	Conds      []Condition `json:"conds"`
	CondConnOp int         `json:"cond_conn_op"`
}

type Example struct {
	Question string `json:"question"`
	TableID  string `json:"table_id"`
	SQL      SQL    `json:"sql"`
}

type Table struct {
	ID     string   `json:"id"`
	Header []string `json:"header"`
	Types  []string `json:"types"`
}

// Collection holds the immutable examples of one split and the tables they
// reference.
type Collection struct {
	Examples []Example
	Tables   map[string]Table
}

func (c *Collection) Len() int {
	return len(c.Examples)
}

func (c *Collection) TableFor(example Example) (Table, error) {
	table, ok := c.Tables[example.TableID]
	if !ok {
		return Table{}, fmt.Errorf("table %q: %w", example.TableID, ErrUnknownTable)
	}
	return table, nil
}
