package batch

import (
	"errors"
	"strings"
	"testing"

	"github.com/codewithzichao/nl2sql/internal/dataset"
)

type spaceTokenizer struct{}

func (spaceTokenizer) Tokenize(text string) ([]string, error) {
	return strings.Fields(text), nil
}

func (spaceTokenizer) IDs(tokens []string) []int {
	return make([]int, len(tokens))
}

func testCollection() *dataset.Collection {
	return &dataset.Collection{
		Examples: []dataset.Example{
			{Question: "box office of film a", TableID: "t1", SQL: dataset.SQL{Select: []int{1}, Agg: []int{0}, CondConnOp: 0}},
			{Question: "films above 5", TableID: "t1", SQL: dataset.SQL{
				Select:     []int{0, 1},
				Agg:        []int{0, 5},
				Conds:      []dataset.Condition{{Column: 1, Operator: 0, Value: "5"}, {Column: 0, Operator: 2, Value: "a"}},
				CondConnOp: 1,
			}},
			{Question: "orphan", TableID: "t9"},
		},
		Tables: map[string]dataset.Table{
			"t1": {ID: "t1", Header: []string{"film name", "box office"}, Types: []string{"text", "real"}},
		},
	}
}

func TestTrainFollowsPermutation(t *testing.T) {
	builder, err := NewBuilder(spaceTokenizer{})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	out, err := builder.Train(testCollection(), []int{1, 0}, dataset.Range{Start: 0, End: 2})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("Len() = %d", out.Len())
	}
	if strings.Join(out.Questions[0], " ") != "films above 5" {
		t.Fatalf("Questions[0] = %q", out.Questions[0])
	}
	if out.HeaderCounts[0] != 2 || len(out.Headers[0][1]) != 2 {
		t.Fatalf("headers = %v counts = %v", out.Headers[0], out.HeaderCounts)
	}
	answer := out.Answers[0]
	if answer.SelectCount != 2 || answer.CondCount != 2 || answer.Connector != 1 {
		t.Fatalf("answer = %#v", answer)
	}
	if answer.CondColumns[1] != 0 || answer.CondOperators[1] != 2 || answer.CondValues[0] != "5" {
		t.Fatalf("answer conditions = %#v", answer)
	}
	if out.SelectCounts[1] != 1 {
		t.Fatalf("SelectCounts = %v", out.SelectCounts)
	}
	if len(out.Conditions[1]) != 0 {
		t.Fatalf("Conditions[1] = %v", out.Conditions[1])
	}
	if out.Raw[1].Question != "box office of film a" || out.HeaderTypes[1][1] != "real" {
		t.Fatalf("raw = %#v types = %v", out.Raw[1], out.HeaderTypes[1])
	}
}

func TestTestOmitsGroundTruth(t *testing.T) {
	builder, err := NewBuilder(spaceTokenizer{})
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	out, err := builder.Test(testCollection(), []int{0, 1}, dataset.Range{Start: 1, End: 2})
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if out.Len() != 1 || out.RawQuestions[0] != "films above 5" || out.TableIDs[0] != "t1" {
		t.Fatalf("Test() = %#v", out)
	}
}

func TestTrainUnknownTable(t *testing.T) {
	builder, _ := NewBuilder(spaceTokenizer{})
	_, err := builder.Train(testCollection(), []int{0, 1, 2}, dataset.Range{Start: 2, End: 3})
	if !errors.Is(err, dataset.ErrUnknownTable) {
		t.Fatalf("Train() error = %v", err)
	}
}

func TestTrainRejectsBadRange(t *testing.T) {
	builder, _ := NewBuilder(spaceTokenizer{})
	if _, err := builder.Train(testCollection(), []int{0}, dataset.Range{Start: 0, End: 2}); err == nil {
		t.Fatal("expected error for range past permutation")
	}
}

func TestQueries(t *testing.T) {
	queries, tableIDs := Queries(testCollection(), []int{1, 0}, dataset.Range{Start: 0, End: 2})
	if len(queries) != 2 || queries[0].CondConnOp != 1 || tableIDs[1] != "t1" {
		t.Fatalf("Queries() = %#v %v", queries, tableIDs)
	}
}

func TestNewBuilderRequiresTokenizer(t *testing.T) {
	if _, err := NewBuilder(nil); err == nil {
		t.Fatal("expected error for nil tokenizer")
	}
}
