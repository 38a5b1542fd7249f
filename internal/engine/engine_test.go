package engine

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/codewithzichao/nl2sql/internal/dataset"
)

func newSQLMock(t *testing.T, driver string) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	engine, err := New(db, driver)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine, mock
}

func TestRenderPostgres(t *testing.T) {
	query := dataset.SQL{
		Select:     []int{0, 2},
		Agg:        []int{0, 5},
		Conds:      []dataset.Condition{{Column: 1, Operator: 0, Value: "5"}, {Column: 3, Operator: 3, Value: "x"}},
		CondConnOp: 2,
	}
	sqlText, args, rejected, err := Render(DriverPostgres, "abc", query)
	if err != nil || rejected != "" {
		t.Fatalf("Render() rejected = %q error = %v", rejected, err)
	}
	want := `SELECT "col_1", SUM("col_3") FROM "Table_abc" WHERE "col_2" > $1 OR "col_4" != $2`
	if sqlText != want {
		t.Fatalf("Render() = %s, want %s", sqlText, want)
	}
	if !reflect.DeepEqual(args, []any{"5", "x"}) {
		t.Fatalf("args = %v", args)
	}
}

func TestRenderRejections(t *testing.T) {
	cases := []struct {
		name  string
		query dataset.SQL
		want  string
	}{
		{
			name:  "several conditions without connector",
			query: dataset.SQL{Select: []int{0}, Agg: []int{0}, Conds: []dataset.Condition{{Column: 0, Operator: 2, Value: "a"}, {Column: 1, Operator: 2, Value: "b"}}},
			want:  RejectMissingConnector,
		},
		{name: "no conditions", query: dataset.SQL{Select: []int{0}, Agg: []int{0}}, want: RejectEmptyClause},
		{name: "no selection", query: dataset.SQL{Conds: []dataset.Condition{{Column: 0, Operator: 2, Value: "a"}}}, want: RejectEmptyClause},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, rejected, err := Render(DriverDuckDB, "t", tc.query)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if rejected != tc.want {
				t.Fatalf("Render() rejected = %q, want %q", rejected, tc.want)
			}
		})
	}
}

func TestRenderUnknownIDs(t *testing.T) {
	if _, _, _, err := Render(DriverDuckDB, "t", dataset.SQL{Select: []int{0}, Agg: []int{9}, Conds: []dataset.Condition{{Column: 0, Operator: 2, Value: "a"}}}); err == nil {
		t.Fatal("expected error for unknown aggregation")
	}
	if _, _, _, err := Render(DriverDuckDB, "t", dataset.SQL{Select: []int{0}, Agg: []int{0}, Conds: []dataset.Condition{{Column: 0, Operator: 7, Value: "a"}}}); err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

func TestExecuteCanonicalizesRows(t *testing.T) {
	engine, mock := newSQLMock(t, DriverDuckDB)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "col_1", "col_2" FROM "Table_t1" WHERE "col_2" = ?`)).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"col_1", "col_2"}).AddRow([]byte("b"), "a").AddRow("a", "a"))

	result, err := engine.Execute(context.Background(), "t1", dataset.SQL{
		Select: []int{0, 1},
		Agg:    []int{0, 0},
		Conds:  []dataset.Condition{{Column: 1, Operator: 2, Value: "a"}},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := [][]any{{"a", "b"}, {"a"}}
	if !reflect.DeepEqual(result.Rows, want) {
		t.Fatalf("Rows = %#v, want %#v", result.Rows, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestExecuteReturnsRejectionWithoutQuery(t *testing.T) {
	engine, mock := newSQLMock(t, DriverDuckDB)
	result, err := engine.Execute(context.Background(), "t1", dataset.SQL{Select: []int{0}, Agg: []int{0}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rejected != RejectEmptyClause {
		t.Fatalf("Rejected = %q", result.Rejected)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestExecuteWrapsQueryErrors(t *testing.T) {
	engine, mock := newSQLMock(t, DriverPostgres)
	boom := errors.New("no such column")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT("col_9") FROM "Table_t1" WHERE "col_1" < $1`)).
		WithArgs("3").
		WillReturnError(boom)

	_, err := engine.Execute(context.Background(), "t1", dataset.SQL{
		Select: []int{8},
		Agg:    []int{4},
		Conds:  []dataset.Condition{{Column: 0, Operator: 1, Value: "3"}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestResultEqual(t *testing.T) {
	a := Result{Rows: [][]any{{"x", int64(1)}}}
	b := Result{Rows: [][]any{{"x", int64(1)}}}
	if !a.Equal(b) {
		t.Fatal("identical rows should be equal")
	}
	if a.Equal(Result{Rows: [][]any{{"x", int64(2)}}}) {
		t.Fatal("different rows should not be equal")
	}
	if !(Result{Rejected: RejectEmptyClause}).Equal(Result{Rejected: RejectEmptyClause}) {
		t.Fatal("equal rejections should compare equal")
	}
	if (Result{Rejected: RejectEmptyClause}).Equal(Result{}) {
		t.Fatal("rejection should not equal an empty result")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("Open() error = %v", err)
	}
}

func TestExecuteAgainstDuckDB(t *testing.T) {
	ctx := context.Background()
	engine, err := Open(ctx, Config{Driver: DriverDuckDB, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = engine.Close() }()

	for _, stmt := range []string{
		`CREATE TABLE "Table_films" ("col_1" VARCHAR, "col_2" VARCHAR)`,
		`INSERT INTO "Table_films" VALUES ('a', 'x'), ('b', 'y'), ('c', 'x')`,
	} {
		if _, err := engine.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("ExecContext(%q) error = %v", stmt, err)
		}
	}

	result, err := engine.Execute(ctx, "films", dataset.SQL{
		Select: []int{0},
		Agg:    []int{4},
		Conds:  []dataset.Condition{{Column: 1, Operator: 2, Value: "x"}},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != int64(2) {
		t.Fatalf("Rows = %#v", result.Rows)
	}

	if _, err := engine.Execute(ctx, "missing", dataset.SQL{
		Select: []int{0},
		Agg:    []int{0},
		Conds:  []dataset.Condition{{Column: 0, Operator: 2, Value: "x"}},
	}); err == nil {
		t.Fatal("expected error for missing table")
	}
}
