// Package engine executes SQL structures against the per-table relations of
// a dataset database. Tables are named Table_<id> with columns col_1..col_n.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/codewithzichao/nl2sql/internal/dataset"
)

var ErrUnsupportedDriver = errors.New("unsupported driver")

const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "pgx"
)

// Rejection codes for structures that cannot be rendered as a query. They
// are results, not failures: two equal rejections compare equal.
const (
	RejectMissingConnector = "Error1"
	RejectEmptyClause      = "Error2"
)

var (
	aggregations = map[int]string{0: "", 1: "AVG", 2: "MAX", 3: "MIN", 4: "COUNT", 5: "SUM"}
	operators    = map[int]string{0: ">", 1: "<", 2: "=", 3: "!="}
	connectors   = map[int]string{0: "", 1: " AND ", 2: " OR "}
)

type Result struct {
	Rejected string
	Rows     [][]any
}

func (r Result) Equal(other Result) bool {
	if r.Rejected != "" || other.Rejected != "" {
		return r.Rejected == other.Rejected
	}
	if len(r.Rows) != len(other.Rows) {
		return false
	}
	for i := range r.Rows {
		if !reflect.DeepEqual(r.Rows[i], other.Rows[i]) {
			return false
		}
	}
	return true
}

type Executor interface {
	Execute(ctx context.Context, tableID string, query dataset.SQL) (Result, error)
}

type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

type Engine struct {
	db     *sql.DB
	driver string
}

func Open(ctx context.Context, cfg Config) (*Engine, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = DriverDuckDB
	}
	if !supported(driver) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Engine{db: db, driver: driver}, nil
}

// New wraps an already opened database.
func New(db *sql.DB, driver string) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if !supported(driver) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	return &Engine{db: db, driver: driver}, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) Execute(ctx context.Context, tableID string, query dataset.SQL) (Result, error) {
	sqlText, args, rejected, err := Render(e.driver, tableID, query)
	if err != nil {
		return Result{}, err
	}
	if rejected != "" {
		return Result{Rejected: rejected}, nil
	}

	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}
	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, canonicalRow(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return Result{Rows: resultRows}, nil
}

// Render builds the query text and bind arguments for a structure. A non-empty
// rejection code means the structure is not executable.
func Render(driver, tableID string, query dataset.SQL) (string, []any, string, error) {
	if query.CondConnOp == 0 && len(query.Conds) > 1 {
		return "", nil, RejectMissingConnector, nil
	}
	if len(query.Select) == 0 || len(query.Conds) == 0 || len(query.Agg) == 0 {
		return "", nil, RejectEmptyClause, nil
	}
	connector, ok := connectors[query.CondConnOp]
	if !ok {
		return "", nil, "", fmt.Errorf("unknown connector id %d", query.CondConnOp)
	}

	selectParts := make([]string, 0, len(query.Select))
	for i := 0; i < len(query.Select) && i < len(query.Agg); i++ {
		agg, ok := aggregations[query.Agg[i]]
		if !ok {
			return "", nil, "", fmt.Errorf("unknown aggregation id %d", query.Agg[i])
		}
		column := columnName(query.Select[i])
		if agg == "" {
			selectParts = append(selectParts, column)
		} else {
			selectParts = append(selectParts, agg+"("+column+")")
		}
	}

	whereParts := make([]string, 0, len(query.Conds))
	args := make([]any, 0, len(query.Conds))
	for i, cond := range query.Conds {
		op, ok := operators[cond.Operator]
		if !ok {
			return "", nil, "", fmt.Errorf("unknown operator id %d", cond.Operator)
		}
		whereParts = append(whereParts, fmt.Sprintf("%s %s %s", columnName(cond.Column), op, placeholder(driver, i+1)))
		args = append(args, cond.Value)
	}

	sqlText := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(selectParts, ", "),
		quoteIdent("Table_"+tableID),
		strings.Join(whereParts, connector),
	)
	return sqlText, args, "", nil
}

func supported(driver string) bool {
	return driver == DriverDuckDB || driver == DriverPostgres
}

func placeholder(driver string, n int) string {
	if driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func columnName(index int) string {
	return quoteIdent(fmt.Sprintf("col_%d", index+1))
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// canonicalRow compares rows as sets of values: byte slices become strings,
// duplicates are dropped and the remainder is ordered by its printed form.
func canonicalRow(values []any) []any {
	seen := map[string]bool{}
	row := make([]any, 0, len(values))
	for _, value := range values {
		if typed, ok := value.([]byte); ok {
			value = string(typed)
		}
		key := fmt.Sprintf("%T:%v", value, value)
		if seen[key] {
			continue
		}
		seen[key] = true
		row = append(row, value)
	}
	sort.SliceStable(row, func(i, j int) bool {
		return fmt.Sprintf("%T:%v", row[i], row[i]) < fmt.Sprintf("%T:%v", row[j], row[j])
	})
	return row
}
