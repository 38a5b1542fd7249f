package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Opener resolves a dataset path to a readable stream. Local files and
// object-store keys both satisfy it.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

type FileOpener struct{}

func (FileOpener) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

type LoadOptions struct {
	// Limit stops reading each record file after this many lines. Zero reads
	// everything.
	Limit  int
	Logger *slog.Logger
}

// Load reads every record and table file and drops records whose table is
// missing from the loaded tables.
func Load(ctx context.Context, opener Opener, recordPaths, tablePaths []string, opts LoadOptions) (*Collection, error) {
	if opener == nil {
		return nil, fmt.Errorf("opener is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	examples := make([]Example, 0)
	for _, path := range recordPaths {
		loaded, err := readFile(ctx, opener, path, func(r io.Reader) ([]Example, error) {
			return ReadExamples(r, opts.Limit)
		})
		if err != nil {
			return nil, err
		}
		examples = append(examples, loaded...)
		logger.Info("examples_loaded", slog.String("path", path), slog.Int("count", len(examples)))
	}

	tables := map[string]Table{}
	for _, path := range tablePaths {
		loaded, err := readFile(ctx, opener, path, ReadTables)
		if err != nil {
			return nil, err
		}
		for _, table := range loaded {
			tables[table.ID] = table
		}
		logger.Info("tables_loaded", slog.String("path", path), slog.Int("count", len(tables)))
	}

	kept := make([]Example, 0, len(examples))
	for _, example := range examples {
		if _, ok := tables[example.TableID]; ok {
			kept = append(kept, example)
		}
	}
	if dropped := len(examples) - len(kept); dropped > 0 {
		logger.Warn("examples_without_table_dropped", slog.Int("count", dropped))
	}
	return &Collection{Examples: kept, Tables: tables}, nil
}

func readFile[T any](ctx context.Context, opener Opener, path string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	reader, err := opener.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer func() { _ = reader.Close() }()

	values, err := decode(reader)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return values, nil
}

// ReadExamples decodes one record per line. limit > 0 caps the number of
// lines consumed.
func ReadExamples(r io.Reader, limit int) ([]Example, error) {
	examples := make([]Example, 0)
	err := scanLines(r, func(index int, line string) (bool, error) {
		if limit > 0 && index >= limit {
			return false, nil
		}
		var example Example
		if err := json.Unmarshal([]byte(line), &example); err != nil {
			return false, fmt.Errorf("line %d: %w", index+1, err)
		}
		examples = append(examples, example)
		return true, nil
	})
	return examples, err
}

func ReadTables(r io.Reader) ([]Table, error) {
	tables := make([]Table, 0)
	err := scanLines(r, func(index int, line string) (bool, error) {
		var table Table
		if err := json.Unmarshal([]byte(line), &table); err != nil {
			return false, fmt.Errorf("line %d: %w", index+1, err)
		}
		if len(table.Types) != len(table.Header) {
			return false, fmt.Errorf("line %d: table %q has %d headers and %d types", index+1, table.ID, len(table.Header), len(table.Types))
		}
		tables = append(tables, table)
		return true, nil
	})
	return tables, err
}

func scanLines(r io.Reader, fn func(index int, line string) (bool, error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	// Blank lines are skipped but still count toward index.
	for index := 0; scanner.Scan(); index++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		more, err := fn(index, line)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return scanner.Err()
}
