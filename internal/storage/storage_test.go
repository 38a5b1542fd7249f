package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestExportKey(t *testing.T) {
	key, err := ExportKey("run-7", "train", 3)
	if err != nil {
		t.Fatalf("ExportKey() error = %v", err)
	}
	if want := "exports/run-7/train/part-00003.parquet"; key != want {
		t.Fatalf("ExportKey() = %q, want %q", key, want)
	}
}

func TestExportKeyRejectsInvalidComponents(t *testing.T) {
	cases := []struct {
		run   string
		split string
		part  int
	}{
		{run: "", split: "train", part: 0},
		{run: "../run", split: "train", part: 0},
		{run: "run", split: "a/b", part: 0},
		{run: "run", split: "train", part: -1},
	}
	for _, tc := range cases {
		if _, err := ExportKey(tc.run, tc.split, tc.part); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ExportKey(%q, %q, %d) error = %v, want ErrInvalidKey", tc.run, tc.split, tc.part, err)
		}
	}
}

func TestPredictionsKey(t *testing.T) {
	key, err := PredictionsKey("run-7", "test")
	if err != nil {
		t.Fatalf("PredictionsKey() error = %v", err)
	}
	if want := "predictions/run-7/test.jsonl"; key != want {
		t.Fatalf("PredictionsKey() = %q, want %q", key, want)
	}
}

func TestOpenerReadsFromStore(t *testing.T) {
	store := memoryStore{"data/val.json": []byte(`{"question":"q"}`)}
	rc, err := Opener{Store: store}.Open(context.Background(), "data/val.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"question":"q"}` {
		t.Fatalf("body = %q", body)
	}

	if _, err := (Opener{Store: store}).Open(context.Background(), "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Open(missing) error = %v, want ErrObjectNotFound", err)
	}
	if _, err := (Opener{}).Open(context.Background(), "x"); err == nil {
		t.Fatal("expected error without store")
	}
}

type memoryStore map[string][]byte

func (m memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return ObjectInfo{}, err
	}
	m[key] = data
	return ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m memoryStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	data, ok := m[key]
	if !ok {
		return ObjectInfo{}, ErrObjectNotFound
	}
	return ObjectInfo{Key: key, Size: int64(len(data))}, nil
}
