package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codewithzichao/nl2sql/internal/config"
)

func TestNewLoggerJSONCarriesServiceAttributes(t *testing.T) {
	cfg := config.Config{
		Profile:       config.ProfileTest,
		Service:       config.ServiceConfig{Name: "nl2sqlctl"},
		Observability: config.ObservabilityConfig{LogJSON: true},
	}
	var buf bytes.Buffer
	NewLogger(cfg, &buf).Info("batch_encoded")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if line["service"] != "nl2sqlctl" || line["profile"] != "test" || line["msg"] != "batch_encoded" {
		t.Fatalf("log line = %v", line)
	}
}

func TestFlushTextfile(t *testing.T) {
	if err := FlushTextfile(""); err != nil {
		t.Fatalf("FlushTextfile(\"\") error = %v", err)
	}
	ObserveTruncated("question")
	ObserveEncoded(3, 2, 0)
	path := filepath.Join(t.TempDir(), "nl2sql.prom")
	if err := FlushTextfile(path); err != nil {
		t.Fatalf("FlushTextfile() error = %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(body), `nl2sql_sequences_truncated_total{segment="question"}`) {
		t.Fatalf("textfile missing truncation metric:\n%s", body)
	}
	if !strings.Contains(string(body), "nl2sql_conditions_unaligned_total 2") {
		t.Fatalf("textfile missing unaligned count:\n%s", body)
	}
}
