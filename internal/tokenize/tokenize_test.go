package tokenize

import (
	"os"
	"strings"
	"testing"
)

const testVocab = "[PAD]\n[unused1]\n[unused2]\n[UNK]\n[CLS]\n[SEP]\n票\n房\n"

func TestLoadVocabAssignsLineIDs(t *testing.T) {
	vocab, err := LoadVocab(strings.NewReader(testVocab))
	if err != nil {
		t.Fatalf("LoadVocab() error = %v", err)
	}
	got := vocab.IDs([]string{Begin, "票", "房", "x", Sep, Pad})
	want := []int{4, 6, 7, 3, 5, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("IDs() = %v, want %v", got, want)
		}
	}
}

func TestLoadVocabRequiresReservedTokens(t *testing.T) {
	if _, err := LoadVocab(strings.NewReader("[PAD]\n[CLS]\n")); err == nil {
		t.Fatal("expected error for vocab without reserved tokens")
	}
}

func TestCharsSplitsRunes(t *testing.T) {
	vocab, err := LoadVocab(strings.NewReader(testVocab))
	if err != nil {
		t.Fatalf("LoadVocab() error = %v", err)
	}
	chars, err := NewChars(vocab)
	if err != nil {
		t.Fatalf("NewChars() error = %v", err)
	}
	tokens, err := chars.Tokenize("票房 a")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	want := []string{"票", "房", " ", "a"}
	if strings.Join(tokens, "|") != strings.Join(want, "|") {
		t.Fatalf("Tokenize() = %q, want %q", tokens, want)
	}
}

func TestColumnMarker(t *testing.T) {
	if ColumnMarker("text") != TextColumn {
		t.Fatalf("ColumnMarker(text) = %q", ColumnMarker("text"))
	}
	if ColumnMarker("real") != OtherColumn {
		t.Fatalf("ColumnMarker(real) = %q", ColumnMarker("real"))
	}
}

func TestWordPieceFromFile(t *testing.T) {
	path := os.Getenv("NL2SQL_TEST_TOKENIZER_FILE")
	if path == "" {
		t.Skip("NL2SQL_TEST_TOKENIZER_FILE is not set")
	}
	wp, err := NewWordPiece(path)
	if err != nil {
		t.Fatalf("NewWordPiece() error = %v", err)
	}
	tokens, err := wp.Tokenize("票房大于一亿")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if len(tokens) == 0 {
		t.Fatal("Tokenize() returned no tokens")
	}
	for _, token := range tokens {
		if token == Begin || token == Sep {
			t.Fatalf("Tokenize() added special token %q", token)
		}
	}
	if ids := wp.IDs(tokens); len(ids) != len(tokens) {
		t.Fatalf("IDs() len = %d, want %d", len(ids), len(tokens))
	}
}

func TestNewWordPieceRequiresPath(t *testing.T) {
	if _, err := NewWordPiece(" "); err == nil {
		t.Fatal("expected error for empty tokenizer path")
	}
}
