// Package tokenize defines the tokenizer contract used by the encoder and its
// two implementations: single-character splitting and BERT WordPiece.
package tokenize

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Reserved tokens of the BERT vocabulary.
const (
	Begin       = "[CLS]"
	Sep         = "[SEP]"
	Pad         = "[PAD]"
	Unknown     = "[UNK]"
	TextColumn  = "[unused1]"
	OtherColumn = "[unused2]"
)

var reserved = []string{Begin, Sep, Pad, Unknown, TextColumn, OtherColumn}

type Tokenizer interface {
	Tokenize(text string) ([]string, error)
	IDs(tokens []string) []int
}

// ColumnMarker returns the type marker emitted before a header's tokens.
func ColumnMarker(columnType string) string {
	if columnType == "text" {
		return TextColumn
	}
	return OtherColumn
}

// Vocab maps tokens to ids by line position in a BERT vocab.txt.
type Vocab struct {
	ids     map[string]int
	unknown int
}

func LoadVocab(r io.Reader) (*Vocab, error) {
	ids := map[string]int{}
	scanner := bufio.NewScanner(r)
	index := 0
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if _, exists := ids[token]; !exists {
			ids[token] = index
		}
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewVocab(ids)
}

func NewVocab(ids map[string]int) (*Vocab, error) {
	for _, token := range reserved {
		if _, ok := ids[token]; !ok {
			return nil, fmt.Errorf("vocab is missing reserved token %s", token)
		}
	}
	return &Vocab{ids: ids, unknown: ids[Unknown]}, nil
}

func (v *Vocab) Len() int {
	return len(v.ids)
}

func (v *Vocab) ID(token string) int {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unknown
}

func (v *Vocab) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, token := range tokens {
		ids[i] = v.ID(token)
	}
	return ids
}

// Chars splits text into one token per rune. It is the fallback when no
// subword tokenizer is configured.
type Chars struct {
	Vocab *Vocab
}

func NewChars(vocab *Vocab) (*Chars, error) {
	if vocab == nil {
		return nil, fmt.Errorf("vocab is required")
	}
	return &Chars{Vocab: vocab}, nil
}

func (c *Chars) Tokenize(text string) ([]string, error) {
	tokens := make([]string, 0, len(text))
	for _, r := range text {
		tokens = append(tokens, string(r))
	}
	return tokens, nil
}

func (c *Chars) IDs(tokens []string) []int {
	return c.Vocab.IDs(tokens)
}
