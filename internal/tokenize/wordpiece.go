package tokenize

import (
	"fmt"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// WordPiece wraps a pretrained HuggingFace tokenizer.json. Tokens are
// returned as the model produces them, including "##" continuation pieces.
type WordPiece struct {
	tk      *tokenizer.Tokenizer
	unknown int
}

func NewWordPiece(path string) (*WordPiece, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("tokenizer file is required")
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %q: %w", path, err)
	}
	for _, token := range reserved {
		if _, ok := tk.TokenToId(token); !ok {
			return nil, fmt.Errorf("tokenizer %q is missing reserved token %s", path, token)
		}
	}
	unknown, _ := tk.TokenToId(Unknown)
	return &WordPiece{tk: tk, unknown: unknown}, nil
}

func (w *WordPiece) Tokenize(text string) ([]string, error) {
	encoding, err := w.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, fmt.Errorf("tokenize %q: %w", text, err)
	}
	return encoding.Tokens, nil
}

func (w *WordPiece) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, token := range tokens {
		id, ok := w.tk.TokenToId(token)
		if !ok {
			id = w.unknown
		}
		ids[i] = id
	}
	return ids
}
