// Package encode packs tokenized questions and headers into the fixed-format
// input of the sequence classifier.
package encode

import (
	"fmt"

	"github.com/codewithzichao/nl2sql/internal/batch"
	"github.com/codewithzichao/nl2sql/internal/tokenize"
)

const DefaultMaxLength = 200

type Segment string

const (
	SegmentNone     Segment = ""
	SegmentQuestion Segment = "question"
	SegmentHeader   Segment = "header"
)

// Sequence is one packed, unpadded example.
type Sequence struct {
	Tokens        []string
	SegmentIDs    []int
	AttentionMask []int
	QuestionMask  []int
	HeaderMask    []int
	// HeaderIndex holds the positions of the separator closing the question
	// followed by each header's closing separator, so header i spans
	// (HeaderIndex[i], HeaderIndex[i+1]).
	HeaderIndex []int
	QuestionLen int
	HeaderCount int
	Truncated   Segment
}

// PackSequence builds
//
//	[CLS] question [SEP] marker header [SEP] marker header [SEP] ...
//
// and shortens it to maxLength. The question absorbs the overflow when it can
// do so and still keep a token; otherwise the header segment is cut.
func PackSequence(question []string, headers [][]string, types []string, maxLength int) (Sequence, error) {
	if len(types) < len(headers) {
		return Sequence{}, fmt.Errorf("%d headers but %d types", len(headers), len(types))
	}

	textA := make([]string, 0, len(question)+2)
	textA = append(textA, tokenize.Begin)
	textA = append(textA, question...)
	textA = append(textA, tokenize.Sep)

	textB := make([]string, 0)
	for i, header := range headers {
		textB = append(textB, tokenize.ColumnMarker(types[i]))
		textB = append(textB, header...)
		textB = append(textB, tokenize.Sep)
	}

	truncated := SegmentNone
	if overflow := len(textA) + len(textB) - maxLength; maxLength > 0 && overflow > 0 {
		if overflow+1 < len(textA) {
			textA = append(textA[:len(textA)-overflow-1:len(textA)-overflow-1], tokenize.Sep)
			truncated = SegmentQuestion
		} else {
			// A question at or over the budget cannot be cut, so the result
			// may still exceed maxLength.
			keep := max(len(textB)-overflow-1, 0)
			textB = append(textB[:keep:keep], tokenize.Sep)
			truncated = SegmentHeader
		}
	}

	tokens := make([]string, 0, len(textA)+len(textB))
	tokens = append(tokens, textA...)
	tokens = append(tokens, textB...)

	segments := make([]int, len(tokens))
	for i := len(textA); i < len(tokens); i++ {
		segments[i] = 1
	}

	headerIndex := make([]int, 0, len(headers)+1)
	for i := len(textA) - 1; i < len(tokens); i++ {
		if tokens[i] == tokenize.Sep {
			headerIndex = append(headerIndex, i)
		}
	}

	questionLen := len(textA) - 2
	headerCount := len(headerIndex) - 1
	return Sequence{
		Tokens:        tokens,
		SegmentIDs:    segments,
		AttentionMask: ones(len(tokens)),
		QuestionMask:  ones(questionLen),
		HeaderMask:    ones(headerCount),
		HeaderIndex:   headerIndex,
		QuestionLen:   questionLen,
		HeaderCount:   headerCount,
		Truncated:     truncated,
	}, nil
}

// Batch is a padded set of packed sequences. Row k always belongs to input
// example k.
type Batch struct {
	InputIDs      [][]int
	QuestionMask  [][]int
	HeaderMask    [][]int
	HeaderIndex   [][]int
	SegmentIDs    [][]int
	AttentionMask [][]int
	QuestionLens  []int
	HeaderCounts  []int
	Sequences     []Sequence
}

func (b Batch) Len() int {
	return len(b.Sequences)
}

func (b Batch) MaxQuestionLen() int {
	return maxOf(b.QuestionLens)
}

func (b Batch) MaxHeaderCount() int {
	return maxOf(b.HeaderCounts)
}

type Packer struct {
	Tokenizer tokenize.Tokenizer
	MaxLength int
}

func NewPacker(tokenizer tokenize.Tokenizer, maxLength int) (*Packer, error) {
	if tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Packer{Tokenizer: tokenizer, MaxLength: maxLength}, nil
}

func (p *Packer) Pack(seqs batch.Sequences) (Batch, error) {
	if seqs.Len() == 0 {
		return Batch{}, fmt.Errorf("batch is empty")
	}

	packed := make([]Sequence, seqs.Len())
	tokens := make([][]string, seqs.Len())
	out := Batch{
		QuestionMask:  make([][]int, seqs.Len()),
		HeaderMask:    make([][]int, seqs.Len()),
		HeaderIndex:   make([][]int, seqs.Len()),
		SegmentIDs:    make([][]int, seqs.Len()),
		AttentionMask: make([][]int, seqs.Len()),
		QuestionLens:  make([]int, seqs.Len()),
		HeaderCounts:  make([]int, seqs.Len()),
	}
	for i := range packed {
		seq, err := PackSequence(seqs.Questions[i], seqs.Headers[i], seqs.HeaderTypes[i], p.MaxLength)
		if err != nil {
			return Batch{}, fmt.Errorf("pack example %d: %w", i, err)
		}
		packed[i] = seq
		tokens[i] = seq.Tokens
		out.QuestionMask[i] = seq.QuestionMask
		out.HeaderMask[i] = seq.HeaderMask
		out.HeaderIndex[i] = seq.HeaderIndex
		out.SegmentIDs[i] = seq.SegmentIDs
		out.AttentionMask[i] = seq.AttentionMask
		out.QuestionLens[i] = seq.QuestionLen
		out.HeaderCounts[i] = seq.HeaderCount
	}

	padded := Pad(tokens, tokenize.Pad, 0)
	out.InputIDs = make([][]int, len(padded))
	for i, row := range padded {
		out.InputIDs[i] = p.Tokenizer.IDs(row)
	}
	out.QuestionMask = Pad(out.QuestionMask, 0, 0)
	out.HeaderMask = Pad(out.HeaderMask, 0, 0)
	out.HeaderIndex = Pad(out.HeaderIndex, 0, 0)
	out.SegmentIDs = Pad(out.SegmentIDs, 0, 0)
	out.AttentionMask = Pad(out.AttentionMask, 0, 0)
	out.Sequences = packed
	return out, nil
}

// Pad right-pads or truncates every row to width. A width of zero means the
// longest row. Input rows are not modified.
func Pad[T any](rows [][]T, pad T, width int) [][]T {
	if width <= 0 {
		for _, row := range rows {
			width = max(width, len(row))
		}
	}
	out := make([][]T, len(rows))
	for i, row := range rows {
		padded := make([]T, width)
		n := copy(padded, row)
		for j := n; j < width; j++ {
			padded[j] = pad
		}
		out[i] = padded
	}
	return out
}

func ones(n int) []int {
	if n < 0 {
		n = 0
	}
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func maxOf(values []int) int {
	best := 0
	for _, v := range values {
		best = max(best, v)
	}
	return best
}
