// Package align locates condition values inside tokenized questions.
package align

import "strings"

// NotFound is returned by Locate when no token starts the target.
var NotFound = Span{Start: -1, End: -1}

// Span is a half-open [Start, End) range of token indices.
type Span struct {
	Start int
	End   int
}

func (s Span) Found() bool {
	return s.Start >= 0
}

// Locate finds the token span whose concatenation best reconstructs target.
// Starting at every token that prefixes target, it extends greedily while
// each following token prefixes the still-uncovered suffix. The first run
// whose covered length reaches len(target) is returned at once; otherwise the
// run covering the most characters wins, earliest start first.
func Locate(target string, tokens []string) Span {
	best := NotFound
	bestLen := 0

	for i, token := range tokens {
		if !strings.HasPrefix(target, token) {
			continue
		}
		// Every run covers a prefix of target, so byte length orders runs
		// the same way character length does.
		covered := len(token)
		if covered > bestLen {
			bestLen = covered
			best = Span{Start: i, End: i + 1}
		}
		for j := i + 1; j < len(tokens); j++ {
			if !strings.HasPrefix(target[covered:], tokens[j]) {
				break
			}
			covered += len(tokens[j])
			if covered > bestLen {
				bestLen = covered
				best = Span{Start: i, End: j + 1}
			}
			// Coverage only, not equality of the joined tokens.
			if covered >= len(target) {
				return Span{Start: i, End: j + 1}
			}
		}
	}
	return best
}
