package align

import "testing"

func TestLocate(t *testing.T) {
	cases := []struct {
		name   string
		target string
		tokens []string
		want   Span
	}{
		{name: "exact run", target: "abcd", tokens: []string{"ab", "cd", "ef"}, want: Span{0, 2}},
		{name: "no prefix token", target: "xyz", tokens: []string{"a", "b", "c"}, want: NotFound},
		{name: "empty tokens", target: "abc", tokens: nil, want: NotFound},
		{name: "single token", target: "一亿", tokens: []string{"大", "于", "一亿", "的"}, want: Span{2, 3}},
		{name: "earliest full run wins", target: "ab", tokens: []string{"a", "b", "x", "a", "b"}, want: Span{0, 2}},
		{name: "best partial run", target: "abcz", tokens: []string{"a", "x", "ab", "c", "q"}, want: Span{2, 4}},
		{name: "partial keeps earliest on tie", target: "abz", tokens: []string{"ab", "q", "a", "b"}, want: Span{0, 1}},
		{name: "multibyte run", target: "一亿元", tokens: []string{"大", "于", "一", "亿", "元"}, want: Span{2, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Locate(tc.target, tc.tokens)
			if got != tc.want {
				t.Fatalf("Locate(%q, %q) = %v, want %v", tc.target, tc.tokens, got, tc.want)
			}
		})
	}
}

func TestSpanFound(t *testing.T) {
	if NotFound.Found() {
		t.Fatal("NotFound.Found() = true")
	}
	if !(Span{Start: 0, End: 1}).Found() {
		t.Fatal("Span{0,1}.Found() = false")
	}
}
