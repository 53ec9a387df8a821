package tagsfile

import (
	"testing"
)

func TestPatternText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		want    string
	}{
		{`/^def foo():$/`, "def foo():"},
		{`?^def foo():$?`, "def foo():"},
		{`/^func (s *Server) Run() {/`, "func (s *Server) Run() {"},
		{`/^x := a \/ b$/`, "x := a / b"},
		{`/^path = "C:\\\\tmp"$/`, `path = "C:\\tmp"`},
		{`/^cost = 5\$$/`, "cost = 5$"},
		{`/^trailing\\$/`, `trailing\`},
		{`def bare():`, "def bare():"},
		{`//`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			t.Parallel()
			if got := PatternText(tt.pattern); got != tt.want {
				t.Errorf("PatternText(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestSearchPatternRoundTrip(t *testing.T) {
	t.Parallel()

	lines := []string{
		"def foo():",
		"x := a / b",
		`s := "\\"`,
		"price$",
		`ends with backslash \`,
		"",
	}
	for _, line := range lines {
		p := SearchPattern(line)
		if got := PatternText(p); got != line {
			t.Errorf("PatternText(SearchPattern(%q)) = %q (pattern %q)", line, got, p)
		}
	}
}
