package tagsfile

import "strings"

// SearchPattern wraps a source line as an anchored ctags search pattern,
// escaping the delimiter and backslashes.
func SearchPattern(line string) string {
	var b strings.Builder
	b.Grow(len(line) + 4)
	b.WriteString("/^")
	for i := 0; i < len(line); i++ {
		switch c := line[i]; c {
		case '\\', '/':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	if strings.HasSuffix(line, "$") {
		// A literal trailing dollar must not read as the end anchor.
		s := b.String()
		b.Reset()
		b.WriteString(s[:len(s)-1])
		b.WriteString(`\$`)
	}
	b.WriteString("$/")
	return b.String()
}

// PatternText returns the literal line prefix a search pattern locates. The
// surrounding delimiters, the ^ and $ anchors and backslash escapes are
// removed. Text that is not delimiter-wrapped is returned with only the
// anchors and escapes handled.
func PatternText(pattern string) string {
	p := pattern
	if n := len(p); n >= 2 && (p[0] == '/' || p[0] == '?') && p[n-1] == p[0] && !escapedAt(p, n-1) {
		p = p[1 : n-1]
	}
	p = strings.TrimPrefix(p, "^")
	if strings.HasSuffix(p, "$") && !escapedAt(p, len(p)-1) {
		p = p[:len(p)-1]
	}
	return unescape(p)
}

// escapedAt reports whether the byte at i is preceded by an odd number of
// backslashes.
func escapedAt(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
