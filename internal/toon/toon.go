// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/tagmonster/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Symbol is one row of a symbol listing.
type Symbol struct {
	Name  string
	Scope string
}

// EncodeSymbols renders a names listing, one row per occurrence.
func EncodeSymbols(symbols []Symbol) string {
	rows := make([][]string, 0, len(symbols))
	for _, s := range symbols {
		rows = append(rows, []string{s.Name, s.Scope})
	}
	return formatTabular("symbols", []string{"name", "scope"}, rows)
}

// EncodeTags renders full tag records, including the signature and class
// extension fields when present.
func EncodeTags(tags []model.Tag) string {
	rows := make([][]string, 0, len(tags))
	for i := range tags {
		t := &tags[i]
		rows = append(rows, []string{
			t.Name,
			t.Scope,
			t.Kind,
			t.File,
			lineValue(t.Line),
			t.Fields["class"],
			t.Fields["signature"],
		})
	}
	return formatTabular("tags", []string{"name", "scope", "kind", "file", "line", "class", "signature"}, rows)
}

// EncodeLocation renders a resolved tag as key/value pairs.
func EncodeLocation(tag model.Tag, line int, text string) string {
	parts := []string{
		fmt.Sprintf("name: %s", encodeValue(tag.Name)),
		fmt.Sprintf("scope: %s", encodeValue(tag.Scope)),
		fmt.Sprintf("file: %s", encodeValue(tag.File)),
		fmt.Sprintf("line: %d", line),
		fmt.Sprintf("text: %s", encodeValue(text)),
	}
	return strings.Join(parts, "\n")
}

// EncodeContext renders a resolved tag followed by the surrounding lines.
// start is the 1-based number of the first line.
func EncodeContext(tag model.Tag, line, start int, lines []string) string {
	rows := make([][]string, 0, len(lines))
	for i, l := range lines {
		rows = append(rows, []string{fmt.Sprintf("%d", start+i), l})
	}
	parts := []string{
		fmt.Sprintf("name: %s", encodeValue(tag.Name)),
		fmt.Sprintf("file: %s", encodeValue(tag.File)),
		fmt.Sprintf("line: %d", line),
		formatTabular("context", []string{"line", "text"}, rows),
	}
	return strings.Join(parts, "\n")
}

// EncodeSummary renders load statistics and the scope table. cacheFiles is
// parallel to scopes and may be empty when no caches were written.
func EncodeSummary(tags, warnings int, scopes, cacheFiles []string) string {
	rows := make([][]string, 0, len(scopes))
	for i, s := range scopes {
		var file string
		if i < len(cacheFiles) {
			file = cacheFiles[i]
		}
		rows = append(rows, []string{s, file})
	}
	parts := []string{
		fmt.Sprintf("tags: %d", tags),
		fmt.Sprintf("warnings: %d", warnings),
		formatTabular("scopes", []string{"scope", "cache_file"}, rows),
	}
	return strings.Join(parts, "\n")
}

func lineValue(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", n)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
