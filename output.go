package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phobologic/tagmonster/internal/locate"
	"github.com/phobologic/tagmonster/internal/model"
	"github.com/phobologic/tagmonster/internal/service"
	"github.com/phobologic/tagmonster/internal/toon"
)

const (
	formatText = "text"
	formatTOON = "toon"
	formatJSON = "json"
)

type tagJSON struct {
	Name    string            `json:"name"`
	File    string            `json:"file"`
	Line    int               `json:"line,omitempty"`
	Pattern string            `json:"pattern,omitempty"`
	Scope   string            `json:"scope"`
	Kind    string            `json:"kind,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toTagJSON(t model.Tag) tagJSON {
	return tagJSON{
		Name:    t.Name,
		File:    t.File,
		Line:    t.Line,
		Pattern: t.Pattern,
		Scope:   t.Scope,
		Kind:    t.Kind,
		Fields:  t.Fields,
	}
}

type resultJSON struct {
	Tags       int      `json:"tags"`
	Scopes     []string `json:"scopes"`
	CacheFiles []string `json:"cache_files"`
	Warnings   int      `json:"warnings"`
	DurationMS int64    `json:"duration_ms"`
}

type locationJSON struct {
	Tag  tagJSON `json:"tag"`
	Line int     `json:"line"`
	Text string  `json:"text"`
}

type contextJSON struct {
	Tag   tagJSON  `json:"tag"`
	Line  int      `json:"line"`
	Start int      `json:"start"`
	Lines []string `json:"lines"`
}

type symbolJSON struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResult(w io.Writer, format, verb string, res service.Result) error {
	switch format {
	case formatJSON:
		return writeJSON(w, resultJSON{
			Tags:       res.Tags,
			Scopes:     nonNil(res.Scopes),
			CacheFiles: nonNil(res.CacheFiles),
			Warnings:   len(res.Warnings),
			DurationMS: res.Duration.Milliseconds(),
		})
	case formatTOON:
		_, err := fmt.Fprintln(w, toon.EncodeSummary(res.Tags, len(res.Warnings), res.Scopes, res.CacheFiles))
		return err
	}
	_, err := fmt.Fprintf(w, "%s %d tags in %d scopes (%d cache files, %d skipped lines) in %s\n",
		verb, res.Tags, len(res.Scopes), len(res.CacheFiles), len(res.Warnings), res.Duration.Round(time.Millisecond))
	return err
}

func writeSymbols(w io.Writer, format string, symbols []toon.Symbol) error {
	switch format {
	case formatJSON:
		out := make([]symbolJSON, 0, len(symbols))
		for _, s := range symbols {
			out = append(out, symbolJSON(s))
		}
		return writeJSON(w, out)
	case formatTOON:
		_, err := fmt.Fprintln(w, toon.EncodeSymbols(symbols))
		return err
	}
	var b strings.Builder
	for _, s := range symbols {
		b.WriteString(s.Name)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeTag(w io.Writer, format string, tag model.Tag) error {
	switch format {
	case formatJSON:
		return writeJSON(w, toTagJSON(tag))
	case formatTOON:
		_, err := fmt.Fprintln(w, toon.EncodeTags([]model.Tag{tag}))
		return err
	}
	locator := tag.Pattern
	if locator == "" {
		locator = fmt.Sprintf("%d", tag.Line)
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tag.Name, tag.Scope, tag.File, locator)
	return err
}

func writeLocation(w io.Writer, format string, tag model.Tag, m locate.Match) error {
	switch format {
	case formatJSON:
		return writeJSON(w, locationJSON{Tag: toTagJSON(tag), Line: m.Line(), Text: m.Text})
	case formatTOON:
		_, err := fmt.Fprintln(w, toon.EncodeLocation(tag, m.Line(), m.Text))
		return err
	}
	_, err := fmt.Fprintf(w, "%s:%d: %s\n", tag.File, m.Line(), m.Text)
	return err
}

func writeContext(w io.Writer, format string, tag model.Tag, c locate.Context) error {
	switch format {
	case formatJSON:
		return writeJSON(w, contextJSON{Tag: toTagJSON(tag), Line: c.Match.Line(), Start: c.Start + 1, Lines: c.Lines})
	case formatTOON:
		_, err := fmt.Fprintln(w, toon.EncodeContext(tag, c.Match.Line(), c.Start+1, c.Lines))
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d\n", tag.File, c.Match.Line())
	for i, line := range c.Lines {
		n := c.Start + i
		marker := " "
		if n == c.Match.Index {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s%6d  %s\n", marker, n+1, line)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
