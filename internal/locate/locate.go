// Package locate finds the definition line of a tag in its source file.
package locate

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/phobologic/tagmonster/internal/model"
	"github.com/phobologic/tagmonster/internal/tagsfile"
)

// DefaultRadius is the number of context lines shown on each side of a match.
const DefaultRadius = 5

var (
	// ErrPatternNotFound means the tag's locator matched no line; the tags
	// are older than the file.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrNoContext means the match sits on the last line of the file and no
	// context block is produced.
	ErrNoContext = errors.New("no context available")
)

// LineSource provides the lines of a file. Hosts with unsaved buffers can
// supply their own.
type LineSource interface {
	Lines(path string) ([]string, error)
}

// FileSource reads lines from disk.
type FileSource struct{}

// Lines reads path and splits it on newlines, dropping carriage returns.
func (FileSource) Lines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits text on \n and strips a trailing \r from each line.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Match is a resolved definition line.
type Match struct {
	Index int // 0-based line index
	Text  string
}

// Line is the 1-based line number of the match.
func (m Match) Line() int { return m.Index + 1 }

// Context is a block of lines around a match.
type Context struct {
	Match Match
	Start int // 0-based index of the first line in Lines
	Lines []string
}

// End is the 0-based index of the last line in the block.
func (c Context) End() int { return c.Start + len(c.Lines) - 1 }

// Text joins the block with newlines.
func (c Context) Text() string { return strings.Join(c.Lines, "\n") }

// ResolveLine finds the line tag points at. Pattern tags are searched from
// the top of the file and the first line starting with the pattern text
// wins. Tags without a pattern fall back to their line number.
func ResolveLine(src LineSource, tag model.Tag) (Match, error) {
	lines, err := src.Lines(tag.File)
	if err != nil {
		return Match{}, fmt.Errorf("reading %s: %w", tag.File, err)
	}
	i, err := find(lines, tag)
	if err != nil {
		return Match{}, err
	}
	return Match{Index: i, Text: lines[i]}, nil
}

// ResolveContext returns up to radius lines on each side of the match.
func ResolveContext(src LineSource, tag model.Tag, radius int) (Context, error) {
	lines, err := src.Lines(tag.File)
	if err != nil {
		return Context{}, fmt.Errorf("reading %s: %w", tag.File, err)
	}
	i, err := find(lines, tag)
	if err != nil {
		return Context{}, err
	}
	start, end, ok := Window(i, len(lines), radius)
	if !ok {
		return Context{}, ErrNoContext
	}
	block := make([]string, end-start+1)
	copy(block, lines[start:end+1])
	return Context{
		Match: Match{Index: i, Text: lines[i]},
		Start: start,
		Lines: block,
	}, nil
}

// Window computes the inclusive line range around index i in a file of
// length lines. A match on the final line has no usable context.
func Window(i, length, radius int) (start, end int, ok bool) {
	if i < 0 || i >= length || i == length-1 {
		return 0, 0, false
	}
	if radius < 0 {
		radius = 0
	}
	before := min(radius, i)
	after := min(radius, length-1-i)
	return i - before, i + after, true
}

func find(lines []string, tag model.Tag) (int, error) {
	if !tag.HasPattern() {
		if tag.Line >= 1 && tag.Line <= len(lines) {
			return tag.Line - 1, nil
		}
		return 0, fmt.Errorf("%s: line %d: %w", tag.Name, tag.Line, ErrPatternNotFound)
	}
	text := tagsfile.PatternText(tag.Pattern)
	for i, line := range lines {
		if strings.HasPrefix(line, text) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", tag.Name, ErrPatternNotFound)
}
