// Package generate writes a ctags file for a source tree by extracting
// definitions with tree-sitter.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/tagmonster/internal/discover"
	"github.com/phobologic/tagmonster/internal/lang"
	"github.com/phobologic/tagmonster/internal/model"
	"github.com/phobologic/tagmonster/internal/parse"
	"github.com/phobologic/tagmonster/internal/tagsfile"
)

// DefaultMaxFileSize bounds the size of a source file the generator will read.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// ErrNoFiles is returned when discovery finds nothing to index.
var ErrNoFiles = errors.New("no parseable files found")

// Options controls a generator run.
type Options struct {
	Root        string   // Source tree; defaults to "."
	Output      string   // Tags file; defaults to Root/tags
	Languages   []string // Empty means every registered language
	Exclude     []string // doublestar globs relative to Root
	SkipTests   bool
	MaxFileSize int64 // 0 means DefaultMaxFileSize
	Version     string
	Logger      *slog.Logger
}

// Result summarizes a generator run.
type Result struct {
	Output   string
	Files    int
	Tags     int
	Skipped  []string // Files not indexed, relative to Root
	Duration time.Duration
}

// Run discovers, parses and writes. The output file is replaced atomically.
func Run(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return Result{}, fmt.Errorf("resolving root: %w", err)
	}
	output := opts.Output
	if output == "" {
		output = filepath.Join(root, "tags")
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return Result{}, fmt.Errorf("resolving output: %w", err)
	}

	for _, name := range opts.Languages {
		if _, ok := lang.Languages[name]; !ok {
			return Result{}, fmt.Errorf("unsupported language %q", name)
		}
	}

	files, err := discover.Files(ctx, root, discover.Options{
		Languages: opts.Languages,
		Exclude:   opts.Exclude,
		SkipTests: opts.SkipTests,
	})
	if err != nil {
		return Result{}, fmt.Errorf("discovering files: %w", err)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	files, skipped := filterBySize(root, files, maxSize, logger)
	if len(files) == 0 {
		return Result{}, ErrNoFiles
	}

	defs, failed := parseFilesConcurrent(ctx, root, files, logger)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	skipped = append(skipped, failed...)

	tags := make([]model.Tag, 0, len(defs))
	outDir := filepath.Dir(output)
	for _, d := range defs {
		tags = append(tags, toTag(outDir, root, d))
	}

	header := model.Header{
		Format:         2,
		ProgramName:    "tagmonster",
		ProgramURL:     "https://github.com/phobologic/tagmonster",
		ProgramVersion: opts.Version,
	}
	if err := writeFile(output, header, tags); err != nil {
		return Result{}, err
	}

	res := Result{
		Output:   output,
		Files:    len(files) - len(failed),
		Tags:     len(tags),
		Skipped:  skipped,
		Duration: time.Since(start),
	}
	logger.Info("generate.done", "output", output, "files", res.Files, "tags", res.Tags, "skipped", len(skipped), "duration", res.Duration)
	return res, nil
}

// toTag converts a definition found in root into a tag whose file path is
// relative to the tags file directory.
func toTag(outDir, root string, d model.Definition) model.Tag {
	abs := filepath.Join(root, filepath.FromSlash(d.File))
	file := abs
	if rel, err := filepath.Rel(outDir, abs); err == nil {
		file = rel
	}
	t := model.Tag{
		Name:    d.Name,
		File:    filepath.ToSlash(file),
		Pattern: tagsfile.SearchPattern(d.Text),
		Line:    d.Line,
		Kind:    d.SymbolKind.Letter(),
	}
	if d.Parent != "" || d.Signature != "" {
		t.Fields = make(map[string]string, 2)
		if d.Parent != "" {
			t.Fields["class"] = d.Parent
		}
		if d.Signature != "" {
			t.Fields["signature"] = d.Signature
		}
	}
	return t
}

func writeFile(path string, h model.Header, tags []model.Tag) error {
	var buf bytes.Buffer
	if err := tagsfile.Write(&buf, h, tags); err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("writing tags: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tags-*")
	if err != nil {
		return fmt.Errorf("writing tags: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing tags: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing tags: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing tags: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing tags: %w", err)
	}
	return nil
}

func filterBySize(root string, files []discover.FileEntry, maxSize int64, logger *slog.Logger) (kept []discover.FileEntry, skipped []string) {
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > maxSize {
			logger.Warn("generate.skipped_file", "file", f.Path, "reason", "too large", "size", fi.Size(), "limit", maxSize)
			skipped = append(skipped, f.Path)
			continue
		}
		kept = append(kept, f)
	}
	return kept, skipped
}

type parserPair struct {
	lang   *lang.Language
	parser *sitter.Parser
	query  *sitter.Query
}

// parseFilesConcurrent extracts definitions with one parser per worker and
// language. Results keep discovery order.
func parseFilesConcurrent(ctx context.Context, root string, files []discover.FileEntry, logger *slog.Logger) ([]model.Definition, []string) {
	type result struct {
		index int
		defs  []model.Definition
		ok    bool
	}

	numWorkers := min(runtime.GOMAXPROCS(0), len(files))

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parser
			parsers := make(map[string]*parserPair)
			defer func() {
				for _, pp := range parsers {
					pp.parser.Close()
				}
			}()

			for idx := range work {
				if ctx.Err() != nil {
					results <- result{index: idx}
					continue
				}
				f := files[idx]
				pp, ok := parsers[f.Language]
				if !ok {
					l := lang.Languages[f.Language]
					q, err := l.GetTagQuery()
					if err != nil {
						logger.Warn("generate.query_failed", "language", f.Language, "error", err)
						results <- result{index: idx}
						continue
					}
					pp = &parserPair{lang: l, parser: l.NewParser(), query: q}
					parsers[f.Language] = pp
				}

				source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
				if err != nil {
					logger.Warn("generate.skipped_file", "file", f.Path, "error", err)
					results <- result{index: idx}
					continue
				}

				results <- result{
					index: idx,
					defs:  parse.ExtractDefinitions(pp.lang, pp.parser, pp.query, source, f.Path),
					ok:    true,
				}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([][]model.Definition, len(files))
	valid := make([]bool, len(files))
	for r := range results {
		indexed[r.index] = r.defs
		valid[r.index] = r.ok
	}

	var defs []model.Definition
	var failed []string
	for i, v := range valid {
		if !v {
			failed = append(failed, files[i].Path)
			continue
		}
		defs = append(defs, indexed[i]...)
	}
	return defs, failed
}
