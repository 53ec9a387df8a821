// Package service owns the published symbol index and runs the rebuild
// pipeline. It is the collaborator surface a host talks to.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phobologic/tagmonster/internal/completion"
	"github.com/phobologic/tagmonster/internal/config"
	"github.com/phobologic/tagmonster/internal/index"
	"github.com/phobologic/tagmonster/internal/locate"
	"github.com/phobologic/tagmonster/internal/model"
	"github.com/phobologic/tagmonster/internal/rebuild"
	"github.com/phobologic/tagmonster/internal/tagsfile"
)

// ErrSymbolNotFound is returned by name-based operations when the published
// index has no such tag.
var ErrSymbolNotFound = errors.New("symbol not found")

// Result summarizes a completed load or rebuild.
type Result struct {
	Tags       int
	Scopes     []string
	CacheFiles []string
	Warnings   []tagsfile.Warning
	Duration   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithRunner replaces the shell used to run the rebuild command.
func WithRunner(r rebuild.Runner) Option {
	return func(s *Service) { s.runner = r }
}

// WithLineSource replaces the disk reader used to resolve locations.
func WithLineSource(src locate.LineSource) Option {
	return func(s *Service) { s.lines = src }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service holds the current index. Readers load it atomically and never
// block; loads and rebuilds are serialized and publish a new index only
// after every step has succeeded.
type Service struct {
	cfg    *config.Config
	runner rebuild.Runner
	lines  locate.LineSource
	logger *slog.Logger

	current atomic.Pointer[index.Index]

	rebuildMu sync.Mutex

	subMu       sync.Mutex
	subscribers []func(*index.Index)

	wg sync.WaitGroup
}

// New creates a service with an empty index.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{cfg: cfg, lines: locate.FileSource{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.runner == nil {
		s.runner = &rebuild.Shell{Dir: cfg.Dir(), Logger: s.logger}
	}
	s.current.Store(index.Empty())
	return s
}

// Config returns the settings the service was built with.
func (s *Service) Config() *config.Config { return s.cfg }

// Index returns the currently published index.
func (s *Service) Index() *index.Index { return s.current.Load() }

// OnPublish registers fn to be called with every newly published index.
// Callbacks run on the goroutine that performed the load.
func (s *Service) OnPublish(fn func(*index.Index)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Load parses the configured tags files and publishes the result without
// running the rebuild command or touching the completion cache.
func (s *Service) Load(ctx context.Context) (Result, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	idx, warnings, err := s.build(ctx)
	if err != nil {
		return Result{}, err
	}
	s.publish(idx)
	return s.result(idx, nil, warnings, start), nil
}

// Refresh reloads the tags files and rewrites the completion cache without
// running the rebuild command.
func (s *Service) Refresh(ctx context.Context) (Result, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()
	return s.refresh(ctx, time.Now())
}

// RebuildTags runs the rebuild command, reloads the index, rewrites the
// completion cache and publishes the new index. If any step fails the
// previously published index stays active.
func (s *Service) RebuildTags(ctx context.Context) (Result, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	s.logger.Info("rebuild.start", "command", s.cfg.RebuildTagsCommand)
	if err := s.runner.Run(ctx, s.cfg.RebuildTagsCommand); err != nil {
		return Result{}, err
	}
	return s.refresh(ctx, start)
}

// RebuildAsync runs RebuildTags on a new goroutine and passes its outcome
// to done. Wait blocks until every pending rebuild has reported.
func (s *Service) RebuildAsync(ctx context.Context, done func(Result, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.RebuildTags(ctx)
		if err != nil {
			s.logger.Error("rebuild.failed", "error", err)
		}
		if done != nil {
			done(res, err)
		}
	}()
}

// Wait blocks until all asynchronous rebuilds have finished.
func (s *Service) Wait() { s.wg.Wait() }

// AllSymbolNames lists every tag name in load order.
func (s *Service) AllSymbolNames() []string {
	return s.Index().Names()
}

// LookupSymbol finds the tag for name in the published index.
func (s *Service) LookupSymbol(name string) (model.Tag, bool) {
	return s.Index().Lookup(name)
}

// ResolveLocation finds the definition line of tag.
func (s *Service) ResolveLocation(tag model.Tag) (locate.Match, error) {
	return locate.ResolveLine(s.lines, tag)
}

// ResolveContext returns the lines around the definition of tag. A
// negative radius selects the configured context size.
func (s *Service) ResolveContext(tag model.Tag, radius int) (locate.Context, error) {
	if radius < 0 {
		radius = s.cfg.ContextLines
	}
	return locate.ResolveContext(s.lines, tag, radius)
}

// Jump looks up name and resolves its definition line.
func (s *Service) Jump(name string) (model.Tag, locate.Match, error) {
	tag, ok := s.LookupSymbol(name)
	if !ok {
		return model.Tag{}, locate.Match{}, fmt.Errorf("%q: %w", name, ErrSymbolNotFound)
	}
	m, err := s.ResolveLocation(tag)
	return tag, m, err
}

// Peek looks up name and resolves the context block around it.
func (s *Service) Peek(name string, radius int) (model.Tag, locate.Context, error) {
	tag, ok := s.LookupSymbol(name)
	if !ok {
		return model.Tag{}, locate.Context{}, fmt.Errorf("%q: %w", name, ErrSymbolNotFound)
	}
	c, err := s.ResolveContext(tag, radius)
	return tag, c, err
}

// refresh must be called with rebuildMu held.
func (s *Service) refresh(ctx context.Context, start time.Time) (Result, error) {
	idx, warnings, err := s.build(ctx)
	if err != nil {
		return Result{}, err
	}
	files, err := completion.Write(idx, s.cfg.CacheDir())
	if err != nil {
		return Result{}, fmt.Errorf("writing completion cache: %w", err)
	}
	s.publish(idx)
	res := s.result(idx, files, warnings, start)
	s.logger.Info("rebuild.done", "tags", res.Tags, "scopes", len(res.Scopes), "cache_files", len(files), "elapsed", res.Duration)
	return res, nil
}

func (s *Service) build(ctx context.Context) (*index.Index, []tagsfile.Warning, error) {
	ignore, err := s.cfg.Ignore()
	if err != nil {
		return nil, nil, err
	}
	idx, warnings, err := index.Load(ctx, s.cfg.Sources(), ignore)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		s.logger.Warn("tags.skipped_line", "file", w.Path, "line", w.Line, "reason", w.Reason)
	}
	return idx, warnings, nil
}

func (s *Service) publish(idx *index.Index) {
	s.current.Store(idx)

	s.subMu.Lock()
	subs := make([]func(*index.Index), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(idx)
	}
}

func (s *Service) result(idx *index.Index, files []string, warnings []tagsfile.Warning, start time.Time) Result {
	return Result{
		Tags:       idx.Len(),
		Scopes:     idx.Scopes(),
		CacheFiles: files,
		Warnings:   warnings,
		Duration:   time.Since(start),
	}
}
