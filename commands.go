package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/tagmonster/internal/generate"
	"github.com/phobologic/tagmonster/internal/index"
	"github.com/phobologic/tagmonster/internal/lang"
	"github.com/phobologic/tagmonster/internal/service"
	"github.com/phobologic/tagmonster/internal/toon"
	"github.com/phobologic/tagmonster/internal/watch"
)

func (a *app) rebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Run the rebuild command, reload the tags files and rewrite completion caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.RebuildTags(cmd.Context())
			if err != nil {
				return err
			}
			return writeResult(a.stdout, a.format, "rebuilt", res)
		},
	}
}

func (a *app) loadCommand() *cobra.Command {
	var writeCache bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Parse the configured tags files and report what was loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			load := svc.Load
			if writeCache {
				load = svc.Refresh
			}
			res, err := load(cmd.Context())
			if err != nil {
				return err
			}
			return writeResult(a.stdout, a.format, "loaded", res)
		},
	}
	cmd.Flags().BoolVar(&writeCache, "write-cache", false, "also rewrite the completion caches")
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	var prefix, scope string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List symbol names, one per loaded occurrence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.loadedService(cmd.Context())
			if err != nil {
				return err
			}
			return writeSymbols(a.stdout, a.format, listSymbols(svc.Index(), scope, prefix))
		},
	}
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "only names starting with this prefix")
	cmd.Flags().StringVarP(&scope, "scope", "s", "", "only names loaded under this scope")
	return cmd
}

// listSymbols returns names in load order, matching AllSymbolNames. A
// non-empty scope keeps only names loaded under it.
func listSymbols(idx *index.Index, scope, prefix string) []toon.Symbol {
	var out []toon.Symbol
	for _, e := range idx.Entries(prefix) {
		if scope != "" && e.Scope != scope {
			continue
		}
		out = append(out, toon.Symbol{Name: e.Name, Scope: e.Scope})
	}
	return out
}

func (a *app) lookupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup NAME",
		Short: "Print the tag record for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.loadedService(cmd.Context())
			if err != nil {
				return err
			}
			tag, ok := svc.LookupSymbol(args[0])
			if !ok {
				return fmt.Errorf("%q: %w", args[0], service.ErrSymbolNotFound)
			}
			return writeTag(a.stdout, a.format, tag)
		},
	}
}

func (a *app) jumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jump NAME",
		Short: "Resolve a symbol to its definition line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.loadedService(cmd.Context())
			if err != nil {
				return err
			}
			tag, m, err := svc.Jump(args[0])
			if err != nil {
				return err
			}
			return writeLocation(a.stdout, a.format, tag, m)
		},
	}
}

func (a *app) peekCommand() *cobra.Command {
	var radius int
	cmd := &cobra.Command{
		Use:   "peek NAME",
		Short: "Show the lines around a symbol's definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.loadedService(cmd.Context())
			if err != nil {
				return err
			}
			tag, c, err := svc.Peek(args[0], radius)
			if err != nil {
				return err
			}
			return writeContext(a.stdout, a.format, tag, c)
		},
	}
	cmd.Flags().IntVarP(&radius, "radius", "r", -1, "lines of context on each side (default context_lines)")
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	var rebuildFirst bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the index and rewrite completion caches whenever a tags file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			initial := svc.Refresh
			if rebuildFirst {
				initial = svc.RebuildTags
			}
			res, err := initial(ctx)
			if err != nil {
				return err
			}
			if err := writeResult(a.stdout, a.format, "loaded", res); err != nil {
				return err
			}

			var paths []string
			for _, src := range svc.Config().Sources() {
				paths = append(paths, src.Path)
			}
			w, err := watch.New(paths, watch.DefaultDebounce, func(ctx context.Context, changed []string) {
				a.logger.Info("watch.changed", "files", changed)
				res, err := svc.Refresh(ctx)
				if err != nil {
					// The previous index stays published.
					a.logger.Error("watch.reload_failed", "error", err)
					return
				}
				_ = writeResult(a.stdout, a.format, "reloaded", res)
			}, a.logger)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&rebuildFirst, "rebuild", false, "run the rebuild command before watching")
	return cmd
}

func (a *app) generateCommand() *cobra.Command {
	var opts generate.Options
	cmd := &cobra.Command{
		Use:   "generate [root]",
		Short: "Write a ctags file for Go, Python and Ruby sources",
		Long: `generate extracts class, function, method, type and module definitions with
tree-sitter and writes them as an extended-format ctags file. Inside a git
repository the files come from git ls-files; elsewhere .gitignore is honored.

Supported languages: ` + strings.Join(lang.Names(), ", ") + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Root = args[0]
			}
			opts.Version = version
			opts.Logger = a.logger
			res, err := generate.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if a.format == formatJSON {
				return writeJSON(a.stdout, map[string]any{
					"output":  res.Output,
					"files":   res.Files,
					"tags":    res.Tags,
					"skipped": nonNil(res.Skipped),
				})
			}
			_, err = fmt.Fprintf(a.stdout, "wrote %d tags from %d files to %s\n", res.Tags, res.Files, res.Output)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.Output, "output", "o", "", "tags file to write (default <root>/tags)")
	flags.StringSliceVarP(&opts.Languages, "lang", "l", nil, "languages to include (comma separated or repeated)")
	flags.StringSliceVarP(&opts.Exclude, "exclude", "x", nil, "doublestar globs to skip, relative to root")
	flags.BoolVar(&opts.SkipTests, "skip-tests", false, "skip test sources")
	flags.Int64Var(&opts.MaxFileSize, "max-file-size", generate.DefaultMaxFileSize, "skip files larger than this many bytes")
	return cmd
}
