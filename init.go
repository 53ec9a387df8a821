package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/tagmonster/internal/config"
	"github.com/phobologic/tagmonster/internal/discover"
	"github.com/phobologic/tagmonster/internal/lang"
)

// tagsDir holds the generated per-language tags files, relative to the
// settings file.
const tagsDir = ".tags"

func (a *app) initCommand() *cobra.Command {
	var dryRun, force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter settings file",
		Long: `init writes a settings file with one tags file per language found next to
it, and a rebuild command that regenerates them with "tagmonster generate".
When no supported sources are found it falls back to a single ctags file.

path defaults to ./` + config.DefaultFile + `. An existing file is left alone
unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFile
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", path, err)
			}

			langs := detectLanguages(cmd.Context(), filepath.Dir(abs))
			cfg := starterConfig(langs)

			if dryRun {
				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(data)
				return err
			}

			if _, err := os.Stat(abs); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(cfg, abs); err != nil {
				return err
			}
			a.logger.Info("init.done", "path", abs, "languages", langs)
			_, err = fmt.Fprintf(a.stderr, "wrote tagmonster settings to %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the settings instead of writing them")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing settings file")
	return cmd
}

// detectLanguages returns the supported languages with at least one source
// file under root, in registry order.
func detectLanguages(ctx context.Context, root string) []string {
	files, err := discover.Files(ctx, root, discover.Options{})
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, f := range files {
		seen[f.Language] = true
	}
	var langs []string
	for _, name := range lang.Names() {
		if seen[name] {
			langs = append(langs, name)
		}
	}
	return langs
}

// starterConfig builds the settings for the given languages. It is a pure
// function for easy testing.
func starterConfig(langs []string) *config.Config {
	cfg := config.GetDefaultConfig()
	if len(langs) == 0 {
		cfg.TagFiles = []config.TagFile{{Scope: "source", FilePath: "tags"}}
		cfg.RebuildTagsCommand = "ctags -R -f tags ."
		return cfg
	}

	var commands []string
	for _, name := range langs {
		out := tagsDir + "/" + name + ".tags"
		cfg.TagFiles = append(cfg.TagFiles, config.TagFile{
			Scope:    lang.Languages[name].Scope,
			FilePath: out,
		})
		commands = append(commands, fmt.Sprintf("tagmonster generate --lang %s --output %s", name, out))
	}
	cfg.RebuildTagsCommand = strings.Join(commands, " && ")
	return cfg
}
