// tagmonster indexes ctags files for symbol completion and navigation.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phobologic/tagmonster/internal/config"
	"github.com/phobologic/tagmonster/internal/service"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runContext(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	return runContext(context.Background(), args, stdout, stderr)
}

func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// app carries the global flags and writers shared by every subcommand.
type app struct {
	stdout, stderr io.Writer

	configPath string
	format     string
	verbose    bool

	logger *slog.Logger
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tagmonster",
		Short: "Index ctags files for completion and navigation",
		Long: `tagmonster loads the tags files listed in a settings file into a symbol
index, writes per-scope completion caches and resolves symbols to their
definition lines.

The settings file is taken from --config, then $` + config.EnvConfig + `, then ./` + config.DefaultFile + `.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetVersionTemplate("tagmonster {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "settings file (default $"+config.EnvConfig+" or ./"+config.DefaultFile+")")
	flags.StringVarP(&a.format, "format", "f", formatText, "output format: text, toon or json")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.rebuildCommand(),
		a.loadCommand(),
		a.listCommand(),
		a.lookupCommand(),
		a.jumpCommand(),
		a.peekCommand(),
		a.watchCommand(),
		a.generateCommand(),
		a.initCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	switch a.format {
	case formatText, formatTOON, formatJSON:
	default:
		return fmt.Errorf("unknown format %q (want text, toon or json)", a.format)
	}
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// loadConfig reads the settings file chosen by the global flags.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	a.logger.Debug("config.load", "path", path)
	return config.LoadConfig(path)
}

// service builds a Service over the configured settings without loading
// anything yet.
func (a *app) service() (*service.Service, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return service.New(cfg, service.WithLogger(a.logger)), nil
}

// loadedService builds a Service and publishes the configured tags files.
func (a *app) loadedService(ctx context.Context) (*service.Service, error) {
	svc, err := a.service()
	if err != nil {
		return nil, err
	}
	if _, err := svc.Load(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.stdout, "tagmonster %s\n", version)
			return err
		},
	}
}
