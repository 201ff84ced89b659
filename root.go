package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/chemsync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagEnvFile    string
	flagOutput     string
	flagVerbose    bool
	flagQuiet      bool
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// CLIFlags is a snapshot of the persistent flags for one invocation.
type CLIFlags struct {
	ConfigPath string
	EnvFile    string
	Output     string
	Verbose    bool
	Quiet      bool
}

// CLIContext carries everything a subcommand needs after the root pre-run:
// flags, environment overrides, the resolved config and the logger.
type CLIContext struct {
	Flags  CLIFlags
	Env    config.EnvOverrides
	CLI    config.CLIOverrides
	Cfg    *config.Resolved
	Logger *slog.Logger
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by the root pre-run. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		panic("chemsync: command run without CLIContext")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chemsync",
		Short: "Reconcile ChemInventory with datalab",
		Long: `Keep a ChemInventory chemical inventory and a datalab registry of
starting materials in agreement. Containers are imported into datalab,
disposals are propagated, and items created in datalab are pushed back.`,
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "file of environment variables to load (default ./.env)")
	cmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", outputText, "output format: text, json or yaml")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores a CLIContext on the command's context.
func loadConfig(cmd *cobra.Command) error {
	flags := CLIFlags{
		ConfigPath: flagConfigPath,
		EnvFile:    flagEnvFile,
		Output:     flagOutput,
		Verbose:    flagVerbose,
		Quiet:      flagQuiet,
	}

	if err := validateOutput(flags.Output); err != nil {
		return err
	}

	if err := config.LoadDotEnv(flags.EnvFile); err != nil {
		return err
	}

	env := config.ReadEnvOverrides()
	cli := cliOverrides(cmd, flags.ConfigPath)

	resolved, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{
		Flags:  flags,
		Env:    env,
		CLI:    cli,
		Cfg:    resolved,
		Logger: buildLogger(resolved.Config, flags, os.Stderr),
	}

	cc.Logger.Debug("config resolved",
		slog.String("config_path", resolved.ConfigPath),
		slog.String("registry_url", resolved.Registry.APIURL),
	)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	cmd.SetContext(context.WithValue(parent, cliContextKey{}, cc))

	return nil
}

// cliOverrides collects the sync flags the user explicitly set. Flags left
// at their defaults do not override the config file.
func cliOverrides(cmd *cobra.Command, configPath string) config.CLIOverrides {
	cli := config.CLIOverrides{ConfigPath: configPath}
	cli.DryRun = changedBool(cmd, "dry-run")
	cli.SkipFiles = changedBool(cmd, "skip-files")
	cli.ImportOnly = changedBool(cmd, "import-only")

	return cli
}

func changedBool(cmd *cobra.Command, name string) *bool {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}

	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return nil
	}

	return &v
}

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("--output: must be one of text, json, yaml; got %q", format)
	}
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. Format "auto" picks
// text for a terminal and JSON otherwise.
func buildLogger(cfg *config.Config, flags CLIFlags, w *os.File) *slog.Logger {
	level := slog.LevelInfo
	format := "auto"

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = cfg.Logging.LogFormat
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "auto" {
		format = "json"
		if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
			format = "text"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
