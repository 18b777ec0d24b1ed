// Package cli wires configuration, logging and the run orchestrator into the
// pemacheck command tree.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/config"
	"github.com/VetrexCZ/pemacheck/internal/logging"
)

// ErrChecksFailed is returned by run when at least one check failed. The
// failure itself has already been logged.
var ErrChecksFailed = errors.New("verification failed")

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	headless   bool

	stdout  io.Writer
	stderr  io.Writer
	workDir string
	getenv  func(string) string
	acquire func(cfg config.Config, logger *log.Logger) (browser.Acquirer, error)
}

// NewRootCmd builds the command tree. Output goes to stdout and logs to
// stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return newRootCmd(&rootOptions{
		stdout:  stdout,
		stderr:  stderr,
		acquire: resolveAcquirer,
	})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "pemacheck",
		Short: "Verify the autodily-pema.cz storefront in a real browser",
		Long: `pemacheck drives Chrome over the DevTools Protocol and checks that the
storefront's key flows still work: page load, cookie consent, title,
search and the login form's validation.

Running pemacheck without a subcommand is the same as "pemacheck run".

Examples:
  pemacheck                          # Run every check with ./pemacheck.toml
  pemacheck run --headless --json    # Headless run, JSON report on stdout
  pemacheck history --limit 5        # Show the last five runs
  pemacheck config init              # Write the default configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd, opts, false, false)
		},
	}
	root.SetOut(opts.stdout)
	root.SetErr(opts.stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default ./"+config.DefaultFileName+")")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: auto, text, logfmt or json")
	pf.BoolVar(&opts.headless, "headless", false, "run the browser without a window")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newProbeCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// loadConfig applies the persistent flags that were set on top of the
// layered configuration.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		overrides["log.level"] = opts.logLevel
	}
	if flags.Changed("log-format") {
		overrides["log.format"] = opts.logFormat
	}
	if flags.Changed("headless") {
		overrides["browser.headless"] = opts.headless
	}
	return config.Load(config.LoadOptions{
		WorkDir:       opts.workDir,
		ConfigPath:    opts.configPath,
		FlagOverrides: overrides,
		Getenv:        opts.getenv,
	})
}

func newLogger(cfg config.Config, opts *rootOptions) *log.Logger {
	lo := logging.DefaultOptions()
	lo.Level = cfg.Log.Level
	lo.Format = cfg.Log.Format
	lo.Output = opts.stderr
	return logging.New(lo)
}
