package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/config"
	"github.com/VetrexCZ/pemacheck/internal/driver"
	"github.com/VetrexCZ/pemacheck/internal/history"
	"github.com/VetrexCZ/pemacheck/internal/runner"
)

type runFlags struct {
	json      bool
	noHistory bool
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every storefront check once",
		Long: `Run opens the storefront, accepts the cookie banner, checks the page title,
searches for a product and walks the login form through its validation
states. The first failing check stops the run and leaves a screenshot in
the artifacts directory. A missing cookie banner is reported but does not
fail the run.

The exit status is 1 when any check failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd, opts, flags.json, flags.noHistory)
		},
	}

	cmd.Flags().BoolVar(&flags.json, "json", false, "print the run report as JSON")
	cmd.Flags().BoolVar(&flags.noHistory, "no-history", false, "do not record this run in the history database")
	return cmd
}

// jsonReport adds the error text that Report leaves out of its encoding.
type jsonReport struct {
	*runner.Report
	Error string `json:"error,omitempty"`
}

func runChecks(cmd *cobra.Command, opts *rootOptions, asJSON, noHistory bool) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, opts)

	plan, err := cfg.Plan()
	if err != nil {
		return err
	}
	acquire, err := opts.acquire(cfg, logger)
	if err != nil {
		return err
	}

	var recorder runner.Recorder
	if cfg.Run.HistoryEnabled && !noHistory {
		store, err := history.Open(cfg.Run.HistoryPath)
		if err != nil {
			logger.Warn("history disabled for this run", "path", cfg.Run.HistoryPath, "err", err)
		} else {
			defer store.Close()
			recorder = store
		}
	}

	rep, runErr := runner.New(runner.Options{
		Target:        cfg.Target.URL,
		Steps:         plan.Steps(),
		Acquire:       acquire,
		WaitOptions:   cfg.WaitOptions(),
		ActionTimeout: cfg.ActionTimeout(),
		ArtifactsDir:  cfg.Run.ArtifactsDir,
		History:       recorder,
		Logger:        logger,
	}).Run(cmd.Context())

	if asJSON {
		out := jsonReport{Report: rep}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		if err := writeJSON(opts, out); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	}

	if runErr != nil || !rep.Passed {
		return ErrChecksFailed
	}
	return nil
}

// resolveAcquirer finds the local browser unless a remote endpoint is
// configured.
func resolveAcquirer(cfg config.Config, logger *log.Logger) (browser.Acquirer, error) {
	var execPath string
	if cfg.Browser.RemoteURL == "" {
		dopts := cfg.DriverOptions()
		dopts.Logger = logger
		path, err := driver.Resolve(dopts)
		if err != nil {
			return nil, err
		}
		logger.Debug("using browser executable", "path", path)
		execPath = path
	} else {
		logger.Debug("attaching to remote browser", "url", cfg.Browser.RemoteURL)
	}
	return browser.NewAcquirer(cfg.Session(execPath)), nil
}
