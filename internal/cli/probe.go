package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/wait"
)

type probeFlags struct {
	kind    string
	text    string
	url     string
	timeout time.Duration
}

func newProbeCmd(opts *rootOptions) *cobra.Command {
	var flags probeFlags

	cmd := &cobra.Command{
		Use:   "probe <locator>",
		Short: "Wait for one element and print its state",
		Long: `Probe opens the target page and waits for a single element, which is
handy when a storefront change breaks a locator. Locators are written as
strategy:value with strategy one of id, name, css or xpath.

Examples:
  pemacheck probe name:search
  pemacheck probe "css:h2.heading" --kind text --text Oleje
  pemacheck probe "xpath://*[@id='cookieConsent__buttonGrantAll']" --kind clickable`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := browser.ParseLocator(args[0])
			if err != nil {
				return err
			}
			kind, err := wait.ParseKind(flags.kind)
			if err != nil {
				return err
			}
			if kind == wait.TextContains && flags.text == "" {
				return fmt.Errorf("--text is required with --kind %s", kind)
			}

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, opts)
			acquire, err := opts.acquire(cfg, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			session, err := acquire(ctx)
			if err != nil {
				return err
			}
			defer session.Release()

			url := flags.url
			if url == "" {
				url = cfg.Target.URL
			}
			if err := session.Navigate(ctx, url); err != nil {
				return err
			}

			cond := wait.Condition{Locator: loc, Kind: kind, Text: flags.text}
			waits := wait.New(session, append(cfg.WaitOptions(), wait.WithLogger(logger))...)
			h, err := waits.Await(ctx, cond, flags.timeout)
			if err != nil {
				return err
			}
			return writeJSON(opts, h.State)
		},
	}

	cmd.Flags().StringVar(&flags.kind, "kind", "visible", "condition: present, visible, clickable or text-contains")
	cmd.Flags().StringVar(&flags.text, "text", "", "substring for --kind text-contains")
	cmd.Flags().StringVar(&flags.url, "url", "", "page to open (default target.url)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "wait bound (default wait.timeout_ms)")
	return cmd
}
