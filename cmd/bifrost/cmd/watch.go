package cmd

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aadithya-v/bifrost/guard"
	"github.com/aadithya-v/bifrost/internal/logging"
)

var (
	watchValidateURL string
	watchSessionURL  string
	watchInterval    time.Duration
	watchTimeout     time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep a client session validated against a bifrost server",
	Long: `Run the session guard headless. Credentials are taken from --session-url,
the URL the issuer redirected to. The guard re-validates on an interval
and whenever the process is resumed (SIGCONT on Unix), and logs lock
changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchValidateURL == "" {
			return errors.New("--validate-url is required")
		}
		log := logging.New("bifrost-guard", logLevel, logFormat)

		var session *url.URL
		if watchSessionURL != "" {
			u, err := url.Parse(watchSessionURL)
			if err != nil {
				return err
			}
			session = u
		}

		checker := guard.NewHTTPChecker(watchValidateURL)
		checker.Client.Timeout = watchTimeout
		g := guard.New(checker, nil, nil, guard.Options{
			Interval: watchInterval,
			Timeout:  watchTimeout,
			Logger:   log,
		})
		if clean := g.Init(session); clean != nil {
			log.WithField("url", clean.String()).Debug("session url without credentials")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sig := make(chan os.Signal, 1)
		if len(resumeSignals) > 0 {
			signal.Notify(sig, resumeSignals...)
			defer signal.Stop(sig)
		}

		resume := make(chan struct{})
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-sig:
					select {
					case resume <- struct{}{}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()

		err := g.Run(ctx, resume)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchValidateURL, "validate-url", "", "Validator endpoint, e.g. https://portal.local/api/validate")
	watchCmd.Flags().StringVar(&watchSessionURL, "session-url", "", "URL carrying token, ts, u and exp (or key)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", guard.DefaultInterval, "Re-validation interval")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", guard.DefaultTimeout, "Timeout for a single validation")
}
