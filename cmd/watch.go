package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/invoicedash/cli"
	"github.com/grovetools/invoicedash/pkg/dashboard"
	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/grovetools/invoicedash/pkg/realtime"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// NewWatchCmd returns the live dashboard command.
func NewWatchCmd() *cobra.Command {
	var (
		route string
		once  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the live dashboard",
		Long:  "Connects to the event server, loads the invoice list and redraws the dashboard on every change.",
		Example: `  # Follow the dashboard
  invoicedash watch

  # Print one frame once the invoices are loaded
  invoicedash watch --once --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "watch")
			opts := cli.GetOptions(cmd)

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			decision, err := newGuard(cfg, logger).BeforeEach(ctx, route)
			if err != nil {
				return err
			}
			if err := decision.Err(); err != nil {
				return err
			}

			sess, err := newSession(ctx, cfg, logger)
			if err != nil {
				return err
			}

			redraw := make(chan struct{}, 1)
			poke := func() {
				select {
				case redraw <- struct{}{}:
				default:
				}
			}
			sess.client.OnStateChange(func(realtime.State) { poke() })

			defer sess.client.Disconnect()
			if err := sess.client.Connect(ctx); err != nil {
				logger.WithError(err).Warn("Real-time server unavailable, showing local data")
			}

			out := cmd.OutOrStdout()
			if once {
				select {
				case <-sess.invoices.Loaded():
				case <-ctx.Done():
					return nil
				}
				return writeView(out, sess.dashboard.Capture(), opts.JSONOutput, false)
			}

			invoiceChanges := sess.invoices.Subscribe()
			defer sess.invoices.Unsubscribe(invoiceChanges)
			activityChanges := sess.activities.Subscribe()
			defer sess.activities.Unsubscribe(activityChanges)
			sess.dashboard.OnNotification(func(models.Notification) { poke() })

			inPlace := !opts.JSONOutput && isTerminal(out)
			poke()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-invoiceChanges:
				case <-activityChanges:
				case <-redraw:
				}
				if err := writeView(out, sess.dashboard.Capture(), opts.JSONOutput, inPlace); err != nil {
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&route, "route", "/", "Route to open; guarded routes need a signed-in user")
	cmd.Flags().BoolVar(&once, "once", false, "Render a single frame after the initial load and exit")
	return cmd
}

func writeView(w io.Writer, v dashboard.View, asJSON, inPlace bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(v)
	}
	if inPlace {
		fmt.Fprint(w, "\033[H\033[2J")
	}
	return dashboard.Render(w, v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
