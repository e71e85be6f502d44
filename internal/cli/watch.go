package cli

import (
	"context"
	"io"
	"os"

	"github.com/rileyhilliard/cw/internal/metrics"
	"github.com/rileyhilliard/cw/internal/monitor"
	"github.com/rileyhilliard/cw/internal/prefs"
	"github.com/rileyhilliard/cw/internal/session"
	"github.com/rileyhilliard/cw/internal/ui"
	"github.com/spf13/cobra"
)

var watchPlainFlag bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of nodes, models, metrics and alerts",
	Long: `Follow the cluster live. The socket feed keeps the view current and REST
polling fills the gaps.

Keys: q quit, r refresh, R reconnect, d dismiss alert, ? help.

When stdout isn't a terminal (or with --plain) a summary line is printed
on every change instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		plain := watchPlainFlag || machineMode || !isTerminal(out)
		return watchCommand(cmd.Context(), out, plain)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchPlainFlag, "plain", false, "print summary lines instead of the dashboard")
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(ctx context.Context, out io.Writer, plain bool) error {
	if !plain {
		applyTheme()
	}

	sess, cleanup, err := openSession(!plain)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := sess.Config.Metrics.Listen; addr != "" {
		if err := serveMetrics(ctx, addr, sess); err != nil {
			return err
		}
	}

	if err := sess.Start(ctx); err != nil {
		return err
	}

	if plain {
		return monitor.RunPlain(ctx, out, sess.Store)
	}
	return monitor.Run(ctx, sess.Store, sess.Alerts, sess)
}

// serveMetrics exposes the session's registry until ctx ends.
func serveMetrics(ctx context.Context, addr string, sess *session.Session) error {
	srv, err := metrics.NewServer(addr, sess.Metrics, sess.Log)
	if err != nil {
		return err
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			sess.Log.Warn("metrics server: %s", err)
		}
	}()
	return nil
}

// applyTheme reads the theme preference. A broken prefs file falls back
// to terminal detection rather than blocking the dashboard.
func applyTheme() {
	p, err := prefs.Load(prefsPath())
	if err != nil {
		p = prefs.Default()
	}
	ui.ApplyTheme(p.Theme)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && stdoutIsTerminal(f.Fd())
}
