package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/cw/internal/config"
	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/session"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configFlag      string
	serverFlag      string
	tokenFlag       string
	logLevelFlag    string
	metricsAddrFlag string
	prefsFileFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "cw",
	Short: "Live view of a model-serving cluster",
	Long: `cw keeps a live view-model of a distributed model-serving cluster.

It follows the cluster over its WebSocket feed, falls back to REST polling,
and can drive the cluster's model, node and user actions.

Examples:
  cw watch
  cw snapshot --json
  cw model start llama2:7b
  cw mock-server --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cobra only hands the root context to subcommands that have none, so a
	// second in-process run would otherwise inherit the first run's context.
	setContext(rootCmd, ctx)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if machineMode {
			_ = WriteJSONFromError(stdout, err)
		} else {
			fmt.Fprintln(stderr, err.Error())
		}
		return 1
	}
	return 0
}

func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContext(sub, ctx)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "config file (default: .cw.yaml, then ~/.config/cw/config.yaml)")
	pf.StringVar(&serverFlag, "server", "", "cluster base URL, overrides server.base_url")
	pf.StringVar(&tokenFlag, "token", "", "bearer token, overrides server.token")
	pf.StringVar(&logLevelFlag, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&metricsAddrFlag, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9108")
	pf.StringVar(&prefsFileFlag, "prefs-file", "", "preferences file (default ~/.config/cw/prefs.yaml)")
	pf.BoolVar(&machineMode, "json", false, "machine-readable JSON output")
	_ = pf.MarkHidden("prefs-file")
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(configFlag)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if serverFlag != "" {
		cfg.Server.BaseURL = serverFlag
	}
	if tokenFlag != "" {
		cfg.Server.Token = tokenFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if metricsAddrFlag != "" {
		cfg.Metrics.Listen = metricsAddrFlag
	}
}

// newLogger builds the process logger. quiet drops output that would land
// on stderr, which the full-screen dashboard owns; a configured log file
// still receives everything.
func newLogger(cfg config.LoggingConfig, quiet bool) (logger.Logger, error) {
	if cfg.File == "" && quiet {
		return logger.Noop(), nil
	}
	opts := logger.Options{Level: cfg.Level, Format: cfg.Format, Component: "cw"}
	if cfg.File != "" {
		opts.OutputPaths = []string{cfg.File}
	}
	return logger.New(opts)
}

// openSession loads config and builds an unstarted session. The returned
// cleanup stops the session and flushes the logger.
func openSession(quiet bool) (*session.Session, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Logging, quiet)
	if err != nil {
		return nil, nil, err
	}
	sess, err := session.New(cfg, session.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return sess, func() {
		sess.Stop()
		logger.Sync(log)
	}, nil
}
