package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rileyhilliard/cw/internal/logger"
	"github.com/rileyhilliard/cw/internal/mockserver"
	"github.com/rileyhilliard/cw/internal/store"
	"github.com/spf13/cobra"
)

var (
	mockSeedFlag      string
	mockAddrFlag      string
	mockTokenFlag     string
	mockSimulateFlag  string
	mockHeartbeatFlag string
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Serve a simulated cluster for local development",
	Long: `Serve the cluster REST API and WebSocket feed from a seed snapshot.
Mutations change the in-memory state and are pushed to connected clients.

Examples:
  cw mock-server
  cw mock-server --seed cluster.json --addr :9000 --simulate 1s
  cw --server http://localhost:9000 watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		simulate, err := ParseDurationFlag("simulate", mockSimulateFlag)
		if err != nil {
			return err
		}
		heartbeat, err := ParseDurationFlag("heartbeat", mockHeartbeatFlag)
		if err != nil {
			return err
		}

		snap := mockserver.DemoSeed()
		if mockSeedFlag != "" {
			if snap, err = mockserver.LoadSeed(mockSeedFlag); err != nil {
				return err
			}
		}

		level := logLevelFlag
		if level == "" {
			level = "info"
		}
		log, err := logger.New(logger.Options{Level: level, Component: "mock-server"})
		if err != nil {
			return err
		}
		defer logger.Sync(log)

		return runMockServer(cmd, snap, log, simulate, heartbeat)
	},
}

func init() {
	f := mockServerCmd.Flags()
	f.StringVar(&mockSeedFlag, "seed", "", "snapshot file to serve (default: built-in demo cluster)")
	f.StringVar(&mockAddrFlag, "addr", "127.0.0.1:8080", "listen address")
	f.StringVar(&mockTokenFlag, "require-token", "", "require this bearer token on /api and /ws")
	f.StringVar(&mockSimulateFlag, "simulate", "2s", "push jittered load every interval (0 to disable)")
	f.StringVar(&mockHeartbeatFlag, "heartbeat", "30s", "socket heartbeat interval")
	rootCmd.AddCommand(mockServerCmd)
}

func runMockServer(cmd *cobra.Command, snap store.Snapshot, log logger.Logger, simulate, heartbeat time.Duration) error {
	if heartbeat == 0 {
		heartbeat = -1
	}
	srv := mockserver.New(snap, mockserver.Options{
		Token:     mockTokenFlag,
		Heartbeat: heartbeat,
		Log:       log,
	})

	ctx := cmd.Context()
	if simulate > 0 {
		go srv.Simulate(ctx, simulate, rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	out := cmd.OutOrStdout()
	return srv.ListenAndServe(ctx, mockAddrFlag, func(addr string) {
		if machineMode {
			_ = WriteJSONSuccess(out, map[string]string{"url": "http://" + addr})
			return
		}
		fmt.Fprintf(out, "Mock cluster listening on http://%s (ws at /ws). Ctrl+C to stop.\n", addr)
	})
}
