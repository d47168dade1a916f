package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/invoicedash/cli"
	"github.com/grovetools/invoicedash/config"
	"github.com/grovetools/invoicedash/internal/mockserver"
	"github.com/grovetools/invoicedash/internal/pidfile"
	"github.com/grovetools/invoicedash/logging"
	"github.com/grovetools/invoicedash/pkg/store"
	"github.com/spf13/cobra"
)

// NewMockServerCmd returns the mock-server command with subcommands.
func NewMockServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run the development event server",
		Long:  "A WebSocket server that plays the dashboard backend: it echoes client events and emits random invoice and activity events.",
	}

	cmd.AddCommand(newMockServerStartCmd())
	cmd.AddCommand(newMockServerStopCmd())
	cmd.AddCommand(newMockServerStatusCmd())

	return cmd
}

func newMockServerStartCmd() *cobra.Command {
	var (
		addr      string
		watch     bool
		accessLog bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server in the foreground",
		Example: `  # Serve on the configured address
  invoicedash mock-server start

  # Serve elsewhere without reloading on config changes
  invoicedash mock-server start --addr :4001 --watch=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "mock-server")

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			if err := pidfile.Acquire("mock server", cfg.Server.PidFile); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(cfg.Server.PidFile); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			ids, err := store.NewSnowflakeIDs(int64(cfg.Store.IDNode+1) % 1024)
			if err != nil {
				return err
			}
			serverOpts := []mockserver.Option{
				mockserver.WithLogger(logger),
				mockserver.WithIDGenerator(ids),
			}
			if accessLog {
				requests := cli.NewStreamLogger(cmd.OutOrStdout(), cli.GetOptions(cmd).JSONOutput)
				serverOpts = append(serverOpts, mockserver.WithAccessLog(requests))
			}
			srv := mockserver.New(cfg.Server, serverOpts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch {
				if path := configPath(cmd); path != "" {
					go func() {
						if err := srv.WatchConfig(ctx, path); err != nil {
							logger.WithError(err).Warn("Config watcher stopped")
						}
					}()
				}
			}

			served := make(chan error, 1)
			go func() { served <- srv.ListenAndServe() }()

			logger.WithField("pid", os.Getpid()).Info("Starting mock server")

			select {
			case err := <-served:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
				logger.Info("Received stop signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("Server shutdown error: %v", err)
			}
			return <-served
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overriding server.addr")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload generator settings when the config file changes")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "Log every HTTP request to stdout")
	return cmd
}

func newMockServerStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			running, _, err := pidfile.IsRunning(cfg.Server.PidFile)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if !running {
				pretty.InfoPretty("Mock server is not running")
				return nil
			}

			pid, err := pidfile.Signal(cfg.Server.PidFile, syscall.SIGTERM)
			if err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}
			pretty.Success(fmt.Sprintf("Sent SIGTERM to process %d", pid))
			return nil
		},
	}
}

// serverStatus is the status output.
type serverStatus struct {
	Running bool                      `json:"running"`
	PID     int                       `json:"pid,omitempty"`
	Addr    string                    `json:"addr"`
	Config  *mockserver.RunningConfig `json:"config,omitempty"`
}

func newMockServerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			running, pid, err := pidfile.IsRunning(cfg.Server.PidFile)
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			status := serverStatus{Running: running, PID: pid, Addr: cfg.Server.Addr}
			var fetchErr error
			if running {
				status.Config, fetchErr = fetchRunningConfig(cmd.Context(), cfg.Server.Addr)
			}

			if cli.GetOptions(cmd).JSONOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(status); err != nil {
					return err
				}
			} else {
				pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
				if running {
					pretty.Success(fmt.Sprintf("Running (PID: %d)", pid))
					pretty.Field("Address", cfg.Server.Addr)
					if status.Config != nil {
						pretty.Field("Clients", status.Config.Clients)
						pretty.Field("Started", status.Config.StartedAt.Format(time.RFC3339))
					} else {
						pretty.ErrorPretty("Config endpoint unreachable", fetchErr)
					}
				} else {
					pretty.WarnPretty("Stopped")
				}
			}

			if !running {
				os.Exit(1) // non-zero for scripts
			}
			return nil
		},
	}
}

// fetchRunningConfig asks the running server for its settings.
func fetchRunningConfig(ctx context.Context, addr string) (*mockserver.RunningConfig, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	url := fmt.Sprintf("http://%s/api/config", net.JoinHostPort(host, port))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var running mockserver.RunningConfig
	if err := json.NewDecoder(resp.Body).Decode(&running); err != nil {
		return nil, fmt.Errorf("invalid config response: %w", err)
	}
	return &running, nil
}

// configPath is the file --config names, or the one the search finds.
func configPath(cmd *cobra.Command) string {
	if path := cli.GetOptions(cmd).ConfigFile; path != "" {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	path, err := config.FindConfigFile(cwd)
	if err != nil {
		return ""
	}
	return path
}
