package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/roster/config"
	"github.com/grovetools/roster/internal/daemon/engine"
	"github.com/grovetools/roster/internal/daemon/pidfile"
	"github.com/grovetools/roster/internal/daemon/server"
	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/paths"
)

// NewDaemonCmd returns the rosterd daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the roster daemon",
		Long:  "The daemon tracks sessions and serves the registry over a unix socket.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the roster daemon in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("rosterd")

			cfg, err := config.LoadDefault()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create roster directories: %w", err)
			}

			pidPath := paths.PidFilePath()
			sockPath := paths.SocketPath()

			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			eng, err := engine.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to assemble daemon: %w", err)
			}

			srv := server.New(logger)
			srv.SetRegistry(eng.Registry())
			srv.SetTerminals(eng.Provider(), eng.Linker())
			srv.SetRunningConfig(eng.RunningConfig())

			ctx, cancel := context.WithCancel(context.Background())
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}

				// Flush persistence before the process goes away.
				eng.Close()
				_ = pidfile.Release(pidPath)
				os.Exit(0)
			}()

			go eng.Start(ctx)

			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			if err := srv.ListenAndServe(sockPath); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Printf("Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			fmt.Printf("Daemon is running (pid %d)\n", pid)

			client, err := newClient()
			if err != nil {
				return nil
			}
			defer client.Close()

			if !client.IsRunning() {
				fmt.Println("Warning: daemon process exists but the API socket does not answer")
				return nil
			}
			if cfg, err := client.GetConfig(cmd.Context()); err == nil {
				if sock, ok := cfg["event_socket"].(string); ok {
					fmt.Printf("Event socket: %s\n", sock)
				}
			}
			return nil
		},
	}
}
