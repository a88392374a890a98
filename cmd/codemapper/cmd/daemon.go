package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maverikod/vvz-code-analyzis-sub010/internal/config"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/daemon"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/facade"
	"github.com/maverikod/vvz-code-analyzis-sub010/internal/mcp"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run and control the analysis server",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the MCP server and vectorization worker in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFacade(func(f *facade.Facade, cfg *config.Config) error {
			return runDaemon(cmd.Context(), f, cfg)
		})
	},
}

// runDaemon owns the worker with a root task so shutdown is deterministic:
// on SIGINT/SIGTERM both tasks are cancelled, then the facade close path
// flushes the vector index and closes the store within the grace period.
func runDaemon(ctx context.Context, f *facade.Facade, cfg *config.Config) error {
	pidPath := pidFilePath(cfg)
	if pid, err := daemon.ReadPidFile(pidPath); err == nil && daemon.ProcessRunning(pid) {
		return fmt.Errorf("daemon already running with pid %d", pid)
	}
	if err := daemon.WritePidFile(pidPath); err != nil {
		return err
	}
	defer func() { _ = daemon.RemovePidFile(pidPath) }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	project, err := f.Project(ctx)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.CodeAnalysis.Worker.Enabled {
		w := f.NewWorker(project.ID)
		group.Go(func() error { return w.Run(groupCtx) })
	}
	group.Go(func() error {
		server := mcp.NewServer(f.Commands(), nil)
		return server.Serve(groupCtx)
	})

	// The facade close in withFacade's defer flushes the vector index and
	// closes the store once both tasks have stopped.
	err = group.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pidPath := pidFilePath(cfg)
		pid, err := daemon.ReadPidFile(pidPath)
		if err != nil {
			return fmt.Errorf("daemon not running (no pid file at %s)", pidPath)
		}
		if !daemon.ProcessRunning(pid) {
			_ = daemon.RemovePidFile(pidPath)
			return fmt.Errorf("daemon not running (stale pid %d)", pid)
		}
		if err := daemon.StopProcess(pid); err != nil {
			return err
		}

		// Wait out the shutdown grace period for a clean exit.
		deadline := time.Now().Add(cfg.ProcessManagement.ShutdownGrace())
		for time.Now().Before(deadline) {
			if !daemon.ProcessRunning(pid) {
				fmt.Printf("daemon stopped (pid %d)\n", pid)
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
		fmt.Printf("sent SIGTERM to pid %d (still shutting down)\n", pid)
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running and its pid",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pidPath := pidFilePath(cfg)
		pid, err := daemon.ReadPidFile(pidPath)
		running := err == nil && daemon.ProcessRunning(pid)

		status := map[string]any{"running": running}
		if running {
			status["pid"] = pid
		}
		if flagJSON {
			return emit(status)
		}
		if running {
			fmt.Printf("daemon running (pid %d)\n", pid)
		} else {
			fmt.Println("daemon not running")
		}
		return nil
	},
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop a running daemon and start a new one",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemonStopCmd.RunE(cmd, nil); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		time.Sleep(500 * time.Millisecond)
		return daemonStartCmd.RunE(cmd, nil)
	},
}

func pidFilePath(cfg *config.Config) string {
	if cfg.ProcessManagement.PidFile != "" {
		return cfg.ProcessManagement.PidFile
	}
	return filepath.Join("data", "codemapper.pid")
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonRestartCmd)
	rootCmd.AddCommand(daemonCmd)
}
