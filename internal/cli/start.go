package cli

import (
	"fmt"

	"github.com/ferdian/memoir/internal/config"
	"github.com/ferdian/memoir/internal/daemon"
	"github.com/ferdian/memoir/internal/logger"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the memoir daemon",
	Long: `Start the memoir daemon in the foreground.
The daemon serves the capture gateway, processes queued session events into
observations, and answers search queries until it receives SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if pid, err := daemon.ReadPID(pidFilePath()); err == nil && daemon.ProcessAlive(pid) {
		return fmt.Errorf("daemon is already running (pid %d)", pid)
	}

	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err := logger.New(logger.Config{
		Level:     level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, loader, log)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("memoir daemon listening on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	d.Wait()
	return nil
}
