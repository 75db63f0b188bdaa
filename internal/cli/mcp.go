package cli

import (
	"fmt"
	"os"

	"github.com/ferdian/memoir/internal/config"
	"github.com/ferdian/memoir/internal/mcpserver"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve recall tools over MCP stdio",
	Long: `Serve the memoir recall tools (memoir_search, memoir_timeline,
memoir_stats) over MCP stdio transport, for direct registration with the
host assistant. Reads the same database as the daemon.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Stdout belongs to the MCP transport; logs go to stderr.
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if logLevel != "" {
		if level, err := zerolog.ParseLevel(logLevel); err == nil {
			logger = logger.Level(level)
		}
	}

	s, cleanup, err := mcpserver.New(cfg, version, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer cleanup()

	return server.ServeStdio(s)
}
