// Package cli implements the memoir command line interface.
package cli

import (
	"os"
	"path/filepath"

	"github.com/ferdian/memoir/internal/config"
	"github.com/ferdian/memoir/internal/daemon"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memoir",
	Short: "Memoir - persistent memory for AI coding sessions",
	Long: `Memoir captures what happens in your AI coding sessions, distills it
into searchable observations, and answers recall queries about past work.
It runs as a local daemon that the host assistant's hooks report into.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.memoir/memoir.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// pidFilePath resolves the PID file from the effective config.
func pidFilePath() string {
	cfg, err := config.Load(cfgFile)
	if err != nil || cfg.DataDir == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "/tmp/memoir.pid"
		}
		return daemon.PIDFilePath(filepath.Join(home, ".memoir"))
	}
	return daemon.PIDFilePath(cfg.DataDir)
}
