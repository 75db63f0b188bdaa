package cli

import (
	"fmt"

	"github.com/ferdian/memoir/internal/config"
	"github.com/spf13/cobra"
)

var (
	configurePort          int
	configureSecret        string
	configureVectorIndex   string
	configureEmbeddingKey  string
	configureSummarizer    string
	configureSummarizerKey string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write daemon configuration",
	Long: `Write the memoir configuration file.
Starts from the current config (or defaults), applies the given flags,
validates the result and saves it. Run with no flags to materialize the
default config file.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().IntVar(&configurePort, "port", 0, "gateway port")
	configureCmd.Flags().StringVar(&configureSecret, "secret", "", "gateway shared secret")
	configureCmd.Flags().StringVar(&configureVectorIndex, "vector-index", "", "vector index backend (sqlitevec, chromem, disabled)")
	configureCmd.Flags().StringVar(&configureEmbeddingKey, "embedding-key", "", "embedding provider API key")
	configureCmd.Flags().StringVar(&configureSummarizer, "summarizer", "", "summarizer provider (heuristic, anthropic, openai)")
	configureCmd.Flags().StringVar(&configureSummarizerKey, "summarizer-key", "", "summarizer provider API key")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if configurePort != 0 {
		cfg.Gateway.Port = configurePort
	}
	if cmd.Flags().Changed("secret") {
		cfg.Gateway.SharedSecret = configureSecret
	}
	if configureVectorIndex != "" {
		cfg.Vector.Index = configureVectorIndex
	}
	if configureEmbeddingKey != "" {
		cfg.Vector.Embedding.APIKey = configureEmbeddingKey
	}
	if configureSummarizer != "" {
		cfg.Summarizer.Provider = configureSummarizer
	}
	if configureSummarizerKey != "" {
		cfg.Summarizer.APIKey = configureSummarizerKey
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintln(cmd.OutOrStdout(), "Start the daemon with: memoir start")
	return nil
}
