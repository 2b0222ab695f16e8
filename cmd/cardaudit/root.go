package main

import (
	"github.com/spf13/cobra"

	"cardaudit/internal/config"
	"cardaudit/internal/logging"
)

var (
	configPath   string
	debugFlag    bool
	workersFlag  int
	providerFlag string
	timeoutFlag  string

	// cfg is loaded once in the root PersistentPreRunE and read by every
	// subcommand.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cardaudit",
	Short: "Verify model-card claims against repository evidence",
	Long: `cardaudit checks the claims a model card makes (metrics, training
setup, artifacts) against what the repository actually contains. Each claim
gets a generated verification program that runs sandboxed against read-only
search tools, an LLM verdict over the evidence it found, and a deterministic
materiality score.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if debugFlag {
			cfg.Debug = true
		}
		if workersFlag > 0 {
			cfg.Engine.Workers = workersFlag
		}
		if providerFlag != "" {
			cfg.LLM.Provider = providerFlag
		}
		if timeoutFlag != "" {
			cfg.Engine.ClaimTimeout = timeoutFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		_, err = logging.Init(cfg.Debug)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&workersFlag, "workers", 0, "concurrent claim verifications (overrides config)")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "LLM provider: gemini or openai (overrides config)")
	rootCmd.PersistentFlags().StringVar(&timeoutFlag, "claim-timeout", "", "per-claim execution timeout, e.g. 60s (overrides config)")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(relayCmd)
}
