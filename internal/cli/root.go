package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "spherectl",
		Short: "CLI tool for the MySphere API",
		Long: `spherectl is a CLI tool for interacting with the MySphere JSON API.

It signs in with a wallet key, runs the daily check-in, fuses and levels up
elements, moderates quotes, and streams live transaction updates.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			stdout = cmd.OutOrStdout()

			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, cfg.Token)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: SPHERECTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Session token (env: SPHERECTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: SPHERECTL_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newCheckInCmd())
	rootCmd.AddCommand(newFuseCmd())
	rootCmd.AddCommand(newLevelUpCmd())
	rootCmd.AddCommand(newPlayerCmd())
	rootCmd.AddCommand(newTxCmd())
	rootCmd.AddCommand(newQuoteCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		var apiErr *APIError
		if cfg.Verbose && errors.As(err, &apiErr) && apiErr.RequestID != "" {
			fmt.Fprintf(os.Stderr, "request id: %s\n", apiErr.RequestID)
		}
		os.Exit(1)
	}
}
