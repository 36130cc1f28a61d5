package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/config"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "givingctl",
		Short:         "givingctl - quotes, categories and guided giving against the giving-service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server", "", "giving-service base URL (defaults to GIVING_SERVICE_URL)")

	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(referenceCmd())
	rootCmd.AddCommand(giveCmd())
	return rootCmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func serverURL(cmd *cobra.Command, cfg config.Config) string {
	if s, _ := cmd.Flags().GetString("server"); s != "" {
		return s
	}
	return cfg.GivingServiceURL
}
