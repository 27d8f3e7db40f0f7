package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"coaproxy/internal/config"
	"coaproxy/internal/credentials"
	"coaproxy/internal/logger"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "coactl",
		Short:         "Operator tooling for the certificate-of-analysis proxy",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(credentialsCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(probeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.NewWithWriter(logger.Config{Level: level, Format: "text"}, os.Stderr)
}

// openStore loads the service configuration and opens its credential store.
func openStore(ctx context.Context) (*config.Config, credentials.Store, func() error, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	store, closeFn, err := credentials.Open(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s store: %w", cfg.Credentials.Backend, err)
	}
	return cfg, store, closeFn, nil
}

// shopArg prefers --shop and falls back to SHOPIFY_SHOP.
func shopArg(cmd *cobra.Command, cfg *config.Config) (string, error) {
	shop, _ := cmd.Flags().GetString("shop")
	if shop == "" {
		shop = cfg.Shopify.Shop
	}
	if shop == "" {
		return "", errors.New("--shop is required when SHOPIFY_SHOP is not set")
	}
	return shop, nil
}
