package main

import (
	"errors"
	"fmt"
	"time"

	"coaproxy/internal/credentials"
	"coaproxy/internal/tenancy"

	"github.com/spf13/cobra"
)

func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Inspect or edit stored shop credentials",
	}
	cmd.PersistentFlags().StringP("shop", "s", "", "Shop domain (defaults to SHOPIFY_SHOP)")

	cmd.AddCommand(credentialsGetCmd())
	cmd.AddCommand(credentialsSetCmd())
	cmd.AddCommand(credentialsDeleteCmd())

	return cmd
}

func credentialsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the stored credential for a shop (token masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			shop, err := shopArg(cmd, cfg)
			if err != nil {
				return err
			}

			cred, err := store.Get(ctx, shop)
			if errors.Is(err, credentials.ErrNotFound) {
				return fmt.Errorf("no credential stored for %s", shop)
			}
			if err != nil {
				return err
			}

			reveal, _ := cmd.Flags().GetBool("reveal")
			token := maskToken(cred.AccessToken)
			if reveal {
				token = cred.AccessToken
			}

			fmt.Printf("Shop:     %s\n", cred.Shop)
			fmt.Printf("Backend:  %s\n", cfg.Credentials.Backend)
			fmt.Printf("Token:    %s\n", token)
			fmt.Printf("Scope:    %s\n", dash(cred.Scope))
			if !cred.UpdatedAt.IsZero() {
				fmt.Printf("Updated:  %s\n", cred.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().Bool("reveal", false, "Print the full access token")

	return cmd
}

func credentialsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an access token for a shop, replacing any existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			raw, err := shopArg(cmd, cfg)
			if err != nil {
				return err
			}
			shop, err := tenancy.NormalizeShop(raw)
			if err != nil {
				return fmt.Errorf("%q: %w", raw, err)
			}

			token, _ := cmd.Flags().GetString("token")
			scope, _ := cmd.Flags().GetString("scope")
			if err := store.Set(ctx, credentials.Credential{
				Shop:        shop,
				AccessToken: token,
				Scope:       scope,
				UpdatedAt:   time.Now().UTC(),
			}); err != nil {
				return err
			}

			fmt.Printf("Stored credential for %s in %s\n", shop, cfg.Credentials.Backend)
			return nil
		},
	}

	cmd.Flags().StringP("token", "t", "", "Offline access token")
	cmd.Flags().String("scope", "", "Granted scopes, comma separated")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func credentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored credential for a shop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			shop, err := shopArg(cmd, cfg)
			if err != nil {
				return err
			}
			if err := store.Delete(ctx, shop); err != nil {
				return err
			}

			fmt.Printf("Deleted credential for %s\n", shop)
			return nil
		},
	}
}

// maskToken keeps a short prefix and suffix so tokens can be told apart.
func maskToken(token string) string {
	if len(token) <= 10 {
		return "********"
	}
	return token[:6] + "..." + token[len(token)-4:]
}
