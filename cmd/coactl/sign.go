package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"coaproxy/internal/security"

	"github.com/spf13/cobra"
)

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Produce platform signatures for hand-built test requests",
	}
	cmd.PersistentFlags().String("secret", "", "App secret (defaults to SHOPIFY_API_SECRET)")

	cmd.AddCommand(signQueryCmd())
	cmd.AddCommand(signBodyCmd())

	return cmd
}

func signQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query key=value...",
		Short: "Sign an app proxy query string and print it with its signature",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := verifierFor(cmd)
			if err != nil {
				return err
			}
			values, err := parsePairs(args)
			if err != nil {
				return err
			}
			values.Set("signature", v.SignQuery(values))
			fmt.Println(values.Encode())
			return nil
		},
	}
}

func signBodyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "body [file]",
		Short: "Print the webhook HMAC header value for a body (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := verifierFor(cmd)
			if err != nil {
				return err
			}

			var body []byte
			if len(args) == 1 {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			fmt.Println(v.SignBody(body))
			return nil
		},
	}
}

func verifierFor(cmd *cobra.Command) (*security.Verifier, error) {
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv("SHOPIFY_API_SECRET")
	}
	if secret == "" {
		return nil, errors.New("--secret or SHOPIFY_API_SECRET is required")
	}
	return security.NewVerifier(secret), nil
}

// parsePairs turns key=value arguments into query values; repeated keys
// accumulate, as in a real query string.
func parsePairs(args []string) (url.Values, error) {
	values := url.Values{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		values.Add(k, v)
	}
	return values, nil
}
