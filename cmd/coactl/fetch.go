package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"coaproxy/internal/coa"
	"coaproxy/internal/metrics"
	"coaproxy/internal/shopify"
	"coaproxy/internal/tenancy"

	"github.com/spf13/cobra"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every certificate record for a shop, as the proxy would",
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

			client := shopify.NewClient(
				shopify.WithAPIVersion(cfg.Shopify.APIVersion),
				shopify.WithTimeout(cfg.Shopify.HTTPTimeout),
			)
			fetcher := coa.NewFetcher(client, store, coa.FetcherConfig{
				MetaobjectType: cfg.COA.MetaobjectType,
				PageSize:       cfg.COA.PageSize,
				Retry: coa.RetryPolicy{
					MaxAttempts: cfg.COA.MaxAttempts,
					BaseDelay:   cfg.COA.RetryBaseDelay,
				},
			}, metrics.New(nil), cliLogger(cmd))

			records, err := fetcher.FetchAll(ctx, shop)
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			printRecords(records)
			return nil
		},
	}

	cmd.Flags().StringP("shop", "s", "", "Shop domain (defaults to SHOPIFY_SHOP)")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func printRecords(records []coa.AnalysisRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPRODUCT\tBATCH\tPDF")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", dash(r.Date), dash(r.Product), dash(r.BatchNumber), dash(r.PDFLink))
	}
	_ = w.Flush()
	fmt.Printf("\n%d records\n", len(records))
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
