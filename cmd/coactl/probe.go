package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Round-trip a probe key through the configured credential store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, closeStore, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			start := time.Now()
			if err := store.Ping(ctx); err != nil {
				fmt.Printf("Store:    %s\n", cfg.Credentials.Backend)
				fmt.Println("Status:   UNAVAILABLE")
				return err
			}

			fmt.Printf("Store:    %s\n", cfg.Credentials.Backend)
			fmt.Println("Status:   OK")
			fmt.Printf("Latency:  %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
