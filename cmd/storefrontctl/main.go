package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galleria/storefront/pkg/shutdown"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "Admin tool for the storefront back office",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(stockCmd())
	rootCmd.AddCommand(reconcileCmd())

	ctx, cancel := shutdown.WithSignals(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
