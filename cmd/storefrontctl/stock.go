package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/galleria/storefront/internal/catalog/infrastructure/static"
	stockapp "github.com/galleria/storefront/internal/stock/application"
	"github.com/galleria/storefront/internal/stock/domain"
	stockgrpc "github.com/galleria/storefront/internal/stock/infrastructure/grpc"
	stockpg "github.com/galleria/storefront/internal/stock/infrastructure/postgres"
)

func stockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Read and write product stock flags",
	}
	cmd.AddCommand(stockGetCmd(), stockSetCmd(), stockSeedCmd())
	return cmd
}

func stockGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <product-id>...",
		Short: "Show the stock flag of each product",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			client, err := stockgrpc.NewClient(e.log, e.cfg.StockAddr)
			if err != nil {
				return err
			}
			defer client.Close()

			out := make([]domain.Stock, 0, len(args))
			for _, id := range args {
				inStock, err := client.GetStock(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("get %s: %w", id, err)
				}
				out = append(out, domain.Stock{ProductID: id, InStock: inStock})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func stockSetCmd() *cobra.Command {
	var inStock bool
	cmd := &cobra.Command{
		Use:   "set <product-id>...",
		Short: "Set the stock flag for products",
		Long: `Set the stock flag for one or more products through the stock service.

Examples:
  storefrontctl stock set p1 p2 --in-stock=false
  storefrontctl stock set p3 --in-stock`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			client, err := stockgrpc.NewClient(e.log, e.cfg.StockAddr)
			if err != nil {
				return err
			}
			defer client.Close()

			n, err := client.SetStock(cmd.Context(), args, inStock)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d products (in_stock=%t)\n", n, inStock)
			return nil
		},
	}
	cmd.Flags().BoolVar(&inStock, "in-stock", true, "flag value to write")
	return cmd
}

func stockSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [product-id]...",
		Short: "Create in-stock rows for products that have none",
		Long: `Create in-stock rows for the given products, or for the whole catalog when
none are given. Existing rows are left untouched, so sold products stay sold.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()

			ids := args
			if len(ids) == 0 {
				catalog, err := static.Load()
				if err != nil {
					return err
				}
				ids = catalog.IDs()
			}
			pool, err := e.postgres(cmd.Context())
			if err != nil {
				return err
			}
			svc := stockapp.NewService(e.log, stockpg.NewRepository(e.log, pool))
			n, err := svc.Seed(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d products\n", n, len(ids))
			return nil
		},
	}
}
