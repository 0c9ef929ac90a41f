package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	orderapp "github.com/galleria/storefront/internal/order/application"
	"github.com/galleria/storefront/internal/order/domain"
	orderpg "github.com/galleria/storefront/internal/order/infrastructure/postgres"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
	"github.com/galleria/storefront/internal/payment/infrastructure/stripe"
	stockgrpc "github.com/galleria/storefront/internal/stock/infrastructure/grpc"
)

func reconcileCmd() *cobra.Command {
	var cartIDs []string
	cmd := &cobra.Command{
		Use:   "reconcile <session-id>",
		Short: "Settle a checkout session by hand",
		Long: `Fetch a checkout session from the payment processor and, if it is paid,
create or update its order, attach addresses and mark its products sold.

Safe to run any number of times. Work that fails is queued for the
reconcile worker.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()

			pool, err := e.postgres(ctx)
			if err != nil {
				return err
			}
			stock, err := stockgrpc.NewClient(e.log, e.cfg.StockAddr)
			if err != nil {
				return err
			}
			defer stock.Close()

			processor := stripe.NewClient(e.log, stripe.Options{SecretKey: e.cfg.Stripe.SecretKey, Timeout: e.cfg.PollTimeout})
			svc := orderapp.NewService(e.log, orderpg.NewRepository(e.log, pool), stock, nil, orderpg.NewRetryQueue(pool))

			sess, err := processor.Retrieve(ctx, args[0])
			if err != nil {
				return err
			}
			cart := make([]domain.CartItem, 0, len(cartIDs))
			for _, id := range cartIDs {
				cart = append(cart, domain.CartItem{ID: id})
			}

			res, err := svc.Settle(ctx, sess, cart, orderapp.SourceCLI)
			if errors.Is(err, paydomain.ErrNotPaid) {
				fmt.Fprintf(cmd.OutOrStdout(), "session %s is not paid (%s); nothing written\n", sess.ID, sess.PaymentStatus)
				return nil
			}
			if err != nil {
				return err
			}
			if !res.Complete() {
				if derr := svc.Defer(ctx, sess.ID, cart, 0, orderapp.SourceCLI, res.Err()); derr != nil {
					return errors.Join(res.Err(), derr)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "partially settled, retry queued: %v\n", res.Err())
			}
			return printJSON(cmd.OutOrStdout(), res.Order)
		},
	}
	cmd.Flags().StringSliceVar(&cartIDs, "cart", nil, "product ids to use when the session has none recorded")
	return cmd
}
