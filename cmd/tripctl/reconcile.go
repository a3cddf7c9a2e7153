package main

import (
	"time"

	"github.com/spf13/cobra"

	"summitpass.id/app/internal/app"
	"summitpass.id/app/internal/config"
)

func reconcileCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-check stale pending payments and expire the abandoned ones",
		Long: `Every pending payment created before --older-than is looked up at the gateway.
Settled or failed transactions are applied as if their notification had arrived.
Payments the gateway still has no final answer for are failed as expired, which
releases the seats their registration was holding.

Examples:
  tripctl reconcile
  tripctl reconcile --older-than 2h --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if olderThan <= 0 {
				olderThan = cfg.Payment.PendingTTL
			}

			a, err := app.New(cmd.Context(), cfg, newLogger(verbose))
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Status.ExpireStale(cmd.Context(), olderThan, limit)
			if err != nil {
				return err
			}
			cmd.Printf("checked=%d settled=%d failed=%d expired=%d skipped=%d\n",
				rep.Checked, rep.Settled, rep.Failed, rep.Expired, rep.Skipped)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "minimum age of a pending payment (default PAYMENT_PENDING_TTL)")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum payments per run")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func dispatchCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver due outbox messages once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, newLogger(verbose))
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Dispatcher.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("sent %d message(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}
