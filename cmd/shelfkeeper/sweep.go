package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/config"
)

const (
	sweepOverdue  = "overdue"
	sweepDueSoon  = "due-soon"
	sweepExpiries = "expired-reservations"
)

// runSweep runs the named sweep and returns a one-line summary.
func runSweep(ctx context.Context, engine circulation.Service, kind string) (string, error) {
	switch kind {
	case sweepOverdue:
		n, err := engine.SweepOverdue(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d borrowing(s) flagged overdue", n), nil
	case sweepDueSoon:
		res, err := engine.SweepDueSoon(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d notifications created, %d due soon", res.NotificationsCreated, res.UpcomingDue), nil
	case sweepExpiries:
		n, err := engine.ExpireReservations(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d reservation(s) expired", n), nil
	default:
		return "", fmt.Errorf("unknown sweep %q", kind)
	}
}

func newSweepCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "sweep {" + sweepOverdue + "|" + sweepDueSoon + "|" + sweepExpiries + "}",
		Short:     "Run one circulation sweep and exit",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{sweepOverdue, sweepDueSoon, sweepExpiries},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, func(ctx context.Context, a *app) error {
				summary, err := runSweep(ctx, a.circulation, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}
