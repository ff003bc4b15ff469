package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) error {
				if s.DB == nil {
					return errNeedsDatabase
				}
				if err := s.DB.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
				return nil
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) error {
				if s.DB == nil {
					return errNeedsDatabase
				}
				if err := s.DB.MigrateDown(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
				return nil
			})
		},
	}

	cmd.AddCommand(up, down)
	return cmd
}

func newSnapshotCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage position snapshots",
	}

	materialize := &cobra.Command{
		Use:   "materialize",
		Short: "Materialize snapshots for one date or a date range",
		Long: `Materialize replays the ledger and stores one snapshot row per open position.

With --date a single date is written and printed. With --from and --to every
date in the range is written and the number of dates is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			portfolioID, err := parseIDFlag(cmd, "portfolio")
			if err != nil {
				return err
			}
			from, err := parseDateFlag(cmd, "from", c.today())
			if err != nil {
				return err
			}
			to, err := parseDateFlag(cmd, "to", from)
			if err != nil {
				return err
			}
			ranged := cmd.Flags().Changed("from") || cmd.Flags().Changed("to")

			return c.run(cmd, func(ctx context.Context, s *session) error {
				if ranged {
					n, err := s.App.Snapshots.MaterializeRange(ctx, portfolioID, from, to)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Materialized %d snapshot dates from %s to %s\n",
						n, formatDate(from), formatDate(to))
					return nil
				}

				date, err := parseDateFlag(cmd, "date", c.today())
				if err != nil {
					return err
				}
				rows, err := s.App.Snapshots.Materialize(ctx, portfolioID, date)
				if err != nil {
					return err
				}
				symbols, err := assetSymbols(ctx, s)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshots for %s\n", formatDate(date))
				renderSnapshots(cmd.OutOrStdout(), rows, symbols)
				return nil
			})
		},
	}
	materialize.Flags().String("portfolio", "", "portfolio ID")
	materialize.Flags().String("date", "", "snapshot date (YYYY-MM-DD), defaults to today")
	materialize.Flags().String("from", "", "first date of a range (YYYY-MM-DD)")
	materialize.Flags().String("to", "", "last date of a range (YYYY-MM-DD), defaults to --from")
	materialize.MarkFlagsMutuallyExclusive("date", "from")
	materialize.MarkFlagsMutuallyExclusive("date", "to")

	cmd.AddCommand(materialize)
	return cmd
}

func newActionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Manage corporate actions",
	}

	var pending bool
	process := &cobra.Command{
		Use:   "process [ACTION_ID]",
		Short: "Process one corporate action, or every pending one with --pending",
		Args: func(cmd *cobra.Command, args []string) error {
			if pending {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := parseDateFlag(cmd, "as-of", c.today())
			if err != nil {
				return err
			}
			var actionID uuid.UUID
			if !pending {
				if actionID, err = uuid.Parse(args[0]); err != nil {
					return fmt.Errorf("invalid action ID %q: %w", args[0], err)
				}
			}

			return c.run(cmd, func(ctx context.Context, s *session) error {
				if !pending {
					res, err := s.App.Actions.Process(ctx, actionID)
					if err != nil {
						return err
					}
					renderProcessResults(cmd.OutOrStdout(), res)
					return nil
				}

				// Results processed before a failure are still reported
				results, err := s.App.Actions.ProcessPending(ctx, asOf)
				if len(results) == 0 && err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending corporate actions")
					return nil
				}
				renderProcessResults(cmd.OutOrStdout(), results...)
				return err
			})
		},
	}
	process.Flags().BoolVar(&pending, "pending", false, "process every pending action dated on or before --as-of")
	process.Flags().String("as-of", "", "cutoff date for --pending (YYYY-MM-DD), defaults to today")

	cmd.AddCommand(process)
	return cmd
}

func newLotsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lots",
		Short: "Manage FIFO tax lots",
	}

	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the tax lots of one asset in one portfolio from its ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			portfolioID, err := parseIDFlag(cmd, "portfolio")
			if err != nil {
				return err
			}
			assetID, err := parseIDFlag(cmd, "asset")
			if err != nil {
				return err
			}

			return c.run(cmd, func(ctx context.Context, s *session) error {
				lots, err := s.App.TaxLots.RebuildTaxLots(ctx, portfolioID, assetID)
				if err != nil {
					return err
				}
				renderLots(cmd.OutOrStdout(), lots)
				return nil
			})
		},
	}
	rebuild.Flags().String("portfolio", "", "portfolio ID")
	rebuild.Flags().String("asset", "", "asset ID")

	cmd.AddCommand(rebuild)
	return cmd
}

func newPositionsCmd(c *cli) *cobra.Command {
	var inBase bool
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Print the positions of a portfolio as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			portfolioID, err := parseIDFlag(cmd, "portfolio")
			if err != nil {
				return err
			}
			asOf, err := parseDateFlag(cmd, "as-of", c.today())
			if err != nil {
				return err
			}

			return c.run(cmd, func(ctx context.Context, s *session) error {
				rows, err := s.App.Reports.Positions(ctx, portfolioID, asOf, inBase)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Positions as of %s\n", formatDate(asOf))
				renderPositions(cmd.OutOrStdout(), rows, inBase)
				return nil
			})
		},
	}
	cmd.Flags().String("portfolio", "", "portfolio ID")
	cmd.Flags().String("as-of", "", "valuation date (YYYY-MM-DD), defaults to today")
	cmd.Flags().BoolVar(&inBase, "base", false, "add columns converted to the portfolio base currency")
	return cmd
}

func newPnlCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Print the PnL summary of a portfolio over a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			portfolioID, err := parseIDFlag(cmd, "portfolio")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("from") || !cmd.Flags().Changed("to") {
				return fmt.Errorf("--from and --to are required")
			}
			from, err := parseDateFlag(cmd, "from", c.today())
			if err != nil {
				return err
			}
			to, err := parseDateFlag(cmd, "to", c.today())
			if err != nil {
				return err
			}
			asOf, err := parseDateFlag(cmd, "as-of", to)
			if err != nil {
				return err
			}

			return c.run(cmd, func(ctx context.Context, s *session) error {
				p, err := s.App.RefData.GetPortfolio(ctx, portfolioID)
				if err != nil {
					return err
				}
				summary, err := s.App.Reports.PnlSummary(ctx, portfolioID, from, to, asOf)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "PnL for %s from %s to %s\n", p.Name, formatDate(from), formatDate(to))
				renderPnl(cmd.OutOrStdout(), summary, p.BaseCurrency)
				return nil
			})
		},
	}
	cmd.Flags().String("portfolio", "", "portfolio ID")
	cmd.Flags().String("from", "", "first day of the period (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last day of the period (YYYY-MM-DD)")
	cmd.Flags().String("as-of", "", "knowledge date (YYYY-MM-DD), defaults to --to")
	return cmd
}

// assetSymbols maps asset IDs to symbols for display
func assetSymbols(ctx context.Context, s *session) (map[uuid.UUID]string, error) {
	assets, err := s.App.RefData.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make(map[uuid.UUID]string, len(assets))
	for _, a := range assets {
		symbols[a.ID] = a.Symbol
	}
	return symbols, nil
}
