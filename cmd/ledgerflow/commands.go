package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/demo"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/logger"
	"github.com/jask/ledgerflow/internal/money"
	"github.com/jask/ledgerflow/internal/service"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// open has already migrated and seeded
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s\n", a.cfg.Database.Path)
			return nil
		},
	}
}

func newCommitCmd(a *app) *cobra.Command {
	var (
		entity, account, direction, desc, amount, start, end, recurrence string
	)
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Declare a commitment and generate its schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			minor, err := money.ParseMinor(amount)
			if err != nil {
				return err
			}
			startDate, err := money.ParseDate(start)
			if err != nil {
				return err
			}
			in := service.CommitmentInput{
				EntityID:    entity,
				Direction:   domain.Direction(direction),
				Description: desc,
				StartDate:   startDate,
				Recurrence:  domain.RecurrenceKind(recurrence),
				Amount:      money.Abs(minor),
			}
			if account != "" {
				in.AccountID = &account
			}
			if end != "" {
				endDate, err := money.ParseDate(end)
				if err != nil {
					return err
				}
				in.EndDate = &endDate
			}
			c, instances, err := a.planning.CreateCommitment(cmd.Context(), in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "commitment %s  total %s\n", c.ID, a.render.Amount(c.TotalAmount))
			for _, inst := range instances {
				fmt.Fprintf(out, "  %2d  %s  %s  %s\n", inst.Seq, inst.DueDate.Format(money.DateLayout),
					a.render.Amount(inst.Amount), inst.ID)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&entity, "entity", database.DefaultEntityID, "owning entity id")
	f.StringVar(&account, "account", "", "account the commitment is paid from or into")
	f.StringVar(&direction, "direction", string(domain.Expense), "expense or revenue")
	f.StringVar(&desc, "desc", "", "description")
	f.StringVar(&amount, "amount", "", "amount, e.g. 150.00 (per period when recurring)")
	f.StringVar(&start, "start", "", "first due date, YYYY-MM-DD")
	f.StringVar(&end, "end", "", "last possible due date, YYYY-MM-DD")
	f.StringVar(&recurrence, "recurrence", string(domain.RecurrenceMonthly), "none, monthly, quarterly or yearly")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import a bank statement export as external transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := a.ingester.ImportCSV(cmd.Context(), f, account, a.loc)
			if err != nil {
				return err
			}
			log := logger.FromContext(cmd.Context())
			for _, rowErr := range res.Errors {
				log.Warn().Err(rowErr).Str("file", args[0]).Msg("skipped row")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, updated %d, skipped %d\n",
				res.Imported, res.Updated, len(res.Errors))
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", database.DefaultAccountID, "account the statement belongs to")
	return cmd
}

func newCashflowCmd(a *app) *cobra.Command {
	var (
		from, to           string
		entities, accounts []string
	)
	cmd := &cobra.Command{
		Use:   "cashflow",
		Short: "Show the monthly planned vs realised cash-flow matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := money.MonthOf(time.Now().In(a.loc))
			fromYM, toYM := now, money.StepMonths(now, 11)
			var err error
			if from != "" {
				if fromYM, err = money.ParseYearMonth(from); err != nil {
					return err
				}
			}
			if to != "" {
				if toYM, err = money.ParseYearMonth(to); err != nil {
					return err
				}
			}
			m, err := a.cashflow.MonthlyMatrix(cmd.Context(), fromYM, toYM,
				domain.Scope{EntityIDs: entities, AccountIDs: accounts})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.render.Matrix(m))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&from, "from", "", "first month, YYYY-MM (default current month)")
	f.StringVar(&to, "to", "", "last month, YYYY-MM (default eleven months after the current month)")
	f.StringSliceVar(&entities, "entity", nil, "restrict to entity ids")
	f.StringSliceVar(&accounts, "account", nil, "restrict to account ids")
	return cmd
}

func newUnreconciledCmd(a *app) *cobra.Command {
	var account, month, search string
	cmd := &cobra.Command{
		Use:   "unreconciled",
		Short: "List external transactions without a reconciliation link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := repository.ExternalFilters{AccountID: account, Search: search}
			if month != "" {
				ym, err := money.ParseYearMonth(month)
				if err != nil {
					return err
				}
				f.Month = ym.FirstDay()
			}
			txs, err := a.reconciler.ListUnreconciled(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.render.Transactions(txs))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&account, "account", "", "restrict to one account")
	f.StringVar(&month, "month", "", "restrict to a posting month, YYYY-MM")
	f.StringVar(&search, "search", "", "restrict to descriptions containing this text")
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest [external-transaction-id...]",
		Short: "Rank candidate ledger movements for external transactions",
		Long:  "With no ids, suggestions are computed for every unreconciled transaction.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids := args
			if len(ids) == 0 {
				txs, err := a.reconciler.ListUnreconciled(ctx, repository.ExternalFilters{})
				if err != nil {
					return err
				}
				for _, t := range txs {
					ids = append(ids, t.ID)
				}
			}
			all, err := a.reconciler.SuggestMany(ctx, ids)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range ids {
				ext, err := a.reconciler.Transactions.Get(ctx, id)
				if err != nil {
					return err
				}
				if ext == nil {
					return domain.NotFound("external_transaction", id)
				}
				fmt.Fprintln(out, a.render.Suggestions(*ext, all[id]))
			}
			return nil
		},
	}
}

func newConfirmCmd(a *app) *cobra.Command {
	var matchType string
	cmd := &cobra.Command{
		Use:   "confirm <external-transaction-id> <movement-id>",
		Short: "Link an external transaction to a ledger movement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := a.reconciler.Confirm(cmd.Context(), args[0], args[1], domain.MatchType(matchType))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked %s -> %s (%s, %.2f)\n",
				link.ExternalTransactionID, link.MovementID, link.MatchType, link.Confidence)
			return nil
		},
	}
	cmd.Flags().StringVar(&matchType, "type", string(domain.MatchHeuristic), "exact, heuristic or manual")
	return cmd
}

func newUnlinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <external-transaction-id>",
		Short: "Remove the reconciliation link of an external transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.reconciler.Unlink(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unlinked %s\n", args[0])
			return nil
		},
	}
}

func parseOriginKind(s string) (domain.OriginKind, error) {
	switch k := domain.OriginKind(strings.ReplaceAll(s, "-", "_")); k {
	case domain.OriginCommitment, domain.OriginContract, domain.OriginCardPurchase:
		return k, nil
	}
	return "", domain.InvalidArgument("kind", "want commitment, contract or card_purchase, got %q", s)
}

func newSettleCmd(a *app) *cobra.Command {
	var account, date, amount, desc string
	cmd := &cobra.Command{
		Use:   "settle <commitment|contract|card_purchase> <instance-id>",
		Short: "Record the ledger movement that settles a schedule instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseOriginKind(args[0])
			if err != nil {
				return err
			}
			in := service.SettleInput{AccountID: account, Description: desc}
			if date != "" {
				if in.Date, err = money.ParseDate(date); err != nil {
					return err
				}
			}
			if amount != "" {
				minor, err := money.ParseMinor(amount)
				if err != nil {
					return err
				}
				in.Amount = money.Abs(minor)
			}
			m, err := a.settlement.Settle(cmd.Context(), kind, args[1], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "movement %s  %s  %s\n",
				m.ID, m.Date.Format(money.DateLayout), a.render.Amount(m.Amount))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&account, "account", database.DefaultAccountID, "account the movement is booked on")
	f.StringVar(&date, "date", "", "movement date, YYYY-MM-DD (default instance due date)")
	f.StringVar(&amount, "amount", "", "settled amount (default instance amount)")
	f.StringVar(&desc, "desc", "", "movement description")
	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <commitment|contract|card_purchase> <parent-id>",
		Short: "Cancel a parent and every planned instance it still has",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseOriginKind(args[0])
			if err != nil {
				return err
			}
			n, err := a.settlement.CancelParent(cmd.Context(), domain.ScheduleOrigin{Kind: kind, ParentID: args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s, %d planned instances\n", args[1], n)
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data and reseed the default entity and account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return domain.InvalidArgument("yes", "reset deletes everything; pass --yes to confirm")
			}
			if err := a.maintenance.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <commitment|contract> <parent-id>",
		Short: "Hard-delete a parent that has no settled instances",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseOriginKind(args[0])
			if err != nil {
				return err
			}
			if err := a.settlement.DeleteParent(cmd.Context(), domain.ScheduleOrigin{Kind: kind, ParentID: args[1]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[1])
			return nil
		},
	}
}

func newDemoCmd(a *app) *cobra.Command {
	var (
		month string
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Seed sample commitments, a contract and a matching bank statement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ym := money.MonthOf(time.Now().In(a.loc))
			if month != "" {
				var err error
				if ym, err = money.ParseYearMonth(month); err != nil {
					return err
				}
			}
			res, err := demo.Seed(cmd.Context(), demo.Services{
				Planning:   a.planning,
				Settlement: a.settlement,
				Ingest:     a.ingester,
			}, ym, seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d commitments, %d contract, %d settlements, %d bank rows\n",
				res.Commitments, res.Contracts, res.Settled, res.Statement.Imported)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "first month, YYYY-MM (default current month)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for dates and bank prefixes")
	return cmd
}
