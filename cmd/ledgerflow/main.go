package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jask/ledgerflow/internal/config"
	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/logger"
	"github.com/jask/ledgerflow/internal/ratelimit"
	"github.com/jask/ledgerflow/internal/report"
	"github.com/jask/ledgerflow/internal/schedule"
	"github.com/jask/ledgerflow/internal/service"
)

// app is the wiring shared by every subcommand. It is populated in the root
// command's PersistentPreRunE.
type app struct {
	cfg config.Config
	log zerolog.Logger
	db  *sql.DB
	loc *time.Location

	planning    *service.PlanningService
	settlement  *service.SettlementService
	cashflow    *service.CashflowService
	reconciler  *service.Reconciler
	ingester    *service.IngestService
	maintenance *service.MaintenanceService
	render      report.Renderer
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ledgerflow",
		Short:         "Plan schedules, project cash flow and reconcile bank feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			cmd.SetContext(logger.WithContext(cmd.Context(), a.log))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.AddCommand(
		newMigrateCmd(a),
		newCommitCmd(a),
		newImportCmd(a),
		newCashflowCmd(a),
		newUnreconciledCmd(a),
		newSuggestCmd(a),
		newConfirmCmd(a),
		newUnlinkCmd(a),
		newSettleCmd(a),
		newCancelCmd(a),
		newDeleteCmd(a),
		newResetCmd(a),
		newDemoCmd(a),
	)
	return root
}

// open loads config, brings the schema up to date and wires the services.
func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.log = logger.New(cfg.Log.Level)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := database.SeedDefaults(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("seed defaults: %w", err)
	}
	a.db = db

	loc, err := time.LoadLocation(cfg.UI.Timezone)
	if err != nil {
		a.log.Warn().Err(err).Str("timezone", cfg.UI.Timezone).Msg("using local timezone")
		loc = time.Local
	}
	a.loc = loc

	policy := service.DefaultMatchPolicy()
	if cfg.Reconcile.WindowDays > 0 {
		policy.WindowDays = cfg.Reconcile.WindowDays
	}
	if cfg.Reconcile.AmountTolerance >= 0 {
		policy.AmountTolerance = cfg.Reconcile.AmountTolerance
	}

	gen := schedule.NewGenerator()
	if cfg.Schedule.RecurringCap > 0 {
		gen.RecurringCap = cfg.Schedule.RecurringCap
	}

	a.planning = &service.PlanningService{DB: db, Generator: gen, Log: a.log}
	a.settlement = &service.SettlementService{DB: db, Log: a.log}
	a.cashflow = service.NewCashflowService(db, a.log)
	a.reconciler = service.NewReconciler(db, policy, a.log)
	a.ingester = &service.IngestService{
		Transactions: a.reconciler.Transactions,
		Accounts:     a.cashflow.Accounts,
		Limiter:      ratelimit.NewKeyed(cfg.Ingest.RatePerSecond, cfg.Ingest.Burst),
		Log:          a.log,
	}
	a.maintenance = &service.MaintenanceService{DB: db}
	a.render = report.Renderer{CurrencySymbol: cfg.UI.CurrencySymbol}
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
