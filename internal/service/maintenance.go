package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/ledgerflow/internal/database"
)

// MaintenanceService houses destructive/ops actions surfaced through the CLI.
type MaintenanceService struct {
	DB *sql.DB
}

// resetOrder deletes children before parents so foreign keys hold.
var resetOrder = []string{
	"reconciliation_links",
	"external_transactions",
	"ledger_movements",
	"card_installments",
	"card_purchases",
	"cards",
	"commitment_schedules",
	"contract_schedules",
	"commitments",
	"contracts",
	"accounts",
	"entities",
}

// Reset wipes all user data and reseeds the default entity and account.
// The schema is kept intact.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range resetOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return database.SeedDefaults(ctx, s.DB)
}
