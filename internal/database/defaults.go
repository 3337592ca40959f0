package database

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/jask/ledgerflow/internal/database/repository"
)

// DefaultEntityID and DefaultAccountID are stable ids for the seeded rows.
var (
	DefaultEntityID  = uuid.NewSHA1(uuid.NameSpaceOID, []byte("entity:default")).String()
	DefaultAccountID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("account:default")).String()
)

// SeedDefaults ensures a default entity and account exist for new databases.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB) error {
	entities := repository.NewEntityRepo(db)
	existing, err := entities.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := repository.NewEntityRepo(tx).Upsert(ctx, repository.Entity{ID: DefaultEntityID, Name: "Default"}); err != nil {
			return err
		}
		return repository.NewAccountRepo(tx).Upsert(ctx, repository.Account{
			ID:          DefaultAccountID,
			EntityID:    DefaultEntityID,
			Name:        "Main",
			AccountType: "checking",
			Active:      true,
		})
	})
}
