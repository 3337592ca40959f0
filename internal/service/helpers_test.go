package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/money"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, database.SeedDefaults(ctx, db))
	return db
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// addEntity creates a second entity with one account and returns the account id.
func addEntity(t *testing.T, db *sql.DB, entityID, accountID string) {
	t.Helper()
	ctx := testContext(t)
	require.NoError(t, repository.NewEntityRepo(db).Upsert(ctx, repository.Entity{ID: entityID, Name: entityID}))
	require.NoError(t, repository.NewAccountRepo(db).Upsert(ctx, repository.Account{
		ID: accountID, EntityID: entityID, Name: accountID, AccountType: "checking", Active: true,
	}))
}

func day(s string) time.Time {
	d, err := money.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ym(s string) money.YearMonth {
	m, err := money.ParseYearMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func planning(db *sql.DB) *PlanningService {
	return &PlanningService{DB: db, Log: zerolog.Nop()}
}

func settlement(db *sql.DB) *SettlementService {
	return &SettlementService{DB: db, Log: zerolog.Nop()}
}

// movementsFor counts ledger movements pointing at one source row.
func movementsFor(t *testing.T, db *sql.DB, sourceType, sourceID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(testContext(t),
		`SELECT COUNT(*) FROM ledger_movements WHERE source_type = ? AND source_id = ?`, sourceType, sourceID).Scan(&n))
	return n
}
