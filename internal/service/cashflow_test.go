package service

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
)

func row(id, due string, amount, sign int64, status domain.ScheduleStatus) repository.ScheduleRow {
	return repository.ScheduleRow{
		ScheduleInstance: repository.ScheduleInstance{
			ID: id, Origin: domain.CommitmentOrigin("c-" + id), DueDate: day(due), Amount: sign * amount, Status: status,
		},
		ParentFound: true,
		Sign:        sign,
		EntityID:    database.DefaultEntityID,
	}
}

func TestBuildMatrixOpeningBalanceAdjustsCumulative(t *testing.T) {
	t.Parallel()

	rows := []repository.ScheduleRow{
		row("a", "2024-01-10", 20000, -1, domain.StatusPlanned),
		row("b", "2024-02-10", 30000, 1, domain.StatusPlanned),
	}
	m := BuildMatrix(ym("2024-01"), ym("2024-02"), rows, 100000)
	require.Len(t, m.Months, 2)
	require.Equal(t, int64(-20000), m.Months[0].PlannedNet)
	require.Equal(t, int64(30000), m.Months[1].PlannedNet)
	require.Equal(t, int64(80000), m.Months[0].PlannedCumAdj)
	require.Equal(t, int64(110000), m.Months[1].PlannedCumAdj)
	require.Equal(t, int64(100000), m.Meta.OpeningBalance)
}

func TestBuildMatrixCumulativeInvariant(t *testing.T) {
	t.Parallel()

	rows := []repository.ScheduleRow{
		row("a", "2024-01-01", 500, 1, domain.StatusRealized),
		row("b", "2024-01-31", 700, -1, domain.StatusPlanned),
		row("c", "2024-03-15", 900, -1, domain.StatusPaid),
		row("d", "2024-04-01", 50, 1, domain.StatusReceived),
		row("e", "2024-04-30", 1000, 1, domain.StatusPlanned),
	}
	const opening = 321
	m := BuildMatrix(ym("2024-01"), ym("2024-04"), rows, opening)
	require.Len(t, m.Months, 4)
	for i, e := range m.Months {
		var prevPlanned, prevRealised int64
		if i > 0 {
			prevPlanned, prevRealised = m.Months[i-1].PlannedCum, m.Months[i-1].RealisedCum
		}
		require.Equal(t, prevPlanned+e.PlannedNet, e.PlannedCum)
		require.Equal(t, prevRealised+e.RealisedNet, e.RealisedCum)
		require.Equal(t, opening+e.PlannedCum, e.PlannedCumAdj)
		require.Equal(t, opening+e.RealisedCum, e.RealisedCumAdj)
	}
	require.Equal(t, ym("2024-02"), m.Months[1].Month)
	require.Zero(t, m.Months[1].PlannedNet)
	require.Equal(t, int64(500), m.Months[0].RealisedIncome)
	require.Equal(t, int64(700), m.Months[0].PlannedExpense)
	require.Equal(t, int64(900), m.Months[2].RealisedExpense)
	require.Equal(t, 5, m.Meta.Instances)
}

func TestBuildMatrixSkipsOrphansAndCancelled(t *testing.T) {
	t.Parallel()

	orphan := row("orphan", "2024-01-05", 999, -1, domain.StatusPlanned)
	orphan.ParentFound = false
	linked := row("linked", "2024-01-06", 100, 1, domain.StatusPlanned)
	mid := "m1"
	linked.MovementID = &mid

	rows := []repository.ScheduleRow{
		orphan,
		row("gone", "2024-01-07", 5000, -1, domain.StatusCancelled),
		linked,
	}
	m := BuildMatrix(ym("2024-01"), ym("2024-01"), rows, 0)
	require.Equal(t, []string{"orphan"}, m.Meta.SkippedOrphans)
	require.Zero(t, m.Months[0].PlannedExpense)
	require.Zero(t, m.Months[0].RealisedExpense)
	require.Equal(t, int64(100), m.Months[0].RealisedIncome)
	require.Equal(t, 1, m.Meta.Instances)
}

func TestBuildMatrixWorstPointEarliestTie(t *testing.T) {
	t.Parallel()

	rows := []repository.ScheduleRow{
		row("a", "2024-02-01", 400, -1, domain.StatusRealized),
		row("b", "2024-03-01", 400, 1, domain.StatusRealized),
		row("c", "2024-04-01", 400, -1, domain.StatusRealized),
	}
	m := BuildMatrix(ym("2024-01"), ym("2024-05"), rows, 1000)
	require.Equal(t, ym("2024-02"), m.Meta.WorstMonth)
	require.Equal(t, int64(600), m.Meta.WorstValue)

	flat := BuildMatrix(ym("2024-01"), ym("2024-03"), nil, 0)
	require.Equal(t, ym("2024-01"), flat.Meta.WorstMonth)
	require.Zero(t, flat.Meta.WorstValue)
}

func TestMonthlyMatrixFromStore(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	accounts := repository.NewAccountRepo(db)
	require.NoError(t, accounts.Upsert(ctx, repository.Account{
		ID: database.DefaultAccountID, EntityID: database.DefaultEntityID, Name: "Main",
		AccountType: "checking", OpeningBalance: 90000, Active: true,
	}))
	// a movement before the window feeds the opening balance
	require.NoError(t, repository.NewMovementRepo(db).Insert(ctx, repository.LedgerMovement{
		ID: "pre", EntityID: database.DefaultEntityID, AccountID: database.DefaultAccountID,
		Amount: 10000, Date: day("2023-12-31"),
	}))

	plan := planning(db)
	_, rentInstances, err := plan.CreateCommitment(ctx, CommitmentInput{
		EntityID: database.DefaultEntityID, Direction: domain.Expense, StartDate: day("2024-01-10"),
		Recurrence: domain.RecurrenceNone, Amount: 20000,
	})
	require.NoError(t, err)
	_, _, err = plan.CreateCommitment(ctx, CommitmentInput{
		EntityID: database.DefaultEntityID, Direction: domain.Revenue, StartDate: day("2024-02-10"),
		Recurrence: domain.RecurrenceNone, Amount: 30000,
	})
	require.NoError(t, err)
	_, _, err = plan.CreateCommitment(ctx, CommitmentInput{
		EntityID: database.DefaultEntityID, Direction: domain.Revenue, StartDate: day("2024-05-10"),
		Recurrence: domain.RecurrenceNone, Amount: 7777,
	})
	require.NoError(t, err)

	svc := NewCashflowService(db, zerolog.Nop())
	m, err := svc.MonthlyMatrix(ctx, ym("2024-01"), ym("2024-02"), domain.Scope{})
	require.NoError(t, err)
	require.Equal(t, int64(100000), m.Meta.OpeningBalance)
	require.Equal(t, []int64{80000, 110000}, []int64{m.Months[0].PlannedCumAdj, m.Months[1].PlannedCumAdj})

	_, err = settlement(db).Settle(ctx, domain.OriginCommitment, rentInstances[0].ID, SettleInput{AccountID: database.DefaultAccountID})
	require.NoError(t, err)
	m, err = svc.MonthlyMatrix(ctx, ym("2024-01"), ym("2024-02"), domain.Scope{})
	require.NoError(t, err)
	require.Zero(t, m.Months[0].PlannedExpense)
	require.Equal(t, int64(20000), m.Months[0].RealisedExpense)
	require.Equal(t, int64(80000), m.Months[0].RealisedCumAdj)
	require.Equal(t, ym("2024-01"), m.Meta.WorstMonth)

	// scoping to another entity hides everything, including the opening balance
	addEntity(t, db, "entity-b", "account-b")
	m, err = svc.MonthlyMatrix(ctx, ym("2024-01"), ym("2024-02"), domain.Scope{EntityIDs: []string{"entity-b"}})
	require.NoError(t, err)
	require.Zero(t, m.Meta.OpeningBalance)
	require.Zero(t, m.Meta.Instances)

	_, err = svc.MonthlyMatrix(ctx, ym("2024-03"), ym("2024-01"), domain.Scope{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestMonthlyMatrixSkipsOrphanedSchedules(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	_, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO commitment_schedules(id, commitment_id, seq, due_date, amount, status)
		VALUES ('lost', 'deleted-parent', 1, '2024-01-15', -500, 'planned')`)
	require.NoError(t, err)

	m, err := NewCashflowService(db, zerolog.Nop()).MonthlyMatrix(ctx, ym("2024-01"), ym("2024-01"), domain.Scope{})
	require.NoError(t, err)
	require.Equal(t, []string{"lost"}, m.Meta.SkippedOrphans)
	require.Zero(t, m.Months[0].PlannedExpense)
}
