package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/schedule"
)

// threeMonthExpense declares a Jan-Mar 2024 monthly expense of 1000.
func threeMonthExpense(t *testing.T, db *sql.DB) (repository.Commitment, []repository.ScheduleInstance) {
	t.Helper()
	end := day("2024-03-31")
	c, instances, err := planning(db).CreateCommitment(testContext(t), CommitmentInput{
		EntityID:    database.DefaultEntityID,
		Direction:   domain.Expense,
		Description: "Internet",
		StartDate:   day("2024-01-05"),
		EndDate:     &end,
		Recurrence:  domain.RecurrenceMonthly,
		Amount:      1000,
	})
	require.NoError(t, err)
	require.Len(t, instances, 3)
	return c, instances
}

func TestSettleIsIdempotentUnderRetry(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	_, instances := threeMonthExpense(t, db)
	svc := settlement(db)

	in := SettleInput{AccountID: database.DefaultAccountID, Description: "internet jan"}
	m, err := svc.Settle(ctx, domain.OriginCommitment, instances[0].ID, in)
	require.NoError(t, err)
	require.Equal(t, int64(-1000), m.Amount)
	require.Equal(t, day("2024-01-05"), m.Date)

	_, err = svc.Settle(ctx, domain.OriginCommitment, instances[0].ID, in)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
	require.True(t, domain.IsConflict(err))

	require.Equal(t, 1, movementsFor(t, db, "commitment_schedule", instances[0].ID))

	target, err := repository.NewScheduleRepo(db).GetTarget(ctx, domain.OriginCommitment, instances[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRealized, target.Status)
}

func TestSettleConcurrentRequestsYieldOneMovement(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	_, instances := threeMonthExpense(t, db)
	svc := settlement(db)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, confl int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Settle(ctx, domain.OriginCommitment, instances[1].ID, SettleInput{AccountID: database.DefaultAccountID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case domain.IsConflict(err):
				confl++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, ok)
	require.Equal(t, workers-1, confl)

	require.Equal(t, 1, movementsFor(t, db, "commitment_schedule", instances[1].ID))
}

func TestSettleErrors(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	_, instances := threeMonthExpense(t, db)
	addEntity(t, db, "entity-b", "account-b")
	svc := settlement(db)

	_, err := svc.Settle(ctx, domain.OriginCommitment, "missing", SettleInput{AccountID: database.DefaultAccountID})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Settle(ctx, domain.OriginCommitment, instances[0].ID, SettleInput{AccountID: "account-b"})
	require.ErrorIs(t, err, domain.ErrCrossEntityViolation)

	_, err = svc.Settle(ctx, domain.OriginCommitment, instances[0].ID, SettleInput{AccountID: "no-account"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Settle(ctx, domain.OriginCommitment, instances[0].ID, SettleInput{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	// contract kind does not find commitment instances
	_, err = svc.Settle(ctx, domain.OriginContract, instances[0].ID, SettleInput{AccountID: database.DefaultAccountID})
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.Zero(t, movementsFor(t, db, "commitment_schedule", instances[0].ID))
}

func TestSettleContractUsesDirectionStatus(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	_, receivable, err := planning(db).CreateContract(ctx, ContractInput{
		EntityID: database.DefaultEntityID, Counterparty: "Client", Kind: domain.Receivable,
		Plan: schedule.Plan{Kind: schedule.PlanSingle, StartDate: day("2024-02-01"), TotalAmount: 5000},
	})
	require.NoError(t, err)
	_, payable, err := planning(db).CreateContract(ctx, ContractInput{
		EntityID: database.DefaultEntityID, Counterparty: "Supplier", Kind: domain.Payable,
		Plan: schedule.Plan{Kind: schedule.PlanSingle, StartDate: day("2024-02-01"), TotalAmount: 3000},
	})
	require.NoError(t, err)

	svc := settlement(db)
	m, err := svc.Settle(ctx, domain.OriginContract, receivable[0].ID, SettleInput{AccountID: database.DefaultAccountID, Amount: 4990})
	require.NoError(t, err)
	require.Equal(t, int64(4990), m.Amount)
	m, err = svc.Settle(ctx, domain.OriginContract, payable[0].ID, SettleInput{AccountID: database.DefaultAccountID})
	require.NoError(t, err)
	require.Equal(t, int64(-3000), m.Amount)

	schedules := repository.NewScheduleRepo(db)
	got, err := schedules.GetTarget(ctx, domain.OriginContract, receivable[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusReceived, got.Status)
	got, err = schedules.GetTarget(ctx, domain.OriginContract, payable[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, got.Status)
}

func TestCancelCommitmentLeavesRealizedUntouched(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	c, instances := threeMonthExpense(t, db)
	svc := settlement(db)
	_, err := svc.Settle(ctx, domain.OriginCommitment, instances[0].ID, SettleInput{AccountID: database.DefaultAccountID})
	require.NoError(t, err)

	origin := domain.CommitmentOrigin(c.ID)
	n, err := svc.CancelParent(ctx, origin)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	stored, err := repository.NewScheduleRepo(db).ListByParent(ctx, origin)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRealized, stored[0].Status)
	require.NotNil(t, stored[0].MovementID)
	require.Equal(t, domain.StatusCancelled, stored[1].Status)
	require.Equal(t, domain.StatusCancelled, stored[2].Status)

	parent, err := repository.NewCommitmentRepo(db).Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ParentCancelled, parent.Status)

	_, err = svc.CancelParent(ctx, origin)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = svc.Settle(ctx, domain.OriginCommitment, instances[1].ID, SettleInput{AccountID: database.DefaultAccountID})
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = svc.CancelParent(ctx, domain.CommitmentOrigin("missing"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteParentGovernance(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	svc := settlement(db)

	settled, instances := threeMonthExpense(t, db)
	_, err := svc.Settle(ctx, domain.OriginCommitment, instances[2].ID, SettleInput{AccountID: database.DefaultAccountID})
	require.NoError(t, err)
	err = svc.DeleteParent(ctx, domain.CommitmentOrigin(settled.ID))
	require.ErrorIs(t, err, domain.ErrGovernanceViolation)

	// cancelling does not make a settled parent deletable
	_, err = svc.CancelParent(ctx, domain.CommitmentOrigin(settled.ID))
	require.NoError(t, err)
	err = svc.DeleteParent(ctx, domain.CommitmentOrigin(settled.ID))
	require.ErrorIs(t, err, domain.ErrGovernanceViolation)

	fresh, _ := threeMonthExpense(t, db)
	require.NoError(t, svc.DeleteParent(ctx, domain.CommitmentOrigin(fresh.ID)))
	got, err := repository.NewCommitmentRepo(db).Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	left, err := repository.NewScheduleRepo(db).ListByParent(ctx, domain.CommitmentOrigin(fresh.ID))
	require.NoError(t, err)
	require.Empty(t, left)

	err = svc.DeleteParent(ctx, domain.CommitmentOrigin(fresh.ID))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettleAndCancelCardInstallments(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	require.NoError(t, repository.NewCardRepo(db).UpsertCard(ctx, repository.Card{
		ID: "card-1", EntityID: database.DefaultEntityID, Name: "Master", ClosingDay: 25, DueDay: 5,
	}))
	p, installments, err := planning(db).CreatePurchase(ctx, PurchaseInput{
		CardID: "card-1", Description: "Phone", PurchaseDate: day("2024-01-26"), TotalAmount: 1001, InstallmentCount: 2,
	})
	require.NoError(t, err)
	require.Equal(t, day("2024-03-05"), installments[0].DueDate)

	svc := settlement(db)
	m, err := svc.Settle(ctx, domain.OriginCardPurchase, installments[0].ID, SettleInput{AccountID: database.DefaultAccountID})
	require.NoError(t, err)
	require.Equal(t, int64(-501), m.Amount)
	require.Equal(t, "card_installment", *m.SourceType)

	_, err = svc.Settle(ctx, domain.OriginCardPurchase, installments[0].ID, SettleInput{AccountID: database.DefaultAccountID})
	require.ErrorIs(t, err, domain.ErrAlreadySettled)

	n, err := svc.CancelParent(ctx, domain.CardPurchaseOrigin(p.ID))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	stored, err := repository.NewCardRepo(db).ListInstallments(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, stored[0].Status)
	require.Equal(t, domain.StatusCancelled, stored[1].Status)

	_, err = svc.CancelParent(ctx, domain.CardPurchaseOrigin(p.ID))
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	_, err = svc.CancelParent(ctx, domain.CardPurchaseOrigin("missing"))
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, svc.DeleteParent(context.Background(), domain.CardPurchaseOrigin(p.ID)), domain.ErrInvalidArgument)
}
