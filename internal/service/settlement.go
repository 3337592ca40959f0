package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
)

// SettlementService moves schedule instances and card installments to their
// terminal states.
type SettlementService struct {
	DB  *sql.DB
	Log zerolog.Logger
}

// SettleInput describes the ledger movement that settles an instance.
// Amount is a magnitude; zero means the instance amount. The sign always
// follows the instance direction.
type SettleInput struct {
	AccountID   string
	Date        time.Time
	Amount      int64
	Description string
}

// Settle records the movement and marks the instance settled in a single
// write transaction. The unique index on (source_type, source_id) is the
// final arbiter when two requests race past the existence check.
func (s *SettlementService) Settle(ctx context.Context, kind domain.OriginKind, instanceID string, in SettleInput) (repository.LedgerMovement, error) {
	if in.AccountID == "" {
		return repository.LedgerMovement{}, domain.InvalidArgument("account_id", "required")
	}
	if in.Amount < 0 {
		return repository.LedgerMovement{}, domain.InvalidArgument("amount", "must not be negative")
	}
	sourceType := kind.SourceType()
	if sourceType == "" {
		return repository.LedgerMovement{}, domain.InvalidArgument("origin", "unknown origin %q", kind)
	}

	var out repository.LedgerMovement
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		target, err := loadTarget(ctx, tx, kind, instanceID)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.NotFound(sourceType, instanceID)
		}

		account, err := repository.NewAccountRepo(tx).Get(ctx, in.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.NotFound("account", in.AccountID)
		}
		if account.EntityID != target.EntityID {
			return domain.Errorf(domain.KindCrossEntityViolation, "account_id",
				"account entity %s differs from schedule entity %s", account.EntityID, target.EntityID)
		}

		movements := repository.NewMovementRepo(tx)
		existing, err := movements.BySource(ctx, sourceType, instanceID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Errorf(domain.KindAlreadySettled, "instance_id", "settled by movement %s", existing.ID)
		}

		next := settledStatus(kind, target.Receivable)
		if err := target.Status.Transition(next); err != nil {
			return err
		}

		amount := money.Abs(target.Amount)
		if in.Amount > 0 {
			amount = in.Amount
		}
		if !target.Receivable {
			amount = -amount
		}
		date := in.Date
		if date.IsZero() {
			date = target.DueDate
		}
		m := repository.LedgerMovement{
			ID:          uuid.NewString(),
			EntityID:    target.EntityID,
			AccountID:   account.ID,
			Amount:      amount,
			Date:        money.DateOnly(date),
			Description: in.Description,
			SourceType:  &sourceType,
			SourceID:    &target.ID,
		}
		if err := movements.Insert(ctx, m); err != nil {
			if database.IsUniqueViolation(err) {
				return &domain.Error{Kind: domain.KindAlreadySettled, Field: "instance_id", Err: err}
			}
			return err
		}

		var ok bool
		if kind == domain.OriginCardPurchase {
			ok, err = repository.NewCardRepo(tx).MarkInstallmentPaid(ctx, target.ID, m.ID)
		} else {
			ok, err = repository.NewScheduleRepo(tx).MarkSettled(ctx, kind, target.ID, next, m.ID)
		}
		if err != nil {
			return err
		}
		if !ok {
			return domain.Errorf(domain.KindInvalidStateTransition, "status", "instance %s is no longer planned", target.ID)
		}
		out = m
		return nil
	})
	if err != nil {
		if domain.IsConflict(err) {
			s.Log.Debug().Str("instance_id", instanceID).Err(err).Msg("settle conflict")
		}
		return repository.LedgerMovement{}, err
	}
	s.Log.Info().Str("instance_id", instanceID).Str("movement_id", out.ID).Int64("amount", out.Amount).Msg("instance settled")
	return out, nil
}

func loadTarget(ctx context.Context, tx *sql.Tx, kind domain.OriginKind, id string) (*repository.SettlementTarget, error) {
	if kind == domain.OriginCardPurchase {
		return repository.NewCardRepo(tx).GetInstallmentTarget(ctx, id)
	}
	return repository.NewScheduleRepo(tx).GetTarget(ctx, kind, id)
}

func settledStatus(kind domain.OriginKind, receivable bool) domain.ScheduleStatus {
	switch kind {
	case domain.OriginCommitment:
		return domain.StatusRealized
	case domain.OriginContract:
		if receivable {
			return domain.StatusReceived
		}
	}
	return domain.StatusPaid
}

// CancelParent soft-cancels a commitment, contract or card purchase and
// cascades the cancellation onto instances still planned. Settled instances
// are left untouched. It returns the number of instances cancelled.
func (s *SettlementService) CancelParent(ctx context.Context, origin domain.ScheduleOrigin) (int64, error) {
	var cancelled int64
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if origin.Kind == domain.OriginCardPurchase {
			cards := repository.NewCardRepo(tx)
			exists, err := cards.PurchaseExists(ctx, origin.ParentID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.NotFound("card_purchase", origin.ParentID)
			}
			changed, n, err := cards.CancelPurchase(ctx, origin.ParentID)
			if err != nil {
				return err
			}
			if !changed {
				return domain.Errorf(domain.KindInvalidStateTransition, "status", "purchase %s already cancelled", origin.ParentID)
			}
			cancelled = n
			return nil
		}

		status, err := parentStatus(ctx, tx, origin)
		if err != nil {
			return err
		}
		if status == domain.ParentCancelled {
			return domain.Errorf(domain.KindInvalidStateTransition, "status", "%s already cancelled", origin)
		}
		if origin.Kind == domain.OriginCommitment {
			_, err = repository.NewCommitmentRepo(tx).SetStatus(ctx, origin.ParentID, domain.ParentCancelled)
		} else {
			_, err = repository.NewContractRepo(tx).SetStatus(ctx, origin.ParentID, domain.ParentCancelled)
		}
		if err != nil {
			return err
		}
		cancelled, err = repository.NewScheduleRepo(tx).CancelPlanned(ctx, origin)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.Log.Info().Str("origin", origin.String()).Int64("cancelled", cancelled).Msg("parent cancelled")
	return cancelled, nil
}

// DeleteParent hard-deletes a commitment or contract with its instances.
// Deletion is refused once any instance has been settled.
func (s *SettlementService) DeleteParent(ctx context.Context, origin domain.ScheduleOrigin) error {
	if origin.Kind == domain.OriginCardPurchase {
		return domain.InvalidArgument("origin", "card purchases can only be cancelled")
	}
	return database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := parentStatus(ctx, tx, origin); err != nil {
			return err
		}
		schedules := repository.NewScheduleRepo(tx)
		settled, err := schedules.CountSettled(ctx, origin)
		if err != nil {
			return err
		}
		if settled > 0 {
			return domain.Errorf(domain.KindGovernanceViolation, "id",
				"%s has %d realized instances; cancel it instead", origin, settled)
		}
		if err := schedules.DeleteByParent(ctx, origin); err != nil {
			return err
		}
		if origin.Kind == domain.OriginCommitment {
			return repository.NewCommitmentRepo(tx).Delete(ctx, origin.ParentID)
		}
		return repository.NewContractRepo(tx).Delete(ctx, origin.ParentID)
	})
}

func parentStatus(ctx context.Context, tx *sql.Tx, origin domain.ScheduleOrigin) (domain.ParentStatus, error) {
	switch origin.Kind {
	case domain.OriginCommitment:
		c, err := repository.NewCommitmentRepo(tx).Get(ctx, origin.ParentID)
		if err != nil {
			return "", err
		}
		if c == nil {
			return "", domain.NotFound("commitment", origin.ParentID)
		}
		return c.Status, nil
	case domain.OriginContract:
		c, err := repository.NewContractRepo(tx).Get(ctx, origin.ParentID)
		if err != nil {
			return "", err
		}
		if c == nil {
			return "", domain.NotFound("contract", origin.ParentID)
		}
		return c.Status, nil
	}
	return "", domain.InvalidArgument("origin", "unknown origin %q", origin.Kind)
}
