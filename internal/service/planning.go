package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
	"github.com/jask/ledgerflow/internal/schedule"
)

// PlanningService declares commitments, contracts and card purchases and
// persists each parent together with its generated schedule.
type PlanningService struct {
	DB        *sql.DB
	Generator *schedule.Generator
	Log       zerolog.Logger
}

// CommitmentInput declares a commitment. The schedule plan is derived from
// Recurrence unless Plan is set explicitly (installments or custom dates).
type CommitmentInput struct {
	EntityID    string
	AccountID   *string
	Direction   domain.Direction
	Description string
	Category    *string
	Currency    string
	StartDate   time.Time
	EndDate     *time.Time
	Recurrence  domain.RecurrenceKind
	// Amount is the total for non-recurring kinds and the per-period amount
	// for monthly, quarterly and yearly recurrences.
	Amount int64
	Plan   *schedule.Plan
}

// ContractInput declares a contract. Plan is required.
type ContractInput struct {
	EntityID     string
	AccountID    *string
	Counterparty string
	Kind         domain.ContractKind
	Description  string
	Currency     string
	Plan         schedule.Plan
}

// PurchaseInput declares a card purchase.
type PurchaseInput struct {
	CardID           string
	Description      string
	PurchaseDate     time.Time
	TotalAmount      int64
	InstallmentCount int
}

func (s *PlanningService) generator() *schedule.Generator {
	if s.Generator == nil {
		return schedule.NewGenerator()
	}
	return s.Generator
}

func commitmentPlan(in CommitmentInput) (schedule.Plan, error) {
	if in.Plan != nil {
		p := *in.Plan
		if p.StartDate.IsZero() {
			p.StartDate = in.StartDate
		}
		return p, nil
	}
	switch in.Recurrence {
	case domain.RecurrenceNone:
		return schedule.Plan{Kind: schedule.PlanSingle, StartDate: in.StartDate, TotalAmount: in.Amount}, nil
	case domain.RecurrenceMonthly, domain.RecurrenceQuarterly, domain.RecurrenceYearly:
		return schedule.Plan{
			Kind:          schedule.PlanRecurring,
			StartDate:     in.StartDate,
			EndDate:       in.EndDate,
			MonthlyAmount: in.Amount,
			StepMonths:    in.Recurrence.StepMonths(),
		}, nil
	case domain.RecurrenceCustom:
		return schedule.Plan{}, domain.InvalidArgument("plan", "custom recurrence requires an explicit plan")
	}
	return schedule.Plan{}, domain.InvalidArgument("recurrence", "unknown recurrence %q", in.Recurrence)
}

// CreateCommitment generates the schedule and writes the commitment and all
// its instances in one transaction.
func (s *PlanningService) CreateCommitment(ctx context.Context, in CommitmentInput) (repository.Commitment, []repository.ScheduleInstance, error) {
	if !in.Direction.Valid() {
		return repository.Commitment{}, nil, domain.InvalidArgument("direction", "must be expense or revenue")
	}
	if in.EntityID == "" {
		return repository.Commitment{}, nil, domain.InvalidArgument("entity_id", "required")
	}
	plan, err := commitmentPlan(in)
	if err != nil {
		return repository.Commitment{}, nil, err
	}
	total, generated, err := s.generator().Generate(plan)
	if err != nil {
		return repository.Commitment{}, nil, err
	}
	if len(generated) == 0 {
		return repository.Commitment{}, nil, domain.InvalidArgument("plan", "no instances generated")
	}

	c := repository.Commitment{
		ID:          uuid.NewString(),
		EntityID:    in.EntityID,
		AccountID:   in.AccountID,
		Direction:   in.Direction,
		Description: in.Description,
		Category:    in.Category,
		TotalAmount: total,
		Currency:    currencyOrDefault(in.Currency),
		StartDate:   money.DateOnly(in.StartDate),
		EndDate:     in.EndDate,
		Recurrence:  in.Recurrence,
		Status:      domain.ParentPlanned,
	}
	if c.StartDate.IsZero() || plan.Kind == schedule.PlanCustom {
		c.StartDate = generated[0].DueDate
	}
	instances := toInstances(domain.CommitmentOrigin(c.ID), in.Direction.Sign(), generated)

	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := repository.NewCommitmentRepo(tx).Insert(ctx, c); err != nil {
			return fmt.Errorf("insert commitment: %w", err)
		}
		return repository.NewScheduleRepo(tx).InsertBatch(ctx, instances)
	})
	if err != nil {
		return repository.Commitment{}, nil, err
	}
	s.Log.Info().Str("commitment_id", c.ID).Int("instances", len(instances)).Int64("total", total).Msg("commitment created")
	return c, instances, nil
}

// CreateContract generates the schedule and writes the contract and all its
// instances in one transaction.
func (s *PlanningService) CreateContract(ctx context.Context, in ContractInput) (repository.Contract, []repository.ScheduleInstance, error) {
	if !in.Kind.Valid() {
		return repository.Contract{}, nil, domain.InvalidArgument("kind", "must be payable or receivable")
	}
	if in.EntityID == "" {
		return repository.Contract{}, nil, domain.InvalidArgument("entity_id", "required")
	}
	if in.Counterparty == "" {
		return repository.Contract{}, nil, domain.InvalidArgument("counterparty", "required")
	}
	total, generated, err := s.generator().Generate(in.Plan)
	if err != nil {
		return repository.Contract{}, nil, err
	}
	if len(generated) == 0 {
		return repository.Contract{}, nil, domain.InvalidArgument("plan", "no instances generated")
	}
	c := repository.Contract{
		ID:           uuid.NewString(),
		EntityID:     in.EntityID,
		AccountID:    in.AccountID,
		Counterparty: in.Counterparty,
		Kind:         in.Kind,
		Description:  in.Description,
		TotalAmount:  total,
		Currency:     currencyOrDefault(in.Currency),
		StartDate:    generated[0].DueDate,
		EndDate:      &generated[len(generated)-1].DueDate,
		Status:       domain.ParentPlanned,
	}
	instances := toInstances(domain.ContractOrigin(c.ID), in.Kind.Sign(), generated)

	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := repository.NewContractRepo(tx).Insert(ctx, c); err != nil {
			return fmt.Errorf("insert contract: %w", err)
		}
		return repository.NewScheduleRepo(tx).InsertBatch(ctx, instances)
	})
	if err != nil {
		return repository.Contract{}, nil, err
	}
	s.Log.Info().Str("contract_id", c.ID).Int("instances", len(instances)).Int64("total", total).Msg("contract created")
	return c, instances, nil
}

// CreatePurchase splits a card purchase into installments by statement cycle.
func (s *PlanningService) CreatePurchase(ctx context.Context, in PurchaseInput) (repository.CardPurchase, []repository.Installment, error) {
	card, err := repository.NewCardRepo(s.DB).GetCard(ctx, in.CardID)
	if err != nil {
		return repository.CardPurchase{}, nil, err
	}
	if card == nil {
		return repository.CardPurchase{}, nil, domain.NotFound("card", in.CardID)
	}
	generated, err := schedule.CardInstallments(in.PurchaseDate, in.TotalAmount, in.InstallmentCount,
		schedule.CardCycle{ClosingDay: card.ClosingDay, DueDay: card.DueDay})
	if err != nil {
		return repository.CardPurchase{}, nil, err
	}
	p := repository.CardPurchase{
		ID:               uuid.NewString(),
		CardID:           card.ID,
		Description:      in.Description,
		PurchaseDate:     money.DateOnly(in.PurchaseDate),
		TotalAmount:      in.TotalAmount,
		InstallmentCount: in.InstallmentCount,
		Status:           domain.ParentActive,
	}
	installments := make([]repository.Installment, 0, len(generated))
	for _, g := range generated {
		installments = append(installments, repository.Installment{
			ID:              uuid.NewString(),
			PurchaseID:      p.ID,
			Index:           g.Index,
			CompetenceMonth: g.CompetenceMonth.String(),
			DueDate:         g.DueDate,
			Amount:          -g.Amount,
			Status:          domain.StatusPlanned,
		})
	}
	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		cards := repository.NewCardRepo(tx)
		if err := cards.InsertPurchase(ctx, p); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		return cards.InsertInstallments(ctx, installments)
	})
	if err != nil {
		return repository.CardPurchase{}, nil, err
	}
	return p, installments, nil
}

// CommitmentUpdate carries the mutable fields of a commitment. Amount and
// StartDate, when set, must match the stored values.
type CommitmentUpdate struct {
	Description *string
	Category    *string
	EndDate     *time.Time
	Recurrence  *domain.RecurrenceKind
	Amount      *int64
	StartDate   *time.Time
}

// UpdateCommitment changes non-financial fields. Changing the amount or the
// start date of an existing commitment is a governance violation.
func (s *PlanningService) UpdateCommitment(ctx context.Context, id string, u CommitmentUpdate) (repository.Commitment, error) {
	if u.Recurrence != nil && !u.Recurrence.Valid() {
		return repository.Commitment{}, domain.InvalidArgument("recurrence", "unknown recurrence %q", *u.Recurrence)
	}
	var out repository.Commitment
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		repo := repository.NewCommitmentRepo(tx)
		c, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.NotFound("commitment", id)
		}
		if u.Amount != nil && *u.Amount != c.TotalAmount {
			return domain.Errorf(domain.KindGovernanceViolation, "total_amount", "amount is immutable after creation")
		}
		if u.StartDate != nil && !money.DateOnly(*u.StartDate).Equal(c.StartDate) {
			return domain.Errorf(domain.KindGovernanceViolation, "start_date", "start date is immutable after creation")
		}
		if u.Description != nil {
			c.Description = *u.Description
		}
		if u.Category != nil {
			c.Category = u.Category
		}
		if u.EndDate != nil {
			c.EndDate = u.EndDate
		}
		if u.Recurrence != nil {
			c.Recurrence = *u.Recurrence
		}
		if err := repo.UpdateDetails(ctx, *c); err != nil {
			return err
		}
		out = *c
		return nil
	})
	return out, err
}

func toInstances(origin domain.ScheduleOrigin, sign int64, generated []schedule.Instance) []repository.ScheduleInstance {
	out := make([]repository.ScheduleInstance, 0, len(generated))
	for _, g := range generated {
		out = append(out, repository.ScheduleInstance{
			ID:      uuid.NewString(),
			Origin:  origin,
			Seq:     g.Seq,
			DueDate: g.DueDate,
			Amount:  sign * g.Amount,
			Status:  domain.StatusPlanned,
		})
	}
	return out
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "BRL"
	}
	return c
}
