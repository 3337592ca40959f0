package repository

import (
	"time"

	"github.com/jask/ledgerflow/internal/domain"
)

// Entity represents an owning entity (company, household, person).
type Entity struct {
	ID   string
	Name string
}

// Account represents an account row.
type Account struct {
	ID             string
	EntityID       string
	Name           string
	AccountType    string
	OpeningBalance int64
	Active         bool
	CreatedAt      time.Time
}

// Commitment represents a declared obligation.
type Commitment struct {
	ID          string
	EntityID    string
	AccountID   *string
	Direction   domain.Direction
	Description string
	Category    *string
	TotalAmount int64
	Currency    string
	StartDate   time.Time
	EndDate     *time.Time
	Recurrence  domain.RecurrenceKind
	Status      domain.ParentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contract represents an obligation with a named counterparty.
type Contract struct {
	ID           string
	EntityID     string
	AccountID    *string
	Counterparty string
	Kind         domain.ContractKind
	Description  string
	TotalAmount  int64
	Currency     string
	StartDate    time.Time
	EndDate      *time.Time
	Status       domain.ParentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScheduleInstance is a commitment or contract schedule row. Amount is
// signed by the parent's direction.
type ScheduleInstance struct {
	ID         string
	Origin     domain.ScheduleOrigin
	Seq        int
	DueDate    time.Time
	Amount     int64
	Status     domain.ScheduleStatus
	MovementID *string
}

// ScheduleRow is a schedule instance joined with its parent for
// aggregation. ParentFound is false for orphaned rows.
type ScheduleRow struct {
	ScheduleInstance
	ParentFound bool
	Sign        int64
	EntityID    string
	AccountID   *string
}

// SettlementTarget is an instance with the parent facts settlement needs.
type SettlementTarget struct {
	ID       string
	Origin   domain.ScheduleOrigin
	Status   domain.ScheduleStatus
	Amount   int64
	DueDate  time.Time
	EntityID string
	// Receivable is true when a settled instance means money came in.
	Receivable bool
}

// Card is a credit card with its statement cycle.
type Card struct {
	ID         string
	EntityID   string
	AccountID  *string
	Name       string
	ClosingDay int
	DueDay     int
}

// CardPurchase is a purchase split into installments.
type CardPurchase struct {
	ID               string
	CardID           string
	Description      string
	PurchaseDate     time.Time
	TotalAmount      int64
	InstallmentCount int
	Status           domain.ParentStatus
}

// Installment is one card statement share of a purchase. Amount is negative.
type Installment struct {
	ID              string
	PurchaseID      string
	Index           int
	CompetenceMonth string
	DueDate         time.Time
	Amount          int64
	Status          domain.ScheduleStatus
	MovementID      *string
}

// LedgerMovement is a realized money movement. Amount is positive for money
// in and negative for money out.
type LedgerMovement struct {
	ID          string
	EntityID    string
	AccountID   string
	Amount      int64
	Date        time.Time
	Description string
	SourceType  *string
	SourceID    *string
	CreatedAt   time.Time
}

// ExternalTransaction is an ingested bank record. Amount is never negative.
type ExternalTransaction struct {
	ID                    string
	AccountID             string
	EntityID              string
	ExternalID            string
	PostedDate            time.Time
	Amount                int64
	Direction             domain.ExternalDirection
	RawDescription        string
	NormalizedDescription string
	Balance               *int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ReconciliationLink ties an external transaction to a ledger movement.
type ReconciliationLink struct {
	ID                    string
	ExternalTransactionID string
	MovementID            string
	MatchType             domain.MatchType
	Confidence            float64
	Evidence              domain.Evidence
	CreatedAt             time.Time
}
