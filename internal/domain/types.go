// Package domain holds the shared vocabulary of the planning and
// reconciliation engine: directions, statuses, schedule origins and errors.
package domain

import "fmt"

// Direction of a commitment.
type Direction string

const (
	Expense Direction = "expense"
	Revenue Direction = "revenue"
)

// ContractKind is the contract analog of Direction.
type ContractKind string

const (
	Payable    ContractKind = "payable"
	Receivable ContractKind = "receivable"
)

// Sign returns +1 for money coming in and -1 for money going out.
func (d Direction) Sign() int64 {
	if d == Revenue {
		return 1
	}
	return -1
}

func (d Direction) Valid() bool { return d == Expense || d == Revenue }

func (k ContractKind) Sign() int64 {
	if k == Receivable {
		return 1
	}
	return -1
}

func (k ContractKind) Valid() bool { return k == Payable || k == Receivable }

// RecurrenceKind of a commitment.
type RecurrenceKind string

const (
	RecurrenceNone      RecurrenceKind = "none"
	RecurrenceMonthly   RecurrenceKind = "monthly"
	RecurrenceQuarterly RecurrenceKind = "quarterly"
	RecurrenceYearly    RecurrenceKind = "yearly"
	RecurrenceCustom    RecurrenceKind = "custom"
)

func (r RecurrenceKind) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceMonthly, RecurrenceQuarterly, RecurrenceYearly, RecurrenceCustom:
		return true
	}
	return false
}

// StepMonths is the month stride of a recurring kind, 0 for non-recurring kinds.
func (r RecurrenceKind) StepMonths() int {
	switch r {
	case RecurrenceMonthly:
		return 1
	case RecurrenceQuarterly:
		return 3
	case RecurrenceYearly:
		return 12
	}
	return 0
}

// ParentStatus is the lifecycle of a commitment or contract.
type ParentStatus string

const (
	ParentPlanned   ParentStatus = "planned"
	ParentActive    ParentStatus = "active"
	ParentCompleted ParentStatus = "completed"
	ParentCancelled ParentStatus = "cancelled"
)

// ScheduleStatus is the lifecycle of a schedule instance or installment.
type ScheduleStatus string

const (
	StatusPlanned   ScheduleStatus = "planned"
	StatusRealized  ScheduleStatus = "realized"
	StatusReceived  ScheduleStatus = "received"
	StatusPaid      ScheduleStatus = "paid"
	StatusCancelled ScheduleStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s ScheduleStatus) Terminal() bool { return s != StatusPlanned }

// Settled reports a terminal success state.
func (s ScheduleStatus) Settled() bool {
	return s == StatusRealized || s == StatusReceived || s == StatusPaid
}

// Transition validates a move from s to next.
func (s ScheduleStatus) Transition(next ScheduleStatus) error {
	if s.Terminal() {
		return Errorf(KindInvalidStateTransition, "status", "%s -> %s", s, next)
	}
	if next == StatusPlanned {
		return Errorf(KindInvalidStateTransition, "status", "%s -> %s", s, next)
	}
	return nil
}

// OriginKind tags which parent family a schedule instance belongs to.
type OriginKind string

const (
	OriginCommitment   OriginKind = "commitment"
	OriginContract     OriginKind = "contract"
	OriginCardPurchase OriginKind = "card_purchase"
)

// SourceType is the ledger movement source tag for instances of this origin.
func (k OriginKind) SourceType() string {
	switch k {
	case OriginCommitment:
		return "commitment_schedule"
	case OriginContract:
		return "contract_schedule"
	case OriginCardPurchase:
		return "card_installment"
	}
	return ""
}

// OriginFromSourceType is the inverse of OriginKind.SourceType.
func OriginFromSourceType(s string) (OriginKind, error) {
	switch s {
	case "commitment_schedule":
		return OriginCommitment, nil
	case "contract_schedule":
		return OriginContract, nil
	case "card_installment":
		return OriginCardPurchase, nil
	}
	return "", InvalidArgument("source_type", "unknown source type %q", s)
}

// ScheduleOrigin identifies the parent of a schedule instance explicitly
// instead of inferring it from which foreign key is set.
type ScheduleOrigin struct {
	Kind     OriginKind
	ParentID string
}

func CommitmentOrigin(id string) ScheduleOrigin {
	return ScheduleOrigin{Kind: OriginCommitment, ParentID: id}
}

func ContractOrigin(id string) ScheduleOrigin {
	return ScheduleOrigin{Kind: OriginContract, ParentID: id}
}

func CardPurchaseOrigin(id string) ScheduleOrigin {
	return ScheduleOrigin{Kind: OriginCardPurchase, ParentID: id}
}

func (o ScheduleOrigin) String() string { return fmt.Sprintf("%s(%s)", o.Kind, o.ParentID) }

// MatchType of a reconciliation link.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchHeuristic MatchType = "heuristic"
	MatchManual    MatchType = "manual"
)

func (m MatchType) Valid() bool {
	return m == MatchExact || m == MatchHeuristic || m == MatchManual
}

// ExternalDirection is the bank feed's direction flag.
type ExternalDirection string

const (
	DirectionIn  ExternalDirection = "in"
	DirectionOut ExternalDirection = "out"
)

// Sign returns +1 for "in" and -1 for "out".
func (d ExternalDirection) Sign() int64 {
	if d == DirectionIn {
		return 1
	}
	return -1
}
