// Package schedule turns commitment, contract and card-purchase declarations
// into dated cash events. Everything here is pure: the caller persists the
// parent and its instances in one transaction.
package schedule

import (
	"sort"
	"time"

	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
)

// DefaultRecurringCap bounds open-ended recurring plans.
const DefaultRecurringCap = 12

// PlanKind selects the generation strategy.
type PlanKind string

const (
	PlanSingle       PlanKind = "single"
	PlanRecurring    PlanKind = "recurring"
	PlanInstallments PlanKind = "installments"
	PlanCustom       PlanKind = "custom"
)

// DatedAmount is one caller-supplied custom instance.
type DatedAmount struct {
	Date   time.Time
	Amount int64
}

// Plan describes what to generate. Amounts are positive minor units; the
// caller applies the direction sign when persisting.
type Plan struct {
	Kind PlanKind

	// single, recurring, installments
	StartDate time.Time

	// single, installments, custom
	TotalAmount int64

	// recurring
	MonthlyAmount int64
	EndDate       *time.Time
	StepMonths    int // 1 when zero

	// installments
	EntryAmount      int64
	InstallmentCount int
	IntervalDays     int

	// custom
	Dates []DatedAmount
}

// Instance is one generated due date and amount.
type Instance struct {
	Seq     int
	DueDate time.Time
	Amount  int64
}

// Generator holds generation policy.
type Generator struct {
	// RecurringCap is how many instances an open-ended recurring plan yields.
	RecurringCap int
}

// NewGenerator returns a Generator with the default recurring cap.
func NewGenerator() *Generator {
	return &Generator{RecurringCap: DefaultRecurringCap}
}

// Generate dispatches on the plan kind and returns the plan total with its
// instances ordered by due date.
func (g *Generator) Generate(p Plan) (int64, []Instance, error) {
	var (
		total int64
		out   []Instance
		err   error
	)
	switch p.Kind {
	case PlanSingle:
		total, out, err = single(p)
	case PlanRecurring:
		total, out, err = g.recurring(p)
	case PlanInstallments:
		total, out, err = installments(p)
	case PlanCustom:
		total, out, err = custom(p)
	default:
		return 0, nil, domain.InvalidArgument("kind", "unknown plan kind %q", p.Kind)
	}
	if err != nil {
		return 0, nil, err
	}
	if len(out) == 0 {
		return 0, nil, domain.InvalidArgument("plan", "no instances generated")
	}
	for i := range out {
		out[i].Seq = i + 1
	}
	return total, out, nil
}

func single(p Plan) (int64, []Instance, error) {
	if p.TotalAmount <= 0 {
		return 0, nil, domain.InvalidArgument("total_amount", "must be positive")
	}
	if p.StartDate.IsZero() {
		return 0, nil, domain.InvalidArgument("start_date", "required")
	}
	return p.TotalAmount, []Instance{{DueDate: money.DateOnly(p.StartDate), Amount: p.TotalAmount}}, nil
}

func (g *Generator) recurring(p Plan) (int64, []Instance, error) {
	if p.MonthlyAmount <= 0 {
		return 0, nil, domain.InvalidArgument("monthly_amount", "must be positive")
	}
	if p.StartDate.IsZero() {
		return 0, nil, domain.InvalidArgument("start_date", "required")
	}
	step := p.StepMonths
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return 0, nil, domain.InvalidArgument("step_months", "must be positive")
	}
	limit := g.RecurringCap
	if limit <= 0 {
		limit = DefaultRecurringCap
	}

	start := money.DateOnly(p.StartDate)
	startMonth := money.MonthOf(start)
	var months []money.YearMonth
	if p.EndDate != nil {
		end := money.DateOnly(*p.EndDate)
		if end.Before(start) {
			return 0, nil, domain.InvalidArgument("end_date", "end %s is before start %s",
				end.Format(money.DateLayout), start.Format(money.DateLayout))
		}
		for i, m := range money.GenerateMonthlySequence(start, end) {
			if i%step == 0 {
				months = append(months, m)
			}
		}
	} else {
		for i := 0; i < limit; i++ {
			months = append(months, money.StepMonths(startMonth, i*step))
		}
	}

	out := make([]Instance, 0, len(months))
	for _, m := range months {
		out = append(out, Instance{DueDate: m.Day(start.Day()), Amount: p.MonthlyAmount})
	}
	return p.MonthlyAmount * int64(len(out)), out, nil
}

func installments(p Plan) (int64, []Instance, error) {
	if p.TotalAmount <= 0 {
		return 0, nil, domain.InvalidArgument("total_amount", "must be positive")
	}
	if p.EntryAmount < 0 {
		return 0, nil, domain.InvalidArgument("entry_amount", "must not be negative")
	}
	if p.EntryAmount > p.TotalAmount {
		return 0, nil, domain.InvalidArgument("entry_amount", "entry %d exceeds total %d", p.EntryAmount, p.TotalAmount)
	}
	if p.InstallmentCount < 1 {
		return 0, nil, domain.InvalidArgument("installment_count", "must be >= 1")
	}
	if p.IntervalDays < 1 {
		return 0, nil, domain.InvalidArgument("interval_days", "must be >= 1")
	}
	if p.StartDate.IsZero() {
		return 0, nil, domain.InvalidArgument("start_date", "required")
	}
	base := money.DateOnly(p.StartDate)

	var out []Instance
	if p.EntryAmount > 0 {
		out = append(out, Instance{DueDate: base, Amount: p.EntryAmount})
	}
	remaining := p.TotalAmount - p.EntryAmount
	if remaining == 0 {
		return p.TotalAmount, out, nil
	}
	parts, err := money.SplitExact(remaining, p.InstallmentCount)
	if err != nil {
		return 0, nil, err
	}
	for k, amount := range parts {
		out = append(out, Instance{
			DueDate: base.AddDate(0, 0, (k+1)*p.IntervalDays),
			Amount:  amount,
		})
	}
	return p.TotalAmount, out, nil
}

func custom(p Plan) (int64, []Instance, error) {
	if len(p.Dates) == 0 {
		return 0, nil, domain.InvalidArgument("dates", "at least one date required")
	}
	out := make([]Instance, 0, len(p.Dates))
	var sum int64
	for _, d := range p.Dates {
		if d.Date.IsZero() {
			return 0, nil, domain.InvalidArgument("dates", "missing date")
		}
		if d.Amount <= 0 {
			return 0, nil, domain.InvalidArgument("dates", "amount on %s must be positive", d.Date.Format(money.DateLayout))
		}
		sum += d.Amount
		out = append(out, Instance{DueDate: money.DateOnly(d.Date), Amount: d.Amount})
	}
	if sum != p.TotalAmount {
		return 0, nil, domain.Errorf(domain.KindAmountMismatch, "dates", "instances sum to %d, declared total is %d", sum, p.TotalAmount)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return sum, out, nil
}
