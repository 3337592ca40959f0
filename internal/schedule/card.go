package schedule

import (
	"time"

	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
)

// CardCycle is a card's statement cycle.
type CardCycle struct {
	ClosingDay int
	DueDay     int
}

// Validate checks both days are in [1,28].
func (c CardCycle) Validate() error {
	if c.ClosingDay < 1 || c.ClosingDay > 28 {
		return domain.InvalidArgument("closing_day", "must be in [1,28], got %d", c.ClosingDay)
	}
	if c.DueDay < 1 || c.DueDay > 28 {
		return domain.InvalidArgument("due_day", "must be in [1,28], got %d", c.DueDay)
	}
	return nil
}

// DueDate is the payment date of a statement. A due day after the closing
// day is paid within the statement month, otherwise in the month after.
func (c CardCycle) DueDate(statement money.YearMonth) time.Time {
	if c.DueDay > c.ClosingDay {
		return statement.Day(c.DueDay)
	}
	return money.StepMonths(statement, 1).Day(c.DueDay)
}

// CardInstallment is the card-domain schedule instance.
type CardInstallment struct {
	Index           int
	CompetenceMonth money.YearMonth
	DueDate         time.Time
	Amount          int64
}

// CardInstallments splits a purchase total across count statements, starting
// at the statement the purchase date falls into.
func CardInstallments(purchaseDate time.Time, total int64, count int, cycle CardCycle) ([]CardInstallment, error) {
	if err := cycle.Validate(); err != nil {
		return nil, err
	}
	if purchaseDate.IsZero() {
		return nil, domain.InvalidArgument("purchase_date", "required")
	}
	parts, err := money.SplitExact(total, count)
	if err != nil {
		return nil, err
	}
	first := money.ResolveStatementMonth(purchaseDate, cycle.ClosingDay)
	out := make([]CardInstallment, 0, count)
	for k, amount := range parts {
		month := money.StepMonths(first, k)
		out = append(out, CardInstallment{
			Index:           k + 1,
			CompetenceMonth: month,
			DueDate:         cycle.DueDate(month),
			Amount:          amount,
		})
	}
	return out, nil
}
