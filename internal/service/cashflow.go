package service

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
)

// MonthEntry is one row of the cash-flow matrix. Income and expense fields
// are non-negative magnitudes; nets and cumulative values are signed.
type MonthEntry struct {
	Month money.YearMonth

	PlannedIncome  int64
	PlannedExpense int64
	PlannedNet     int64

	RealisedIncome  int64
	RealisedExpense int64
	RealisedNet     int64

	PlannedCum     int64
	RealisedCum    int64
	PlannedCumAdj  int64
	RealisedCumAdj int64
}

// MatrixMeta describes how a matrix was produced.
type MatrixMeta struct {
	From           money.YearMonth
	To             money.YearMonth
	OpeningBalance int64
	// WorstMonth is the earliest month holding the minimum RealisedCumAdj.
	WorstMonth money.YearMonth
	WorstValue int64
	Instances  int
	// SkippedOrphans lists schedule ids whose parent could not be found.
	SkippedOrphans []string
}

// Matrix is the monthly planned-vs-realised cash-flow view.
type Matrix struct {
	Months []MonthEntry
	Meta   MatrixMeta
}

// CashflowService computes the monthly matrix. It never writes.
type CashflowService struct {
	Schedules *repository.ScheduleRepo
	Accounts  *repository.AccountRepo
	Log       zerolog.Logger
}

func NewCashflowService(db *sql.DB, log zerolog.Logger) *CashflowService {
	return &CashflowService{
		Schedules: repository.NewScheduleRepo(db),
		Accounts:  repository.NewAccountRepo(db),
		Log:       log,
	}
}

// MonthlyMatrix fetches the schedule rows of [from, to] and the opening
// balance as of the day before from, then folds them into the matrix.
func (s *CashflowService) MonthlyMatrix(ctx context.Context, from, to money.YearMonth, scope domain.Scope) (Matrix, error) {
	if to.Before(from) {
		return Matrix{}, domain.InvalidArgument("to", "%s is before %s", to, from)
	}

	var (
		rows    []repository.ScheduleRow
		opening int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.Schedules.ListWindow(gctx, from.FirstDay(), to.LastDay(), scope)
		return err
	})
	g.Go(func() error {
		var err error
		opening, err = s.Accounts.ConsolidatedBalance(gctx, from.FirstDay().AddDate(0, 0, -1), scope.EntityIDs, scope.AccountIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return Matrix{}, err
	}

	m := BuildMatrix(from, to, rows, opening)
	for _, id := range m.Meta.SkippedOrphans {
		s.Log.Warn().Str("schedule_id", id).Msg("skipping schedule with missing parent")
	}
	return m, nil
}

// BuildMatrix folds schedule rows into per-month buckets. Cancelled rows
// and rows outside the window are ignored; orphaned rows are skipped and
// reported in the metadata.
func BuildMatrix(from, to money.YearMonth, rows []repository.ScheduleRow, opening int64) Matrix {
	months := money.MonthRange(from, to)
	entries := make([]MonthEntry, len(months))
	for i, ym := range months {
		entries[i].Month = ym
	}
	meta := MatrixMeta{From: from, To: to, OpeningBalance: opening}

	for _, r := range rows {
		if !r.ParentFound {
			meta.SkippedOrphans = append(meta.SkippedOrphans, r.ID)
			continue
		}
		if r.Status == domain.StatusCancelled {
			continue
		}
		i := money.MonthsBetween(from, money.MonthOf(r.DueDate))
		if i < 0 || i >= len(entries) {
			continue
		}
		meta.Instances++
		e := &entries[i]
		amount := money.Abs(r.Amount)
		realised := r.Status.Settled() || r.MovementID != nil
		switch {
		case realised && r.Sign > 0:
			e.RealisedIncome += amount
		case realised:
			e.RealisedExpense += amount
		case r.Sign > 0:
			e.PlannedIncome += amount
		default:
			e.PlannedExpense += amount
		}
	}

	var plannedCum, realisedCum int64
	for i := range entries {
		e := &entries[i]
		e.PlannedNet = e.PlannedIncome - e.PlannedExpense
		e.RealisedNet = e.RealisedIncome - e.RealisedExpense
		plannedCum += e.PlannedNet
		realisedCum += e.RealisedNet
		e.PlannedCum = plannedCum
		e.RealisedCum = realisedCum
		e.PlannedCumAdj = opening + plannedCum
		e.RealisedCumAdj = opening + realisedCum

		if i == 0 || e.RealisedCumAdj < meta.WorstValue {
			meta.WorstMonth = e.Month
			meta.WorstValue = e.RealisedCumAdj
		}
	}
	return Matrix{Months: entries, Meta: meta}
}
