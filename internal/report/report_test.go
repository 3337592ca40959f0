package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
	"github.com/jask/ledgerflow/internal/service"
)

func TestAmount(t *testing.T) {
	t.Parallel()

	require.Equal(t, "R$ -1203.92", Renderer{CurrencySymbol: "R$"}.Amount(-120392))
	require.Equal(t, "0.05", Renderer{}.Amount(5))
}

func TestMatrix(t *testing.T) {
	t.Parallel()

	jan := money.YearMonth{Year: 2024, Month: 1}
	feb := money.YearMonth{Year: 2024, Month: 2}
	m := service.Matrix{
		Months: []service.MonthEntry{
			{Month: jan, PlannedExpense: 20000, PlannedNet: -20000, PlannedCum: -20000, PlannedCumAdj: 80000, RealisedCumAdj: 100000},
			{Month: feb, PlannedIncome: 30000, PlannedNet: 30000, PlannedCum: 10000, PlannedCumAdj: 110000, RealisedCumAdj: 100000},
		},
		Meta: service.MatrixMeta{
			From: jan, To: feb, OpeningBalance: 100000, WorstMonth: jan, WorstValue: 100000,
			SkippedOrphans: []string{"x"},
		},
	}
	out := Renderer{CurrencySymbol: "R$"}.Matrix(m)
	require.Contains(t, out, "Cash flow 2024-01 .. 2024-02")
	require.Contains(t, out, "2024-02")
	require.Contains(t, out, "R$ 800.00")
	require.Contains(t, out, "R$ 1100.00")
	require.Contains(t, out, "Worst point")
	require.Contains(t, out, "(2024-01)")
	require.Contains(t, out, "1 schedule rows skipped")
	// title, header, two months, blank, two summary lines, warning
	require.Len(t, strings.Split(out, "\n"), 8)
}

func TestSuggestionsAndTransactions(t *testing.T) {
	t.Parallel()

	r := Renderer{}
	ext := repository.ExternalTransaction{
		ID: "e1", ExternalID: "bank-1", PostedDate: money.Date(2024, 1, 10),
		Amount: 15000, Direction: domain.DirectionOut, RawDescription: "PIX ALUGUEL",
	}
	out := r.Suggestions(ext, nil)
	require.Contains(t, out, "-150.00")
	require.Contains(t, out, "no candidates")

	out = r.Suggestions(ext, []service.Suggestion{{
		Movement:   repository.LedgerMovement{ID: "m1", Date: ext.PostedDate, Amount: -15000, Description: strings.Repeat("x", 80)},
		Confidence: 0.9,
		Evidence:   domain.Evidence{Similarity: 0.6},
	}})
	require.Contains(t, out, "0.90")
	require.Contains(t, out, "m1")
	require.Contains(t, out, "…")

	require.Contains(t, r.Transactions(nil), "nothing to reconcile")
	list := r.Transactions([]repository.ExternalTransaction{ext})
	require.Contains(t, list, "1 unreconciled")
	require.Contains(t, list, "e1")
}
