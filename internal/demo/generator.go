// Package demo seeds a database with a small, reproducible household: a few
// monthly commitments, one receivable contract and a bank statement for the
// first month so that suggestions have something to match.
package demo

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
	"github.com/jask/ledgerflow/internal/schedule"
	"github.com/jask/ledgerflow/internal/service"
)

// Services bundles the writers Seed goes through.
type Services struct {
	Planning   *service.PlanningService
	Settlement *service.SettlementService
	Ingest     *service.IngestService
}

// Result counts what Seed created.
type Result struct {
	Commitments int
	Contracts   int
	Settled     int
	Statement   service.IngestResult
}

type sample struct {
	desc      string
	direction domain.Direction
	amount    int64
	day       int
}

var samples = []sample{
	{"Salario ACME", domain.Revenue, 800000, 5},
	{"Aluguel apartamento", domain.Expense, 250000, 10},
	{"Energia eletrica", domain.Expense, 18990, 15},
	{"Internet fibra", domain.Expense, 9990, 20},
	{"Spotify familia", domain.Expense, 3490, 25},
}

var bankPrefixes = []string{"PIX", "TED", "DEB AUT", "PAGTO"}

// Seed declares the samples as monthly commitments starting in month,
// settles each first instance on its due date and imports a statement whose
// rows echo those settlements. Posting dates drift by up to a day and the
// bank prefix varies, both drawn from seed.
func Seed(ctx context.Context, svc Services, month money.YearMonth, seed int64) (Result, error) {
	rng := rand.New(rand.NewSource(seed))
	account := database.DefaultAccountID

	var (
		res Result
		csv strings.Builder
	)
	csv.WriteString("external_id,posted_date,amount,description\n")
	for i, s := range samples {
		_, instances, err := svc.Planning.CreateCommitment(ctx, service.CommitmentInput{
			EntityID:    database.DefaultEntityID,
			AccountID:   &account,
			Direction:   s.direction,
			Description: s.desc,
			StartDate:   month.Day(s.day),
			Recurrence:  domain.RecurrenceMonthly,
			Amount:      s.amount,
		})
		if err != nil {
			return res, fmt.Errorf("seed %q: %w", s.desc, err)
		}
		res.Commitments++

		first := instances[0]
		m, err := svc.Settlement.Settle(ctx, domain.OriginCommitment, first.ID, service.SettleInput{
			AccountID:   account,
			Description: s.desc,
		})
		if err != nil {
			return res, fmt.Errorf("settle %q: %w", s.desc, err)
		}
		res.Settled++

		posted := m.Date.AddDate(0, 0, rng.Intn(3)-1)
		prefix := bankPrefixes[rng.Intn(len(bankPrefixes))]
		fmt.Fprintf(&csv, "demo-%d,%s,%s,%s %s\n", i+1, posted.Format(money.DateLayout),
			money.FormatMinor(m.Amount), prefix, strings.ToUpper(s.desc))
	}

	_, _, err := svc.Planning.CreateContract(ctx, service.ContractInput{
		EntityID:     database.DefaultEntityID,
		AccountID:    &account,
		Counterparty: "Beta Consultoria",
		Kind:         domain.Receivable,
		Description:  "Projeto de integracao",
		Plan: schedule.Plan{
			Kind:             schedule.PlanInstallments,
			StartDate:        month.Day(8),
			TotalAmount:      300000,
			EntryAmount:      100000,
			InstallmentCount: 2,
			IntervalDays:     30,
		},
	})
	if err != nil {
		return res, fmt.Errorf("seed contract: %w", err)
	}
	res.Contracts++

	res.Statement, err = svc.Ingest.ImportCSV(ctx, strings.NewReader(csv.String()), account, time.UTC)
	if err != nil {
		return res, fmt.Errorf("import statement: %w", err)
	}
	return res, nil
}
