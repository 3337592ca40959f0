package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
	"github.com/jask/ledgerflow/internal/ratelimit"
	"github.com/jask/ledgerflow/internal/textmatch"
)

// IngestService imports bank statement exports as external transactions.
type IngestService struct {
	Transactions *repository.ExternalTransactionRepo
	Accounts     *repository.AccountRepo
	// Limiter throttles imports per account. Nil means unlimited.
	Limiter *ratelimit.Keyed
	Log     zerolog.Logger
}

type IngestResult struct {
	Imported int
	Updated  int
	Errors   []error
}

// ImportCSV reads rows of: external_id, posted_date, amount, description[, balance].
// Amount is a signed decimal; negative means money out. Dates are
// YYYY-MM-DD in loc. A header row starting with "external_id" is skipped.
// Row errors are collected and do not stop the import.
func (s *IngestService) ImportCSV(ctx context.Context, r io.Reader, accountID string, loc *time.Location) (IngestResult, error) {
	res := IngestResult{}
	acct, err := s.Accounts.Get(ctx, accountID)
	if err != nil {
		return res, err
	}
	if acct == nil {
		return res, domain.NotFound("account", accountID)
	}
	if loc == nil {
		loc = time.UTC
	}
	// one token per statement, not per row
	if err := s.Limiter.Wait(ctx, acct.ID); err != nil {
		return res, err
	}

	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "external_id") {
			continue
		}
		t, err := parseRecord(rec, loc)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		t.AccountID = acct.ID

		created, err := s.Transactions.Upsert(ctx, t)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d upsert: %w", line, err))
			continue
		}
		if created {
			res.Imported++
		} else {
			res.Updated++
		}
	}
	s.Log.Info().Str("account_id", acct.ID).Int("imported", res.Imported).Int("updated", res.Updated).
		Int("errors", len(res.Errors)).Msg("csv import finished")
	return res, nil
}

func parseRecord(rec []string, loc *time.Location) (repository.ExternalTransaction, error) {
	if len(rec) < 4 {
		return repository.ExternalTransaction{}, errors.New("expected at least 4 columns (external_id, posted_date, amount, description)")
	}
	externalID := strings.TrimSpace(rec[0])
	if externalID == "" {
		return repository.ExternalTransaction{}, domain.InvalidArgument("external_id", "required")
	}
	posted, err := parseLocalDate(rec[1], loc)
	if err != nil {
		return repository.ExternalTransaction{}, domain.InvalidArgument("posted_date", "%v", err)
	}
	amount, err := money.ParseMinor(rec[2])
	if err != nil {
		return repository.ExternalTransaction{}, err
	}
	direction := domain.DirectionIn
	if amount < 0 {
		direction = domain.DirectionOut
	}
	desc := strings.TrimSpace(rec[3])
	t := repository.ExternalTransaction{
		ID:                    uuid.NewString(),
		ExternalID:            externalID,
		PostedDate:            posted,
		Amount:                money.Abs(amount),
		Direction:             direction,
		RawDescription:        desc,
		NormalizedDescription: textmatch.Normalize(desc),
	}
	if len(rec) > 4 && strings.TrimSpace(rec[4]) != "" {
		bal, err := money.ParseMinor(rec[4])
		if err != nil {
			return repository.ExternalTransaction{}, err
		}
		t.Balance = &bal
	}
	return t, nil
}

// parseLocalDate reads a calendar date in loc and keeps its calendar day.
func parseLocalDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(money.DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return money.Date(t.Year(), t.Month(), t.Day()), nil
}
