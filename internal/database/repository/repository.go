package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jask/ledgerflow/internal/money"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so repos work inside WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner handles both Row and Rows.
type scanner interface {
	Scan(dest ...any) error
}

func fmtDate(t time.Time) string { return t.Format(money.DateLayout) }

func fmtDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtDate(*t)
	return &s
}

func parseDate(s string) (time.Time, error) { return time.Parse(money.DateLayout, s) }

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// inClause renders "col IN (?, ?, ...)" and appends the values to args.
func inClause(col string, values []string, args []any) (string, []any) {
	marks := make([]string, len(values))
	for i, v := range values {
		marks[i] = "?"
		args = append(args, v)
	}
	return col + " IN (" + strings.Join(marks, ", ") + ")", args
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
