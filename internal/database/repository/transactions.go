package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ExternalFilters defines list filters for ingested bank records.
type ExternalFilters struct {
	AccountID    string
	Month        time.Time // use first day of month; zero time = no month filter
	Search       string // matched against normalized_description; callers normalize
	Unreconciled bool
}

// ExternalTransactionRepo handles ingested bank records.
type ExternalTransactionRepo struct {
	db DBTX
}

func NewExternalTransactionRepo(db DBTX) *ExternalTransactionRepo {
	return &ExternalTransactionRepo{db: db}
}

// Upsert inserts a record or refreshes it by (account_id, external_id). Once
// a record is reconciled only its normalized description is refreshed.
// It reports whether a new row was created.
func (r *ExternalTransactionRepo) Upsert(ctx context.Context, t ExternalTransaction) (bool, error) {
	var existing string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM external_transactions WHERE account_id = ? AND external_id = ?`, t.AccountID, t.ExternalID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = r.db.ExecContext(ctx, `
		INSERT INTO external_transactions(
		 id, account_id, external_id, posted_date, amount, direction, raw_description,
		 normalized_description, balance, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
		`,
			t.ID, t.AccountID, t.ExternalID, fmtDate(t.PostedDate), t.Amount, t.Direction, t.RawDescription,
			t.NormalizedDescription, t.Balance)
		return err == nil, err
	}
	if err != nil {
		return false, err
	}
	var reconciled bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM reconciliation_links WHERE external_transaction_id = ?)`, existing).Scan(&reconciled); err != nil {
		return false, err
	}
	if reconciled {
		_, err = r.db.ExecContext(ctx, `
		UPDATE external_transactions SET normalized_description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, t.NormalizedDescription, existing)
		return false, err
	}
	_, err = r.db.ExecContext(ctx, `
	UPDATE external_transactions SET
	 posted_date = ?, amount = ?, direction = ?, raw_description = ?, normalized_description = ?, balance = ?,
	 updated_at = CURRENT_TIMESTAMP
	WHERE id = ?
	`, fmtDate(t.PostedDate), t.Amount, t.Direction, t.RawDescription, t.NormalizedDescription, t.Balance, existing)
	return false, err
}

const externalCols = `e.id, e.account_id, a.entity_id, e.external_id, e.posted_date, e.amount, e.direction,
 e.raw_description, e.normalized_description, e.balance, e.created_at, e.updated_at`

// scanExternal handles nullable fields for both Row and Rows.
func scanExternal(row scanner) (ExternalTransaction, error) {
	var (
		t       ExternalTransaction
		posted  string
		balance sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.EntityID, &t.ExternalID, &posted, &t.Amount, &t.Direction,
		&t.RawDescription, &t.NormalizedDescription, &balance, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return ExternalTransaction{}, err
	}
	d, err := parseDate(posted)
	if err != nil {
		return ExternalTransaction{}, err
	}
	t.PostedDate = d
	if balance.Valid {
		t.Balance = &balance.Int64
	}
	return t, nil
}

func (r *ExternalTransactionRepo) Get(ctx context.Context, id string) (*ExternalTransaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+externalCols+`
	FROM external_transactions e JOIN accounts a ON a.id = e.account_id WHERE e.id = ?`, id)
	t, err := scanExternal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *ExternalTransactionRepo) GetByExternalID(ctx context.Context, accountID, externalID string) (*ExternalTransaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+externalCols+`
	FROM external_transactions e JOIN accounts a ON a.id = e.account_id
	WHERE e.account_id = ? AND e.external_id = ?`, accountID, externalID)
	t, err := scanExternal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *ExternalTransactionRepo) List(ctx context.Context, f ExternalFilters) ([]ExternalTransaction, error) {
	var where []string
	var args []any

	if f.AccountID != "" {
		where = append(where, "e.account_id = ?")
		args = append(args, f.AccountID)
	}
	if !f.Month.IsZero() {
		start := time.Date(f.Month.Year(), f.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		where = append(where, "e.posted_date >= ? AND e.posted_date < ?")
		args = append(args, fmtDate(start), fmtDate(end))
	}
	if f.Search != "" {
		where = append(where, "e.normalized_description LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}
	if f.Unreconciled {
		where = append(where, "NOT EXISTS (SELECT 1 FROM reconciliation_links l WHERE l.external_transaction_id = e.id)")
	}

	query := "SELECT " + externalCols + " FROM external_transactions e JOIN accounts a ON a.id = e.account_id"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.posted_date DESC, e.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExternalTransaction
	for rows.Next() {
		t, err := scanExternal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
