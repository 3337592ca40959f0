package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// EntityRepo handles owning entities.
type EntityRepo struct{ db DBTX }

func NewEntityRepo(db DBTX) *EntityRepo { return &EntityRepo{db: db} }

func (r *EntityRepo) Upsert(ctx context.Context, e Entity) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO entities(id, name) VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET name=excluded.name;
	`, e.ID, e.Name)
	return err
}

func (r *EntityRepo) List(ctx context.Context) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM entities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AccountRepo handles accounts.
type AccountRepo struct {
	db DBTX
}

func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Upsert(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(id, entity_id, name, account_type, opening_balance, active, created_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 account_type=excluded.account_type,
	 opening_balance=excluded.opening_balance,
	 active=excluded.active;
	`, a.ID, a.EntityID, a.Name, a.AccountType, a.OpeningBalance, a.Active)
	return err
}

const accountCols = `id, entity_id, name, account_type, opening_balance, active, created_at`

func scanAccount(row scanner) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.EntityID, &a.Name, &a.AccountType, &a.OpeningBalance, &a.Active, &a.CreatedAt)
	return a, err
}

func (r *AccountRepo) Get(ctx context.Context, id string) (*Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ConsolidatedBalance sums the opening balance of every active account in
// scope plus all of their ledger movements dated on or before asOf.
func (r *AccountRepo) ConsolidatedBalance(ctx context.Context, asOf time.Time, entityIDs, accountIDs []string) (int64, error) {
	where := "a.active = 1"
	var args []any
	if len(entityIDs) > 0 {
		var clause string
		clause, args = inClause("a.entity_id", entityIDs, args)
		where += " AND " + clause
	}
	if len(accountIDs) > 0 {
		var clause string
		clause, args = inClause("a.id", accountIDs, args)
		where += " AND " + clause
	}

	var opening, moved int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(a.opening_balance), 0) FROM accounts a WHERE `+where, args...).Scan(&opening); err != nil {
		return 0, err
	}
	margs := append([]any{fmtDate(asOf)}, args...)
	if err := r.db.QueryRowContext(ctx, `
	SELECT COALESCE(SUM(m.amount), 0)
	FROM ledger_movements m JOIN accounts a ON a.id = m.account_id
	WHERE m.date <= ? AND `+where, margs...).Scan(&moved); err != nil {
		return 0, err
	}
	return opening + moved, nil
}
