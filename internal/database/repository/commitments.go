package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jask/ledgerflow/internal/domain"
)

// CommitmentRepo handles commitments.
type CommitmentRepo struct{ db DBTX }

func NewCommitmentRepo(db DBTX) *CommitmentRepo { return &CommitmentRepo{db: db} }

func (r *CommitmentRepo) Insert(ctx context.Context, c Commitment) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO commitments(
	 id, entity_id, account_id, direction, description, category, total_amount, currency,
	 start_date, end_date, recurrence, status, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		c.ID, c.EntityID, c.AccountID, c.Direction, c.Description, c.Category, c.TotalAmount, c.Currency,
		fmtDate(c.StartDate), fmtDatePtr(c.EndDate), c.Recurrence, c.Status)
	return err
}

// UpdateDetails changes the non-financial fields only.
func (r *CommitmentRepo) UpdateDetails(ctx context.Context, c Commitment) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE commitments SET description = ?, category = ?, end_date = ?, recurrence = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`, c.Description, c.Category, fmtDatePtr(c.EndDate), c.Recurrence, c.ID)
	return err
}

// SetStatus moves the commitment to status unless it is already there.
// It reports whether a row changed.
func (r *CommitmentRepo) SetStatus(ctx context.Context, id string, status domain.ParentStatus) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx,
		`UPDATE commitments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status != ?`, status, id, status))
	return n > 0, err
}

func (r *CommitmentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM commitments WHERE id = ?`, id)
	return err
}

func (r *CommitmentRepo) Get(ctx context.Context, id string) (*Commitment, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, entity_id, account_id, direction, description, category, total_amount, currency,
	 start_date, end_date, recurrence, status, created_at, updated_at
	FROM commitments WHERE id = ?`, id)
	var (
		c            Commitment
		account, cat sql.NullString
		start        string
		end          sql.NullString
	)
	if err := row.Scan(&c.ID, &c.EntityID, &account, &c.Direction, &c.Description, &cat, &c.TotalAmount, &c.Currency,
		&start, &end, &c.Recurrence, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if c.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if c.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	c.AccountID = nullString(account)
	c.Category = nullString(cat)
	return &c, nil
}

// ContractRepo handles contracts.
type ContractRepo struct{ db DBTX }

func NewContractRepo(db DBTX) *ContractRepo { return &ContractRepo{db: db} }

func (r *ContractRepo) Insert(ctx context.Context, c Contract) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO contracts(
	 id, entity_id, account_id, counterparty, kind, description, total_amount, currency,
	 start_date, end_date, status, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		c.ID, c.EntityID, c.AccountID, c.Counterparty, c.Kind, c.Description, c.TotalAmount, c.Currency,
		fmtDate(c.StartDate), fmtDatePtr(c.EndDate), c.Status)
	return err
}

func (r *ContractRepo) SetStatus(ctx context.Context, id string, status domain.ParentStatus) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx,
		`UPDATE contracts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status != ?`, status, id, status))
	return n > 0, err
}

func (r *ContractRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM contracts WHERE id = ?`, id)
	return err
}

func (r *ContractRepo) Get(ctx context.Context, id string) (*Contract, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, entity_id, account_id, counterparty, kind, description, total_amount, currency,
	 start_date, end_date, status, created_at, updated_at
	FROM contracts WHERE id = ?`, id)
	var (
		c       Contract
		account sql.NullString
		start   string
		end     sql.NullString
	)
	if err := row.Scan(&c.ID, &c.EntityID, &account, &c.Counterparty, &c.Kind, &c.Description, &c.TotalAmount, &c.Currency,
		&start, &end, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if c.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if c.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	c.AccountID = nullString(account)
	return &c, nil
}
