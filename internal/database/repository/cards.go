package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jask/ledgerflow/internal/domain"
)

// CardRepo handles cards, card purchases and their installments.
type CardRepo struct{ db DBTX }

func NewCardRepo(db DBTX) *CardRepo { return &CardRepo{db: db} }

func (r *CardRepo) UpsertCard(ctx context.Context, c Card) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO cards(id, entity_id, account_id, name, closing_day, due_day)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 account_id=excluded.account_id,
	 name=excluded.name,
	 closing_day=excluded.closing_day,
	 due_day=excluded.due_day;
	`, c.ID, c.EntityID, c.AccountID, c.Name, c.ClosingDay, c.DueDay)
	return err
}

func (r *CardRepo) GetCard(ctx context.Context, id string) (*Card, error) {
	var (
		c   Card
		acc sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, entity_id, account_id, name, closing_day, due_day FROM cards WHERE id = ?`, id).
		Scan(&c.ID, &c.EntityID, &acc, &c.Name, &c.ClosingDay, &c.DueDay)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.AccountID = nullString(acc)
	return &c, nil
}

func (r *CardRepo) InsertPurchase(ctx context.Context, p CardPurchase) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO card_purchases(id, card_id, description, purchase_date, total_amount, installment_count, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, p.ID, p.CardID, p.Description, fmtDate(p.PurchaseDate), p.TotalAmount, p.InstallmentCount, p.Status)
	return err
}

func (r *CardRepo) InsertInstallments(ctx context.Context, in []Installment) error {
	for _, i := range in {
		if _, err := r.db.ExecContext(ctx, `
		INSERT INTO card_installments(id, purchase_id, idx, competence_month, due_date, amount, status, movement_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, i.ID, i.PurchaseID, i.Index, i.CompetenceMonth, fmtDate(i.DueDate), i.Amount, i.Status, i.MovementID); err != nil {
			return err
		}
	}
	return nil
}

func (r *CardRepo) ListInstallments(ctx context.Context, purchaseID string) ([]Installment, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, purchase_id, idx, competence_month, due_date, amount, status, movement_id
	FROM card_installments WHERE purchase_id = ? ORDER BY idx`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Installment
	for rows.Next() {
		var (
			i     Installment
			due   string
			moved sql.NullString
		)
		if err := rows.Scan(&i.ID, &i.PurchaseID, &i.Index, &i.CompetenceMonth, &due, &i.Amount, &i.Status, &moved); err != nil {
			return nil, err
		}
		if i.DueDate, err = parseDate(due); err != nil {
			return nil, err
		}
		i.MovementID = nullString(moved)
		out = append(out, i)
	}
	return out, rows.Err()
}

// GetInstallmentTarget loads an installment with its card's entity.
func (r *CardRepo) GetInstallmentTarget(ctx context.Context, id string) (*SettlementTarget, error) {
	var (
		t   SettlementTarget
		due string
	)
	t.Origin.Kind = domain.OriginCardPurchase
	err := r.db.QueryRowContext(ctx, `
	SELECT i.id, i.purchase_id, i.status, i.amount, i.due_date, c.entity_id
	FROM card_installments i
	JOIN card_purchases p ON p.id = i.purchase_id
	JOIN cards c ON c.id = p.card_id
	WHERE i.id = ?`, id).Scan(&t.ID, &t.Origin.ParentID, &t.Status, &t.Amount, &due, &t.EntityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if t.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkInstallmentPaid moves a planned installment to paid.
func (r *CardRepo) MarkInstallmentPaid(ctx context.Context, id, movementID string) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx,
		`UPDATE card_installments SET status = 'paid', movement_id = ? WHERE id = ? AND status = 'planned'`, movementID, id))
	return n == 1, err
}

// CancelPurchase cancels the purchase and its planned installments.
func (r *CardRepo) CancelPurchase(ctx context.Context, purchaseID string) (bool, int64, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx,
		`UPDATE card_purchases SET status = 'cancelled' WHERE id = ? AND status != 'cancelled'`, purchaseID))
	if err != nil || n == 0 {
		return false, 0, err
	}
	cancelled, err := rowsAffected(r.db.ExecContext(ctx,
		`UPDATE card_installments SET status = 'cancelled' WHERE purchase_id = ? AND status = 'planned'`, purchaseID))
	return true, cancelled, err
}

func (r *CardRepo) PurchaseExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM card_purchases WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}
