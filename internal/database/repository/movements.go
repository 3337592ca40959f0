package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// MovementRepo handles realized ledger movements.
type MovementRepo struct{ db DBTX }

func NewMovementRepo(db DBTX) *MovementRepo { return &MovementRepo{db: db} }

// Insert writes a movement. A second movement for the same
// (source_type, source_id) fails on the unique index.
func (r *MovementRepo) Insert(ctx context.Context, m LedgerMovement) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO ledger_movements(id, entity_id, account_id, amount, date, description, source_type, source_id, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, m.ID, m.EntityID, m.AccountID, m.Amount, fmtDate(m.Date), m.Description, m.SourceType, m.SourceID)
	return err
}

const movementCols = `id, entity_id, account_id, amount, date, description, source_type, source_id, created_at`

func scanMovement(row scanner) (LedgerMovement, error) {
	var (
		m               LedgerMovement
		date            string
		stype, sourceID sql.NullString
	)
	if err := row.Scan(&m.ID, &m.EntityID, &m.AccountID, &m.Amount, &date, &m.Description, &stype, &sourceID, &m.CreatedAt); err != nil {
		return LedgerMovement{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return LedgerMovement{}, err
	}
	m.Date = d
	m.SourceType = nullString(stype)
	m.SourceID = nullString(sourceID)
	return m, nil
}

func (r *MovementRepo) Get(ctx context.Context, id string) (*LedgerMovement, error) {
	m, err := scanMovement(r.db.QueryRowContext(ctx, `SELECT `+movementCols+` FROM ledger_movements WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// BySource returns the movement settling (sourceType, sourceID), if any.
func (r *MovementRepo) BySource(ctx context.Context, sourceType, sourceID string) (*LedgerMovement, error) {
	m, err := scanMovement(r.db.QueryRowContext(ctx,
		`SELECT `+movementCols+` FROM ledger_movements WHERE source_type = ? AND source_id = ?`, sourceType, sourceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Window returns an entity's movements dated in [from, to], ordered by date then id.
func (r *MovementRepo) Window(ctx context.Context, entityID string, from, to time.Time) ([]LedgerMovement, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+movementCols+` FROM ledger_movements
	WHERE entity_id = ? AND date >= ? AND date <= ? ORDER BY date, id`, entityID, fmtDate(from), fmtDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
