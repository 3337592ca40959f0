package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ReconciliationRepo handles links between bank records and ledger movements.
type ReconciliationRepo struct{ db DBTX }

func NewReconciliationRepo(db DBTX) *ReconciliationRepo { return &ReconciliationRepo{db: db} }

// Add inserts a link. A second link for the same external transaction fails
// on the unique constraint.
func (r *ReconciliationRepo) Add(ctx context.Context, l ReconciliationLink) error {
	evidence, err := json.Marshal(l.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO reconciliation_links(id, external_transaction_id, movement_id, match_type, confidence, evidence, created_at)
	VALUES(?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, l.ID, l.ExternalTransactionID, l.MovementID, l.MatchType, l.Confidence, string(evidence))
	return err
}

func (r *ReconciliationRepo) ByExternal(ctx context.Context, externalID string) (*ReconciliationLink, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, external_transaction_id, movement_id, match_type, confidence, evidence, created_at
	FROM reconciliation_links WHERE external_transaction_id = ?`, externalID)
	var (
		l        ReconciliationLink
		evidence string
	)
	if err := row.Scan(&l.ID, &l.ExternalTransactionID, &l.MovementID, &l.MatchType, &l.Confidence, &evidence, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(evidence), &l.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence for link %s: %w", l.ID, err)
	}
	return &l, nil
}

// DeleteByExternal removes the link of an external transaction, if any.
func (r *ReconciliationRepo) DeleteByExternal(ctx context.Context, externalID string) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx, `DELETE FROM reconciliation_links WHERE external_transaction_id = ?`, externalID))
	return n > 0, err
}

// LinkedMovement reports whether a movement already backs some link.
func (r *ReconciliationRepo) LinkedMovement(ctx context.Context, movementID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reconciliation_links WHERE movement_id = ?`, movementID).Scan(&n)
	return n > 0, err
}
