package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jask/ledgerflow/internal/domain"
)

// originTable maps a schedule origin onto its storage.
type originTable struct {
	table       string
	parentCol   string
	parentTable string
	// receivable is a SQL predicate over the parent alias p.
	receivable string
}

var originTables = map[domain.OriginKind]originTable{
	domain.OriginCommitment: {"commitment_schedules", "commitment_id", "commitments", "p.direction = 'revenue'"},
	domain.OriginContract:   {"contract_schedules", "contract_id", "contracts", "p.kind = 'receivable'"},
}

func tableFor(kind domain.OriginKind) (originTable, error) {
	t, ok := originTables[kind]
	if !ok {
		return originTable{}, domain.InvalidArgument("origin", "no schedule table for %q", kind)
	}
	return t, nil
}

// ScheduleRepo handles commitment and contract schedule instances.
type ScheduleRepo struct{ db DBTX }

func NewScheduleRepo(db DBTX) *ScheduleRepo { return &ScheduleRepo{db: db} }

// InsertBatch writes instances for one origin.
func (r *ScheduleRepo) InsertBatch(ctx context.Context, instances []ScheduleInstance) error {
	for _, s := range instances {
		t, err := tableFor(s.Origin.Kind)
		if err != nil {
			return err
		}
		q := fmt.Sprintf(`INSERT INTO %s(id, %s, seq, due_date, amount, status, movement_id) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			t.table, t.parentCol)
		if _, err := r.db.ExecContext(ctx, q, s.ID, s.Origin.ParentID, s.Seq, fmtDate(s.DueDate), s.Amount, s.Status, s.MovementID); err != nil {
			return fmt.Errorf("insert %s seq %d: %w", t.table, s.Seq, err)
		}
	}
	return nil
}

// ListByParent returns the instances of one parent ordered by seq.
func (r *ScheduleRepo) ListByParent(ctx context.Context, origin domain.ScheduleOrigin) ([]ScheduleInstance, error) {
	t, err := tableFor(origin.Kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, %s, seq, due_date, amount, status, movement_id FROM %s WHERE %s = ? ORDER BY seq`,
		t.parentCol, t.table, t.parentCol), origin.ParentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScheduleInstance
	for rows.Next() {
		s, err := scanSchedule(rows, origin.Kind)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSchedule(row scanner, kind domain.OriginKind) (ScheduleInstance, error) {
	var (
		s     ScheduleInstance
		due   string
		moved sql.NullString
	)
	s.Origin.Kind = kind
	if err := row.Scan(&s.ID, &s.Origin.ParentID, &s.Seq, &due, &s.Amount, &s.Status, &moved); err != nil {
		return ScheduleInstance{}, err
	}
	d, err := parseDate(due)
	if err != nil {
		return ScheduleInstance{}, err
	}
	s.DueDate = d
	s.MovementID = nullString(moved)
	return s, nil
}

// GetTarget loads an instance with its parent's entity and direction.
func (r *ScheduleRepo) GetTarget(ctx context.Context, kind domain.OriginKind, id string) (*SettlementTarget, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
	SELECT s.id, s.%s, s.status, s.amount, s.due_date, p.entity_id, %s
	FROM %s s JOIN %s p ON p.id = s.%s
	WHERE s.id = ?`, t.parentCol, t.receivable, t.table, t.parentTable, t.parentCol), id)
	var (
		target SettlementTarget
		due    string
	)
	target.Origin.Kind = kind
	if err := row.Scan(&target.ID, &target.Origin.ParentID, &target.Status, &target.Amount, &due,
		&target.EntityID, &target.Receivable); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if target.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	return &target, nil
}

// MarkSettled moves a planned instance to status and links the movement.
// It reports false when the instance was no longer planned.
func (r *ScheduleRepo) MarkSettled(ctx context.Context, kind domain.OriginKind, id string, status domain.ScheduleStatus, movementID string) (bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	n, err := rowsAffected(r.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET status = ?, movement_id = ? WHERE id = ? AND status = 'planned'`, t.table),
		status, movementID, id))
	return n == 1, err
}

// CancelPlanned cancels every still-planned instance of a parent.
func (r *ScheduleRepo) CancelPlanned(ctx context.Context, origin domain.ScheduleOrigin) (int64, error) {
	t, err := tableFor(origin.Kind)
	if err != nil {
		return 0, err
	}
	return rowsAffected(r.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET status = 'cancelled' WHERE %s = ? AND status = 'planned'`, t.table, t.parentCol),
		origin.ParentID))
}

// CountSettled counts instances in a terminal success state or linked to a movement.
func (r *ScheduleRepo) CountSettled(ctx context.Context, origin domain.ScheduleOrigin) (int, error) {
	t, err := tableFor(origin.Kind)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE %s = ? AND (status NOT IN ('planned', 'cancelled') OR movement_id IS NOT NULL)`,
		t.table, t.parentCol), origin.ParentID).Scan(&n)
	return n, err
}

// DeleteByParent removes all instances of a parent.
func (r *ScheduleRepo) DeleteByParent(ctx context.Context, origin domain.ScheduleOrigin) error {
	t, err := tableFor(origin.Kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, t.table, t.parentCol), origin.ParentID)
	return err
}

// ListWindow returns commitment and contract instances due in [from, to],
// joined with their parents. Orphaned rows are returned with ParentFound
// false so the caller decides what to do with them.
func (r *ScheduleRepo) ListWindow(ctx context.Context, from, to time.Time, scope domain.Scope) ([]ScheduleRow, error) {
	var (
		parts []string
		args  []any
	)
	for _, kind := range []domain.OriginKind{domain.OriginCommitment, domain.OriginContract} {
		t := originTables[kind]
		where := "s.due_date >= ? AND s.due_date <= ?"
		args = append(args, fmtDate(from), fmtDate(to))
		if len(scope.EntityIDs) > 0 {
			clause, next := inClause("p.entity_id", scope.EntityIDs, args)
			where += " AND (p.id IS NULL OR " + clause + ")"
			args = next
		}
		if len(scope.AccountIDs) > 0 {
			clause, next := inClause("p.account_id", scope.AccountIDs, args)
			where += " AND (p.id IS NULL OR " + clause + ")"
			args = next
		}
		parts = append(parts, fmt.Sprintf(`
	SELECT '%s', s.id, s.%s, s.seq, s.due_date, s.amount, s.status, s.movement_id,
	 p.id IS NOT NULL, COALESCE(%s, 0), COALESCE(p.entity_id, ''), p.account_id
	FROM %s s LEFT JOIN %s p ON p.id = s.%s
	WHERE %s`, kind, t.parentCol, t.receivable, t.table, t.parentTable, t.parentCol, where))
	}
	query := strings.Join(parts, "\n\tUNION ALL") + "\n\tORDER BY 5, 2"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScheduleRow
	for rows.Next() {
		var (
			row        ScheduleRow
			due        string
			moved, acc sql.NullString
			receivable bool
		)
		if err := rows.Scan(&row.Origin.Kind, &row.ID, &row.Origin.ParentID, &row.Seq, &due, &row.Amount, &row.Status, &moved,
			&row.ParentFound, &receivable, &row.EntityID, &acc); err != nil {
			return nil, err
		}
		if row.DueDate, err = parseDate(due); err != nil {
			return nil, err
		}
		row.MovementID = nullString(moved)
		row.AccountID = nullString(acc)
		row.Sign = -1
		if receivable {
			row.Sign = 1
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
