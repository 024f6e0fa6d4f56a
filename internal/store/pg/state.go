package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lordre.org/internal/member"
	"lordre.org/internal/systemstate"
)

var _ systemstate.Store = (*Store)(nil)

// The system_state table holds exactly one row, pinned by a constant
// primary key. Replace updates that row and never inserts; seeding is
// the migration layer's job.
const stateRowID = 1

func (s *Store) Read(ctx context.Context) (systemstate.State, error) {
	var st systemstate.State
	err := s.db.QueryRowContext(ctx, `
		select alert_state, alert_message, changed_by, changed_at
		from system_state
		where id = $1
	`, stateRowID).Scan(&st.Alert, &st.Message, &st.ChangedBy, &st.ChangedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return systemstate.State{}, systemstate.ErrNotSeeded
	}
	if err != nil {
		return systemstate.State{}, err
	}
	return st, nil
}

func (s *Store) Replace(ctx context.Context, next systemstate.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Row-level re-check: the changer must hold guardian_supreme at
	// commit time, independent of any service-level check.
	var one int
	err = tx.QueryRowContext(ctx, `
		select 1 from role_assignments
		where user_id = $1 and role = $2
	`, next.ChangedBy, string(member.RoleGuardianSupreme)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: requires role %s", member.ErrForbidden, member.RoleGuardianSupreme)
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		update system_state
		set alert_state = $1, alert_message = $2, changed_by = $3, changed_at = $4
		where id = $5
	`, string(next.Alert), next.Message, next.ChangedBy, next.ChangedAt, stateRowID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return systemstate.ErrNotSeeded
	}
	return tx.Commit()
}
