package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lordre.org/internal/member"
)

var (
	_ member.ProfileStore = (*Store)(nil)
	_ member.RoleStore    = (*Store)(nil)
)

// gradeRank orders grades inside SQL for the leaderboard.
const gradeRank = `
	case grade
		when 'oracle' then 5
		when 'sage' then 4
		when 'maitre' then 3
		when 'compagnon' then 2
		when 'apprenti' then 1
		else 0
	end`

func (s *Store) Create(ctx context.Context, p *member.Profile) error {
	joined := p.JoinedAt
	if joined.IsZero() {
		joined = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx, `
		insert into profiles (id, pseudonym, grade, status, joined_at)
		values ($1, $2, $3, $4, $5)
		returning joined_at, updated_at
	`, p.ID, p.Pseudonym, string(p.Grade), p.Status, joined)
	if err := row.Scan(&p.JoinedAt, &p.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: pseudonym %s", member.ErrConflict, p.Pseudonym)
			case pgErrForeignKeyViolation:
				return member.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) Find(ctx context.Context, id string) (member.Profile, error) {
	var p member.Profile
	err := s.db.QueryRowContext(ctx, `
		select id, pseudonym, grade, status, joined_at, updated_at
		from profiles
		where id = $1
	`, id).Scan(&p.ID, &p.Pseudonym, &p.Grade, &p.Status, &p.JoinedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return member.Profile{}, member.ErrNotFound
	}
	if err != nil {
		return member.Profile{}, err
	}
	return p, nil
}

func (s *Store) Update(ctx context.Context, id string, upd member.ProfileUpdate) (member.Profile, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Pseudonym != nil {
		sets = append(sets, fmt.Sprintf("pseudonym = $%d", idx))
		args = append(args, *upd.Pseudonym)
		idx++
	}
	if upd.Grade != nil {
		sets = append(sets, fmt.Sprintf("grade = $%d", idx))
		args = append(args, string(*upd.Grade))
		idx++
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update profiles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return member.Profile{}, member.ErrConflict
			}
			return member.Profile{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return member.Profile{}, err
		}
		if aff == 0 {
			return member.Profile{}, member.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]member.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, pseudonym, grade, status, joined_at, updated_at
		from profiles
		where status = 'active'
		order by `+gradeRank+` desc, joined_at asc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []member.Profile
	for rows.Next() {
		var p member.Profile
		if err := rows.Scan(&p.ID, &p.Pseudonym, &p.Grade, &p.Status, &p.JoinedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Assign(ctx context.Context, userID string, role member.Role) error {
	_, err := s.db.ExecContext(ctx, `
		insert into role_assignments (user_id, role)
		values ($1, $2)
		on conflict (user_id, role) do nothing
	`, userID, string(role))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return member.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) Roles(ctx context.Context, userID string) ([]member.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role from role_assignments
		where user_id = $1
		order by role
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []member.Role
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, member.Role(r))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) HasRole(ctx context.Context, userID string, role member.Role) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		select 1 from role_assignments
		where user_id = $1 and role = $2
	`, userID, string(role)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
