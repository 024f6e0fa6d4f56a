package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lordre.org/internal/identity"
)

// accounts adapts the Store to identity.AccountStore. A separate type
// avoids method collisions with the profile store on the same struct.
type accounts struct {
	s *Store
}

var _ identity.AccountStore = accounts{}

// Accounts returns the identity account store view.
func (s *Store) Accounts() identity.AccountStore { return accounts{s: s} }

func (a accounts) Create(ctx context.Context, acc *identity.Account) error {
	row := a.s.db.QueryRowContext(ctx, `
		insert into accounts (id, email, password_hash)
		values ($1, $2, $3)
		returning created_at
	`, acc.ID, acc.Email, acc.PasswordHash)
	if err := row.Scan(&acc.CreatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: %s", identity.ErrConflict, acc.Email)
		}
		return err
	}
	return nil
}

func (a accounts) Find(ctx context.Context, id string) (identity.Account, error) {
	var acc identity.Account
	err := a.s.db.QueryRowContext(ctx, `
		select id, email, password_hash, created_at
		from accounts
		where id = $1
	`, id).Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Account{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Account{}, err
	}
	return acc, nil
}

func (a accounts) FindByEmail(ctx context.Context, email string) (identity.Account, error) {
	var acc identity.Account
	err := a.s.db.QueryRowContext(ctx, `
		select id, email, password_hash, created_at
		from accounts
		where lower(email) = lower($1)
	`, email).Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Account{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Account{}, err
	}
	return acc, nil
}

func (a accounts) Update(ctx context.Context, id string, email, passwordHash *string) error {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, *email)
		idx++
	}
	if passwordHash != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *passwordHash)
		idx++
	}
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf(`update accounts set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)
	res, err := a.s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.ErrConflict
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return identity.ErrNotFound
	}
	return nil
}

// Delete removes the account; profiles and role assignments follow via
// foreign keys declared on delete cascade.
func (a accounts) Delete(ctx context.Context, id string) error {
	res, err := a.s.db.ExecContext(ctx, `delete from accounts where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return identity.ErrNotFound
	}
	return nil
}
