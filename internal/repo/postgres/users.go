package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/campuskit/schoolhub/internal/domain/user"
	"github.com/campuskit/schoolhub/internal/observability"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, role, school_id, is_active,
	reset_token_hash, reset_token_expiry, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.SchoolID,
		&u.IsActive,
		&u.ResetTokenHash,
		&u.ResetTokenExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (created user.User, err error) {
	err = r.observe("users.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, role, school_id, is_active, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.SchoolID, u.IsActive, u.CreatedAt, u.UpdatedAt,
		)
		return e
	})

	if err != nil {
		// Concurrent registrations with the same email race on the unique
		// constraint; the loser gets the sentinel, not a crash.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.get_by_email", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return e
	})

	return
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (u user.User, err error) {
	err = r.observe("users.get_by_id", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return e
	})

	return
}

// UpdateDetails applies only the supplied fields in a single statement.
func (r *UsersRepo) UpdateDetails(ctx context.Context, id string, req user.UpdateDetailsRequest) (u user.User, err error) {
	err = r.observe("users.update_details", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
			 SET name = COALESCE($2, name),
			     email = COALESCE($3, email),
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+userColumns,
			id, req.Name, req.Email,
		))
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.observe("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, passwordHash,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

func (r *UsersRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiry time.Time) error {
	return r.observe("users.set_reset_token", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET reset_token_hash = $2, reset_token_expiry = $3, updated_at = NOW() WHERE id = $1`,
			id, tokenHash, expiry,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

func (r *UsersRepo) ClearResetToken(ctx context.Context, id string) error {
	return r.observe("users.clear_reset_token", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE users SET reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = NOW() WHERE id = $1`,
			id,
		)
		return err
	})
}

func (r *UsersRepo) GetByResetTokenHash(ctx context.Context, tokenHash string) (u user.User, err error) {
	err = r.observe("users.get_by_reset_token", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE reset_token_hash = $1`, tokenHash))
		return e
	})

	return
}

// Deactivate flips the active flag. People records are never hard-deleted.
func (r *UsersRepo) Deactivate(ctx context.Context, id string) error {
	return r.observe("users.deactivate", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

// ListStaff returns users carrying a staff role, newest first.
func (r *UsersRepo) ListStaff(ctx context.Context, limit int) (staff []user.User, err error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	err = r.observe("users.list_staff", func() error {
		rows, e := r.pool.Query(ctx,
			`SELECT `+userColumns+`
			 FROM users
			 WHERE role IN ($1, $2) AND is_active
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			user.RoleAdmin, user.RoleTeacher, limit,
		)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			u, e := scanUser(rows)
			if e != nil {
				return e
			}
			staff = append(staff, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return staff, nil
}
