package postgres

import (
	"context"
	"errors"

	"github.com/campuskit/schoolhub/internal/domain/class"
	"github.com/campuskit/schoolhub/internal/observability"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const classColumns = `id, name, grade, teacher_id, school_id, created_at, updated_at`

type ClassesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewClassesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ClassesRepo {
	return &ClassesRepo{pool: pool, prom: prom}
}

func (r *ClassesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanClass(row pgx.Row) (class.Class, error) {
	var c class.Class

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Grade,
		&c.TeacherID,
		&c.SchoolID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return class.Class{}, class.ErrNotFound
		}

		return class.Class{}, err
	}

	return c, nil
}

func mapClassWriteErr(err error) error {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return class.ErrDuplicateName
		case pgerrcode.ForeignKeyViolation:
			return class.ErrUnknownTeacher
		}
	}

	return err
}

func (r *ClassesRepo) Create(ctx context.Context, c class.Class) (class.Class, error) {
	err := r.observe("classes.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO classes (id, name, grade, teacher_id, school_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			c.ID, c.Name, c.Grade, c.TeacherID, c.SchoolID, c.CreatedAt, c.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return class.Class{}, mapClassWriteErr(err)
	}

	return c, nil
}

func (r *ClassesRepo) GetByID(ctx context.Context, id string) (c class.Class, err error) {
	err = r.observe("classes.get_by_id", func() error {
		var e error
		c, e = scanClass(r.pool.QueryRow(ctx,
			`SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
		return e
	})

	return
}

func (r *ClassesRepo) List(ctx context.Context, limit int) (classes []class.Class, err error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	err = r.observe("classes.list", func() error {
		rows, e := r.pool.Query(ctx,
			`SELECT `+classColumns+` FROM classes ORDER BY name ASC LIMIT $1`, limit)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			c, e := scanClass(rows)
			if e != nil {
				return e
			}
			classes = append(classes, c)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return classes, nil
}

func (r *ClassesRepo) Update(ctx context.Context, id string, req class.UpdateClassRequest) (c class.Class, err error) {
	err = r.observe("classes.update", func() error {
		var e error
		c, e = scanClass(r.pool.QueryRow(ctx,
			`UPDATE classes
			 SET name = COALESCE($2, name),
			     grade = COALESCE($3, grade),
			     teacher_id = COALESCE($4, teacher_id),
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+classColumns,
			id, req.Name, req.Grade, req.TeacherID,
		))
		return e
	})

	if err != nil {
		return class.Class{}, mapClassWriteErr(err)
	}

	return c, nil
}

func (r *ClassesRepo) Delete(ctx context.Context, id string) error {
	return r.observe("classes.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return class.ErrNotFound
		}

		return nil
	})
}
