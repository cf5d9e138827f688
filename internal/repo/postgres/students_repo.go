package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/campuskit/schoolhub/internal/domain/student"
	"github.com/campuskit/schoolhub/internal/observability"
	"github.com/campuskit/schoolhub/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const studentColumns = `id, name, email, school_id, class_id, guardian_name,
	guardian_phone, is_active, created_at, updated_at`

type StudentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewStudentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *StudentsRepo {
	return &StudentsRepo{pool: pool, prom: prom}
}

func (r *StudentsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanStudent(row pgx.Row) (student.Student, error) {
	var s student.Student

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Email,
		&s.SchoolID,
		&s.ClassID,
		&s.GuardianName,
		&s.GuardianPhone,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return student.Student{}, student.ErrNotFound
		}

		return student.Student{}, err
	}

	return s, nil
}

func (r *StudentsRepo) Create(ctx context.Context, s student.Student) (student.Student, error) {
	err := r.observe("students.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO students (id, name, email, school_id, class_id, guardian_name, guardian_phone, is_active, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			s.ID, s.Name, s.Email, s.SchoolID, s.ClassID, s.GuardianName, s.GuardianPhone, s.IsActive, s.CreatedAt, s.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return student.Student{}, err
	}

	return s, nil
}

func (r *StudentsRepo) GetByID(ctx context.Context, id string) (s student.Student, err error) {
	err = r.observe("students.get_by_id", func() error {
		var e error
		s, e = scanStudent(r.pool.QueryRow(ctx,
			`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
		return e
	})

	return
}

func (r *StudentsRepo) Update(ctx context.Context, id string, req student.UpdateStudentRequest) (s student.Student, err error) {
	err = r.observe("students.update", func() error {
		var e error
		s, e = scanStudent(r.pool.QueryRow(ctx,
			`UPDATE students
			 SET name = COALESCE($2, name),
			     email = COALESCE($3, email),
			     class_id = COALESCE($4, class_id),
			     guardian_name = COALESCE($5, guardian_name),
			     guardian_phone = COALESCE($6, guardian_phone),
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+studentColumns,
			id, req.Name, req.Email, req.ClassID, req.GuardianName, req.GuardianPhone,
		))
		return e
	})

	return
}

// Deactivate flips the active flag, consistent with the no-hard-delete rule
// for people records.
func (r *StudentsRepo) Deactivate(ctx context.Context, id string) error {
	return r.observe("students.deactivate", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE students SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return student.ErrNotFound
		}

		return nil
	})
}

// ListCursor pages active students by (created_at, id) descending.
func (r *StudentsRepo) ListCursor(ctx context.Context, filter student.ListStudentsFilter, afterCreatedAt time.Time, afterID string) (items []student.Student, next *string, hasMore bool, err error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	err = r.observe("students.list_cursor", func() error {
		rows, e := r.pool.Query(ctx,
			`SELECT `+studentColumns+`
			 FROM students
			 WHERE is_active
			   AND ($1::uuid IS NULL OR class_id = $1)
			   AND ($2::uuid IS NULL OR school_id = $2)
			   AND ($3::timestamptz IS NULL OR (created_at, id) < ($3, $4::uuid))
			 ORDER BY created_at DESC, id DESC
			 LIMIT $5`,
			filter.ClassID, filter.SchoolID, nullableTime(afterCreatedAt), nullableID(afterID), limit+1,
		)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			s, e := scanStudent(rows)
			if e != nil {
				return e
			}
			items = append(items, s)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, nil, false, err
	}

	if len(items) > limit {
		items = items[:limit]
		hasMore = true

		last := items[len(items)-1]
		cursor, cerr := utils.EncodeStudentCursor(last.CreatedAt, last.ID)
		if cerr == nil {
			next = &cursor
		}
	}

	return items, next, hasMore, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
