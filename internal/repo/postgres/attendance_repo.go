package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/campuskit/schoolhub/internal/domain/attendance"
	"github.com/campuskit/schoolhub/internal/domain/class"
	"github.com/campuskit/schoolhub/internal/observability"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttendanceRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAttendanceRepo(pool *pgxpool.Pool, prom *observability.Prom) *AttendanceRepo {
	return &AttendanceRepo{pool: pool, prom: prom}
}

func (r *AttendanceRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// MarkBulk upserts one class's records for one date in a single
// transaction. Re-marking a (class, student, date) overwrites the earlier
// status and remark.
func (r *AttendanceRepo) MarkBulk(ctx context.Context, records []attendance.Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// class existence is checked up front so a bad class id fails the whole
	// batch before any row is written
	var exists bool

	err = r.observe("attendance.mark_bulk.class_check", func() error {
		return tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM classes WHERE id = $1)`,
			records[0].ClassID,
		).Scan(&exists)
	})

	if err != nil {
		return err
	}

	if !exists {
		return class.ErrNotFound
	}

	for _, rec := range records {
		err = r.observe("attendance.mark_bulk.upsert", func() error {
			_, e := tx.Exec(ctx,
				`INSERT INTO attendance (id, class_id, student_id, date, status, remark, recorded_by, created_at, updated_at)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
				 ON CONFLICT (class_id, student_id, date)
				 DO UPDATE SET status = EXCLUDED.status,
				               remark = EXCLUDED.remark,
				               recorded_by = EXCLUDED.recorded_by,
				               updated_at = EXCLUDED.updated_at`,
				rec.ID, rec.ClassID, rec.StudentID, rec.Date, rec.Status, rec.Remark, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt,
			)
			return e
		})

		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return attendance.ErrUnknownStudent
			}

			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *AttendanceRepo) ListForClassDate(ctx context.Context, classID string, date time.Time) (records []attendance.Record, err error) {
	err = r.observe("attendance.list_class_date", func() error {
		rows, e := r.pool.Query(ctx,
			`SELECT id, class_id, student_id, date, status, remark, recorded_by, created_at, updated_at
			 FROM attendance
			 WHERE class_id = $1 AND date = $2
			 ORDER BY student_id`,
			classID, date,
		)

		if e != nil {
			return e
		}

		defer rows.Close()

		for rows.Next() {
			var rec attendance.Record

			e = rows.Scan(
				&rec.ID,
				&rec.ClassID,
				&rec.StudentID,
				&rec.Date,
				&rec.Status,
				&rec.Remark,
				&rec.RecordedBy,
				&rec.CreatedAt,
				&rec.UpdatedAt,
			)
			if e != nil {
				return e
			}

			records = append(records, rec)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return records, nil
}

// SummaryForStudent aggregates one student's records over [from, to].
func (r *AttendanceRepo) SummaryForStudent(ctx context.Context, studentID string, from, to time.Time) (s attendance.Summary, err error) {
	s.StudentID = studentID

	err = r.observe("attendance.student_summary", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT
			   COUNT(*) FILTER (WHERE status = 'present'),
			   COUNT(*) FILTER (WHERE status = 'absent'),
			   COUNT(*) FILTER (WHERE status = 'late'),
			   COUNT(*) FILTER (WHERE status = 'excused')
			 FROM attendance
			 WHERE student_id = $1 AND date BETWEEN $2 AND $3`,
			studentID, from, to,
		).Scan(&s.Present, &s.Absent, &s.Late, &s.Excused)
	})

	s.Total = s.Present + s.Absent + s.Late + s.Excused

	return
}
