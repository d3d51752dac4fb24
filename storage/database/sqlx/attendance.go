package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/attendance"
)

const attendanceColumns = `id, enrollee_id, course_id, day, status, marked_by, created_at, updated_at`

var attendanceConflicts = conflicts{"attendance_key": attendance.ErrAlreadyMarked}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) CreateFact(ctx context.Context, f attendance.Fact) (attendance.Fact, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO attendance (`+attendanceColumns+`)
		VALUES (:id, :enrollee_id, :course_id, :day, :status, :marked_by, :created_at, :updated_at)`, f)
	if err != nil {
		return attendance.Fact{}, translate(err, attendance.ErrNotFound, attendanceConflicts)
	}
	return f, nil
}

// UpsertFact is a single statement, so concurrent upserts of a key serialize on its unique index.
func (repo attendanceRepository) UpsertFact(ctx context.Context, f attendance.Fact) (attendance.Fact, error) {
	q, args, err := repo.db.BindNamed(
		`INSERT INTO attendance (`+attendanceColumns+`)
		VALUES (:id, :enrollee_id, :course_id, :day, :status, :marked_by, :created_at, :updated_at)
		ON CONFLICT (enrollee_id, course_id, day) DO UPDATE
		SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
		RETURNING `+attendanceColumns, f)
	if err != nil {
		return attendance.Fact{}, errors.Wrap(err, "binding attendance upsert")
	}
	var stored attendance.Fact
	if err = repo.db.GetContext(ctx, &stored, q, args...); err != nil {
		return attendance.Fact{}, translate(err, attendance.ErrNotFound, attendanceConflicts)
	}
	stored.Date = core.Day(stored.Date)
	return stored, nil
}

func (repo attendanceRepository) GetFact(ctx context.Context, id string) (f attendance.Fact, err error) {
	err = repo.db.GetContext(ctx, &f, `SELECT `+attendanceColumns+` FROM attendance WHERE id = $1`, id)
	f.Date = core.Day(f.Date)
	return f, translate(err, attendance.ErrNotFound, nil)
}

// UpdateFact only changes the status and marker; the key of a fact is immutable.
func (repo attendanceRepository) UpdateFact(ctx context.Context, f attendance.Fact) (stored attendance.Fact, err error) {
	err = repo.db.GetContext(ctx, &stored,
		`UPDATE attendance SET status = $2, marked_by = $3, updated_at = $4 WHERE id = $1 RETURNING `+attendanceColumns,
		f.ID, f.Status, f.MarkedBy, f.UpdatedAt)
	stored.Date = core.Day(stored.Date)
	return stored, translate(err, attendance.ErrNotFound, nil)
}

func (repo attendanceRepository) DeleteFact(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return translate(err, attendance.ErrNotFound, nil)
	}
	return affected(res, attendance.ErrNotFound)
}

func (repo attendanceRepository) QueryFacts(ctx context.Context, f attendance.Filter) ([]attendance.Fact, error) {
	var w where
	if f.EnrolleeID != "" {
		w.add("enrollee_id = ?", f.EnrolleeID)
	}
	if f.CourseID != "" {
		w.add("course_id = ?", f.CourseID)
	}
	if !f.From.IsZero() {
		w.add("day >= ?", core.Day(f.From))
	}
	if !f.Until.IsZero() {
		w.add("day <= ?", core.Day(f.Until))
	}

	facts := make([]attendance.Fact, 0)
	q := repo.db.Rebind(`SELECT ` + attendanceColumns + ` FROM attendance` + w.String() +
		` ORDER BY day, course_id, enrollee_id`)
	if err := repo.db.SelectContext(ctx, &facts, q, w.args...); err != nil {
		if malformed(err) {
			return facts, nil
		}
		return nil, errors.Wrap(err, "selecting attendance")
	}
	for i := range facts {
		facts[i].Date = core.Day(facts[i].Date)
	}
	return facts, nil
}

func (repo attendanceRepository) DeleteByEnrollee(ctx context.Context, enrolleeID string) (int, error) {
	return count(repo.db.ExecContext(ctx, `DELETE FROM attendance WHERE enrollee_id = $1`, enrolleeID))
}

func (repo attendanceRepository) DeleteByCourse(ctx context.Context, courseID string) (int, error) {
	return count(repo.db.ExecContext(ctx, `DELETE FROM attendance WHERE course_id = $1`, courseID))
}
