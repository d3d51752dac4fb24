package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/daftari/core/course"
)

const courseColumns = `id, code, name, credits, term, unit, instructor_id, created_at, updated_at`

var courseConflicts = conflicts{"courses_code_term_key": course.ErrCodeTaken}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO courses (`+courseColumns+`)
		VALUES (:id, :code, :name, :credits, :term, :unit, :instructor_id, :created_at, :updated_at)`, c)
	if err != nil {
		return course.Course{}, translate(err, course.ErrNotFound, courseConflicts)
	}
	return c, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (c course.Course, err error) {
	err = repo.db.GetContext(ctx, &c, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	return c, translate(err, course.ErrNotFound, nil)
}

func (repo courseRepository) QueryCourses(ctx context.Context, f course.Filter) ([]course.Course, error) {
	var w where
	if len(f.IDs) > 0 {
		w.add("id = ANY(?)", pq.Array(f.IDs))
	}
	if f.Term != 0 {
		w.add("term = ?", f.Term)
	}
	if f.Unit != "" {
		w.add("unit = ?", f.Unit)
	}
	if f.InstructorID != "" {
		w.add("instructor_id = ?", f.InstructorID)
	}

	courses := make([]course.Course, 0)
	q := repo.db.Rebind(`SELECT ` + courseColumns + ` FROM courses` + w.String() + ` ORDER BY term, code`)
	if err := repo.db.SelectContext(ctx, &courses, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	return courses, nil
}

func (repo courseRepository) SetInstructor(ctx context.Context, courseID string, instructorID null.String) (c course.Course, err error) {
	err = repo.db.GetContext(ctx, &c,
		`UPDATE courses SET instructor_id = $2, updated_at = $3 WHERE id = $1 RETURNING `+courseColumns,
		courseID, instructorID, course.NowFunc().UTC())
	return c, translate(err, course.ErrNotFound, nil)
}

// DeleteCourse relies on ON DELETE CASCADE to remove enrollments.
func (repo courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return affected(res, course.ErrNotFound)
}

func (repo courseRepository) Enroll(ctx context.Context, e course.Enrollment) error {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO enrollments (course_id, enrollee_id, created_at)
		VALUES (:course_id, :enrollee_id, :created_at)
		ON CONFLICT (course_id, enrollee_id) DO NOTHING`, e)
	return errors.Wrap(err, "inserting enrollment")
}

func (repo courseRepository) Unenroll(ctx context.Context, courseID, enrolleeID string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM enrollments WHERE course_id = $1 AND enrollee_id = $2`, courseID, enrolleeID)
	return errors.Wrap(err, "deleting enrollment")
}

func (repo courseRepository) EnrolleeIDs(ctx context.Context, courseID string) ([]string, error) {
	ids := make([]string, 0)
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT enrollee_id FROM enrollments WHERE course_id = $1 ORDER BY enrollee_id`, courseID)
	return ids, errors.Wrap(err, "selecting enrollees")
}

func (repo courseRepository) EnrolledCourseIDs(ctx context.Context, enrolleeID string) ([]string, error) {
	ids := make([]string, 0)
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT course_id FROM enrollments WHERE enrollee_id = $1 ORDER BY course_id`, enrolleeID)
	return ids, errors.Wrap(err, "selecting enrolled courses")
}

func (repo courseRepository) DeleteEnrollments(ctx context.Context, enrolleeID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM enrollments WHERE enrollee_id = $1`, enrolleeID)
	return errors.Wrap(err, "deleting enrollments")
}

func (repo courseRepository) UnassignInstructor(ctx context.Context, instructorID string) error {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE courses SET instructor_id = NULL, updated_at = $2 WHERE instructor_id = $1`,
		instructorID, course.NowFunc().UTC())
	return errors.Wrap(err, "unassigning instructor")
}

func (repo courseRepository) CourseInstructorID(ctx context.Context, courseID string) (string, error) {
	var id null.String
	err := repo.db.GetContext(ctx, &id, `SELECT instructor_id FROM courses WHERE id = $1`, courseID)
	if err != nil {
		return "", translate(err, course.ErrNotFound, nil)
	}
	return id.String, nil
}

func (repo courseRepository) InstructorCourseIDs(ctx context.Context, instructorID string) ([]string, error) {
	ids := make([]string, 0)
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT id FROM courses WHERE instructor_id = $1 ORDER BY term, code`, instructorID)
	return ids, errors.Wrap(err, "selecting taught courses")
}

func (repo courseRepository) IsEnrolled(ctx context.Context, enrolleeID, courseID string) (enrolled bool, err error) {
	err = repo.db.GetContext(ctx, &enrolled,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND enrollee_id = $2)`, courseID, enrolleeID)
	if malformed(err) {
		return false, nil
	}
	return enrolled, errors.Wrap(err, "checking enrollment")
}
