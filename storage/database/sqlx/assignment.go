package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/assignment"
)

const (
	taskColumns = `id, course_id, instructor_id, title, description, document_handle, due_at, max_score,
	created_at, updated_at`
	submissionColumns = `id, task_id, course_id, enrollee_id, document_handle, submitted_at, late, status,
	score, feedback, graded_at, graded_by, updated_at`
)

var submissionConflicts = conflicts{"submissions_key": assignment.ErrAlreadySubmitted}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) CreateTask(ctx context.Context, t assignment.Task) (assignment.Task, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		VALUES (:id, :course_id, :instructor_id, :title, :description, :document_handle, :due_at, :max_score,
		:created_at, :updated_at)`, t)
	if err != nil {
		return assignment.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo assignmentRepository) GetTask(ctx context.Context, id string) (t assignment.Task, err error) {
	err = repo.db.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return t, translate(err, assignment.ErrTaskNotFound, nil)
}

func (repo assignmentRepository) UpdateTask(ctx context.Context, t assignment.Task) (assignment.Task, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE tasks SET title = :title, description = :description, document_handle = :document_handle,
		due_at = :due_at, max_score = :max_score, updated_at = :updated_at
		WHERE id = :id`, t)
	if err != nil {
		return assignment.Task{}, translate(err, assignment.ErrTaskNotFound, nil)
	}
	if err = affected(res, assignment.ErrTaskNotFound); err != nil {
		return assignment.Task{}, err
	}
	return t, nil
}

// DeleteTask relies on ON DELETE CASCADE to remove submissions.
func (repo assignmentRepository) DeleteTask(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return translate(err, assignment.ErrTaskNotFound, nil)
	}
	return affected(res, assignment.ErrTaskNotFound)
}

func (repo assignmentRepository) QueryTasks(ctx context.Context, f assignment.TaskFilter) ([]assignment.Task, error) {
	var w where
	if len(f.CourseIDs) > 0 {
		w.add("course_id = ANY(?)", pq.Array(f.CourseIDs))
	}

	tasks := make([]assignment.Task, 0)
	q := repo.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks` + w.String() + ` ORDER BY due_at, title`)
	if err := repo.db.SelectContext(ctx, &tasks, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}
	return tasks, nil
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission) (assignment.Submission, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO submissions (`+submissionColumns+`)
		VALUES (:id, :task_id, :course_id, :enrollee_id, :document_handle, :submitted_at, :late, :status,
		:score, :feedback, :graded_at, :graded_by, :updated_at)`, s)
	if err != nil {
		return assignment.Submission{}, translate(err, assignment.ErrTaskNotFound, submissionConflicts)
	}
	return s, nil
}

func (repo assignmentRepository) GetSubmission(ctx context.Context, id string) (s assignment.Submission, err error) {
	err = repo.db.GetContext(ctx, &s, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	return s, translate(err, assignment.ErrSubmissionNotFound, nil)
}

// UpdateSubmission only changes the grading fields; submitted_at and late never change.
func (repo assignmentRepository) UpdateSubmission(ctx context.Context, s assignment.Submission) (stored assignment.Submission, err error) {
	err = repo.db.GetContext(ctx, &stored,
		`UPDATE submissions SET status = $2, score = $3, feedback = $4, graded_at = $5, graded_by = $6, updated_at = $7
		WHERE id = $1 RETURNING `+submissionColumns,
		s.ID, s.Status, s.Score, s.Feedback, s.GradedAt, s.GradedBy, s.UpdatedAt)
	return stored, translate(err, assignment.ErrSubmissionNotFound, nil)
}

func (repo assignmentRepository) QuerySubmissions(ctx context.Context, f assignment.SubmissionFilter) ([]assignment.Submission, error) {
	var w where
	if f.TaskID != "" {
		w.add("task_id = ?", f.TaskID)
	}
	if f.CourseID != "" {
		w.add("course_id = ?", f.CourseID)
	}
	if f.EnrolleeID != "" {
		w.add("enrollee_id = ?", f.EnrolleeID)
	}

	subs := make([]assignment.Submission, 0)
	q := repo.db.Rebind(`SELECT ` + submissionColumns + ` FROM submissions` + w.String() + ` ORDER BY submitted_at, id`)
	if err := repo.db.SelectContext(ctx, &subs, q, w.args...); err != nil {
		if malformed(err) {
			return subs, nil
		}
		return nil, errors.Wrap(err, "selecting submissions")
	}
	return subs, nil
}

func (repo assignmentRepository) DeleteSubmissionsByEnrollee(ctx context.Context, enrolleeID string) (int, error) {
	return count(repo.db.ExecContext(ctx, `DELETE FROM submissions WHERE enrollee_id = $1`, enrolleeID))
}

// DeleteByCourse returns the number of deleted tasks.
func (repo assignmentRepository) DeleteByCourse(ctx context.Context, courseID string) (int, error) {
	return count(repo.db.ExecContext(ctx, `DELETE FROM tasks WHERE course_id = $1`, courseID))
}
