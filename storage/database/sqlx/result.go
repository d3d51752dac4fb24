package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/result"
)

const resultColumns = `id, enrollee_id, course_id, term, internal, external, total, grade, created_at, updated_at`

var resultConflicts = conflicts{"results_key": result.ErrAlreadyRecorded}

type resultRepository struct {
	db *sqlx.DB
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(db *sqlx.DB) *resultRepository {
	return &resultRepository{db: db}
}

func (repo resultRepository) CreateResult(ctx context.Context, f result.Fact) (result.Fact, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO results (`+resultColumns+`)
		VALUES (:id, :enrollee_id, :course_id, :term, :internal, :external, :total, :grade, :created_at, :updated_at)`, f)
	if err != nil {
		return result.Fact{}, translate(err, result.ErrNotFound, resultConflicts)
	}
	return f, nil
}

func (repo resultRepository) GetResult(ctx context.Context, id string) (f result.Fact, err error) {
	err = repo.db.GetContext(ctx, &f, `SELECT `+resultColumns+` FROM results WHERE id = $1`, id)
	return f, translate(err, result.ErrNotFound, nil)
}

// UpdateResult stores new scores with their derived total and grade.
func (repo resultRepository) UpdateResult(ctx context.Context, f result.Fact) (stored result.Fact, err error) {
	err = repo.db.GetContext(ctx, &stored,
		`UPDATE results SET internal = $2, external = $3, total = $4, grade = $5, updated_at = $6
		WHERE id = $1 RETURNING `+resultColumns,
		f.ID, f.Internal, f.External, f.Total, f.Grade, f.UpdatedAt)
	return stored, translate(err, result.ErrNotFound, nil)
}

func (repo resultRepository) DeleteResult(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM results WHERE id = $1`, id)
	if err != nil {
		return translate(err, result.ErrNotFound, nil)
	}
	return affected(res, result.ErrNotFound)
}

func (repo resultRepository) QueryResults(ctx context.Context, f result.Filter) ([]result.Fact, error) {
	var w where
	if f.EnrolleeID != "" {
		w.add("enrollee_id = ?", f.EnrolleeID)
	}
	if f.CourseID != "" {
		w.add("course_id = ?", f.CourseID)
	}
	if f.Term != 0 {
		w.add("term = ?", f.Term)
	}

	facts := make([]result.Fact, 0)
	q := repo.db.Rebind(`SELECT ` + resultColumns + ` FROM results` + w.String() + ` ORDER BY term, course_id, enrollee_id`)
	if err := repo.db.SelectContext(ctx, &facts, q, w.args...); err != nil {
		if malformed(err) {
			return facts, nil
		}
		return nil, errors.Wrap(err, "selecting results")
	}
	return facts, nil
}

func (repo resultRepository) DeleteByEnrollee(ctx context.Context, enrolleeID string) (int, error) {
	return count(repo.db.ExecContext(ctx, `DELETE FROM results WHERE enrollee_id = $1`, enrolleeID))
}

func (repo resultRepository) DeleteByCourse(ctx context.Context, courseID string) (int, error) {
	return count(repo.db.ExecContext(ctx, `DELETE FROM results WHERE course_id = $1`, courseID))
}
