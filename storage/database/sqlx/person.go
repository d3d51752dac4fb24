package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/person"
)

const (
	personColumns = `id, name, email, role, unit, created_at, updated_at`

	joinedPerson = `p.id AS "person.id", p.name AS "person.name", p.email AS "person.email",
	p.role AS "person.role", p.unit AS "person.unit", p.created_at AS "person.created_at",
	p.updated_at AS "person.updated_at"`

	enrolleeSelect = `SELECT e.id, e.person_id, e.enrollment_number, e.programme, e.level, e.created_at, ` +
		joinedPerson + ` FROM enrollees e JOIN persons p ON p.id = e.person_id`

	instructorSelect = `SELECT i.id, i.person_id, i.employee_id, i.designation, i.created_at, ` +
		joinedPerson + ` FROM instructors i JOIN persons p ON p.id = i.person_id`
)

var personConflicts = conflicts{
	"persons_email_key":        person.ErrEmailTaken,
	"enrollees_person_key":     person.ErrEmailTaken,
	"enrollees_number_key":     person.ErrEnrollmentNumberTaken,
	"instructors_person_key":   person.ErrEmailTaken,
	"instructors_employee_key": person.ErrEmployeeIDTaken,
}

type personRepository struct {
	db *sqlx.DB
}

var _ person.Repository = (*personRepository)(nil) // interface compliance check

func NewPersonRepository(db *sqlx.DB) *personRepository {
	return &personRepository{db: db}
}

func insertPerson(ctx context.Context, tx *sqlx.Tx, p person.Person) error {
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO persons (`+personColumns+`)
		VALUES (:id, :name, :email, :role, :unit, :created_at, :updated_at)`, p)
	return translate(err, person.ErrNotFound, personConflicts)
}

func (repo personRepository) CreateEnrollee(ctx context.Context, p person.Person, e person.Enrollee) (person.Enrollee, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := insertPerson(ctx, tx, p); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO enrollees (id, person_id, enrollment_number, programme, level, created_at)
			VALUES (:id, :person_id, :enrollment_number, :programme, :level, :created_at)`, e)
		return translate(err, person.ErrEnrolleeNotFound, personConflicts)
	})
	if err != nil {
		return person.Enrollee{}, err
	}
	e.Person = p
	return e, nil
}

func (repo personRepository) CreateInstructor(ctx context.Context, p person.Person, i person.Instructor) (person.Instructor, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := insertPerson(ctx, tx, p); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO instructors (id, person_id, employee_id, designation, created_at)
			VALUES (:id, :person_id, :employee_id, :designation, :created_at)`, i)
		return translate(err, person.ErrInstructorNotFound, personConflicts)
	})
	if err != nil {
		return person.Instructor{}, err
	}
	i.Person = p
	return i, nil
}

func (repo personRepository) CreateAdmin(ctx context.Context, p person.Person) (person.Person, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		return insertPerson(ctx, tx, p)
	})
	if err != nil {
		return person.Person{}, err
	}
	return p, nil
}

func (repo personRepository) GetPerson(ctx context.Context, id string) (p person.Person, err error) {
	err = repo.db.GetContext(ctx, &p, `SELECT `+personColumns+` FROM persons WHERE id = $1`, id)
	return p, translate(err, person.ErrNotFound, nil)
}

func (repo personRepository) GetPersonByEmail(ctx context.Context, email string) (p person.Person, err error) {
	err = repo.db.GetContext(ctx, &p, `SELECT `+personColumns+` FROM persons WHERE email = $1`, email)
	return p, translate(err, person.ErrNotFound, nil)
}

func (repo personRepository) GetEnrollee(ctx context.Context, id string) (e person.Enrollee, err error) {
	err = repo.db.GetContext(ctx, &e, enrolleeSelect+` WHERE e.id = $1`, id)
	return e, translate(err, person.ErrEnrolleeNotFound, nil)
}

func (repo personRepository) GetInstructor(ctx context.Context, id string) (i person.Instructor, err error) {
	err = repo.db.GetContext(ctx, &i, instructorSelect+` WHERE i.id = $1`, id)
	return i, translate(err, person.ErrInstructorNotFound, nil)
}

func (repo personRepository) QueryEnrollees(ctx context.Context, f person.EnrolleeFilter) ([]person.Enrollee, error) {
	var w where
	if len(f.IDs) > 0 {
		w.add("e.id = ANY(?)", pq.Array(f.IDs))
	}
	if f.Programme != "" {
		w.add("e.programme = ?", f.Programme)
	}
	if f.Level != 0 {
		w.add("e.level = ?", f.Level)
	}
	if f.Unit != "" {
		w.add("p.unit = ?", f.Unit)
	}

	enrollees := make([]person.Enrollee, 0)
	q := repo.db.Rebind(enrolleeSelect + w.String() + ` ORDER BY e.enrollment_number`)
	if err := repo.db.SelectContext(ctx, &enrollees, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollees")
	}
	return enrollees, nil
}

func (repo personRepository) QueryInstructors(ctx context.Context, f person.InstructorFilter) ([]person.Instructor, error) {
	var w where
	if len(f.IDs) > 0 {
		w.add("i.id = ANY(?)", pq.Array(f.IDs))
	}
	if f.Unit != "" {
		w.add("p.unit = ?", f.Unit)
	}

	instructors := make([]person.Instructor, 0)
	q := repo.db.Rebind(instructorSelect + w.String() + ` ORDER BY i.employee_id`)
	if err := repo.db.SelectContext(ctx, &instructors, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting instructors")
	}
	return instructors, nil
}

// DeletePerson relies on ON DELETE CASCADE to remove the profile.
func (repo personRepository) DeletePerson(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting person")
	}
	return affected(res, person.ErrNotFound)
}

func (repo personRepository) EnrolleeIDByPerson(ctx context.Context, personID string) (id string, err error) {
	err = repo.db.GetContext(ctx, &id, `SELECT id FROM enrollees WHERE person_id = $1`, personID)
	return id, translate(err, person.ErrEnrolleeNotFound, nil)
}

func (repo personRepository) InstructorIDByPerson(ctx context.Context, personID string) (id string, err error) {
	err = repo.db.GetContext(ctx, &id, `SELECT id FROM instructors WHERE person_id = $1`, personID)
	return id, translate(err, person.ErrInstructorNotFound, nil)
}
