package boltdb

import (
	"context"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/person"
)

type personRepository struct {
	db *DB
}

var _ person.Repository = (*personRepository)(nil) // interface compliance check

func NewPersonRepository(db *DB) *personRepository {
	return &personRepository{db: db}
}

func (repo personRepository) insertPerson(tx *bbolt.Tx, p person.Person) error {
	if err := claim(tx, bktPersonsByEmail, p.Email, p.ID, person.ErrEmailTaken); err != nil {
		return err
	}
	return put(tx, bktPersons, p.ID, p)
}

func (repo personRepository) CreateEnrollee(_ context.Context, p person.Person, e person.Enrollee) (person.Enrollee, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		if err := repo.insertPerson(tx, p); err != nil {
			return err
		}
		if err := claim(tx, bktEnrolleesByNumber, e.EnrollmentNumber, e.ID, person.ErrEnrollmentNumberTaken); err != nil {
			return err
		}
		if err := claim(tx, bktEnrolleesByPerson, p.ID, e.ID, person.ErrEmailTaken); err != nil {
			return err
		}
		e.Person = person.Person{}
		return put(tx, bktEnrollees, e.ID, e)
	})
	if err != nil {
		return person.Enrollee{}, err
	}
	e.Person = p
	return e, nil
}

func (repo personRepository) CreateInstructor(_ context.Context, p person.Person, i person.Instructor) (person.Instructor, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		if err := repo.insertPerson(tx, p); err != nil {
			return err
		}
		if err := claim(tx, bktInstructorsByEmpID, i.EmployeeID, i.ID, person.ErrEmployeeIDTaken); err != nil {
			return err
		}
		if err := claim(tx, bktInstructorsByPerson, p.ID, i.ID, person.ErrEmailTaken); err != nil {
			return err
		}
		i.Person = person.Person{}
		return put(tx, bktInstructors, i.ID, i)
	})
	if err != nil {
		return person.Instructor{}, err
	}
	i.Person = p
	return i, nil
}

func (repo personRepository) CreateAdmin(_ context.Context, p person.Person) (person.Person, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		return repo.insertPerson(tx, p)
	})
	if err != nil {
		return person.Person{}, err
	}
	return p, nil
}

func (repo personRepository) GetPerson(_ context.Context, id string) (p person.Person, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		p, err = get[person.Person](tx, bktPersons, id, person.ErrNotFound)
		return err
	})
	return p, err
}

func (repo personRepository) GetPersonByEmail(ctx context.Context, email string) (person.Person, error) {
	var id string
	_ = repo.db.view(func(tx *bbolt.Tx) error {
		id = lookup(tx, bktPersonsByEmail, email)
		return nil
	})
	if id == "" {
		return person.Person{}, person.ErrNotFound
	}
	return repo.GetPerson(ctx, id)
}

func getEnrollee(tx *bbolt.Tx, id string) (person.Enrollee, error) {
	e, err := get[person.Enrollee](tx, bktEnrollees, id, person.ErrEnrolleeNotFound)
	if err != nil {
		return e, err
	}
	e.Person, err = get[person.Person](tx, bktPersons, e.PersonID, person.ErrNotFound)
	return e, err
}

func (repo personRepository) GetEnrollee(_ context.Context, id string) (e person.Enrollee, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		e, err = getEnrollee(tx, id)
		return err
	})
	return e, err
}

func (repo personRepository) GetInstructor(_ context.Context, id string) (i person.Instructor, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		if i, err = get[person.Instructor](tx, bktInstructors, id, person.ErrInstructorNotFound); err != nil {
			return err
		}
		i.Person, err = get[person.Person](tx, bktPersons, i.PersonID, person.ErrNotFound)
		return err
	})
	return i, err
}

func (repo personRepository) QueryEnrollees(_ context.Context, f person.EnrolleeFilter) ([]person.Enrollee, error) {
	var enrollees []person.Enrollee
	err := repo.db.view(func(tx *bbolt.Tx) error {
		all, err := scan[person.Enrollee](tx, bktEnrollees, nil)
		if err != nil {
			return err
		}
		enrollees = make([]person.Enrollee, 0, len(all))
		for _, e := range all {
			if e.Person, err = get[person.Person](tx, bktPersons, e.PersonID, person.ErrNotFound); err != nil {
				return err
			}
			if f.Match(e) {
				enrollees = append(enrollees, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(enrollees, func(i, j int) bool { return enrollees[i].EnrollmentNumber < enrollees[j].EnrollmentNumber })
	return enrollees, nil
}

func (repo personRepository) QueryInstructors(_ context.Context, f person.InstructorFilter) ([]person.Instructor, error) {
	var instructors []person.Instructor
	err := repo.db.view(func(tx *bbolt.Tx) error {
		all, err := scan[person.Instructor](tx, bktInstructors, nil)
		if err != nil {
			return err
		}
		instructors = make([]person.Instructor, 0, len(all))
		for _, i := range all {
			if i.Person, err = get[person.Person](tx, bktPersons, i.PersonID, person.ErrNotFound); err != nil {
				return err
			}
			if f.Match(i) {
				instructors = append(instructors, i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(instructors, func(i, j int) bool { return instructors[i].EmployeeID < instructors[j].EmployeeID })
	return instructors, nil
}

func (repo personRepository) DeletePerson(_ context.Context, id string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		p, err := get[person.Person](tx, bktPersons, id, person.ErrNotFound)
		if err != nil {
			return err
		}
		switch p.Role {
		case access.RoleEnrollee:
			if eid := lookup(tx, bktEnrolleesByPerson, p.ID); eid != "" {
				e, err := get[person.Enrollee](tx, bktEnrollees, eid, person.ErrEnrolleeNotFound)
				if err != nil {
					return err
				}
				if err = release(tx, bktEnrolleesByNumber, e.EnrollmentNumber); err != nil {
					return err
				}
				if err = release(tx, bktEnrolleesByPerson, p.ID); err != nil {
					return err
				}
				if err = del(tx, bktEnrollees, eid); err != nil {
					return err
				}
			}
		case access.RoleInstructor:
			if iid := lookup(tx, bktInstructorsByPerson, p.ID); iid != "" {
				i, err := get[person.Instructor](tx, bktInstructors, iid, person.ErrInstructorNotFound)
				if err != nil {
					return err
				}
				if err = release(tx, bktInstructorsByEmpID, i.EmployeeID); err != nil {
					return err
				}
				if err = release(tx, bktInstructorsByPerson, p.ID); err != nil {
					return err
				}
				if err = del(tx, bktInstructors, iid); err != nil {
					return err
				}
			}
		}
		if err = release(tx, bktPersonsByEmail, p.Email); err != nil {
			return err
		}
		return del(tx, bktPersons, p.ID)
	})
}

func (repo personRepository) EnrolleeIDByPerson(_ context.Context, personID string) (string, error) {
	var id string
	_ = repo.db.view(func(tx *bbolt.Tx) error {
		id = lookup(tx, bktEnrolleesByPerson, personID)
		return nil
	})
	if id == "" {
		return "", person.ErrEnrolleeNotFound
	}
	return id, nil
}

func (repo personRepository) InstructorIDByPerson(_ context.Context, personID string) (string, error) {
	var id string
	_ = repo.db.view(func(tx *bbolt.Tx) error {
		id = lookup(tx, bktInstructorsByPerson, personID)
		return nil
	})
	if id == "" {
		return "", person.ErrInstructorNotFound
	}
	return id, nil
}
