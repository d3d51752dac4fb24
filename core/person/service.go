package person

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
)

var (
	ErrNotFound               = core.NewNotFoundError("person not found")
	ErrEnrolleeNotFound       = core.NewNotFoundError("enrollee not found")
	ErrInstructorNotFound     = core.NewNotFoundError("instructor not found")
	ErrEmailTaken             = core.NewConflictError("email already in use")
	ErrEnrollmentNumberTaken  = core.NewConflictError("enrollment number already in use")
	ErrEmployeeIDTaken        = core.NewConflictError("employee id already in use")
	ErrCannotDeleteSelf       = core.NewFieldError("id", "you cannot delete yourself")
	errUnsupportedProfileRole = errors.New("unsupported profile role")
)

type (
	Repository interface {
		// CreateEnrollee stores the person and its profile together.
		CreateEnrollee(ctx context.Context, p Person, e Enrollee) (Enrollee, error)
		CreateInstructor(ctx context.Context, p Person, i Instructor) (Instructor, error)
		CreateAdmin(ctx context.Context, p Person) (Person, error)

		GetPerson(ctx context.Context, id string) (Person, error)
		GetPersonByEmail(ctx context.Context, email string) (Person, error)
		GetEnrollee(ctx context.Context, id string) (Enrollee, error)
		GetInstructor(ctx context.Context, id string) (Instructor, error)
		QueryEnrollees(ctx context.Context, f EnrolleeFilter) ([]Enrollee, error)
		QueryInstructors(ctx context.Context, f InstructorFilter) ([]Instructor, error)

		// DeletePerson deletes the person and its profile together.
		DeletePerson(ctx context.Context, id string) error

		EnrolleeIDByPerson(ctx context.Context, personID string) (string, error)
		InstructorIDByPerson(ctx context.Context, personID string) (string, error)
	}

	// EnrolleePurger removes what an enrollee owns before the enrollee is deleted.
	EnrolleePurger interface {
		PurgeEnrollee(ctx context.Context, enrolleeID string) error
	}

	// InstructorPurger detaches an instructor before it is deleted.
	InstructorPurger interface {
		PurgeInstructor(ctx context.Context, instructorID string) error
	}
)

var _ access.ProfileResolver = (Repository)(nil)

var NowFunc = time.Now // mockable

type Service struct {
	repo              Repository
	guard             *access.Guard
	recorder          audit.Recorder
	enrolleePurgers   []EnrolleePurger
	instructorPurgers []InstructorPurger
}

func NewService(repo Repository, guard *access.Guard, recorder audit.Recorder) *Service {
	return &Service{repo: repo, guard: guard, recorder: recorder}
}

// OnDeleteEnrollee registers purgers run, in order, before an enrollee is deleted.
func (svc *Service) OnDeleteEnrollee(purgers ...EnrolleePurger) {
	svc.enrolleePurgers = append(svc.enrolleePurgers, purgers...)
}

// OnDeleteInstructor registers purgers run, in order, before an instructor is deleted.
func (svc *Service) OnDeleteInstructor(purgers ...InstructorPurger) {
	svc.instructorPurgers = append(svc.instructorPurgers, purgers...)
}

func (svc *Service) CreateEnrollee(ctx context.Context, caller access.Caller, data NewEnrollee) (Enrollee, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return Enrollee{}, err
	}
	data.clean()
	if err := core.Validate(data); err != nil {
		return Enrollee{}, err
	}

	now := NowFunc().UTC()
	p := data.toPerson(uuid.New().String(), access.RoleEnrollee, now)
	e := Enrollee{
		ID:               uuid.New().String(),
		PersonID:         p.ID,
		EnrollmentNumber: data.EnrollmentNumber,
		Programme:        data.Programme,
		Level:            data.Level,
		CreatedAt:        now,
	}
	e, err := svc.repo.CreateEnrollee(ctx, p, e)
	if err != nil {
		return Enrollee{}, errors.Wrap(err, "inserting enrollee")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionCreateEnrollee, audit.TargetEnrollee, e.ID,
		fmt.Sprintf("created enrollee %s (%s)", p.Name, e.EnrollmentNumber),
		audit.Details{"person_id": p.ID, "email": p.Email},
	))
	return e, nil
}

func (svc *Service) CreateInstructor(ctx context.Context, caller access.Caller, data NewInstructor) (Instructor, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return Instructor{}, err
	}
	data.clean()
	if err := core.Validate(data); err != nil {
		return Instructor{}, err
	}

	now := NowFunc().UTC()
	p := data.toPerson(uuid.New().String(), access.RoleInstructor, now)
	i := Instructor{
		ID:          uuid.New().String(),
		PersonID:    p.ID,
		EmployeeID:  data.EmployeeID,
		Designation: data.Designation,
		CreatedAt:   now,
	}
	i, err := svc.repo.CreateInstructor(ctx, p, i)
	if err != nil {
		return Instructor{}, errors.Wrap(err, "inserting instructor")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionCreateInstructor, audit.TargetInstructor, i.ID,
		fmt.Sprintf("created instructor %s (%s)", p.Name, i.EmployeeID),
		audit.Details{"person_id": p.ID, "email": p.Email},
	))
	return i, nil
}

func (svc *Service) CreateAdmin(ctx context.Context, caller access.Caller, data NewPerson) (Person, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return Person{}, err
	}
	data.clean()
	if err := core.Validate(data); err != nil {
		return Person{}, err
	}

	p, err := svc.repo.CreateAdmin(ctx, data.toPerson(uuid.New().String(), access.RoleAdmin, NowFunc().UTC()))
	if err != nil {
		return Person{}, errors.Wrap(err, "inserting admin")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionCreateAdmin, audit.TargetPerson, p.ID,
		fmt.Sprintf("created administrator %s", p.Name), audit.Details{"email": p.Email},
	))
	return p, nil
}

// Me returns the caller's person with its profile.
func (svc *Service) Me(ctx context.Context, caller access.Caller) (Profile, error) {
	p, err := svc.repo.GetPerson(ctx, caller.PersonID)
	if err != nil {
		return Profile{}, errors.Wrap(err, "getting person")
	}
	return svc.profile(ctx, p)
}

// Get returns a person with its profile. Non admins can only get themselves.
func (svc *Service) Get(ctx context.Context, caller access.Caller, id string) (Profile, error) {
	if caller.PersonID != id {
		if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
			return Profile{}, access.Conceal(err, ErrNotFound)
		}
	}
	p, err := svc.repo.GetPerson(ctx, id)
	if err != nil {
		return Profile{}, errors.Wrap(err, "getting person")
	}
	return svc.profile(ctx, p)
}

func (svc *Service) profile(ctx context.Context, p Person) (Profile, error) {
	prof := Profile{Person: p}
	switch p.Role {
	case access.RoleEnrollee:
		id, err := svc.repo.EnrolleeIDByPerson(ctx, p.ID)
		if err != nil {
			return Profile{}, errors.Wrap(err, "resolving enrollee profile")
		}
		e, err := svc.repo.GetEnrollee(ctx, id)
		if err != nil {
			return Profile{}, errors.Wrap(err, "getting enrollee")
		}
		prof.Enrollee = &e
	case access.RoleInstructor:
		id, err := svc.repo.InstructorIDByPerson(ctx, p.ID)
		if err != nil {
			return Profile{}, errors.Wrap(err, "resolving instructor profile")
		}
		i, err := svc.repo.GetInstructor(ctx, id)
		if err != nil {
			return Profile{}, errors.Wrap(err, "getting instructor")
		}
		prof.Instructor = &i
	}
	return prof, nil
}

// GetEnrollee is open to whoever may read the enrollee's records.
func (svc *Service) GetEnrollee(ctx context.Context, caller access.Caller, id string) (Enrollee, error) {
	if err := svc.guard.Authorize(ctx, caller, access.ReadEnrollee, access.Target{EnrolleeID: id}); err != nil {
		return Enrollee{}, access.Conceal(err, ErrEnrolleeNotFound)
	}
	return svc.repo.GetEnrollee(ctx, id)
}

func (svc *Service) ListEnrollees(ctx context.Context, caller access.Caller, f EnrolleeFilter) ([]Enrollee, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return nil, err
	}
	return svc.repo.QueryEnrollees(ctx, f)
}

func (svc *Service) ListInstructors(ctx context.Context, caller access.Caller, f InstructorFilter) ([]Instructor, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return nil, err
	}
	return svc.repo.QueryInstructors(ctx, f)
}

// Delete removes a person with its profile, after purging what the profile owns.
func (svc *Service) Delete(ctx context.Context, caller access.Caller, id string) error {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return err
	}
	if caller.PersonID == id {
		return ErrCannotDeleteSelf
	}

	p, err := svc.repo.GetPerson(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting person")
	}

	var (
		action    audit.Action
		kind      audit.TargetKind
		profileID string
	)
	switch p.Role {
	case access.RoleEnrollee:
		if profileID, err = svc.repo.EnrolleeIDByPerson(ctx, id); err != nil {
			return errors.Wrap(err, "resolving enrollee profile")
		}
		for _, purger := range svc.enrolleePurgers {
			if err = purger.PurgeEnrollee(ctx, profileID); err != nil {
				return errors.Wrap(err, "purging enrollee records")
			}
		}
		action, kind = audit.ActionDeleteEnrollee, audit.TargetEnrollee
	case access.RoleInstructor:
		if profileID, err = svc.repo.InstructorIDByPerson(ctx, id); err != nil {
			return errors.Wrap(err, "resolving instructor profile")
		}
		for _, purger := range svc.instructorPurgers {
			if err = purger.PurgeInstructor(ctx, profileID); err != nil {
				return errors.Wrap(err, "purging instructor assignments")
			}
		}
		action, kind = audit.ActionDeleteInstructor, audit.TargetInstructor
	case access.RoleAdmin:
		return core.NewFieldError("id", "administrators cannot be deleted")
	default:
		return errUnsupportedProfileRole
	}

	if err = svc.repo.DeletePerson(ctx, id); err != nil {
		return errors.Wrap(err, "deleting person")
	}

	svc.recorder.Record(audit.NewEntry(caller, action, kind, profileID,
		fmt.Sprintf("deleted %s %s", p.Role, p.Name),
		audit.Details{"person_id": p.ID, "email": p.Email},
	))
	return nil
}
