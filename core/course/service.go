package course

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/person"
)

var (
	ErrNotFound  = core.NewNotFoundError("course not found")
	ErrCodeTaken = core.NewConflictError("a course with this code already exists for this term")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, f Filter) ([]Course, error)
		SetInstructor(ctx context.Context, courseID string, instructorID null.String) (Course, error)
		// DeleteCourse deletes the course and its enrollments.
		DeleteCourse(ctx context.Context, id string) error

		// Enroll is idempotent.
		Enroll(ctx context.Context, e Enrollment) error
		Unenroll(ctx context.Context, courseID, enrolleeID string) error
		EnrolleeIDs(ctx context.Context, courseID string) ([]string, error)
		EnrolledCourseIDs(ctx context.Context, enrolleeID string) ([]string, error)
		DeleteEnrollments(ctx context.Context, enrolleeID string) error
		UnassignInstructor(ctx context.Context, instructorID string) error

		CourseInstructorID(ctx context.Context, courseID string) (string, error)
		InstructorCourseIDs(ctx context.Context, instructorID string) ([]string, error)
		IsEnrolled(ctx context.Context, enrolleeID, courseID string) (bool, error)
	}

	// People looks up the profiles courses refer to.
	People interface {
		GetEnrollee(ctx context.Context, id string) (person.Enrollee, error)
		GetInstructor(ctx context.Context, id string) (person.Instructor, error)
		QueryEnrollees(ctx context.Context, f person.EnrolleeFilter) ([]person.Enrollee, error)
	}

	// Purger removes what hangs off a course before it is deleted.
	Purger interface {
		PurgeCourse(ctx context.Context, courseID string) error
	}
)

var _ access.CourseResolver = (Repository)(nil)

var NowFunc = time.Now // mockable

type Service struct {
	repo     Repository
	people   People
	guard    *access.Guard
	recorder audit.Recorder
	purgers  []Purger
}

var (
	_ person.EnrolleePurger   = (*Service)(nil)
	_ person.InstructorPurger = (*Service)(nil)
)

func NewService(repo Repository, people People, guard *access.Guard, recorder audit.Recorder) *Service {
	return &Service{repo: repo, people: people, guard: guard, recorder: recorder}
}

// OnDelete registers purgers run, in order, before a course is deleted.
func (svc *Service) OnDelete(purgers ...Purger) {
	svc.purgers = append(svc.purgers, purgers...)
}

func (svc *Service) Create(ctx context.Context, caller access.Caller, data NewCourse) (Course, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return Course{}, err
	}
	data.clean()
	if err := core.Validate(data); err != nil {
		return Course{}, err
	}
	if data.InstructorID != "" {
		if _, err := svc.people.GetInstructor(ctx, data.InstructorID); err != nil {
			if core.IsNotFound(err) {
				return Course{}, core.NewFieldError("instructor_id", "instructor not found")
			}
			return Course{}, errors.Wrap(err, "getting instructor")
		}
	}

	now := NowFunc().UTC()
	c := Course{
		ID:        uuid.New().String(),
		Code:      data.Code,
		Name:      data.Name,
		Credits:   data.Credits,
		Term:      data.Term,
		Unit:      data.Unit,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if data.InstructorID != "" {
		c.InstructorID = null.StringFrom(data.InstructorID)
	}
	c, err := svc.repo.CreateCourse(ctx, c)
	if err != nil {
		return Course{}, errors.Wrap(err, "inserting course")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionCreateCourse, audit.TargetCourse, c.ID,
		fmt.Sprintf("created course %s", c.Code),
		audit.Details{"credits": c.Credits, "term": c.Term, "instructor_id": c.InstructorID.String},
	))
	return c, nil
}

// Get returns any course: the catalogue is public to every caller.
func (svc *Service) Get(ctx context.Context, caller access.Caller, id string) (Course, error) {
	if !caller.Role.Valid() {
		return Course{}, access.ErrForbidden
	}
	return svc.repo.GetCourse(ctx, id)
}

// List returns the courses the caller deals with: all of them for admins,
// the taught ones for instructors and the followed ones for enrollees.
func (svc *Service) List(ctx context.Context, caller access.Caller, f Filter) ([]Course, error) {
	switch caller.Role {
	case access.RoleAdmin:
	case access.RoleInstructor:
		id, err := svc.guard.InstructorID(ctx, caller)
		if err != nil {
			return nil, err
		}
		f.InstructorID = id
	case access.RoleEnrollee:
		id, err := svc.guard.EnrolleeID(ctx, caller)
		if err != nil {
			return nil, err
		}
		ids, err := svc.repo.EnrolledCourseIDs(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "listing enrolled courses")
		}
		if len(ids) == 0 {
			return []Course{}, nil
		}
		f.IDs = ids
	default:
		return nil, access.ErrForbidden
	}
	return svc.repo.QueryCourses(ctx, f)
}

// AssignInstructor links the course to an instructor; an empty instructorID unassigns it.
func (svc *Service) AssignInstructor(ctx context.Context, caller access.Caller, courseID, instructorID string) (Course, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return Course{}, err
	}
	instructorID = core.CleanString(instructorID)

	var inst null.String
	if instructorID != "" {
		if _, err := svc.people.GetInstructor(ctx, instructorID); err != nil {
			if core.IsNotFound(err) {
				return Course{}, core.NewFieldError("instructor_id", "instructor not found")
			}
			return Course{}, errors.Wrap(err, "getting instructor")
		}
		inst = null.StringFrom(instructorID)
	}

	c, err := svc.repo.SetInstructor(ctx, courseID, inst)
	if err != nil {
		return Course{}, errors.Wrap(err, "setting course instructor")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionAssignInstructor, audit.TargetCourse, c.ID,
		fmt.Sprintf("assigned instructor of %s", c.Code), audit.Details{"instructor_id": instructorID},
	))
	return c, nil
}

func (svc *Service) Enroll(ctx context.Context, caller access.Caller, courseID, enrolleeID string) error {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return err
	}
	c, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if _, err = svc.people.GetEnrollee(ctx, enrolleeID); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("enrollee_id", "enrollee not found")
		}
		return errors.Wrap(err, "getting enrollee")
	}

	if err = svc.repo.Enroll(ctx, Enrollment{CourseID: c.ID, EnrolleeID: enrolleeID, CreatedAt: NowFunc().UTC()}); err != nil {
		return errors.Wrap(err, "enrolling")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionEnroll, audit.TargetCourse, c.ID,
		fmt.Sprintf("enrolled %s in %s", enrolleeID, c.Code), audit.Details{"enrollee_id": enrolleeID},
	))
	return nil
}

func (svc *Service) Unenroll(ctx context.Context, caller access.Caller, courseID, enrolleeID string) error {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return err
	}
	if err := svc.repo.Unenroll(ctx, courseID, enrolleeID); err != nil {
		return errors.Wrap(err, "unenrolling")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionUnenroll, audit.TargetCourse, courseID,
		fmt.Sprintf("unenrolled %s", enrolleeID), audit.Details{"enrollee_id": enrolleeID},
	))
	return nil
}

// Roster lists the enrollees of a course.
func (svc *Service) Roster(ctx context.Context, caller access.Caller, courseID string) ([]person.Enrollee, error) {
	if err := svc.guard.Authorize(ctx, caller, access.ReadCourse, access.Target{CourseID: courseID}); err != nil {
		return nil, err
	}
	ids, err := svc.repo.EnrolleeIDs(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "listing course enrollees")
	}
	if len(ids) == 0 {
		return []person.Enrollee{}, nil
	}
	return svc.people.QueryEnrollees(ctx, person.EnrolleeFilter{IDs: ids})
}

// Delete removes a course with its enrollments, after purging its facts.
func (svc *Service) Delete(ctx context.Context, caller access.Caller, id string) error {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return err
	}
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	for _, purger := range svc.purgers {
		if err = purger.PurgeCourse(ctx, id); err != nil {
			return errors.Wrap(err, "purging course records")
		}
	}
	if err = svc.repo.DeleteCourse(ctx, id); err != nil {
		return errors.Wrap(err, "deleting course")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionDeleteCourse, audit.TargetCourse, id,
		fmt.Sprintf("deleted course %s", c.Code), nil,
	))
	return nil
}

func (svc *Service) PurgeEnrollee(ctx context.Context, enrolleeID string) error {
	return svc.repo.DeleteEnrollments(ctx, enrolleeID)
}

func (svc *Service) PurgeInstructor(ctx context.Context, instructorID string) error {
	return svc.repo.UnassignInstructor(ctx, instructorID)
}
