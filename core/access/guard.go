package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
)

type Action int

const (
	// ReadEnrollee reads records owned by one enrollee.
	ReadEnrollee Action = iota + 1
	// WriteCourse creates or updates facts of a course.
	WriteCourse
	// ReadCourse reads course-wide records and statistics.
	ReadCourse
	// Submit hands in work for a course.
	Submit
	SendNotice
	ReadNotices
	// Administer covers people, courses and the audit trail.
	Administer
)

var actionNames = map[Action]string{
	ReadEnrollee: "read_enrollee",
	WriteCourse:  "write_course",
	ReadCourse:   "read_course",
	Submit:       "submit",
	SendNotice:   "send_notice",
	ReadNotices:  "read_notices",
	Administer:   "administer",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Target is what an action applies to. Empty fields are ignored by actions that do not need them.
type Target struct {
	EnrolleeID string
	CourseID   string
}

type (
	// ProfileResolver maps a person to its role-specific profile.
	ProfileResolver interface {
		EnrolleeIDByPerson(ctx context.Context, personID string) (string, error)
		InstructorIDByPerson(ctx context.Context, personID string) (string, error)
	}

	CourseResolver interface {
		// CourseInstructorID returns "" for a course without instructor.
		CourseInstructorID(ctx context.Context, courseID string) (string, error)
		InstructorCourseIDs(ctx context.Context, instructorID string) ([]string, error)
		IsEnrolled(ctx context.Context, enrolleeID, courseID string) (bool, error)
	}
)

var (
	ErrForbidden = core.NewForbiddenError("permission denied")
	ErrNoProfile = core.NewForbiddenError("caller has no profile for this role")
)

type Guard struct {
	profiles ProfileResolver
	courses  CourseResolver
}

func NewGuard(profiles ProfileResolver, courses CourseResolver) *Guard {
	return &Guard{profiles: profiles, courses: courses}
}

// Authorize returns nil when caller may perform action on target, a ForbiddenError otherwise.
func (g *Guard) Authorize(ctx context.Context, caller Caller, action Action, target Target) error {
	if caller.PersonID == "" || !caller.Role.Valid() {
		return ErrForbidden
	}

	switch action {
	case ReadEnrollee:
		return g.CanReadEnrollee(ctx, caller, target.EnrolleeID)
	case WriteCourse:
		return g.CanWriteCourse(ctx, caller, target.CourseID)
	case ReadCourse:
		return g.CanReadCourse(ctx, caller, target.CourseID)
	case Submit:
		return g.CanSubmit(ctx, caller, target.EnrolleeID, target.CourseID)
	case SendNotice:
		return g.CanSendNotice(ctx, caller, target.CourseID)
	case ReadNotices:
		if caller.IsEnrollee() {
			return nil
		}
	case Administer:
		if caller.IsAdmin() {
			return nil
		}
	}
	return ErrForbidden
}

// CanReadEnrollee allows admins, instructors teaching one of the enrollee's courses,
// and the enrollee itself.
func (g *Guard) CanReadEnrollee(ctx context.Context, caller Caller, enrolleeID string) error {
	switch caller.Role {
	case RoleAdmin:
		return nil
	case RoleEnrollee:
		own, err := g.EnrolleeID(ctx, caller)
		if err != nil {
			return err
		}
		if own == enrolleeID {
			return nil
		}
	case RoleInstructor:
		instructorID, err := g.InstructorID(ctx, caller)
		if err != nil {
			return err
		}
		courseIDs, err := g.courses.InstructorCourseIDs(ctx, instructorID)
		if err != nil {
			return errors.Wrap(err, "listing instructor courses")
		}
		for _, courseID := range courseIDs {
			enrolled, err := g.courses.IsEnrolled(ctx, enrolleeID, courseID)
			if err != nil {
				return errors.Wrap(err, "checking enrollment")
			}
			if enrolled {
				return nil
			}
		}
	}
	return ErrForbidden
}

// CanWriteCourse allows admins and the instructor currently assigned to the course.
func (g *Guard) CanWriteCourse(ctx context.Context, caller Caller, courseID string) error {
	switch caller.Role {
	case RoleAdmin:
		return nil
	case RoleInstructor:
		return g.teaches(ctx, caller, courseID)
	}
	return ErrForbidden
}

// CanReadCourse: course-wide listings are for staff only.
func (g *Guard) CanReadCourse(ctx context.Context, caller Caller, courseID string) error {
	return g.CanWriteCourse(ctx, caller, courseID)
}

// CanSubmit allows an enrollee to hand in its own work for a course it is enrolled in.
func (g *Guard) CanSubmit(ctx context.Context, caller Caller, enrolleeID, courseID string) error {
	if !caller.IsEnrollee() {
		return ErrForbidden
	}
	own, err := g.EnrolleeID(ctx, caller)
	if err != nil {
		return err
	}
	if own != enrolleeID {
		return ErrForbidden
	}
	enrolled, err := g.courses.IsEnrolled(ctx, enrolleeID, courseID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return core.NewForbiddenError("not enrolled in this course")
	}
	return nil
}

// CanSendNotice: admins send to any audience, instructors only to a course they teach.
// An empty courseID means everyone.
func (g *Guard) CanSendNotice(ctx context.Context, caller Caller, courseID string) error {
	switch caller.Role {
	case RoleAdmin:
		return nil
	case RoleInstructor:
		if courseID == "" {
			return core.NewForbiddenError("instructors can only send course notices")
		}
		return g.teaches(ctx, caller, courseID)
	}
	return ErrForbidden
}

// EnrolleeID resolves the caller's own enrollee profile. Client supplied ids are never trusted for this.
func (g *Guard) EnrolleeID(ctx context.Context, caller Caller) (string, error) {
	if !caller.IsEnrollee() {
		return "", ErrForbidden
	}
	id, err := g.profiles.EnrolleeIDByPerson(ctx, caller.PersonID)
	if err != nil {
		if core.IsNotFound(err) {
			return "", ErrNoProfile
		}
		return "", errors.Wrap(err, "resolving enrollee profile")
	}
	return id, nil
}

// InstructorID resolves the caller's own instructor profile.
func (g *Guard) InstructorID(ctx context.Context, caller Caller) (string, error) {
	if !caller.IsInstructor() {
		return "", ErrForbidden
	}
	id, err := g.profiles.InstructorIDByPerson(ctx, caller.PersonID)
	if err != nil {
		if core.IsNotFound(err) {
			return "", ErrNoProfile
		}
		return "", errors.Wrap(err, "resolving instructor profile")
	}
	return id, nil
}

func (g *Guard) teaches(ctx context.Context, caller Caller, courseID string) error {
	instructorID, err := g.InstructorID(ctx, caller)
	if err != nil {
		return err
	}
	assigned, err := g.courses.CourseInstructorID(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "finding course instructor")
	}
	if assigned == "" || assigned != instructorID {
		return core.NewForbiddenError("not assigned to this course")
	}
	return nil
}

// Conceal turns a ForbiddenError into notFound so per-record lookups do not reveal existence.
func Conceal(err, notFound error) error {
	if core.IsForbidden(err) {
		return notFound
	}
	return err
}
