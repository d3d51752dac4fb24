package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/person"
)

// CreateEnrollee creates an enrollee named name and returns it with its caller identity.
func (env *Env) CreateEnrollee(t *testing.T, name string) (person.Enrollee, access.Caller) {
	t.Helper()
	e, err := env.People.CreateEnrollee(context.Background(), env.Admin, person.NewEnrollee{
		NewPerson:        newPerson(name),
		EnrollmentNumber: "EN" + slug(name),
		Programme:        "BSc Computer Science",
		Level:            1,
	})
	require.NoError(t, err)
	return e, access.Caller{PersonID: e.PersonID, Role: access.RoleEnrollee}
}

func (env *Env) CreateInstructor(t *testing.T, name string) (person.Instructor, access.Caller) {
	t.Helper()
	i, err := env.People.CreateInstructor(context.Background(), env.Admin, person.NewInstructor{
		NewPerson:   newPerson(name),
		EmployeeID:  "EMP" + slug(name),
		Designation: "Lecturer",
	})
	require.NoError(t, err)
	return i, access.Caller{PersonID: i.PersonID, Role: access.RoleInstructor}
}

// CreateCourse creates a term 1 course taught by instructorID ("" for none).
func (env *Env) CreateCourse(t *testing.T, code string, credits int, instructorID string) course.Course {
	t.Helper()
	c, err := env.Courses.Create(context.Background(), env.Admin, course.NewCourse{
		Code:         code,
		Name:         "Course " + code,
		Credits:      credits,
		Term:         1,
		Unit:         "Engineering",
		InstructorID: instructorID,
	})
	require.NoError(t, err)
	return c
}

func (env *Env) Enroll(t *testing.T, courseID string, enrolleeIDs ...string) {
	t.Helper()
	for _, id := range enrolleeIDs {
		require.NoError(t, env.Courses.Enroll(context.Background(), env.Admin, courseID, id))
	}
}

func newPerson(name string) person.NewPerson {
	return person.NewPerson{
		Name:  name,
		Email: fmt.Sprintf("%s@daftari.test", strings.ToLower(slug(name))),
		Unit:  "Engineering",
	}
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range name {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
