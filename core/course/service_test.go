package course_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/testutil"
)

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	grace, graceCaller := env.CreateInstructor(t, "Grace")
	c := env.CreateCourse(t, "C101", 4, grace.ID)
	assert.Equal(t, grace.ID, c.InstructorID.String)

	newCourse := func(code string, credits int, instructorID string) course.NewCourse {
		return course.NewCourse{Code: code, Name: "Course", Credits: credits, Term: 1, InstructorID: instructorID}
	}
	tests := []struct {
		name   string
		caller access.Caller
		data   course.NewCourse
		check  func(error) bool
	}{
		{"code taken, any case", env.Admin, newCourse("c101", 3, ""), core.IsConflict},
		{"no credits", env.Admin, newCourse("C102", 0, ""), core.IsValidation},
		{"too many credits", env.Admin, newCourse("C102", 11, ""), core.IsValidation},
		{"bad code", env.Admin, newCourse("C 102", 3, ""), core.IsValidation},
		{"unknown instructor", env.Admin, newCourse("C102", 3, "5f0b6a52-3c43-4a87-a0f4-5d3b7d3b0c11"), core.IsValidation},
		{"not an admin", graceCaller, newCourse("C102", 3, ""), core.IsForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Courses.Create(ctx, tt.caller, tt.data)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	next, err := env.Courses.Create(ctx, env.Admin, course.NewCourse{Code: "C101", Name: "Course", Credits: 4, Term: 2})
	require.NoError(t, err, "codes are unique per term")
	assert.False(t, next.InstructorID.Valid)
}

func TestService_List(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	grace, graceCaller := env.CreateInstructor(t, "Grace")
	ada, adaCaller := env.CreateEnrollee(t, "Ada")
	_, alanCaller := env.CreateEnrollee(t, "Alan")
	c101 := env.CreateCourse(t, "C101", 4, grace.ID)
	c102 := env.CreateCourse(t, "C102", 3, "")
	env.Enroll(t, c102.ID, ada.ID)

	codes := func(courses []course.Course) []string {
		out := make([]string, 0, len(courses))
		for _, c := range courses {
			out = append(out, c.Code)
		}
		return out
	}
	tests := []struct {
		name   string
		caller access.Caller
		want   []string
	}{
		{"admin", env.Admin, []string{"C101", "C102"}},
		{"instructor", graceCaller, []string{"C101"}},
		{"enrollee", adaCaller, []string{"C102"}},
		{"enrollee without courses", alanCaller, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := env.Courses.List(ctx, tt.caller, course.Filter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, codes(courses))
		})
	}

	got, err := env.Courses.Get(ctx, alanCaller, c101.ID)
	require.NoError(t, err, "the catalogue is public")
	assert.Equal(t, "C101", got.Code)
	_, err = env.Courses.List(ctx, access.Caller{PersonID: "x", Role: "guest"}, course.Filter{})
	assert.True(t, core.IsForbidden(err))
}

func TestService_Enrollment(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	grace, graceCaller := env.CreateInstructor(t, "Grace")
	ada, adaCaller := env.CreateEnrollee(t, "Ada")
	c := env.CreateCourse(t, "C101", 4, grace.ID)

	require.NoError(t, env.Courses.Enroll(ctx, env.Admin, c.ID, ada.ID))
	require.NoError(t, env.Courses.Enroll(ctx, env.Admin, c.ID, ada.ID), "enrolling twice is a no-op")

	err := env.Courses.Enroll(ctx, env.Admin, c.ID, "nobody")
	assert.True(t, core.IsValidation(err), "got %v", err)
	err = env.Courses.Enroll(ctx, env.Admin, "nowhere", ada.ID)
	assert.True(t, core.IsNotFound(err), "got %v", err)
	err = env.Courses.Enroll(ctx, graceCaller, c.ID, ada.ID)
	assert.True(t, core.IsForbidden(err), "got %v", err)

	roster, err := env.Courses.Roster(ctx, graceCaller, c.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, ada.ID, roster[0].ID)

	_, err = env.Courses.Roster(ctx, adaCaller, c.ID)
	assert.True(t, core.IsForbidden(err), "enrollees do not see the roster")

	require.NoError(t, env.Courses.Unenroll(ctx, env.Admin, c.ID, ada.ID))
	roster, err = env.Courses.Roster(ctx, env.Admin, c.ID)
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestService_AssignInstructorAndDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	grace, graceCaller := env.CreateInstructor(t, "Grace")
	ada, _ := env.CreateEnrollee(t, "Ada")
	c := env.CreateCourse(t, "C101", 4, "")
	env.Enroll(t, c.ID, ada.ID)

	_, err := env.Courses.Roster(ctx, graceCaller, c.ID)
	assert.True(t, core.IsForbidden(err))

	c, err = env.Courses.AssignInstructor(ctx, env.Admin, c.ID, grace.ID)
	require.NoError(t, err)
	assert.Equal(t, grace.ID, c.InstructorID.String)
	_, err = env.Courses.Roster(ctx, graceCaller, c.ID)
	assert.NoError(t, err)

	c, err = env.Courses.AssignInstructor(ctx, env.Admin, c.ID, "")
	require.NoError(t, err)
	assert.False(t, c.InstructorID.Valid)

	_, err = env.Courses.AssignInstructor(ctx, env.Admin, c.ID, "nobody")
	assert.True(t, core.IsValidation(err))

	require.NoError(t, env.Courses.Delete(ctx, env.Admin, c.ID))
	_, err = env.Courses.Get(ctx, env.Admin, c.ID)
	assert.Equal(t, course.ErrNotFound, err)
	enrolled, err := env.Repos.Course.IsEnrolled(ctx, ada.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)

	actions := env.AuditActions(t)
	assert.Equal(t, []audit.Action{
		audit.ActionCreateInstructor, audit.ActionCreateEnrollee, audit.ActionCreateCourse, audit.ActionEnroll,
		audit.ActionAssignInstructor, audit.ActionAssignInstructor, audit.ActionDeleteCourse,
	}, actions)
}
