package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/assignment"
	"github.com/trezcool/daftari/testutil"
)

var due = time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)

func score(f float64) *float64 { return &f }

type fixture struct {
	env        *testutil.Env
	courseID   string
	instructor access.Caller
	enrollees  []access.Caller
	task       assignment.Task
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	inst, instCaller := env.CreateInstructor(t, "Grace")
	c := env.CreateCourse(t, "C101", 4, inst.ID)

	fx := fixture{env: env, courseID: c.ID, instructor: instCaller}
	for _, name := range []string{"Early", "Tardy"} {
		e, caller := env.CreateEnrollee(t, name)
		env.Enroll(t, c.ID, e.ID)
		fx.enrollees = append(fx.enrollees, caller)
	}

	task, err := env.Assignments.CreateTask(context.Background(), instCaller, assignment.NewTask{
		CourseID: c.ID,
		Title:    "Linked lists",
		DueAt:    due,
		MaxScore: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, inst.ID, task.InstructorID.String)
	fx.task = task
	return fx
}

func at(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestService_SubmitLateFlag(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	defer func() { assignment.NowFunc = time.Now }()

	tests := []struct {
		name   string
		caller access.Caller
		now    time.Time
		status assignment.Status
		late   bool
	}{
		{"before due", fx.enrollees[0], due.Add(-time.Hour), assignment.StatusSubmitted, false},
		{"after due", fx.enrollees[1], due.Add(time.Second), assignment.StatusLate, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignment.NowFunc = at(tt.now)
			s, err := fx.env.Assignments.Submit(ctx, tt.caller, assignment.NewSubmission{
				TaskID: fx.task.ID, DocumentHandle: "local://" + tt.name + ".pdf",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.status, s.Status)
			assert.Equal(t, tt.late, s.Late)
		})
	}

	t.Run("second submission", func(t *testing.T) {
		_, err := fx.env.Assignments.Submit(ctx, fx.enrollees[0], assignment.NewSubmission{
			TaskID: fx.task.ID, DocumentHandle: "local://again.pdf",
		})
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("due date moved", func(t *testing.T) {
		later := due.Add(48 * time.Hour)
		_, err := fx.env.Assignments.UpdateTask(ctx, fx.instructor, fx.task.ID, assignment.UpdateTask{DueAt: &later})
		require.NoError(t, err)

		subs, err := fx.env.Assignments.ListSubmissions(ctx, fx.instructor, fx.task.ID)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		var late int
		for _, s := range subs {
			if s.Late {
				late++
				assert.Equal(t, assignment.StatusLate, s.Status)
			}
		}
		assert.Equal(t, 1, late)
	})
}

func TestService_Grade(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	assignment.NowFunc = at(due.Add(time.Hour))
	defer func() { assignment.NowFunc = time.Now }()

	s, err := fx.env.Assignments.Submit(ctx, fx.enrollees[1], assignment.NewSubmission{
		TaskID: fx.task.ID, DocumentHandle: "local://work.pdf",
	})
	require.NoError(t, err)
	require.True(t, s.Late)

	t.Run("above max score", func(t *testing.T) {
		_, err := fx.env.Assignments.Grade(ctx, fx.instructor, s.ID, assignment.GradeSubmission{Score: score(21)})
		assert.True(t, core.IsValidation(err))
	})
	t.Run("by enrollee", func(t *testing.T) {
		_, err := fx.env.Assignments.Grade(ctx, fx.enrollees[1], s.ID, assignment.GradeSubmission{Score: score(10)})
		assert.True(t, core.IsNotFound(err))
	})

	graded, err := fx.env.Assignments.Grade(ctx, fx.instructor, s.ID, assignment.GradeSubmission{Score: score(15), Feedback: "ok"})
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusGraded, graded.Status)
	assert.Equal(t, 15.0, graded.Score.Float64)
	assert.True(t, graded.Late, "grading keeps the late flag")
	assert.True(t, graded.GradedAt.Valid)

	regraded, err := fx.env.Assignments.Grade(ctx, fx.instructor, s.ID, assignment.GradeSubmission{Score: score(17)})
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusGraded, regraded.Status)
	assert.Equal(t, 17.0, regraded.Score.Float64)

	mine, err := fx.env.Assignments.MySubmissions(ctx, fx.enrollees[1], "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, assignment.StatusGraded, mine[0].Status)
}

func TestService_Visibility(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	_, outsiderCaller := fx.env.CreateEnrollee(t, "Outsider")

	tasks, err := fx.env.Assignments.ListTasks(ctx, fx.enrollees[0], "")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	tasks, err = fx.env.Assignments.ListTasks(ctx, outsiderCaller, "")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = fx.env.Assignments.GetTask(ctx, outsiderCaller, fx.task.ID)
	assert.True(t, core.IsNotFound(err))

	_, err = fx.env.Assignments.Submit(ctx, outsiderCaller, assignment.NewSubmission{
		TaskID: fx.task.ID, DocumentHandle: "local://x.pdf",
	})
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestService_DeleteTaskCascades(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	_, err := fx.env.Assignments.Submit(ctx, fx.enrollees[0], assignment.NewSubmission{
		TaskID: fx.task.ID, DocumentHandle: "local://a.pdf",
	})
	require.NoError(t, err)

	require.NoError(t, fx.env.Assignments.DeleteTask(ctx, fx.instructor, fx.task.ID))

	subs, err := fx.env.Repos.Assignment.QuerySubmissions(ctx, assignment.SubmissionFilter{TaskID: fx.task.ID})
	require.NoError(t, err)
	assert.Empty(t, subs)
}
