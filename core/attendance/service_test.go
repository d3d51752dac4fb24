package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/attendance"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/testutil"
)

var day = time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

type fixture struct {
	env        *testutil.Env
	courseID   string
	instructor access.Caller
	enrollees  []string
	callers    []access.Caller
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	inst, instCaller := env.CreateInstructor(t, "Grace Hopper")
	c := env.CreateCourse(t, "C101", 4, inst.ID)

	fx := fixture{env: env, courseID: c.ID, instructor: instCaller}
	for _, name := range []string{"Ada", "Alan", "Barbara"} {
		e, caller := env.CreateEnrollee(t, name)
		fx.enrollees = append(fx.enrollees, e.ID)
		fx.callers = append(fx.callers, caller)
	}
	env.Enroll(t, c.ID, fx.enrollees...)
	return fx
}

func TestService_MarkBulkUpserts(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	svc := fx.env.Attendance

	res, err := svc.MarkBulk(ctx, fx.instructor, attendance.BulkMark{
		CourseID: fx.courseID,
		Date:     day.Add(10 * time.Hour), // truncated to the day
		Entries: []attendance.BulkEntry{
			{EnrolleeID: fx.enrollees[0], Status: attendance.StatusPresent},
			{EnrolleeID: fx.enrollees[1], Status: attendance.StatusPresent},
			{EnrolleeID: fx.enrollees[2], Status: attendance.StatusAbsent},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 3, res.Applied)

	// re-marking overwrites, last write wins
	res, err = svc.MarkBulk(ctx, fx.instructor, attendance.BulkMark{
		CourseID: fx.courseID,
		Date:     day,
		Entries:  []attendance.BulkEntry{{EnrolleeID: fx.enrollees[2], Status: attendance.StatusPresent}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	report, err := svc.ForCourse(ctx, fx.instructor, fx.courseID, attendance.Filter{})
	require.NoError(t, err)
	require.Len(t, report.Facts, 3)
	assert.Equal(t, 3, report.Summary.Present)
	for _, f := range report.Facts {
		assert.True(t, f.Date.Equal(day))
	}

	// statistics of an enrollee only cover its own facts
	own, err := svc.ForEnrollee(ctx, fx.callers[0], "", attendance.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, own.Summary.Total)
	assert.Equal(t, 1, own.Summary.Present)
	assert.Equal(t, 0, own.Summary.Absent)
	assert.Equal(t, 100.0, own.Summary.Percentage)
}

func TestService_MarkBulkLastEntryWins(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	res, err := fx.env.Attendance.MarkBulk(ctx, fx.instructor, attendance.BulkMark{
		CourseID: fx.courseID,
		Date:     day,
		Entries: []attendance.BulkEntry{
			{EnrolleeID: fx.enrollees[0], Status: attendance.StatusPresent},
			{EnrolleeID: fx.enrollees[1], Status: attendance.StatusPresent},
			{EnrolleeID: fx.enrollees[0], Status: attendance.StatusAbsent},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 2, res.Applied, "one fact per enrollee")

	report, err := fx.env.Attendance.ForEnrollee(ctx, fx.instructor, fx.enrollees[0], attendance.Filter{})
	require.NoError(t, err)
	require.Len(t, report.Facts, 1)
	assert.Equal(t, attendance.StatusAbsent, report.Facts[0].Status)
}

func TestService_ForEnrolleeRequiresEnrollee(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	_, err := fx.env.Attendance.MarkBulk(ctx, fx.instructor, attendance.BulkMark{
		CourseID: fx.courseID,
		Date:     day,
		Entries: []attendance.BulkEntry{
			{EnrolleeID: fx.enrollees[0], Status: attendance.StatusPresent},
			{EnrolleeID: fx.enrollees[1], Status: attendance.StatusAbsent},
		},
	})
	require.NoError(t, err)

	for _, caller := range []access.Caller{fx.env.Admin, fx.instructor} {
		_, err := fx.env.Attendance.ForEnrollee(ctx, caller, "", attendance.Filter{})
		assert.True(t, core.IsValidation(err), "%s: got %v", caller.Role, err)
	}

	own, err := fx.env.Attendance.ForEnrollee(ctx, fx.callers[1], "", attendance.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, own.Summary.Total)
	assert.Equal(t, 1, own.Summary.Absent)
}

func TestService_MarkRejectsDuplicate(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	svc := fx.env.Attendance

	data := attendance.NewFact{EnrolleeID: fx.enrollees[0], CourseID: fx.courseID, Date: day, Status: attendance.StatusPresent}
	_, err := svc.Mark(ctx, fx.instructor, data)
	require.NoError(t, err)

	data.Status = attendance.StatusAbsent
	_, err = svc.Mark(ctx, fx.instructor, data)
	assert.True(t, core.IsConflict(err), "got %v", err)

	facts, err := fx.env.Repos.Attendance.QueryFacts(ctx, attendance.Filter{EnrolleeID: fx.enrollees[0]})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, attendance.StatusPresent, facts[0].Status)
}

func TestService_MarkBulkReportsFailedKeys(t *testing.T) {
	fx := setup(t)
	outsider, _ := fx.env.CreateEnrollee(t, "Outsider")

	res, err := fx.env.Attendance.MarkBulk(context.Background(), fx.instructor, attendance.BulkMark{
		CourseID: fx.courseID,
		Date:     day,
		Entries: []attendance.BulkEntry{
			{EnrolleeID: fx.enrollees[0], Status: attendance.StatusPresent},
			{EnrolleeID: outsider.ID, Status: attendance.StatusPresent},
			{EnrolleeID: fx.enrollees[1], Status: "Sick"},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, "1 of 3 applied", res.String())

	kinds := map[string]string{}
	for _, f := range res.Failed {
		kinds[f.Key] = f.Kind
	}
	assert.Equal(t, "validation", kinds[outsider.ID])
	assert.Equal(t, "validation", kinds[fx.enrollees[1]])
}

func TestService_Authorization(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	other, otherCaller := fx.env.CreateInstructor(t, "Dennis")
	fx.env.CreateCourse(t, "C202", 3, other.ID)

	tests := []struct {
		name   string
		caller access.Caller
		check  func(error) bool
	}{
		{"enrollee", fx.callers[0], core.IsForbidden},
		{"other instructor", otherCaller, core.IsForbidden},
		{"no role", access.Caller{PersonID: "x"}, core.IsForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.env.Attendance.Mark(ctx, tt.caller, attendance.NewFact{
				EnrolleeID: fx.enrollees[0], CourseID: fx.courseID, Date: day, Status: attendance.StatusPresent,
			})
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	t.Run("foreign enrollee view", func(t *testing.T) {
		_, err := fx.env.Attendance.ForEnrollee(ctx, fx.callers[0], fx.enrollees[1], attendance.Filter{})
		assert.True(t, core.IsForbidden(err))
	})
}

func TestService_UpdateAndDelete(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	svc := fx.env.Attendance

	f, err := svc.Mark(ctx, fx.instructor, attendance.NewFact{
		EnrolleeID: fx.enrollees[0], CourseID: fx.courseID, Date: day, Status: attendance.StatusAbsent,
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, fx.callers[0], f.ID, attendance.StatusPresent)
	assert.True(t, core.IsNotFound(err), "per-record endpoints hide forbidden records")

	f, err = svc.UpdateStatus(ctx, fx.instructor, f.ID, attendance.StatusPresent)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, f.Status)

	require.NoError(t, svc.Delete(ctx, fx.instructor, f.ID))
	// the key is free again
	_, err = svc.Mark(ctx, fx.instructor, attendance.NewFact{
		EnrolleeID: fx.enrollees[0], CourseID: fx.courseID, Date: day, Status: attendance.StatusAbsent,
	})
	require.NoError(t, err)

	assert.Contains(t, fx.env.AuditActions(t), audit.ActionUpdateAttendance)
	assert.Contains(t, fx.env.AuditActions(t), audit.ActionDeleteAttendance)
}
