package sqlxrepos

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/assignment"
	"github.com/trezcool/daftari/core/attendance"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/person"
	"github.com/trezcool/daftari/core/result"
	"github.com/trezcool/daftari/storage/database"
)

var now = time.Date(2026, 2, 27, 9, 30, 0, 0, time.UTC)

// openTestDB migrates a fresh schema into TEST_DATABASE_URL.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB, "reset"))
	require.NoError(t, database.Migrate(db.DB, "up"))
	return db
}

type seed struct {
	enrollee   person.Enrollee
	instructor person.Instructor
	course     course.Course
}

func seedDB(t *testing.T, db *sqlx.DB) seed {
	t.Helper()
	ctx := context.Background()
	people := NewPersonRepository(db)
	courses := NewCourseRepository(db)

	newPerson := func(email string, role access.Role) person.Person {
		return person.Person{ID: uuid.New().String(), Name: email, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	}

	var s seed
	var err error
	s.enrollee, err = people.CreateEnrollee(ctx, newPerson("ada@daftari.test", access.RoleEnrollee), person.Enrollee{
		ID: uuid.New().String(), EnrollmentNumber: "EN1", Programme: "BSc", Level: 1, CreatedAt: now,
	})
	require.NoError(t, err)
	s.instructor, err = people.CreateInstructor(ctx, newPerson("grace@daftari.test", access.RoleInstructor), person.Instructor{
		ID: uuid.New().String(), EmployeeID: "EMP1", CreatedAt: now,
	})
	require.NoError(t, err)
	s.course, err = courses.CreateCourse(ctx, course.Course{
		ID: uuid.New().String(), Code: "C101", Name: "Course", Credits: 4, Term: 1,
		InstructorID: null.StringFrom(s.instructor.ID), CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, courses.Enroll(ctx, course.Enrollment{CourseID: s.course.ID, EnrolleeID: s.enrollee.ID, CreatedAt: now}))
	return s
}

func TestPersonRepository(t *testing.T) {
	db := openTestDB(t)
	s := seedDB(t, db)
	ctx := context.Background()
	repo := NewPersonRepository(db)

	e, err := repo.GetEnrollee(ctx, s.enrollee.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@daftari.test", e.Person.Email)

	tests := []struct {
		name    string
		email   string
		number  string
		wantErr error
	}{
		{"email taken", "ada@daftari.test", "EN2", person.ErrEmailTaken},
		{"number taken", "alan@daftari.test", "EN1", person.ErrEnrollmentNumberTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateEnrollee(ctx,
				person.Person{ID: uuid.New().String(), Name: "x", Email: tt.email, Role: access.RoleEnrollee, CreatedAt: now, UpdatedAt: now},
				person.Enrollee{ID: uuid.New().String(), EnrollmentNumber: tt.number, Programme: "BSc", Level: 1, CreatedAt: now},
			)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	_, err = repo.GetPerson(ctx, "not-a-uuid")
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, repo.DeletePerson(ctx, s.enrollee.PersonID))
	_, err = repo.GetEnrollee(ctx, s.enrollee.ID)
	assert.Equal(t, person.ErrEnrolleeNotFound, err)
}

func TestCourseRepository(t *testing.T) {
	db := openTestDB(t)
	s := seedDB(t, db)
	ctx := context.Background()
	repo := NewCourseRepository(db)

	_, err := repo.CreateCourse(ctx, course.Course{
		ID: uuid.New().String(), Code: "c101", Name: "Again", Credits: 3, Term: 1, CreatedAt: now, UpdatedAt: now,
	})
	assert.Equal(t, course.ErrCodeTaken, err, "codes are unique per term regardless of case")

	enrolled, err := repo.IsEnrolled(ctx, s.enrollee.ID, s.course.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)
	require.NoError(t, repo.Enroll(ctx, course.Enrollment{CourseID: s.course.ID, EnrolleeID: s.enrollee.ID, CreatedAt: now}))

	ids, err := repo.InstructorCourseIDs(ctx, s.instructor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{s.course.ID}, ids)

	require.NoError(t, repo.UnassignInstructor(ctx, s.instructor.ID))
	instructorID, err := repo.CourseInstructorID(ctx, s.course.ID)
	require.NoError(t, err)
	assert.Empty(t, instructorID)
}

func TestAttendanceRepository_Upsert(t *testing.T) {
	db := openTestDB(t)
	s := seedDB(t, db)
	ctx := context.Background()
	repo := NewAttendanceRepository(db)

	first := attendance.Fact{
		ID: uuid.New().String(), EnrolleeID: s.enrollee.ID, CourseID: s.course.ID, Date: core.Day(now),
		Status: attendance.StatusAbsent, CreatedAt: now, UpdatedAt: now,
	}
	_, err := repo.CreateFact(ctx, first)
	require.NoError(t, err)

	dup := first
	dup.ID = uuid.New().String()
	_, err = repo.CreateFact(ctx, dup)
	assert.Equal(t, attendance.ErrAlreadyMarked, err)

	dup.Status = attendance.StatusPresent
	dup.UpdatedAt = now.Add(time.Hour)
	stored, err := repo.UpsertFact(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID, "upsert keeps the stored id")
	assert.Equal(t, attendance.StatusPresent, stored.Status)
	assert.True(t, stored.Date.Equal(core.Day(now)))

	facts, err := repo.QueryFacts(ctx, attendance.Filter{CourseID: s.course.ID, From: now, Until: now})
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestResultAndSubmissionConflicts(t *testing.T) {
	db := openTestDB(t)
	s := seedDB(t, db)
	ctx := context.Background()

	results := NewResultRepository(db)
	f := result.Fact{ID: uuid.New().String(), EnrolleeID: s.enrollee.ID, CourseID: s.course.ID, Term: 1, CreatedAt: now, UpdatedAt: now}
	f.SetScores(35, 50)
	_, err := results.CreateResult(ctx, f)
	require.NoError(t, err)
	f.ID = uuid.New().String()
	_, err = results.CreateResult(ctx, f)
	assert.Equal(t, result.ErrAlreadyRecorded, err)

	tasks := NewAssignmentRepository(db)
	task, err := tasks.CreateTask(ctx, assignment.Task{
		ID: uuid.New().String(), CourseID: s.course.ID, Title: "t", DueAt: now, MaxScore: 20, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	sub := assignment.Submission{
		ID: uuid.New().String(), TaskID: task.ID, CourseID: s.course.ID, EnrolleeID: s.enrollee.ID,
		DocumentHandle: "local://a.pdf", SubmittedAt: now, Status: assignment.StatusSubmitted, UpdatedAt: now,
	}
	_, err = tasks.CreateSubmission(ctx, sub)
	require.NoError(t, err)
	sub.ID = uuid.New().String()
	_, err = tasks.CreateSubmission(ctx, sub)
	assert.Equal(t, assignment.ErrAlreadySubmitted, err)

	require.NoError(t, tasks.DeleteTask(ctx, task.ID))
	subs, err := tasks.QuerySubmissions(ctx, assignment.SubmissionFilter{TaskID: task.ID})
	require.NoError(t, err)
	assert.Empty(t, subs)
}
