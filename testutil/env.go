// Package testutil wires the services on a throwaway bolt database for tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/assignment"
	"github.com/trezcool/daftari/core/attendance"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/notice"
	"github.com/trezcool/daftari/core/person"
	"github.com/trezcool/daftari/core/result"
	boltdb "github.com/trezcool/daftari/storage/database/bolt"
)

// Repos groups the bolt repositories behind an Env.
type Repos struct {
	Person     person.Repository
	Course     course.Repository
	Attendance attendance.Repository
	Result     result.Repository
	Assignment assignment.Repository
	Notice     notice.Repository
	Audit      audit.Repository
}

// Env is a fully wired set of services. Audit entries are written synchronously
// so tests can assert on them right after an operation.
type Env struct {
	DB       *boltdb.DB
	Repos    Repos
	Logger   *Logger
	Guard    *access.Guard
	Recorder audit.Recorder

	People      *person.Service
	Courses     *course.Service
	Attendance  *attendance.Service
	Results     *result.Service
	Assignments *assignment.Service
	Notices     *notice.Service
	Audit       *audit.Service

	Admin access.Caller
}

type EnvOption func(*Env)

// WithAuditRepository makes the recorder write to repo instead of the bolt audit repository.
func WithAuditRepository(repo audit.Repository) EnvOption {
	return func(env *Env) {
		env.Recorder = audit.NewSyncRecorder(repo, env.Logger)
	}
}

// NewEnv opens a bolt database in a temporary directory, closed when the test ends.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	db, err := boltdb.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &Env{
		DB:     db,
		Logger: new(Logger),
		Repos: Repos{
			Person:     boltdb.NewPersonRepository(db),
			Course:     boltdb.NewCourseRepository(db),
			Attendance: boltdb.NewAttendanceRepository(db),
			Result:     boltdb.NewResultRepository(db),
			Assignment: boltdb.NewAssignmentRepository(db),
			Notice:     boltdb.NewNoticeRepository(db),
			Audit:      boltdb.NewAuditRepository(db),
		},
		Admin: access.System("127.0.0.1"),
	}
	env.Recorder = audit.NewSyncRecorder(env.Repos.Audit, env.Logger)
	for _, opt := range opts {
		opt(env)
	}

	env.Guard = access.NewGuard(env.Repos.Person, env.Repos.Course)
	env.People = person.NewService(env.Repos.Person, env.Guard, env.Recorder)
	env.Courses = course.NewService(env.Repos.Course, env.Repos.Person, env.Guard, env.Recorder)
	env.Attendance = attendance.NewService(env.Repos.Attendance, env.Repos.Course, env.Guard, env.Recorder)
	env.Results = result.NewService(env.Repos.Result, env.Repos.Course, env.Guard, env.Recorder)
	env.Assignments = assignment.NewService(env.Repos.Assignment, env.Repos.Course, env.Guard, env.Recorder)
	env.Notices = notice.NewService(env.Repos.Notice, env.Repos.Course, env.Guard, env.Recorder)
	env.Audit = audit.NewService(env.Repos.Audit, env.Guard, env.Recorder)

	env.People.OnDeleteEnrollee(env.Attendance, env.Results, env.Assignments, env.Notices, env.Courses)
	env.People.OnDeleteInstructor(env.Courses)
	env.Courses.OnDelete(env.Attendance, env.Results, env.Assignments, env.Notices)
	return env
}

// Logger collects log messages by level.
type Logger struct {
	mu   sync.Mutex
	msgs map[string][]string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.msgs == nil {
		l.msgs = make(map[string][]string)
	}
	l.msgs[level] = append(l.msgs[level], msg)
}

// Messages returns what was logged at level.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs[level]...)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

// AuditActions lists the actions recorded so far, oldest first.
func (env *Env) AuditActions(t *testing.T) []audit.Action {
	t.Helper()
	entries, _, err := env.Repos.Audit.QueryEntries(context.Background(), audit.Filter{
		Ordering: core.DBOrdering{Field: audit.OrderCreatedAt, Ascending: true},
	}, core.Page{Number: 1, Size: core.MaxPageSize})
	require.NoError(t, err)
	actions := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}
