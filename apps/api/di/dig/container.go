package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/daftari/apps/api/echo"
	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/assignment"
	"github.com/trezcool/daftari/core/attendance"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/notice"
	"github.com/trezcool/daftari/core/person"
	"github.com/trezcool/daftari/core/result"
	blobsvc "github.com/trezcool/daftari/services/blob"
	emailsvc "github.com/trezcool/daftari/services/email"
	logsvc "github.com/trezcool/daftari/services/logger"
	"github.com/trezcool/daftari/storage/database"
	boltdb "github.com/trezcool/daftari/storage/database/bolt"
	sqlxrepos "github.com/trezcool/daftari/storage/database/sqlx"
	mongorepos "github.com/trezcool/daftari/storage/mongo"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// StorageCloser releases the connections opened for the repositories.
	StorageCloser func(ctx context.Context) error

	// Repositories are the stores of the configured backend.
	Repositories struct {
		dig.Out
		Person     person.Repository
		Course     course.Repository
		Attendance attendance.Repository
		Result     result.Repository
		Assignment assignment.Repository
		Notice     notice.Repository
		Audit      audit.Repository
		Close      StorageCloser
	}

	serviceParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		Mailer     core.EmailService
		Guard      *access.Guard
		Recorder   audit.Recorder
		Person     person.Repository
		Course     course.Repository
		Attendance attendance.Repository
		Result     result.Repository
		Assignment assignment.Repository
		Notice     notice.Repository
		Audit      audit.Repository
	}

	// Services are the wired domain services.
	Services struct {
		dig.Out
		People      *person.Service
		Courses     *course.Service
		Attendance  *attendance.Service
		Results     *result.Service
		Assignments *assignment.Service
		Notices     *notice.Service
		Audit       *audit.Service
	}

	serverParams struct {
		dig.In
		Conf        *core.Config
		Logger      core.Logger
		Blob        blobsvc.Store
		People      *person.Service
		Courses     *course.Service
		Attendance  *attendance.Service
		Results     *result.Service
		Assignments *assignment.Service
		Notices     *notice.Service
		Audit       *audit.Service
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (Repositories, error) {
	var (
		repos Repositories
		err   error
	)
	switch conf.Storage.Backend {
	case core.StorageBolt:
		repos, err = boltRepositories(conf)
	case core.StoragePostgres:
		repos, err = postgresRepositories(conf)
	default:
		err = errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
	if err != nil {
		loggerParam.Logger.Error(fmt.Sprintf("setting up storage: %v", err), err)
		return Repositories{}, err
	}
	loggerParam.Logger.Info(fmt.Sprintf("storage ready : backend %q", conf.Storage.Backend))
	return repos, nil
}

func boltRepositories(conf *core.Config) (Repositories, error) {
	db, err := boltdb.Open(conf.Bolt.Path)
	if err != nil {
		return Repositories{}, errors.Wrap(err, "opening bolt database")
	}
	return Repositories{
		Person:     boltdb.NewPersonRepository(db),
		Course:     boltdb.NewCourseRepository(db),
		Attendance: boltdb.NewAttendanceRepository(db),
		Result:     boltdb.NewResultRepository(db),
		Assignment: boltdb.NewAssignmentRepository(db),
		Notice:     boltdb.NewNoticeRepository(db),
		Audit:      boltdb.NewAuditRepository(db),
		Close:      func(context.Context) error { return db.Close() },
	}, nil
}

// postgresRepositories keeps facts in postgres, notices & audit entries in mongo.
func postgresRepositories(conf *core.Config) (Repositories, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return Repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return Repositories{}, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return Repositories{}, err
	}

	mdb, err := mongorepos.Open(ctx, conf)
	if err != nil {
		_ = db.Close()
		return Repositories{}, err
	}

	return Repositories{
		Person:     sqlxrepos.NewPersonRepository(db),
		Course:     sqlxrepos.NewCourseRepository(db),
		Attendance: sqlxrepos.NewAttendanceRepository(db),
		Result:     sqlxrepos.NewResultRepository(db),
		Assignment: sqlxrepos.NewAssignmentRepository(db),
		Notice:     mongorepos.NewNoticeRepository(mdb),
		Audit:      mongorepos.NewAuditRepository(mdb),
		Close: func(ctx context.Context) error {
			mErr := mongorepos.Close(ctx, mdb)
			if err := db.Close(); err != nil {
				return errors.Wrap(err, "closing database")
			}
			return mErr
		},
	}, nil
}

func newGuard(people person.Repository, courses course.Repository) *access.Guard {
	return access.NewGuard(people, courses)
}

func newAsyncRecorder(conf *core.Config, repo audit.Repository, logger core.Logger) *audit.AsyncRecorder {
	return audit.NewAsyncRecorder(repo, logger, audit.RecorderOptions{
		Workers:      conf.Audit.Workers,
		QueueSize:    conf.Audit.QueueSize,
		WriteTimeout: conf.Audit.WriteTimeout,
	})
}

func newRecorder(r *audit.AsyncRecorder) audit.Recorder {
	return r
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newBlobStore(conf *core.Config) (blobsvc.Store, error) {
	return blobsvc.NewStore(context.Background(), conf)
}

func newServices(p serviceParams) Services {
	s := Services{
		People:      person.NewService(p.Person, p.Guard, p.Recorder),
		Courses:     course.NewService(p.Course, p.Person, p.Guard, p.Recorder),
		Attendance:  attendance.NewService(p.Attendance, p.Course, p.Guard, p.Recorder),
		Results:     result.NewService(p.Result, p.Course, p.Guard, p.Recorder),
		Assignments: assignment.NewService(p.Assignment, p.Course, p.Guard, p.Recorder),
		Notices:     notice.NewService(p.Notice, p.Course, p.Guard, p.Recorder),
		Audit:       audit.NewService(p.Audit, p.Guard, p.Recorder),
	}
	s.Attendance.SetBulkWorkers(p.Conf.Bulk.Workers)
	s.Results.SetBulkWorkers(p.Conf.Bulk.Workers)
	s.Notices.EnableMail(notice.MailerOptions{
		Mailer:  p.Mailer,
		People:  p.Person,
		Logger:  p.Logger,
		AppName: p.Conf.AppName,
	})

	// purge what hangs off a person or a course before deleting it
	s.People.OnDeleteEnrollee(s.Attendance, s.Results, s.Assignments, s.Notices, s.Courses)
	s.People.OnDeleteInstructor(s.Courses)
	s.Courses.OnDelete(s.Attendance, s.Results, s.Assignments, s.Notices)
	return s
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Blob:        p.Blob,
		People:      p.People,
		Courses:     p.Courses,
		Attendance:  p.Attendance,
		Results:     p.Results,
		Assignments: p.Assignments,
		Notices:     p.Notices,
		Audit:       p.Audit,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newGuard))
	must(c.Provide(newAsyncRecorder))
	must(c.Provide(newRecorder))
	must(c.Provide(newEmailService))
	must(c.Provide(newBlobStore))
	must(c.Provide(newServices))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
