package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/assignment"
	"github.com/trezcool/daftari/core/attendance"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/notice"
	"github.com/trezcool/daftari/core/person"
	"github.com/trezcool/daftari/core/result"
	blobsvc "github.com/trezcool/daftari/services/blob"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool
		Blob           blobsvc.Store

		People      *person.Service
		Courses     *course.Service
		Attendance  *attendance.Service
		Results     *result.Service
		Assignments *assignment.Service
		Notices     *notice.Service
		Audit       *audit.Service
	}

	Server struct {
		opts     *Options
		app      *echo.Echo
		tokens   *tokenIssuer
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(opts *Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		tokens:   newTokenIssuer(opts.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit("12M"))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1", middleware.JWTWithConfig(s.tokens.middlewareConfig()))

	registerPersonAPI(v1, s.opts.People)
	registerCourseAPI(v1, s.opts.Courses)
	registerAttendanceAPI(v1, s.opts.Attendance)
	registerResultAPI(v1, s.opts.Results)
	registerAssignmentAPI(v1, s.opts.Assignments, s.opts.Blob)
	registerNoticeAPI(v1, s.opts.Notices)
	registerAuditAPI(v1, s.opts.Audit)
}

// Start listens on the configured host; a failure is reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT, SIGTERM and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// IssueToken signs a token for a person, used by the admin CLI and tests.
func (s *Server) IssueToken(p person.Person) (string, error) {
	return s.tokens.issue(p)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
