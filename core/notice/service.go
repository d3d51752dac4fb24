package notice

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/person"
)

var ErrNotFound = core.NewNotFoundError("notice not found")

type (
	Repository interface {
		CreateNotice(ctx context.Context, n Notice) (Notice, error)
		GetNotice(ctx context.Context, id string) (Notice, error)
		// QueryVisible returns, newest first, the notices addressed to everyone
		// or to one of courseIDs.
		QueryVisible(ctx context.Context, courseIDs []string) ([]Notice, error)
		QueryByAuthor(ctx context.Context, authorID string) ([]Notice, error)
		// MarkRead adds readerID to the read-set of the notice. Adding it twice is a no-op.
		MarkRead(ctx context.Context, id, readerID string) error
		// MarkReadMany adds readerID to the read-sets of ids in one write
		// and returns how many notices changed.
		MarkReadMany(ctx context.Context, ids []string, readerID string) (int, error)
		DeleteNotice(ctx context.Context, id string) error
		DeleteByCourse(ctx context.Context, courseID string) (int, error)
		// RemoveReader drops readerID from every read-set.
		RemoveReader(ctx context.Context, readerID string) error
	}

	Courses interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		EnrolledCourseIDs(ctx context.Context, enrolleeID string) ([]string, error)
		EnrolleeIDs(ctx context.Context, courseID string) ([]string, error)
	}

	// People lists the enrollees a notice is mailed to.
	People interface {
		QueryEnrollees(ctx context.Context, f person.EnrolleeFilter) ([]person.Enrollee, error)
	}
)

var NowFunc = time.Now // mockable

// MailerOptions enable e-mailing new notices to their recipients.
type MailerOptions struct {
	Mailer  core.EmailService
	People  People
	Logger  core.Logger
	AppName string
	Timeout time.Duration
}

type Service struct {
	repo     Repository
	courses  Courses
	guard    *access.Guard
	recorder audit.Recorder

	mail    *MailerOptions
	mailing sync.WaitGroup
}

func NewService(repo Repository, courses Courses, guard *access.Guard, recorder audit.Recorder) *Service {
	return &Service{repo: repo, courses: courses, guard: guard, recorder: recorder}
}

// EnableMail makes Send e-mail every recipient of a new notice in the background.
func (svc *Service) EnableMail(opts MailerOptions) {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	svc.mail = &opts
}

// Wait blocks until background e-mails are handed to the mailer.
func (svc *Service) Wait() {
	svc.mailing.Wait()
}

// Send stores a notice once for all its recipients.
func (svc *Service) Send(ctx context.Context, caller access.Caller, data NewNotice) (Notice, error) {
	data.clean()
	if err := core.Validate(data); err != nil {
		return Notice{}, err
	}
	if err := svc.guard.Authorize(ctx, caller, access.SendNotice, access.Target{CourseID: data.CourseID}); err != nil {
		return Notice{}, err
	}

	var c course.Course
	if data.Scope == ScopeCourse {
		var err error
		if c, err = svc.courses.GetCourse(ctx, data.CourseID); err != nil {
			return Notice{}, errors.Wrap(err, "getting course")
		}
	}

	n, err := svc.repo.CreateNotice(ctx, Notice{
		ID:         uuid.New().String(),
		AuthorID:   caller.PersonID,
		AuthorRole: caller.Role,
		Scope:      data.Scope,
		CourseID:   data.CourseID,
		Title:      data.Title,
		Body:       data.Body,
		ReadBy:     []string{},
		CreatedAt:  NowFunc().UTC(),
	})
	if err != nil {
		return Notice{}, errors.Wrap(err, "inserting notice")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionSendNotice, audit.TargetNotice, n.ID,
		fmt.Sprintf("sent notice %q to %s", n.Title, audience(n, c)),
		audit.Details{"scope": n.Scope, "course_id": n.CourseID},
	))

	if svc.mail != nil {
		svc.mailing.Add(1)
		go svc.mailRecipients(n, c)
	}
	return n, nil
}

// ListVisible returns the notices the calling enrollee sees right now, with its read state.
// Course notices follow current enrollment: joining a course reveals its past notices.
func (svc *Service) ListVisible(ctx context.Context, caller access.Caller) (Inbox, error) {
	enrolleeID, notices, err := svc.visible(ctx, caller)
	if err != nil {
		return Inbox{}, err
	}

	inbox := Inbox{Notices: make([]View, len(notices))}
	for i, n := range notices {
		read := n.ReadByEnrollee(enrolleeID)
		inbox.Notices[i] = View{Notice: n, IsRead: read}
		if !read {
			inbox.Unread++
		}
	}
	return inbox, nil
}

// UnreadCount is recomputed from the visible notices on every call.
func (svc *Service) UnreadCount(ctx context.Context, caller access.Caller) (int, error) {
	enrolleeID, notices, err := svc.visible(ctx, caller)
	if err != nil {
		return 0, err
	}
	var read int
	for _, n := range notices {
		if n.ReadByEnrollee(enrolleeID) {
			read++
		}
	}
	return len(notices) - read, nil
}

// MarkRead adds the caller to the read-set of a notice it can see.
func (svc *Service) MarkRead(ctx context.Context, caller access.Caller, id string) error {
	if err := svc.guard.Authorize(ctx, caller, access.ReadNotices, access.Target{}); err != nil {
		return access.Conceal(err, ErrNotFound)
	}
	enrolleeID, err := svc.guard.EnrolleeID(ctx, caller)
	if err != nil {
		return err
	}
	n, err := svc.repo.GetNotice(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting notice")
	}
	courseIDs, err := svc.courses.EnrolledCourseIDs(ctx, enrolleeID)
	if err != nil {
		return errors.Wrap(err, "listing enrolled courses")
	}
	if !n.VisibleTo(courseIDs) {
		return ErrNotFound
	}
	if n.ReadByEnrollee(enrolleeID) {
		return nil
	}
	if err = svc.repo.MarkRead(ctx, n.ID, enrolleeID); err != nil {
		return errors.Wrap(err, "marking notice read")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionReadNotice, audit.TargetNotice, n.ID,
		fmt.Sprintf("read notice %q", n.Title), audit.Details{"enrollee_id": enrolleeID},
	))
	return nil
}

// MarkAllRead adds the caller to the read-set of every notice it currently sees, in one bulk write.
func (svc *Service) MarkAllRead(ctx context.Context, caller access.Caller) (int, error) {
	enrolleeID, notices, err := svc.visible(ctx, caller)
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(notices))
	for _, n := range notices {
		if !n.ReadByEnrollee(enrolleeID) {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	changed, err := svc.repo.MarkReadMany(ctx, ids, enrolleeID)
	if err != nil {
		return 0, errors.Wrap(err, "marking notices read")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionReadAllNotices, audit.TargetNotice, "",
		fmt.Sprintf("marked %d notices read", changed), audit.Details{"enrollee_id": enrolleeID},
	))
	return changed, nil
}

// ListSent lists the notices authored by the caller with their reader counts.
func (svc *Service) ListSent(ctx context.Context, caller access.Caller) ([]Sent, error) {
	if !caller.IsAdmin() && !caller.IsInstructor() {
		return nil, access.ErrForbidden
	}
	notices, err := svc.repo.QueryByAuthor(ctx, caller.PersonID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sent notices")
	}
	sent := make([]Sent, len(notices))
	for i, n := range notices {
		sent[i] = Sent{Notice: n, Readers: len(n.ReadBy)}
	}
	return sent, nil
}

// Delete removes a notice. Only its author, or an admin, may do so.
func (svc *Service) Delete(ctx context.Context, caller access.Caller, id string) error {
	n, err := svc.repo.GetNotice(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting notice")
	}
	if n.AuthorID != caller.PersonID && !caller.IsAdmin() {
		return ErrNotFound
	}
	if err = svc.repo.DeleteNotice(ctx, id); err != nil {
		return errors.Wrap(err, "deleting notice")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionDeleteNotice, audit.TargetNotice, n.ID,
		fmt.Sprintf("deleted notice %q", n.Title), audit.Details{"scope": n.Scope, "readers": len(n.ReadBy)},
	))
	return nil
}

func (svc *Service) PurgeEnrollee(ctx context.Context, enrolleeID string) error {
	return errors.Wrap(svc.repo.RemoveReader(ctx, enrolleeID), "removing notice reader")
}

func (svc *Service) PurgeCourse(ctx context.Context, courseID string) error {
	_, err := svc.repo.DeleteByCourse(ctx, courseID)
	return errors.Wrap(err, "deleting course notices")
}

// visible resolves the calling enrollee and the notices it sees.
func (svc *Service) visible(ctx context.Context, caller access.Caller) (string, []Notice, error) {
	if err := svc.guard.Authorize(ctx, caller, access.ReadNotices, access.Target{}); err != nil {
		return "", nil, err
	}
	enrolleeID, err := svc.guard.EnrolleeID(ctx, caller)
	if err != nil {
		return "", nil, err
	}
	courseIDs, err := svc.courses.EnrolledCourseIDs(ctx, enrolleeID)
	if err != nil {
		return "", nil, errors.Wrap(err, "listing enrolled courses")
	}
	notices, err := svc.repo.QueryVisible(ctx, courseIDs)
	if err != nil {
		return "", nil, errors.Wrap(err, "querying notices")
	}
	return enrolleeID, notices, nil
}

type noticeMail struct {
	AppName    string
	Title      string
	Body       string
	CourseCode string
}

// mailRecipients runs detached from the request that sent n; failures are only logged.
func (svc *Service) mailRecipients(n Notice, c course.Course) {
	defer svc.mailing.Done()
	opts := svc.mail

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	var f person.EnrolleeFilter
	if n.Scope == ScopeCourse {
		ids, err := svc.courses.EnrolleeIDs(ctx, n.CourseID)
		if err != nil {
			opts.Logger.Error("listing notice recipients", errors.Wrap(err, n.ID))
			return
		}
		if len(ids) == 0 {
			return
		}
		f.IDs = ids
	}
	enrollees, err := opts.People.QueryEnrollees(ctx, f)
	if err != nil {
		opts.Logger.Error("listing notice recipients", errors.Wrap(err, n.ID))
		return
	}

	data := noticeMail{AppName: opts.AppName, Title: n.Title, Body: n.Body, CourseCode: c.Code}
	msgs := make([]*core.EmailMessage, 0, len(enrollees))
	for _, e := range enrollees {
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: e.Person.Name, Address: e.Person.Email}},
			Subject:      n.Title,
			TemplateName: "notice",
			TemplateData: data,
		})
	}
	if len(msgs) > 0 {
		opts.Mailer.SendMessages(msgs...)
	}
}

func audience(n Notice, c course.Course) string {
	if n.Scope == ScopeEveryone {
		return "everyone"
	}
	return "enrollees of " + c.Code
}
