package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/course"
)

var (
	ErrTaskNotFound       = core.NewNotFoundError("assignment not found")
	ErrSubmissionNotFound = core.NewNotFoundError("submission not found")
	ErrAlreadySubmitted   = core.NewConflictError("assignment already submitted")
	ErrNothingToUpdate    = core.NewFieldError("title", "nothing to update")
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTask(ctx context.Context, id string) (Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		// DeleteTask deletes the task and its submissions.
		DeleteTask(ctx context.Context, id string) error
		QueryTasks(ctx context.Context, f TaskFilter) ([]Task, error)

		// CreateSubmission fails with ErrAlreadySubmitted when the (task, enrollee) key is taken.
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
		QuerySubmissions(ctx context.Context, f SubmissionFilter) ([]Submission, error)

		DeleteSubmissionsByEnrollee(ctx context.Context, enrolleeID string) (int, error)
		// DeleteByCourse deletes the tasks of a course and their submissions.
		DeleteByCourse(ctx context.Context, courseID string) (int, error)
	}

	Courses interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		IsEnrolled(ctx context.Context, enrolleeID, courseID string) (bool, error)
		EnrolledCourseIDs(ctx context.Context, enrolleeID string) ([]string, error)
		InstructorCourseIDs(ctx context.Context, instructorID string) ([]string, error)
	}
)

var NowFunc = time.Now // mockable

type Service struct {
	repo     Repository
	courses  Courses
	guard    *access.Guard
	recorder audit.Recorder
}

func NewService(repo Repository, courses Courses, guard *access.Guard, recorder audit.Recorder) *Service {
	return &Service{repo: repo, courses: courses, guard: guard, recorder: recorder}
}

func (svc *Service) CreateTask(ctx context.Context, caller access.Caller, data NewTask) (Task, error) {
	data.clean()
	if err := core.Validate(data); err != nil {
		return Task{}, err
	}
	if err := svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: data.CourseID}); err != nil {
		return Task{}, err
	}
	c, err := svc.courses.GetCourse(ctx, data.CourseID)
	if err != nil {
		return Task{}, errors.Wrap(err, "getting course")
	}
	issuer, err := svc.issuer(ctx, caller)
	if err != nil {
		return Task{}, err
	}

	now := NowFunc().UTC()
	t, err := svc.repo.CreateTask(ctx, Task{
		ID:             uuid.New().String(),
		CourseID:       c.ID,
		InstructorID:   issuer,
		Title:          data.Title,
		Description:    data.Description,
		DocumentHandle: data.DocumentHandle,
		DueAt:          data.DueAt,
		MaxScore:       data.MaxScore,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Task{}, errors.Wrap(err, "inserting assignment")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionCreateAssignment, audit.TargetAssignment, t.ID,
		fmt.Sprintf("created assignment %q in %s", t.Title, c.Code),
		audit.Details{"course_id": t.CourseID, "due_at": t.DueAt, "max_score": t.MaxScore},
	))
	return t, nil
}

// UpdateTask edits a task. Submissions keep the status they were given when created,
// whatever happens to the due time.
func (svc *Service) UpdateTask(ctx context.Context, caller access.Caller, id string, data UpdateTask) (Task, error) {
	if data.empty() {
		return Task{}, ErrNothingToUpdate
	}
	if err := core.Validate(data); err != nil {
		return Task{}, err
	}
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, errors.Wrap(err, "getting assignment")
	}
	if err = svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: t.CourseID}); err != nil {
		return Task{}, access.Conceal(err, ErrTaskNotFound)
	}

	changed := make(audit.Details)
	if data.Title != nil {
		t.Title = core.CleanString(*data.Title)
		changed["title"] = t.Title
	}
	if data.Description != nil {
		t.Description = core.CleanString(*data.Description)
		changed["description"] = true
	}
	if data.DueAt != nil {
		t.DueAt = data.DueAt.UTC()
		changed["due_at"] = t.DueAt
	}
	if data.MaxScore != nil {
		t.MaxScore = *data.MaxScore
		changed["max_score"] = t.MaxScore
	}
	t.UpdatedAt = NowFunc().UTC()

	if t, err = svc.repo.UpdateTask(ctx, t); err != nil {
		return Task{}, errors.Wrap(err, "updating assignment")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionUpdateAssignment, audit.TargetAssignment, t.ID,
		fmt.Sprintf("updated assignment %q", t.Title), changed,
	))
	return t, nil
}

// DeleteTask removes a task with all its submissions.
func (svc *Service) DeleteTask(ctx context.Context, caller access.Caller, id string) error {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	if err = svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: t.CourseID}); err != nil {
		return access.Conceal(err, ErrTaskNotFound)
	}
	if err = svc.repo.DeleteTask(ctx, id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionDeleteAssignment, audit.TargetAssignment, t.ID,
		fmt.Sprintf("deleted assignment %q", t.Title), audit.Details{"course_id": t.CourseID},
	))
	return nil
}

// GetTask returns a task to the staff of its course and to its enrollees.
func (svc *Service) GetTask(ctx context.Context, caller access.Caller, id string) (Task, error) {
	t, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, errors.Wrap(err, "getting assignment")
	}
	if err = svc.canView(ctx, caller, t.CourseID); err != nil {
		return Task{}, access.Conceal(err, ErrTaskNotFound)
	}
	return t, nil
}

// ListTasks lists the tasks of one course, or of every course the caller deals with
// when courseID is empty.
func (svc *Service) ListTasks(ctx context.Context, caller access.Caller, courseID string) ([]Task, error) {
	var f TaskFilter
	if courseID != "" {
		if err := svc.canView(ctx, caller, courseID); err != nil {
			return nil, err
		}
		f.CourseIDs = []string{courseID}
	} else {
		ids, err := svc.scope(ctx, caller)
		if err != nil {
			return nil, err
		}
		if ids != nil && len(ids) == 0 {
			return []Task{}, nil
		}
		f.CourseIDs = ids
	}
	return svc.repo.QueryTasks(ctx, f)
}

// Submit hands in the caller's work for a task. A second submission for the same task is rejected.
func (svc *Service) Submit(ctx context.Context, caller access.Caller, data NewSubmission) (Submission, error) {
	data.clean()
	if err := core.Validate(data); err != nil {
		return Submission{}, err
	}
	enrolleeID, err := svc.guard.EnrolleeID(ctx, caller)
	if err != nil {
		return Submission{}, err
	}
	t, err := svc.repo.GetTask(ctx, data.TaskID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "getting assignment")
	}
	if err = svc.guard.Authorize(ctx, caller, access.Submit, access.Target{EnrolleeID: enrolleeID, CourseID: t.CourseID}); err != nil {
		return Submission{}, access.Conceal(err, ErrTaskNotFound)
	}

	now := NowFunc().UTC()
	status, late := submissionStatus(now, t.DueAt)
	s, err := svc.repo.CreateSubmission(ctx, Submission{
		ID:             uuid.New().String(),
		TaskID:         t.ID,
		CourseID:       t.CourseID,
		EnrolleeID:     enrolleeID,
		DocumentHandle: data.DocumentHandle,
		SubmittedAt:    now,
		Late:           late,
		Status:         status,
		UpdatedAt:      now,
	})
	if err != nil {
		return Submission{}, errors.Wrap(err, "inserting submission")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionSubmitAssignment, audit.TargetSubmission, s.ID,
		fmt.Sprintf("submitted %q (%s)", t.Title, s.Status),
		audit.Details{"task_id": t.ID, "course_id": t.CourseID, "late": s.Late},
	))
	return s, nil
}

// Grade scores a submission. Graded is final: grading again only replaces score and feedback.
func (svc *Service) Grade(ctx context.Context, caller access.Caller, id string, data GradeSubmission) (Submission, error) {
	data.Feedback = core.CleanString(data.Feedback)
	if err := core.Validate(data); err != nil {
		return Submission{}, err
	}
	s, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, errors.Wrap(err, "getting submission")
	}
	if err = svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: s.CourseID}); err != nil {
		return Submission{}, access.Conceal(err, ErrSubmissionNotFound)
	}
	t, err := svc.repo.GetTask(ctx, s.TaskID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "getting assignment")
	}
	if *data.Score > t.MaxScore {
		return Submission{}, core.NewFieldError("score", fmt.Sprintf("score must be %v or less", t.MaxScore))
	}
	grader, err := svc.issuer(ctx, caller)
	if err != nil {
		return Submission{}, err
	}

	now := NowFunc().UTC()
	regrade := s.Status == StatusGraded
	s.Status = StatusGraded
	s.Score = null.Float64From(*data.Score)
	s.Feedback = data.Feedback
	s.GradedAt = null.TimeFrom(now)
	s.GradedBy = grader
	s.UpdatedAt = now

	if s, err = svc.repo.UpdateSubmission(ctx, s); err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionGradeSubmission, audit.TargetSubmission, s.ID,
		fmt.Sprintf("graded submission of %s for %q: %v/%v", s.EnrolleeID, t.Title, s.Score.Float64, t.MaxScore),
		audit.Details{"task_id": t.ID, "late": s.Late, "regrade": regrade},
	))
	return s, nil
}

// ListSubmissions lists the submissions of a task for the staff of its course.
func (svc *Service) ListSubmissions(ctx context.Context, caller access.Caller, taskID string) ([]Submission, error) {
	t, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "getting assignment")
	}
	if err = svc.guard.Authorize(ctx, caller, access.ReadCourse, access.Target{CourseID: t.CourseID}); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{TaskID: t.ID})
}

// MySubmissions lists the caller's own submissions, optionally for one course.
func (svc *Service) MySubmissions(ctx context.Context, caller access.Caller, courseID string) ([]Submission, error) {
	enrolleeID, err := svc.guard.EnrolleeID(ctx, caller)
	if err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{EnrolleeID: enrolleeID, CourseID: courseID})
}

// GetSubmission returns a submission to its author and to the staff of its course.
func (svc *Service) GetSubmission(ctx context.Context, caller access.Caller, id string) (Submission, error) {
	s, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, errors.Wrap(err, "getting submission")
	}
	if caller.IsEnrollee() {
		own, err := svc.guard.EnrolleeID(ctx, caller)
		if err != nil {
			return Submission{}, access.Conceal(err, ErrSubmissionNotFound)
		}
		if own != s.EnrolleeID {
			return Submission{}, ErrSubmissionNotFound
		}
		return s, nil
	}
	if err = svc.guard.Authorize(ctx, caller, access.ReadCourse, access.Target{CourseID: s.CourseID}); err != nil {
		return Submission{}, access.Conceal(err, ErrSubmissionNotFound)
	}
	return s, nil
}

func (svc *Service) PurgeEnrollee(ctx context.Context, enrolleeID string) error {
	_, err := svc.repo.DeleteSubmissionsByEnrollee(ctx, enrolleeID)
	return errors.Wrap(err, "deleting enrollee submissions")
}

func (svc *Service) PurgeCourse(ctx context.Context, courseID string) error {
	_, err := svc.repo.DeleteByCourse(ctx, courseID)
	return errors.Wrap(err, "deleting course assignments")
}

// canView allows the staff of a course and its enrollees.
func (svc *Service) canView(ctx context.Context, caller access.Caller, courseID string) error {
	if !caller.IsEnrollee() {
		return svc.guard.Authorize(ctx, caller, access.ReadCourse, access.Target{CourseID: courseID})
	}
	own, err := svc.guard.EnrolleeID(ctx, caller)
	if err != nil {
		return err
	}
	enrolled, err := svc.courses.IsEnrolled(ctx, own, courseID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return access.ErrForbidden
	}
	return nil
}

// scope returns the course ids the caller deals with; nil means all of them.
func (svc *Service) scope(ctx context.Context, caller access.Caller) ([]string, error) {
	switch caller.Role {
	case access.RoleAdmin:
		return nil, nil
	case access.RoleInstructor:
		id, err := svc.guard.InstructorID(ctx, caller)
		if err != nil {
			return nil, err
		}
		ids, err := svc.courses.InstructorCourseIDs(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "listing instructor courses")
		}
		return nonNil(ids), nil
	case access.RoleEnrollee:
		id, err := svc.guard.EnrolleeID(ctx, caller)
		if err != nil {
			return nil, err
		}
		ids, err := svc.courses.EnrolledCourseIDs(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "listing enrolled courses")
		}
		return nonNil(ids), nil
	}
	return nil, access.ErrForbidden
}

// issuer is the instructor profile acting, null for admins.
func (svc *Service) issuer(ctx context.Context, caller access.Caller) (null.String, error) {
	if !caller.IsInstructor() {
		return null.String{}, nil
	}
	id, err := svc.guard.InstructorID(ctx, caller)
	if err != nil {
		return null.String{}, err
	}
	return null.StringFrom(id), nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
