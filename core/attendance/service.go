package attendance

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
	"github.com/trezcool/daftari/core/metric"
	"github.com/trezcool/daftari/core/record"
)

var (
	ErrNotFound      = core.NewNotFoundError("attendance record not found")
	ErrAlreadyMarked = core.NewConflictError("attendance already marked for this enrollee, course and date")
	ErrNotEnrolled   = core.NewFieldError("enrollee_id", "enrollee is not enrolled in this course")
)

type (
	Repository interface {
		// CreateFact fails with ErrAlreadyMarked when the key is taken.
		CreateFact(ctx context.Context, f Fact) (Fact, error)
		// UpsertFact overwrites the status of the fact stored under the same key, if any,
		// keeping its id and creation time.
		UpsertFact(ctx context.Context, f Fact) (Fact, error)
		GetFact(ctx context.Context, id string) (Fact, error)
		UpdateFact(ctx context.Context, f Fact) (Fact, error)
		DeleteFact(ctx context.Context, id string) error
		QueryFacts(ctx context.Context, f Filter) ([]Fact, error)
		DeleteByEnrollee(ctx context.Context, enrolleeID string) (int, error)
		DeleteByCourse(ctx context.Context, courseID string) (int, error)
	}

	Courses interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		IsEnrolled(ctx context.Context, enrolleeID, courseID string) (bool, error)
	}
)

var NowFunc = time.Now // mockable

type Service struct {
	repo     Repository
	courses  Courses
	guard    *access.Guard
	recorder audit.Recorder
	workers  int
}

func NewService(repo Repository, courses Courses, guard *access.Guard, recorder audit.Recorder) *Service {
	return &Service{repo: repo, courses: courses, guard: guard, recorder: recorder, workers: record.DefaultWorkers}
}

// SetBulkWorkers bounds the concurrent per-key writes of MarkBulk.
func (svc *Service) SetBulkWorkers(n int) {
	if n > 0 {
		svc.workers = n
	}
}

// Mark records one fact and rejects duplicates.
func (svc *Service) Mark(ctx context.Context, caller access.Caller, data NewFact) (Fact, error) {
	data.clean()
	if err := core.Validate(data); err != nil {
		return Fact{}, err
	}
	markedBy, err := svc.authorizeWrite(ctx, caller, data.CourseID)
	if err != nil {
		return Fact{}, err
	}
	if err = svc.checkEnrolled(ctx, data.EnrolleeID, data.CourseID); err != nil {
		return Fact{}, err
	}

	now := NowFunc().UTC()
	f, err := svc.repo.CreateFact(ctx, Fact{
		ID:         uuid.New().String(),
		EnrolleeID: data.EnrolleeID,
		CourseID:   data.CourseID,
		Date:       data.Date,
		Status:     data.Status,
		MarkedBy:   markedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Fact{}, errors.Wrap(err, "inserting attendance")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionMarkAttendance, audit.TargetAttendance, f.ID,
		fmt.Sprintf("marked %s %s", f.EnrolleeID, f.Status),
		audit.Details{"course_id": f.CourseID, "date": f.Date.Format(core.DateLayout), "status": f.Status},
	))
	return f, nil
}

// MarkBulk upserts one fact per enrollee; an enrollee listed twice keeps its last entry.
// Keys are written independently and the result lists every entry that could not be applied.
func (svc *Service) MarkBulk(ctx context.Context, caller access.Caller, data BulkMark) (record.BulkResult, error) {
	data.clean()
	if err := core.Validate(data); err != nil {
		return record.BulkResult{}, err
	}
	markedBy, err := svc.authorizeWrite(ctx, caller, data.CourseID)
	if err != nil {
		return record.BulkResult{}, err
	}

	var (
		invalid []record.KeyError
		entries []BulkEntry
		keys    []string
	)
	for i, entry := range data.Entries {
		if err := core.Validate(entry); err != nil {
			key := entry.EnrolleeID
			if key == "" {
				key = fmt.Sprintf("entries[%d]", i)
			}
			invalid = append(invalid, record.NewKeyError(key, err))
			continue
		}
		entries = append(entries, entry)
	}
	entries = lastPerEnrollee(entries)
	for _, entry := range entries {
		keys = append(keys, entry.EnrolleeID)
	}

	now := NowFunc().UTC()
	res := record.ApplyBulk(ctx, svc.workers, keys, func(ctx context.Context, i int) error {
		entry := entries[i]
		if err := svc.checkEnrolled(ctx, entry.EnrolleeID, data.CourseID); err != nil {
			return err
		}
		_, err := svc.repo.UpsertFact(ctx, Fact{
			ID:         uuid.New().String(),
			EnrolleeID: entry.EnrolleeID,
			CourseID:   data.CourseID,
			Date:       data.Date,
			Status:     entry.Status,
			MarkedBy:   markedBy,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		return err
	})
	res = res.Merge(invalid...)

	if res.Applied > 0 {
		svc.recorder.Record(audit.NewEntry(caller, audit.ActionBulkMarkAttendance, audit.TargetCourse, data.CourseID,
			fmt.Sprintf("bulk marked attendance: %s", res),
			audit.Details{"date": data.Date.Format(core.DateLayout), "applied": res.Applied, "failed": len(res.Failed)},
		))
	}
	return res, nil
}

// lastPerEnrollee keeps the last entry of every enrollee, in input order.
func lastPerEnrollee(entries []BulkEntry) []BulkEntry {
	last := make(map[string]int, len(entries))
	for i, entry := range entries {
		last[entry.EnrolleeID] = i
	}
	out := make([]BulkEntry, 0, len(last))
	for i, entry := range entries {
		if last[entry.EnrolleeID] == i {
			out = append(out, entry)
		}
	}
	return out
}

// UpdateStatus corrects the status of an existing fact.
func (svc *Service) UpdateStatus(ctx context.Context, caller access.Caller, id string, status Status) (Fact, error) {
	if err := core.ValidateVar("status", status, "required,oneof=Present Absent"); err != nil {
		return Fact{}, err
	}
	f, err := svc.repo.GetFact(ctx, id)
	if err != nil {
		return Fact{}, errors.Wrap(err, "getting attendance")
	}
	markedBy, err := svc.authorizeWrite(ctx, caller, f.CourseID)
	if err != nil {
		return Fact{}, access.Conceal(err, ErrNotFound)
	}

	prev := f.Status
	f.Status = status
	f.MarkedBy = markedBy
	f.UpdatedAt = NowFunc().UTC()
	if f, err = svc.repo.UpdateFact(ctx, f); err != nil {
		return Fact{}, errors.Wrap(err, "updating attendance")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionUpdateAttendance, audit.TargetAttendance, f.ID,
		fmt.Sprintf("changed %s from %s to %s", f.EnrolleeID, prev, f.Status),
		audit.Details{"course_id": f.CourseID, "date": f.Date.Format(core.DateLayout)},
	))
	return f, nil
}

func (svc *Service) Delete(ctx context.Context, caller access.Caller, id string) error {
	f, err := svc.repo.GetFact(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting attendance")
	}
	if err = svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: f.CourseID}); err != nil {
		return access.Conceal(err, ErrNotFound)
	}
	if err = svc.repo.DeleteFact(ctx, id); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionDeleteAttendance, audit.TargetAttendance, f.ID,
		fmt.Sprintf("deleted attendance of %s", f.EnrolleeID),
		audit.Details{"course_id": f.CourseID, "date": f.Date.Format(core.DateLayout), "status": f.Status},
	))
	return nil
}

// ForEnrollee lists the facts of one enrollee with their tally.
// Enrollees always get their own facts: an empty or foreign enrolleeID is resolved server side.
func (svc *Service) ForEnrollee(ctx context.Context, caller access.Caller, enrolleeID string, f Filter) (Report, error) {
	if caller.IsEnrollee() {
		own, err := svc.guard.EnrolleeID(ctx, caller)
		if err != nil {
			return Report{}, err
		}
		if enrolleeID != "" && enrolleeID != own {
			return Report{}, access.ErrForbidden
		}
		enrolleeID = own
	} else if enrolleeID == "" {
		return Report{}, core.NewFieldError("enrollee_id", "this field is required")
	} else if err := svc.guard.Authorize(ctx, caller, access.ReadEnrollee, access.Target{EnrolleeID: enrolleeID}); err != nil {
		return Report{}, err
	}

	f.EnrolleeID = enrolleeID
	facts, err := svc.repo.QueryFacts(ctx, f)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying attendance")
	}
	return Report{Facts: orEmpty(facts), Summary: summarize(facts)}, nil
}

// ForCourse lists the facts of a course with overall and per-enrollee tallies.
func (svc *Service) ForCourse(ctx context.Context, caller access.Caller, courseID string, f Filter) (CourseReport, error) {
	if err := svc.guard.Authorize(ctx, caller, access.ReadCourse, access.Target{CourseID: courseID}); err != nil {
		return CourseReport{}, err
	}
	if _, err := svc.courses.GetCourse(ctx, courseID); err != nil {
		return CourseReport{}, errors.Wrap(err, "getting course")
	}

	f.CourseID = courseID
	facts, err := svc.repo.QueryFacts(ctx, f)
	if err != nil {
		return CourseReport{}, errors.Wrap(err, "querying attendance")
	}

	grouped := make(map[string][]Fact)
	for _, fact := range facts {
		grouped[fact.EnrolleeID] = append(grouped[fact.EnrolleeID], fact)
	}
	byEnrollee := make(map[string]metric.AttendanceSummary, len(grouped))
	for id, fs := range grouped {
		byEnrollee[id] = summarize(fs)
	}
	return CourseReport{
		Report:     Report{Facts: orEmpty(facts), Summary: summarize(facts)},
		ByEnrollee: byEnrollee,
	}, nil
}

func (svc *Service) PurgeEnrollee(ctx context.Context, enrolleeID string) error {
	_, err := svc.repo.DeleteByEnrollee(ctx, enrolleeID)
	return errors.Wrap(err, "deleting enrollee attendance")
}

func (svc *Service) PurgeCourse(ctx context.Context, courseID string) error {
	_, err := svc.repo.DeleteByCourse(ctx, courseID)
	return errors.Wrap(err, "deleting course attendance")
}

// authorizeWrite checks the caller may write facts of the course and returns who marks them.
func (svc *Service) authorizeWrite(ctx context.Context, caller access.Caller, courseID string) (null.String, error) {
	if err := svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: courseID}); err != nil {
		return null.String{}, err
	}
	if _, err := svc.courses.GetCourse(ctx, courseID); err != nil {
		return null.String{}, errors.Wrap(err, "getting course")
	}
	if !caller.IsInstructor() {
		return null.String{}, nil
	}
	id, err := svc.guard.InstructorID(ctx, caller)
	if err != nil {
		return null.String{}, err
	}
	return null.StringFrom(id), nil
}

func (svc *Service) checkEnrolled(ctx context.Context, enrolleeID, courseID string) error {
	enrolled, err := svc.courses.IsEnrolled(ctx, enrolleeID, courseID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

func orEmpty(facts []Fact) []Fact {
	if facts == nil {
		return []Fact{}
	}
	return facts
}
