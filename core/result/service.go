package result

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/metric"
	"github.com/trezcool/daftari/core/record"
)

var (
	ErrNotFound        = core.NewNotFoundError("result not found")
	ErrAlreadyRecorded = core.NewConflictError("result already recorded for this enrollee, course and term")
	ErrNotEnrolled     = core.NewFieldError("enrollee_id", "enrollee is not enrolled in this course")
	ErrNoScores        = core.NewValidationError(
		errors.New("no scores to update"),
		core.FieldError{Field: "internal", Error: "internal or external is required"},
	)
)

type (
	Repository interface {
		// CreateResult fails with ErrAlreadyRecorded when the key is taken.
		CreateResult(ctx context.Context, f Fact) (Fact, error)
		GetResult(ctx context.Context, id string) (Fact, error)
		UpdateResult(ctx context.Context, f Fact) (Fact, error)
		DeleteResult(ctx context.Context, id string) error
		QueryResults(ctx context.Context, f Filter) ([]Fact, error)
		DeleteByEnrollee(ctx context.Context, enrolleeID string) (int, error)
		DeleteByCourse(ctx context.Context, courseID string) (int, error)
	}

	Courses interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		QueryCourses(ctx context.Context, f course.Filter) ([]course.Course, error)
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

// SetBulkWorkers bounds the concurrent per-key writes of AddBulk.
func (svc *Service) SetBulkWorkers(n int) {
	if n > 0 {
		svc.workers = n
	}
}

// Add records a result and rejects duplicates: corrections go through Update.
func (svc *Service) Add(ctx context.Context, caller access.Caller, data NewResult) (Fact, error) {
	data.clean()
	if err := core.Validate(data); err != nil {
		return Fact{}, err
	}
	if err := svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: data.CourseID}); err != nil {
		return Fact{}, err
	}
	c, err := svc.courses.GetCourse(ctx, data.CourseID)
	if err != nil {
		return Fact{}, errors.Wrap(err, "getting course")
	}
	return svc.add(ctx, caller, c, data)
}

func (svc *Service) add(ctx context.Context, caller access.Caller, c course.Course, data NewResult) (Fact, error) {
	enrolled, err := svc.courses.IsEnrolled(ctx, data.EnrolleeID, c.ID)
	if err != nil {
		return Fact{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return Fact{}, ErrNotEnrolled
	}

	now := NowFunc().UTC()
	f := Fact{
		ID:         uuid.New().String(),
		EnrolleeID: data.EnrolleeID,
		CourseID:   c.ID,
		Term:       data.Term,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if f.Term == 0 {
		f.Term = c.Term
	}
	f.SetScores(*data.Internal, *data.External)

	if f, err = svc.repo.CreateResult(ctx, f); err != nil {
		return Fact{}, errors.Wrap(err, "inserting result")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionAddMarks, audit.TargetResult, f.ID,
		fmt.Sprintf("added marks of %s in %s: %v (%s)", f.EnrolleeID, c.Code, f.Total, f.Grade),
		audit.Details{"course_id": f.CourseID, "term": f.Term, "internal": f.Internal, "external": f.External},
	))
	return f, nil
}

// AddBulk records many results of one course. Every result is inserted independently;
// duplicates and invalid entries are reported per key.
func (svc *Service) AddBulk(ctx context.Context, caller access.Caller, courseID string, data []NewResult) (record.BulkResult, error) {
	courseID = core.CleanString(courseID)
	if courseID == "" {
		return record.BulkResult{}, core.NewFieldError("course_id", "this field is required")
	}
	if len(data) == 0 {
		return record.BulkResult{}, core.NewFieldError("results", "this field is required")
	}
	if err := svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: courseID}); err != nil {
		return record.BulkResult{}, err
	}
	c, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return record.BulkResult{}, errors.Wrap(err, "getting course")
	}

	var (
		invalid []record.KeyError
		valid   []NewResult
		keys    []string
	)
	for i, nr := range data {
		nr.CourseID = courseID
		nr.clean()
		if err := core.Validate(nr); err != nil {
			key := nr.EnrolleeID
			if key == "" {
				key = fmt.Sprintf("results[%d]", i)
			}
			invalid = append(invalid, record.NewKeyError(key, err))
			continue
		}
		valid = append(valid, nr)
		keys = append(keys, nr.EnrolleeID)
	}

	res := record.ApplyBulk(ctx, svc.workers, keys, func(ctx context.Context, i int) error {
		_, err := svc.add(ctx, caller, c, valid[i])
		return errors.Cause(err)
	})
	res = res.Merge(invalid...)

	if res.Applied > 0 {
		svc.recorder.Record(audit.NewEntry(caller, audit.ActionBulkAddMarks, audit.TargetCourse, c.ID,
			fmt.Sprintf("bulk added marks in %s: %s", c.Code, res),
			audit.Details{"applied": res.Applied, "failed": len(res.Failed)},
		))
	}
	return res, nil
}

// Update changes the scores of an existing result; total and grade follow.
func (svc *Service) Update(ctx context.Context, caller access.Caller, id string, data UpdateScores) (Fact, error) {
	if data.Internal == nil && data.External == nil {
		return Fact{}, ErrNoScores
	}
	if err := core.Validate(data); err != nil {
		return Fact{}, err
	}
	f, err := svc.repo.GetResult(ctx, id)
	if err != nil {
		return Fact{}, errors.Wrap(err, "getting result")
	}
	if err = svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: f.CourseID}); err != nil {
		return Fact{}, access.Conceal(err, ErrNotFound)
	}

	prev := f
	internal, external := f.Internal, f.External
	if data.Internal != nil {
		internal = *data.Internal
	}
	if data.External != nil {
		external = *data.External
	}
	f.SetScores(internal, external)
	f.UpdatedAt = NowFunc().UTC()

	if f, err = svc.repo.UpdateResult(ctx, f); err != nil {
		return Fact{}, errors.Wrap(err, "updating result")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionUpdateMarks, audit.TargetResult, f.ID,
		fmt.Sprintf("updated marks of %s: %v (%s) -> %v (%s)", f.EnrolleeID, prev.Total, prev.Grade, f.Total, f.Grade),
		audit.Details{
			"course_id":     f.CourseID,
			"prev_internal": prev.Internal,
			"prev_external": prev.External,
			"internal":      f.Internal,
			"external":      f.External,
		},
	))
	return f, nil
}

// Get returns one result to whoever may read its enrollee's records.
func (svc *Service) Get(ctx context.Context, caller access.Caller, id string) (Fact, error) {
	f, err := svc.repo.GetResult(ctx, id)
	if err != nil {
		return Fact{}, errors.Wrap(err, "getting result")
	}
	if err = svc.guard.Authorize(ctx, caller, access.ReadEnrollee, access.Target{EnrolleeID: f.EnrolleeID}); err != nil {
		return Fact{}, access.Conceal(err, ErrNotFound)
	}
	return f, nil
}

func (svc *Service) Delete(ctx context.Context, caller access.Caller, id string) error {
	f, err := svc.repo.GetResult(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting result")
	}
	if err = svc.guard.Authorize(ctx, caller, access.WriteCourse, access.Target{CourseID: f.CourseID}); err != nil {
		return access.Conceal(err, ErrNotFound)
	}
	if err = svc.repo.DeleteResult(ctx, id); err != nil {
		return errors.Wrap(err, "deleting result")
	}

	svc.recorder.Record(audit.NewEntry(caller, audit.ActionDeleteMarks, audit.TargetResult, f.ID,
		fmt.Sprintf("deleted marks of %s", f.EnrolleeID),
		audit.Details{"course_id": f.CourseID, "term": f.Term, "total": f.Total},
	))
	return nil
}

// ForEnrollee lists the results of one enrollee with SGPA and percentage.
// Enrollees always get their own results.
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
	facts, err := svc.repo.QueryResults(ctx, f)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying results")
	}
	if len(facts) == 0 {
		return Report{Facts: []Fact{}}, nil
	}

	credits, err := svc.credits(ctx, facts)
	if err != nil {
		return Report{}, err
	}
	scored := make([]metric.Scored, len(facts))
	weights := make([]float64, len(facts))
	for i, fact := range facts {
		scored[i] = fact.scored()
		weights[i] = metric.DefaultCredits
		if c, ok := credits[fact.CourseID]; ok {
			weights[i] = float64(c)
		}
	}
	return Report{Facts: facts, Summary: metric.SummarizeResults(scored, weights)}, nil
}

// ForCourse lists the results of a course with class statistics.
func (svc *Service) ForCourse(ctx context.Context, caller access.Caller, courseID string, f Filter) (CourseReport, error) {
	if err := svc.guard.Authorize(ctx, caller, access.ReadCourse, access.Target{CourseID: courseID}); err != nil {
		return CourseReport{}, err
	}
	if _, err := svc.courses.GetCourse(ctx, courseID); err != nil {
		return CourseReport{}, errors.Wrap(err, "getting course")
	}

	f.CourseID = courseID
	facts, err := svc.repo.QueryResults(ctx, f)
	if err != nil {
		return CourseReport{}, errors.Wrap(err, "querying results")
	}
	scored := make([]metric.Scored, len(facts))
	for i, fact := range facts {
		scored[i] = fact.scored()
	}
	if facts == nil {
		facts = []Fact{}
	}
	return CourseReport{Facts: facts, Stats: metric.ComputeClassStats(scored)}, nil
}

func (svc *Service) PurgeEnrollee(ctx context.Context, enrolleeID string) error {
	_, err := svc.repo.DeleteByEnrollee(ctx, enrolleeID)
	return errors.Wrap(err, "deleting enrollee results")
}

func (svc *Service) PurgeCourse(ctx context.Context, courseID string) error {
	_, err := svc.repo.DeleteByCourse(ctx, courseID)
	return errors.Wrap(err, "deleting course results")
}

// credits maps the course ids of facts to their credits; deleted courses are absent.
func (svc *Service) credits(ctx context.Context, facts []Fact) (map[string]int, error) {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(facts))
	for _, f := range facts {
		if !seen[f.CourseID] {
			seen[f.CourseID] = true
			ids = append(ids, f.CourseID)
		}
	}
	courses, err := svc.courses.QueryCourses(ctx, course.Filter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	credits := make(map[string]int, len(courses))
	for _, c := range courses {
		credits[c.ID] = c.Credits
	}
	return credits, nil
}
