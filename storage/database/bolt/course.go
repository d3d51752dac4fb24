package boltdb

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/volatiletech/null/v8"
	"go.etcd.io/bbolt"

	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/record"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func codeKey(c course.Course) string {
	return record.Key(strings.ToUpper(c.Code), strconv.Itoa(c.Term))
}

func enrollmentKey(courseID, enrolleeID string) string {
	return record.Key(courseID, enrolleeID)
}

func (repo courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		if err := claim(tx, bktCoursesByCode, codeKey(c), c.ID, course.ErrCodeTaken); err != nil {
			return err
		}
		return put(tx, bktCourses, c.ID, c)
	})
	if err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo courseRepository) GetCourse(_ context.Context, id string) (c course.Course, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		c, err = get[course.Course](tx, bktCourses, id, course.ErrNotFound)
		return err
	})
	return c, err
}

func (repo courseRepository) QueryCourses(_ context.Context, f course.Filter) (courses []course.Course, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		courses, err = scan(tx, bktCourses, f.Match)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(courses, func(i, j int) bool {
		if courses[i].Term != courses[j].Term {
			return courses[i].Term < courses[j].Term
		}
		return courses[i].Code < courses[j].Code
	})
	return courses, nil
}

func (repo courseRepository) SetInstructor(_ context.Context, courseID string, instructorID null.String) (c course.Course, err error) {
	err = repo.db.update(func(tx *bbolt.Tx) error {
		if c, err = get[course.Course](tx, bktCourses, courseID, course.ErrNotFound); err != nil {
			return err
		}
		c.InstructorID = instructorID
		c.UpdatedAt = course.NowFunc().UTC()
		return put(tx, bktCourses, c.ID, c)
	})
	return c, err
}

func (repo courseRepository) DeleteCourse(_ context.Context, id string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		c, err := get[course.Course](tx, bktCourses, id, course.ErrNotFound)
		if err != nil {
			return err
		}
		_, err = deleteWhere(tx, bktEnrollments, enrollmentID, func(e course.Enrollment) bool { return e.CourseID == id })
		if err != nil {
			return err
		}
		if err = release(tx, bktCoursesByCode, codeKey(c)); err != nil {
			return err
		}
		return del(tx, bktCourses, id)
	})
}

func enrollmentID(e course.Enrollment) string {
	return enrollmentKey(e.CourseID, e.EnrolleeID)
}

func (repo courseRepository) Enroll(_ context.Context, e course.Enrollment) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		if exists(tx, bktEnrollments, enrollmentID(e)) {
			return nil
		}
		return put(tx, bktEnrollments, enrollmentID(e), e)
	})
}

func (repo courseRepository) Unenroll(_ context.Context, courseID, enrolleeID string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		return del(tx, bktEnrollments, enrollmentKey(courseID, enrolleeID))
	})
}

func (repo courseRepository) EnrolleeIDs(_ context.Context, courseID string) ([]string, error) {
	var enrollments []course.Enrollment
	err := repo.db.view(func(tx *bbolt.Tx) (err error) {
		enrollments, err = scanPrefix[course.Enrollment](tx, bktEnrollments, enrollmentKey(courseID, ""), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.EnrolleeID)
	}
	return ids, nil
}

func (repo courseRepository) EnrolledCourseIDs(_ context.Context, enrolleeID string) ([]string, error) {
	var enrollments []course.Enrollment
	err := repo.db.view(func(tx *bbolt.Tx) (err error) {
		enrollments, err = scan(tx, bktEnrollments, func(e course.Enrollment) bool { return e.EnrolleeID == enrolleeID })
		return err
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	return ids, nil
}

func (repo courseRepository) DeleteEnrollments(_ context.Context, enrolleeID string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		_, err := deleteWhere(tx, bktEnrollments, enrollmentID, func(e course.Enrollment) bool { return e.EnrolleeID == enrolleeID })
		return err
	})
}

func (repo courseRepository) UnassignInstructor(_ context.Context, instructorID string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		taught, err := scan(tx, bktCourses, func(c course.Course) bool { return c.InstructorID.String == instructorID })
		if err != nil {
			return err
		}
		now := course.NowFunc().UTC()
		for _, c := range taught {
			c.InstructorID = null.String{}
			c.UpdatedAt = now
			if err = put(tx, bktCourses, c.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo courseRepository) CourseInstructorID(_ context.Context, courseID string) (string, error) {
	var c course.Course
	err := repo.db.view(func(tx *bbolt.Tx) (err error) {
		c, err = get[course.Course](tx, bktCourses, courseID, course.ErrNotFound)
		return err
	})
	if err != nil {
		return "", err
	}
	return c.InstructorID.String, nil
}

func (repo courseRepository) InstructorCourseIDs(ctx context.Context, instructorID string) ([]string, error) {
	courses, err := repo.QueryCourses(ctx, course.Filter{InstructorID: instructorID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (repo courseRepository) IsEnrolled(_ context.Context, enrolleeID, courseID string) (enrolled bool, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		enrolled = exists(tx, bktEnrollments, enrollmentKey(courseID, enrolleeID))
		return nil
	})
	return enrolled, err
}
