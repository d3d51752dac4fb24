package boltdb

import (
	"context"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/trezcool/daftari/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func taskID(t assignment.Task) string             { return t.ID }
func submissionID(s assignment.Submission) string { return s.ID }

func (repo assignmentRepository) CreateTask(_ context.Context, t assignment.Task) (assignment.Task, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		return put(tx, bktTasks, t.ID, t)
	})
	if err != nil {
		return assignment.Task{}, err
	}
	return t, nil
}

func (repo assignmentRepository) GetTask(_ context.Context, id string) (t assignment.Task, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		t, err = get[assignment.Task](tx, bktTasks, id, assignment.ErrTaskNotFound)
		return err
	})
	return t, err
}

func (repo assignmentRepository) UpdateTask(_ context.Context, t assignment.Task) (assignment.Task, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		if !exists(tx, bktTasks, t.ID) {
			return assignment.ErrTaskNotFound
		}
		return put(tx, bktTasks, t.ID, t)
	})
	if err != nil {
		return assignment.Task{}, err
	}
	return t, nil
}

func (repo assignmentRepository) DeleteTask(_ context.Context, id string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		if !exists(tx, bktTasks, id) {
			return assignment.ErrTaskNotFound
		}
		if _, err := deleteSubmissions(tx, func(s assignment.Submission) bool { return s.TaskID == id }); err != nil {
			return err
		}
		return del(tx, bktTasks, id)
	})
}

func (repo assignmentRepository) QueryTasks(_ context.Context, f assignment.TaskFilter) (tasks []assignment.Task, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		tasks, err = scan(tx, bktTasks, f.Match)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].DueAt.Before(tasks[j].DueAt) })
	return tasks, nil
}

func (repo assignmentRepository) CreateSubmission(_ context.Context, s assignment.Submission) (assignment.Submission, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		if err := claim(tx, bktSubmissionsByKey, s.Key(), s.ID, assignment.ErrAlreadySubmitted); err != nil {
			return err
		}
		return put(tx, bktSubmissions, s.ID, s)
	})
	if err != nil {
		return assignment.Submission{}, err
	}
	return s, nil
}

func (repo assignmentRepository) GetSubmission(_ context.Context, id string) (s assignment.Submission, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		s, err = get[assignment.Submission](tx, bktSubmissions, id, assignment.ErrSubmissionNotFound)
		return err
	})
	return s, err
}

// UpdateSubmission stores the grading fields. Document, submission time and the late flag are kept.
func (repo assignmentRepository) UpdateSubmission(_ context.Context, s assignment.Submission) (assignment.Submission, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		stored, err := get[assignment.Submission](tx, bktSubmissions, s.ID, assignment.ErrSubmissionNotFound)
		if err != nil {
			return err
		}
		stored.Status = s.Status
		stored.Score = s.Score
		stored.Feedback = s.Feedback
		stored.GradedAt = s.GradedAt
		stored.GradedBy = s.GradedBy
		stored.UpdatedAt = s.UpdatedAt
		s = stored
		return put(tx, bktSubmissions, s.ID, s)
	})
	if err != nil {
		return assignment.Submission{}, err
	}
	return s, nil
}

func (repo assignmentRepository) QuerySubmissions(_ context.Context, f assignment.SubmissionFilter) (subs []assignment.Submission, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		subs, err = scan(tx, bktSubmissions, f.Match)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo assignmentRepository) DeleteSubmissionsByEnrollee(_ context.Context, enrolleeID string) (n int, err error) {
	err = repo.db.update(func(tx *bbolt.Tx) error {
		n, err = deleteSubmissions(tx, func(s assignment.Submission) bool { return s.EnrolleeID == enrolleeID })
		return err
	})
	return n, err
}

func (repo assignmentRepository) DeleteByCourse(_ context.Context, courseID string) (n int, err error) {
	err = repo.db.update(func(tx *bbolt.Tx) error {
		if _, err = deleteSubmissions(tx, func(s assignment.Submission) bool { return s.CourseID == courseID }); err != nil {
			return err
		}
		tasks, err := deleteWhere(tx, bktTasks, taskID, func(t assignment.Task) bool { return t.CourseID == courseID })
		n = len(tasks)
		return err
	})
	return n, err
}

func deleteSubmissions(tx *bbolt.Tx, match func(assignment.Submission) bool) (int, error) {
	deleted, err := deleteWhere(tx, bktSubmissions, submissionID, match)
	if err != nil {
		return 0, err
	}
	for _, s := range deleted {
		if err = release(tx, bktSubmissionsByKey, s.Key()); err != nil {
			return 0, err
		}
	}
	return len(deleted), nil
}
