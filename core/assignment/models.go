package assignment

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/record"
)

type Status string

const (
	StatusSubmitted Status = "Submitted"
	StatusLate      Status = "Late"
	StatusGraded    Status = "Graded"
)

type (
	// Task is an assignment issued for a course.
	Task struct {
		ID             string      `json:"id" db:"id"`
		CourseID       string      `json:"course_id" db:"course_id"`
		InstructorID   null.String `json:"instructor_id" db:"instructor_id"` // null when issued by an admin
		Title          string      `json:"title" db:"title"`
		Description    string      `json:"description" db:"description"`
		DocumentHandle string      `json:"document_handle" db:"document_handle"`
		DueAt          time.Time   `json:"due_at" db:"due_at"`
		MaxScore       float64     `json:"max_score" db:"max_score"`
		CreatedAt      time.Time   `json:"created_at" db:"created_at"`
		UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
	}

	// Submission is the work of one enrollee for one task.
	// Late is decided once, when the submission is created.
	Submission struct {
		ID             string       `json:"id" db:"id"`
		TaskID         string       `json:"task_id" db:"task_id"`
		CourseID       string       `json:"course_id" db:"course_id"`
		EnrolleeID     string       `json:"enrollee_id" db:"enrollee_id"`
		DocumentHandle string       `json:"document_handle" db:"document_handle"`
		SubmittedAt    time.Time    `json:"submitted_at" db:"submitted_at"`
		Late           bool         `json:"late" db:"late"`
		Status         Status       `json:"status" db:"status"`
		Score          null.Float64 `json:"score" db:"score"`
		Feedback       string       `json:"feedback" db:"feedback"`
		GradedAt       null.Time    `json:"graded_at" db:"graded_at"`
		GradedBy       null.String  `json:"graded_by" db:"graded_by"`
		UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
	}

	NewTask struct {
		CourseID       string    `json:"course_id" validate:"required"`
		Title          string    `json:"title" validate:"required,max=200"`
		Description    string    `json:"description" validate:"max=5000"`
		DocumentHandle string    `json:"document_handle" validate:"max=500"`
		DueAt          time.Time `json:"due_at" validate:"required"`
		MaxScore       float64   `json:"max_score" validate:"required,gt=0,lte=1000"`
	}

	// UpdateTask edits a task; nil fields are left unchanged.
	UpdateTask struct {
		Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
		Description *string    `json:"description" validate:"omitempty,max=5000"`
		DueAt       *time.Time `json:"due_at"`
		MaxScore    *float64   `json:"max_score" validate:"omitempty,gt=0,lte=1000"`
	}

	NewSubmission struct {
		TaskID         string `json:"task_id" validate:"required"`
		DocumentHandle string `json:"document_handle" validate:"required,max=500"`
	}

	GradeSubmission struct {
		Score    *float64 `json:"score" validate:"required,gte=0"`
		Feedback string   `json:"feedback" validate:"max=5000"`
	}

	TaskFilter struct {
		CourseIDs []string
	}

	SubmissionFilter struct {
		TaskID     string
		CourseID   string
		EnrolleeID string
	}
)

func (s Submission) Key() string {
	return SubmissionKey(s.TaskID, s.EnrolleeID)
}

// SubmissionKey builds the (task, enrollee) key.
func SubmissionKey(taskID, enrolleeID string) string {
	return record.Key(taskID, enrolleeID)
}

// submissionStatus classifies a submission made at submittedAt against the due time.
// Submitting exactly at the due time is on time.
func submissionStatus(submittedAt, dueAt time.Time) (Status, bool) {
	if submittedAt.After(dueAt) {
		return StatusLate, true
	}
	return StatusSubmitted, false
}

func (f TaskFilter) Match(t Task) bool {
	if len(f.CourseIDs) == 0 {
		return true
	}
	for _, id := range f.CourseIDs {
		if id == t.CourseID {
			return true
		}
	}
	return false
}

func (f SubmissionFilter) Match(s Submission) bool {
	if f.TaskID != "" && s.TaskID != f.TaskID {
		return false
	}
	if f.CourseID != "" && s.CourseID != f.CourseID {
		return false
	}
	if f.EnrolleeID != "" && s.EnrolleeID != f.EnrolleeID {
		return false
	}
	return true
}

func (nt *NewTask) clean() {
	nt.CourseID = core.CleanString(nt.CourseID)
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.DocumentHandle = core.CleanString(nt.DocumentHandle)
	if !nt.DueAt.IsZero() {
		nt.DueAt = nt.DueAt.UTC()
	}
}

func (ut *UpdateTask) empty() bool {
	return ut.Title == nil && ut.Description == nil && ut.DueAt == nil && ut.MaxScore == nil
}

func (ns *NewSubmission) clean() {
	ns.TaskID = core.CleanString(ns.TaskID)
	ns.DocumentHandle = core.CleanString(ns.DocumentHandle)
}
