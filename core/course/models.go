package course

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/daftari/core"
)

type (
	// Course is a credit-weighted unit of study, scoped to a term.
	Course struct {
		ID           string      `json:"id" db:"id"`
		Code         string      `json:"code" db:"code"`
		Name         string      `json:"name" db:"name"`
		Credits      int         `json:"credits" db:"credits"`
		Term         int         `json:"term" db:"term"`
		Unit         string      `json:"unit" db:"unit"`
		InstructorID null.String `json:"instructor_id" db:"instructor_id"`
		CreatedAt    time.Time   `json:"created_at" db:"created_at"`
		UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
	}

	// Enrollment links an enrollee to a course.
	Enrollment struct {
		CourseID   string    `json:"course_id" db:"course_id"`
		EnrolleeID string    `json:"enrollee_id" db:"enrollee_id"`
		CreatedAt  time.Time `json:"created_at" db:"created_at"`
	}

	NewCourse struct {
		Code         string `json:"code" validate:"required,code,max=20"`
		Name         string `json:"name" validate:"required,max=150"`
		Credits      int    `json:"credits" validate:"required,min=1,max=10"`
		Term         int    `json:"term" validate:"required,min=1,max=12"`
		Unit         string `json:"unit" validate:"max=100"`
		InstructorID string `json:"instructor_id" validate:"omitempty,uuid"`
	}

	Filter struct {
		IDs          []string
		Term         int
		Unit         string
		InstructorID string
	}
)

func (nc *NewCourse) clean() {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Unit = core.CleanString(nc.Unit)
	nc.InstructorID = core.CleanString(nc.InstructorID)
}

// Match reports whether c passes f.
func (f Filter) Match(c Course) bool {
	if len(f.IDs) > 0 {
		var found bool
		for _, id := range f.IDs {
			if id == c.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Term != 0 && c.Term != f.Term {
		return false
	}
	if f.Unit != "" && c.Unit != f.Unit {
		return false
	}
	if f.InstructorID != "" && c.InstructorID.String != f.InstructorID {
		return false
	}
	return true
}
