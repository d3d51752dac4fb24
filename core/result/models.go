package result

import (
	"strconv"
	"time"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/metric"
	"github.com/trezcool/daftari/core/record"
)

type (
	// Fact holds the scores of one enrollee in one course for one term.
	// Total and Grade are derived from the scores and never set directly.
	Fact struct {
		ID         string       `json:"id" db:"id"`
		EnrolleeID string       `json:"enrollee_id" db:"enrollee_id"`
		CourseID   string       `json:"course_id" db:"course_id"`
		Term       int          `json:"term" db:"term"`
		Internal   float64      `json:"internal" db:"internal"`
		External   float64      `json:"external" db:"external"`
		Total      float64      `json:"total" db:"total"`
		Grade      metric.Grade `json:"grade" db:"grade"`
		CreatedAt  time.Time    `json:"created_at" db:"created_at"`
		UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
	}

	NewResult struct {
		EnrolleeID string   `json:"enrollee_id" validate:"required"`
		CourseID   string   `json:"course_id" validate:"required"`
		Term       int      `json:"term" validate:"omitempty,min=1,max=12"` // defaults to the course term
		Internal   *float64 `json:"internal" validate:"required,gte=0,lte=40"`
		External   *float64 `json:"external" validate:"required,gte=0,lte=60"`
	}

	// UpdateScores changes one or both scores of a result.
	UpdateScores struct {
		Internal *float64 `json:"internal" validate:"omitempty,gte=0,lte=40"`
		External *float64 `json:"external" validate:"omitempty,gte=0,lte=60"`
	}

	Filter struct {
		EnrolleeID string
		CourseID   string
		Term       int
	}

	Report struct {
		Facts   []Fact               `json:"facts"`
		Summary metric.ResultSummary `json:"summary"`
	}

	CourseReport struct {
		Facts []Fact            `json:"facts"`
		Stats metric.ClassStats `json:"stats"`
	}
)

// SetScores stores the scores and recomputes the derived total and grade.
func (f *Fact) SetScores(internal, external float64) {
	f.Internal = internal
	f.External = external
	f.Total = metric.Total(internal, external)
	f.Grade = metric.GradeFor(f.Total)
}

func (f Fact) Key() string {
	return FactKey(f.EnrolleeID, f.CourseID, f.Term)
}

func (f Fact) scored() metric.Scored {
	return metric.Scored{Total: f.Total, Grade: f.Grade}
}

// FactKey builds the (enrollee, course, term) key.
func FactKey(enrolleeID, courseID string, term int) string {
	return record.Key(enrolleeID, courseID, strconv.Itoa(term))
}

func (f Filter) Match(fact Fact) bool {
	if f.EnrolleeID != "" && fact.EnrolleeID != f.EnrolleeID {
		return false
	}
	if f.CourseID != "" && fact.CourseID != f.CourseID {
		return false
	}
	if f.Term != 0 && fact.Term != f.Term {
		return false
	}
	return true
}

func (nr *NewResult) clean() {
	nr.EnrolleeID = core.CleanString(nr.EnrolleeID)
	nr.CourseID = core.CleanString(nr.CourseID)
}
