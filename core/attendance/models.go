package attendance

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/metric"
	"github.com/trezcool/daftari/core/record"
)

type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

type (
	// Fact is the attendance of one enrollee to one course on one calendar date.
	Fact struct {
		ID         string      `json:"id" db:"id"`
		EnrolleeID string      `json:"enrollee_id" db:"enrollee_id"`
		CourseID   string      `json:"course_id" db:"course_id"`
		Date       time.Time   `json:"date" db:"day"`
		Status     Status      `json:"status" db:"status"`
		MarkedBy   null.String `json:"marked_by" db:"marked_by"` // instructor profile; null when marked by an admin
		CreatedAt  time.Time   `json:"created_at" db:"created_at"`
		UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
	}

	NewFact struct {
		EnrolleeID string    `json:"enrollee_id" validate:"required"`
		CourseID   string    `json:"course_id" validate:"required"`
		Date       time.Time `json:"date" validate:"required"`
		Status     Status    `json:"status" validate:"required,oneof=Present Absent"`
	}

	BulkEntry struct {
		EnrolleeID string `json:"enrollee_id" validate:"required"`
		Status     Status `json:"status" validate:"required,oneof=Present Absent"`
	}

	// BulkMark marks many enrollees of one course on one date.
	BulkMark struct {
		CourseID string      `json:"course_id" validate:"required"`
		Date     time.Time   `json:"date" validate:"required"`
		Entries  []BulkEntry `json:"entries" validate:"required,min=1,max=1000"`
	}

	// Filter narrows fact listings. From and Until are inclusive calendar dates.
	Filter struct {
		EnrolleeID string
		CourseID   string
		From       time.Time
		Until      time.Time
	}

	// Report is a list of facts with their tally.
	Report struct {
		Facts   []Fact                   `json:"facts"`
		Summary metric.AttendanceSummary `json:"summary"`
	}

	// CourseReport adds per-enrollee tallies to a course-wide Report.
	CourseReport struct {
		Report
		ByEnrollee map[string]metric.AttendanceSummary `json:"by_enrollee"`
	}
)

// Key is the uniqueness key of the fact.
func (f Fact) Key() string {
	return FactKey(f.EnrolleeID, f.CourseID, f.Date)
}

func (f Fact) Present() bool {
	return f.Status == StatusPresent
}

// FactKey builds the (enrollee, course, date) key.
func FactKey(enrolleeID, courseID string, date time.Time) string {
	return record.Key(enrolleeID, courseID, core.Day(date).Format(core.DateLayout))
}

// Match reports whether fact passes f.
func (f Filter) Match(fact Fact) bool {
	if f.EnrolleeID != "" && fact.EnrolleeID != f.EnrolleeID {
		return false
	}
	if f.CourseID != "" && fact.CourseID != f.CourseID {
		return false
	}
	if !f.From.IsZero() && fact.Date.Before(core.Day(f.From)) {
		return false
	}
	if !f.Until.IsZero() && fact.Date.After(core.Day(f.Until)) {
		return false
	}
	return true
}

func (nf *NewFact) clean() {
	nf.EnrolleeID = core.CleanString(nf.EnrolleeID)
	nf.CourseID = core.CleanString(nf.CourseID)
	if !nf.Date.IsZero() {
		nf.Date = core.Day(nf.Date)
	}
}

func (bm *BulkMark) clean() {
	bm.CourseID = core.CleanString(bm.CourseID)
	if !bm.Date.IsZero() {
		bm.Date = core.Day(bm.Date)
	}
	for i := range bm.Entries {
		bm.Entries[i].EnrolleeID = core.CleanString(bm.Entries[i].EnrolleeID)
	}
}

func summarize(facts []Fact) metric.AttendanceSummary {
	return metric.SummarizeAttendance(facts, Fact.Present)
}
