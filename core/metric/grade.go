// Package metric holds the pure computations derived from raw marks and attendance.
// Nothing here touches storage.
package metric

import "math"

type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

const (
	MaxInternal = 40
	MaxExternal = 60
	MaxTotal    = MaxInternal + MaxExternal

	// DefaultCredits weighs results whose course is gone.
	DefaultCredits = 3
)

// thresholds are checked top-down; the first lower bound reached wins.
var thresholds = []struct {
	min   float64
	grade Grade
	point float64
}{
	{90, GradeAPlus, 10},
	{80, GradeA, 9},
	{70, GradeBPlus, 8},
	{60, GradeB, 7},
	{50, GradeCPlus, 6},
	{40, GradeC, 5},
	{33, GradeD, 4},
}

// GradeFor maps a 0..100 total to its letter grade.
func GradeFor(total float64) Grade {
	for _, th := range thresholds {
		if total >= th.min {
			return th.grade
		}
	}
	return GradeF
}

// GradePoint returns the 10-point scale value of g; unknown grades are worth 0.
func GradePoint(g Grade) float64 {
	for _, th := range thresholds {
		if th.grade == g {
			return th.point
		}
	}
	return 0
}

// Valid reports whether g is one of the known grades.
func (g Grade) Valid() bool {
	return g == GradeF || GradePoint(g) > 0
}

// Passed reports whether g is a passing grade.
func (g Grade) Passed() bool {
	return g != GradeF
}

// Total adds the internal and external scores.
func Total(internal, external float64) float64 {
	return round2(internal + external)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Percentage returns part/whole*100 rounded to 2 decimals, 0 when whole is 0.
func Percentage(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(part / whole * 100)
}
