package metric

// AttendanceSummary tallies attendance marks.
type AttendanceSummary struct {
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// SummarizeAttendance counts facts, using present to tell marks apart.
func SummarizeAttendance[T any](facts []T, present func(T) bool) AttendanceSummary {
	var s AttendanceSummary
	for _, f := range facts {
		s.Total++
		if present(f) {
			s.Present++
		} else {
			s.Absent++
		}
	}
	s.Percentage = AttendancePercentage(s.Present, s.Total)
	return s
}

// AttendancePercentage is present/total*100 rounded to 2 decimals, 0 when total is 0.
func AttendancePercentage(present, total int) float64 {
	return Percentage(float64(present), float64(total))
}

// Weighted is one graded course with its credit weight.
type Weighted struct {
	Grade   Grade
	Credits float64
}

// SGPA is the credit-weighted grade-point average rounded to 2 decimals, 0 without credits.
func SGPA(results []Weighted) float64 {
	var points, credits float64
	for _, r := range results {
		points += GradePoint(r.Grade) * r.Credits
		credits += r.Credits
	}
	if credits == 0 {
		return 0
	}
	return round2(points / credits)
}

// Scored is one result as seen by the statistics.
type Scored struct {
	Total float64
	Grade Grade
}

// ResultSummary describes one enrollee's results.
type ResultSummary struct {
	SGPA          float64 `json:"sgpa"`
	Percentage    float64 `json:"percentage"`
	TotalSubjects int     `json:"total_subjects"`
	MarksObtained float64 `json:"marks_obtained"`
	MaxMarks      float64 `json:"max_marks"`
}

// SummarizeResults computes an enrollee's summary; results and weights are parallel slices.
func SummarizeResults(results []Scored, credits []float64) ResultSummary {
	weighted := make([]Weighted, 0, len(results))
	var s ResultSummary
	for i, r := range results {
		c := float64(DefaultCredits)
		if i < len(credits) {
			c = credits[i]
		}
		weighted = append(weighted, Weighted{Grade: r.Grade, Credits: c})
		s.MarksObtained += r.Total
	}
	s.TotalSubjects = len(results)
	s.MarksObtained = round2(s.MarksObtained)
	s.MaxMarks = float64(s.TotalSubjects * MaxTotal)
	s.Percentage = Percentage(s.MarksObtained, s.MaxMarks)
	s.SGPA = SGPA(weighted)
	return s
}

// ClassStats describes the results of a whole course.
type ClassStats struct {
	Count          int     `json:"count"`
	PassCount      int     `json:"pass_count"`
	FailCount      int     `json:"fail_count"`
	PassPercentage float64 `json:"pass_percentage"`
	Mean           float64 `json:"mean"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
}

// ComputeClassStats walks results once. Empty input yields zero values everywhere.
func ComputeClassStats(results []Scored) ClassStats {
	var s ClassStats
	var sum float64
	for i, r := range results {
		s.Count++
		if r.Grade.Passed() {
			s.PassCount++
		}
		sum += r.Total
		if i == 0 || r.Total < s.Min {
			s.Min = r.Total
		}
		if i == 0 || r.Total > s.Max {
			s.Max = r.Total
		}
	}
	if s.Count == 0 {
		return s
	}
	s.FailCount = s.Count - s.PassCount
	s.PassPercentage = Percentage(float64(s.PassCount), float64(s.Count))
	s.Mean = round2(sum / float64(s.Count))
	return s
}
