package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeFor(t *testing.T) {
	tests := []struct {
		total float64
		want  Grade
	}{
		{100, GradeAPlus},
		{90, GradeAPlus},
		{89.99, GradeA},
		{80, GradeA},
		{79, GradeBPlus},
		{70, GradeBPlus},
		{60, GradeB},
		{59.5, GradeCPlus},
		{50, GradeCPlus},
		{40, GradeC},
		{39, GradeD},
		{33, GradeD},
		{32.99, GradeF},
		{0, GradeF},
	}
	for _, tt := range tests {
		if got := GradeFor(tt.total); got != tt.want {
			t.Errorf("GradeFor(%v) = %v, want %v", tt.total, got, tt.want)
		}
	}
}

func TestGradeFor_Monotonic(t *testing.T) {
	prev := GradePoint(GradeFor(0))
	for internal := 0.0; internal <= MaxInternal; internal += 0.5 {
		for external := 0.0; external <= MaxExternal; external += 7.5 {
			total := Total(internal, external)
			if GradeFor(total) != GradeFor(internal+external) {
				t.Fatalf("grade depends on more than the total at (%v, %v)", internal, external)
			}
		}
	}
	for total := 0.0; total <= MaxTotal; total += 0.25 {
		p := GradePoint(GradeFor(total))
		if p < prev {
			t.Fatalf("GradeFor is not monotonic at %v", total)
		}
		prev = p
	}
}

func TestGradePoint(t *testing.T) {
	want := map[Grade]float64{
		GradeAPlus: 10, GradeA: 9, GradeBPlus: 8, GradeB: 7,
		GradeCPlus: 6, GradeC: 5, GradeD: 4, GradeF: 0, Grade("Z"): 0,
	}
	for g, p := range want {
		assert.Equal(t, p, GradePoint(g), "GradePoint(%s)", g)
	}
	assert.True(t, GradeF.Valid())
	assert.False(t, Grade("Z").Valid())
	assert.False(t, GradeF.Passed())
	assert.True(t, GradeD.Passed())
}

func TestSummarizeAttendance(t *testing.T) {
	isTrue := func(b bool) bool { return b }

	tests := []struct {
		name  string
		marks []bool
		want  AttendanceSummary
	}{
		{name: "empty", marks: nil, want: AttendanceSummary{}},
		{name: "all present", marks: []bool{true, true}, want: AttendanceSummary{Total: 2, Present: 2, Percentage: 100}},
		{name: "thirds", marks: []bool{true, false, false}, want: AttendanceSummary{Total: 3, Present: 1, Absent: 2, Percentage: 33.33}},
		{name: "two thirds", marks: []bool{true, true, false}, want: AttendanceSummary{Total: 3, Present: 2, Absent: 1, Percentage: 66.67}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummarizeAttendance(tt.marks, isTrue)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Total, got.Present+got.Absent)
		})
	}
}

func TestSGPA(t *testing.T) {
	tests := []struct {
		name    string
		results []Weighted
		want    float64
	}{
		{name: "no results", want: 0},
		{name: "zero credits", results: []Weighted{{GradeA, 0}}, want: 0},
		{name: "single A on 4 credits", results: []Weighted{{GradeA, 4}}, want: 9},
		{name: "weighted", results: []Weighted{{GradeAPlus, 4}, {GradeC, 2}}, want: 8.33},
		{name: "fail counts", results: []Weighted{{GradeF, 3}, {GradeAPlus, 3}}, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SGPA(tt.results); got != tt.want {
				t.Errorf("SGPA() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummarizeResults(t *testing.T) {
	// 35 + 50 on a 4 credit course
	s := SummarizeResults([]Scored{{Total: 85, Grade: GradeFor(85)}}, []float64{4})
	assert.Equal(t, ResultSummary{SGPA: 9, Percentage: 85, TotalSubjects: 1, MarksObtained: 85, MaxMarks: 100}, s)

	s = SummarizeResults([]Scored{{Total: 95, Grade: GradeAPlus}, {Total: 45, Grade: GradeC}}, nil)
	assert.Equal(t, 7.5, s.SGPA) // both default to 3 credits
	assert.Equal(t, 70.0, s.Percentage)
	assert.Equal(t, 200.0, s.MaxMarks)

	assert.Equal(t, ResultSummary{}, SummarizeResults(nil, nil))
}

func TestComputeClassStats(t *testing.T) {
	assert.Equal(t, ClassStats{}, ComputeClassStats(nil))

	results := []Scored{
		{Total: 85, Grade: GradeA},
		{Total: 20, Grade: GradeF},
		{Total: 60, Grade: GradeB},
	}
	got := ComputeClassStats(results)
	want := ClassStats{
		Count:          3,
		PassCount:      2,
		FailCount:      1,
		PassPercentage: 66.67,
		Mean:           55,
		Min:            20,
		Max:            85,
	}
	assert.Equal(t, want, got)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(5, 0))
	assert.Equal(t, 12.5, Percentage(1, 8))
}
