package echoapi_test

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/daftari/apps/api/echo"
	"github.com/trezcool/daftari/core/assignment"
	"github.com/trezcool/daftari/core/attendance"
	"github.com/trezcool/daftari/core/audit"
	"github.com/trezcool/daftari/core/notice"
	"github.com/trezcool/daftari/core/person"
	"github.com/trezcool/daftari/core/record"
)

func TestServer_Authentication(t *testing.T) {
	fx := setup(t)

	forged := func(role string, key string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  "someone",
			"role": role,
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		ss, err := token.SignedString([]byte(key))
		require.NoError(t, err)
		return ss
	}

	runTests(t, fx, []httpTest{
		{name: "home is public", method: http.MethodGet, path: "/", wantCode: http.StatusOK},
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/me",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{name: "wrong key", method: http.MethodGet, path: "/v1/me", token: forged("admin", "nope"), wantCode: http.StatusUnauthorized},
		{name: "unknown role", method: http.MethodGet, path: "/v1/me", token: forged("janitor", "secret"), wantCode: http.StatusUnauthorized},
		{name: "valid token", method: http.MethodGet, path: "/v1/me", token: fx.ada, wantCode: http.StatusOK},
	})
}

func TestPersonAPI(t *testing.T) {
	fx := setup(t)

	newEnrollee := func(email, number string) []byte {
		return marshallObj(t, person.NewEnrollee{
			NewPerson:        person.NewPerson{Name: "Barbara", Email: email},
			EnrollmentNumber: number,
			Programme:        "BSc",
			Level:            2,
		})
	}

	runTests(t, fx, []httpTest{
		{name: "create", method: http.MethodPost, path: "/v1/enrollees", token: fx.admin, body: newEnrollee("barbara@daftari.test", "EN77"), wantCode: http.StatusCreated},
		{name: "email taken", method: http.MethodPost, path: "/v1/enrollees", token: fx.admin, body: newEnrollee("ada@daftari.test", "EN78"), wantCode: http.StatusConflict},
		{
			name:     "invalid email",
			method:   http.MethodPost,
			path:     "/v1/enrollees",
			token:    fx.admin,
			body:     newEnrollee("not-an-email", "EN79"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "email must be a valid email address"}`),
		},
		{name: "malformed body", method: http.MethodPost, path: "/v1/enrollees", token: fx.admin, body: []byte(`{"name":`), wantCode: http.StatusBadRequest},
		{name: "instructor may not create", method: http.MethodPost, path: "/v1/enrollees", token: fx.instructor, body: newEnrollee("x@daftari.test", "EN80"), wantCode: http.StatusForbidden},
		{name: "enrollee may not list", method: http.MethodGet, path: "/v1/enrollees", token: fx.ada, wantCode: http.StatusForbidden},
		{name: "instructor reads own enrollee", method: http.MethodGet, path: "/v1/enrollees/" + fx.adaID, token: fx.instructor, wantCode: http.StatusOK},
		{name: "instructor cannot see outsider", method: http.MethodGet, path: "/v1/enrollees/" + fx.alanID, token: fx.instructor, wantCode: http.StatusNotFound},
	})

	rec := fx.do(http.MethodGet, "/v1/enrollees?level=2", fx.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var enrollees []person.Enrollee
	unmarshall(t, rec, &enrollees)
	require.Len(t, enrollees, 1)
	assert.Equal(t, "EN77", enrollees[0].EnrollmentNumber)

	rec = fx.do(http.MethodGet, "/v1/enrollees?level=two", fx.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceAPI(t *testing.T) {
	fx := setup(t)
	mark := func(enrolleeID, status string) []byte {
		return marshallObj(t, echoapi.MarkRequest{
			EnrolleeID: enrolleeID, CourseID: fx.course.ID, Date: "2026-03-02", Status: attendance.Status(status),
		})
	}

	runTests(t, fx, []httpTest{
		{name: "mark", method: http.MethodPost, path: "/v1/attendance", token: fx.instructor, body: mark(fx.adaID, "Present"), wantCode: http.StatusCreated},
		{name: "mark twice", method: http.MethodPost, path: "/v1/attendance", token: fx.instructor, body: mark(fx.adaID, "Absent"), wantCode: http.StatusConflict},
		{name: "not enrolled", method: http.MethodPost, path: "/v1/attendance", token: fx.instructor, body: mark(fx.alanID, "Present"), wantCode: http.StatusBadRequest},
		{name: "enrollee cannot mark", method: http.MethodPost, path: "/v1/attendance", token: fx.ada, body: mark(fx.adaID, "Present"), wantCode: http.StatusForbidden},
		{
			name:     "bad date",
			method:   http.MethodPost,
			path:     "/v1/attendance",
			token:    fx.instructor,
			body:     marshallObj(t, echoapi.MarkRequest{EnrolleeID: fx.adaID, CourseID: fx.course.ID, Date: "02/03/2026", Status: "Present"}),
			wantCode: http.StatusBadRequest,
		},
	})

	// bulk upserts over the existing fact and reports the outsider
	rec := fx.do(http.MethodPost, "/v1/courses/"+fx.course.ID+"/attendance", fx.instructor, marshallObj(t, echoapi.BulkMarkRequest{
		Date: "2026-03-02",
		Entries: []attendance.BulkEntry{
			{EnrolleeID: fx.adaID, Status: attendance.StatusAbsent},
			{EnrolleeID: fx.alanID, Status: attendance.StatusPresent},
		},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res record.BulkResult
	unmarshall(t, rec, &res)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, fx.alanID, res.Failed[0].Key)
	assert.Equal(t, "validation", res.Failed[0].Kind)

	rec = fx.do(http.MethodGet, "/v1/me/attendance", fx.ada)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report attendance.Report
	unmarshall(t, rec, &report)
	require.Len(t, report.Facts, 1)
	assert.Equal(t, attendance.StatusAbsent, report.Facts[0].Status)
	assert.Equal(t, 1, report.Summary.Absent)

	rec = fx.do(http.MethodGet, "/v1/enrollees/"+fx.adaID+"/attendance?from=2026-03-03", fx.instructor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshall(t, rec, &report)
	assert.Empty(t, report.Facts)

	rec = fx.do(http.MethodGet, "/v1/enrollees/"+fx.adaID+"/attendance", fx.alan)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestResultAPI(t *testing.T) {
	fx := setup(t)
	body := []byte(fmt.Sprintf(`{"enrollee_id": %q, "course_id": %q, "internal": 35, "external": 50}`, fx.adaID, fx.course.ID))

	rec := fx.do(http.MethodPost, "/v1/results", fx.instructor, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID    string  `json:"id"`
		Total float64 `json:"total"`
		Grade string  `json:"grade"`
	}
	unmarshall(t, rec, &created)
	assert.Equal(t, 85.0, created.Total)

	runTests(t, fx, []httpTest{
		{name: "duplicate", method: http.MethodPost, path: "/v1/results", token: fx.instructor, body: body, wantCode: http.StatusConflict},
		{name: "update", method: http.MethodPatch, path: "/v1/results/" + created.ID, token: fx.instructor, body: []byte(`{"external": 60}`), wantCode: http.StatusOK},
		{name: "out of range", method: http.MethodPatch, path: "/v1/results/" + created.ID, token: fx.instructor, body: []byte(`{"internal": 41}`), wantCode: http.StatusBadRequest},
		{name: "hidden from outsider", method: http.MethodGet, path: "/v1/results/" + created.ID, token: fx.alan, wantCode: http.StatusNotFound},
		{name: "own result", method: http.MethodGet, path: "/v1/results/" + created.ID, token: fx.ada, wantCode: http.StatusOK},
		{name: "course stats", method: http.MethodGet, path: "/v1/courses/" + fx.course.ID + "/results", token: fx.instructor, wantCode: http.StatusOK},
	})

	runTests(t, fx, []httpTest{
		{name: "admin has no own results", method: http.MethodGet, path: "/v1/me/results", token: fx.admin, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"enrollee_id": "this field is required"}`)},
		{name: "instructor has no own attendance", method: http.MethodGet, path: "/v1/me/attendance", token: fx.instructor, wantCode: http.StatusBadRequest},
	})

	rec = fx.do(http.MethodPost, "/v1/courses/"+fx.course.ID+"/results", fx.admin, []byte(fmt.Sprintf(
		`[{"enrollee_id": %q, "internal": 20, "external": 20}, {"enrollee_id": %q, "internal": 20, "external": 20}]`,
		fx.adaID, fx.alanID,
	)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res record.BulkResult
	unmarshall(t, rec, &res)
	assert.Zero(t, res.Applied)
	assert.Len(t, res.Failed, 2, "one duplicate, one not enrolled")
}

func TestAssignmentAPI_Submissions(t *testing.T) {
	fx := setup(t)

	rec := fx.do(http.MethodPost, "/v1/tasks", fx.instructor, marshallObj(t, assignment.NewTask{
		CourseID: fx.course.ID,
		Title:    "Lab 1",
		DueAt:    time.Now().Add(24 * time.Hour),
		MaxScore: 20,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task assignment.Task
	unmarshall(t, rec, &task)

	req, rec := newUploadRequest(t, "/v1/tasks/"+task.ID+"/submissions", fx.ada, "lab1.txt", "my answers")
	fx.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub assignment.Submission
	unmarshall(t, rec, &sub)
	assert.True(t, strings.HasPrefix(sub.DocumentHandle, "local://"), sub.DocumentHandle)
	assert.False(t, sub.Late)
	assert.Equal(t, assignment.StatusSubmitted, sub.Status)

	req, rec = newUploadRequest(t, "/v1/tasks/"+task.ID+"/submissions", fx.ada, "lab1-v2.txt", "better answers")
	fx.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = fx.do(http.MethodGet, "/v1/submissions/"+sub.ID+"/document", fx.instructor)
	require.Equal(t, http.StatusOK, rec.Code)
	content, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "my answers", string(content))

	runTests(t, fx, []httpTest{
		{name: "outsider cannot submit", method: http.MethodPost, path: "/v1/tasks/" + task.ID + "/submissions", token: fx.alan, body: []byte(`{"document_handle": "local://x.txt"}`), wantCode: http.StatusNotFound},
		{name: "no document", method: http.MethodPost, path: "/v1/tasks/" + task.ID + "/submissions", token: fx.alan, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "outsider cannot download", method: http.MethodGet, path: "/v1/submissions/" + sub.ID + "/document", token: fx.alan, wantCode: http.StatusNotFound},
		{name: "task has no document", method: http.MethodGet, path: "/v1/tasks/" + task.ID + "/document", token: fx.ada, wantCode: http.StatusNotFound},
		{name: "grade above max", method: http.MethodPut, path: "/v1/submissions/" + sub.ID + "/grade", token: fx.instructor, body: []byte(`{"score": 21}`), wantCode: http.StatusBadRequest},
		{name: "grade", method: http.MethodPut, path: "/v1/submissions/" + sub.ID + "/grade", token: fx.instructor, body: []byte(`{"score": 18, "feedback": "good"}`), wantCode: http.StatusOK},
		{name: "enrollee cannot grade", method: http.MethodPut, path: "/v1/submissions/" + sub.ID + "/grade", token: fx.ada, body: []byte(`{"score": 20}`), wantCode: http.StatusNotFound},
	})

	rec = fx.do(http.MethodGet, "/v1/me/submissions", fx.ada)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []assignment.Submission
	unmarshall(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, assignment.StatusGraded, mine[0].Status)
	assert.Equal(t, 18.0, mine[0].Score.Float64)
}

func TestNoticeAPI(t *testing.T) {
	fx := setup(t)

	rec := fx.do(http.MethodPost, "/v1/notices", fx.instructor, marshallObj(t, notice.NewNotice{
		Scope: notice.ScopeCourse, CourseID: fx.course.ID, Title: "Quiz", Body: "Friday",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var quiz notice.Notice
	unmarshall(t, rec, &quiz)

	runTests(t, fx, []httpTest{
		{name: "instructor cannot broadcast", method: http.MethodPost, path: "/v1/notices", token: fx.instructor, body: []byte(`{"scope": "everyone", "title": "t", "body": "b"}`), wantCode: http.StatusForbidden},
		{name: "unread", method: http.MethodGet, path: "/v1/notices/unread-count", token: fx.ada, wantCode: http.StatusOK, wantData: []byte(`{"count": 1}`)},
		{name: "outsider cannot read", method: http.MethodPost, path: "/v1/notices/" + quiz.ID + "/read", token: fx.alan, wantCode: http.StatusNotFound},
		{name: "read", method: http.MethodPost, path: "/v1/notices/" + quiz.ID + "/read", token: fx.ada, wantCode: http.StatusNoContent},
		{name: "read again", method: http.MethodPost, path: "/v1/notices/" + quiz.ID + "/read", token: fx.ada, wantCode: http.StatusNoContent},
		{name: "all read", method: http.MethodGet, path: "/v1/notices/unread-count", token: fx.ada, wantCode: http.StatusOK, wantData: []byte(`{"count": 0}`)},
		{name: "nothing left to mark", method: http.MethodPost, path: "/v1/notices/read", token: fx.ada, wantCode: http.StatusOK, wantData: []byte(`{"count": 0}`)},
		{name: "staff has no inbox", method: http.MethodGet, path: "/v1/notices", token: fx.instructor, wantCode: http.StatusForbidden},
	})

	rec = fx.do(http.MethodGet, "/v1/notices", fx.ada)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox notice.Inbox
	unmarshall(t, rec, &inbox)
	require.Len(t, inbox.Notices, 1)
	assert.True(t, inbox.Notices[0].IsRead)

	rec = fx.do(http.MethodGet, "/v1/notices/sent", fx.instructor)
	require.Equal(t, http.StatusOK, rec.Code)
	var sent []notice.Sent
	unmarshall(t, rec, &sent)
	require.Len(t, sent, 1)
	assert.Equal(t, 1, sent[0].Readers)
}

func TestAuditAPI(t *testing.T) {
	fx := setup(t)

	runTests(t, fx, []httpTest{
		{name: "enrollee", method: http.MethodGet, path: "/v1/audit", token: fx.ada, wantCode: http.StatusForbidden},
		{name: "bad ordering", method: http.MethodGet, path: "/v1/audit?ordering=summary", token: fx.admin, wantCode: http.StatusBadRequest},
		{name: "prune needs a date", method: http.MethodDelete, path: "/v1/audit", token: fx.admin, wantCode: http.StatusBadRequest},
	})

	rec := fx.do(http.MethodGet, "/v1/audit?action=CREATE_COURSE&ordering=-created_at&limit=5", fx.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page audit.EntryPage
	unmarshall(t, rec, &page)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, audit.ActionCreateCourse, page.Entries[0].Action)

	rec = fx.do(http.MethodGet, "/v1/audit/"+page.Entries[0].ID, fx.admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(http.MethodGet, "/v1/audit/stats", fx.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats audit.Stats
	unmarshall(t, rec, &stats)
	assert.Equal(t, page.Total+4, stats.Total, "instructor, course, two enrollees and one enrollment")
}
