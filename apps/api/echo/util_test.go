package echoapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/daftari/apps/api/echo"
	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/person"
	blobsvc "github.com/trezcool/daftari/services/blob"
	"github.com/trezcool/daftari/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// fixture is a server over a bolt Env: instructor Grace teaches C101 where Ada is enrolled; Alan is not.
type fixture struct {
	env    *testutil.Env
	conf   *core.Config
	server *echoapi.Server
	course course.Course

	adaID  string
	alanID string

	admin      string
	instructor string
	ada        string
	alan       string
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:   "Daftari",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "secret",
		Server: core.ServerConfig{
			JWTExpirationDelta: 10 * time.Minute,
		},
	}
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	blob, err := blobsvc.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	conf := testConfig()
	server := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         env.Logger,
		DisableReqLogs: true,
		Blob:           blob,
		People:         env.People,
		Courses:        env.Courses,
		Attendance:     env.Attendance,
		Results:        env.Results,
		Assignments:    env.Assignments,
		Notices:        env.Notices,
		Audit:          env.Audit,
	})

	inst, instCaller := env.CreateInstructor(t, "Grace")
	c := env.CreateCourse(t, "C101", 4, inst.ID)
	ada, adaCaller := env.CreateEnrollee(t, "Ada")
	alan, alanCaller := env.CreateEnrollee(t, "Alan")
	env.Enroll(t, c.ID, ada.ID)

	return fixture{
		env:        env,
		conf:       conf,
		server:     server,
		course:     c,
		adaID:      ada.ID,
		alanID:     alan.ID,
		admin:      getToken(t, server, env.Admin),
		instructor: getToken(t, server, instCaller),
		ada:        getToken(t, server, adaCaller),
		alan:       getToken(t, server, alanCaller),
	}
}

func getToken(t *testing.T, server *echoapi.Server, caller access.Caller) string {
	token, err := server.IssueToken(person.Person{ID: caller.PersonID, Role: caller.Role})
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newUploadRequest(t *testing.T, path, token, filename, content string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func (fx fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	fx.server.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runTests(t *testing.T, fx fixture, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			fx.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
