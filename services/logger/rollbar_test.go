package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST", TestMode: true})

	caller := access.Caller{PersonID: "p1", Role: access.RoleInstructor, Origin: "10.0.0.7"}
	args := logger.prepare("writing audit entry", []interface{}{errors.New("boom"), caller, access.Caller{PersonID: "p2"}})
	require.Len(t, args, 3, "callers are attached as the rollbar person, not logged")
	assert.Equal(t, map[string]interface{}{"kind": "internal", "origin": "10.0.0.7"}, args[2])

	args = logger.prepare("course not found", []interface{}{core.NewNotFoundError("course not found"), map[string]interface{}{"course_id": "c1"}})
	require.Len(t, args, 3)
	assert.Equal(t, map[string]interface{}{"kind": "not_found", "course_id": "c1"}, args[2])

	logger.Warn("audit queue full", map[string]interface{}{"action": "ADD_MARKS"})
	assert.Contains(t, buf.String(), "[WARN] audit queue full")
	assert.Contains(t, buf.String(), "ADD_MARKS")
}
