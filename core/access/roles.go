package access

import (
	"fmt"

	"github.com/trezcool/daftari/core"
)

// Role is the closed set of actor kinds.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleEnrollee   Role = "enrollee"
)

// Roles lists every valid Role.
var Roles = []Role{RoleAdmin, RoleInstructor, RoleEnrollee}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleEnrollee:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true))
	if !r.Valid() {
		return "", core.NewFieldError("role", fmt.Sprintf("unknown role %q", s))
	}
	return r, nil
}

// Caller is the authenticated identity behind an operation.
// Origin is the remote address the request came from, kept for audit entries.
type Caller struct {
	PersonID string `json:"person_id"`
	Role     Role   `json:"role"`
	Origin   string `json:"origin,omitempty"`
}

// SystemPersonID identifies operations run by trusted tooling rather than a person.
const SystemPersonID = "system"

// System returns the administrator identity used by CLI tooling and scheduled jobs.
func System(origin string) Caller {
	return Caller{PersonID: SystemPersonID, Role: RoleAdmin, Origin: origin}
}

func (c Caller) IsAdmin() bool      { return c.Role == RoleAdmin }
func (c Caller) IsInstructor() bool { return c.Role == RoleInstructor }
func (c Caller) IsEnrollee() bool   { return c.Role == RoleEnrollee }

func (c Caller) String() string {
	return fmt.Sprintf("%s:%s", c.Role, c.PersonID)
}
