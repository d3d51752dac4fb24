package person

import (
	"time"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
)

type (
	Person struct {
		ID        string      `json:"id" db:"id"`
		Name      string      `json:"name" db:"name"`
		Email     string      `json:"email" db:"email"`
		Role      access.Role `json:"role" db:"role"`
		Unit      string      `json:"unit" db:"unit"` // department or faculty
		CreatedAt time.Time   `json:"created_at" db:"created_at"`
		UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
	}

	// Enrollee is the profile of a person following courses.
	Enrollee struct {
		ID               string    `json:"id" db:"id"`
		PersonID         string    `json:"person_id" db:"person_id"`
		EnrollmentNumber string    `json:"enrollment_number" db:"enrollment_number"`
		Programme        string    `json:"programme" db:"programme"`
		Level            int       `json:"level" db:"level"`
		CreatedAt        time.Time `json:"created_at" db:"created_at"`
		Person           Person    `json:"person" db:"person"`
	}

	// Instructor is the profile of a person teaching courses.
	Instructor struct {
		ID          string    `json:"id" db:"id"`
		PersonID    string    `json:"person_id" db:"person_id"`
		EmployeeID  string    `json:"employee_id" db:"employee_id"`
		Designation string    `json:"designation" db:"designation"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
		Person      Person    `json:"person" db:"person"`
	}

	// Profile is a person with its role-specific profile, if any.
	Profile struct {
		Person     Person      `json:"person"`
		Enrollee   *Enrollee   `json:"enrollee,omitempty"`
		Instructor *Instructor `json:"instructor,omitempty"`
	}

	NewPerson struct {
		Name  string `json:"name" validate:"required,max=100"`
		Email string `json:"email" validate:"required,email,max=254"`
		Unit  string `json:"unit" validate:"max=100"`
	}

	NewEnrollee struct {
		NewPerson
		EnrollmentNumber string `json:"enrollment_number" validate:"required,alphanum,max=30"`
		Programme        string `json:"programme" validate:"required,max=100"`
		Level            int    `json:"level" validate:"required,min=1,max=12"`
	}

	NewInstructor struct {
		NewPerson
		EmployeeID  string `json:"employee_id" validate:"required,alphanum,max=30"`
		Designation string `json:"designation" validate:"max=100"`
	}

	EnrolleeFilter struct {
		IDs       []string
		Programme string
		Level     int
		Unit      string
	}

	InstructorFilter struct {
		IDs  []string
		Unit string
	}
)

func (np *NewPerson) clean() {
	np.Name = core.CleanString(np.Name)
	np.Email = core.CleanString(np.Email, true)
	np.Unit = core.CleanString(np.Unit)
}

func (np NewPerson) toPerson(id string, role access.Role, now time.Time) Person {
	return Person{
		ID:        id,
		Name:      np.Name,
		Email:     np.Email,
		Role:      role,
		Unit:      np.Unit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (ne *NewEnrollee) clean() {
	ne.NewPerson.clean()
	ne.EnrollmentNumber = core.CleanString(ne.EnrollmentNumber)
	ne.Programme = core.CleanString(ne.Programme)
}

func (ni *NewInstructor) clean() {
	ni.NewPerson.clean()
	ni.EmployeeID = core.CleanString(ni.EmployeeID)
	ni.Designation = core.CleanString(ni.Designation)
}

// Match reports whether e passes f.
func (f EnrolleeFilter) Match(e Enrollee) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, e.ID) {
		return false
	}
	if f.Programme != "" && e.Programme != f.Programme {
		return false
	}
	if f.Level != 0 && e.Level != f.Level {
		return false
	}
	if f.Unit != "" && e.Person.Unit != f.Unit {
		return false
	}
	return true
}

func (f InstructorFilter) Match(i Instructor) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, i.ID) {
		return false
	}
	if f.Unit != "" && i.Person.Unit != f.Unit {
		return false
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
