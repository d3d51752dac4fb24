package notice

import (
	"time"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
)

type Scope string

const (
	ScopeEveryone Scope = "everyone"
	ScopeCourse   Scope = "course"
)

func (s Scope) Valid() bool {
	return s == ScopeEveryone || s == ScopeCourse
}

type (
	// Notice is stored once for all its readers. ReadBy is the set of enrollee ids that have read it.
	Notice struct {
		ID         string      `json:"id" bson:"_id"`
		AuthorID   string      `json:"author_id" bson:"authorId"`
		AuthorRole access.Role `json:"author_role" bson:"authorRole"`
		Scope      Scope       `json:"scope" bson:"scope"`
		CourseID   string      `json:"course_id,omitempty" bson:"courseId,omitempty"`
		Title      string      `json:"title" bson:"title"`
		Body       string      `json:"body" bson:"body"`
		ReadBy     []string    `json:"-" bson:"readBy"`
		CreatedAt  time.Time   `json:"created_at" bson:"createdAt"`
	}

	// View is a notice as seen by one enrollee.
	View struct {
		Notice
		IsRead bool `json:"is_read"`
	}

	Inbox struct {
		Notices []View `json:"notices"`
		Unread  int    `json:"unread"`
	}

	// Sent is a notice as seen by its author.
	Sent struct {
		Notice
		Readers int `json:"readers"`
	}

	NewNotice struct {
		Scope    Scope  `json:"scope" validate:"required,oneof=everyone course"`
		CourseID string `json:"course_id" validate:"required_if=Scope course"`
		Title    string `json:"title" validate:"required,max=200"`
		Body     string `json:"body" validate:"required,max=10000"`
	}
)

// ReadByEnrollee reports whether enrolleeID is in the read-set.
func (n Notice) ReadByEnrollee(enrolleeID string) bool {
	for _, id := range n.ReadBy {
		if id == enrolleeID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether an enrollee following courseIDs sees n.
func (n Notice) VisibleTo(courseIDs []string) bool {
	if n.Scope == ScopeEveryone {
		return true
	}
	for _, id := range courseIDs {
		if id == n.CourseID {
			return true
		}
	}
	return false
}

func (nn *NewNotice) clean() {
	nn.CourseID = core.CleanString(nn.CourseID)
	nn.Title = core.CleanString(nn.Title)
	nn.Body = core.CleanString(nn.Body)
	if nn.Scope == ScopeEveryone {
		nn.CourseID = ""
	}
}
