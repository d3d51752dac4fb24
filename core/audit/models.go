package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
)

type Action string

const (
	ActionCreateEnrollee     Action = "CREATE_ENROLLEE"
	ActionDeleteEnrollee     Action = "DELETE_ENROLLEE"
	ActionCreateInstructor   Action = "CREATE_INSTRUCTOR"
	ActionDeleteInstructor   Action = "DELETE_INSTRUCTOR"
	ActionCreateAdmin        Action = "CREATE_ADMIN"
	ActionCreateCourse       Action = "CREATE_COURSE"
	ActionAssignInstructor   Action = "ASSIGN_INSTRUCTOR"
	ActionEnroll             Action = "ENROLL"
	ActionUnenroll           Action = "UNENROLL"
	ActionDeleteCourse       Action = "DELETE_COURSE"
	ActionMarkAttendance     Action = "MARK_ATTENDANCE"
	ActionBulkMarkAttendance Action = "BULK_MARK_ATTENDANCE"
	ActionUpdateAttendance   Action = "UPDATE_ATTENDANCE"
	ActionDeleteAttendance   Action = "DELETE_ATTENDANCE"
	ActionAddMarks           Action = "ADD_MARKS"
	ActionBulkAddMarks       Action = "BULK_ADD_MARKS"
	ActionUpdateMarks        Action = "UPDATE_MARKS"
	ActionDeleteMarks        Action = "DELETE_MARKS"
	ActionCreateAssignment   Action = "CREATE_ASSIGNMENT"
	ActionUpdateAssignment   Action = "UPDATE_ASSIGNMENT"
	ActionDeleteAssignment   Action = "DELETE_ASSIGNMENT"
	ActionSubmitAssignment   Action = "SUBMIT_ASSIGNMENT"
	ActionGradeSubmission    Action = "GRADE_SUBMISSION"
	ActionSendNotice         Action = "SEND_NOTIFICATION"
	ActionDeleteNotice       Action = "DELETE_NOTIFICATION"
	ActionReadNotice         Action = "READ_NOTIFICATION"
	ActionReadAllNotices     Action = "READ_ALL_NOTIFICATIONS"
	ActionPruneAudit         Action = "PRUNE_AUDIT"
)

var actions = map[Action]struct{}{
	ActionCreateEnrollee: {}, ActionDeleteEnrollee: {}, ActionCreateInstructor: {}, ActionDeleteInstructor: {},
	ActionCreateAdmin: {}, ActionCreateCourse: {}, ActionAssignInstructor: {}, ActionEnroll: {}, ActionUnenroll: {},
	ActionDeleteCourse: {}, ActionMarkAttendance: {}, ActionBulkMarkAttendance: {}, ActionUpdateAttendance: {},
	ActionDeleteAttendance: {}, ActionAddMarks: {}, ActionBulkAddMarks: {}, ActionUpdateMarks: {},
	ActionDeleteMarks: {}, ActionCreateAssignment: {}, ActionUpdateAssignment: {}, ActionDeleteAssignment: {},
	ActionSubmitAssignment: {}, ActionGradeSubmission: {}, ActionSendNotice: {}, ActionDeleteNotice: {},
	ActionReadNotice: {}, ActionReadAllNotices: {}, ActionPruneAudit: {},
}

func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

type TargetKind string

const (
	TargetPerson     TargetKind = "Person"
	TargetEnrollee   TargetKind = "Enrollee"
	TargetInstructor TargetKind = "Instructor"
	TargetCourse     TargetKind = "Course"
	TargetAttendance TargetKind = "Attendance"
	TargetResult     TargetKind = "Result"
	TargetAssignment TargetKind = "Assignment"
	TargetSubmission TargetKind = "Submission"
	TargetNotice     TargetKind = "Notice"
	TargetAudit      TargetKind = "AuditEntry"
)

func (k TargetKind) Valid() bool {
	switch k {
	case TargetPerson, TargetEnrollee, TargetInstructor, TargetCourse, TargetAttendance,
		TargetResult, TargetAssignment, TargetSubmission, TargetNotice, TargetAudit:
		return true
	}
	return false
}

// Entry is an immutable trace of one mutating action.
type Entry struct {
	ID         string                 `json:"id" bson:"_id"`
	Action     Action                 `json:"action" bson:"action"`
	ActorID    string                 `json:"actor_id" bson:"actorId"`
	ActorRole  access.Role            `json:"actor_role" bson:"actorRole"`
	TargetKind TargetKind             `json:"target_kind" bson:"targetKind"`
	TargetID   string                 `json:"target_id" bson:"targetId"`
	Summary    string                 `json:"summary" bson:"summary"`
	Details    map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
	Origin     string                 `json:"origin,omitempty" bson:"origin,omitempty"`
	CreatedAt  time.Time              `json:"created_at" bson:"createdAt"`
}

// Details is shorthand for entry details.
type Details = map[string]interface{}

// NewEntry describes an action performed by caller.
func NewEntry(caller access.Caller, action Action, kind TargetKind, targetID, summary string, details Details) Entry {
	return Entry{
		ID:         uuid.New().String(),
		Action:     action,
		ActorID:    caller.PersonID,
		ActorRole:  caller.Role,
		TargetKind: kind,
		TargetID:   targetID,
		Summary:    summary,
		Details:    details,
		Origin:     caller.Origin,
		CreatedAt:  NowFunc().UTC(),
	}
}

// Filter narrows audit listings; zero fields match everything.
type Filter struct {
	Action     Action
	TargetKind TargetKind
	ActorID    string
	Since      time.Time
	Until      time.Time
	Ordering   core.DBOrdering
}

// Orderable entry fields.
const (
	OrderCreatedAt = "created_at"
	OrderAction    = "action"
)

func (f *Filter) clean() error {
	f.ActorID = core.CleanString(f.ActorID)
	if f.Action != "" && !f.Action.Valid() {
		return core.NewFieldError("action", "unknown action")
	}
	if f.TargetKind != "" && !f.TargetKind.Valid() {
		return core.NewFieldError("target_kind", "unknown target kind")
	}
	switch f.Ordering.Field {
	case "":
		f.Ordering = core.DBOrdering{Field: OrderCreatedAt}
	case OrderCreatedAt, OrderAction:
	default:
		return core.NewFieldError("ordering", "can only order by created_at or action")
	}
	return nil
}

// Match reports whether e passes f. Used by stores that filter in memory.
func (f Filter) Match(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.TargetKind != "" && e.TargetKind != f.TargetKind {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

// GroupBy is an entry field that can be counted over.
type GroupBy string

const (
	GroupByAction GroupBy = "action"
	GroupByTarget GroupBy = "target_kind"
)

type Count struct {
	Key   string `json:"key" bson:"_id"`
	Count int    `json:"count" bson:"count"`
}

type Stats struct {
	Total       int     `json:"total"`
	Last24Hours int     `json:"last_24_hours"`
	ByAction    []Count `json:"by_action"`
	ByTarget    []Count `json:"by_target"`
}

type EntryPage struct {
	Entries    []Entry `json:"entries"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"total_pages"`
}
