package models

// Workflow status ids shared by audits and forms. The values are persisted and
// exposed over the API, so they must not be renumbered.
const (
	StatusDraft    uint = 1
	StatusPending  uint = 2
	StatusRevising uint = 3
	StatusRejected uint = 4
	StatusApproved uint = 5
)

// Issue status ids.
const (
	IssueStatusOpen       uint = 1
	IssueStatusInProgress uint = 2
	IssueStatusResolved   uint = 3
	IssueStatusOverdue    uint = 4
)

// Corrective action status ids.
const (
	ActionStatusPending   uint = 1
	ActionStatusCompleted uint = 2
	ActionStatusVerified  uint = 3
)

// Status is the lookup row for workflow statuses.
type Status struct {
	ID   uint   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name string `json:"name" gorm:"uniqueIndex"`
}

var statusNames = map[uint]string{
	StatusDraft:    "Draft",
	StatusPending:  "Pending",
	StatusRevising: "Revising",
	StatusRejected: "Rejected",
	StatusApproved: "Approved",
}

var issueStatusNames = map[uint]string{
	IssueStatusOpen:       "Open",
	IssueStatusInProgress: "In Progress",
	IssueStatusResolved:   "Resolved",
	IssueStatusOverdue:    "Overdue",
}

var actionStatusNames = map[uint]string{
	ActionStatusPending:   "Pending",
	ActionStatusCompleted: "Completed",
	ActionStatusVerified:  "Verified",
}

// DefaultStatuses returns the rows seeded into the statuses table.
func DefaultStatuses() []Status {
	return []Status{
		{ID: StatusDraft, Name: statusNames[StatusDraft]},
		{ID: StatusPending, Name: statusNames[StatusPending]},
		{ID: StatusRevising, Name: statusNames[StatusRevising]},
		{ID: StatusRejected, Name: statusNames[StatusRejected]},
		{ID: StatusApproved, Name: statusNames[StatusApproved]},
	}
}

// StatusName returns the audit-level display name for a status id.
func StatusName(id uint) string {
	if name, ok := statusNames[id]; ok {
		return name
	}
	return "Unknown"
}

// FormStatusName is StatusName except that a draft form reads "Not Submitted".
func FormStatusName(id uint) string {
	if id == StatusDraft {
		return "Not Submitted"
	}
	return StatusName(id)
}

// IssueStatusName returns the display name for an issue status id.
func IssueStatusName(id uint) string {
	if name, ok := issueStatusNames[id]; ok {
		return name
	}
	return "Unknown"
}

// ActionStatusName returns the display name for a corrective action status id.
func ActionStatusName(id uint) string {
	if name, ok := actionStatusNames[id]; ok {
		return name
	}
	return "Unknown"
}

// ReviewerSettable reports whether a manager or admin may move an entity into
// the given status. Draft and Revising belong to the outlet.
func ReviewerSettable(id uint) bool {
	return id == StatusPending || id == StatusApproved || id == StatusRejected
}

// ReviewerEligible reports whether an entity currently in the given status may
// be changed by a manager or admin at all.
func ReviewerEligible(current uint) bool {
	return current != StatusDraft && current != StatusRevising
}
