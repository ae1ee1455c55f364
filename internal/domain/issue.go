package domain

import "time"

// IssueStatus enumerates dispute states.
type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "OPEN"
	IssueStatusInReview IssueStatus = "IN_REVIEW"
	IssueStatusResolved IssueStatus = "RESOLVED"
)

// IssuePriority enumerates staff triage urgency.
type IssuePriority string

const (
	IssuePriorityNormal IssuePriority = "NORMAL"
	IssuePriorityHigh   IssuePriority = "HIGH"
)

// Issue is a customer-filed dispute against an in-flight order. Resolution
// is terminal: a resolved issue rejects further resolution attempts.
type Issue struct {
	ID          string
	OrderID     string
	ReporterID  string
	Description string
	Priority    IssuePriority
	Status      IssueStatus
	Resolution  *string
	ResolverID  *string
	ResolvedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
