package model

import "time"

// ResolutionStatus is the lifecycle state of a quarantine record.
type ResolutionStatus string

// Resolution status constants. PENDING transitions exactly once to either
// APPROVED or REJECTED; both are terminal.
const (
	ResolutionPending  ResolutionStatus = "PENDING"
	ResolutionApproved ResolutionStatus = "APPROVED"
	ResolutionRejected ResolutionStatus = "REJECTED"
)

// Correction is the optional category override supplied on approval.
type Correction struct {
	Category    string
	SubCategory string
}

// QuarantineRecord holds a low-confidence event pending human resolution.
type QuarantineRecord struct {
	CreatedAt  time.Time
	ResolvedAt *time.Time
	Correction *Correction
	ID         string
	TenantID   string
	EventID    string
	Reason     string
	Resolution ResolutionStatus
	RetryCount int
}

// Resolved reports whether the record has reached a terminal state.
func (q *QuarantineRecord) Resolved() bool {
	return q.Resolution != ResolutionPending
}
