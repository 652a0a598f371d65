package activation

import "time"

// Status is the custom type to define the resolution state of an ActivationRequest
type Status string

// Defining the request statuses. Approved and Rejected are terminal:
// a resolved request is never re-resolved
const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ActivationRequest describes a user-submitted, admin-resolved request to
// obtain a Subscription for one Service
type ActivationRequest struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	UserID          string     `json:"userId" gorm:"index:idx_request_user_service"`
	ServiceID       string     `json:"serviceId" gorm:"index:idx_request_user_service"`
	Status          Status     `json:"status" gorm:"index"`
	RequestedAt     time.Time  `json:"requestedAt"`
	ResolvedAt      *time.Time `json:"resolvedAt"`
	ResolvedBy      string     `json:"resolvedBy"` // Administrator who resolved the request
	RejectionReason string     `json:"rejectionReason"`
}
