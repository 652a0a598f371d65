package subscription

import "time"

// Subscription describes a user's entitlement record for one Service in the catalog.
// There is at most one Subscription per (UserID, ServiceID) pair.
// Cancellation is a status, not a deletion: rows are never removed
type Subscription struct {
	ID                   string        `json:"id" gorm:"primaryKey"`
	UserID               string        `json:"userId" gorm:"index:idx_user_service,unique"`
	ServiceID            string        `json:"serviceId" gorm:"index:idx_user_service,unique"`
	Status               Status        `json:"status" gorm:"index"`
	SetupFeePaid         bool          `json:"setupFeePaid"`         // Recorded by the billing collaborator
	MonthlyBillingActive bool          `json:"monthlyBillingActive"` // May only be set once the setup fee is paid
	Configuration        Configuration `json:"configuration"`        // Service-specific settings, validated against the service type
	ActivatedAt          *time.Time    `json:"activatedAt"`          // Stamped on first activation
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}
