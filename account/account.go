package account

import "time"

// Account describes a platform user in the console
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex"` // User's email address
	Name         string    `json:"name"`
	Organization string    `json:"organization"` // Client organization the account belongs to
	IsAdmin      bool      `json:"isAdmin"`
	Suspended    bool      `json:"suspended"` // Suspended accounts are ineligible for new entitlements
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
