package catalog

import "time"

// ServiceType is the custom type to define what kind of messaging product a Service is
type ServiceType string

// Defining the purchasable service types on the platform
const (
	TypeSMS         ServiceType = "sms"
	TypeUSSD        ServiceType = "ussd"
	TypeShortCode   ServiceType = "shortcode"
	TypeMpesa       ServiceType = "mpesa"
	TypeWhatsApp    ServiceType = "whatsapp"
	TypeSurvey      ServiceType = "survey"
	TypeServiceDesk ServiceType = "servicedesk"
	TypeRewards     ServiceType = "rewards"
)

// Valid reports if the ServiceType is one of the defined types
func (t ServiceType) Valid() bool {
	switch t {
	case TypeSMS, TypeUSSD, TypeShortCode, TypeMpesa, TypeWhatsApp, TypeSurvey, TypeServiceDesk, TypeRewards:
		return true
	default:
		return false
	}
}

// FeeKind is the custom type to define how the per-transaction fee of a Service applies
type FeeKind string

// Defining constants
const (
	FeeNone       FeeKind = "none"
	FeeFixed      FeeKind = "fixed"
	FeePercentage FeeKind = "percentage"
)

// Money describes an amount in the smallest unit of its currency
type Money struct {
	AmountInCents int64  `json:"amountInCents"`
	Currency      string `json:"currency"` // The ISO currency code (e.g. kes, usd)
}

// TransactionFee describes the per-transaction charge of a Service.
// Amount is in cents when Kind is FeeFixed, and a percentage when Kind is FeePercentage
type TransactionFee struct {
	Kind   FeeKind `json:"kind"`
	Amount float64 `json:"amount"`
}

// Service describes a purchasable service offering in the catalog
type Service struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	Name           string         `json:"name"`
	Type           ServiceType    `json:"type" gorm:"index"`
	SetupFee       Money          `json:"setupFee" gorm:"embedded;embeddedPrefix:setup_fee_"`
	MonthlyFee     Money          `json:"monthlyFee" gorm:"embedded;embeddedPrefix:monthly_fee_"`
	TransactionFee TransactionFee `json:"transactionFee" gorm:"embedded;embeddedPrefix:transaction_fee_"`
	IsPremium      bool           `json:"isPremium"`
	IsActive       bool           `json:"isActive"` // Inactive services are hidden from new activation requests only
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
