package subscription

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/swiftdial/console/catalog"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var validate *validator.Validate = validator.New()

// Configuration holds the service-specific settings of a Subscription as a tagged union:
// Type names the service type, and exactly the matching payload must be present.
// A zero Configuration means the subscription has not been configured yet
type Configuration struct {
	Type        catalog.ServiceType       `json:"type,omitempty"`
	SMS         *SMSConfiguration         `json:"sms,omitempty"`
	USSD        *USSDConfiguration        `json:"ussd,omitempty"`
	ShortCode   *ShortCodeConfiguration   `json:"shortcode,omitempty"`
	Mpesa       *MpesaConfiguration       `json:"mpesa,omitempty"`
	WhatsApp    *WhatsAppConfiguration    `json:"whatsapp,omitempty"`
	Survey      *SurveyConfiguration      `json:"survey,omitempty"`
	ServiceDesk *ServiceDeskConfiguration `json:"servicedesk,omitempty"`
	Rewards     *RewardsConfiguration     `json:"rewards,omitempty"`
}

// SMSConfiguration holds bulk SMS settings
type SMSConfiguration struct {
	SenderID          string `json:"senderId" validate:"required"`
	DeliveryReportURL string `json:"deliveryReportUrl" validate:"omitempty,url"`
}

// USSDMenuItem is a single entry in a USSD menu
type USSDMenuItem struct {
	Position int    `json:"position" validate:"min=1"`
	Text     string `json:"text" validate:"required"`
	Target   string `json:"target"` // Next menu key, empty for a leaf entry
}

// USSDConfiguration holds the USSD service code and menu structure
type USSDConfiguration struct {
	ServiceCode string         `json:"serviceCode" validate:"required"`
	Menu        []USSDMenuItem `json:"menu" validate:"required,min=1,dive"`
}

// ShortCodeConfiguration holds short code settings
type ShortCodeConfiguration struct {
	Code        string `json:"code" validate:"required"`
	Keyword     string `json:"keyword" validate:"required"`
	IsDedicated bool   `json:"isDedicated"`
}

// MpesaConfiguration holds the M-Pesa integration parameters
type MpesaConfiguration struct {
	PaybillNumber  string `json:"paybillNumber" validate:"required"`
	ConsumerKey    string `json:"consumerKey" validate:"required"`
	ConsumerSecret string `json:"consumerSecret" validate:"required"`
	CallbackURL    string `json:"callbackUrl" validate:"omitempty,url"`
}

// WhatsAppConfiguration holds the WhatsApp business profile
type WhatsAppConfiguration struct {
	BusinessName string `json:"businessName" validate:"required"`
	PhoneNumber  string `json:"phoneNumber" validate:"required"`
}

// SurveyConfiguration holds survey settings
type SurveyConfiguration struct {
	Title     string   `json:"title" validate:"required"`
	Questions []string `json:"questions" validate:"required,min=1,dive,required"`
}

// ServiceDeskConfiguration holds service desk routing settings
type ServiceDeskConfiguration struct {
	SupportEmail    string `json:"supportEmail" validate:"required,email"`
	EscalationEmail string `json:"escalationEmail" validate:"omitempty,email"`
}

// RewardsConfiguration holds loyalty campaign settings
type RewardsConfiguration struct {
	CampaignName     string `json:"campaignName" validate:"required"`
	PointsPerMessage int    `json:"pointsPerMessage" validate:"min=0"`
}

// IsZero reports if no configuration has been recorded
func (c *Configuration) IsZero() bool {
	return len(c.Type) == 0
}

// payload returns the union member matching Type, or nil if it is not set
func (c *Configuration) payload() interface{} {
	switch c.Type {
	case catalog.TypeSMS:
		if c.SMS != nil {
			return c.SMS
		}
	case catalog.TypeUSSD:
		if c.USSD != nil {
			return c.USSD
		}
	case catalog.TypeShortCode:
		if c.ShortCode != nil {
			return c.ShortCode
		}
	case catalog.TypeMpesa:
		if c.Mpesa != nil {
			return c.Mpesa
		}
	case catalog.TypeWhatsApp:
		if c.WhatsApp != nil {
			return c.WhatsApp
		}
	case catalog.TypeSurvey:
		if c.Survey != nil {
			return c.Survey
		}
	case catalog.TypeServiceDesk:
		if c.ServiceDesk != nil {
			return c.ServiceDesk
		}
	case catalog.TypeRewards:
		if c.Rewards != nil {
			return c.Rewards
		}
	}
	return nil
}

func (c *Configuration) setPayloads() map[catalog.ServiceType]bool {
	return map[catalog.ServiceType]bool{
		catalog.TypeSMS:         c.SMS != nil,
		catalog.TypeUSSD:        c.USSD != nil,
		catalog.TypeShortCode:   c.ShortCode != nil,
		catalog.TypeMpesa:       c.Mpesa != nil,
		catalog.TypeWhatsApp:    c.WhatsApp != nil,
		catalog.TypeSurvey:      c.Survey != nil,
		catalog.TypeServiceDesk: c.ServiceDesk != nil,
		catalog.TypeRewards:     c.Rewards != nil,
	}
}

// Validate checks that the Configuration is tagged with the expected service type,
// carries exactly the matching payload, and that the payload itself is well formed
func (c *Configuration) Validate(expected catalog.ServiceType) error {
	if !c.Type.Valid() {
		return fmt.Errorf("unknown configuration type %q", c.Type)
	}
	if c.Type != expected {
		return fmt.Errorf("configuration type %q does not match service type %q", c.Type, expected)
	}
	for t, set := range c.setPayloads() {
		if t != c.Type && set {
			return fmt.Errorf("configuration payload for %q does not belong on a %q subscription", t, c.Type)
		}
	}
	payload := c.payload()
	if payload == nil {
		return fmt.Errorf("configuration payload for %q is missing", c.Type)
	}
	return validate.Struct(payload)
}

func (c *Configuration) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		str, strOk := value.(string)
		if !strOk {
			return fmt.Errorf("Failed to unmarshal jsonb value: %s", value)
		}
		bytes = []byte(str)
	}
	if len(bytes) == 0 {
		*c = Configuration{}
		return nil
	}
	return json.Unmarshal(bytes, c)
}

func (c Configuration) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (Configuration) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}
