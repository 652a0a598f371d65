package subscription

import (
	"context"
	"testing"

	"github.com/swiftdial/console/catalog"

	"github.com/stretchr/testify/require"
)

func TestConfigurationValidateMatchingPayload(t *testing.T) {
	cfg := Configuration{
		Type: catalog.TypeSMS,
		SMS: &SMSConfiguration{
			SenderID: "SWIFTDIAL",
		},
	}
	require.NoError(t, cfg.Validate(catalog.TypeSMS))
}

func TestConfigurationValidateRejectsTypeMismatch(t *testing.T) {
	cfg := Configuration{
		Type: catalog.TypeSMS,
		SMS: &SMSConfiguration{
			SenderID: "SWIFTDIAL",
		},
	}
	require.Error(t, cfg.Validate(catalog.TypeUSSD))
}

func TestConfigurationValidateRejectsStrayPayload(t *testing.T) {
	cfg := Configuration{
		Type: catalog.TypeSMS,
		SMS: &SMSConfiguration{
			SenderID: "SWIFTDIAL",
		},
		Mpesa: &MpesaConfiguration{
			PaybillNumber:  "123456",
			ConsumerKey:    "key",
			ConsumerSecret: "secret",
		},
	}
	require.Error(t, cfg.Validate(catalog.TypeSMS))
}

func TestConfigurationValidateRejectsMissingPayload(t *testing.T) {
	cfg := Configuration{
		Type: catalog.TypeUSSD,
	}
	require.Error(t, cfg.Validate(catalog.TypeUSSD))
}

func TestConfigurationValidateRejectsMalformedPayload(t *testing.T) {
	cfg := Configuration{
		Type: catalog.TypeUSSD,
		USSD: &USSDConfiguration{
			ServiceCode: "*123#",
			Menu:        []USSDMenuItem{},
		},
	}
	require.Error(t, cfg.Validate(catalog.TypeUSSD))
}

func TestSetConfigurationPersistsRoundTrip(t *testing.T) {
	m := testManager(t)
	sub := seedSubscription(t, m, StatusActive)

	cfg := Configuration{
		Type: catalog.TypeUSSD,
		USSD: &USSDConfiguration{
			ServiceCode: "*384*96#",
			Menu: []USSDMenuItem{
				{Position: 1, Text: "Check balance"},
				{Position: 2, Text: "Talk to support", Target: "support"},
			},
		},
	}
	_, err := m.SetConfiguration(context.Background(), sub.ID, catalog.TypeUSSD, cfg)
	require.NoError(t, err)

	current, err := m.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, catalog.TypeUSSD, current.Configuration.Type)
	require.NotNil(t, current.Configuration.USSD)
	require.Len(t, current.Configuration.USSD.Menu, 2)
	require.Equal(t, "support", current.Configuration.USSD.Menu[1].Target)
}

func TestSetConfigurationWritesNothingOnValidationFailure(t *testing.T) {
	m := testManager(t)
	sub := seedSubscription(t, m, StatusActive)

	cfg := Configuration{
		Type: catalog.TypeSMS,
	}
	_, err := m.SetConfiguration(context.Background(), sub.ID, catalog.TypeSMS, cfg)
	require.ErrorIs(t, err, ErrValidation)

	current, err := m.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.True(t, current.Configuration.IsZero())
}
