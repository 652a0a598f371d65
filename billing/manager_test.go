package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/swiftdial/console/catalog"
	"github.com/swiftdial/console/subscription"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	billing       *Manager
	subscriptions *subscription.Manager
	catalog       *catalog.Manager
}

func newFixture(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	logger := zap.NewNop()

	catalogManager, err := catalog.NewManager(logger, db)
	require.NoError(t, err)

	subscriptionManager, err := subscription.NewManager(subscription.ManagerOptions{
		DB:     db,
		Logger: logger,
	})
	require.NoError(t, err)

	// event handling never talks to the gateway, a dummy key is enough
	billingManager, err := NewManager(ManagerOptions{
		StripeClient:        client.New("sk_test_dummy", nil),
		SubscriptionManager: subscriptionManager,
		CatalogManager:      catalogManager,
		Logger:              logger,
	})
	require.NoError(t, err)

	return &fixture{
		billing:       billingManager,
		subscriptions: subscriptionManager,
		catalog:       catalogManager,
	}
}

func (f *fixture) seedSubscription(t *testing.T) *subscription.Subscription {
	sub := subscription.Subscription{
		UserID:    "user-1",
		ServiceID: "svc-1",
		Status:    subscription.StatusActive,
	}
	require.NoError(t, f.subscriptions.Create(context.Background(), &sub))
	return &sub
}

func paymentIntentEvent(subscriptionID string) stripe.Event {
	return stripe.Event{
		Type: "payment_intent.succeeded",
		Data: &stripe.EventData{
			Raw: []byte(fmt.Sprintf(`{"id":"pi_1","metadata":{"subscription_id":%q}}`, subscriptionID)),
		},
	}
}

func invoiceEvent(eventType, subscriptionID string) stripe.Event {
	return stripe.Event{
		Type: eventType,
		Data: &stripe.EventData{
			Raw: []byte(fmt.Sprintf(`{"id":"in_1","metadata":{"subscription_id":%q}}`, subscriptionID)),
		},
	}
}

func TestPaymentIntentSucceededMarksSetupFeePaid(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t)

	require.NoError(t, f.billing.HandleEvent(context.Background(), paymentIntentEvent(sub.ID)))

	current, err := f.subscriptions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.True(t, current.SetupFeePaid)
}

func TestInvoicePaidEnablesMonthlyBilling(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t)

	require.NoError(t, f.billing.HandleEvent(context.Background(), paymentIntentEvent(sub.ID)))
	require.NoError(t, f.billing.HandleEvent(context.Background(), invoiceEvent("invoice.paid", sub.ID)))

	current, err := f.subscriptions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.True(t, current.MonthlyBillingActive)

	require.NoError(t, f.billing.HandleEvent(context.Background(), invoiceEvent("invoice.payment_failed", sub.ID)))

	current, err = f.subscriptions.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.False(t, current.MonthlyBillingActive)
	require.True(t, current.SetupFeePaid)
}

func TestInvoicePaidBeforeSetupFeeFails(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t)

	err := f.billing.HandleEvent(context.Background(), invoiceEvent("invoice.paid", sub.ID))
	require.ErrorIs(t, err, subscription.ErrValidation)
}

func TestUnknownSubscriptionIsDropped(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.billing.HandleEvent(context.Background(), paymentIntentEvent("no-such-subscription")))
}

func TestUnrelatedEventIsIgnored(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.billing.HandleEvent(context.Background(), stripe.Event{
		Type: "customer.created",
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}))
}
