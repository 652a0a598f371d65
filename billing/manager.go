package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/swiftdial/console/catalog"
	"github.com/swiftdial/console/subscription"

	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// metadataSubscriptionID is the metadata key carrying our subscription id on
// gateway objects, so outcomes can be mapped back to the entitlement record
const metadataSubscriptionID = "subscription_id"

// ManagerOptions contains the configuration for the billing Manager
type ManagerOptions struct {
	StripeClient        *client.API
	SubscriptionManager *subscription.Manager
	CatalogManager      *catalog.Manager
	Logger              *zap.Logger
}

// Manager records payment outcomes reported by the gateway onto subscription
// billing flags. It makes no entitlement decisions of its own: the flags feed
// the subscription store's invariants and nothing else
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for billing
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.StripeClient == nil {
		return nil, fmt.Errorf("nil StripeClient is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.CatalogManager == nil {
		return nil, fmt.Errorf("nil CatalogManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// NewSetupFeeIntent creates a PaymentIntent on the gateway for the setup fee
// of the subscription's service, tagged with the subscription id so the
// succeeded webhook can be mapped back
func (m *Manager) NewSetupFeeIntent(ctx context.Context, subscriptionID string) (*stripe.PaymentIntent, error) {
	sub, err := m.SubscriptionManager.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscription.ErrNotFound
	}
	if sub.SetupFeePaid {
		return nil, fmt.Errorf("setup fee already paid for subscription %s", subscriptionID)
	}

	svc, err := m.CatalogManager.GetByID(ctx, sub.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, catalog.ErrNotFound
	}

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:   stripe.Int64(svc.SetupFee.AmountInCents),
		Currency: stripe.String(strings.ToLower(svc.SetupFee.Currency)),
	}
	params.AddMetadata(metadataSubscriptionID, sub.ID)

	intent, err := m.StripeClient.PaymentIntents.New(params)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create setup fee PaymentIntent")
	}
	return intent, nil
}

// HandleEvent maps one gateway event onto the billing flags. Events that do
// not concern a known subscription are logged and dropped: the gateway
// retries webhooks, and reconciliation sweeps up anything missed
func (m *Manager) HandleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return extErrors.Wrap(err, "Cannot decode PaymentIntent from event")
		}
		subscriptionID := intent.Metadata[metadataSubscriptionID]
		if len(subscriptionID) == 0 {
			m.Logger.Warn("PaymentIntent without subscription metadata",
				zap.String("PaymentIntentID", intent.ID),
			)
			return nil
		}
		return m.markSetupFeePaid(ctx, subscriptionID)
	case "invoice.paid":
		return m.setMonthlyBilling(ctx, event, true)
	case "invoice.payment_failed":
		return m.setMonthlyBilling(ctx, event, false)
	default:
		// not a billing outcome we track
		return nil
	}
}

func (m *Manager) markSetupFeePaid(ctx context.Context, subscriptionID string) error {
	paid := true
	_, err := m.SubscriptionManager.SetBillingFlags(ctx, subscriptionID, subscription.BillingFlags{
		SetupFeePaid: &paid,
	})
	if err == subscription.ErrNotFound {
		m.Logger.Warn("Gateway reported payment for unknown subscription",
			zap.String("SubscriptionID", subscriptionID),
		)
		return nil
	}
	if err != nil {
		return err
	}
	m.Logger.Info("Setup fee recorded as paid",
		zap.String("SubscriptionID", subscriptionID),
	)
	return nil
}

func (m *Manager) setMonthlyBilling(ctx context.Context, event stripe.Event, active bool) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return extErrors.Wrap(err, "Cannot decode Invoice from event")
	}
	subscriptionID := invoice.Metadata[metadataSubscriptionID]
	if len(subscriptionID) == 0 {
		m.Logger.Warn("Invoice without subscription metadata",
			zap.String("InvoiceID", invoice.ID),
		)
		return nil
	}
	_, err := m.SubscriptionManager.SetBillingFlags(ctx, subscriptionID, subscription.BillingFlags{
		MonthlyBillingActive: &active,
	})
	if err == subscription.ErrNotFound {
		m.Logger.Warn("Gateway reported invoice for unknown subscription",
			zap.String("SubscriptionID", subscriptionID),
		)
		return nil
	}
	if err == nil {
		m.Logger.Info("Monthly billing flag recorded",
			zap.String("SubscriptionID", subscriptionID),
			zap.Bool("Active", active),
		)
	}
	return err
}

// Reconcile sweeps recent succeeded PaymentIntents on the gateway and records
// any setup fee payment whose webhook never arrived
func (m *Manager) Reconcile(ctx context.Context) error {
	params := &stripe.PaymentIntentListParams{
		ListParams: stripe.ListParams{
			Context: ctx,
		},
	}
	iter := m.StripeClient.PaymentIntents.List(params)
	for iter.Next() {
		intent := iter.PaymentIntent()
		if intent.Status != stripe.PaymentIntentStatusSucceeded {
			continue
		}
		subscriptionID := intent.Metadata[metadataSubscriptionID]
		if len(subscriptionID) == 0 {
			continue
		}
		if err := m.markSetupFeePaid(ctx, subscriptionID); err != nil {
			m.Logger.Error("Unable to reconcile setup fee payment",
				zap.Error(err),
				zap.String("SubscriptionID", subscriptionID),
			)
			// continue with the remaining intents
		}
	}
	if iter.Err() != nil {
		return extErrors.Wrap(iter.Err(), "Cannot list PaymentIntents for reconciliation")
	}
	return nil
}
