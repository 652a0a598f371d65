package entitlement

import (
	"context"
	"sync"
	"testing"

	"github.com/swiftdial/console/activation"
	"github.com/swiftdial/console/broker"
	"github.com/swiftdial/console/catalog"
	"github.com/swiftdial/console/subscription"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type producerStub struct {
	mu     sync.Mutex
	events []broker.Event
}

func (p *producerStub) PublishEntitlementEvent(e *broker.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return nil
}

type fixture struct {
	entitlements  *Manager
	catalog       *catalog.Manager
	subscriptions *subscription.Manager
	workflow      *activation.Workflow
	producer      *producerStub
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

	requestManager, err := activation.NewManager(activation.ManagerOptions{
		DB:     db,
		Logger: logger,
	})
	require.NoError(t, err)

	producer := &producerStub{}

	workflow, err := activation.NewWorkflow(activation.WorkflowOptions{
		DB:             db,
		CatalogManager: catalogManager,
		Producer:       producer,
		Logger:         logger,
	})
	require.NoError(t, err)

	entitlementManager, err := NewManager(ManagerOptions{
		CatalogManager:      catalogManager,
		SubscriptionManager: subscriptionManager,
		RequestManager:      requestManager,
		Producer:            producer,
		Logger:              logger,
	})
	require.NoError(t, err)

	return &fixture{
		entitlements:  entitlementManager,
		catalog:       catalogManager,
		subscriptions: subscriptionManager,
		workflow:      workflow,
		producer:      producer,
	}
}

func (f *fixture) seedService(t *testing.T, name string, active bool) *catalog.Service {
	svc := catalog.Service{
		Name:     name,
		Type:     catalog.TypeSMS,
		IsActive: active,
	}
	require.NoError(t, f.catalog.Create(context.Background(), &svc))
	return &svc
}

func (f *fixture) seedSubscription(t *testing.T, userID, serviceID string, status subscription.Status) *subscription.Subscription {
	sub := subscription.Subscription{
		UserID:    userID,
		ServiceID: serviceID,
		Status:    subscription.StatusActive,
	}
	require.NoError(t, f.subscriptions.Create(context.Background(), &sub))
	if status != subscription.StatusActive {
		_, err := f.subscriptions.SetStatus(context.Background(), sub.ID, status)
		require.NoError(t, err)
		sub.Status = status
	}
	return &sub
}

func cellFor(t *testing.T, matrix *Matrix, userID, serviceID string) Cell {
	for _, row := range matrix.Rows {
		if row.UserID != userID {
			continue
		}
		for _, cell := range row.Cells {
			if cell.ServiceID == serviceID {
				return cell
			}
		}
	}
	t.Fatalf("no cell for user %s service %s", userID, serviceID)
	return Cell{}
}

func TestMatrixResolvesCellStatuses(t *testing.T) {
	f := newFixture(t)

	svc := f.seedService(t, "Bulk SMS", true)

	activeSub := f.seedSubscription(t, "user-active", svc.ID, subscription.StatusActive)
	f.seedSubscription(t, "user-suspended", svc.ID, subscription.StatusSuspended)
	f.seedSubscription(t, "user-cancelled", svc.ID, subscription.StatusCancelled)

	pendingReq, err := f.workflow.RequestActivation(context.Background(), "user-requested", svc.ID)
	require.NoError(t, err)

	userIDs := []string{"user-active", "user-suspended", "user-cancelled", "user-requested", "user-fresh"}
	matrix, err := f.entitlements.GetMatrix(context.Background(), MatrixOption{
		UserIDs: userIDs,
	})
	require.NoError(t, err)
	require.Len(t, matrix.Rows, len(userIDs))

	active := cellFor(t, matrix, "user-active", svc.ID)
	require.Equal(t, CellActive, active.Status)
	require.True(t, active.CanToggle)
	require.Equal(t, activeSub.ID, active.SubscriptionID)

	suspended := cellFor(t, matrix, "user-suspended", svc.ID)
	require.Equal(t, CellSuspended, suspended.Status)
	require.True(t, suspended.CanToggle)

	cancelled := cellFor(t, matrix, "user-cancelled", svc.ID)
	require.Equal(t, CellNotEligible, cancelled.Status)
	require.False(t, cancelled.CanToggle)

	requested := cellFor(t, matrix, "user-requested", svc.ID)
	require.Equal(t, CellPending, requested.Status)
	require.Equal(t, pendingReq.ID, requested.RequestID)

	fresh := cellFor(t, matrix, "user-fresh", svc.ID)
	require.Equal(t, CellAvailable, fresh.Status)
	require.True(t, fresh.CanToggle)
}

func TestMatrixMarksIneligibleUsers(t *testing.T) {
	f := newFixture(t)

	svc := f.seedService(t, "Bulk SMS", true)
	f.seedSubscription(t, "user-subscribed", svc.ID, subscription.StatusActive)

	matrix, err := f.entitlements.GetMatrix(context.Background(), MatrixOption{
		UserIDs: []string{"user-subscribed", "user-blocked"},
		Ineligible: map[string]bool{
			"user-subscribed": true,
			"user-blocked":    true,
		},
	})
	require.NoError(t, err)

	// an existing subscription outranks the eligibility rule
	subscribed := cellFor(t, matrix, "user-subscribed", svc.ID)
	require.Equal(t, CellActive, subscribed.Status)

	blocked := cellFor(t, matrix, "user-blocked", svc.ID)
	require.Equal(t, CellNotEligible, blocked.Status)
	require.False(t, blocked.CanToggle)
}

func TestMatrixInactiveServiceHiddenFromNewRequestsOnly(t *testing.T) {
	f := newFixture(t)

	svc := f.seedService(t, "Legacy USSD", false)
	f.seedSubscription(t, "user-grandfathered", svc.ID, subscription.StatusActive)

	matrix, err := f.entitlements.GetMatrix(context.Background(), MatrixOption{
		UserIDs: []string{"user-grandfathered", "user-new"},
	})
	require.NoError(t, err)

	grandfathered := cellFor(t, matrix, "user-grandfathered", svc.ID)
	require.Equal(t, CellActive, grandfathered.Status)
	require.True(t, grandfathered.CanToggle)

	newcomer := cellFor(t, matrix, "user-new", svc.ID)
	require.Equal(t, CellNotEligible, newcomer.Status)
}

func TestMatrixRequiresUsers(t *testing.T) {
	f := newFixture(t)

	_, err := f.entitlements.GetMatrix(context.Background(), MatrixOption{})
	require.Error(t, err)
}
