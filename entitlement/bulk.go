package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swiftdial/console/broker"
	"github.com/swiftdial/console/subscription"

	"go.uber.org/zap"
)

// Operation is the custom type for the bulk command direction
type Operation string

// Defining the bulk operations
const (
	OperationActivate   Operation = "activate"
	OperationDeactivate Operation = "deactivate"
)

// Outcome is the per-user verdict of a bulk operation
type Outcome string

// Defining the per-user outcomes. A bulk call never fails as a whole:
// each user's failure is captured in their own Result
const (
	OutcomeSuccess        Outcome = "success"
	OutcomeAlreadyInState Outcome = "alreadyInState"
	OutcomeError          Outcome = "error"
)

// Result is one user's outcome of a bulk operation
type Result struct {
	UserID         string  `json:"userId"`
	Outcome        Outcome `json:"outcome"`
	Detail         string  `json:"detail,omitempty"`
	SubscriptionID string  `json:"subscriptionId,omitempty"`
}

// BulkOption describes a bulk activate/deactivate command issued by an administrator
type BulkOption struct {
	UserIDs   []string
	ServiceID string
	Operation Operation
	ActorID   string
}

// ErrUnknownService is returned when the bulk target service does not exist in the catalog
var ErrUnknownService = fmt.Errorf("entitlement: unknown service")

// BulkSetActivation applies the operation to every user independently: one
// Result per input user, in input order, regardless of individual failures.
// Activating a user with no subscription takes the administrative override
// path and creates one directly in Active status, bypassing the request
// workflow. Re-running the same operation is idempotent (alreadyInState)
func (m *Manager) BulkSetActivation(ctx context.Context, opt BulkOption) ([]Result, error) {
	if len(opt.UserIDs) == 0 {
		return []Result{}, nil
	}
	if opt.Operation != OperationActivate && opt.Operation != OperationDeactivate {
		return nil, fmt.Errorf("invalid operation: %s", opt.Operation)
	}
	if len(opt.ActorID) == 0 {
		return nil, fmt.Errorf("ActorID is required")
	}

	svc, err := m.CatalogManager.GetByID(ctx, opt.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, ErrUnknownService
	}

	logger := m.Logger.With(
		zap.String("ServiceID", opt.ServiceID),
		zap.String("Operation", string(opt.Operation)),
		zap.String("ActorID", opt.ActorID),
	)

	results := make([]Result, 0, len(opt.UserIDs))
	for _, userID := range opt.UserIDs {
		result := m.applyOne(ctx, userID, opt)
		if result.Outcome == OutcomeError {
			logger.Warn("Bulk operation failed for user",
				zap.String("UserID", userID),
				zap.String("Detail", result.Detail),
			)
		}
		results = append(results, result)
	}

	logger.Info("Bulk operation finished",
		zap.Int("Users", len(opt.UserIDs)),
	)

	return results, nil
}

func (m *Manager) applyOne(ctx context.Context, userID string, opt BulkOption) Result {
	result := Result{
		UserID: userID,
	}

	sub, err := m.SubscriptionManager.Get(ctx, userID, opt.ServiceID)
	if err != nil {
		result.Outcome = OutcomeError
		result.Detail = err.Error()
		return result
	}

	target := subscription.StatusActive
	if opt.Operation == OperationDeactivate {
		target = subscription.StatusSuspended
	}

	if sub == nil {
		if opt.Operation == OperationDeactivate {
			// nothing to deactivate
			result.Outcome = OutcomeAlreadyInState
			return result
		}
		now := time.Now()
		created := subscription.Subscription{
			UserID:      userID,
			ServiceID:   opt.ServiceID,
			Status:      subscription.StatusActive,
			ActivatedAt: &now,
		}
		if err := m.SubscriptionManager.Create(ctx, &created); err != nil {
			result.Outcome = OutcomeError
			result.Detail = err.Error()
			return result
		}
		result.Outcome = OutcomeSuccess
		result.SubscriptionID = created.ID
		m.publishStatus(&created, opt.ActorID)
		return result
	}

	result.SubscriptionID = sub.ID
	if sub.Status == target {
		result.Outcome = OutcomeAlreadyInState
		return result
	}

	updated, err := m.SubscriptionManager.SetStatus(ctx, sub.ID, target)
	switch {
	case errors.Is(err, subscription.ErrInvalidTransition):
		result.Outcome = OutcomeError
		result.Detail = fmt.Sprintf("transition from %s to %s is not allowed", sub.Status, target)
		return result
	case err != nil:
		result.Outcome = OutcomeError
		result.Detail = err.Error()
		return result
	}

	result.Outcome = OutcomeSuccess
	m.publishStatus(updated, opt.ActorID)
	return result
}

func (m *Manager) publishStatus(sub *subscription.Subscription, actorID string) {
	go func() {
		if err := m.Producer.PublishEntitlementEvent(&broker.Event{
			Kind:           broker.EventSubscriptionStatus,
			UserID:         sub.UserID,
			ServiceID:      sub.ServiceID,
			SubscriptionID: sub.ID,
			Status:         string(sub.Status),
			ActorID:        actorID,
			OccurredAt:     time.Now(),
		}); err != nil {
			m.Logger.Error("Unable to publish entitlement event",
				zap.Error(err),
				zap.String("SubscriptionID", sub.ID),
			)
			// fail through: database state is authoritative
		}
	}()
}
