package activation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/swiftdial/console/broker"
	"github.com/swiftdial/console/catalog"
	"github.com/swiftdial/console/subscription"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkflowOptions contains the configuration for the activation Workflow
type WorkflowOptions struct {
	DB             *gorm.DB
	CatalogManager *catalog.Manager
	Producer       broker.Producer
	Logger         *zap.Logger
}

// Workflow implements the request/approve/reject state machine. Approval and
// rejection are made mutually exclusive by a compare-and-swap on the pending
// status: under concurrent admin resolutions exactly one call succeeds and the
// other observes ErrAlreadyResolved without mutating anything
type Workflow struct {
	WorkflowOptions
}

// NewWorkflow will create a Workflow for activation requests
func NewWorkflow(option WorkflowOptions) (*Workflow, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.CatalogManager == nil {
		return nil, fmt.Errorf("nil CatalogManager is invalid")
	}
	if option.Producer == nil {
		return nil, fmt.Errorf("nil Producer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Workflow{
		WorkflowOptions: option,
	}, nil
}

// RequestActivation records a user's request for a Service. The Service must
// be active at request time (ErrServiceUnavailable otherwise), and at most one
// pending request may exist per (user, service) pair (ErrConflict). A new
// request after a rejection is allowed
func (w *Workflow) RequestActivation(ctx context.Context, userID, serviceID string) (*ActivationRequest, error) {
	if len(userID) == 0 || len(serviceID) == 0 {
		return nil, fmt.Errorf("userID and serviceID are required")
	}

	svc, err := w.CatalogManager.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc == nil || !svc.IsActive {
		return nil, ErrServiceUnavailable
	}

	req := ActivationRequest{
		ID:          uuid.New().String(),
		UserID:      userID,
		ServiceID:   serviceID,
		Status:      StatusPending,
		RequestedAt: time.Now(),
	}
	err = w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ActivationRequest
		lookupRes := tx.
			Where("user_id = ?", userID).
			Where("service_id = ?", serviceID).
			Where("status = ?", StatusPending).
			First(&existing)
		if lookupRes.Error == nil {
			return ErrConflict
		}
		if !errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return lookupRes.Error
		}
		return tx.Create(&req).Error
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}

	w.Logger.Info("Activation requested",
		zap.String("UserID", userID),
		zap.String("ServiceID", serviceID),
		zap.String("RequestID", req.ID),
	)

	return &req, nil
}

// Approve resolves a pending request and provisions the Subscription in one
// transaction. If no Subscription exists for the pair, one is created already
// active with both billing flags off; if one exists, it is transitioned into
// Active under the store's transition rules (an existing cancelled
// subscription makes the whole approval fail and the request stays pending).
// Losing the compare-and-swap yields ErrAlreadyResolved
func (w *Workflow) Approve(ctx context.Context, requestID, actorID string) (*ActivationRequest, *subscription.Subscription, error) {
	if len(actorID) == 0 {
		return nil, nil, fmt.Errorf("actorID is required")
	}

	var req ActivationRequest
	var sub subscription.Subscription
	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookupRes := tx.First(&req, "id = ?", requestID)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}

		now := time.Now()
		casRes := tx.Model(&ActivationRequest{}).
			Where("id = ?", requestID).
			Where("status = ?", StatusPending).
			Updates(map[string]interface{}{
				"status":      StatusApproved,
				"resolved_at": now,
				"resolved_by": actorID,
			})
		if casRes.Error != nil {
			return casRes.Error
		}
		if casRes.RowsAffected == 0 {
			return ErrAlreadyResolved
		}
		req.Status = StatusApproved
		req.ResolvedAt = &now
		req.ResolvedBy = actorID

		var existing subscription.Subscription
		subRes := tx.
			Where("user_id = ?", req.UserID).
			Where("service_id = ?", req.ServiceID).
			First(&existing)
		if errors.Is(subRes.Error, gorm.ErrRecordNotFound) {
			sub = subscription.Subscription{
				ID:          shortuuid.New(),
				UserID:      req.UserID,
				ServiceID:   req.ServiceID,
				Status:      subscription.StatusActive,
				ActivatedAt: &now,
			}
			return tx.Create(&sub).Error
		}
		if subRes.Error != nil {
			return subRes.Error
		}

		if existing.Status == subscription.StatusActive {
			sub = existing
			return nil
		}
		if !subscription.CanTransition(existing.Status, subscription.StatusActive) {
			return subscription.ErrInvalidTransition
		}
		updates := map[string]interface{}{
			"status": subscription.StatusActive,
		}
		if existing.ActivatedAt == nil {
			updates["activated_at"] = now
			existing.ActivatedAt = &now
		}
		subCas := tx.Model(&subscription.Subscription{}).
			Where("id = ?", existing.ID).
			Where("status = ?", existing.Status).
			Updates(updates)
		if subCas.Error != nil {
			return subCas.Error
		}
		if subCas.RowsAffected == 0 {
			return subscription.ErrConflict
		}
		existing.Status = subscription.StatusActive
		sub = existing
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, nil, err
	}

	w.Logger.Info("Activation request approved",
		zap.String("RequestID", req.ID),
		zap.String("UserID", req.UserID),
		zap.String("ServiceID", req.ServiceID),
		zap.String("SubscriptionID", sub.ID),
		zap.String("ActorID", actorID),
	)

	w.publish(&broker.Event{
		Kind:           broker.EventRequestApproved,
		UserID:         req.UserID,
		ServiceID:      req.ServiceID,
		SubscriptionID: sub.ID,
		RequestID:      req.ID,
		Status:         string(sub.Status),
		ActorID:        actorID,
		OccurredAt:     time.Now(),
	})

	return &req, &sub, nil
}

// Reject resolves a pending request without touching the subscription store.
// The same compare-and-swap guard applies
func (w *Workflow) Reject(ctx context.Context, requestID, actorID, reason string) (*ActivationRequest, error) {
	if len(actorID) == 0 {
		return nil, fmt.Errorf("actorID is required")
	}

	var req ActivationRequest
	err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookupRes := tx.First(&req, "id = ?", requestID)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}

		now := time.Now()
		casRes := tx.Model(&ActivationRequest{}).
			Where("id = ?", requestID).
			Where("status = ?", StatusPending).
			Updates(map[string]interface{}{
				"status":           StatusRejected,
				"resolved_at":      now,
				"resolved_by":      actorID,
				"rejection_reason": reason,
			})
		if casRes.Error != nil {
			return casRes.Error
		}
		if casRes.RowsAffected == 0 {
			return ErrAlreadyResolved
		}
		req.Status = StatusRejected
		req.ResolvedAt = &now
		req.ResolvedBy = actorID
		req.RejectionReason = reason
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}

	w.Logger.Info("Activation request rejected",
		zap.String("RequestID", req.ID),
		zap.String("UserID", req.UserID),
		zap.String("ServiceID", req.ServiceID),
		zap.String("ActorID", actorID),
		zap.String("Reason", reason),
	)

	w.publish(&broker.Event{
		Kind:       broker.EventRequestRejected,
		UserID:     req.UserID,
		ServiceID:  req.ServiceID,
		RequestID:  req.ID,
		Reason:     reason,
		ActorID:    actorID,
		OccurredAt: time.Now(),
	})

	return &req, nil
}

func (w *Workflow) publish(e *broker.Event) {
	go func() {
		if err := w.Producer.PublishEntitlementEvent(e); err != nil {
			w.Logger.Error("Unable to publish entitlement event",
				zap.Error(err),
				zap.String("Kind", string(e.Kind)),
			)
			// fail through: database state is authoritative
		}
	}()
}
