package subscription

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/swiftdial/console/auth"
	"github.com/swiftdial/console/broker"
	"github.com/swiftdial/console/catalog"
	resp "github.com/swiftdial/console/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	SubscriptionManager *Manager
	CatalogManager      *catalog.Manager
	Producer            broker.Producer
	Logger              *zap.Logger
}

// Service is the subscription API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the subscription API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
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
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) listOwnSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	results, err := s.SubscriptionManager.ListByUser(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to list subscriptions by user id",
			zap.Error(err),
			zap.String("UserID", claims.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of subscriptions"))
		return
	}

	resp.WriteResponse(w, r, results)
}

func (s *Service) setConfiguration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	subscriptionID := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("UserID", claims.ID),
		zap.String("SubscriptionID", subscriptionID),
	)

	var cfg Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	sub, err := s.SubscriptionManager.GetByID(ctx, subscriptionID)
	if err != nil {
		logger.Error("Unable to query subscription",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update configuration"))
		return
	}
	if sub == nil || sub.UserID != claims.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find subscription with specific ID"))
		return
	}

	svc, err := s.CatalogManager.GetByID(ctx, sub.ServiceID)
	if err != nil || svc == nil {
		logger.Error("Unable to resolve service for subscription",
			zap.Error(err),
			zap.String("ServiceID", sub.ServiceID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update configuration"))
		return
	}

	updated, err := s.SubscriptionManager.SetConfiguration(ctx, subscriptionID, svc.Type, cfg)
	if errors.Is(err, ErrValidation) {
		resp.WriteError(w, r, resp.ErrUnprocessable().AddMessages(err.Error()))
		return
	}
	if err != nil {
		logger.Error("Unable to update configuration",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update configuration"))
		return
	}

	resp.WriteResponse(w, r, updated)
}

// SetStatusRequest contains an administrator's status change for a Subscription
type SetStatusRequest struct {
	Status Status `json:"status"`
}

func (s *Service) setStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	subscriptionID := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("ActorID", claims.ID),
		zap.String("SubscriptionID", subscriptionID),
	)

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if !req.Status.Valid() {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unknown status"))
		return
	}

	updated, err := s.SubscriptionManager.SetStatus(ctx, subscriptionID, req.Status)
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find subscription with specific ID"))
		return
	case errors.Is(err, ErrInvalidTransition):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Status change not allowed from the current status"))
		return
	case errors.Is(err, ErrConflict):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("Subscription was modified concurrently, retry"))
		return
	case err != nil:
		logger.Error("Unable to update subscription status",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update Subscription status"))
		return
	}

	logger.Info("Subscription status changed",
		zap.String("Status", string(updated.Status)),
	)

	go func(sub *Subscription, actorID string) {
		if err := s.Producer.PublishEntitlementEvent(&broker.Event{
			Kind:           broker.EventSubscriptionStatus,
			UserID:         sub.UserID,
			ServiceID:      sub.ServiceID,
			SubscriptionID: sub.ID,
			Status:         string(sub.Status),
			ActorID:        actorID,
			OccurredAt:     time.Now(),
		}); err != nil {
			logger.Error("Unable to publish entitlement event",
				zap.Error(err),
			)
			// fail through: database state is authoritative
		}
	}(updated, claims.ID)

	resp.WriteResponse(w, r, updated)
}

// SetBillingRequest contains a billing outcome report. Nil fields are left untouched
type SetBillingRequest struct {
	SetupFeePaid         *bool `json:"setupFeePaid"`
	MonthlyBillingActive *bool `json:"monthlyBillingActive"`
}

func (s *Service) setBillingFlags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	subscriptionID := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("ActorID", claims.ID),
		zap.String("SubscriptionID", subscriptionID),
	)

	var req SetBillingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	updated, err := s.SubscriptionManager.SetBillingFlags(ctx, subscriptionID, BillingFlags{
		SetupFeePaid:         req.SetupFeePaid,
		MonthlyBillingActive: req.MonthlyBillingActive,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find subscription with specific ID"))
		return
	case errors.Is(err, ErrValidation):
		resp.WriteError(w, r, resp.ErrUnprocessable().AddMessages(err.Error()))
		return
	case err != nil:
		logger.Error("Unable to update billing flags",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update billing flags"))
		return
	}

	go func(sub *Subscription, actorID string) {
		if err := s.Producer.PublishEntitlementEvent(&broker.Event{
			Kind:           broker.EventSubscriptionBilling,
			UserID:         sub.UserID,
			ServiceID:      sub.ServiceID,
			SubscriptionID: sub.ID,
			ActorID:        actorID,
			OccurredAt:     time.Now(),
		}); err != nil {
			logger.Error("Unable to publish entitlement event",
				zap.Error(err),
			)
			// fail through: database state is authoritative
		}
	}(updated, claims.ID)

	resp.WriteResponse(w, r, updated)
}

func (s *Service) listUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "uid")

	results, err := s.SubscriptionManager.ListByUser(ctx, userID)
	if err != nil {
		s.Logger.Error("Unable to list subscriptions by user id",
			zap.Error(err),
			zap.String("UserID", userID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of subscriptions"))
		return
	}

	resp.WriteResponse(w, r, results)
}

// Router will return the routes under subscription API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listOwnSubscriptions)
	r.Put("/{id}/configuration", s.setConfiguration)

	return r
}

// AdminRouter will return the subscription routes restricted to administrators
func (s *Service) AdminRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/user/{uid}", s.listUserSubscriptions)
	r.Post("/{id}/status", s.setStatus)
	r.Post("/{id}/billing", s.setBillingFlags)

	return r
}
