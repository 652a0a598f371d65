package activation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/swiftdial/console/auth"
	resp "github.com/swiftdial/console/response"
	"github.com/swiftdial/console/subscription"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	RequestManager *Manager
	Workflow       *Workflow
	Logger         *zap.Logger
}

// Service is the activation request API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the activation request API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.RequestManager == nil {
		return nil, fmt.Errorf("nil RequestManager is invalid")
	}
	if option.Workflow == nil {
		return nil, fmt.Errorf("nil Workflow is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// NewRequest contains the request from a user to activate a Service
type NewRequest struct {
	ServiceID string `json:"serviceId"`
}

func (s *Service) requestActivation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	var req NewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if len(req.ServiceID) == 0 {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("serviceId is required"))
		return
	}

	created, err := s.Workflow.RequestActivation(ctx, claims.ID, req.ServiceID)
	switch {
	case errors.Is(err, ErrServiceUnavailable):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Service is not available for activation"))
		return
	case errors.Is(err, ErrConflict):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("A pending request for this service already exists"))
		return
	case err != nil:
		logger.Error("Unable to create activation request",
			zap.Error(err),
			zap.String("ServiceID", req.ServiceID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to request activation"))
		return
	}

	resp.WriteResponse(w, r, created)
}

func (s *Service) listOwnRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	results, err := s.RequestManager.List(ctx, ListOption{
		UserID: claims.ID,
		Status: Status(r.URL.Query().Get("status")),
	})
	if err != nil {
		s.Logger.Error("Unable to list activation requests",
			zap.Error(err),
			zap.String("UserID", claims.ID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of requests"))
		return
	}

	resp.WriteResponse(w, r, results)
}

func (s *Service) listPendingRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	before := r.URL.Query().Get("before")

	var parsedTime time.Time
	if before != "" {
		var err error
		parsedTime, err = time.Parse(time.RFC3339Nano, before)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid before param"))
			return
		}
	}

	results, err := s.RequestManager.List(ctx, ListOption{
		Status: StatusPending,
		Before: parsedTime,
		Limit:  50,
	})
	if err != nil {
		s.Logger.Error("Unable to list pending requests",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of requests"))
		return
	}

	resp.WriteResponse(w, r, results)
}

// ApprovalResult is the response body of a successful approval
type ApprovalResult struct {
	Request      *ActivationRequest         `json:"request"`
	Subscription *subscription.Subscription `json:"subscription"`
}

func (s *Service) approveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	requestID := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("ActorID", claims.ID),
		zap.String("RequestID", requestID),
	)

	req, sub, err := s.Workflow.Approve(ctx, requestID, claims.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find request with specific ID"))
		return
	case errors.Is(err, ErrAlreadyResolved):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("Request was already resolved"))
		return
	case errors.Is(err, subscription.ErrInvalidTransition):
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Existing subscription cannot be activated"))
		return
	case err != nil:
		logger.Error("Unable to approve request",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to approve request"))
		return
	}

	resp.WriteResponse(w, r, ApprovalResult{
		Request:      req,
		Subscription: sub,
	})
}

// RejectRequest contains the optional reason of a rejection
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Service) rejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)
	requestID := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("ActorID", claims.ID),
		zap.String("RequestID", requestID),
	)

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	updated, err := s.Workflow.Reject(ctx, requestID, claims.ID, req.Reason)
	switch {
	case errors.Is(err, ErrNotFound):
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find request with specific ID"))
		return
	case errors.Is(err, ErrAlreadyResolved):
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("Request was already resolved"))
		return
	case err != nil:
		logger.Error("Unable to reject request",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to reject request"))
		return
	}

	resp.WriteResponse(w, r, updated)
}

// Router will return the routes under activation request API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listOwnRequests)
	r.Post("/", s.requestActivation)

	return r
}

// AdminRouter will return the activation routes restricted to administrators
func (s *Service) AdminRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/pending", s.listPendingRequests)
	r.Post("/{id}/approve", s.approveRequest)
	r.Post("/{id}/reject", s.rejectRequest)

	return r
}
