package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	resp "github.com/swiftdial/console/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	CatalogManager *Manager
	Logger         *zap.Logger
}

// ServiceRouter is the catalog API router. Service itself is the catalog
// entry, so the router carries a distinct name
type ServiceRouter struct {
	ServiceOptions
}

// NewServiceRouter will create an instance of the catalog API router
func NewServiceRouter(option ServiceOptions) (*ServiceRouter, error) {
	if option.CatalogManager == nil {
		return nil, fmt.Errorf("nil CatalogManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &ServiceRouter{
		ServiceOptions: option,
	}, nil
}

func (s *ServiceRouter) listServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opt := ListOption{
		Type:       ServiceType(r.URL.Query().Get("type")),
		ActiveOnly: r.URL.Query().Get("all") == "",
	}
	results, err := s.CatalogManager.List(ctx, opt)
	if err != nil {
		s.Logger.Error("Unable to list services",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of services"))
		return
	}

	resp.WriteResponse(w, r, results)
}

// NewServiceRequest contains the request from an administrator to define a new Service
type NewServiceRequest struct {
	Name           string         `json:"name" validate:"required"`
	Type           string         `json:"type" validate:"required"`
	SetupFee       Money          `json:"setupFee"`
	MonthlyFee     Money          `json:"monthlyFee"`
	TransactionFee TransactionFee `json:"transactionFee"`
	IsPremium      bool           `json:"isPremium"`
}

func (s *ServiceRouter) newService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req NewServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrUnprocessable().AddMessages(err.Error()))
		return
	}
	if !ServiceType(req.Type).Valid() {
		resp.WriteError(w, r, resp.ErrUnprocessable().AddMessages("Unknown service type"))
		return
	}

	svc := Service{
		Name:           req.Name,
		Type:           ServiceType(req.Type),
		SetupFee:       req.SetupFee,
		MonthlyFee:     req.MonthlyFee,
		TransactionFee: req.TransactionFee,
		IsPremium:      req.IsPremium,
		IsActive:       true,
	}
	if err := s.CatalogManager.Create(ctx, &svc); err != nil {
		s.Logger.Error("Unable to create service",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to create Service"))
		return
	}

	resp.WriteResponse(w, r, svc)
}

// UpdateServiceRequest contains the partial update from an administrator
type UpdateServiceRequest struct {
	Name           *string         `json:"name"`
	SetupFee       *Money          `json:"setupFee"`
	MonthlyFee     *Money          `json:"monthlyFee"`
	TransactionFee *TransactionFee `json:"transactionFee"`
	IsPremium      *bool           `json:"isPremium"`
}

func (s *ServiceRouter) updateService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceID := chi.URLParam(r, "id")

	logger := s.Logger.With(zap.String("ServiceID", serviceID))

	var req UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	svc, err := s.CatalogManager.Update(ctx, serviceID, Patch{
		Name:           req.Name,
		SetupFee:       req.SetupFee,
		MonthlyFee:     req.MonthlyFee,
		TransactionFee: req.TransactionFee,
		IsPremium:      req.IsPremium,
	})
	if errors.Is(err, ErrNotFound) {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find service with specific ID"))
		return
	}
	if err != nil {
		logger.Error("Unable to update service",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update Service"))
		return
	}

	resp.WriteResponse(w, r, svc)
}

// SetActiveRequest contains the request to show or hide a Service from new activation requests
type SetActiveRequest struct {
	Active bool `json:"active"`
}

func (s *ServiceRouter) setActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceID := chi.URLParam(r, "id")

	logger := s.Logger.With(zap.String("ServiceID", serviceID))

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	svc, err := s.CatalogManager.SetActive(ctx, serviceID, req.Active)
	if errors.Is(err, ErrNotFound) {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find service with specific ID"))
		return
	}
	if err != nil {
		logger.Error("Unable to update service active flag",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update Service"))
		return
	}

	resp.WriteResponse(w, r, svc)
}

// Router will return the routes under catalog API
func (s *ServiceRouter) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listServices)

	return r
}

// AdminRouter will return the catalog routes restricted to administrators
func (s *ServiceRouter) AdminRouter() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.newService)
	r.Patch("/{id}", s.updateService)
	r.Post("/{id}/active", s.setActive)

	return r
}
