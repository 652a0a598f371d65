package entitlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/swiftdial/console/auth"
	resp "github.com/swiftdial/console/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	EntitlementManager *Manager
	Logger             *zap.Logger
}

// Service is the entitlement matrix API router. All routes are admin-only
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the entitlement API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.EntitlementManager == nil {
		return nil, fmt.Errorf("nil EntitlementManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// MatrixRequest selects the users to compute the matrix for. IneligibleUserIDs
// carries the precomputed business-rule disqualifications
type MatrixRequest struct {
	UserIDs           []string `json:"userIds"`
	IneligibleUserIDs []string `json:"ineligibleUserIds"`
}

func (s *Service) getMatrix(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req MatrixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if len(req.UserIDs) == 0 {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("userIds is required"))
		return
	}

	ineligible := make(map[string]bool, len(req.IneligibleUserIDs))
	for _, id := range req.IneligibleUserIDs {
		ineligible[id] = true
	}

	matrix, err := s.EntitlementManager.GetMatrix(ctx, MatrixOption{
		UserIDs:    req.UserIDs,
		Ineligible: ineligible,
	})
	if err != nil {
		s.Logger.Error("Unable to compute entitlement matrix",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to compute entitlement matrix"))
		return
	}

	resp.WriteResponse(w, r, matrix)
}

// BulkRequest describes the bulk activate/deactivate command
type BulkRequest struct {
	UserIDs   []string `json:"userIds"`
	ServiceID string   `json:"serviceId"`
	Operation string   `json:"operation"`
}

func (s *Service) bulkSetActivation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	logger := s.Logger.With(zap.String("ActorID", claims.ID))

	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	op := Operation(req.Operation)
	if op != OperationActivate && op != OperationDeactivate {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unknown operation"))
		return
	}

	results, err := s.EntitlementManager.BulkSetActivation(ctx, BulkOption{
		UserIDs:   req.UserIDs,
		ServiceID: req.ServiceID,
		Operation: op,
		ActorID:   claims.ID,
	})
	if errors.Is(err, ErrUnknownService) {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find service with specific ID"))
		return
	}
	if err != nil {
		logger.Error("Unable to run bulk operation",
			zap.Error(err),
			zap.String("ServiceID", req.ServiceID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to run bulk operation"))
		return
	}

	resp.WriteResponse(w, r, results)
}

// Router will return the routes under entitlement API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/matrix", s.getMatrix)
	r.Post("/bulk", s.bulkSetActivation)

	return r
}
