package account

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/swiftdial/console/auth"
	resp "github.com/swiftdial/console/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// Options contains the configuration for Service router
type Options struct {
	Auth           *auth.Auth
	AccountManager *Manager
	Logger         *zap.Logger
}

// Service is the account API router
type Service struct {
	Options
}

// LoginRequest is the model of user request for login pin
type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// NewService will create an instance of the account API router
func NewService(option Options) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.AccountManager == nil {
		return nil, fmt.Errorf("nil AccountManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

func (s *Service) requestLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger := s.Logger.With(zap.String("email", req.Email))

	if err := validate.Struct(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Auth.Request(r.Context(), req.Email, req.Email); err != nil {
		logger.Error("Unable to send login PIN",
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := chi.URLParam(r, "uid")
	token := chi.URLParam(r, "token")

	logger := s.Logger.With(zap.String("email", email))

	valid, err := s.Auth.Verify(r.Context(), email, token)
	if err != nil {
		logger.Error("Unable to verify login PIN",
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !valid {
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}

	// "upsert" an account
	acct, err := s.AccountManager.GetByEmail(ctx, email)
	if err != nil {
		logger.Error("Unable to create Account",
			zap.Error(err),
		)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if acct == nil {
		acct, err = s.AccountManager.NewAccount(ctx, email)
		if err != nil {
			logger.Error("Unable to create Account",
				zap.Error(err),
			)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	jwtToken, err := s.Auth.CreateTokenFromClaims(auth.Claims{
		ID:    acct.ID,
		Email: acct.Email,
		Admin: acct.IsAdmin,
	})
	if err != nil {
		logger.Error("Unable to generate token",
			zap.Error(err),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Token string `json:"token"`
	}{
		Token: jwtToken,
	})
}

func (s *Service) listAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	results, err := s.AccountManager.List(ctx)
	if err != nil {
		s.Logger.Error("Unable to list accounts",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of accounts"))
		return
	}

	resp.WriteResponse(w, r, results)
}

// SetSuspendedRequest contains the suspension flag change for an account
type SetSuspendedRequest struct {
	Suspended bool `json:"suspended"`
}

func (s *Service) setSuspended(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "id")

	var req SetSuspendedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	acct, err := s.AccountManager.SetSuspended(ctx, accountID, req.Suspended)
	if err != nil {
		s.Logger.Error("Unable to update account suspension",
			zap.Error(err),
			zap.String("AccountID", accountID),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Unable to update account"))
		return
	}
	if acct == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find account with specific ID"))
		return
	}

	resp.WriteResponse(w, r, acct)
}

// Router will return the routes under account API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.requestLogin)
	r.Get("/{uid}/{token}", s.handleLogin)

	return r
}

// AdminRouter will return the account routes restricted to administrators
func (s *Service) AdminRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listAccounts)
	r.Post("/{id}/suspend", s.setSuspended)

	return r
}
