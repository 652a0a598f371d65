package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sentinel errors of the activation request workflow
var (
	ErrNotFound           = fmt.Errorf("activation: request not found")
	ErrAlreadyResolved    = fmt.Errorf("activation: request already resolved")
	ErrConflict           = fmt.Errorf("activation: a pending request already exists")
	ErrServiceUnavailable = fmt.Errorf("activation: service is not available for requests")
)

// ManagerOptions contains the configuration for the activation Manager
type ManagerOptions struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// Manager handles the database read operations relating to ActivationRequests.
// Mutations go through the Workflow
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for activation requests
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if err := option.DB.AutoMigrate(&ActivationRequest{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize activation.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// GetByID will try to return the ActivationRequest by id
func (m *Manager) GetByID(ctx context.Context, id string) (*ActivationRequest, error) {
	var req ActivationRequest
	result := m.DB.WithContext(ctx).First(&req, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get request by id")
	}

	return &req, nil
}

// ListOption filters the request listing
type ListOption struct {
	UserID string
	Status Status
	Before time.Time
	Limit  int
}

// List returns activation requests, newest first
func (m *Manager) List(ctx context.Context, opt ListOption) ([]ActivationRequest, error) {
	baseQuery := m.DB.WithContext(ctx).Order("requested_at desc")
	if len(opt.UserID) > 0 {
		baseQuery = baseQuery.Where("user_id = ?", opt.UserID)
	}
	if len(opt.Status) > 0 {
		baseQuery = baseQuery.Where("status = ?", opt.Status)
	}
	if !opt.Before.IsZero() {
		baseQuery = baseQuery.Where("requested_at < ?", opt.Before)
	}
	if opt.Limit > 0 {
		baseQuery = baseQuery.Limit(opt.Limit)
	}
	results := make([]ActivationRequest, 0, 8)
	result := baseQuery.Find(&results)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// ListPendingByUsers returns the pending requests of the given users, for the entitlement matrix
func (m *Manager) ListPendingByUsers(ctx context.Context, userIDs []string) ([]ActivationRequest, error) {
	if len(userIDs) == 0 {
		return []ActivationRequest{}, nil
	}
	results := make([]ActivationRequest, 0, len(userIDs))
	result := m.DB.WithContext(ctx).
		Where("status = ?", StatusPending).
		Find(&results, "user_id IN ?", userIDs)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}
