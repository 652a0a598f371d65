package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no Service with the given id exists in the catalog
var ErrNotFound = fmt.Errorf("catalog: service not found")

// Manager handles the database operations relating to the Service catalog
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for the Service catalog
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Service{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize catalog.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// Create will insert a new Service into the catalog, minting an id if none was given
func (m *Manager) Create(ctx context.Context, svc *Service) error {
	if !svc.Type.Valid() {
		return fmt.Errorf("invalid service type: %s", svc.Type)
	}
	if len(svc.ID) == 0 {
		svc.ID = shortuuid.New()
	}
	result := m.db.WithContext(ctx).Create(svc)
	if result.Error != nil {
		m.logger.Error("Unable to create new service in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot create service")
	}
	return nil
}

// ListOption filters the catalog listing
type ListOption struct {
	Type       ServiceType
	ActiveOnly bool
}

// List returns the Services in the catalog, newest first
func (m *Manager) List(ctx context.Context, opt ListOption) ([]Service, error) {
	baseQuery := m.db.WithContext(ctx).Order("created_at desc")
	if len(opt.Type) > 0 {
		baseQuery = baseQuery.Where("type = ?", opt.Type)
	}
	if opt.ActiveOnly {
		baseQuery = baseQuery.Where("is_active = ?", true)
	}
	results := make([]Service, 0, 8)
	result := baseQuery.Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// GetByID will try to return the Service in the catalog by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Service, error) {
	var svc Service

	result := m.db.WithContext(ctx).First(&svc, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get service by id")
	}

	return &svc, nil
}

// Patch describes the mutable fields of a Service. Nil fields are left untouched
type Patch struct {
	Name           *string
	SetupFee       *Money
	MonthlyFee     *Money
	TransactionFee *TransactionFee
	IsPremium      *bool
}

// Update applies the Patch to the Service with the given id.
// Existing subscriptions are unaffected: pricing changes apply to future requests only
func (m *Manager) Update(ctx context.Context, id string, patch Patch) (*Service, error) {
	updates := make(map[string]interface{})
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.SetupFee != nil {
		updates["setup_fee_amount_in_cents"] = patch.SetupFee.AmountInCents
		updates["setup_fee_currency"] = patch.SetupFee.Currency
	}
	if patch.MonthlyFee != nil {
		updates["monthly_fee_amount_in_cents"] = patch.MonthlyFee.AmountInCents
		updates["monthly_fee_currency"] = patch.MonthlyFee.Currency
	}
	if patch.TransactionFee != nil {
		updates["transaction_fee_kind"] = patch.TransactionFee.Kind
		updates["transaction_fee_amount"] = patch.TransactionFee.Amount
	}
	if patch.IsPremium != nil {
		updates["is_premium"] = *patch.IsPremium
	}
	if len(updates) == 0 {
		return m.mustGet(ctx, id)
	}
	result := m.db.WithContext(ctx).Model(&Service{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		m.logger.Error("Unable to update service",
			zap.Error(result.Error),
			zap.String("ServiceID", id),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update service")
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return m.mustGet(ctx, id)
}

// SetActive flips the IsActive flag of the Service with the given id.
// Deactivation is advisory for future activation requests and never mutates existing subscriptions
func (m *Manager) SetActive(ctx context.Context, id string, active bool) (*Service, error) {
	result := m.db.WithContext(ctx).Model(&Service{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		m.logger.Error("Unable to update service active flag",
			zap.Error(result.Error),
			zap.String("ServiceID", id),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update service active flag")
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return m.mustGet(ctx, id)
}

func (m *Manager) mustGet(ctx context.Context, id string) (*Service, error) {
	svc, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, ErrNotFound
	}
	return svc, nil
}
