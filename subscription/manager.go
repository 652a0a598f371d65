package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/swiftdial/console/catalog"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sentinel errors of the subscription store. Callers distinguish an illegal
// move (ErrInvalidTransition) from losing a race (ErrConflict)
var (
	ErrNotFound          = fmt.Errorf("subscription: not found")
	ErrConflict          = fmt.Errorf("subscription: conflicting write")
	ErrInvalidTransition = fmt.Errorf("subscription: status transition not allowed")
	ErrValidation        = fmt.Errorf("subscription: validation failed")
)

// ManagerOptions contains the configuration for the subscription Manager
type ManagerOptions struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// Manager handles the database operations relating to Subscriptions
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for subscriptions
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if err := option.DB.AutoMigrate(&Subscription{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize subscription.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// Get will try to return the Subscription for the (userID, serviceID) pair
func (m *Manager) Get(ctx context.Context, userID, serviceID string) (*Subscription, error) {
	var sub Subscription
	result := m.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("service_id = ?", serviceID).
		First(&sub)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscription")
	}

	return &sub, nil
}

// GetByID will try to return the Subscription by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	result := m.DB.WithContext(ctx).First(&sub, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get subscription by id")
	}

	return &sub, nil
}

// Create will insert a new Subscription. It fails with ErrConflict if one
// already exists for the (UserID, ServiceID) pair. The caller decides the
// initial status: Pending for the request path, Active for the admin override
func (m *Manager) Create(ctx context.Context, sub *Subscription) error {
	if len(sub.UserID) == 0 || len(sub.ServiceID) == 0 {
		return fmt.Errorf("UserID and ServiceID are required")
	}
	if len(sub.Status) == 0 {
		sub.Status = StatusPending
	}
	if !sub.Status.Valid() {
		return fmt.Errorf("invalid status: %s", sub.Status)
	}
	if len(sub.ID) == 0 {
		sub.ID = shortuuid.New()
	}
	return m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Subscription
		lookupRes := tx.
			Where("user_id = ?", sub.UserID).
			Where("service_id = ?", sub.ServiceID).
			First(&existing)
		if lookupRes.Error == nil {
			return ErrConflict
		}
		if !errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return lookupRes.Error
		}
		if result := tx.Create(sub); result.Error != nil {
			m.Logger.Error("Unable to create new subscription in database",
				zap.Error(result.Error),
			)
			return extErrors.Wrap(result.Error, "Cannot create subscription")
		}
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// SetStatus moves the Subscription to the target status, enforcing the
// transition table. The write is conditioned on the status that was read, so
// a concurrent writer cannot sneak an illegal transition past a stale read
func (m *Manager) SetStatus(ctx context.Context, id string, target Status) (*Subscription, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("invalid status: %s", target)
	}
	var updated Subscription
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Subscription
		lookupRes := tx.First(&current, "id = ?", id)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}
		if !CanTransition(current.Status, target) {
			return ErrInvalidTransition
		}

		updates := map[string]interface{}{
			"status": target,
		}
		var activatedAt *time.Time
		if target == StatusActive && current.ActivatedAt == nil {
			now := time.Now()
			activatedAt = &now
			updates["activated_at"] = now
		}

		casRes := tx.Model(&Subscription{}).
			Where("id = ?", id).
			Where("status = ?", current.Status).
			Updates(updates)
		if casRes.Error != nil {
			return casRes.Error
		}
		if casRes.RowsAffected == 0 {
			// someone else moved the status between our read and write
			return ErrConflict
		}

		updated = current
		updated.Status = target
		if activatedAt != nil {
			updated.ActivatedAt = activatedAt
		}
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// BillingFlags describes a partial update of the billing flags. Nil fields are left untouched
type BillingFlags struct {
	SetupFeePaid         *bool
	MonthlyBillingActive *bool
}

// SetBillingFlags records a payment outcome reported by the billing
// collaborator. Enabling monthly billing while the setup fee is unpaid
// fails with ErrValidation
func (m *Manager) SetBillingFlags(ctx context.Context, id string, flags BillingFlags) (*Subscription, error) {
	var updated Subscription
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Subscription
		lookupRes := tx.First(&current, "id = ?", id)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}

		desired := current
		if flags.SetupFeePaid != nil {
			desired.SetupFeePaid = *flags.SetupFeePaid
		}
		if flags.MonthlyBillingActive != nil {
			desired.MonthlyBillingActive = *flags.MonthlyBillingActive
		}
		if desired.MonthlyBillingActive && !desired.SetupFeePaid {
			return fmt.Errorf("%w: monthly billing requires the setup fee to be paid", ErrValidation)
		}

		result := tx.Model(&Subscription{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"setup_fee_paid":         desired.SetupFeePaid,
				"monthly_billing_active": desired.MonthlyBillingActive,
			})
		if result.Error != nil {
			return result.Error
		}

		updated = desired
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetConfiguration validates the tagged configuration payload against the
// service type and persists it. Nothing is written when validation fails
func (m *Manager) SetConfiguration(ctx context.Context, id string, serviceType catalog.ServiceType, cfg Configuration) (*Subscription, error) {
	if err := cfg.Validate(serviceType); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var updated Subscription
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Subscription
		lookupRes := tx.First(&current, "id = ?", id)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}
		result := tx.Model(&Subscription{}).
			Where("id = ?", id).
			Update("configuration", cfg)
		if result.Error != nil {
			return result.Error
		}
		updated = current
		updated.Configuration = cfg
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListByUser returns the subscriptions belonging to one user, newest first
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Subscription, error) {
	if len(userID) == 0 {
		return nil, fmt.Errorf("UserID is required")
	}
	results := make([]Subscription, 0, 4)
	result := m.DB.WithContext(ctx).
		Order("created_at desc").
		Find(&results, "user_id = ?", userID)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// ListByUsers returns all subscriptions of the given users, for the entitlement matrix
func (m *Manager) ListByUsers(ctx context.Context, userIDs []string) ([]Subscription, error) {
	if len(userIDs) == 0 {
		return []Subscription{}, nil
	}
	results := make([]Subscription, 0, len(userIDs))
	result := m.DB.WithContext(ctx).
		Find(&results, "user_id IN ?", userIDs)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}
