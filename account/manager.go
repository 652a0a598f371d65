package account

import (
	"context"
	"errors"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Accounts
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for accounts
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Account{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize account.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// NewAccount will create a new account profile in the database
func (m *Manager) NewAccount(ctx context.Context, email string) (*Account, error) {
	newAccount := &Account{
		ID:    shortuuid.New(),
		Email: email,
	}

	result := m.db.WithContext(ctx).Create(newAccount)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create a new Account")
	}

	return newAccount, nil
}

// GetByID will try to return the account in the database by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Account, error) {
	var acct Account

	result := m.db.WithContext(ctx).First(&acct, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get account by id")
	}

	return &acct, nil
}

// GetByEmail will try to return the account in the database by email address
func (m *Manager) GetByEmail(ctx context.Context, email string) (*Account, error) {
	var acct Account

	result := m.db.WithContext(ctx).First(&acct, "email = ?", email)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get account by email")
	}

	return &acct, nil
}

// List returns all accounts, newest first
func (m *Manager) List(ctx context.Context) ([]Account, error) {
	results := make([]Account, 0, 16)
	result := m.db.WithContext(ctx).Order("created_at desc").Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return results, nil
}

// SetSuspended flips the suspension flag of an account. Suspension feeds the
// entitlement matrix's ineligibility input and does not touch subscriptions
func (m *Manager) SetSuspended(ctx context.Context, id string, suspended bool) (*Account, error) {
	result := m.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Update("suspended", suspended)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update account suspension")
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return m.GetByID(ctx, id)
}
