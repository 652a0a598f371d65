package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testManager(t *testing.T) *Manager {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	manager, err := NewManager(zap.NewNop(), db)
	require.NoError(t, err)

	return manager
}

func seedService(t *testing.T, m *Manager, name string, serviceType ServiceType, active bool) *Service {
	svc := Service{
		Name: name,
		Type: serviceType,
		SetupFee: Money{
			AmountInCents: 500000,
			Currency:      "kes",
		},
		MonthlyFee: Money{
			AmountInCents: 100000,
			Currency:      "kes",
		},
		TransactionFee: TransactionFee{
			Kind:   FeeFixed,
			Amount: 100,
		},
		IsActive: active,
	}
	require.NoError(t, m.Create(context.Background(), &svc))
	return &svc
}

func TestCreateMintsID(t *testing.T) {
	m := testManager(t)

	svc := seedService(t, m, "Bulk SMS", TypeSMS, true)
	require.NotEmpty(t, svc.ID)

	got, err := m.GetByID(context.Background(), svc.ID)
	require.NoError(t, err)
	require.Equal(t, "Bulk SMS", got.Name)
	require.Equal(t, int64(500000), got.SetupFee.AmountInCents)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	m := testManager(t)

	svc := Service{
		Name: "Carrier Pigeon",
		Type: ServiceType("pigeon"),
	}
	require.Error(t, m.Create(context.Background(), &svc))
}

func TestListFilters(t *testing.T) {
	m := testManager(t)

	seedService(t, m, "Bulk SMS", TypeSMS, true)
	seedService(t, m, "Legacy USSD", TypeUSSD, false)
	seedService(t, m, "Surveys", TypeSurvey, true)

	all, err := m.List(context.Background(), ListOption{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	active, err := m.List(context.Background(), ListOption{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)

	ussd, err := m.List(context.Background(), ListOption{Type: TypeUSSD})
	require.NoError(t, err)
	require.Len(t, ussd, 1)
	require.Equal(t, "Legacy USSD", ussd[0].Name)
}

func TestUpdateAppliesPatch(t *testing.T) {
	m := testManager(t)
	svc := seedService(t, m, "Bulk SMS", TypeSMS, true)

	name := "Bulk SMS Plus"
	premium := true
	fee := Money{AmountInCents: 750000, Currency: "kes"}
	updated, err := m.Update(context.Background(), svc.ID, Patch{
		Name:      &name,
		SetupFee:  &fee,
		IsPremium: &premium,
	})
	require.NoError(t, err)
	require.Equal(t, "Bulk SMS Plus", updated.Name)
	require.Equal(t, int64(750000), updated.SetupFee.AmountInCents)
	require.True(t, updated.IsPremium)
	// untouched fields survive
	require.Equal(t, int64(100000), updated.MonthlyFee.AmountInCents)
	require.Equal(t, TypeSMS, updated.Type)
}

func TestUpdateNotFound(t *testing.T) {
	m := testManager(t)

	name := "whatever"
	_, err := m.Update(context.Background(), "no-such-id", Patch{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetActiveFlips(t *testing.T) {
	m := testManager(t)
	svc := seedService(t, m, "Bulk SMS", TypeSMS, true)

	updated, err := m.SetActive(context.Background(), svc.ID, false)
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	updated, err = m.SetActive(context.Background(), svc.ID, true)
	require.NoError(t, err)
	require.True(t, updated.IsActive)
}

func TestGetByIDReturnsNilWhenMissing(t *testing.T) {
	m := testManager(t)

	svc, err := m.GetByID(context.Background(), "no-such-id")
	require.NoError(t, err)
	require.Nil(t, svc)
}
