package subscription

import (
	"context"
	"testing"
	"time"

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

	manager, err := NewManager(ManagerOptions{
		DB:     db,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	return manager
}

func seedSubscription(t *testing.T, m *Manager, status Status) *Subscription {
	sub := Subscription{
		UserID:    "user-1",
		ServiceID: "svc-1",
	}
	require.NoError(t, m.Create(context.Background(), &sub))
	if status != StatusPending {
		// bypass the transition table to set up the starting point
		require.NoError(t, m.DB.Model(&Subscription{}).Where("id = ?", sub.ID).Update("status", status).Error)
		sub.Status = status
	}
	return &sub
}

func TestCreateDefaultsToPending(t *testing.T) {
	m := testManager(t)

	sub := Subscription{
		UserID:    "user-1",
		ServiceID: "svc-1",
	}
	require.NoError(t, m.Create(context.Background(), &sub))

	require.NotEmpty(t, sub.ID)
	require.Equal(t, StatusPending, sub.Status)
	require.False(t, sub.SetupFeePaid)
	require.False(t, sub.MonthlyBillingActive)
	require.Nil(t, sub.ActivatedAt)
}

func TestCreateRejectsDuplicatePair(t *testing.T) {
	m := testManager(t)
	seedSubscription(t, m, StatusPending)

	dup := Subscription{
		UserID:    "user-1",
		ServiceID: "svc-1",
	}
	require.ErrorIs(t, m.Create(context.Background(), &dup), ErrConflict)
}

func TestSetStatusFollowsTransitionTable(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusActive, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusSuspended, false},
		{StatusActive, StatusSuspended, true},
		{StatusActive, StatusCancelled, true},
		{StatusActive, StatusPending, false},
		{StatusSuspended, StatusActive, true},
		{StatusSuspended, StatusCancelled, true},
		{StatusSuspended, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusActive, false},
		{StatusCancelled, StatusSuspended, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			m := testManager(t)
			sub := seedSubscription(t, m, tc.from)

			updated, err := m.SetStatus(context.Background(), sub.ID, tc.to)
			if !tc.allowed {
				require.ErrorIs(t, err, ErrInvalidTransition)
				current, getErr := m.GetByID(context.Background(), sub.ID)
				require.NoError(t, getErr)
				require.Equal(t, tc.from, current.Status)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.to, updated.Status)
		})
	}
}

func TestSetStatusStampsActivatedAtOnce(t *testing.T) {
	m := testManager(t)
	sub := seedSubscription(t, m, StatusPending)

	activated, err := m.SetStatus(context.Background(), sub.ID, StatusActive)
	require.NoError(t, err)
	require.NotNil(t, activated.ActivatedAt)
	first := *activated.ActivatedAt

	_, err = m.SetStatus(context.Background(), sub.ID, StatusSuspended)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	reactivated, err := m.SetStatus(context.Background(), sub.ID, StatusActive)
	require.NoError(t, err)
	require.NotNil(t, reactivated.ActivatedAt)
	require.WithinDuration(t, first, *reactivated.ActivatedAt, time.Millisecond)
}

func TestSetStatusNotFound(t *testing.T) {
	m := testManager(t)

	_, err := m.SetStatus(context.Background(), "no-such-id", StatusActive)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSuspensionPreservesBillingFlags(t *testing.T) {
	m := testManager(t)
	sub := seedSubscription(t, m, StatusActive)

	paid := true
	active := true
	_, err := m.SetBillingFlags(context.Background(), sub.ID, BillingFlags{
		SetupFeePaid:         &paid,
		MonthlyBillingActive: &active,
	})
	require.NoError(t, err)

	_, err = m.SetStatus(context.Background(), sub.ID, StatusSuspended)
	require.NoError(t, err)

	current, err := m.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, current.Status)
	require.True(t, current.SetupFeePaid)
	require.True(t, current.MonthlyBillingActive)
}

func TestMonthlyBillingRequiresSetupFee(t *testing.T) {
	m := testManager(t)
	sub := seedSubscription(t, m, StatusActive)

	active := true
	_, err := m.SetBillingFlags(context.Background(), sub.ID, BillingFlags{
		MonthlyBillingActive: &active,
	})
	require.ErrorIs(t, err, ErrValidation)

	current, err := m.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.False(t, current.MonthlyBillingActive)

	paid := true
	_, err = m.SetBillingFlags(context.Background(), sub.ID, BillingFlags{
		SetupFeePaid: &paid,
	})
	require.NoError(t, err)

	updated, err := m.SetBillingFlags(context.Background(), sub.ID, BillingFlags{
		MonthlyBillingActive: &active,
	})
	require.NoError(t, err)
	require.True(t, updated.SetupFeePaid)
	require.True(t, updated.MonthlyBillingActive)
}

func TestSetBillingFlagsBothAtOnce(t *testing.T) {
	m := testManager(t)
	sub := seedSubscription(t, m, StatusActive)

	paid := true
	active := true
	updated, err := m.SetBillingFlags(context.Background(), sub.ID, BillingFlags{
		SetupFeePaid:         &paid,
		MonthlyBillingActive: &active,
	})
	require.NoError(t, err)
	require.True(t, updated.SetupFeePaid)
	require.True(t, updated.MonthlyBillingActive)
}

func TestGetReturnsNilWhenMissing(t *testing.T) {
	m := testManager(t)

	sub, err := m.Get(context.Background(), "user-1", "svc-1")
	require.NoError(t, err)
	require.Nil(t, sub)
}

func TestListByUsers(t *testing.T) {
	m := testManager(t)

	for _, pair := range []struct{ user, service string }{
		{"user-1", "svc-1"},
		{"user-1", "svc-2"},
		{"user-2", "svc-1"},
		{"user-3", "svc-1"},
	} {
		sub := Subscription{
			UserID:    pair.user,
			ServiceID: pair.service,
		}
		require.NoError(t, m.Create(context.Background(), &sub))
	}

	subs, err := m.ListByUsers(context.Background(), []string{"user-1", "user-2"})
	require.NoError(t, err)
	require.Len(t, subs, 3)
}
