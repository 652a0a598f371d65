package billing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type TaskOptions struct {
	BillingManager *Manager
	Interval       time.Duration
	Logger         *zap.Logger
}

// Task periodically reconciles billing flags against the payment gateway, so
// a lost webhook delivery does not strand a paid subscription
type Task struct {
	TaskOptions
}

func NewTask(option TaskOptions) (*Task, error) {
	if option.BillingManager == nil {
		return nil, fmt.Errorf("nil BillingManager is invalid")
	}
	if option.Interval <= 0 {
		return nil, fmt.Errorf("non-positive Interval is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Task{
		TaskOptions: option,
	}, nil
}

// Run starts the reconciliation loop. It returns immediately; the loop stops
// when ctx is cancelled
func (t *Task) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.BillingManager.Reconcile(ctx); err != nil {
					t.Logger.Error("Billing reconciliation failed",
						zap.Error(err),
					)
				}
			}
		}
	}()
}
