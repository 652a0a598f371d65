package entitlement

import (
	"context"
	"fmt"

	"github.com/swiftdial/console/activation"
	"github.com/swiftdial/console/broker"
	"github.com/swiftdial/console/catalog"
	"github.com/swiftdial/console/subscription"

	"go.uber.org/zap"
)

// CellStatus is the per-(user, service) status shown on the entitlement matrix
type CellStatus string

// Defining the matrix cell statuses
const (
	CellAvailable   CellStatus = "available"
	CellPending     CellStatus = "pending"
	CellActive      CellStatus = "active"
	CellSuspended   CellStatus = "suspended"
	CellNotEligible CellStatus = "notEligible"
)

// Cell is one entry of the users × services matrix
type Cell struct {
	ServiceID      string     `json:"serviceId"`
	Status         CellStatus `json:"status"`
	CanToggle      bool       `json:"canToggle"`
	SubscriptionID string     `json:"subscriptionId,omitempty"`
	RequestID      string     `json:"requestId,omitempty"`
}

// Row holds one user's cells, aligned with Matrix.Services
type Row struct {
	UserID string `json:"userId"`
	Cells  []Cell `json:"cells"`
}

// Matrix is the read model joining the catalog, the subscription store and the
// pending activation requests for a set of users
type Matrix struct {
	Services []catalog.Service `json:"services"`
	Rows     []Row             `json:"rows"`
}

// ManagerOptions contains the configuration for the entitlement Manager
type ManagerOptions struct {
	CatalogManager      *catalog.Manager
	SubscriptionManager *subscription.Manager
	RequestManager      *activation.Manager
	Producer            broker.Producer
	Logger              *zap.Logger
}

// Manager computes the entitlement matrix and executes bulk activation commands
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for the entitlement read model
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.CatalogManager == nil {
		return nil, fmt.Errorf("nil CatalogManager is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.RequestManager == nil {
		return nil, fmt.Errorf("nil RequestManager is invalid")
	}
	if option.Producer == nil {
		return nil, fmt.Errorf("nil Producer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// MatrixOption selects the users of the matrix. Ineligible carries
// the precomputed business-rule disqualifications of the callers
type MatrixOption struct {
	UserIDs    []string
	Ineligible map[string]bool
}

type pairKey struct {
	userID    string
	serviceID string
}

// GetMatrix produces the per-cell status for all given users against the full catalog
func (m *Manager) GetMatrix(ctx context.Context, opt MatrixOption) (*Matrix, error) {
	if len(opt.UserIDs) == 0 {
		return nil, fmt.Errorf("at least one UserID is required")
	}

	services, err := m.CatalogManager.List(ctx, catalog.ListOption{})
	if err != nil {
		return nil, err
	}
	subs, err := m.SubscriptionManager.ListByUsers(ctx, opt.UserIDs)
	if err != nil {
		return nil, err
	}
	pending, err := m.RequestManager.ListPendingByUsers(ctx, opt.UserIDs)
	if err != nil {
		return nil, err
	}

	subByPair := make(map[pairKey]*subscription.Subscription, len(subs))
	for k := range subs {
		subByPair[pairKey{subs[k].UserID, subs[k].ServiceID}] = &subs[k]
	}
	requestByPair := make(map[pairKey]*activation.ActivationRequest, len(pending))
	for k := range pending {
		requestByPair[pairKey{pending[k].UserID, pending[k].ServiceID}] = &pending[k]
	}

	rows := make([]Row, 0, len(opt.UserIDs))
	for _, userID := range opt.UserIDs {
		cells := make([]Cell, 0, len(services))
		for _, svc := range services {
			cells = append(cells, buildCell(
				userID,
				svc,
				subByPair[pairKey{userID, svc.ID}],
				requestByPair[pairKey{userID, svc.ID}],
				opt.Ineligible[userID],
			))
		}
		rows = append(rows, Row{
			UserID: userID,
			Cells:  cells,
		})
	}

	return &Matrix{
		Services: services,
		Rows:     rows,
	}, nil
}

// buildCell resolves one (user, service) pair. An existing non-cancelled
// subscription wins over the service's active flag: deactivating a service
// hides it from new requests but never disturbs existing entitlements
func buildCell(userID string, svc catalog.Service, sub *subscription.Subscription, req *activation.ActivationRequest, ineligible bool) Cell {
	cell := Cell{
		ServiceID: svc.ID,
	}
	if sub != nil {
		cell.SubscriptionID = sub.ID
		switch sub.Status {
		case subscription.StatusActive:
			cell.Status = CellActive
			cell.CanToggle = true
			return cell
		case subscription.StatusSuspended:
			cell.Status = CellSuspended
			cell.CanToggle = true
			return cell
		case subscription.StatusPending:
			cell.Status = CellPending
			cell.CanToggle = true
			return cell
		case subscription.StatusCancelled:
			// a cancelled subscription is terminal, the pair cannot come back
			cell.Status = CellNotEligible
			cell.CanToggle = false
			return cell
		}
	}
	if ineligible || !svc.IsActive {
		cell.Status = CellNotEligible
		cell.CanToggle = false
		return cell
	}
	if req != nil {
		cell.Status = CellPending
		cell.RequestID = req.ID
		cell.CanToggle = true
		return cell
	}
	cell.Status = CellAvailable
	cell.CanToggle = true
	return cell
}
