package subscription

// Status is the custom type to define the current lifecycle status of a Subscription
type Status string

// Defining the Subscription lifecycle statuses
const (
	StatusPending   Status = "Pending"
	StatusActive    Status = "Active"
	StatusSuspended Status = "Suspended"
	StatusCancelled Status = "Cancelled"
)

// transitions defines the allowed status transitions. Cancelled is terminal
var transitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusCancelled},
	StatusActive:    {StatusSuspended, StatusCancelled},
	StatusSuspended: {StatusActive, StatusCancelled},
	StatusCancelled: {},
}

// CanTransition reports if moving a Subscription from one status to another is allowed
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Valid reports if the Status is one of the defined statuses
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}
