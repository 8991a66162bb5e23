// Package delivery holds the rider state machine as data: every transition
// names its allowed predecessors and its target status.
package delivery

import (
	"fmt"

	"servizephyr/internal/model"
)

// Transition names accepted by the rider endpoints.
const (
	ReachedRestaurant = "reached_restaurant"
	PickUp            = "pick_up"
	StartDelivery     = "start_delivery"
	Deliver           = "deliver"
	AttemptDelivery   = "attempt_delivery"
	MarkFailed        = "mark_failed"
	ReturnOrder       = "return_order"
)

// Transition is one edge of the delivery graph.
type Transition struct {
	Name string
	From []model.OrderStatus
	To   model.OrderStatus

	// RecordsFailure transitions store a failure reason and timestamp.
	RecordsFailure bool
}

var table = []Transition{
	{Name: ReachedRestaurant, From: []model.OrderStatus{model.StatusDispatched}, To: model.StatusReachedRestaurant},
	{Name: PickUp, From: []model.OrderStatus{model.StatusReachedRestaurant}, To: model.StatusPickedUp},
	{Name: StartDelivery, From: []model.OrderStatus{model.StatusPickedUp}, To: model.StatusOnTheWay},
	{Name: Deliver, From: []model.OrderStatus{model.StatusOnTheWay}, To: model.StatusDelivered},
	{Name: AttemptDelivery, From: []model.OrderStatus{model.StatusOnTheWay}, To: model.StatusDeliveryAttempted, RecordsFailure: true},
	{Name: MarkFailed, From: []model.OrderStatus{model.StatusDeliveryAttempted}, To: model.StatusFailedDelivery, RecordsFailure: true},
	{Name: ReturnOrder, From: []model.OrderStatus{model.StatusFailedDelivery}, To: model.StatusReturnedToRestaurant},
}

var (
	byName   = make(map[string]Transition, len(table))
	byTarget = make(map[model.OrderStatus]Transition, len(table))
)

func init() {
	for _, t := range table {
		byName[t.Name] = t
		byTarget[t.To] = t
	}
}

// Transitions returns the full graph in forward order.
func Transitions() []Transition {
	out := make([]Transition, len(table))
	copy(out, table)
	return out
}

// Lookup finds a transition by name.
func Lookup(name string) (Transition, bool) {
	t, ok := byName[name]
	return t, ok
}

// TransitionTo finds the transition that ends in target.
func TransitionTo(target model.OrderStatus) (Transition, bool) {
	t, ok := byTarget[target]
	return t, ok
}

// Allows reports whether an order in status current may take this transition.
func (t Transition) Allows(current model.OrderStatus) bool {
	for _, from := range t.From {
		if from == current {
			return true
		}
	}
	return false
}

// ReleasesRider reports whether the target leaves the rider-active set.
func (t Transition) ReleasesRider() bool {
	return !model.IsRiderActive(t.To)
}

// Next resolves (current, transition) to the next status.
func Next(current model.OrderStatus, name string) (model.OrderStatus, error) {
	t, ok := byName[name]
	if !ok {
		return "", model.NewValidationError(fmt.Sprintf("unknown transition %q", name))
	}
	if !t.Allows(current) {
		return "", model.NewInvalidStateError(
			fmt.Sprintf("cannot %s an order in status %s", name, current))
	}
	return t.To, nil
}
