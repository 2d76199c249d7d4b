package store

import (
	"fmt"

	"dogao/order-service/internal/models"
)

const (
	ActionStartPreparing = "start_preparing"
	ActionMoveToReady    = "move_to_ready"
	ActionMarkExpedition = "mark_expedition"
	ActionAssignDelivery = "assign_delivery"
	ActionFinish         = "finish"
	ActionCancel         = "cancel"
)

const (
	fulfillmentAny      = ""
	fulfillmentPickup   = "pickup"
	fulfillmentDelivery = "delivery"
)

// OrderTransition describes one status-changing action on an order.
type OrderTransition struct {
	Action      string
	From        []string
	To          string
	fulfillment string
}

var transitionMap = map[string]OrderTransition{
	ActionStartPreparing: {
		From: []string{models.StatusPending},
		To:   models.StatusPreparing,
	},
	ActionMoveToReady: {
		From: []string{models.StatusPending, models.StatusPreparing},
		To:   models.StatusReady,
	},
	ActionMarkExpedition: {
		From:        []string{models.StatusReady},
		To:          models.StatusExpedition,
		fulfillment: fulfillmentPickup,
	},
	ActionAssignDelivery: {
		From:        []string{models.StatusReady},
		To:          models.StatusOutForDelivery,
		fulfillment: fulfillmentDelivery,
	},
	ActionFinish: {
		From: []string{models.StatusOutForDelivery, models.StatusExpedition},
		To:   models.StatusDelivered,
	},
	ActionCancel: {
		From: []string{models.StatusPending, models.StatusPreparing, models.StatusReady, models.StatusExpedition, models.StatusOutForDelivery},
		To:   models.StatusCancelled,
	},
}

func LookupTransition(action string) (OrderTransition, bool) {
	tr, ok := transitionMap[action]
	if !ok {
		return OrderTransition{}, false
	}
	tr.Action = action
	return tr, true
}

func ValidTransition(action, fromStatus string) bool {
	tr, ok := transitionMap[action]
	if !ok {
		return false
	}
	return tr.allowsStatus(fromStatus)
}

// Check returns nil when order may take this transition, otherwise an
// error wrapping ErrInvalidState that names the blocking condition.
func (t OrderTransition) Check(order models.Order) error {
	switch {
	case models.IsTerminalStatus(order.Status):
		return fmt.Errorf("%w: order %s is already %s", ErrInvalidState, order.OrderNumber, order.Status)
	case !ValidTransition(t.Action, order.Status):
		return fmt.Errorf("%w: %s is not allowed from %s", ErrInvalidState, t.Action, order.Status)
	case !t.AllowsFulfillment(order.IsTelevendas):
		return fmt.Errorf("%w: %s does not match the order fulfillment", ErrInvalidState, t.Action)
	}
	return nil
}

func (t OrderTransition) AllowsFulfillment(televendas bool) bool {
	switch t.fulfillment {
	case fulfillmentPickup:
		return !televendas
	case fulfillmentDelivery:
		return televendas
	default:
		return true
	}
}

// RequiresTelevendas returns the fulfillment constraint, if any.
func (t OrderTransition) RequiresTelevendas() (value bool, constrained bool) {
	switch t.fulfillment {
	case fulfillmentPickup:
		return false, true
	case fulfillmentDelivery:
		return true, true
	default:
		return false, false
	}
}

func (t OrderTransition) allowsStatus(status string) bool {
	for _, from := range t.From {
		if from == status {
			return true
		}
	}
	return false
}
