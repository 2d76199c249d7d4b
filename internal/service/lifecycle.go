package service

import (
	"context"
	"fmt"
	"strings"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/notify"
	"dogao/order-service/internal/store"

	"github.com/shopspring/decimal"
)

const manualSaleCustomerPrefix = "ACERTO DA CÉLULA - "

type OrderItemInput struct {
	ItemName           string
	Quantity           int
	UnitPrice          *decimal.Decimal
	RemovedIngredients []string
	Observations       string
	CountInSales       *bool
}

type CreateOrderInput struct {
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	PaymentMethod   string
	IsTelevendas    bool
	TicketNumbers   []string
	Items           []OrderItemInput
}

type ManualSaleInput struct {
	CellName string
	Quantity int
}

// Queue names for the kitchen and fulfillment boards.
const (
	QueueProduction = "production"
	QueueDelivery   = "delivery"
	QueueExpedition = "expedition"
)

// QueueFilter returns the order filter behind a named queue.
func QueueFilter(name string) (store.OrderFilter, bool) {
	televendas := true
	pickup := false
	switch name {
	case QueueProduction:
		return store.OrderFilter{Statuses: []string{models.StatusPending, models.StatusPreparing}}, true
	case QueueDelivery:
		return store.OrderFilter{Statuses: []string{models.StatusReady, models.StatusOutForDelivery}, Televendas: &televendas}, true
	case QueueExpedition:
		return store.OrderFilter{Statuses: []string{models.StatusReady, models.StatusExpedition}, Televendas: &pickup}, true
	default:
		return store.OrderFilter{}, false
	}
}

func (s *Service) removedIngredients(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		name, ok := s.catalog.Ingredient(value)
		if !ok {
			return nil, invalid("removed_ingredients", fmt.Sprintf("unknown ingredient %q", value))
		}
		out = append(out, name)
	}
	return store.UniqueNumbers(out), nil
}

// CreateOrder registers a counter or televendas sale on the active edition.
// Ticket-paid orders consume their tickets in the same transaction and do not
// count against capacity.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (models.Order, error) {
	storeInput, err := s.buildOrder(input)
	if err != nil {
		return models.Order{}, err
	}

	edition, err := s.store.ActiveEdition(ctx)
	if err != nil {
		return models.Order{}, err
	}
	storeInput.EditionID = edition.EditionID
	total := decimal.Zero
	for i := range storeInput.Items {
		item := &storeInput.Items[i]
		if input.Items[i].UnitPrice == nil {
			item.UnitPrice = edition.UnitPrice
		}
		item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(item.TotalPrice)
	}
	if storeInput.IsTicket {
		total = decimal.Zero
	}
	storeInput.TotalValue = total

	order, err := s.store.CreateOrder(ctx, storeInput)
	if err != nil {
		return models.Order{}, err
	}

	s.publish(EventOrderCreated, order)
	s.send(ctx, "purchase_confirmation", order.CustomerPhone, notify.PurchaseConfirmation(order))
	return order, nil
}

// buildOrder validates the request against the catalog before any store
// access.
func (s *Service) buildOrder(input CreateOrderInput) (store.CreateOrderInput, error) {
	out := store.CreateOrderInput{
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerPhone:   strings.TrimSpace(input.CustomerPhone),
		CustomerAddress: strings.TrimSpace(input.CustomerAddress),
		PaymentMethod:   strings.TrimSpace(input.PaymentMethod),
		IsTelevendas:    input.IsTelevendas,
		Status:          models.StatusPending,
		CreatedAt:       s.now(),
	}
	if out.CustomerName == "" {
		return store.CreateOrderInput{}, invalid("customer_name", "required")
	}
	if _, ok := s.catalog.PaymentMethod(out.PaymentMethod); !ok {
		return store.CreateOrderInput{}, invalid("payment_method", fmt.Sprintf("unknown payment method %q", out.PaymentMethod))
	}
	if out.IsTelevendas {
		if out.CustomerAddress == "" {
			return store.CreateOrderInput{}, invalid("customer_address", "required for delivery")
		}
		if notify.NormalizePhone(out.CustomerPhone) == "" {
			return store.CreateOrderInput{}, invalid("customer_phone", "required for delivery")
		}
	}

	out.IsTicket = out.PaymentMethod == models.PaymentTicket
	out.CountInSales = !out.IsVoucher && !out.IsTicket
	if out.IsTicket {
		numbers, err := validateTicketNumbers(input.TicketNumbers)
		if err != nil {
			return store.CreateOrderInput{}, err
		}
		out.TicketNumbers = numbers
	} else if len(input.TicketNumbers) > 0 {
		return store.CreateOrderInput{}, invalid("ticket_numbers", "only allowed with ticket payment")
	}

	if len(input.Items) == 0 {
		return store.CreateOrderInput{}, invalid("items", "at least one item is required")
	}
	for i, item := range input.Items {
		if item.Quantity <= 0 {
			return store.CreateOrderInput{}, invalid(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		removed, err := s.removedIngredients(item.RemovedIngredients)
		if err != nil {
			return store.CreateOrderInput{}, err
		}
		name := strings.TrimSpace(item.ItemName)
		if name == "" {
			name = s.catalog.Item.Name
		}
		counts := true
		if item.CountInSales != nil {
			counts = *item.CountInSales
		}
		var price decimal.Decimal
		if item.UnitPrice != nil {
			if item.UnitPrice.IsNegative() {
				return store.CreateOrderInput{}, invalid(fmt.Sprintf("items[%d].unit_price", i), "must not be negative")
			}
			price = *item.UnitPrice
		}
		out.Items = append(out.Items, store.OrderItemInput{
			ItemName:           name,
			Quantity:           item.Quantity,
			UnitPrice:          price,
			RemovedIngredients: removed,
			Observations:       strings.TrimSpace(item.Observations),
			CountInSales:       counts,
		})
	}
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	return s.store.ListOrders(ctx, filter)
}

// Queue lists the orders on a named board of the active edition.
func (s *Service) Queue(ctx context.Context, name string) ([]models.Order, error) {
	filter, ok := QueueFilter(name)
	if !ok {
		return nil, invalid("queue", fmt.Sprintf("unknown queue %q", name))
	}
	if edition, err := s.store.ActiveEdition(ctx); err == nil {
		filter.EditionID = edition.EditionID
	}
	return s.store.ListOrders(ctx, filter)
}

type TransitionInput struct {
	OrderID          string
	Action           string
	DeliveryPersonID string
}

// Transition applies a lifecycle action to an order. Assigning a delivery
// also notifies the customer and the courier, each independently.
func (s *Service) Transition(ctx context.Context, input TransitionInput) (models.Order, error) {
	if _, ok := store.LookupTransition(input.Action); !ok {
		return models.Order{}, invalid("action", fmt.Sprintf("unknown action %q", input.Action))
	}
	if input.Action == store.ActionAssignDelivery && strings.TrimSpace(input.DeliveryPersonID) == "" {
		return models.Order{}, invalid("delivery_person_id", "required")
	}

	order, err := s.store.TransitionOrder(ctx, store.TransitionInput{
		OrderID:          input.OrderID,
		Action:           input.Action,
		DeliveryPersonID: strings.TrimSpace(input.DeliveryPersonID),
		OccurredAt:       s.now(),
	})
	if err != nil {
		return models.Order{}, err
	}
	s.publish(EventOrderUpdated, order)

	if input.Action == store.ActionAssignDelivery {
		s.notifyDispatch(ctx, order)
	}
	return order, nil
}

func (s *Service) notifyDispatch(ctx context.Context, order models.Order) {
	if order.DeliveryPersonID == nil {
		return
	}
	courier, err := s.store.GetDeliveryPerson(ctx, *order.DeliveryPersonID)
	if err != nil {
		courier = models.DeliveryPerson{Name: "nosso entregador"}
	}
	s.send(ctx, "delivery_dispatch", order.CustomerPhone, notify.DeliveryDispatch(order, courier.Name))
	s.send(ctx, "delivery_instructions", courier.Phone, notify.DeliveryInstructions([]models.Order{order}))
}

// RecordManualSale books an after-the-fact cash settlement for a cell group
// directly as delivered.
func (s *Service) RecordManualSale(ctx context.Context, editionID string, input ManualSaleInput) (models.Order, error) {
	cell, ok := s.catalog.CellGroup(input.CellName)
	if !ok {
		return models.Order{}, invalid("cell_name", fmt.Sprintf("unknown cell group %q", input.CellName))
	}
	if input.Quantity <= 0 {
		return models.Order{}, invalid("quantity", "must be positive")
	}

	edition, err := s.store.GetEdition(ctx, editionID)
	if err != nil {
		return models.Order{}, err
	}
	total := edition.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity)))

	order, err := s.store.CreateOrder(ctx, store.CreateOrderInput{
		EditionID:     edition.EditionID,
		CustomerName:  manualSaleCustomerPrefix + cell,
		CustomerPhone: "N/A",
		PaymentMethod: models.PaymentCash,
		TotalValue:    total,
		CountInSales:  true,
		CellName:      cell,
		Status:        models.StatusDelivered,
		Items: []store.OrderItemInput{{
			ItemName:     s.catalog.Item.Name,
			Quantity:     input.Quantity,
			UnitPrice:    edition.UnitPrice,
			TotalPrice:   total,
			CountInSales: true,
		}},
		CreatedAt: s.now(),
	})
	if err != nil {
		return models.Order{}, err
	}
	s.publish(EventOrderCreated, order)
	return order, nil
}
