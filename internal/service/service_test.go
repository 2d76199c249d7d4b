package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/notify"
	"dogao/order-service/internal/store"
	"dogao/order-service/internal/store/sqlite"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCPF = "529.982.247-25"

type sentMessage struct {
	Phone   string
	Message string
}

type fakeNotifier struct {
	mu         sync.Mutex
	sendFn     func(phone, message string) error
	locationFn func(phone string, location notify.Location) error
	sent       []sentMessage
	locations  []string
}

func (f *fakeNotifier) Send(ctx context.Context, phone, message string) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{Phone: phone, Message: message})
	fn := f.sendFn
	f.mu.Unlock()
	if fn != nil {
		return fn(phone, message)
	}
	return nil
}

func (f *fakeNotifier) SendLocation(ctx context.Context, phone string, location notify.Location) error {
	f.mu.Lock()
	f.locations = append(f.locations, phone)
	fn := f.locationFn
	f.mu.Unlock()
	if fn != nil {
		return fn(phone, location)
	}
	return nil
}

func (f *fakeNotifier) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordedEvents) PublishOrder(eventType string, order models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType+":"+order.OrderNumber)
}

type fixture struct {
	svc      *Service
	store    *sqlite.Store
	notifier *fakeNotifier
	events   *recordedEvents
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		store:    st,
		notifier: &fakeNotifier{},
		events:   &recordedEvents{},
		now:      time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC),
	}
	f.svc = New(st, Options{
		Notifier: f.notifier,
		Events:   f.events,
		Location: time.UTC,
		Now:      func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) edition(t *testing.T, capacity int, productionOpen bool) models.Edition {
	t.Helper()
	view, err := f.svc.CreateEdition(context.Background(), EditionInput{
		Name:           "Dogão Solidário",
		ProductionDate: "2026-10-17",
		ClosingTime:    "21:00",
		UnitPrice:      decimal.RequireFromString("19.99"),
		Capacity:       capacity,
		Activate:       true,
	})
	require.NoError(t, err)
	if productionOpen {
		view, err = f.svc.SetProduction(context.Background(), view.EditionID, true)
		require.NoError(t, err)
	}
	return view.Edition
}

func claim(name string) ClaimInput {
	return ClaimInput{Name: name, Phone: "(51) 98888-7777", CPF: validCPF, AllowsContact: true}
}

func cashOrder(quantity int) CreateOrderInput {
	return CreateOrderInput{
		CustomerName:  "João",
		CustomerPhone: "51999990000",
		PaymentMethod: models.PaymentCash,
		Items:         []OrderItemInput{{Quantity: quantity}},
	}
}

func TestValidateVoucherRejectsInvalidCPFBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)
	_, err := f.svc.SeedVouchers(ctx, "DOG", 1)
	require.NoError(t, err)

	input := claim("Maria")
	input.CPF = "529.982.247-26"
	_, err = f.svc.ValidateVoucher(ctx, "DOG001", input)

	var invalidErr *InvalidInputError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "cpf", invalidErr.Field)
	assert.ErrorIs(t, err, ErrInvalidInput)

	summary, err := f.svc.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	_, err = f.svc.CheckVoucher(ctx, "DOG001")
	assert.NoError(t, err)
	assert.Empty(t, f.notifier.messages())
}

func TestValidateVoucherTwiceNamesClaimant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)
	_, err := f.svc.SeedVouchers(ctx, "DOG", 3)
	require.NoError(t, err)

	result, err := f.svc.ValidateVoucher(ctx, "dog001", claim("Maria"))
	require.NoError(t, err)
	assert.Equal(t, models.UsageValidated, result.Usage.Status)
	assert.Equal(t, "52998224725", result.Customer.CPF)
	assert.True(t, result.ProductionOpen)
	assert.False(t, result.Voucher.Used)

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Message, "Instruções para retirada")
	assert.Len(t, f.notifier.locations, 1)

	_, err = f.svc.ValidateVoucher(ctx, "DOG001", claim("Outra Pessoa"))
	var already *AlreadyValidatedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, "Maria", already.CustomerName)
	assert.ErrorIs(t, err, store.ErrAlreadyValidated)

	summary, err := f.svc.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.AllowsContact)
	require.Len(t, summary.Customers, 1)
	assert.Equal(t, validCPF, summary.Customers[0].CPF)

	_, err = f.svc.ValidateVoucher(ctx, "DOG404", claim("Maria"))
	assert.ErrorIs(t, err, store.ErrVoucherNotFound)
}

func TestValidateVoucherWithProductionClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, false)
	_, err := f.svc.SeedVouchers(ctx, "DOG", 1)
	require.NoError(t, err)

	result, err := f.svc.ValidateVoucher(ctx, "DOG001", claim("Maria"))
	require.NoError(t, err)
	assert.False(t, result.ProductionOpen)

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Message, "Produção Encerrada")
	assert.Empty(t, f.notifier.locations)
}

func TestValidateVoucherSurvivesNotifierFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)
	f.notifier.sendFn = func(string, string) error { return errors.New("whatsapp down") }
	f.notifier.locationFn = func(string, notify.Location) error { return errors.New("whatsapp down") }
	_, err := f.svc.SeedVouchers(ctx, "DOG", 1)
	require.NoError(t, err)

	_, err = f.svc.ValidateVoucher(ctx, "DOG001", claim("Maria"))
	assert.NoError(t, err)
}

func TestRedeemVoucherOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	edition := f.edition(t, 100, true)
	_, err := f.svc.SeedVouchers(ctx, "DOG", 1)
	require.NoError(t, err)

	_, err = f.svc.RedeemVoucher(ctx, "DOG001", RedeemInput{})
	assert.ErrorIs(t, err, store.ErrNotValidated)

	_, err = f.svc.ValidateVoucher(ctx, "DOG001", claim("Maria"))
	require.NoError(t, err)

	redeemable, err := f.svc.RedeemableVoucher(ctx, "DOG001")
	require.NoError(t, err)
	assert.Equal(t, "Maria", redeemable.Customer.Name)

	order, err := f.svc.RedeemVoucher(ctx, "DOG001", RedeemInput{RemovedIngredients: []string{"ervilha"}})
	require.NoError(t, err)
	assert.True(t, order.IsVoucher)
	assert.False(t, order.CountInSales)
	assert.True(t, order.TotalValue.IsZero())
	assert.Equal(t, models.StatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, []string{"Ervilha"}, order.Items[0].RemovedIngredients)

	_, err = f.svc.RedeemVoucher(ctx, "DOG001", RedeemInput{})
	assert.ErrorIs(t, err, store.ErrAlreadyRedeemed)
	_, err = f.svc.ValidateVoucher(ctx, "DOG001", claim("Maria"))
	assert.ErrorIs(t, err, store.ErrAlreadyRedeemed)
	_, err = f.svc.CheckVoucher(ctx, "DOG001")
	assert.ErrorIs(t, err, store.ErrAlreadyRedeemed)

	current, err := f.store.GetEdition(ctx, edition.EditionID)
	require.NoError(t, err)
	assert.Zero(t, current.SoldCount)
	assert.Equal(t, []string{EventOrderCreated + ":" + order.OrderNumber}, f.events.events)
}

func TestRedeemVoucherRequiresActiveEdition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.RedeemVoucher(ctx, "DOG001", RedeemInput{})
	assert.ErrorIs(t, err, store.ErrNoActiveEdition)
}

func TestTicketPaidOrderConsumesTickets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	edition := f.edition(t, 100, true)
	_, err := f.svc.SeedTickets(ctx, 1, 3)
	require.NoError(t, err)

	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerName:  "Pedro",
		CustomerPhone: "51977776666",
		PaymentMethod: models.PaymentTicket,
		TicketNumbers: []string{"0001", "0002", "0003"},
		Items:         []OrderItemInput{{Quantity: 3}},
	})
	require.NoError(t, err)
	assert.True(t, order.IsTicket)
	assert.False(t, order.CountInSales)
	assert.True(t, order.TotalValue.IsZero())

	used := true
	overview, err := f.svc.ListTickets(ctx, &used)
	require.NoError(t, err)
	assert.Len(t, overview.Tickets, 3)
	assert.Equal(t, store.TicketCounts{Total: 3, Used: 3}, overview.Counts)

	current, err := f.store.GetEdition(ctx, edition.EditionID)
	require.NoError(t, err)
	assert.Zero(t, current.SoldCount)
}

func TestTicketPaidOrderIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)
	_, err := f.svc.SeedTickets(ctx, 1, 2)
	require.NoError(t, err)
	marked, err := f.svc.MarkTicketsUsed(ctx, []string{"0002"})
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerName:  "Pedro",
		PaymentMethod: models.PaymentTicket,
		TicketNumbers: []string{"0001", "0002"},
		Items:         []OrderItemInput{{Quantity: 2}},
	})
	var unavailable *store.TicketsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"0002"}, unavailable.Numbers)

	check, err := f.svc.CheckTickets(ctx, []string{"0001", "0002"})
	require.NoError(t, err)
	assert.Equal(t, []string{"0001"}, check.Available)
	assert.Equal(t, []string{"0002"}, check.Unavailable)
	assert.Empty(t, f.events.events)
}

func TestMarkTicketsUsedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SeedTickets(ctx, 1, 5)
	require.NoError(t, err)

	n, err := f.svc.MarkTicketsUsed(ctx, []string{"0001", "0002", "0003"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = f.svc.MarkTicketsUsed(ctx, []string{"0001", "0002", "0003"})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.MarkTicketsUsed(ctx, []string{"12"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCapacityScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 10, true)

	_, err := f.svc.CreateOrder(ctx, cashOrder(8))
	require.NoError(t, err)
	_, stock, err := f.svc.ActiveStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stock.Available)
	assert.False(t, stock.LowStock)
	assert.False(t, stock.OutOfStock)

	order, err := f.svc.CreateOrder(ctx, cashOrder(3))
	require.NoError(t, err)
	assert.True(t, order.TotalValue.Equal(decimal.RequireFromString("59.97")))
	assert.True(t, order.CountInSales)

	_, stock, err = f.svc.ActiveStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1, stock.Available)
	assert.True(t, stock.OutOfStock)
	assert.False(t, stock.LowStock)
}

func TestRecordSoldQuantityStaysNonNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	edition := f.edition(t, 10, true)

	stock, err := f.svc.RecordSoldQuantity(ctx, edition.EditionID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, stock.Available)

	_, err = f.svc.RecordSoldQuantity(ctx, edition.EditionID, -5)
	var invalidErr *InvalidInputError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "quantity", invalidErr.Field)

	current, err := f.svc.ActiveEdition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, current.SoldCount)
	assert.Equal(t, 7, current.Stock.Available)

	stock, err = f.svc.RecordSoldQuantity(ctx, edition.EditionID, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.Sold)
	assert.Equal(t, 10, stock.Available)

	_, err = f.svc.RecordSoldQuantity(ctx, "missing", -1)
	assert.ErrorIs(t, err, store.ErrEditionNotFound)
}

func TestStockOf(t *testing.T) {
	cases := []struct {
		name      string
		capacity  int
		sold      int
		available int
		low       bool
		out       bool
	}{
		{name: "plenty", capacity: 1000, sold: 100, available: 900},
		{name: "low at threshold", capacity: 1000, sold: 950, available: 50, low: true},
		{name: "threshold from 500 up", capacity: 500, sold: 450, available: 50, low: true},
		{name: "tenth below 500", capacity: 499, sold: 449, available: 50},
		{name: "small edition uses tenth", capacity: 100, sold: 89, available: 11},
		{name: "small edition low", capacity: 100, sold: 90, available: 10, low: true},
		{name: "sold out", capacity: 10, sold: 10, available: 0, out: true},
		{name: "oversold", capacity: 10, sold: 11, available: -1, out: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stock := StockOf(models.Edition{Capacity: tc.capacity, SoldCount: tc.sold}, 50)
			assert.Equal(t, tc.available, stock.Available)
			assert.Equal(t, tc.low, stock.LowStock)
			assert.Equal(t, tc.out, stock.OutOfStock)
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateOrder(ctx, cashOrder(1))
	assert.ErrorIs(t, err, store.ErrNoActiveEdition)

	f.edition(t, 100, true)
	cases := map[string]CreateOrderInput{
		"missing name":     {PaymentMethod: models.PaymentCash, Items: []OrderItemInput{{Quantity: 1}}},
		"unknown payment":  {CustomerName: "A", PaymentMethod: "cheque", Items: []OrderItemInput{{Quantity: 1}}},
		"voucher payment":  {CustomerName: "A", PaymentMethod: models.PaymentVoucher, Items: []OrderItemInput{{Quantity: 1}}},
		"no items":         {CustomerName: "A", PaymentMethod: models.PaymentCash},
		"zero quantity":    {CustomerName: "A", PaymentMethod: models.PaymentCash, Items: []OrderItemInput{{Quantity: 0}}},
		"bad ingredient":   {CustomerName: "A", PaymentMethod: models.PaymentCash, Items: []OrderItemInput{{Quantity: 1, RemovedIngredients: []string{"Abacaxi"}}}},
		"delivery address": {CustomerName: "A", CustomerPhone: "51999990000", PaymentMethod: models.PaymentPix, IsTelevendas: true, Items: []OrderItemInput{{Quantity: 1}}},
		"ticket numbers":   {CustomerName: "A", PaymentMethod: models.PaymentTicket, Items: []OrderItemInput{{Quantity: 1}}},
		"ticket format":    {CustomerName: "A", PaymentMethod: models.PaymentTicket, TicketNumbers: []string{"12"}, Items: []OrderItemInput{{Quantity: 1}}},
	}
	for name, input := range cases {
		_, err := f.svc.CreateOrder(ctx, input)
		assert.ErrorIs(t, err, ErrInvalidInput, name)
	}
}

func TestOrderNumbersIncrease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)

	var previous string
	for i := 0; i < 5; i++ {
		order, err := f.svc.CreateOrder(ctx, cashOrder(1))
		require.NoError(t, err)
		assert.Len(t, order.OrderNumber, 4)
		assert.Greater(t, order.OrderNumber, previous)
		previous = order.OrderNumber
	}
	assert.Equal(t, "0005", previous)
}

func TestAssignDeliveryNotifiesBothEvenWhenOneFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)

	courier, err := f.svc.CreateDeliveryPerson(ctx, DeliveryPersonInput{Name: "Carlos", Phone: "51966665555"})
	require.NoError(t, err)
	assert.True(t, courier.IsActive)

	input := cashOrder(2)
	input.IsTelevendas = true
	input.CustomerAddress = "Rua das Flores, 123 - Restinga"
	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: store.ActionMoveToReady})
	require.NoError(t, err)

	var calls int
	f.notifier.sendFn = func(phone, message string) error {
		calls++
		if calls == 1 {
			return errors.New("customer unreachable")
		}
		return nil
	}
	before := len(f.notifier.messages())

	assigned, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: store.ActionAssignDelivery, DeliveryPersonID: courier.DeliveryPersonID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutForDelivery, assigned.Status)
	require.NotNil(t, assigned.DeliveryPersonID)
	assert.Equal(t, courier.DeliveryPersonID, *assigned.DeliveryPersonID)

	msgs := f.notifier.messages()[before:]
	require.Len(t, msgs, 2)
	assert.Equal(t, "51999990000", msgs[0].Phone)
	assert.Contains(t, msgs[0].Message, "Carlos")
	assert.Equal(t, "51966665555", msgs[1].Phone)
	assert.Contains(t, msgs[1].Message, "maps.google.com")

	finished, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: store.ActionFinish})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, finished.Status)
}

func TestTransitionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)
	order, err := f.svc.CreateOrder(ctx, cashOrder(1))
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: "teleport"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: store.ActionAssignDelivery})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: "missing", Action: store.ActionMoveToReady})
	assert.ErrorIs(t, err, store.ErrOrderNotFound)

	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: store.ActionMoveToReady})
	require.NoError(t, err)
	expedition, err := f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: store.ActionMarkExpedition})
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpedition, expedition.Status)
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: store.ActionMoveToReady})
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestQueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)

	pickup, err := f.svc.CreateOrder(ctx, cashOrder(1))
	require.NoError(t, err)
	deliveryInput := cashOrder(1)
	deliveryInput.IsTelevendas = true
	deliveryInput.CustomerAddress = "Rua A, 1"
	delivery, err := f.svc.CreateOrder(ctx, deliveryInput)
	require.NoError(t, err)

	production, err := f.svc.Queue(ctx, QueueProduction)
	require.NoError(t, err)
	assert.Len(t, production, 2)

	for _, id := range []string{pickup.OrderID, delivery.OrderID} {
		_, err := f.svc.Transition(ctx, TransitionInput{OrderID: id, Action: store.ActionMoveToReady})
		require.NoError(t, err)
	}

	deliveries, err := f.svc.Queue(ctx, QueueDelivery)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, delivery.OrderID, deliveries[0].OrderID)

	counter, err := f.svc.Queue(ctx, QueueExpedition)
	require.NoError(t, err)
	require.Len(t, counter, 1)
	assert.Equal(t, pickup.OrderID, counter[0].OrderID)

	_, err = f.svc.Queue(ctx, "bakery")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordManualSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	edition := f.edition(t, 100, true)

	order, err := f.svc.RecordManualSale(ctx, edition.EditionID, ManualSaleInput{CellName: "jovens-kelvin", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, "ACERTO DA CÉLULA - Jovens - Kelvin", order.CustomerName)
	assert.Equal(t, "N/A", order.CustomerPhone)
	assert.Equal(t, models.StatusDelivered, order.Status)
	assert.Equal(t, models.PaymentCash, order.PaymentMethod)
	assert.True(t, order.TotalValue.Equal(decimal.RequireFromString("79.96")))

	current, err := f.svc.ActiveEdition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, current.SoldCount)
	assert.Equal(t, 96, current.Stock.Available)

	_, err = f.svc.RecordManualSale(ctx, edition.EditionID, ManualSaleInput{CellName: "Célula Fantasma", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.notifier.messages())
}

func TestCancelReleasesCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 10, true)

	order, err := f.svc.CreateOrder(ctx, cashOrder(4))
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, TransitionInput{OrderID: order.OrderID, Action: store.ActionCancel})
	require.NoError(t, err)

	_, stock, err := f.svc.ActiveStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Available)
}

func TestCloseDueProduction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)

	closed, err := f.svc.CloseDueProduction(ctx)
	require.NoError(t, err)
	assert.False(t, closed)

	f.now = time.Date(2026, 10, 17, 21, 0, 0, 0, time.UTC)
	closed, err = f.svc.CloseDueProduction(ctx)
	require.NoError(t, err)
	assert.True(t, closed)

	active, err := f.svc.ActiveEdition(ctx)
	require.NoError(t, err)
	assert.False(t, active.ProductionActive)

	closed, err = f.svc.CloseDueProduction(ctx)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestClosingRemindersSentOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.edition(t, 100, true)
	_, err := f.svc.SeedVouchers(ctx, "DOG", 2)
	require.NoError(t, err)
	_, err = f.svc.ValidateVoucher(ctx, "DOG001", claim("Maria"))
	require.NoError(t, err)
	other := claim("José")
	other.CPF = "111.444.777-35"
	_, err = f.svc.ValidateVoucher(ctx, "DOG002", other)
	require.NoError(t, err)
	_, err = f.svc.RedeemVoucher(ctx, "DOG002", RedeemInput{})
	require.NoError(t, err)

	sent, err := f.svc.SendClosingReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "outside the reminder window")

	f.now = time.Date(2026, 10, 17, 20, 15, 0, 0, time.UTC)
	before := len(f.notifier.messages())
	sent, err = f.svc.SendClosingReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	msgs := f.notifier.messages()[before:]
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0].Message, "DOG001"))

	sent, err = f.svc.SendClosingReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSeedValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := f.svc.SeedVouchers(ctx, "dog", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = f.svc.SeedVouchers(ctx, "DOG", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.SeedVouchers(ctx, "D0G", 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.SeedTickets(ctx, 10, 5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	listings, err := f.svc.ListVouchers(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 5)
	assert.Equal(t, "DOG001", listings[0].Code)
	assert.Equal(t, "DOG005", listings[4].Code)
}

func TestVoucherAndTicketFormats(t *testing.T) {
	assert.Equal(t, "DOG001", VoucherCode("dog", 1))
	assert.Equal(t, "DOG120", VoucherCode("DOG", 120))
	assert.Equal(t, "0007", TicketNumber(7))
	assert.True(t, ValidTicketNumber("0420"))
	assert.False(t, ValidTicketNumber("420"))
	assert.False(t, ValidTicketNumber("04200"))
}
