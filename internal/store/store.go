package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dogao/order-service/internal/models"

	"github.com/shopspring/decimal"
)

const (
	OrderNumberDigits = 4
	maxOrderNumber    = 9999
)

type CreateEditionInput struct {
	Name           string
	ProductionDate string
	ClosingTime    string
	UnitPrice      decimal.Decimal
	Capacity       int
	Activate       bool
	CreatedAt      time.Time
}

type CustomerInput struct {
	Name          string
	Phone         string
	CPF           string
	Address       string
	KnowsChurch   bool
	AllowsContact bool
}

type ValidateVoucherInput struct {
	Code        string
	EditionID   string
	Customer    CustomerInput
	ValidatedAt time.Time
}

type OrderItemInput struct {
	ItemName           string
	Quantity           int
	UnitPrice          decimal.Decimal
	TotalPrice         decimal.Decimal
	RemovedIngredients []string
	Observations       string
	CountInSales       bool
}

type CreateOrderInput struct {
	EditionID       string
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	PaymentMethod   string
	TotalValue      decimal.Decimal
	IsVoucher       bool
	IsTicket        bool
	IsTelevendas    bool
	CountInSales    bool
	VoucherCode     string
	TicketNumbers   []string
	CellName        string
	Status          string
	Items           []OrderItemInput
	CreatedAt       time.Time
}

// CountedQuantity is the quantity the order will debit from its edition.
func (in CreateOrderInput) CountedQuantity() int {
	if !in.CountInSales {
		return 0
	}
	total := 0
	for _, item := range in.Items {
		if item.CountInSales {
			total += item.Quantity
		}
	}
	return total
}

type TransitionInput struct {
	OrderID          string
	Action           string
	DeliveryPersonID string
	OccurredAt       time.Time
}

type OrderFilter struct {
	Statuses   []string
	Televendas *bool
	EditionID  string
}

type DeliveryPersonInput struct {
	Name     string
	Phone    string
	IsActive bool
}

type UpdateDeliveryPersonInput struct {
	Name     *string
	Phone    *string
	IsActive *bool
}

// VoucherClaim is a voucher together with its claim record and claimant.
type VoucherClaim struct {
	Voucher  models.Voucher
	Usage    *models.VoucherUsage
	Customer *models.Customer
}

type ReminderTarget struct {
	UsageID       string
	VoucherCode   string
	CustomerName  string
	CustomerPhone string
}

type TicketCheck struct {
	Available   []string `json:"available"`
	Unavailable []string `json:"unavailable"`
}

type TicketCounts struct {
	Total int `json:"total"`
	Used  int `json:"used"`
}

type EditionStore interface {
	CreateEdition(ctx context.Context, input CreateEditionInput) (models.Edition, error)
	ListEditions(ctx context.Context) ([]models.Edition, error)
	GetEdition(ctx context.Context, editionID string) (models.Edition, error)
	ActiveEdition(ctx context.Context) (models.Edition, error)
	LatestEdition(ctx context.Context) (models.Edition, error)
	ActivateEdition(ctx context.Context, editionID string) (models.Edition, error)
	SetProductionActive(ctx context.Context, editionID string, active bool) (models.Edition, error)
	AddSoldQuantity(ctx context.Context, editionID string, quantity int) (models.Edition, error)
}

type VoucherStore interface {
	CreateVouchers(ctx context.Context, codes []string) (int, error)
	ListVouchers(ctx context.Context) ([]models.VoucherListing, error)
	GetVoucherClaim(ctx context.Context, code string) (VoucherClaim, error)
	ValidateVoucher(ctx context.Context, input ValidateVoucherInput) (models.VoucherUsage, models.Customer, error)
	RedeemVoucher(ctx context.Context, code string, order CreateOrderInput) (models.Order, error)
	ListPendingReminders(ctx context.Context, editionID string) ([]ReminderTarget, error)
	MarkReminderSent(ctx context.Context, usageID string, sentAt time.Time) (bool, error)
}

type TicketStore interface {
	CreateTickets(ctx context.Context, numbers []string) (int, error)
	ListTickets(ctx context.Context, used *bool) ([]models.Ticket, error)
	CountTickets(ctx context.Context) (TicketCounts, error)
	CheckTickets(ctx context.Context, numbers []string) (TicketCheck, error)
	MarkTicketsUsed(ctx context.Context, numbers []string, usedAt time.Time) (int, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (models.Order, error)
	GetOrder(ctx context.Context, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	TransitionOrder(ctx context.Context, input TransitionInput) (models.Order, error)
}

type PeopleStore interface {
	CreateDeliveryPerson(ctx context.Context, input DeliveryPersonInput) (models.DeliveryPerson, error)
	UpdateDeliveryPerson(ctx context.Context, deliveryPersonID string, input UpdateDeliveryPersonInput) (models.DeliveryPerson, error)
	GetDeliveryPerson(ctx context.Context, deliveryPersonID string) (models.DeliveryPerson, error)
	ListDeliveryPersons(ctx context.Context) ([]models.DeliveryPerson, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
}

// Store is the full persistence contract implemented by the postgres and
// sqlite backends.
type Store interface {
	EditionStore
	VoucherStore
	TicketStore
	OrderStore
	PeopleStore
	Close() error
}

// FormatOrderNumber renders a sequence value as a zero-padded order number.
func FormatOrderNumber(seq int64) (string, error) {
	if seq <= 0 || seq > maxOrderNumber {
		return "", ErrOrderNumbersExhausted
	}
	return fmt.Sprintf("%0*d", OrderNumberDigits, seq), nil
}

// UniqueNumbers trims, drops blanks and removes duplicates, keeping order.
func UniqueNumbers(numbers []string) []string {
	seen := make(map[string]struct{}, len(numbers))
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
