package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	OrderID          string          `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	EditionID        string          `json:"edition_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	CustomerAddress  string          `json:"customer_address,omitempty"`
	PaymentMethod    string          `json:"payment_method"`
	TotalValue       decimal.Decimal `json:"total_value"`
	IsVoucher        bool            `json:"is_voucher"`
	IsTicket         bool            `json:"is_ticket"`
	IsTelevendas     bool            `json:"is_televendas"`
	CountInSales     bool            `json:"count_in_sales"`
	VoucherCode      string          `json:"voucher_code,omitempty"`
	TicketNumbers    []string        `json:"ticket_numbers,omitempty"`
	CellName         string          `json:"cell_name,omitempty"`
	Status           string          `json:"status"`
	DeliveryPersonID *string         `json:"delivery_person_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []OrderItem     `json:"items"`
}

type OrderItem struct {
	ItemID             string          `json:"item_id"`
	OrderID            string          `json:"order_id"`
	ItemName           string          `json:"item_name"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	RemovedIngredients []string        `json:"removed_ingredients"`
	Observations       string          `json:"observations,omitempty"`
	CountInSales       bool            `json:"count_in_sales"`
}

const (
	StatusPending        = "pending"
	StatusPreparing      = "preparing"
	StatusReady          = "ready"
	StatusExpedition     = "expedition"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
)

const (
	PaymentCash       = "dinheiro"
	PaymentPix        = "pix"
	PaymentDebitCard  = "cartao_debito"
	PaymentCreditCard = "cartao_credito"
	PaymentTicket     = "ticket_dogao"
	PaymentVoucher    = "voucher"
)

// Quantity is the total number of units across all items.
func (o Order) Quantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// CountedQuantity is the number of units debited against the edition capacity.
func (o Order) CountedQuantity() int {
	if !o.CountInSales {
		return 0
	}
	total := 0
	for _, item := range o.Items {
		if item.CountInSales {
			total += item.Quantity
		}
	}
	return total
}

func IsTerminalStatus(status string) bool {
	return status == StatusDelivered || status == StatusCancelled
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusPreparing, StatusReady, StatusExpedition, StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}
