package models

import "time"

type Voucher struct {
	Code      string     `json:"code"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type VoucherUsage struct {
	UsageID        string     `json:"usage_id"`
	VoucherCode    string     `json:"voucher_code"`
	CustomerID     string     `json:"customer_id"`
	EditionID      string     `json:"edition_id"`
	Status         string     `json:"status"`
	ValidatedAt    time.Time  `json:"validated_at"`
	RedeemedAt     *time.Time `json:"redeemed_at,omitempty"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
}

const (
	UsageValidated = "validated"
	UsageRedeemed  = "redeemed"
)

// VoucherListing is a voucher joined with its claimant, if any.
type VoucherListing struct {
	Voucher
	ClaimStatus  string `json:"claim_status"`
	CustomerName string `json:"customer_name,omitempty"`
}

const (
	ClaimAvailable = "available"
	ClaimValidated = "validated"
	ClaimRedeemed  = "redeemed"
)

type Ticket struct {
	Number    string     `json:"number"`
	IsUsed    bool       `json:"is_used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	OrderID   *string    `json:"order_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
