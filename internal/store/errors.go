package store

import (
	"errors"
	"strings"
)

var (
	ErrEditionNotFound        = errors.New("edition not found")
	ErrNoActiveEdition        = errors.New("no active edition")
	ErrVoucherNotFound        = errors.New("voucher not found")
	ErrAlreadyRedeemed        = errors.New("voucher already redeemed")
	ErrAlreadyValidated       = errors.New("voucher already validated")
	ErrNotValidated           = errors.New("voucher not validated")
	ErrTicketsUnavailable     = errors.New("tickets unavailable")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidState           = errors.New("invalid order state")
	ErrOrderNumbersExhausted  = errors.New("order numbers exhausted")
	ErrDeliveryPersonNotFound = errors.New("delivery person not found")
	ErrDeliveryPersonInactive = errors.New("delivery person inactive")
	ErrSoldBelowZero          = errors.New("sold count would drop below zero")
)

// TicketsUnavailableError lists the requested ticket numbers that were unknown
// or already used when a batch could not be consumed.
type TicketsUnavailableError struct {
	Numbers []string
}

func (e *TicketsUnavailableError) Error() string {
	return "tickets unavailable: " + strings.Join(e.Numbers, ",")
}

func (e *TicketsUnavailableError) Unwrap() error {
	return ErrTicketsUnavailable
}
