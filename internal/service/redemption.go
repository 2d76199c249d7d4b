package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"dogao/order-service/internal/cpf"
	"dogao/order-service/internal/models"
	"dogao/order-service/internal/notify"
	"dogao/order-service/internal/store"

	"github.com/shopspring/decimal"
)

const (
	voucherNumberWidth = 3
	maxTicketNumber    = 9999
)

var (
	ticketNumberPattern = regexp.MustCompile(`^\d{4}$`)
	voucherCodePattern  = regexp.MustCompile(`^[A-Z]+\d+$`)
)

// ValidTicketNumber reports whether value is a four-digit ticket number.
func ValidTicketNumber(value string) bool {
	return ticketNumberPattern.MatchString(value)
}

// VoucherCode renders the n-th code of a voucher batch, e.g. DOG001.
func VoucherCode(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", strings.ToUpper(prefix), voucherNumberWidth, n)
}

// TicketNumber renders a ticket number with four digits.
func TicketNumber(n int) string {
	return fmt.Sprintf("%04d", n)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ClaimInput is the form a customer submits to claim a voucher.
type ClaimInput struct {
	Name          string
	Phone         string
	CPF           string
	Address       string
	KnowsChurch   bool
	AllowsContact bool
}

type ValidationResult struct {
	Voucher        models.Voucher      `json:"voucher"`
	Usage          models.VoucherUsage `json:"usage"`
	Customer       models.Customer     `json:"customer"`
	Edition        models.Edition      `json:"edition"`
	ProductionOpen bool                `json:"production_open"`
}

type RedeemInput struct {
	RemovedIngredients []string
	Observations       string
}

func claimError(claim store.VoucherClaim) error {
	if claim.Voucher.Used {
		return store.ErrAlreadyRedeemed
	}
	if claim.Usage != nil {
		name := ""
		if claim.Customer != nil {
			name = claim.Customer.Name
		}
		return &AlreadyValidatedError{CustomerName: name}
	}
	return nil
}

// CheckVoucher reports whether a voucher can still be claimed without
// changing anything.
func (s *Service) CheckVoucher(ctx context.Context, code string) (models.Voucher, error) {
	claim, err := s.store.GetVoucherClaim(ctx, normalizeCode(code))
	if err != nil {
		return models.Voucher{}, err
	}
	if err := claimError(claim); err != nil {
		return claim.Voucher, err
	}
	return claim.Voucher, nil
}

// ValidateVoucher records a customer's claim on a voucher. The voucher stays
// unused until it is redeemed at the counter.
func (s *Service) ValidateVoucher(ctx context.Context, code string, input ClaimInput) (ValidationResult, error) {
	code = normalizeCode(code)
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	input.CPF = cpf.Normalize(input.CPF)
	if !cpf.Valid(input.CPF) {
		return ValidationResult{}, invalid("cpf", "invalid checksum")
	}
	if input.Name == "" {
		return ValidationResult{}, invalid("name", "required")
	}
	if notify.NormalizePhone(input.Phone) == "" {
		return ValidationResult{}, invalid("phone", "required")
	}

	claim, err := s.store.GetVoucherClaim(ctx, code)
	if err != nil {
		return ValidationResult{}, err
	}
	if err := claimError(claim); err != nil {
		return ValidationResult{}, err
	}

	edition, err := s.currentEdition(ctx)
	if err != nil {
		return ValidationResult{}, err
	}

	usage, customer, err := s.store.ValidateVoucher(ctx, store.ValidateVoucherInput{
		Code:      code,
		EditionID: edition.EditionID,
		Customer: store.CustomerInput{
			Name:          input.Name,
			Phone:         input.Phone,
			CPF:           input.CPF,
			Address:       strings.TrimSpace(input.Address),
			KnowsChurch:   input.KnowsChurch,
			AllowsContact: input.AllowsContact,
		},
		ValidatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyValidated) {
			if latest, lookupErr := s.store.GetVoucherClaim(ctx, code); lookupErr == nil {
				if claimErr := claimError(latest); claimErr != nil {
					return ValidationResult{}, claimErr
				}
			}
		}
		return ValidationResult{}, err
	}

	open := edition.Active && edition.ProductionActive
	s.send(ctx, "welcome", customer.Phone, notify.Welcome(customer.Name, edition, s.pickup(), open, s.reminderLead))
	if open {
		s.sendLocation(ctx, "pickup_location", customer.Phone)
	}

	return ValidationResult{
		Voucher:        claim.Voucher,
		Usage:          usage,
		Customer:       customer,
		Edition:        edition,
		ProductionOpen: open,
	}, nil
}

// RedeemableVoucher is the counter lookup before redemption: it succeeds only
// for a claimed, unused voucher.
func (s *Service) RedeemableVoucher(ctx context.Context, code string) (store.VoucherClaim, error) {
	claim, err := s.store.GetVoucherClaim(ctx, normalizeCode(code))
	if err != nil {
		return store.VoucherClaim{}, err
	}
	if claim.Voucher.Used {
		return store.VoucherClaim{}, store.ErrAlreadyRedeemed
	}
	if claim.Usage == nil || claim.Usage.Status != models.UsageValidated || claim.Customer == nil {
		return store.VoucherClaim{}, store.ErrNotValidated
	}
	return claim, nil
}

// RedeemVoucher consumes a claimed voucher and opens its pickup order.
func (s *Service) RedeemVoucher(ctx context.Context, code string, input RedeemInput) (models.Order, error) {
	code = normalizeCode(code)
	removed, err := s.removedIngredients(input.RemovedIngredients)
	if err != nil {
		return models.Order{}, err
	}

	edition, err := s.store.ActiveEdition(ctx)
	if err != nil {
		return models.Order{}, err
	}
	claim, err := s.RedeemableVoucher(ctx, code)
	if err != nil {
		return models.Order{}, err
	}

	order, err := s.store.RedeemVoucher(ctx, code, store.CreateOrderInput{
		EditionID:     edition.EditionID,
		CustomerName:  claim.Customer.Name,
		CustomerPhone: claim.Customer.Phone,
		PaymentMethod: models.PaymentVoucher,
		TotalValue:    decimal.Zero,
		IsVoucher:     true,
		CountInSales:  false,
		Status:        models.StatusPending,
		Items: []store.OrderItemInput{{
			ItemName:           s.catalog.Item.Name,
			Quantity:           1,
			UnitPrice:          decimal.Zero,
			TotalPrice:         decimal.Zero,
			RemovedIngredients: removed,
			Observations:       strings.TrimSpace(input.Observations),
			CountInSales:       false,
		}},
		CreatedAt: s.now(),
	})
	if err != nil {
		return models.Order{}, err
	}

	s.publish(EventOrderCreated, order)
	s.send(ctx, "voucher_redeemed", order.CustomerPhone, notify.VoucherRedeemed(order.CustomerName, order.OrderNumber))
	return order, nil
}

func (s *Service) ListVouchers(ctx context.Context) ([]models.VoucherListing, error) {
	return s.store.ListVouchers(ctx)
}

// SeedVouchers creates prefix001 up to the count-th code, skipping codes that
// already exist.
func (s *Service) SeedVouchers(ctx context.Context, prefix string, count int) (int, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" || !voucherCodePattern.MatchString(prefix+"1") {
		return 0, invalid("prefix", "must be letters only")
	}
	if count <= 0 {
		return 0, invalid("count", "must be positive")
	}
	codes := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		codes = append(codes, VoucherCode(prefix, i))
	}
	return s.store.CreateVouchers(ctx, codes)
}

func validateTicketNumbers(numbers []string) ([]string, error) {
	numbers = store.UniqueNumbers(numbers)
	if len(numbers) == 0 {
		return nil, invalid("ticket_numbers", "at least one ticket is required")
	}
	for _, n := range numbers {
		if !ValidTicketNumber(n) {
			return nil, invalid("ticket_numbers", fmt.Sprintf("%q is not a four-digit ticket number", n))
		}
	}
	return numbers, nil
}

func (s *Service) CheckTickets(ctx context.Context, numbers []string) (store.TicketCheck, error) {
	numbers, err := validateTicketNumbers(numbers)
	if err != nil {
		return store.TicketCheck{}, err
	}
	return s.store.CheckTickets(ctx, numbers)
}

// MarkTicketsUsed reconciles physically sold tickets; numbers already used
// are skipped and the count of newly marked tickets is returned.
func (s *Service) MarkTicketsUsed(ctx context.Context, numbers []string) (int, error) {
	numbers, err := validateTicketNumbers(numbers)
	if err != nil {
		return 0, err
	}
	return s.store.MarkTicketsUsed(ctx, numbers, s.now())
}

type TicketOverview struct {
	Tickets []models.Ticket    `json:"tickets"`
	Counts  store.TicketCounts `json:"counts"`
}

func (s *Service) ListTickets(ctx context.Context, used *bool) (TicketOverview, error) {
	tickets, err := s.store.ListTickets(ctx, used)
	if err != nil {
		return TicketOverview{}, err
	}
	counts, err := s.store.CountTickets(ctx)
	if err != nil {
		return TicketOverview{}, err
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return TicketOverview{Tickets: tickets, Counts: counts}, nil
}

func (s *Service) TicketCounts(ctx context.Context) (store.TicketCounts, error) {
	return s.store.CountTickets(ctx)
}

// SeedTickets creates every ticket number in [from, to].
func (s *Service) SeedTickets(ctx context.Context, from, to int) (int, error) {
	if from < 0 || to > maxTicketNumber || from > to {
		return 0, invalid("range", fmt.Sprintf("must satisfy 0 <= from <= to <= %d", maxTicketNumber))
	}
	numbers := make([]string, 0, to-from+1)
	for n := from; n <= to; n++ {
		numbers = append(numbers, TicketNumber(n))
	}
	return s.store.CreateTickets(ctx, numbers)
}
