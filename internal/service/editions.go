package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/notify"
	"dogao/order-service/internal/store"

	"github.com/shopspring/decimal"
)

type EditionInput struct {
	Name           string
	ProductionDate string
	ClosingTime    string
	UnitPrice      decimal.Decimal
	Capacity       int
	Activate       bool
}

type EditionView struct {
	models.Edition
	Stock models.Stock `json:"stock"`
}

func (s *Service) view(edition models.Edition) EditionView {
	return EditionView{Edition: edition, Stock: s.Stock(edition)}
}

func (s *Service) CreateEdition(ctx context.Context, input EditionInput) (EditionView, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return EditionView{}, invalid("name", "required")
	}
	if _, err := time.Parse(models.DateLayout, input.ProductionDate); err != nil {
		return EditionView{}, invalid("production_date", "expected YYYY-MM-DD")
	}
	if _, err := time.Parse(models.ClosingTimeLayout, input.ClosingTime); err != nil {
		return EditionView{}, invalid("closing_time", "expected HH:MM")
	}
	if !input.UnitPrice.IsPositive() {
		return EditionView{}, invalid("unit_price", "must be positive")
	}
	if input.Capacity <= 0 {
		return EditionView{}, invalid("capacity", "must be positive")
	}

	edition, err := s.store.CreateEdition(ctx, store.CreateEditionInput{
		Name:           input.Name,
		ProductionDate: input.ProductionDate,
		ClosingTime:    input.ClosingTime,
		UnitPrice:      input.UnitPrice.Round(2),
		Capacity:       input.Capacity,
		Activate:       input.Activate,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return EditionView{}, err
	}
	return s.view(edition), nil
}

func (s *Service) ListEditions(ctx context.Context) ([]EditionView, error) {
	editions, err := s.store.ListEditions(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]EditionView, 0, len(editions))
	for _, edition := range editions {
		views = append(views, s.view(edition))
	}
	return views, nil
}

func (s *Service) ActiveEdition(ctx context.Context) (EditionView, error) {
	edition, err := s.store.ActiveEdition(ctx)
	if err != nil {
		return EditionView{}, err
	}
	return s.view(edition), nil
}

func (s *Service) ActivateEdition(ctx context.Context, editionID string) (EditionView, error) {
	edition, err := s.store.ActivateEdition(ctx, editionID)
	if err != nil {
		return EditionView{}, err
	}
	return s.view(edition), nil
}

// SetProduction opens or closes the kitchen for an edition.
func (s *Service) SetProduction(ctx context.Context, editionID string, open bool) (EditionView, error) {
	edition, err := s.store.SetProductionActive(ctx, editionID, open)
	if err != nil {
		return EditionView{}, err
	}
	log.Printf("production toggled edition_id=%s open=%t", edition.EditionID, open)
	return s.view(edition), nil
}

// ClosingAt is the instant production of an edition ends, in the service's
// time zone.
func (s *Service) ClosingAt(edition models.Edition) (time.Time, error) {
	at, err := time.ParseInLocation(models.DateLayout+" "+models.ClosingTimeLayout, edition.ProductionDate+" "+edition.ClosingTime, s.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("edition %s closing time: %w", edition.EditionID, err)
	}
	return at, nil
}

// CloseDueProduction closes production of the active edition once its
// closing time has passed. It reports whether anything was closed.
func (s *Service) CloseDueProduction(ctx context.Context) (bool, error) {
	edition, err := s.store.ActiveEdition(ctx)
	if errors.Is(err, store.ErrNoActiveEdition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !edition.ProductionActive {
		return false, nil
	}
	closing, err := s.ClosingAt(edition)
	if err != nil {
		return false, err
	}
	if s.now().Before(closing) {
		return false, nil
	}
	if _, err := s.store.SetProductionActive(ctx, edition.EditionID, false); err != nil {
		return false, err
	}
	log.Printf("production closed edition_id=%s closing=%s", edition.EditionID, closing.Format(time.RFC3339))
	return true, nil
}

// SendClosingReminders messages every customer holding a validated, unredeemed
// voucher for the active edition once the reminder window before closing has
// opened. Each claim is reminded at most once.
func (s *Service) SendClosingReminders(ctx context.Context) (int, error) {
	edition, err := s.store.ActiveEdition(ctx)
	if errors.Is(err, store.ErrNoActiveEdition) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !edition.ProductionActive {
		return 0, nil
	}
	closing, err := s.ClosingAt(edition)
	if err != nil {
		return 0, err
	}
	now := s.now()
	if now.Before(closing.Add(-s.reminderLead)) || !now.Before(closing) {
		return 0, nil
	}

	targets, err := s.store.ListPendingReminders(ctx, edition.EditionID)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, target := range targets {
		claimed, err := s.store.MarkReminderSent(ctx, target.UsageID, now)
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}
		if s.send(ctx, "closing_reminder", target.CustomerPhone, notify.ClosingReminder(target.CustomerName, target.VoucherCode, edition, s.pickup())) {
			sent++
		}
	}
	return sent, nil
}
