// Package service implements the order-service use cases on top of a store:
// voucher and ticket redemption, the order lifecycle, edition capacity and
// the best-effort WhatsApp notifications that follow committed changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"dogao/order-service/internal/catalog"
	"dogao/order-service/internal/models"
	"dogao/order-service/internal/notify"
	"dogao/order-service/internal/store"
)

const (
	defaultLowStockThreshold = 50
	defaultReminderLead      = time.Hour
)

// ErrInvalidInput is wrapped by every InvalidInputError.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports a request field that failed validation before any
// store access.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// AlreadyValidatedError names the customer holding the claim on a voucher.
type AlreadyValidatedError struct {
	CustomerName string
}

func (e *AlreadyValidatedError) Error() string {
	if e.CustomerName == "" {
		return store.ErrAlreadyValidated.Error()
	}
	return fmt.Sprintf("voucher already validated by %s", e.CustomerName)
}

func (e *AlreadyValidatedError) Unwrap() error {
	return store.ErrAlreadyValidated
}

// OrderEvents receives every committed order creation or transition.
type OrderEvents interface {
	PublishOrder(eventType string, order models.Order)
}

const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
)

type Options struct {
	Notifier          notify.Notifier
	Catalog           *catalog.Catalog
	Events            OrderEvents
	LowStockThreshold int
	ReminderLead      time.Duration
	Location          *time.Location
	Now               func() time.Time
}

type Service struct {
	store             store.Store
	notifier          notify.Notifier
	catalog           *catalog.Catalog
	events            OrderEvents
	lowStockThreshold int
	reminderLead      time.Duration
	location          *time.Location
	now               func() time.Time
}

func New(st store.Store, opts Options) *Service {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.New(notify.Config{Provider: "noop"})
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	threshold := opts.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	lead := opts.ReminderLead
	if lead <= 0 {
		lead = defaultReminderLead
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:             st,
		notifier:          notifier,
		catalog:           cat,
		events:            opts.Events,
		lowStockThreshold: threshold,
		reminderLead:      lead,
		location:          loc,
		now:               now,
	}
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// NotifierState reports the messaging channel connection state when the
// notifier can tell.
func (s *Service) NotifierState(ctx context.Context) (string, error) {
	reporter, ok := s.notifier.(notify.StatusReporter)
	if !ok {
		return "unavailable", nil
	}
	return reporter.ConnectionState(ctx)
}

func (s *Service) publish(eventType string, order models.Order) {
	if s.events == nil {
		return
	}
	s.events.PublishOrder(eventType, order)
}

// send delivers a message and logs a failure instead of returning it.
func (s *Service) send(ctx context.Context, kind, phone, message string) bool {
	if notify.NormalizePhone(phone) == "" {
		log.Printf("notify skipped kind=%s reason=no_phone", kind)
		return false
	}
	if err := s.notifier.Send(ctx, phone, message); err != nil {
		log.Printf("notify failed kind=%s err=%v", kind, err)
		return false
	}
	return true
}

func (s *Service) sendLocation(ctx context.Context, kind, phone string) bool {
	pickup := s.pickup()
	if err := s.notifier.SendLocation(ctx, phone, pickup); err != nil {
		log.Printf("notify failed kind=%s err=%v", kind, err)
		return false
	}
	return true
}

func (s *Service) pickup() notify.Location {
	loc := s.catalog.PickupLocation
	return notify.Location{Name: loc.Name, Address: loc.Address, Latitude: loc.Latitude, Longitude: loc.Longitude}
}

// currentEdition is the active edition, or the most recent one when none is
// active.
func (s *Service) currentEdition(ctx context.Context) (models.Edition, error) {
	edition, err := s.store.ActiveEdition(ctx)
	if err == nil {
		return edition, nil
	}
	if !errors.Is(err, store.ErrNoActiveEdition) {
		return models.Edition{}, err
	}
	edition, err = s.store.LatestEdition(ctx)
	if errors.Is(err, store.ErrEditionNotFound) {
		return models.Edition{}, store.ErrNoActiveEdition
	}
	return edition, err
}
