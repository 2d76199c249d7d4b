// Package notify delivers outbound WhatsApp messages to customers and
// delivery persons.
package notify

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

type Notifier interface {
	Send(ctx context.Context, phone, message string) error
	SendLocation(ctx context.Context, phone string, location Location) error
}

// StatusReporter is implemented by providers that can report the state of
// their upstream connection.
type StatusReporter interface {
	ConnectionState(ctx context.Context) (string, error)
}

type Config struct {
	Provider  string
	Evolution EvolutionConfig
}

// New picks a provider by kind. Unknown kinds and an evolution provider
// without a base URL fall back to logging.
func New(cfg Config) Notifier {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "stub", "log":
		return logProvider{}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "evolution", "whatsapp":
		if cfg.Evolution.BaseURL == "" || cfg.Evolution.Instance == "" {
			log.Printf("notify provider=evolution missing base url or instance, falling back to log")
			return logProvider{}
		}
		return NewEvolution(cfg.Evolution)
	default:
		log.Printf("notify provider=%s unknown, falling back to log", cfg.Provider)
		return logProvider{}
	}
}

type logProvider struct{}

func (logProvider) Send(ctx context.Context, phone, message string) error {
	log.Printf("send whatsapp to %s: %s", phone, message)
	return nil
}

func (logProvider) SendLocation(ctx context.Context, phone string, location Location) error {
	log.Printf("send location to %s: %s (%f,%f)", phone, location.Name, location.Latitude, location.Longitude)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, phone, message string) error {
	return nil
}

func (noopProvider) SendLocation(ctx context.Context, phone string, location Location) error {
	return nil
}

var errProviderFailure = errors.New("provider failure")

type failProvider struct{}

func (failProvider) Send(ctx context.Context, phone, message string) error {
	return errProviderFailure
}

func (failProvider) SendLocation(ctx context.Context, phone string, location Location) error {
	return errProviderFailure
}

// Traced wraps a notifier so every call gets a span and a per-call timeout.
func Traced(next Notifier, timeout time.Duration) Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return tracedNotifier{next: next, timeout: timeout}
}

type tracedNotifier struct {
	next    Notifier
	timeout time.Duration
}

func (t tracedNotifier) Send(ctx context.Context, phone, message string) error {
	ctx, span := otel.Tracer("notify").Start(ctx, "notify.Send")
	defer span.End()
	span.SetAttributes(attribute.Int("message.length", len(message)))

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	err := t.next.Send(ctx, phone, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t tracedNotifier) SendLocation(ctx context.Context, phone string, location Location) error {
	ctx, span := otel.Tracer("notify").Start(ctx, "notify.SendLocation")
	defer span.End()
	span.SetAttributes(attribute.String("location.name", location.Name))

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	err := t.next.SendLocation(ctx, phone, location)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t tracedNotifier) ConnectionState(ctx context.Context) (string, error) {
	reporter, ok := t.next.(StatusReporter)
	if !ok {
		return "unavailable", nil
	}
	return reporter.ConnectionState(ctx)
}

// NormalizePhone keeps digits only and prefixes the Brazilian country code.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || strings.HasPrefix(digits, "55") {
		return digits
	}
	return "55" + digits
}
