package service

import (
	"context"
	"strings"

	"dogao/order-service/internal/cpf"
	"dogao/order-service/internal/models"
	"dogao/order-service/internal/notify"
	"dogao/order-service/internal/store"
)

type DeliveryPersonInput struct {
	Name     string
	Phone    string
	IsActive *bool
}

func (s *Service) CreateDeliveryPerson(ctx context.Context, input DeliveryPersonInput) (models.DeliveryPerson, error) {
	name := strings.TrimSpace(input.Name)
	phone := strings.TrimSpace(input.Phone)
	if name == "" {
		return models.DeliveryPerson{}, invalid("name", "required")
	}
	if notify.NormalizePhone(phone) == "" {
		return models.DeliveryPerson{}, invalid("phone", "required")
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	person, err := s.store.CreateDeliveryPerson(ctx, store.DeliveryPersonInput{Name: name, Phone: phone, IsActive: active})
	if err != nil {
		return models.DeliveryPerson{}, err
	}
	s.send(ctx, "delivery_person_welcome", person.Phone, notify.DeliveryPersonWelcome(person.Name))
	return person, nil
}

func (s *Service) UpdateDeliveryPerson(ctx context.Context, deliveryPersonID string, input store.UpdateDeliveryPersonInput) (models.DeliveryPerson, error) {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return models.DeliveryPerson{}, invalid("name", "must not be empty")
		}
		input.Name = &name
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if notify.NormalizePhone(phone) == "" {
			return models.DeliveryPerson{}, invalid("phone", "must not be empty")
		}
		input.Phone = &phone
	}
	return s.store.UpdateDeliveryPerson(ctx, deliveryPersonID, input)
}

func (s *Service) ListDeliveryPersons(ctx context.Context) ([]models.DeliveryPerson, error) {
	persons, err := s.store.ListDeliveryPersons(ctx)
	if err != nil {
		return nil, err
	}
	if persons == nil {
		persons = []models.DeliveryPerson{}
	}
	return persons, nil
}

type CustomerSummary struct {
	Customers     []models.Customer `json:"customers"`
	Total         int               `json:"total"`
	KnowsChurch   int               `json:"knows_church"`
	AllowsContact int               `json:"allows_contact"`
}

// ListCustomers returns every customer with consent totals. CPFs are
// rendered punctuated for display.
func (s *Service) ListCustomers(ctx context.Context) (CustomerSummary, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return CustomerSummary{}, err
	}
	summary := CustomerSummary{Customers: customers, Total: len(customers)}
	if summary.Customers == nil {
		summary.Customers = []models.Customer{}
	}
	for i, c := range customers {
		if c.CPF != "" {
			customers[i].CPF = cpf.Format(c.CPF)
		}
		if c.KnowsChurch {
			summary.KnowsChurch++
		}
		if c.AllowsContact {
			summary.AllowsContact++
		}
	}
	return summary, nil
}
