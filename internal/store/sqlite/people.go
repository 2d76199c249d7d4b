package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"

	"github.com/google/uuid"
)

const deliveryPersonColumns = `delivery_person_id, name, phone, is_active, created_at, updated_at`

func scanDeliveryPerson(row rowScanner) (models.DeliveryPerson, error) {
	var p models.DeliveryPerson
	err := row.Scan(&p.DeliveryPersonID, &p.Name, &p.Phone, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreateDeliveryPerson(ctx context.Context, input store.DeliveryPersonInput) (models.DeliveryPerson, error) {
	now := s.now()
	person := models.DeliveryPerson{
		DeliveryPersonID: uuid.NewString(),
		Name:             input.Name,
		Phone:            input.Phone,
		IsActive:         input.IsActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_persons (`+deliveryPersonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, person.DeliveryPersonID, person.Name, person.Phone, person.IsActive, person.CreatedAt, person.UpdatedAt)
	if err != nil {
		return models.DeliveryPerson{}, err
	}
	return person, nil
}

func (s *Store) UpdateDeliveryPerson(ctx context.Context, deliveryPersonID string, input store.UpdateDeliveryPersonInput) (models.DeliveryPerson, error) {
	set := []string{`updated_at = ?`}
	args := []any{s.now()}
	if input.Name != nil {
		set = append(set, `name = ?`)
		args = append(args, *input.Name)
	}
	if input.Phone != nil {
		set = append(set, `phone = ?`)
		args = append(args, *input.Phone)
	}
	if input.IsActive != nil {
		set = append(set, `is_active = ?`)
		args = append(args, *input.IsActive)
	}
	args = append(args, deliveryPersonID)

	res, err := s.db.ExecContext(ctx, `UPDATE delivery_persons SET `+strings.Join(set, ", ")+` WHERE delivery_person_id = ?`, args...)
	if err != nil {
		return models.DeliveryPerson{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.DeliveryPerson{}, err
	} else if n == 0 {
		return models.DeliveryPerson{}, store.ErrDeliveryPersonNotFound
	}
	return getDeliveryPerson(ctx, s.db, deliveryPersonID)
}

func (s *Store) GetDeliveryPerson(ctx context.Context, deliveryPersonID string) (models.DeliveryPerson, error) {
	return getDeliveryPerson(ctx, s.db, deliveryPersonID)
}

func getDeliveryPerson(ctx context.Context, q querier, deliveryPersonID string) (models.DeliveryPerson, error) {
	person, err := scanDeliveryPerson(q.QueryRowContext(ctx, `SELECT `+deliveryPersonColumns+` FROM delivery_persons WHERE delivery_person_id = ?`, deliveryPersonID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DeliveryPerson{}, store.ErrDeliveryPersonNotFound
		}
		return models.DeliveryPerson{}, err
	}
	return person, nil
}

func (s *Store) ListDeliveryPersons(ctx context.Context) ([]models.DeliveryPerson, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+deliveryPersonColumns+` FROM delivery_persons ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []models.DeliveryPerson
	for rows.Next() {
		person, err := scanDeliveryPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, person)
	}
	return persons, rows.Err()
}

func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, name, phone, cpf, address, knows_church, allows_contact, created_at, updated_at
		FROM customers ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var customer models.Customer
		var cpf sql.NullString
		if err := rows.Scan(&customer.CustomerID, &customer.Name, &customer.Phone, &cpf, &customer.Address, &customer.KnowsChurch, &customer.AllowsContact, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
			return nil, err
		}
		customer.CPF = cpf.String
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}
