package postgres

import (
	"context"
	"errors"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const deliveryPersonColumns = `delivery_person_id, name, phone, is_active, created_at, updated_at`

func scanDeliveryPerson(row pgx.Row) (models.DeliveryPerson, error) {
	var p models.DeliveryPerson
	err := row.Scan(&p.DeliveryPersonID, &p.Name, &p.Phone, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreateDeliveryPerson(ctx context.Context, input store.DeliveryPersonInput) (models.DeliveryPerson, error) {
	now := s.now()
	return scanDeliveryPerson(s.pool.QueryRow(ctx, `
		INSERT INTO delivery_persons (`+deliveryPersonColumns+`)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING `+deliveryPersonColumns,
		uuid.NewString(), input.Name, input.Phone, input.IsActive, now))
}

func (s *Store) UpdateDeliveryPerson(ctx context.Context, deliveryPersonID string, input store.UpdateDeliveryPersonInput) (models.DeliveryPerson, error) {
	person, err := scanDeliveryPerson(s.pool.QueryRow(ctx, `
		UPDATE delivery_persons SET
			name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			is_active = COALESCE($4, is_active),
			updated_at = $5
		WHERE delivery_person_id = $1
		RETURNING `+deliveryPersonColumns,
		deliveryPersonID, input.Name, input.Phone, input.IsActive, s.now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DeliveryPerson{}, store.ErrDeliveryPersonNotFound
		}
		return models.DeliveryPerson{}, err
	}
	return person, nil
}

func (s *Store) GetDeliveryPerson(ctx context.Context, deliveryPersonID string) (models.DeliveryPerson, error) {
	return getDeliveryPerson(ctx, s.pool, deliveryPersonID)
}

func getDeliveryPerson(ctx context.Context, q querier, deliveryPersonID string) (models.DeliveryPerson, error) {
	person, err := scanDeliveryPerson(q.QueryRow(ctx, `SELECT `+deliveryPersonColumns+` FROM delivery_persons WHERE delivery_person_id = $1`, deliveryPersonID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DeliveryPerson{}, store.ErrDeliveryPersonNotFound
		}
		return models.DeliveryPerson{}, err
	}
	return person, nil
}

func (s *Store) ListDeliveryPersons(ctx context.Context) ([]models.DeliveryPerson, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+deliveryPersonColumns+` FROM delivery_persons ORDER BY name ASC`)
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
	rows, err := s.pool.Query(ctx, `
		SELECT customer_id, name, phone, COALESCE(cpf, ''), address, knows_church, allows_contact, created_at, updated_at
		FROM customers ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.CustomerID, &c.Name, &c.Phone, &c.CPF, &c.Address, &c.KnowsChurch, &c.AllowsContact, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
