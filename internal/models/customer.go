package models

import "time"

type Customer struct {
	CustomerID    string    `json:"customer_id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	CPF           string    `json:"cpf,omitempty"`
	Address       string    `json:"address,omitempty"`
	KnowsChurch   bool      `json:"knows_church"`
	AllowsContact bool      `json:"allows_contact"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type DeliveryPerson struct {
	DeliveryPersonID string    `json:"delivery_person_id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
