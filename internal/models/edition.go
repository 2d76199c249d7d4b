package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Edition struct {
	EditionID        string          `json:"edition_id"`
	Name             string          `json:"name"`
	ProductionDate   string          `json:"production_date"`
	ClosingTime      string          `json:"closing_time"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Capacity         int             `json:"capacity"`
	SoldCount        int             `json:"sold_count"`
	Active           bool            `json:"active"`
	ProductionActive bool            `json:"production_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Stock struct {
	EditionID  string `json:"edition_id"`
	Capacity   int    `json:"capacity"`
	Sold       int    `json:"sold"`
	Available  int    `json:"available"`
	LowStock   bool   `json:"low_stock"`
	OutOfStock bool   `json:"out_of_stock"`
}

const (
	DateLayout        = "2006-01-02"
	ClosingTimeLayout = "15:04"
)
