package service

import (
	"context"
	"errors"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"
)

// StockOf derives the remaining capacity of an edition. Available goes
// negative when the edition is oversold. An edition is low on stock once the
// remainder reaches the smaller of threshold and a tenth of its capacity.
func StockOf(edition models.Edition, threshold int) models.Stock {
	available := edition.Capacity - edition.SoldCount
	limit := threshold
	if tenth := edition.Capacity / 10; tenth < limit {
		limit = tenth
	}
	out := available <= 0
	return models.Stock{
		EditionID:  edition.EditionID,
		Capacity:   edition.Capacity,
		Sold:       edition.SoldCount,
		Available:  available,
		LowStock:   !out && available <= limit,
		OutOfStock: out,
	}
}

func (s *Service) Stock(edition models.Edition) models.Stock {
	return StockOf(edition, s.lowStockThreshold)
}

// ActiveStock reports the stock of the active edition.
func (s *Service) ActiveStock(ctx context.Context) (models.Edition, models.Stock, error) {
	edition, err := s.store.ActiveEdition(ctx)
	if err != nil {
		return models.Edition{}, models.Stock{}, err
	}
	return edition, s.Stock(edition), nil
}

// RecordSoldQuantity adjusts the sold counter of an edition by quantity in a
// single atomic increment. A decrement may not take it below zero.
func (s *Service) RecordSoldQuantity(ctx context.Context, editionID string, quantity int) (models.Stock, error) {
	if quantity == 0 {
		return models.Stock{}, invalid("quantity", "must not be zero")
	}
	edition, err := s.store.AddSoldQuantity(ctx, editionID, quantity)
	if errors.Is(err, store.ErrSoldBelowZero) {
		return models.Stock{}, invalid("quantity", "would drop the sold count below zero")
	}
	if err != nil {
		return models.Stock{}, err
	}
	return s.Stock(edition), nil
}
