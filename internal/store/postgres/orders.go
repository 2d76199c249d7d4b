package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `order_id, order_number, edition_id, customer_name, customer_phone, customer_address, payment_method, total_value,
	is_voucher, is_ticket, is_televendas, count_in_sales, COALESCE(voucher_code, ''), ticket_numbers, COALESCE(cell_name, ''), status,
	delivery_person_id, created_at, updated_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.OrderID, &o.OrderNumber, &o.EditionID, &o.CustomerName, &o.CustomerPhone, &o.CustomerAddress, &o.PaymentMethod, &o.TotalValue,
		&o.IsVoucher, &o.IsTicket, &o.IsTelevendas, &o.CountInSales, &o.VoucherCode, &o.TicketNumbers, &o.CellName, &o.Status,
		&o.DeliveryPersonID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *Store) CreateOrder(ctx context.Context, input store.CreateOrderInput) (models.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if input.CreatedAt.IsZero() {
		input.CreatedAt = s.now()
	}
	order, err := insertOrder(ctx, tx, input)
	if err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func nextOrderNumber(ctx context.Context, q querier) (string, error) {
	var seq int64
	err := q.QueryRow(ctx, `
		INSERT INTO order_sequences (name, next_number) VALUES ('orders', 1)
		ON CONFLICT (name) DO UPDATE SET next_number = order_sequences.next_number + 1
		RETURNING next_number
	`).Scan(&seq)
	if err != nil {
		return "", err
	}
	return store.FormatOrderNumber(seq)
}

// insertOrder consumes the order's tickets, allocates its number, writes the
// order with its items and debits the edition, all on q.
func insertOrder(ctx context.Context, q querier, input store.CreateOrderInput) (models.Order, error) {
	status := input.Status
	if status == "" {
		status = models.StatusPending
	}
	orderID := uuid.NewString()
	tickets := store.UniqueNumbers(input.TicketNumbers)

	if input.IsTicket && len(tickets) > 0 {
		if err := consumeTickets(ctx, q, tickets, orderID, input.CreatedAt); err != nil {
			return models.Order{}, err
		}
	}

	number, err := nextOrderNumber(ctx, q)
	if err != nil {
		return models.Order{}, err
	}

	order, err := scanOrder(q.QueryRow(ctx, `
		INSERT INTO orders (order_id, order_number, edition_id, customer_name, customer_phone, customer_address, payment_method, total_value,
			is_voucher, is_ticket, is_televendas, count_in_sales, voucher_code, ticket_numbers, cell_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		RETURNING `+orderColumns,
		orderID, number, input.EditionID, input.CustomerName, input.CustomerPhone, input.CustomerAddress, input.PaymentMethod, money(input.TotalValue),
		input.IsVoucher, input.IsTicket, input.IsTelevendas, input.CountInSales, nullIfEmpty(input.VoucherCode), tickets, nullIfEmpty(input.CellName),
		status, input.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Order{}, store.ErrOrderNumbersExhausted
		}
		return models.Order{}, err
	}

	order.Items = make([]models.OrderItem, 0, len(input.Items))
	for i, in := range input.Items {
		item := models.OrderItem{
			ItemID:             uuid.NewString(),
			OrderID:            orderID,
			ItemName:           in.ItemName,
			Quantity:           in.Quantity,
			UnitPrice:          in.UnitPrice,
			TotalPrice:         in.TotalPrice,
			RemovedIngredients: nonNilStrings(in.RemovedIngredients),
			Observations:       in.Observations,
			CountInSales:       in.CountInSales,
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO order_items (item_id, order_id, item_name, quantity, unit_price, total_price, removed_ingredients, observations, count_in_sales, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, item.ItemID, item.OrderID, item.ItemName, item.Quantity, money(item.UnitPrice), money(item.TotalPrice),
			item.RemovedIngredients, item.Observations, item.CountInSales, i); err != nil {
			return models.Order{}, err
		}
		order.Items = append(order.Items, item)
	}

	if counted := order.CountedQuantity(); counted > 0 {
		if err := addSoldQuantity(ctx, q, order.EditionID, counted, order.CreatedAt); err != nil {
			return models.Order{}, err
		}
	}
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	return getOrder(ctx, s.pool, orderID)
}

func getOrder(ctx context.Context, q querier, orderID string) (models.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	items, err := loadItems(ctx, q, []string{orderID})
	if err != nil {
		return models.Order{}, err
	}
	order.Items = nonNilItems(items[orderID])
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	query, args := buildOrderQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}
	items, err := loadItems(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = nonNilItems(items[orders[i].OrderID])
	}
	return orders, nil
}

func buildOrderQuery(filter store.OrderFilter) (string, []any) {
	var where []string
	var args []any
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.Televendas != nil {
		args = append(args, *filter.Televendas)
		where = append(where, fmt.Sprintf("is_televendas = $%d", len(args)))
	}
	if filter.EditionID != "" {
		args = append(args, filter.EditionID)
		where = append(where, fmt.Sprintf("edition_id = $%d", len(args)))
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at ASC, order_number ASC`
	return query, args
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]models.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT item_id, order_id, item_name, quantity, unit_price, total_price, removed_ingredients, observations, count_in_sales
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position ASC
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ItemID, &item.OrderID, &item.ItemName, &item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.RemovedIngredients, &item.Observations, &item.CountInSales); err != nil {
			return nil, err
		}
		item.RemovedIngredients = nonNilStrings(item.RemovedIngredients)
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	return items, rows.Err()
}

func nonNilItems(items []models.OrderItem) []models.OrderItem {
	if items == nil {
		return []models.OrderItem{}
	}
	return items
}

// buildTransitionUpdate renders the conditional update for a transition. The
// update matches only orders currently in one of the transition's source
// states and, where the action is fulfillment-specific, of the right kind.
func buildTransitionUpdate(tr store.OrderTransition, input store.TransitionInput, deliveryPersonID string) (string, []any) {
	args := []any{tr.To, input.OccurredAt, input.OrderID, tr.From}
	set := `status = $1, updated_at = $2`
	if deliveryPersonID != "" {
		args = append(args, deliveryPersonID)
		set += fmt.Sprintf(`, delivery_person_id = $%d`, len(args))
	}
	query := `UPDATE orders SET ` + set + ` WHERE order_id = $3 AND status = ANY($4)`
	if televendas, constrained := tr.RequiresTelevendas(); constrained {
		args = append(args, televendas)
		query += fmt.Sprintf(` AND is_televendas = $%d`, len(args))
	}
	return query + ` RETURNING order_id`, args
}

func (s *Store) TransitionOrder(ctx context.Context, input store.TransitionInput) (models.Order, error) {
	tr, ok := store.LookupTransition(input.Action)
	if !ok {
		return models.Order{}, store.ErrInvalidState
	}
	if input.OccurredAt.IsZero() {
		input.OccurredAt = s.now()
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var deliveryPersonID string
	if tr.Action == store.ActionAssignDelivery {
		var person models.DeliveryPerson
		person, err = getDeliveryPerson(ctx, tx, input.DeliveryPersonID)
		if err != nil {
			return models.Order{}, err
		}
		if !person.IsActive {
			err = store.ErrDeliveryPersonInactive
			return models.Order{}, err
		}
		deliveryPersonID = person.DeliveryPersonID
	}

	query, args := buildTransitionUpdate(tr, input, deliveryPersonID)
	var updatedID string
	if err = tx.QueryRow(ctx, query, args...).Scan(&updatedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var current models.Order
			if current, err = getOrder(ctx, tx, input.OrderID); err != nil {
				return models.Order{}, err
			}
			if err = tr.Check(current); err == nil {
				err = store.ErrInvalidState
			}
		}
		return models.Order{}, err
	}

	order, err := getOrder(ctx, tx, input.OrderID)
	if err != nil {
		return models.Order{}, err
	}
	if tr.Action == store.ActionCancel {
		if counted := order.CountedQuantity(); counted > 0 {
			if err = addSoldQuantity(ctx, tx, order.EditionID, -counted, input.OccurredAt); err != nil {
				return models.Order{}, err
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return order, nil
}
