package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"

	"github.com/google/uuid"
)

const orderColumns = `order_id, order_number, edition_id, customer_name, customer_phone, customer_address, payment_method, total_value,
	is_voucher, is_ticket, is_televendas, count_in_sales, voucher_code, ticket_numbers, cell_name, status, delivery_person_id, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, input store.CreateOrderInput) (models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if input.CreatedAt.IsZero() {
		input.CreatedAt = s.now()
	}
	order, err := insertOrder(ctx, tx, input)
	if err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

// insertOrder consumes the order's tickets, allocates its number, writes the
// order with its items and debits the edition, all on q.
func insertOrder(ctx context.Context, q querier, input store.CreateOrderInput) (models.Order, error) {
	if input.Status == "" {
		input.Status = models.StatusPending
	}
	order := models.Order{
		OrderID:         uuid.NewString(),
		EditionID:       input.EditionID,
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		CustomerAddress: input.CustomerAddress,
		PaymentMethod:   input.PaymentMethod,
		TotalValue:      input.TotalValue,
		IsVoucher:       input.IsVoucher,
		IsTicket:        input.IsTicket,
		IsTelevendas:    input.IsTelevendas,
		CountInSales:    input.CountInSales,
		VoucherCode:     input.VoucherCode,
		TicketNumbers:   store.UniqueNumbers(input.TicketNumbers),
		CellName:        input.CellName,
		Status:          input.Status,
		CreatedAt:       input.CreatedAt,
		UpdatedAt:       input.CreatedAt,
	}

	if order.IsTicket && len(order.TicketNumbers) > 0 {
		if err := consumeTickets(ctx, q, order.TicketNumbers, order.OrderID, order.CreatedAt); err != nil {
			return models.Order{}, err
		}
	}

	var seq int64
	if err := q.QueryRowContext(ctx, `
		INSERT INTO order_sequences (name, next_number) VALUES ('orders', 1)
		ON CONFLICT (name) DO UPDATE SET next_number = order_sequences.next_number + 1
		RETURNING next_number
	`).Scan(&seq); err != nil {
		return models.Order{}, err
	}
	number, err := store.FormatOrderNumber(seq)
	if err != nil {
		return models.Order{}, err
	}
	order.OrderNumber = number

	ticketJSON, err := json.Marshal(order.TicketNumbers)
	if err != nil {
		return models.Order{}, err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`, order.OrderID, order.OrderNumber, order.EditionID, order.CustomerName, order.CustomerPhone, order.CustomerAddress,
		order.PaymentMethod, order.TotalValue, order.IsVoucher, order.IsTicket, order.IsTelevendas, order.CountInSales,
		nullIfEmpty(order.VoucherCode), string(ticketJSON), nullIfEmpty(order.CellName), order.Status, order.CreatedAt, order.UpdatedAt)
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
			OrderID:            order.OrderID,
			ItemName:           in.ItemName,
			Quantity:           in.Quantity,
			UnitPrice:          in.UnitPrice,
			TotalPrice:         in.TotalPrice,
			RemovedIngredients: nonNilStrings(in.RemovedIngredients),
			Observations:       in.Observations,
			CountInSales:       in.CountInSales,
		}
		removed, err := json.Marshal(item.RemovedIngredients)
		if err != nil {
			return models.Order{}, err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_items (item_id, order_id, item_name, quantity, unit_price, total_price, removed_ingredients, observations, count_in_sales, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, item.ItemID, item.OrderID, item.ItemName, item.Quantity, item.UnitPrice, item.TotalPrice, string(removed), item.Observations, item.CountInSales, i); err != nil {
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

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func scanOrder(row rowScanner) (models.Order, error) {
	var o models.Order
	var voucherCode, cellName, deliveryPersonID sql.NullString
	var ticketJSON string
	err := row.Scan(&o.OrderID, &o.OrderNumber, &o.EditionID, &o.CustomerName, &o.CustomerPhone, &o.CustomerAddress, &o.PaymentMethod, &o.TotalValue,
		&o.IsVoucher, &o.IsTicket, &o.IsTelevendas, &o.CountInSales, &voucherCode, &ticketJSON, &cellName, &o.Status, &deliveryPersonID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return models.Order{}, err
	}
	o.VoucherCode = voucherCode.String
	o.CellName = cellName.String
	o.DeliveryPersonID = nullStringPtr(deliveryPersonID)
	if ticketJSON != "" {
		if err := json.Unmarshal([]byte(ticketJSON), &o.TicketNumbers); err != nil {
			return models.Order{}, err
		}
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (models.Order, error) {
	return getOrder(ctx, s.db, orderID)
}

func getOrder(ctx context.Context, q querier, orderID string) (models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Order{}, store.ErrOrderNotFound
		}
		return models.Order{}, err
	}
	items, err := loadItems(ctx, q, []string{order.OrderID})
	if err != nil {
		return models.Order{}, err
	}
	order.Items = nonNilItems(items[order.OrderID])
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error) {
	var where []string
	var args []any
	if len(filter.Statuses) > 0 {
		where = append(where, `status IN (`+placeholders(len(filter.Statuses))+`)`)
		args = append(args, stringArgs(filter.Statuses)...)
	}
	if filter.Televendas != nil {
		where = append(where, `is_televendas = ?`)
		args = append(args, *filter.Televendas)
	}
	if filter.EditionID != "" {
		where = append(where, `edition_id = ?`)
		args = append(args, filter.EditionID)
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at ASC, order_number ASC`

	orders, err := queryOrders(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}
	items, err := loadItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = nonNilItems(items[orders[i].OrderID])
	}
	return orders, nil
}

// queryOrders reads every row before returning so the single pooled
// connection is free for the follow-up item query.
func queryOrders(ctx context.Context, q querier, query string, args ...any) ([]models.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
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
	return orders, rows.Err()
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_id, order_id, item_name, quantity, unit_price, total_price, removed_ingredients, observations, count_in_sales
		FROM order_items
		WHERE order_id IN (`+placeholders(len(orderIDs))+`)
		ORDER BY order_id, position ASC
	`, stringArgs(orderIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var item models.OrderItem
		var removed string
		if err := rows.Scan(&item.ItemID, &item.OrderID, &item.ItemName, &item.Quantity, &item.UnitPrice, &item.TotalPrice, &removed, &item.Observations, &item.CountInSales); err != nil {
			return nil, err
		}
		item.RemovedIngredients = []string{}
		if removed != "" {
			if err := json.Unmarshal([]byte(removed), &item.RemovedIngredients); err != nil {
				return nil, err
			}
		}
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

func (s *Store) TransitionOrder(ctx context.Context, input store.TransitionInput) (models.Order, error) {
	tr, ok := store.LookupTransition(input.Action)
	if !ok {
		return models.Order{}, store.ErrInvalidState
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	at := input.OccurredAt
	if at.IsZero() {
		at = s.now()
	}

	set := `status = ?, updated_at = ?`
	args := []any{tr.To, at}
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
		set += `, delivery_person_id = ?`
		args = append(args, person.DeliveryPersonID)
	}

	query := `UPDATE orders SET ` + set + ` WHERE order_id = ? AND status IN (` + placeholders(len(tr.From)) + `)`
	args = append(args, input.OrderID)
	args = append(args, stringArgs(tr.From)...)
	if televendas, constrained := tr.RequiresTelevendas(); constrained {
		query += ` AND is_televendas = ?`
		args = append(args, televendas)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Order{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Order{}, err
	}
	if n == 0 {
		var current models.Order
		if current, err = getOrder(ctx, tx, input.OrderID); err != nil {
			return models.Order{}, err
		}
		if err = tr.Check(current); err == nil {
			err = store.ErrInvalidState
		}
		return models.Order{}, err
	}

	order, err := getOrder(ctx, tx, input.OrderID)
	if err != nil {
		return models.Order{}, err
	}
	if tr.Action == store.ActionCancel {
		if counted := order.CountedQuantity(); counted > 0 {
			if err = addSoldQuantity(ctx, tx, order.EditionID, -counted, at); err != nil {
				return models.Order{}, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Order{}, err
	}
	return order, nil
}
