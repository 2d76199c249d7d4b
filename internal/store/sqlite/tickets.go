package sqlite

import (
	"context"
	"database/sql"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"
)

func (s *Store) CreateTickets(ctx context.Context, numbers []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	created := 0
	for _, number := range store.UniqueNumbers(numbers) {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `INSERT INTO tickets (number, is_used, created_at) VALUES (?, 0, ?) ON CONFLICT (number) DO NOTHING`, number, now)
		if err != nil {
			return 0, err
		}
		var n int64
		if n, err = res.RowsAffected(); err != nil {
			return 0, err
		}
		created += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

func (s *Store) ListTickets(ctx context.Context, used *bool) ([]models.Ticket, error) {
	query := `SELECT number, is_used, used_at, order_id, created_at FROM tickets`
	var args []any
	if used != nil {
		query += ` WHERE is_used = ?`
		args = append(args, *used)
	}
	query += ` ORDER BY number ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		var usedAt sql.NullTime
		var orderID sql.NullString
		if err := rows.Scan(&ticket.Number, &ticket.IsUsed, &usedAt, &orderID, &ticket.CreatedAt); err != nil {
			return nil, err
		}
		ticket.UsedAt = nullTimePtr(usedAt)
		ticket.OrderID = nullStringPtr(orderID)
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *Store) CountTickets(ctx context.Context) (store.TicketCounts, error) {
	var counts store.TicketCounts
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_used THEN 1 ELSE 0 END), 0) FROM tickets`)
	if err := row.Scan(&counts.Total, &counts.Used); err != nil {
		return store.TicketCounts{}, err
	}
	return counts, nil
}

func (s *Store) CheckTickets(ctx context.Context, numbers []string) (store.TicketCheck, error) {
	return checkTickets(ctx, s.db, numbers)
}

// checkTickets splits numbers, in input order, into those that exist unused
// and those that are unknown or already used.
func checkTickets(ctx context.Context, q querier, numbers []string) (store.TicketCheck, error) {
	numbers = store.UniqueNumbers(numbers)
	check := store.TicketCheck{Available: []string{}, Unavailable: []string{}}
	if len(numbers) == 0 {
		return check, nil
	}

	rows, err := q.QueryContext(ctx, `SELECT number FROM tickets WHERE is_used = 0 AND number IN (`+placeholders(len(numbers))+`)`, stringArgs(numbers)...)
	if err != nil {
		return store.TicketCheck{}, err
	}
	defer rows.Close()

	free := make(map[string]struct{}, len(numbers))
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return store.TicketCheck{}, err
		}
		free[number] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return store.TicketCheck{}, err
	}

	for _, number := range numbers {
		if _, ok := free[number]; ok {
			check.Available = append(check.Available, number)
		} else {
			check.Unavailable = append(check.Unavailable, number)
		}
	}
	return check, nil
}

// MarkTicketsUsed flags the given tickets as used without linking them to an
// order. Tickets already used are left untouched.
func (s *Store) MarkTicketsUsed(ctx context.Context, numbers []string, usedAt time.Time) (int, error) {
	numbers = store.UniqueNumbers(numbers)
	if len(numbers) == 0 {
		return 0, nil
	}
	args := append([]any{usedAt}, stringArgs(numbers)...)
	res, err := s.db.ExecContext(ctx, `UPDATE tickets SET is_used = 1, used_at = ? WHERE is_used = 0 AND number IN (`+placeholders(len(numbers))+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// consumeTickets marks every number as used by orderID, or fails with a
// TicketsUnavailableError naming the ones that could not be taken. The caller
// must roll back on error.
func consumeTickets(ctx context.Context, q querier, numbers []string, orderID string, at time.Time) error {
	args := append([]any{at, orderID}, stringArgs(numbers)...)
	res, err := q.ExecContext(ctx, `UPDATE tickets SET is_used = 1, used_at = ?, order_id = ? WHERE is_used = 0 AND number IN (`+placeholders(len(numbers))+`)`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(n) == len(numbers) {
		return nil
	}

	rows, err := q.QueryContext(ctx, `SELECT number FROM tickets WHERE order_id = ?`, orderID)
	if err != nil {
		return err
	}
	defer rows.Close()
	taken := make(map[string]struct{}, n)
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return err
		}
		taken[number] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var unavailable []string
	for _, number := range numbers {
		if _, ok := taken[number]; !ok {
			unavailable = append(unavailable, number)
		}
	}
	return &store.TicketsUnavailableError{Numbers: unavailable}
}
