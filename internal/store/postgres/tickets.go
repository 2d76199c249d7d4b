package postgres

import (
	"context"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateTickets(ctx context.Context, numbers []string) (int, error) {
	numbers = store.UniqueNumbers(numbers)
	if len(numbers) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (number, is_used, created_at)
		SELECT number, false, $2 FROM unnest($1::text[]) AS number
		ON CONFLICT (number) DO NOTHING
	`, numbers, s.now())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ListTickets(ctx context.Context, used *bool) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT number, is_used, used_at, order_id, created_at
		FROM tickets
		WHERE $1::boolean IS NULL OR is_used = $1
		ORDER BY number ASC
	`, used)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		if err := rows.Scan(&ticket.Number, &ticket.IsUsed, &ticket.UsedAt, &ticket.OrderID, &ticket.CreatedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *Store) CountTickets(ctx context.Context) (store.TicketCounts, error) {
	var counts store.TicketCounts
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_used) FROM tickets`).Scan(&counts.Total, &counts.Used)
	if err != nil {
		return store.TicketCounts{}, err
	}
	return counts, nil
}

func (s *Store) CheckTickets(ctx context.Context, numbers []string) (store.TicketCheck, error) {
	numbers = store.UniqueNumbers(numbers)
	check := store.TicketCheck{Available: []string{}, Unavailable: []string{}}
	if len(numbers) == 0 {
		return check, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT number FROM tickets WHERE NOT is_used AND number = ANY($1)`, numbers)
	if err != nil {
		return store.TicketCheck{}, err
	}
	free, err := collectNumbers(rows)
	if err != nil {
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

func (s *Store) MarkTicketsUsed(ctx context.Context, numbers []string, usedAt time.Time) (int, error) {
	numbers = store.UniqueNumbers(numbers)
	if len(numbers) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `UPDATE tickets SET is_used = true, used_at = $1 WHERE NOT is_used AND number = ANY($2)`, usedAt, numbers)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// consumeTickets marks every number as used by orderID, or fails with a
// TicketsUnavailableError naming the ones that could not be taken. The caller
// must roll back on error.
func consumeTickets(ctx context.Context, q querier, numbers []string, orderID string, at time.Time) error {
	rows, err := q.Query(ctx, `
		UPDATE tickets SET is_used = true, used_at = $1, order_id = $2
		WHERE NOT is_used AND number = ANY($3)
		RETURNING number
	`, at, orderID, numbers)
	if err != nil {
		return err
	}
	taken, err := collectNumbers(rows)
	if err != nil {
		return err
	}
	if len(taken) == len(numbers) {
		return nil
	}

	var unavailable []string
	for _, number := range numbers {
		if _, ok := taken[number]; !ok {
			unavailable = append(unavailable, number)
		}
	}
	return &store.TicketsUnavailableError{Numbers: unavailable}
}

func collectNumbers(rows pgx.Rows) (map[string]struct{}, error) {
	defer rows.Close()
	numbers := make(map[string]struct{})
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, err
		}
		numbers[number] = struct{}{}
	}
	return numbers, rows.Err()
}
