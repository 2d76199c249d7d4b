package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"

	"github.com/google/uuid"
)

func (s *Store) CreateVouchers(ctx context.Context, codes []string) (int, error) {
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
	for _, code := range store.UniqueNumbers(codes) {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `INSERT INTO vouchers (code, used, created_at) VALUES (?, 0, ?) ON CONFLICT (code) DO NOTHING`, code, now)
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

func (s *Store) ListVouchers(ctx context.Context) ([]models.VoucherListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.code, v.used, v.used_at, v.created_at, u.status, c.name
		FROM vouchers v
		LEFT JOIN voucher_usages u ON u.voucher_code = v.code
		LEFT JOIN customers c ON c.customer_id = u.customer_id
		ORDER BY v.code ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.VoucherListing
	for rows.Next() {
		var listing models.VoucherListing
		var usedAt sql.NullTime
		var usageStatus sql.NullString
		var customerName sql.NullString
		if err := rows.Scan(&listing.Code, &listing.Used, &usedAt, &listing.CreatedAt, &usageStatus, &customerName); err != nil {
			return nil, err
		}
		listing.UsedAt = nullTimePtr(usedAt)
		listing.CustomerName = customerName.String
		listing.ClaimStatus = claimStatus(listing.Used, usageStatus.String)
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

func claimStatus(used bool, usageStatus string) string {
	switch {
	case used:
		return models.ClaimRedeemed
	case usageStatus == models.UsageValidated:
		return models.ClaimValidated
	default:
		return models.ClaimAvailable
	}
}

func (s *Store) GetVoucherClaim(ctx context.Context, code string) (store.VoucherClaim, error) {
	return getVoucherClaim(ctx, s.db, code)
}

func getVoucherClaim(ctx context.Context, q querier, code string) (store.VoucherClaim, error) {
	var claim store.VoucherClaim
	var usedAt sql.NullTime
	row := q.QueryRowContext(ctx, `SELECT code, used, used_at, created_at FROM vouchers WHERE code = ?`, code)
	if err := row.Scan(&claim.Voucher.Code, &claim.Voucher.Used, &usedAt, &claim.Voucher.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.VoucherClaim{}, store.ErrVoucherNotFound
		}
		return store.VoucherClaim{}, err
	}
	claim.Voucher.UsedAt = nullTimePtr(usedAt)

	var usage models.VoucherUsage
	var customer models.Customer
	var cpf sql.NullString
	var redeemedAt, reminderAt sql.NullTime
	row = q.QueryRowContext(ctx, `
		SELECT u.usage_id, u.voucher_code, u.customer_id, u.edition_id, u.status, u.validated_at, u.redeemed_at, u.reminder_sent_at,
			c.customer_id, c.name, c.phone, c.cpf, c.address, c.knows_church, c.allows_contact, c.created_at, c.updated_at
		FROM voucher_usages u
		JOIN customers c ON c.customer_id = u.customer_id
		WHERE u.voucher_code = ?
	`, code)
	err := row.Scan(&usage.UsageID, &usage.VoucherCode, &usage.CustomerID, &usage.EditionID, &usage.Status, &usage.ValidatedAt, &redeemedAt, &reminderAt,
		&customer.CustomerID, &customer.Name, &customer.Phone, &cpf, &customer.Address, &customer.KnowsChurch, &customer.AllowsContact, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return claim, nil
		}
		return store.VoucherClaim{}, err
	}
	usage.RedeemedAt = nullTimePtr(redeemedAt)
	usage.ReminderSentAt = nullTimePtr(reminderAt)
	customer.CPF = cpf.String
	claim.Usage = &usage
	claim.Customer = &customer
	return claim, nil
}

func (s *Store) ValidateVoucher(ctx context.Context, input store.ValidateVoucherInput) (models.VoucherUsage, models.Customer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.VoucherUsage{}, models.Customer{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	claim, err := getVoucherClaim(ctx, tx, input.Code)
	if err != nil {
		return models.VoucherUsage{}, models.Customer{}, err
	}
	if claim.Voucher.Used {
		err = store.ErrAlreadyRedeemed
		return models.VoucherUsage{}, models.Customer{}, err
	}
	if claim.Usage != nil {
		err = store.ErrAlreadyValidated
		return models.VoucherUsage{}, models.Customer{}, err
	}

	validatedAt := input.ValidatedAt
	if validatedAt.IsZero() {
		validatedAt = s.now()
	}
	customer, err := upsertCustomer(ctx, tx, input.Customer, validatedAt)
	if err != nil {
		return models.VoucherUsage{}, models.Customer{}, err
	}

	usage := models.VoucherUsage{
		UsageID:     uuid.NewString(),
		VoucherCode: input.Code,
		CustomerID:  customer.CustomerID,
		EditionID:   input.EditionID,
		Status:      models.UsageValidated,
		ValidatedAt: validatedAt,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO voucher_usages (usage_id, voucher_code, customer_id, edition_id, status, validated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, usage.UsageID, usage.VoucherCode, usage.CustomerID, usage.EditionID, usage.Status, usage.ValidatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = store.ErrAlreadyValidated
		}
		return models.VoucherUsage{}, models.Customer{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.VoucherUsage{}, models.Customer{}, err
	}
	return usage, customer, nil
}

// upsertCustomer updates the customer holding the same CPF in place, or
// inserts a new one.
func upsertCustomer(ctx context.Context, q querier, input store.CustomerInput, at time.Time) (models.Customer, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO customers (customer_id, name, phone, cpf, address, knows_church, allows_contact, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cpf) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			address = excluded.address,
			knows_church = excluded.knows_church,
			allows_contact = excluded.allows_contact,
			updated_at = excluded.updated_at
	`, uuid.NewString(), input.Name, input.Phone, nullIfEmpty(input.CPF), input.Address, input.KnowsChurch, input.AllowsContact, at, at)
	if err != nil {
		return models.Customer{}, err
	}

	var customer models.Customer
	var cpf sql.NullString
	row := q.QueryRowContext(ctx, `
		SELECT customer_id, name, phone, cpf, address, knows_church, allows_contact, created_at, updated_at
		FROM customers WHERE cpf = ?
	`, input.CPF)
	if err := row.Scan(&customer.CustomerID, &customer.Name, &customer.Phone, &cpf, &customer.Address, &customer.KnowsChurch, &customer.AllowsContact, &customer.CreatedAt, &customer.UpdatedAt); err != nil {
		return models.Customer{}, err
	}
	customer.CPF = cpf.String
	return customer, nil
}

func (s *Store) RedeemVoucher(ctx context.Context, code string, order store.CreateOrderInput) (models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	redeemedAt := order.CreatedAt
	if redeemedAt.IsZero() {
		redeemedAt = s.now()
		order.CreatedAt = redeemedAt
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE vouchers SET used = 1, used_at = ?
		WHERE code = ? AND used = 0
			AND EXISTS (SELECT 1 FROM voucher_usages WHERE voucher_code = ? AND status = ?)
	`, redeemedAt, code, code, models.UsageValidated)
	if err != nil {
		return models.Order{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Order{}, err
	}
	if n == 0 {
		var claim store.VoucherClaim
		claim, err = getVoucherClaim(ctx, tx, code)
		if err != nil {
			return models.Order{}, err
		}
		if claim.Voucher.Used {
			err = store.ErrAlreadyRedeemed
		} else {
			err = store.ErrNotValidated
		}
		return models.Order{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE voucher_usages SET status = ?, redeemed_at = ? WHERE voucher_code = ?
	`, models.UsageRedeemed, redeemedAt, code); err != nil {
		return models.Order{}, err
	}

	order.IsVoucher = true
	order.VoucherCode = code
	created, err := insertOrder(ctx, tx, order)
	if err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Order{}, err
	}
	return created, nil
}

func (s *Store) ListPendingReminders(ctx context.Context, editionID string) ([]store.ReminderTarget, error) {
	query := `
		SELECT u.usage_id, u.voucher_code, c.name, c.phone
		FROM voucher_usages u
		JOIN customers c ON c.customer_id = u.customer_id
		JOIN vouchers v ON v.code = u.voucher_code
		WHERE u.status = ? AND v.used = 0 AND u.reminder_sent_at IS NULL
	`
	args := []any{models.UsageValidated}
	if editionID != "" {
		query += " AND u.edition_id = ?"
		args = append(args, editionID)
	}
	query += " ORDER BY u.validated_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []store.ReminderTarget
	for rows.Next() {
		var target store.ReminderTarget
		if err := rows.Scan(&target.UsageID, &target.VoucherCode, &target.CustomerName, &target.CustomerPhone); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

func (s *Store) MarkReminderSent(ctx context.Context, usageID string, sentAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE voucher_usages SET reminder_sent_at = ?
		WHERE usage_id = ? AND reminder_sent_at IS NULL
	`, sentAt, usageID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
