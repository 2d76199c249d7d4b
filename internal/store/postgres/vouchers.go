package postgres

import (
	"context"
	"errors"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateVouchers(ctx context.Context, codes []string) (int, error) {
	codes = store.UniqueNumbers(codes)
	if len(codes) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO vouchers (code, used, created_at)
		SELECT code, false, $2 FROM unnest($1::text[]) AS code
		ON CONFLICT (code) DO NOTHING
	`, codes, s.now())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ListVouchers(ctx context.Context) ([]models.VoucherListing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.code, v.used, v.used_at, v.created_at, COALESCE(u.status, ''), COALESCE(c.name, '')
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
		var usageStatus string
		if err := rows.Scan(&listing.Code, &listing.Used, &listing.UsedAt, &listing.CreatedAt, &usageStatus, &listing.CustomerName); err != nil {
			return nil, err
		}
		switch {
		case listing.Used:
			listing.ClaimStatus = models.ClaimRedeemed
		case usageStatus == models.UsageValidated:
			listing.ClaimStatus = models.ClaimValidated
		default:
			listing.ClaimStatus = models.ClaimAvailable
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

func (s *Store) GetVoucherClaim(ctx context.Context, code string) (store.VoucherClaim, error) {
	return getVoucherClaim(ctx, s.pool, code, false)
}

func getVoucherClaim(ctx context.Context, q querier, code string, forUpdate bool) (store.VoucherClaim, error) {
	var claim store.VoucherClaim
	query := `SELECT code, used, used_at, created_at FROM vouchers WHERE code = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	row := q.QueryRow(ctx, query, code)
	if err := row.Scan(&claim.Voucher.Code, &claim.Voucher.Used, &claim.Voucher.UsedAt, &claim.Voucher.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.VoucherClaim{}, store.ErrVoucherNotFound
		}
		return store.VoucherClaim{}, err
	}

	var usage models.VoucherUsage
	var customer models.Customer
	row = q.QueryRow(ctx, `
		SELECT u.usage_id, u.voucher_code, u.customer_id, u.edition_id, u.status, u.validated_at, u.redeemed_at, u.reminder_sent_at,
			c.customer_id, c.name, c.phone, COALESCE(c.cpf, ''), c.address, c.knows_church, c.allows_contact, c.created_at, c.updated_at
		FROM voucher_usages u
		JOIN customers c ON c.customer_id = u.customer_id
		WHERE u.voucher_code = $1
	`, code)
	err := row.Scan(&usage.UsageID, &usage.VoucherCode, &usage.CustomerID, &usage.EditionID, &usage.Status, &usage.ValidatedAt, &usage.RedeemedAt, &usage.ReminderSentAt,
		&customer.CustomerID, &customer.Name, &customer.Phone, &customer.CPF, &customer.Address, &customer.KnowsChurch, &customer.AllowsContact, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return claim, nil
		}
		return store.VoucherClaim{}, err
	}
	claim.Usage = &usage
	claim.Customer = &customer
	return claim, nil
}

func (s *Store) ValidateVoucher(ctx context.Context, input store.ValidateVoucherInput) (models.VoucherUsage, models.Customer, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.VoucherUsage{}, models.Customer{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	claim, err := getVoucherClaim(ctx, tx, input.Code, true)
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

	var customer models.Customer
	err = tx.QueryRow(ctx, `
		INSERT INTO customers (customer_id, name, phone, cpf, address, knows_church, allows_contact, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (cpf) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			knows_church = EXCLUDED.knows_church,
			allows_contact = EXCLUDED.allows_contact,
			updated_at = EXCLUDED.updated_at
		RETURNING customer_id, name, phone, COALESCE(cpf, ''), address, knows_church, allows_contact, created_at, updated_at
	`, uuid.NewString(), input.Customer.Name, input.Customer.Phone, nullIfEmpty(input.Customer.CPF), input.Customer.Address,
		input.Customer.KnowsChurch, input.Customer.AllowsContact, validatedAt).Scan(
		&customer.CustomerID, &customer.Name, &customer.Phone, &customer.CPF, &customer.Address, &customer.KnowsChurch, &customer.AllowsContact, &customer.CreatedAt, &customer.UpdatedAt)
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
	_, err = tx.Exec(ctx, `
		INSERT INTO voucher_usages (usage_id, voucher_code, customer_id, edition_id, status, validated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, usage.UsageID, usage.VoucherCode, usage.CustomerID, usage.EditionID, usage.Status, usage.ValidatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = store.ErrAlreadyValidated
		}
		return models.VoucherUsage{}, models.Customer{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.VoucherUsage{}, models.Customer{}, err
	}
	return usage, customer, nil
}

func (s *Store) RedeemVoucher(ctx context.Context, code string, order store.CreateOrderInput) (models.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Order{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	redeemedAt := order.CreatedAt

	tag, err := tx.Exec(ctx, `
		UPDATE vouchers SET used = true, used_at = $1
		WHERE code = $2 AND NOT used
			AND EXISTS (SELECT 1 FROM voucher_usages WHERE voucher_code = $2 AND status = $3)
	`, redeemedAt, code, models.UsageValidated)
	if err != nil {
		return models.Order{}, err
	}
	if tag.RowsAffected() == 0 {
		var claim store.VoucherClaim
		claim, err = getVoucherClaim(ctx, tx, code, false)
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

	if _, err = tx.Exec(ctx, `
		UPDATE voucher_usages SET status = $1, redeemed_at = $2 WHERE voucher_code = $3
	`, models.UsageRedeemed, redeemedAt, code); err != nil {
		return models.Order{}, err
	}

	order.IsVoucher = true
	order.VoucherCode = code
	created, err := insertOrder(ctx, tx, order)
	if err != nil {
		return models.Order{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Order{}, err
	}
	return created, nil
}

func (s *Store) ListPendingReminders(ctx context.Context, editionID string) ([]store.ReminderTarget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.usage_id, u.voucher_code, c.name, c.phone
		FROM voucher_usages u
		JOIN customers c ON c.customer_id = u.customer_id
		JOIN vouchers v ON v.code = u.voucher_code
		WHERE u.status = $1 AND NOT v.used AND u.reminder_sent_at IS NULL
			AND ($2 = '' OR u.edition_id = $2)
		ORDER BY u.validated_at ASC
	`, models.UsageValidated, editionID)
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
	tag, err := s.pool.Exec(ctx, `
		UPDATE voucher_usages SET reminder_sent_at = $1
		WHERE usage_id = $2 AND reminder_sent_at IS NULL
	`, sentAt, usageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
