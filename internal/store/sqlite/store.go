// Package sqlite implements the order-service store on a single SQLite file.
// It is meant for single-node deployments of the event and for tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
//
// Write transactions take the database lock up front (BEGIN IMMEDIATE) and
// the pool is limited to one connection, so compound operations never
// interleave.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func dsn(path string) string {
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + params
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const editionColumns = `edition_id, name, production_date, closing_time, unit_price, capacity, sold_count, active, production_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanEdition(row rowScanner) (models.Edition, error) {
	var e models.Edition
	err := row.Scan(&e.EditionID, &e.Name, &e.ProductionDate, &e.ClosingTime, &e.UnitPrice, &e.Capacity, &e.SoldCount, &e.Active, &e.ProductionActive, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *Store) CreateEdition(ctx context.Context, input store.CreateEditionInput) (models.Edition, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Edition{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	if input.Activate {
		if _, err = tx.ExecContext(ctx, `UPDATE editions SET active = 0, updated_at = ? WHERE active = 1`, createdAt); err != nil {
			return models.Edition{}, err
		}
	}

	edition := models.Edition{
		EditionID:        uuid.NewString(),
		Name:             input.Name,
		ProductionDate:   input.ProductionDate,
		ClosingTime:      input.ClosingTime,
		UnitPrice:        input.UnitPrice,
		Capacity:         input.Capacity,
		Active:           input.Activate,
		ProductionActive: false,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO editions (`+editionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, 0, ?, ?)
	`, edition.EditionID, edition.Name, edition.ProductionDate, edition.ClosingTime, edition.UnitPrice, edition.Capacity, edition.Active, createdAt, createdAt)
	if err != nil {
		return models.Edition{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) ListEditions(ctx context.Context) ([]models.Edition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+editionColumns+` FROM editions ORDER BY production_date DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var editions []models.Edition
	for rows.Next() {
		edition, err := scanEdition(rows)
		if err != nil {
			return nil, err
		}
		editions = append(editions, edition)
	}
	return editions, rows.Err()
}

func (s *Store) GetEdition(ctx context.Context, editionID string) (models.Edition, error) {
	return getEdition(ctx, s.db, editionID)
}

func getEdition(ctx context.Context, q querier, editionID string) (models.Edition, error) {
	edition, err := scanEdition(q.QueryRowContext(ctx, `SELECT `+editionColumns+` FROM editions WHERE edition_id = ?`, editionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Edition{}, store.ErrEditionNotFound
		}
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) ActiveEdition(ctx context.Context) (models.Edition, error) {
	edition, err := scanEdition(s.db.QueryRowContext(ctx, `SELECT `+editionColumns+` FROM editions WHERE active = 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Edition{}, store.ErrNoActiveEdition
		}
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) LatestEdition(ctx context.Context) (models.Edition, error) {
	edition, err := scanEdition(s.db.QueryRowContext(ctx, `SELECT `+editionColumns+` FROM editions ORDER BY created_at DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Edition{}, store.ErrEditionNotFound
		}
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) ActivateEdition(ctx context.Context, editionID string) (models.Edition, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Edition{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = getEdition(ctx, tx, editionID); err != nil {
		return models.Edition{}, err
	}
	now := s.now()
	if _, err = tx.ExecContext(ctx, `UPDATE editions SET active = 0, updated_at = ? WHERE active = 1 AND edition_id <> ?`, now, editionID); err != nil {
		return models.Edition{}, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE editions SET active = 1, updated_at = ? WHERE edition_id = ?`, now, editionID); err != nil {
		return models.Edition{}, err
	}
	edition, err := getEdition(ctx, tx, editionID)
	if err != nil {
		return models.Edition{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) SetProductionActive(ctx context.Context, editionID string, active bool) (models.Edition, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE editions SET production_active = ?, updated_at = ? WHERE edition_id = ?`, active, s.now(), editionID)
	if err != nil {
		return models.Edition{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Edition{}, err
	} else if n == 0 {
		return models.Edition{}, store.ErrEditionNotFound
	}
	return getEdition(ctx, s.db, editionID)
}

func (s *Store) AddSoldQuantity(ctx context.Context, editionID string, quantity int) (models.Edition, error) {
	if err := addSoldQuantity(ctx, s.db, editionID, quantity, s.now()); err != nil {
		return models.Edition{}, err
	}
	return getEdition(ctx, s.db, editionID)
}

// addSoldQuantity applies a single atomic increment (negative to release).
func addSoldQuantity(ctx context.Context, q querier, editionID string, quantity int, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE editions SET sold_count = sold_count + ?, updated_at = ?
		WHERE edition_id = ? AND sold_count + ? >= 0`, quantity, at, editionID, quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return soldAdjustmentError(ctx, q, editionID)
	}
	return nil
}

// soldAdjustmentError explains why a sold_count update matched no row.
func soldAdjustmentError(ctx context.Context, q querier, editionID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM editions WHERE edition_id = ?`, editionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrEditionNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrSoldBelowZero
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
