package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/store"
	"dogao/order-service/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Open connects a pool to dsn and wraps it in a Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewStore(pool), nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies every embedded migration in file name order. Migrations are
// written to be re-runnable.
func (s *Store) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, s.pool, migrations.FS)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	names, err := migrationFiles(fsys)
	if err != nil {
		return err
	}
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

func migrationFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const editionColumns = `edition_id, name, production_date, closing_time, unit_price, capacity, sold_count, active, production_active, created_at, updated_at`

func scanEdition(row pgx.Row) (models.Edition, error) {
	var e models.Edition
	err := row.Scan(&e.EditionID, &e.Name, &e.ProductionDate, &e.ClosingTime, &e.UnitPrice, &e.Capacity, &e.SoldCount, &e.Active, &e.ProductionActive, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *Store) CreateEdition(ctx context.Context, input store.CreateEditionInput) (models.Edition, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Edition{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	if input.Activate {
		if _, err = tx.Exec(ctx, `UPDATE editions SET active = false, updated_at = $1 WHERE active`, createdAt); err != nil {
			return models.Edition{}, err
		}
	}

	edition, err := scanEdition(tx.QueryRow(ctx, `
		INSERT INTO editions (`+editionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, false, $8, $8)
		RETURNING `+editionColumns,
		uuid.NewString(), input.Name, input.ProductionDate, input.ClosingTime, money(input.UnitPrice), input.Capacity, input.Activate, createdAt))
	if err != nil {
		return models.Edition{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) ListEditions(ctx context.Context) ([]models.Edition, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+editionColumns+` FROM editions ORDER BY production_date DESC, created_at DESC`)
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
	return getEdition(ctx, s.pool, editionID, false)
}

func getEdition(ctx context.Context, q querier, editionID string, forUpdate bool) (models.Edition, error) {
	query := `SELECT ` + editionColumns + ` FROM editions WHERE edition_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	edition, err := scanEdition(q.QueryRow(ctx, query, editionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Edition{}, store.ErrEditionNotFound
		}
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) ActiveEdition(ctx context.Context) (models.Edition, error) {
	edition, err := scanEdition(s.pool.QueryRow(ctx, `SELECT `+editionColumns+` FROM editions WHERE active`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Edition{}, store.ErrNoActiveEdition
		}
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) LatestEdition(ctx context.Context) (models.Edition, error) {
	edition, err := scanEdition(s.pool.QueryRow(ctx, `SELECT `+editionColumns+` FROM editions ORDER BY created_at DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Edition{}, store.ErrEditionNotFound
		}
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) ActivateEdition(ctx context.Context, editionID string) (models.Edition, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Edition{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = getEdition(ctx, tx, editionID, true); err != nil {
		return models.Edition{}, err
	}
	now := s.now()
	if _, err = tx.Exec(ctx, `UPDATE editions SET active = false, updated_at = $1 WHERE active AND edition_id <> $2`, now, editionID); err != nil {
		return models.Edition{}, err
	}
	edition, err := scanEdition(tx.QueryRow(ctx, `
		UPDATE editions SET active = true, updated_at = $1 WHERE edition_id = $2
		RETURNING `+editionColumns, now, editionID))
	if err != nil {
		return models.Edition{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) SetProductionActive(ctx context.Context, editionID string, active bool) (models.Edition, error) {
	edition, err := scanEdition(s.pool.QueryRow(ctx, `
		UPDATE editions SET production_active = $1, updated_at = $2 WHERE edition_id = $3
		RETURNING `+editionColumns, active, s.now(), editionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Edition{}, store.ErrEditionNotFound
		}
		return models.Edition{}, err
	}
	return edition, nil
}

func (s *Store) AddSoldQuantity(ctx context.Context, editionID string, quantity int) (models.Edition, error) {
	edition, err := scanEdition(s.pool.QueryRow(ctx, `
		UPDATE editions SET sold_count = sold_count + $1, updated_at = $2
		WHERE edition_id = $3 AND sold_count + $1 >= 0
		RETURNING `+editionColumns, quantity, s.now(), editionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Edition{}, soldAdjustmentError(ctx, s.pool, editionID)
		}
		return models.Edition{}, err
	}
	return edition, nil
}

// addSoldQuantity applies a single atomic increment (negative to release).
func addSoldQuantity(ctx context.Context, q querier, editionID string, quantity int, at time.Time) error {
	tag, err := q.Exec(ctx, `
		UPDATE editions SET sold_count = sold_count + $1, updated_at = $2
		WHERE edition_id = $3 AND sold_count + $1 >= 0`, quantity, at, editionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return soldAdjustmentError(ctx, q, editionID)
	}
	return nil
}

// soldAdjustmentError explains why a sold_count update matched no row.
func soldAdjustmentError(ctx context.Context, q querier, editionID string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM editions WHERE edition_id = $1`, editionID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrEditionNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrSoldBelowZero
}

// money renders an amount in the text form NUMERIC columns accept.
func money(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
