package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to verify that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore is the implementation of Store backed by PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new repository instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

const customerColumns = `id, name, email, phone, lifetime_spend, visits, last_order_date, created_at`

// CreateCustomer inserts a new customer. Stats start at zero regardless of the
// values carried by c.
func (s *PostgresStore) CreateCustomer(ctx context.Context, c *Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	query := `
		INSERT INTO customers (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING lifetime_spend, visits, last_order_date, created_at
	`

	err := s.db.QueryRow(ctx, query, c.ID, c.Name, c.Email, c.Phone).
		Scan(&c.LifetimeSpend, &c.Visits, &c.LastOrderDate, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("customer with email %q: %w", c.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert customer: %w", err)
	}

	return nil
}

// ListCustomers retrieves a page of customers and the total count.
func (s *PostgresStore) ListCustomers(ctx context.Context, limit, offset int) ([]*Customer, int64, error) {
	// 1. Get Total Count (for pagination metadata)
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	if total == 0 {
		return []*Customer{}, 0, nil
	}

	// 2. Get Data
	query := `SELECT ` + customerColumns + `
		FROM customers
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}

	customers, err := collectCustomers(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

// FindCustomers returns every customer in registration order.
// Segmentation relies on this order being stable between calls.
func (s *PostgresStore) FindCustomers(ctx context.Context) ([]*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	return collectCustomers(rows, 0)
}

// FindCustomerByID returns ErrNotFound when no row matches.
func (s *PostgresStore) FindCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	var c Customer
	err := s.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone,
		&c.LifetimeSpend, &c.Visits, &c.LastOrderDate, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

// ListCustomerIDs returns every customer id.
func (s *PostgresStore) ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM customers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer ids: %w", err)
	}
	return ids, nil
}

// UpdateCustomerStats overwrites the three derived fields in a single statement.
func (s *PostgresStore) UpdateCustomerStats(ctx context.Context, id uuid.UUID, stats CustomerStats) error {
	query := `
		UPDATE customers
		SET lifetime_spend = $2, visits = $3, last_order_date = $4
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, id, stats.LifetimeSpend, stats.Visits, stats.LastOrderDate)
	if err != nil {
		return fmt.Errorf("failed to update customer stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	return nil
}

// collectCustomers scans and closes rows. capacity pre-sizes the slice when known.
func collectCustomers(rows pgx.Rows, capacity int) ([]*Customer, error) {
	// Ensure rows are closed to prevent connection leaks in the pool.
	defer rows.Close()

	customers := make([]*Customer, 0, capacity)
	for rows.Next() {
		var c Customer
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Email, &c.Phone,
			&c.LifetimeSpend, &c.Visits, &c.LastOrderDate, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		customers = append(customers, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return customers, nil
}
