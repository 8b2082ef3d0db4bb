package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const orderColumns = `id, customer_id, order_date, amount, items, created_at`

const insertOrderQuery = `
	INSERT INTO orders (id, customer_id, order_date, amount, items)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
`

// CreateOrder inserts o. A missing customer surfaces as ErrNotFound.
func (s *PostgresStore) CreateOrder(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	err := s.db.QueryRow(ctx, insertOrderQuery, o.ID, o.CustomerID, o.Date, o.Amount, itemsOrEmpty(o.Items)).
		Scan(&o.CreatedAt)
	if err != nil {
		return orderInsertError(o.CustomerID, err)
	}
	return nil
}

// CreateOrders inserts every order inside one transaction using a pipelined batch.
func (s *PostgresStore) CreateOrders(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, o := range orders {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		batch.Queue(insertOrderQuery, o.ID, o.CustomerID, o.Date, o.Amount, itemsOrEmpty(o.Items)).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&o.CreatedAt)
			})
	}

	results := tx.SendBatch(ctx, batch)
	if err := results.Close(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("bulk order references unknown customer: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to insert orders: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit orders: %w", err)
	}
	return nil
}

// FindOrdersByCustomer returns the customer's orders, most recent first.
func (s *PostgresStore) FindOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY order_date DESC, id
	`
	rows, err := s.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return collectOrders(rows)
}

// ListOrders returns every order, most recent first.
func (s *PostgresStore) ListOrders(ctx context.Context) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY order_date DESC, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]*Order, error) {
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Date, &o.Amount, &o.Items, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return orders, nil
}

func orderInsertError(customerID uuid.UUID, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	return fmt.Errorf("failed to insert order: %w", err)
}

// itemsOrEmpty keeps the JSONB column an array when there are no items.
func itemsOrEmpty(items []LineItem) []LineItem {
	if items == nil {
		return []LineItem{}
	}
	return items
}
