// Package store provides the Data Access Layer (Repository) for xeno-crm.
// PostgresStore talks to PostgreSQL through pgx; MemoryStore keeps everything
// in process for tests and local runs.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a referenced customer or campaign does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a unique constraint (customer email) is violated.
	ErrDuplicate = errors.New("store: duplicate")
)

// PostgreSQL error codes handled explicitly.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// CustomerRepository persists customers and their derived stats.
type CustomerRepository interface {
	// CreateCustomer inserts c with zeroed stats and populates ID and CreatedAt.
	CreateCustomer(ctx context.Context, c *Customer) error

	// ListCustomers returns a page of customers (newest first) and the total count.
	ListCustomers(ctx context.Context, limit, offset int) ([]*Customer, int64, error)

	// FindCustomers returns every customer in registration order.
	FindCustomers(ctx context.Context) ([]*Customer, error)

	FindCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// ListCustomerIDs returns every customer id, used by the reconcile pass.
	ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error)

	// UpdateCustomerStats overwrites the derived fields. ErrNotFound when absent.
	UpdateCustomerStats(ctx context.Context, id uuid.UUID, stats CustomerStats) error
}

// OrderRepository persists immutable orders.
type OrderRepository interface {
	// CreateOrder inserts o. ErrNotFound when the customer does not exist.
	CreateOrder(ctx context.Context, o *Order) error

	// CreateOrders inserts every order in one transaction.
	CreateOrders(ctx context.Context, orders []*Order) error

	// FindOrdersByCustomer returns the customer's orders, most recent first.
	FindOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error)

	// ListOrders returns every order, most recent first.
	ListOrders(ctx context.Context) ([]*Order, error)
}

// CampaignRepository persists immutable campaigns.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	FindCampaignByID(ctx context.Context, id uuid.UUID) (*Campaign, error)

	// ListCampaignsByOwner returns the owner's campaigns, newest first.
	ListCampaignsByOwner(ctx context.Context, ownerID string) ([]*Campaign, error)
}

// LogRepository persists the append-only delivery log.
type LogRepository interface {
	// InsertLogs writes all records atomically: either every record is stored or none.
	InsertLogs(ctx context.Context, logs []*CommunicationLog) error

	// FindLogsByCampaign returns the campaign's logs, newest first.
	FindLogsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*CommunicationLog, error)
}

// Store aggregates every repository.
type Store interface {
	CustomerRepository
	OrderRepository
	CampaignRepository
	LogRepository
}
