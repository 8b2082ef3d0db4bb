package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sumitkumar2005/xeno-crm/internal/segment"
)

// Customer mirrors the 'customers' table.
//
// LifetimeSpend, Visits and LastOrderDate are derived from the customer's
// orders. They are written only through UpdateCustomerStats.
type Customer struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone,omitempty"`
	LifetimeSpend decimal.Decimal `json:"lifetime_spend"`
	Visits        int             `json:"visits"`
	LastOrderDate *time.Time      `json:"last_order_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Attribute exposes the customer to the segmentation engine.
// last_order_date is reported in Unix milliseconds.
func (c Customer) Attribute(name string) (segment.Value, bool) {
	switch name {
	case "id":
		return segment.StringValue(c.ID.String()), true
	case "name":
		return segment.StringValue(c.Name), true
	case "email":
		return segment.StringValue(c.Email), true
	case "phone":
		if c.Phone == "" {
			return segment.Value{}, false
		}
		return segment.StringValue(c.Phone), true
	case segment.AttrLifetimeSpend:
		return segment.NumberValue(c.LifetimeSpend.InexactFloat64()), true
	case segment.AttrVisits:
		return segment.NumberValue(float64(c.Visits)), true
	case segment.AttrLastOrderDate:
		if c.LastOrderDate == nil {
			return segment.Value{}, false
		}
		return segment.NumberValue(float64(c.LastOrderDate.UnixMilli())), true
	}
	return segment.Value{}, false
}

// Stats returns the derived fields currently stored on the customer.
func (c Customer) Stats() CustomerStats {
	return CustomerStats{
		LifetimeSpend: c.LifetimeSpend,
		Visits:        c.Visits,
		LastOrderDate: c.LastOrderDate,
	}
}

// CustomerStats is the aggregate of a customer's order set.
type CustomerStats struct {
	LifetimeSpend decimal.Decimal `json:"lifetime_spend"`
	Visits        int             `json:"visits"`
	LastOrderDate *time.Time      `json:"last_order_date"`
}

// Equal compares two stats snapshots by value.
func (s CustomerStats) Equal(o CustomerStats) bool {
	if !s.LifetimeSpend.Equal(o.LifetimeSpend) || s.Visits != o.Visits {
		return false
	}
	if s.LastOrderDate == nil || o.LastOrderDate == nil {
		return s.LastOrderDate == nil && o.LastOrderDate == nil
	}
	return s.LastOrderDate.Equal(*o.LastOrderDate)
}

// LineItem is one product line of an order.
type LineItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order mirrors the 'orders' table. Items are stored as JSONB.
type Order struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Items      []LineItem      `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ItemsTotal returns Σ price × quantity over the order's items.
func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Campaign mirrors the 'campaigns' table. Rules are stored as JSONB.
type Campaign struct {
	ID        uuid.UUID           `json:"id"`
	OwnerID   string              `json:"owner_id"`
	Rules     []segment.Condition `json:"rules"`
	Message   string              `json:"message"`
	CreatedAt time.Time           `json:"created_at"`
}

// DeliveryStatus is the outcome of one simulated delivery.
type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "SENT"
	StatusFailed DeliveryStatus = "FAILED"
)

// CommunicationLog mirrors the append-only 'communication_logs' table.
// Name and email are snapshots taken at send time.
type CommunicationLog struct {
	ID            uuid.UUID      `json:"id"`
	CampaignID    uuid.UUID      `json:"campaign_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	Message       string         `json:"message"`
	Status        DeliveryStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}
