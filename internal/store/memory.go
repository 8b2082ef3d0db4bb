package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sumitkumar2005/xeno-crm/internal/segment"
)

// Compile-time check to verify that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store. Every read returns copies so callers
// cannot mutate stored state.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	customers   []*Customer
	customerIdx map[uuid.UUID]int
	emails      map[string]uuid.UUID
	orders      []*Order
	campaigns   []*Campaign
	logs        []*CommunicationLog
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         func() time.Time { return time.Now().UTC() },
		customerIdx: make(map[uuid.UUID]int),
		emails:      make(map[string]uuid.UUID),
	}
}

// stamp returns a strictly increasing timestamp so registration order is
// recoverable from CreatedAt, as it is with the database default.
func (m *MemoryStore) stamp(last time.Time) time.Time {
	t := m.now()
	if !t.After(last) {
		t = last.Add(time.Microsecond)
	}
	return t
}

func (m *MemoryStore) CreateCustomer(_ context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.emails[c.Email]; taken {
		return fmt.Errorf("customer with email %q: %w", c.Email, ErrDuplicate)
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	var last time.Time
	if n := len(m.customers); n > 0 {
		last = m.customers[n-1].CreatedAt
	}
	c.CreatedAt = m.stamp(last)
	c.LifetimeSpend = decimal.Zero
	c.Visits = 0
	c.LastOrderDate = nil

	stored := *c
	m.customerIdx[c.ID] = len(m.customers)
	m.customers = append(m.customers, &stored)
	m.emails[c.Email] = c.ID
	return nil
}

func (m *MemoryStore) ListCustomers(_ context.Context, limit, offset int) ([]*Customer, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := int64(len(m.customers))
	out := []*Customer{}
	// Newest first.
	for i := len(m.customers) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyCustomer(m.customers[i]))
	}
	return out, total, nil
}

func (m *MemoryStore) FindCustomers(_ context.Context) ([]*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, copyCustomer(c))
	}
	return out, nil
}

func (m *MemoryStore) FindCustomerByID(_ context.Context, id uuid.UUID) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.customerIdx[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	return copyCustomer(m.customers[i]), nil
}

func (m *MemoryStore) ListCustomerIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(m.customers))
	for _, c := range m.customers {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (m *MemoryStore) UpdateCustomerStats(_ context.Context, id uuid.UUID, stats CustomerStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.customerIdx[id]
	if !ok {
		return fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	c := m.customers[i]
	c.LifetimeSpend = stats.LifetimeSpend
	c.Visits = stats.Visits
	c.LastOrderDate = copyTime(stats.LastOrderDate)
	return nil
}

func (m *MemoryStore) CreateOrder(ctx context.Context, o *Order) error {
	return m.CreateOrders(ctx, []*Order{o})
}

// CreateOrders is all-or-nothing: every customer is checked before anything is written.
func (m *MemoryStore) CreateOrders(_ context.Context, orders []*Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range orders {
		if _, ok := m.customerIdx[o.CustomerID]; !ok {
			return fmt.Errorf("customer %s: %w", o.CustomerID, ErrNotFound)
		}
	}

	now := m.now()
	for _, o := range orders {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		o.CreatedAt = now
		m.orders = append(m.orders, copyOrder(o))
	}
	return nil
}

func (m *MemoryStore) FindOrdersByCustomer(_ context.Context, customerID uuid.UUID) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Order{}
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, copyOrder(o))
		}
	}
	sortOrders(out)
	return out, nil
}

func (m *MemoryStore) ListOrders(_ context.Context) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, copyOrder(o))
	}
	sortOrders(out)
	return out, nil
}

func (m *MemoryStore) CreateCampaign(_ context.Context, c *Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Rules == nil {
		c.Rules = []segment.Condition{}
	}
	var last time.Time
	if n := len(m.campaigns); n > 0 {
		last = m.campaigns[n-1].CreatedAt
	}
	c.CreatedAt = m.stamp(last)
	m.campaigns = append(m.campaigns, copyCampaign(c))
	return nil
}

func (m *MemoryStore) FindCampaignByID(_ context.Context, id uuid.UUID) (*Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.campaigns {
		if c.ID == id {
			return copyCampaign(c), nil
		}
	}
	return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
}

func (m *MemoryStore) ListCampaignsByOwner(_ context.Context, ownerID string) ([]*Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Campaign{}
	for i := len(m.campaigns) - 1; i >= 0; i-- {
		if m.campaigns[i].OwnerID == ownerID {
			out = append(out, copyCampaign(m.campaigns[i]))
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertLogs(_ context.Context, logs []*CommunicationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range logs {
		known := slices.ContainsFunc(m.campaigns, func(c *Campaign) bool { return c.ID == l.CampaignID })
		if !known {
			return fmt.Errorf("campaign %s: %w", l.CampaignID, ErrNotFound)
		}
	}

	now := m.now()
	for _, l := range logs {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		stored := *l
		m.logs = append(m.logs, &stored)
	}
	return nil
}

func (m *MemoryStore) FindLogsByCampaign(_ context.Context, campaignID uuid.UUID) ([]*CommunicationLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*CommunicationLog{}
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].CampaignID == campaignID {
			l := *m.logs[i]
			out = append(out, &l)
		}
	}
	return out, nil
}

func sortOrders(orders []*Order) {
	slices.SortStableFunc(orders, func(a, b *Order) int {
		return b.Date.Compare(a.Date)
	})
}

func copyCustomer(c *Customer) *Customer {
	out := *c
	out.LastOrderDate = copyTime(c.LastOrderDate)
	return &out
}

func copyOrder(o *Order) *Order {
	out := *o
	out.Items = slices.Clone(o.Items)
	return &out
}

func copyCampaign(c *Campaign) *Campaign {
	out := *c
	out.Rules = slices.Clone(c.Rules)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
