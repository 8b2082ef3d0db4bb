package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumitkumar2005/xeno-crm/internal/auth"
	"github.com/sumitkumar2005/xeno-crm/internal/cache"
	"github.com/sumitkumar2005/xeno-crm/internal/campaign"
	"github.com/sumitkumar2005/xeno-crm/internal/config"
	"github.com/sumitkumar2005/xeno-crm/internal/delivery"
	"github.com/sumitkumar2005/xeno-crm/internal/httpapi"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
	"github.com/sumitkumar2005/xeno-crm/internal/stats"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
	"github.com/sumitkumar2005/xeno-crm/internal/suggest"
	"github.com/sumitkumar2005/xeno-crm/internal/testsupport"
)

const testSecret = "api-test-secret-api-test-secret-000"

// fakeQueue records enqueued ids and can be told to fail.
type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(_ context.Context, ids ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, ids...)
	return nil
}

func (q *fakeQueue) Pop(context.Context, time.Duration) (cache.StatsJob, error) {
	return cache.StatsJob{}, cache.ErrQueueEmpty
}

func (q *fakeQueue) Depth(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ids)), nil
}

// fakeLocker holds keys in memory.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, true, nil
}

func (l *fakeLocker) hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = true
}

type env struct {
	api    *httpapi.API
	store  *store.MemoryStore
	queue  *fakeQueue
	locker *fakeLocker
	token  string
}

func setup(t *testing.T) *env {
	t.Helper()

	mem := store.NewMemoryStore()
	queue := &fakeQueue{}
	locker := &fakeLocker{held: map[string]bool{}}

	sugg, err := suggest.NewService(suggest.TemplateGenerator{}, &config.SuggestConfig{
		CacheCapacity: 10, CacheTTL: time.Minute, RatePerMinute: 600, Burst: 50,
	})
	require.NoError(t, err)
	t.Cleanup(sugg.Close)

	api := httpapi.NewAPI(httpapi.Dependencies{
		Store:     mem,
		Campaigns: campaign.NewService(mem, segment.New(nil), delivery.NewSimulator(mem, delivery.WithSuccessRate(1))),
		Suggest:   sugg,
		Stats:     stats.NewAggregator(mem),
		Queue:     queue,
		Verifier:  auth.NewVerifier(&config.AuthConfig{JWTSecret: testSecret}),

		StatsGuard: stats.NewGuard(locker, time.Second),
	})

	return &env{api: api, store: mem, queue: queue, locker: locker, token: signToken(t, "operator-1")}
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, "", auth.Operator{ID: userID, Email: userID + "@example.com"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.token, method, path, body)
}

func (e *env) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.api.Router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (e *env) createCustomer(t *testing.T, name, email string) store.Customer {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/customers", map[string]any{"name": name, "email": email})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[store.Customer](t, rr)
}

func order(customerID uuid.UUID, date string, price string, qty int) map[string]any {
	return map[string]any{
		"customer_id": customerID.String(),
		"date":        date,
		"items":       []map[string]any{{"name": "widget", "quantity": qty, "price": price}},
	}
}

func TestHealth(t *testing.T) {
	e := setup(t)
	rr := e.doAs(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthentication(t *testing.T) {
	e := setup(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "bad signature", token: func() string {
			tok, _ := auth.Sign("wrong-secret", "", auth.Operator{ID: "x"}, jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			})
			return tok
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.doAs(t, tt.token, http.MethodGet, "/api/v1/campaigns", nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "ERR_UNAUTHORIZED", decodeBody[httpapi.ErrorResponse](t, rr).Code)
		})
	}
}

func TestCustomers(t *testing.T) {
	e := setup(t)

	t.Run("create normalizes input", func(t *testing.T) {
		c := e.createCustomer(t, "  Asha  ", " Asha@Example.com ")
		assert.Equal(t, "Asha", c.Name)
		assert.Equal(t, "asha@example.com", c.Email)
		assert.True(t, c.LifetimeSpend.IsZero())
		assert.NotEqual(t, uuid.Nil, c.ID)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/api/v1/customers", map[string]any{"name": "Other", "email": "asha@example.com"})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			body  any
			code  int
			field string
		}{
			{name: "missing name", body: map[string]any{"email": "x@example.com"}, code: http.StatusBadRequest, field: "name"},
			{name: "bad email", body: map[string]any{"name": "X", "email": "nope"}, code: http.StatusBadRequest, field: "email"},
			{name: "broken json", body: `{"name":`, code: http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rr := e.do(t, http.MethodPost, "/api/v1/customers", tt.body)
				require.Equal(t, tt.code, rr.Code)
				resp := decodeBody[httpapi.ErrorResponse](t, rr)
				if tt.field != "" {
					assert.Equal(t, "ERR_INVALID_INPUT", resp.Code)
					require.NotEmpty(t, resp.Details)
					assert.Equal(t, tt.field, resp.Details[0].Field)
				} else {
					assert.Equal(t, "ERR_INVALID_JSON", resp.Code)
				}
			})
		}
	})

	t.Run("list paginates newest first", func(t *testing.T) {
		e.createCustomer(t, "B", "b@example.com")
		e.createCustomer(t, "C", "c@example.com")

		rr := e.do(t, http.MethodGet, "/api/v1/customers?page=1&page_size=2", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Data       []store.Customer   `json:"data"`
			Pagination httpapi.Pagination `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		assert.Equal(t, "C", resp.Data[0].Name)
		assert.Equal(t, int64(3), resp.Pagination.TotalItems)
		assert.Equal(t, 2, resp.Pagination.TotalPages)
	})

	t.Run("malformed page", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/api/v1/customers?page=banana", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "ERR_INVALID_QUERY_PARAM", decodeBody[httpapi.ErrorResponse](t, rr).Code)
	})
}

func TestOrders(t *testing.T) {
	e := setup(t)
	c := e.createCustomer(t, "Asha", "asha@example.com")

	t.Run("create fills amount and updates stats", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/api/v1/orders", order(c.ID, "2024-03-01T10:00:00Z", "250.50", 2))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		o := decodeBody[store.Order](t, rr)
		assert.Equal(t, "501", o.Amount.String())

		stored, err := e.store.FindCustomerByID(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Visits)
		assert.Equal(t, "501", stored.LifetimeSpend.String())
	})

	t.Run("amount mismatch rejected", func(t *testing.T) {
		body := order(c.ID, "2024-03-02T10:00:00Z", "10", 1)
		body["amount"] = 99
		rr := e.do(t, http.MethodPost, "/api/v1/orders", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "ERR_AMOUNT_MISMATCH", decodeBody[httpapi.ErrorResponse](t, rr).Code)
	})

	t.Run("unknown customer", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/api/v1/orders", order(uuid.New(), "2024-03-02T10:00:00Z", "10", 1))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("missing items", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/api/v1/orders", map[string]any{"customer_id": c.ID.String(), "date": "2024-03-02T10:00:00Z"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list by customer", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/api/v1/orders/customer/"+c.ID.String(), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decodeBody[[]store.Order](t, rr), 1)

		rr = e.do(t, http.MethodGet, "/api/v1/orders/customer/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = e.do(t, http.MethodGet, "/api/v1/orders/customer/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list all", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/api/v1/orders", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decodeBody[[]store.Order](t, rr), 1)
	})
}

func TestOrders_StatsLockHeld(t *testing.T) {
	t.Run("queues the customer instead of overwriting", func(t *testing.T) {
		e := setup(t)
		c := e.createCustomer(t, "Asha", "asha@example.com")
		e.locker.hold(stats.LockKey(c.ID))

		rr := e.do(t, http.MethodPost, "/api/v1/orders", order(c.ID, "2024-03-01T10:00:00Z", "40", 1))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		stored, err := e.store.FindCustomerByID(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Visits, "the lock owner writes the stats")
		assert.Equal(t, []string{c.ID.String()}, e.queue.ids)
	})

	t.Run("queue failure still creates the order", func(t *testing.T) {
		e := setup(t)
		e.queue.err = errors.New("redis down")
		c := e.createCustomer(t, "Asha", "asha@example.com")
		e.locker.hold(stats.LockKey(c.ID))

		rr := e.do(t, http.MethodPost, "/api/v1/orders", order(c.ID, "2024-03-01T10:00:00Z", "40", 1))
		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("lock is released after the recompute", func(t *testing.T) {
		e := setup(t)
		c := e.createCustomer(t, "Asha", "asha@example.com")

		rr := e.do(t, http.MethodPost, "/api/v1/orders", order(c.ID, "2024-03-01T10:00:00Z", "40", 1))
		require.Equal(t, http.StatusCreated, rr.Code)

		assert.Empty(t, e.locker.held)
		assert.Empty(t, e.queue.ids)
	})
}

func TestBulkOrders(t *testing.T) {
	t.Run("enqueues each distinct customer once", func(t *testing.T) {
		e := setup(t)
		a := e.createCustomer(t, "A", "a@example.com")
		b := e.createCustomer(t, "B", "b@example.com")

		rr := e.do(t, http.MethodPost, "/api/v1/orders/bulk", map[string]any{"orders": []any{
			order(a.ID, "2024-01-01T00:00:00Z", "10", 1),
			order(b.ID, "2024-01-02T00:00:00Z", "20", 1),
			order(a.ID, "2024-01-03T00:00:00Z", "30", 1),
		}})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		resp := decodeBody[httpapi.BulkOrdersResponse](t, rr)
		assert.Equal(t, httpapi.BulkOrdersResponse{Inserted: 3, Customers: 2, Queued: true}, resp)
		assert.Equal(t, []string{a.ID.String(), b.ID.String()}, e.queue.ids)
	})

	t.Run("queue failure recomputes inline", func(t *testing.T) {
		e := setup(t)
		e.queue.err = errors.New("redis down")
		a := e.createCustomer(t, "A", "a@example.com")

		rr := e.do(t, http.MethodPost, "/api/v1/orders/bulk", map[string]any{"orders": []any{
			order(a.ID, "2024-01-01T00:00:00Z", "10", 2),
		}})
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.False(t, decodeBody[httpapi.BulkOrdersResponse](t, rr).Queued)

		stored, err := e.store.FindCustomerByID(context.Background(), a.ID)
		require.NoError(t, err)
		assert.Equal(t, "20", stored.LifetimeSpend.String())
	})

	t.Run("unknown customer rolls back everything", func(t *testing.T) {
		e := setup(t)
		a := e.createCustomer(t, "A", "a@example.com")

		rr := e.do(t, http.MethodPost, "/api/v1/orders/bulk", map[string]any{"orders": []any{
			order(a.ID, "2024-01-01T00:00:00Z", "10", 1),
			order(uuid.New(), "2024-01-01T00:00:00Z", "10", 1),
		}})
		assert.Equal(t, http.StatusNotFound, rr.Code)

		orders, err := e.store.ListOrders(context.Background())
		require.NoError(t, err)
		assert.Empty(t, orders)
	})
}

func seedSpenders(t *testing.T, e *env) {
	t.Helper()
	for i, spend := range []string{"500", "1500", "2500"} {
		c := e.createCustomer(t, "Customer "+string(rune('A'+i)), "c"+string(rune('a'+i))+"@example.com")
		rr := e.do(t, http.MethodPost, "/api/v1/orders", order(c.ID, "2024-02-01T00:00:00Z", spend, 1))
		require.Equal(t, http.StatusCreated, rr.Code)
	}
}

var highSpenders = map[string]any{"rules": []map[string]any{{"field": "spend", "operator": ">", "value": 1000}}}

func TestCampaigns(t *testing.T) {
	e := setup(t)
	seedSpenders(t, e)

	t.Run("preview", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/api/v1/campaigns/preview", highSpenders)
		require.Equal(t, http.StatusOK, rr.Code)

		resp := decodeBody[httpapi.PreviewResponse](t, rr)
		assert.Equal(t, 3, resp.TotalCustomers)
		assert.Equal(t, 2, resp.MatchedCount)
		assert.Len(t, resp.MatchedCustomers, 2)
	})

	var created httpapi.CreateCampaignResponse
	t.Run("create dispatches", func(t *testing.T) {
		body := map[string]any{"rules": highSpenders["rules"], "message": "Hi {{name}}, enjoy 10% off"}
		rr := e.do(t, http.MethodPost, "/api/v1/campaigns", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		created = decodeBody[httpapi.CreateCampaignResponse](t, rr)
		assert.Equal(t, "Campaign created and messages sent", created.Message)
		require.Len(t, created.TargetedCustomers, 2)
		for _, l := range created.TargetedCustomers {
			assert.NotContains(t, l.Message, "{{name}}")
			assert.Equal(t, store.StatusSent, l.Status)
		}
	})

	t.Run("message is required", func(t *testing.T) {
		rr := e.do(t, http.MethodPost, "/api/v1/campaigns", map[string]any{"rules": []any{}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list is scoped to the operator", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/api/v1/campaigns", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var got []struct {
			ID       uuid.UUID             `json:"id"`
			OwnerID  string                `json:"owner_id"`
			Delivery httpapi.DeliveryStats `json:"delivery"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, created.CampaignID, got[0].ID)
		assert.Equal(t, "operator-1", got[0].OwnerID)
		assert.Equal(t, httpapi.DeliveryStats{Total: 2, Sent: 2}, got[0].Delivery)

		rr = e.doAs(t, signToken(t, "operator-2"), http.MethodGet, "/api/v1/campaigns", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, "[]", rr.Body.String())
	})

	t.Run("logs", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/api/v1/logs/"+created.CampaignID.String(), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decodeBody[[]store.CommunicationLog](t, rr), 2)

		rr = e.do(t, http.MethodGet, "/api/v1/logs/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestAI(t *testing.T) {
	e := setup(t)

	rr := e.do(t, http.MethodPost, "/api/v1/ai/generate-message", highSpenders)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decodeBody[httpapi.MessageResponse](t, rr).Message, "{{name}}")

	rr = e.do(t, http.MethodPost, "/api/v1/ai/get-suggestions", highSpenders)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[httpapi.SuggestionsResponse](t, rr).Suggestions, 3)
}

func TestBodyLimit(t *testing.T) {
	mem := store.NewMemoryStore()
	sugg, err := suggest.NewService(suggest.TemplateGenerator{}, &config.SuggestConfig{CacheCapacity: 10, CacheTTL: time.Minute, RatePerMinute: 60, Burst: 1})
	require.NoError(t, err)
	t.Cleanup(sugg.Close)

	api := httpapi.NewAPI(httpapi.Dependencies{
		Store:        mem,
		Campaigns:    campaign.NewService(mem, segment.New(nil), delivery.NewSimulator(mem)),
		Suggest:      sugg,
		Stats:        stats.NewAggregator(mem),
		Verifier:     auth.NewVerifier(&config.AuthConfig{JWTSecret: testSecret}),
		MaxBodyBytes: 64,
	})

	body := `{"name":"` + strings.Repeat("x", 200) + `","email":"x@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "op"))
	rr := httptest.NewRecorder()
	api.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestMetrics(t *testing.T) {
	e := setup(t)

	t.Run("route pattern, not raw path", func(t *testing.T) {
		labels := map[string]string{"method": "GET", "route": "/api/v1/logs/{campaignID}", "code": "404"}
		testsupport.AssertMetricDelta(t, "xeno_api_http_requests_total", labels, 1, func() {
			rr := e.do(t, http.MethodGet, "/api/v1/logs/"+uuid.NewString(), nil)
			require.Equal(t, http.StatusNotFound, rr.Code)
		})
	})

	t.Run("unmatched routes collapse", func(t *testing.T) {
		labels := map[string]string{"method": "GET", "route": "not_found", "code": "404"}
		testsupport.AssertMetricDelta(t, "xeno_api_http_requests_total", labels, 1, func() {
			rr := e.doAs(t, "", http.MethodGet, "/admin.php", nil)
			require.Equal(t, http.StatusNotFound, rr.Code)
		})
	})
}
