package httpapi

import (
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/render"

	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// handleCreateCustomer processes POST /api/v1/customers.
func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	// 1. Decode, sanitize and validate
	var req CreateCustomerRequest
	if !decode(w, r, &req) {
		return
	}
	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	// 2. Persist
	c := &store.Customer{Name: req.Name, Email: req.Email, Phone: req.Phone}
	if err := a.store.CreateCustomer(r.Context(), c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, r, http.StatusConflict, codeConflict, "A customer with this email already exists")
			return
		}
		log.Error("failed to create customer", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to create customer")
		return
	}

	log.Info("customer created", slog.String("customer_id", c.ID.String()))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, c)
}

// handleListCustomers processes GET /api/v1/customers?page=&page_size=.
// Out-of-range values are clamped; malformed ones are rejected.
func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	// 1. Parse query parameters
	page, err := parseOptionalInt(r, "page", 1)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	pageSize, err := parseOptionalInt(r, "page_size", defaultPageSize)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	// 2. Clamp
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	// 3. Query
	customers, total, err := a.store.ListCustomers(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		log.Error("failed to list customers", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to list customers")
		return
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, PaginatedResponse{
		Data: nonNil(customers),
		Pagination: Pagination{
			TotalItems:  total,
			TotalPages:  totalPages,
			CurrentPage: page,
			PageSize:    pageSize,
		},
	})
}

// nonNil keeps empty lists rendering as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
