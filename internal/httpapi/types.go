package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sumitkumar2005/xeno-crm/internal/campaign"
	"github.com/sumitkumar2005/xeno-crm/internal/segment"
	"github.com/sumitkumar2005/xeno-crm/internal/store"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeInvalidJSON      = "ERR_INVALID_JSON"
	codeInvalidInput     = "ERR_INVALID_INPUT"
	codeInvalidQuery     = "ERR_INVALID_QUERY_PARAM"
	codeAmountMismatch   = "ERR_AMOUNT_MISMATCH"
	codeNotFound         = "ERR_NOT_FOUND"
	codeConflict         = "ERR_CONFLICT"
	codeUnauthorized     = "ERR_UNAUTHORIZED"
	codeBodyTooLarge     = "ERR_BODY_TOO_LARGE"
	codeRateLimited      = "ERR_RATE_LIMITED"
	codeGenerationFailed = "ERR_GENERATION_FAILED"
	codeInternal         = "ERR_INTERNAL"
)

// validate is shared; validator caches struct metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in error details.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and converts failures into an ErrorResponse.
func validateStruct(s any) *ErrorResponse {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ErrorResponse{Code: codeInvalidInput, Message: err.Error()}
	}

	details := make([]ErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, ErrorDetail{Field: fieldPath(fe), Issue: issue(fe)})
	}
	return &ErrorResponse{
		Code:    codeInvalidInput,
		Message: fmt.Sprintf("%s: %s", details[0].Field, details[0].Issue),
		Details: details,
	}
}

// fieldPath drops the root struct name: "CreateOrderRequest.items[0].name" -> "items[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func issue(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// -----------------------------------------------------------------------------
// Customers
// -----------------------------------------------------------------------------

// CreateCustomerRequest is the payload of POST /customers. Derived stats are
// not accepted; they come from orders.
type CreateCustomerRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// Sanitize trims whitespace and lowercases the email.
func (r *CreateCustomerRequest) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *CreateCustomerRequest) Validate() *ErrorResponse {
	return validateStruct(r)
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

// LineItemRequest is one item of an order payload.
type LineItemRequest struct {
	Name     string          `json:"name" validate:"required,max=255"`
	Quantity int             `json:"quantity" validate:"min=1"`
	Price    decimal.Decimal `json:"price"`
}

// CreateOrderRequest is the payload of POST /orders.
//
// Amount may be omitted, in which case it is the items total. When given it
// must equal the items total.
type CreateOrderRequest struct {
	CustomerID string            `json:"customer_id" validate:"required,uuid"`
	Amount     *decimal.Decimal  `json:"amount,omitempty"`
	Date       time.Time         `json:"date" validate:"required"`
	Items      []LineItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r *CreateOrderRequest) Sanitize() {
	r.CustomerID = strings.TrimSpace(r.CustomerID)
	for i := range r.Items {
		r.Items[i].Name = strings.TrimSpace(r.Items[i].Name)
	}
}

func (r *CreateOrderRequest) Validate() *ErrorResponse {
	if errResp := validateStruct(r); errResp != nil {
		return errResp
	}
	return r.validateMoney("")
}

func (r *CreateOrderRequest) validateMoney(prefix string) *ErrorResponse {
	for i, it := range r.Items {
		if it.Price.IsNegative() {
			return &ErrorResponse{
				Code:    codeInvalidInput,
				Message: fmt.Sprintf("%sitems[%d].price must not be negative", prefix, i),
			}
		}
	}

	if r.Amount == nil {
		return nil
	}
	if r.Amount.IsNegative() {
		return &ErrorResponse{Code: codeInvalidInput, Message: prefix + "amount must not be negative"}
	}
	if total := r.itemsTotal(); !r.Amount.Equal(total) {
		return &ErrorResponse{
			Code:    codeAmountMismatch,
			Message: fmt.Sprintf("%samount %s does not match items total %s", prefix, r.Amount, total),
		}
	}
	return nil
}

func (r *CreateOrderRequest) itemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// toOrder maps a validated request to the domain model.
func (r *CreateOrderRequest) toOrder() *store.Order {
	items := make([]store.LineItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = store.LineItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price}
	}

	amount := r.itemsTotal()
	if r.Amount != nil {
		amount = *r.Amount
	}

	return &store.Order{
		CustomerID: uuid.MustParse(r.CustomerID),
		Date:       r.Date.UTC(),
		Amount:     amount,
		Items:      items,
	}
}

// BulkOrdersRequest is the payload of POST /orders/bulk.
type BulkOrdersRequest struct {
	Orders []CreateOrderRequest `json:"orders" validate:"required,min=1,max=10000,dive"`
}

func (r *BulkOrdersRequest) Sanitize() {
	for i := range r.Orders {
		r.Orders[i].Sanitize()
	}
}

func (r *BulkOrdersRequest) Validate() *ErrorResponse {
	if errResp := validateStruct(r); errResp != nil {
		return errResp
	}
	for i := range r.Orders {
		if errResp := r.Orders[i].validateMoney(fmt.Sprintf("orders[%d].", i)); errResp != nil {
			return errResp
		}
	}
	return nil
}

// BulkOrdersResponse reports a bulk import.
type BulkOrdersResponse struct {
	Inserted  int `json:"inserted"`
	Customers int `json:"customers"`
	// Queued is false when stats were recomputed inline instead of queued.
	Queued bool `json:"queued"`
}

// -----------------------------------------------------------------------------
// Campaigns
// -----------------------------------------------------------------------------

// RulesRequest carries a rule chain. Malformed conditions are not rejected;
// the engine skips them.
type RulesRequest struct {
	Rules []segment.Condition `json:"rules" validate:"max=50"`
}

func (r *RulesRequest) Validate() *ErrorResponse {
	return validateStruct(r)
}

// CreateCampaignRequest is the payload of POST /campaigns.
type CreateCampaignRequest struct {
	Rules   []segment.Condition `json:"rules" validate:"max=50"`
	Message string              `json:"message" validate:"required,max=2000"`
}

func (r *CreateCampaignRequest) Sanitize() {
	r.Message = strings.TrimSpace(r.Message)
}

func (r *CreateCampaignRequest) Validate() *ErrorResponse {
	return validateStruct(r)
}

// CreateCampaignResponse is returned by POST /campaigns.
type CreateCampaignResponse struct {
	Message           string                    `json:"message"`
	CampaignID        uuid.UUID                 `json:"campaign_id"`
	TargetedCustomers []*store.CommunicationLog `json:"targeted_customers"`
}

// PreviewResponse is returned by POST /campaigns/preview.
type PreviewResponse struct {
	TotalCustomers   int               `json:"total_customers"`
	MatchedCustomers []*store.Customer `json:"matched_customers"`
	MatchedCount     int               `json:"matched_count"`
}

// DeliveryStats summarizes a campaign's logs.
type DeliveryStats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// CampaignSummary is one element of GET /campaigns.
type CampaignSummary struct {
	*store.Campaign
	Delivery DeliveryStats `json:"delivery"`
}

func mapSummary(s campaign.Summary) CampaignSummary {
	return CampaignSummary{
		Campaign: s.Campaign,
		Delivery: DeliveryStats{Total: s.Total, Sent: s.Sent, Failed: s.Failed},
	}
}

// -----------------------------------------------------------------------------
// Message copy
// -----------------------------------------------------------------------------

type MessageResponse struct {
	Message string `json:"message"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// -----------------------------------------------------------------------------
// Shared
// -----------------------------------------------------------------------------

// PaginatedResponse is a standard wrapper for list endpoints to support offset pagination.
type PaginatedResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination metadata for the frontend pager.
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about specific field validation failures.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
