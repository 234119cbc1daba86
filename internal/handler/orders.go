package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/middleware"
	"github.com/delapena-bakeshop/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	PlaceWalkIn(ctx context.Context, req service.PlaceWalkInRequest) (*service.PlaceOrderResult, error)
	PlaceReseller(ctx context.Context, req service.PlaceResellerRequest) (*service.PlaceOrderResult, error)
}

// OrderStore defines the database methods needed by order read/update
// handlers. Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemRow, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	store    OrderStore
	pool     service.TxBeginner
	newStore NewOrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, pool service.TxBeginner, newStore NewOrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, pool: pool, newStore: newStore}
}

// --- Request / Response types ---

type walkInLineRequest struct {
	ProductID string      `json:"product_id"`
	Quantity  int32       `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
	Subtotal  json.Number `json:"subtotal"`
}

type createWalkInRequest struct {
	Cart        []walkInLineRequest `json:"cart"`
	TotalAmount json.Number         `json:"total_amount"`
	Notes       string              `json:"notes"`
}

type resellerLineRequest struct {
	ProductID string      `json:"product_id"`
	Quantity  int32       `json:"quantity"`
	Price     json.Number `json:"price"`
}

type createResellerRequest struct {
	// UserID is accepted for compatibility with older clients but ignored:
	// the customer is always the authenticated caller.
	UserID      string                `json:"user_id"`
	Items       []resellerLineRequest `json:"items"`
	TotalAmount json.Number           `json:"total_amount"`
	Notes       string                `json:"notes"`
}

type placeOrderResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
}

type orderResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderNumber   string    `json:"order_number"`
	OrderDate     string    `json:"order_date"`
	CustomerID    *string   `json:"customer_id"`
	OrderType     string    `json:"order_type"`
	OrderStatus   string    `json:"order_status"`
	PaymentStatus string    `json:"payment_status"`
	TotalAmount   string    `json:"total_amount"`
	ReceivedBy    uuid.UUID `json:"received_by"`
	ApprovedBy    *string   `json:"approved_by"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Subtotal    string    `json:"subtotal"`
}

type paymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	OrderID       uuid.UUID  `json:"order_id"`
	PaymentMethod string     `json:"payment_method"`
	Amount        string     `json:"amount"`
	PaymentStatus string     `json:"payment_status"`
	ReceivedBy    *string    `json:"received_by"`
	PaymentDate   *time.Time `json:"payment_date"`
}

// orderDetailResponse extends orderResponse with items and payments for the
// GET detail endpoint.
type orderDetailResponse struct {
	orderResponse
	Items    []orderItemResponse `json:"items"`
	Payments []paymentResponse   `json:"payments"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

type updateOrderStatusRequest struct {
	OrderStatus string `json:"order_status"`
}

// --- Handlers ---

// CreateWalkIn handles POST /orders/walk-in.
func (h *OrderHandler) CreateWalkIn(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createWalkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Cart) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart is required"})
		return
	}
	for i, line := range req.Cart {
		if line.ProductID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "product_id is required"),
			})
			return
		}
		if line.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	items := make([]service.OrderLine, len(req.Cart))
	for i, line := range req.Cart {
		items[i] = service.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.String(),
			Subtotal:  line.Subtotal.String(),
		}
	}

	result, err := h.svc.PlaceWalkIn(r.Context(), service.PlaceWalkInRequest{
		CashierID:   claims.UserID,
		TotalAmount: req.TotalAmount.String(),
		Notes:       req.Notes,
		Items:       items,
	})
	if err != nil {
		respondPlacementError(w, fmt.Sprintf("create walk-in order for cashier %s", claims.UserID), err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
	})
}

// CreateReseller handles POST /orders/reseller.
func (h *OrderHandler) CreateReseller(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createResellerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	items := make([]service.OrderLine, len(req.Items))
	for i, line := range req.Items {
		if line.ProductID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "product_id is required"),
			})
			return
		}
		if line.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
		price, err := decimal.NewFromString(line.Price.String())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "invalid price"),
			})
			return
		}
		items[i] = service.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: price.String(),
			Subtotal:  price.Mul(decimal.NewFromInt32(line.Quantity)).String(),
		}
	}

	result, err := h.svc.PlaceReseller(r.Context(), service.PlaceResellerRequest{
		CustomerID:  claims.UserID,
		TotalAmount: req.TotalAmount.String(),
		Notes:       req.Notes,
		Items:       items,
	})
	if err != nil {
		respondPlacementError(w, fmt.Sprintf("create reseller order for customer %s", claims.UserID), err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.OrderNumber,
	})
}

// List handles GET /orders. Resellers only ever see their own orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	params := database.ListOrdersParams{}
	if s := r.URL.Query().Get("type"); s != "" {
		if !isValidOrderType(database.OrderType(s)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid type"})
			return
		}
		params.OrderType = s
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidOrderStatus(database.OrderStatus(s)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.OrderStatus = s
	}
	if claims.Role == string(database.UserRoleReseller) {
		params.CustomerID = pgtype.UUID{Bytes: claims.UserID, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order %s: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Resellers can only read their own orders; a foreign order looks like a
	// missing one.
	if claims.Role == string(database.UserRoleReseller) {
		if !order.CustomerID.Valid || order.CustomerID.Bytes != claims.UserID {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list items for order %s: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments for order %s: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemResps := make([]orderItemResponse, len(items))
	for i, item := range items {
		itemResps[i] = orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   numericToString(item.UnitPrice),
			Subtotal:    numericToString(item.Subtotal),
		}
	}

	paymentResps := make([]paymentResponse, len(payments))
	for i, p := range payments {
		paymentResps[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: dbOrderToResponse(order),
		Items:         itemResps,
		Payments:      paymentResps,
	})
}

// UpdateStatus handles PATCH /orders/{id}/status. The read, the transition
// check, the guarded write and any approval side effects share one
// transaction on a locked order row.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderStatus == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_status is required"})
		return
	}

	newStatus := database.OrderStatus(req.OrderStatus)
	if !isValidOrderStatus(newStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_status"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for order %s status update: %v", orderID, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)

	current, err := txStore.GetOrderForUpdate(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order %s for status update: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := validateOrderTransition(current.OrderStatus, newStatus); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	// Completion is payment-gated: the balance has to be collected first.
	if newStatus == database.OrderStatusCompleted && current.PaymentStatus != database.OrderPaymentStatusPaid {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot complete order with pending payment"})
		return
	}

	approvedBy := pgtype.UUID{}
	if newStatus == database.OrderStatusApproved {
		approvedBy = pgtype.UUID{Bytes: claims.UserID, Valid: true}
	}

	updated, err := txStore.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:             orderID,
		NewStatus:      newStatus,
		ExpectedStatus: current.OrderStatus,
		ApprovedBy:     approvedBy,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed, please retry"})
			return
		}
		log.Printf("ERROR: update order %s (%s) status to %s: %v", orderID, current.OrderNumber, newStatus, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Approving a reseller order opens its balance: a Pending payment row is
	// what the collection endpoint later settles.
	if newStatus == database.OrderStatusApproved && current.OrderType == database.OrderTypeReseller {
		if _, err := txStore.CreatePayment(r.Context(), database.CreatePaymentParams{
			OrderID:       orderID,
			PaymentMethod: database.PaymentMethodCash,
			Amount:        current.TotalAmount,
			PaymentStatus: database.PaymentStatusPending,
		}); err != nil {
			log.Printf("ERROR: create pending payment for order %s (%s): %v", orderID, current.OrderNumber, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit status update for order %s (%s): %v", orderID, current.OrderNumber, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(updated))
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// respondPlacementError maps order placement failures to HTTP statuses.
func respondPlacementError(w http.ResponseWriter, op string, err error) {
	var insufficientErr *service.InsufficientStockError
	switch {
	case errors.As(err, &insufficientErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": insufficientErr.Error()})
	case isPlacementValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrUnavailable):
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isPlacementValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isPlacementValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidUnitPrice) ||
		errors.Is(err, service.ErrInvalidSubtotal) ||
		errors.Is(err, service.ErrSubtotalMismatch) ||
		errors.Is(err, service.ErrInvalidTotal) ||
		errors.Is(err, service.ErrTotalMismatch) ||
		errors.Is(err, service.ErrProductNotFound)
}

func isValidOrderType(t database.OrderType) bool {
	switch t {
	case database.OrderTypeWalkIn, database.OrderTypeReseller:
		return true
	}
	return false
}

func isValidOrderStatus(s database.OrderStatus) bool {
	switch s {
	case database.OrderStatusPending,
		database.OrderStatusApproved,
		database.OrderStatusPacked,
		database.OrderStatusOutForDelivery,
		database.OrderStatusCompleted,
		database.OrderStatusCancelled:
		return true
	}
	return false
}

// allowedOrderTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// Completed and Cancelled are terminal.
var allowedOrderTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPending:        {database.OrderStatusApproved, database.OrderStatusCancelled},
	database.OrderStatusApproved:       {database.OrderStatusPacked, database.OrderStatusCancelled},
	database.OrderStatusPacked:         {database.OrderStatusOutForDelivery, database.OrderStatusCancelled},
	database.OrderStatusOutForDelivery: {database.OrderStatusCompleted},
}

// validateOrderTransition checks if the transition from current to next is allowed.
func validateOrderTransition(current, next database.OrderStatus) error {
	allowed, ok := allowedOrderTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		OrderType:     string(o.OrderType),
		OrderStatus:   string(o.OrderStatus),
		PaymentStatus: string(o.PaymentStatus),
		TotalAmount:   numericToString(o.TotalAmount),
		ReceivedBy:    o.ReceivedBy,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.OrderDate.Valid {
		resp.OrderDate = o.OrderDate.Time.Format("2006-01-02")
	}
	if o.CustomerID.Valid {
		s := uuid.UUID(o.CustomerID.Bytes).String()
		resp.CustomerID = &s
	}
	if o.ApprovedBy.Valid {
		s := uuid.UUID(o.ApprovedBy.Bytes).String()
		resp.ApprovedBy = &s
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	return resp
}

// dbPaymentToResponse converts a database.Payment to a paymentResponse.
func dbPaymentToResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		PaymentMethod: string(p.PaymentMethod),
		Amount:        numericToString(p.Amount),
		PaymentStatus: string(p.PaymentStatus),
	}
	if p.ReceivedBy.Valid {
		s := uuid.UUID(p.ReceivedBy.Bytes).String()
		resp.ReceivedBy = &s
	}
	if p.PaymentDate.Valid {
		t := p.PaymentDate.Time
		resp.PaymentDate = &t
	}
	return resp
}
