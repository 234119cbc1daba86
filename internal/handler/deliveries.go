package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/middleware"
	"github.com/delapena-bakeshop/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DeliveryStore defines the database methods needed by delivery handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type DeliveryStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetDelivery(ctx context.Context, id uuid.UUID) (database.Delivery, error)
	GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (database.Delivery, error)
	CreateDelivery(ctx context.Context, arg database.CreateDeliveryParams) (database.Delivery, error)
	SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	UpdateDeliveryStatus(ctx context.Context, arg database.UpdateDeliveryStatusParams) (database.Delivery, error)
	ListDeliveries(ctx context.Context, status string) ([]database.Delivery, error)
	ListPackedOrdersWithoutDelivery(ctx context.Context) ([]database.Order, error)
}

// NewDeliveryStore creates a DeliveryStore from a DBTX (pool or tx).
type NewDeliveryStore func(db database.DBTX) DeliveryStore

// DeliveryHandler handles delivery endpoints.
type DeliveryHandler struct {
	store    DeliveryStore
	pool     service.TxBeginner
	newStore NewDeliveryStore
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(store DeliveryStore, pool service.TxBeginner, newStore NewDeliveryStore) *DeliveryHandler {
	return &DeliveryHandler{store: store, pool: pool, newStore: newStore}
}

// --- Request / Response types ---

type scheduleDeliveryRequest struct {
	OrderID          string `json:"order_id"`
	DriverName       string `json:"driver_name"`
	ScheduledDate    string `json:"scheduled_date"` // YYYY-MM-DD
	RecipientName    string `json:"recipient_name"`
	RecipientContact string `json:"recipient_contact"`
	Notes            string `json:"notes"`
}

type updateDeliveryStatusRequest struct {
	DeliveryStatus string `json:"delivery_status"`
	Notes          string `json:"notes"`
}

type deliveryResponse struct {
	ID               uuid.UUID  `json:"id"`
	OrderID          uuid.UUID  `json:"order_id"`
	DriverName       string     `json:"driver_name"`
	DeliveryStatus   string     `json:"delivery_status"`
	ScheduledDate    string     `json:"scheduled_date"`
	DeliveredAt      *time.Time `json:"delivered_at"`
	RecipientName    string     `json:"recipient_name"`
	RecipientContact string     `json:"recipient_contact"`
	CashCollected    *string    `json:"cash_collected"`
	Notes            *string    `json:"notes"`
	RecordedBy       uuid.UUID  `json:"recorded_by"`
	CreatedAt        time.Time  `json:"created_at"`
}

// deliveryStatusResponse carries the delivery together with the order status
// its update cascaded into.
type deliveryStatusResponse struct {
	deliveryResponse
	OrderStatus string `json:"order_status"`
}

type deliveryListResponse struct {
	Deliveries []deliveryResponse `json:"deliveries"`
}

// --- Handlers ---

// Schedule handles POST /deliveries. The precondition checks, the delivery
// insert and the order's move to Out for Delivery share one transaction on a
// locked order row.
func (h *DeliveryHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req scheduleDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OrderID == "" || req.DriverName == "" || req.ScheduledDate == "" ||
		req.RecipientName == "" || req.RecipientContact == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "order_id, driver_name, scheduled_date, recipient_name and recipient_contact are required",
		})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}

	scheduledDate, err := time.Parse("2006-01-02", req.ScheduledDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid scheduled_date format, use YYYY-MM-DD"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx to schedule delivery for order %s: %v", orderID, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)

	order, err := txStore.GetOrderForUpdate(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order %s for schedule delivery: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if order.OrderStatus != database.OrderStatusPacked {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not packed"})
		return
	}

	if _, err := txStore.GetDeliveryByOrder(r.Context(), orderID); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "delivery already scheduled for this order"})
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: check existing delivery for order %s: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	delivery, err := txStore.CreateDelivery(r.Context(), database.CreateDeliveryParams{
		OrderID:          orderID,
		DriverName:       req.DriverName,
		ScheduledDate:    pgtype.Date{Time: scheduledDate, Valid: true},
		RecipientName:    req.RecipientName,
		RecipientContact: req.RecipientContact,
		Notes:            textOrNull(req.Notes),
		RecordedBy:       claims.UserID,
	})
	if err != nil {
		// The unique index on order_id backs the check above under
		// concurrency.
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "delivery already scheduled for this order"})
			return
		}
		log.Printf("ERROR: create delivery for order %s (%s): %v", orderID, order.OrderNumber, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := txStore.SetOrderStatus(r.Context(), database.SetOrderStatusParams{
		ID:        orderID,
		NewStatus: database.OrderStatusOutForDelivery,
	}); err != nil {
		log.Printf("ERROR: set order %s (%s) out for delivery: %v", orderID, order.OrderNumber, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit scheduled delivery for order %s (%s): %v", orderID, order.OrderNumber, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}

	writeJSON(w, http.StatusCreated, dbDeliveryToResponse(delivery))
}

// UpdateStatus handles PATCH /deliveries/{id}/status. The delivery-status
// sub-machine write and its order-status cascade share one transaction on a
// locked order row.
func (h *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	deliveryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery ID"})
		return
	}

	var req updateDeliveryStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DeliveryStatus == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delivery_status is required"})
		return
	}

	newStatus := database.DeliveryStatus(req.DeliveryStatus)
	if !isValidDeliveryStatus(newStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery_status"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for delivery %s status update: %v", deliveryID, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)

	delivery, err := txStore.GetDelivery(r.Context(), deliveryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "delivery not found"})
			return
		}
		log.Printf("ERROR: get delivery %s: %v", deliveryID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	order, err := txStore.GetOrderForUpdate(r.Context(), delivery.OrderID)
	if err != nil {
		log.Printf("ERROR: get order %s for delivery %s status update: %v", delivery.OrderID, deliveryID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := validateDeliveryTransition(delivery.DeliveryStatus, newStatus); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	deliveredAt := pgtype.Timestamptz{}
	if newStatus == database.DeliveryStatusDelivered {
		deliveredAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}

	updated, err := txStore.UpdateDeliveryStatus(r.Context(), database.UpdateDeliveryStatusParams{
		ID:          deliveryID,
		NewStatus:   newStatus,
		DeliveredAt: deliveredAt,
		Notes:       textOrNull(req.Notes),
	})
	if err != nil {
		log.Printf("ERROR: update delivery %s status to %s: %v", deliveryID, newStatus, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orderStatus, changed := orderCascadeFor(newStatus, order)
	if changed {
		if _, err := txStore.SetOrderStatus(r.Context(), database.SetOrderStatusParams{
			ID:        order.ID,
			NewStatus: orderStatus,
		}); err != nil {
			log.Printf("ERROR: cascade order %s (%s) to %s for delivery %s: %v", order.ID, order.OrderNumber, orderStatus, deliveryID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit delivery %s status update: %v", deliveryID, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, deliveryStatusResponse{
		deliveryResponse: dbDeliveryToResponse(updated),
		OrderStatus:      string(orderStatus),
	})
}

// List handles GET /deliveries.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !isValidDeliveryStatus(database.DeliveryStatus(status)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	deliveries, err := h.store.ListDeliveries(r.Context(), status)
	if err != nil {
		log.Printf("ERROR: list deliveries: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]deliveryResponse, len(deliveries))
	for i, d := range deliveries {
		resp[i] = dbDeliveryToResponse(d)
	}
	writeJSON(w, http.StatusOK, deliveryListResponse{Deliveries: resp})
}

// Get handles GET /deliveries/{id}.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery ID"})
		return
	}

	delivery, err := h.store.GetDelivery(r.Context(), deliveryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "delivery not found"})
			return
		}
		log.Printf("ERROR: get delivery %s: %v", deliveryID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbDeliveryToResponse(delivery))
}

// ListPackedOrders handles GET /deliveries/packed-orders: the orders ready
// to be put on a run.
func (h *DeliveryHandler) ListPackedOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListPackedOrdersWithoutDelivery(r.Context())
	if err != nil {
		log.Printf("ERROR: list packed orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp})
}

// --- Helpers ---

func isValidDeliveryStatus(s database.DeliveryStatus) bool {
	switch s {
	case database.DeliveryStatusScheduled,
		database.DeliveryStatusOutForDelivery,
		database.DeliveryStatusDelivered,
		database.DeliveryStatusFailed,
		database.DeliveryStatusReturned,
		database.DeliveryStatusCancelled:
		return true
	}
	return false
}

// allowedDeliveryTransitions defines the delivery sub-machine. Delivered,
// Failed, Returned and Cancelled are terminal.
var allowedDeliveryTransitions = map[database.DeliveryStatus][]database.DeliveryStatus{
	database.DeliveryStatusScheduled: {
		database.DeliveryStatusOutForDelivery,
		database.DeliveryStatusCancelled,
	},
	database.DeliveryStatusOutForDelivery: {
		database.DeliveryStatusDelivered,
		database.DeliveryStatusFailed,
		database.DeliveryStatusReturned,
		database.DeliveryStatusCancelled,
	},
}

func validateDeliveryTransition(current, next database.DeliveryStatus) error {
	allowed, ok := allowedDeliveryTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition delivery from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition delivery from %s to %s", current, next)
}

// orderCascadeFor maps a delivery-status update onto the order state machine.
// A delivered order only completes once its balance is settled; cash-on-
// delivery orders stay Out for Delivery until the payment is collected.
func orderCascadeFor(newStatus database.DeliveryStatus, order database.Order) (database.OrderStatus, bool) {
	switch newStatus {
	case database.DeliveryStatusOutForDelivery:
		return order.OrderStatus, false
	case database.DeliveryStatusDelivered:
		if order.PaymentStatus == database.OrderPaymentStatusPaid {
			return database.OrderStatusCompleted, true
		}
		return order.OrderStatus, false
	case database.DeliveryStatusFailed, database.DeliveryStatusCancelled:
		return database.OrderStatusCancelled, true
	case database.DeliveryStatusReturned:
		return database.OrderStatusPacked, true
	}
	return order.OrderStatus, false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func dbDeliveryToResponse(d database.Delivery) deliveryResponse {
	resp := deliveryResponse{
		ID:               d.ID,
		OrderID:          d.OrderID,
		DriverName:       d.DriverName,
		DeliveryStatus:   string(d.DeliveryStatus),
		RecipientName:    d.RecipientName,
		RecipientContact: d.RecipientContact,
		RecordedBy:       d.RecordedBy,
		CreatedAt:        d.CreatedAt,
	}
	if d.ScheduledDate.Valid {
		resp.ScheduledDate = d.ScheduledDate.Time.Format("2006-01-02")
	}
	if d.DeliveredAt.Valid {
		t := d.DeliveredAt.Time
		resp.DeliveredAt = &t
	}
	if d.CashCollected.Valid {
		s := numericToString(d.CashCollected)
		resp.CashCollected = &s
	}
	if d.Notes.Valid {
		resp.Notes = &d.Notes.String
	}
	return resp
}
