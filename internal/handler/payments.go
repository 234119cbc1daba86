package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/middleware"
	"github.com/delapena-bakeshop/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// PaymentStore defines the database methods needed by payment handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	CompletePayment(ctx context.Context, arg database.CompletePaymentParams) (database.Payment, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	SetDeliveryCashCollected(ctx context.Context, arg database.SetDeliveryCashCollectedParams) error
	ListPendingResellerPayments(ctx context.Context) ([]database.PendingPaymentRow, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	store    PaymentStore
	pool     service.TxBeginner
	newStore NewPaymentStore
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore, pool service.TxBeginner, newStore NewPaymentStore) *PaymentHandler {
	return &PaymentHandler{store: store, pool: pool, newStore: newStore}
}

// --- Request / Response types ---

type collectPaymentRequest struct {
	OrderID string `json:"order_id"`
}

type collectPaymentResponse struct {
	Payment     paymentResponse `json:"payment"`
	OrderStatus string          `json:"order_status"`
}

type pendingPaymentResponse struct {
	OrderID      uuid.UUID `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	OrderStatus  string    `json:"order_status"`
	TotalAmount  string    `json:"total_amount"`
	CustomerName string    `json:"customer_name"`
	CreatedAt    time.Time `json:"created_at"`
}

type pendingPaymentListResponse struct {
	Pending []pendingPaymentResponse `json:"pending"`
}

// --- Handlers ---

// Collect handles POST /payments/collect. Settling the payment row, marking
// the order paid and complete, and recording the cash on the delivery all
// share one transaction on a locked order row. This is the one path that
// completes an order without the generic status endpoint: it sets payment
// and status together, so the pending-payment guard cannot apply.
func (h *PaymentHandler) Collect(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req collectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx to collect payment for order %s: %v", orderID, err)
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
		log.Printf("ERROR: get order %s for collect payment: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if order.OrderStatus == database.OrderStatusCancelled {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot collect payment for a cancelled order"})
		return
	}
	if order.PaymentStatus == database.OrderPaymentStatusPaid {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "payment already collected"})
		return
	}

	payment, err := txStore.CompletePayment(r.Context(), database.CompletePaymentParams{
		OrderID:    orderID,
		ReceivedBy: pgtype.UUID{Bytes: claims.UserID, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "no pending payment for this order"})
			return
		}
		log.Printf("ERROR: complete payment for order %s (%s): %v", orderID, order.OrderNumber, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	updated, err := txStore.MarkOrderPaid(r.Context(), database.MarkOrderPaidParams{
		ID:          orderID,
		OrderStatus: database.OrderStatusCompleted,
	})
	if err != nil {
		log.Printf("ERROR: mark order %s (%s) paid: %v", orderID, order.OrderNumber, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Record the cash the driver brought back; a no-op when the order never
	// had a delivery.
	if err := txStore.SetDeliveryCashCollected(r.Context(), database.SetDeliveryCashCollectedParams{
		OrderID:       orderID,
		CashCollected: order.TotalAmount,
	}); err != nil {
		log.Printf("ERROR: set delivery cash collected for order %s (%s): %v", orderID, order.OrderNumber, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit payment collection for order %s (%s): %v", orderID, order.OrderNumber, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, collectPaymentResponse{
		Payment:     dbPaymentToResponse(payment),
		OrderStatus: string(updated.OrderStatus),
	})
}

// ListPending handles GET /payments/pending: approved reseller orders whose
// balance has not been collected yet.
func (h *PaymentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.ListPendingResellerPayments(r.Context())
	if err != nil {
		log.Printf("ERROR: list pending payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]pendingPaymentResponse, len(pending))
	for i, p := range pending {
		resp[i] = pendingPaymentResponse{
			OrderID:      p.OrderID,
			OrderNumber:  p.OrderNumber,
			OrderStatus:  string(p.OrderStatus),
			TotalAmount:  numericToString(p.TotalAmount),
			CustomerName: p.CustomerName,
			CreatedAt:    p.CreatedAt.Time,
		}
	}
	writeJSON(w, http.StatusOK, pendingPaymentListResponse{Pending: resp})
}
