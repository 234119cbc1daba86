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
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ReturnStore defines the database methods needed by return handlers.
type ReturnStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateReturn(ctx context.Context, arg database.CreateReturnParams) (database.Return, error)
	GetReturn(ctx context.Context, id uuid.UUID) (database.Return, error)
	ListReturns(ctx context.Context) ([]database.ReturnRow, error)
	DeleteReturn(ctx context.Context, id uuid.UUID) (int64, error)
}

// ReturnHandler handles customer return endpoints. A return record is
// bookkeeping only: if the item goes back on the shelf the staff records a
// Return movement in the stock ledger separately.
type ReturnHandler struct {
	store ReturnStore
}

// NewReturnHandler creates a new ReturnHandler.
func NewReturnHandler(store ReturnStore) *ReturnHandler {
	return &ReturnHandler{store: store}
}

// --- Request / Response types ---

type createReturnRequest struct {
	OrderID      string      `json:"order_id"`
	ProductID    string      `json:"product_id"`
	Quantity     int32       `json:"quantity"`
	ReturnReason string      `json:"return_reason"`
	ActionTaken  string      `json:"action_taken"`
	RefundAmount json.Number `json:"refund_amount"`
	Notes        string      `json:"notes"`
}

type returnResponse struct {
	ID           uuid.UUID `json:"id"`
	OrderID      uuid.UUID `json:"order_id"`
	OrderNumber  string    `json:"order_number,omitempty"`
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	Quantity     int32     `json:"quantity"`
	ReturnReason string    `json:"return_reason"`
	ActionTaken  string    `json:"action_taken"`
	RefundAmount string    `json:"refund_amount"`
	ProcessedBy  uuid.UUID `json:"processed_by"`
	Notes        *string   `json:"notes"`
	ProcessedAt  time.Time `json:"processed_at"`
}

type returnListResponse struct {
	Returns []returnResponse `json:"returns"`
}

// --- Handlers ---

// Create handles POST /returns.
func (h *ReturnHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.ReturnReason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "return_reason is required"})
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be positive"})
		return
	}
	if !isValidReturnAction(req.ActionTaken) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid action_taken"})
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}

	refund := decimal.Zero
	if req.RefundAmount != "" {
		refund, err = decimal.NewFromString(req.RefundAmount.String())
		if err != nil || refund.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid refund_amount"})
			return
		}
	}

	if _, err := h.store.GetOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order %s for return: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if _, err := h.store.GetProduct(r.Context(), productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product %s for return: %v", productID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	ret, err := h.store.CreateReturn(r.Context(), database.CreateReturnParams{
		OrderID:      orderID,
		ProductID:    productID,
		Quantity:     req.Quantity,
		ReturnReason: req.ReturnReason,
		ActionTaken:  database.ReturnAction(req.ActionTaken),
		RefundAmount: decimalToNumeric(refund),
		ProcessedBy:  claims.UserID,
		Notes:        textOrNull(req.Notes),
	})
	if err != nil {
		log.Printf("ERROR: create return for order %s product %s: %v", orderID, productID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbReturnToResponse(ret, "", ""))
}

// List handles GET /returns.
func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	returns, err := h.store.ListReturns(r.Context())
	if err != nil {
		log.Printf("ERROR: list returns: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]returnResponse, len(returns))
	for i, ret := range returns {
		resp[i] = dbReturnToResponse(ret.Return, ret.OrderNumber, ret.ProductName)
	}
	writeJSON(w, http.StatusOK, returnListResponse{Returns: resp})
}

// Get handles GET /returns/{id}.
func (h *ReturnHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid return ID"})
		return
	}

	ret, err := h.store.GetReturn(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "return not found"})
			return
		}
		log.Printf("ERROR: get return %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbReturnToResponse(ret, "", ""))
}

// Delete handles DELETE /returns/{id}. Removing the record does not touch
// stock or the order.
func (h *ReturnHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid return ID"})
		return
	}

	affected, err := h.store.DeleteReturn(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: delete return %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if affected == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "return not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func isValidReturnAction(s string) bool {
	switch database.ReturnAction(s) {
	case database.ReturnActionRefund, database.ReturnActionReplace, database.ReturnActionStoreCredit:
		return true
	}
	return false
}

func dbReturnToResponse(ret database.Return, orderNumber, productName string) returnResponse {
	resp := returnResponse{
		ID:           ret.ID,
		OrderID:      ret.OrderID,
		OrderNumber:  orderNumber,
		ProductID:    ret.ProductID,
		ProductName:  productName,
		Quantity:     ret.Quantity,
		ReturnReason: ret.ReturnReason,
		ActionTaken:  string(ret.ActionTaken),
		RefundAmount: numericToString(ret.RefundAmount),
		ProcessedBy:  ret.ProcessedBy,
		ProcessedAt:  ret.ProcessedAt,
	}
	if ret.Notes.Valid {
		resp.Notes = &ret.Notes.String
	}
	return resp
}
