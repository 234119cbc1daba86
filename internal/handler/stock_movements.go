package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/middleware"
	"github.com/delapena-bakeshop/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// StockServicer defines the service methods needed by stock movement
// handlers. Satisfied by *service.StockService.
type StockServicer interface {
	RecordMovement(ctx context.Context, req service.RecordMovementRequest) (database.StockMovement, error)
}

// StockMovementStore defines the database methods needed by the ledger read
// handlers. Satisfied by *database.Queries.
type StockMovementStore interface {
	ListStockMovements(ctx context.Context, limit int32) ([]database.StockMovementRow, error)
	ListStockMovementsByItem(ctx context.Context, arg database.ListStockMovementsByItemParams) ([]database.StockMovement, error)
}

// StockMovementHandler handles stock ledger endpoints.
type StockMovementHandler struct {
	svc   StockServicer
	store StockMovementStore
}

// NewStockMovementHandler creates a new StockMovementHandler.
func NewStockMovementHandler(svc StockServicer, store StockMovementStore) *StockMovementHandler {
	return &StockMovementHandler{svc: svc, store: store}
}

// --- Request / Response types ---

type recordMovementRequest struct {
	ItemType       string          `json:"item_type"`
	ItemID         string          `json:"item_id"`
	MovementType   string          `json:"movement_type"`
	QuantityChange decimal.Decimal `json:"quantity_change"`
	Notes          string          `json:"notes"`
}

type movementResponse struct {
	ID             uuid.UUID `json:"id"`
	ItemType       string    `json:"item_type"`
	ItemID         uuid.UUID `json:"item_id"`
	ItemName       string    `json:"item_name,omitempty"`
	MovementType   string    `json:"movement_type"`
	QuantityChange string    `json:"quantity_change"`
	PreviousStock  string    `json:"previous_stock"`
	NewStock       string    `json:"new_stock"`
	OrderID        *string   `json:"order_id"`
	CreatedBy      uuid.UUID `json:"created_by"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

type movementListResponse struct {
	Movements []movementResponse `json:"movements"`
}

// --- Handlers ---

// Record handles POST /stock-movements: the manual ledger entry point for
// restocks, waste, count corrections and customer returns.
func (h *StockMovementHandler) Record(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req recordMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.ItemType == "" || req.ItemID == "" || req.MovementType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_type, item_id and movement_type are required"})
		return
	}

	movement, err := h.svc.RecordMovement(r.Context(), service.RecordMovementRequest{
		ItemType:       req.ItemType,
		ItemID:         req.ItemID,
		MovementType:   req.MovementType,
		QuantityChange: req.QuantityChange,
		Notes:          req.Notes,
		CreatedBy:      claims.UserID,
	})
	if err != nil {
		var insufficientErr *service.InsufficientStockError
		switch {
		case errors.As(err, &insufficientErr):
			writeJSON(w, http.StatusConflict, map[string]string{"error": insufficientErr.Error()})
		case errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		case errors.Is(err, service.ErrInvalidItemType),
			errors.Is(err, service.ErrInvalidMovementType),
			errors.Is(err, service.ErrZeroQuantity),
			errors.Is(err, service.ErrFractionalQuantity),
			errors.Is(err, service.ErrQuantityOutOfRange),
			errors.Is(err, service.ErrSaleNotManual):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrUnavailable):
			log.Printf("ERROR: record %s movement for %s %s: %v", req.MovementType, req.ItemType, req.ItemID, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		default:
			log.Printf("ERROR: record %s movement for %s %s: %v", req.MovementType, req.ItemType, req.ItemID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, dbMovementToResponse(movement, ""))
}

// List handles GET /stock-movements. With item_type and item_id it returns
// one item's history; otherwise the most recent entries across the ledger.
func (h *StockMovementHandler) List(w http.ResponseWriter, r *http.Request) {
	itemType := r.URL.Query().Get("item_type")
	itemID := r.URL.Query().Get("item_id")

	if itemType != "" || itemID != "" {
		if itemType == "" || itemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_type and item_id must be given together"})
			return
		}
		id, err := uuid.Parse(itemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
			return
		}
		movements, err := h.store.ListStockMovementsByItem(r.Context(), database.ListStockMovementsByItemParams{
			ItemType: database.ItemType(itemType),
			ItemID:   id,
		})
		if err != nil {
			log.Printf("ERROR: list stock movements for %s %s: %v", itemType, id, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp := make([]movementResponse, len(movements))
		for i, m := range movements {
			resp[i] = dbMovementToResponse(m, "")
		}
		writeJSON(w, http.StatusOK, movementListResponse{Movements: resp})
		return
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 500 {
		limit = 500
	}

	movements, err := h.store.ListStockMovements(r.Context(), int32(limit))
	if err != nil {
		log.Printf("ERROR: list stock movements: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]movementResponse, len(movements))
	for i, m := range movements {
		resp[i] = dbMovementToResponse(m.StockMovement, m.ItemName)
	}
	writeJSON(w, http.StatusOK, movementListResponse{Movements: resp})
}

// --- Helpers ---

// numericToQuantityString renders a stock quantity without forcing two
// decimal places the way money formatting does.
func numericToQuantityString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0"
	}
	return d.String()
}

func dbMovementToResponse(m database.StockMovement, itemName string) movementResponse {
	resp := movementResponse{
		ID:             m.ID,
		ItemType:       string(m.ItemType),
		ItemID:         m.ItemID,
		ItemName:       itemName,
		MovementType:   string(m.MovementType),
		QuantityChange: numericToQuantityString(m.QuantityChange),
		PreviousStock:  numericToQuantityString(m.PreviousStock),
		NewStock:       numericToQuantityString(m.NewStock),
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
	if m.OrderID.Valid {
		s := uuid.UUID(m.OrderID.Bytes).String()
		resp.OrderID = &s
	}
	if m.Notes.Valid {
		resp.Notes = &m.Notes.String
	}
	return resp
}
