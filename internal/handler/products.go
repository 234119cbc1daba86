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
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListProducts(ctx context.Context) ([]database.Product, error)
	ListAvailableProducts(ctx context.Context) ([]database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	DiscontinueProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CountOrderItemsByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
}

// NewProductStore creates a ProductStore from a DBTX (pool or tx).
type NewProductStore func(db database.DBTX) ProductStore

// ProductHandler handles product endpoints.
type ProductHandler struct {
	store    ProductStore
	pool     service.TxBeginner
	newStore NewProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, pool service.TxBeginner, newStore NewProductStore) *ProductHandler {
	return &ProductHandler{store: store, pool: pool, newStore: newStore}
}

// --- Request / Response types ---

type productRequest struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Price         json.Number `json:"price"`
	CostPrice     json.Number `json:"cost_price"`
	StockQuantity int32       `json:"stock_quantity"`
	MinStockLevel int32       `json:"min_stock_level"`
	ImageURL      string      `json:"image_url"`
}

type productResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Description        *string   `json:"description"`
	Price              string    `json:"price"`
	CostPrice          string    `json:"cost_price"`
	StockQuantity      int32     `json:"stock_quantity"`
	MinStockLevel      int32     `json:"min_stock_level"`
	ImageURL           *string   `json:"image_url"`
	AvailabilityStatus string    `json:"availability_status"`
	LowStock           bool      `json:"low_stock"`
	CreatedAt          time.Time `json:"created_at"`
}

type productListResponse struct {
	Products []productResponse `json:"products"`
}

// --- Handlers ---

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	price, ok := validateProductRequest(w, req)
	if !ok {
		return
	}
	costPrice := decimal.Zero
	if req.CostPrice != "" {
		var err error
		costPrice, err = decimal.NewFromString(req.CostPrice.String())
		if err != nil || costPrice.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_price"})
			return
		}
	}
	if req.StockQuantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock_quantity must be >= 0"})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Name:          req.Name,
		Description:   textOrNull(req.Description),
		Price:         decimalToNumeric(price),
		CostPrice:     decimalToNumeric(costPrice),
		StockQuantity: req.StockQuantity,
		MinStockLevel: req.MinStockLevel,
		ImageURL:      textOrNull(req.ImageURL),
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbProductToResponse(product))
}

// List handles GET /products. With ?available=true only Active, in-stock
// products come back; this is the catalog view resellers order from.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		products []database.Product
		err      error
	)
	if r.URL.Query().Get("available") == "true" {
		products, err = h.store.ListAvailableProducts(r.Context())
	} else {
		products, err = h.store.ListProducts(r.Context())
	}
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = dbProductToResponse(p)
	}
	writeJSON(w, http.StatusOK, productListResponse{Products: resp})
}

// Get handles GET /products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbProductToResponse(product))
}

// Update handles PUT /products/{id}. Stock is deliberately not updatable
// here: all stock changes go through the ledger.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	price, ok := validateProductRequest(w, req)
	if !ok {
		return
	}
	costPrice := decimal.Zero
	if req.CostPrice != "" {
		var err error
		costPrice, err = decimal.NewFromString(req.CostPrice.String())
		if err != nil || costPrice.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_price"})
			return
		}
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:            id,
		Name:          req.Name,
		Description:   textOrNull(req.Description),
		Price:         decimalToNumeric(price),
		CostPrice:     decimalToNumeric(costPrice),
		MinStockLevel: req.MinStockLevel,
		ImageURL:      textOrNull(req.ImageURL),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbProductToResponse(product))
}

// Delete handles DELETE /products/{id}. A product that appears on any order
// is never hard-deleted; it gets marked Discontinued with its on-hand stock
// zeroed, and the write-off lands in the stock ledger like any other change.
// Retire and write-off share one transaction.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for delete product %s: %v", id, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	txStore := h.newStore(tx)

	product, err := txStore.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product %s for delete: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	refs, err := txStore.CountOrderItemsByProduct(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: count order items for product %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if refs > 0 {
		updated, err := txStore.DiscontinueProduct(r.Context(), id)
		if err != nil {
			log.Printf("ERROR: discontinue product %s: %v", id, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if product.StockQuantity != 0 {
			change := decimal.NewFromInt32(product.StockQuantity)
			if _, err := txStore.CreateStockMovement(r.Context(), database.CreateStockMovementParams{
				ItemType:       database.ItemTypeProduct,
				ItemID:         id,
				MovementType:   database.MovementTypeAdjustment,
				QuantityChange: quantityToNumeric(change.Neg()),
				PreviousStock:  quantityToNumeric(change),
				NewStock:       quantityToNumeric(decimal.Zero),
				CreatedBy:      claims.UserID,
				Notes:          textOrNull("Stock written off on discontinue"),
			}); err != nil {
				log.Printf("ERROR: write off stock for product %s: %v", id, err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		}
		if err := tx.Commit(r.Context()); err != nil {
			log.Printf("ERROR: commit discontinue product %s: %v", id, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, dbProductToResponse(updated))
		return
	}

	if err := txStore.DeleteProduct(r.Context(), id); err != nil {
		log.Printf("ERROR: delete product %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit delete product %s: %v", id, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func validateProductRequest(w http.ResponseWriter, req productRequest) (decimal.Decimal, bool) {
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return decimal.Zero, false
	}
	if req.Price == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price is required"})
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(req.Price.String())
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return decimal.Zero, false
	}
	return price, true
}

func dbProductToResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Price:              numericToString(p.Price),
		CostPrice:          numericToString(p.CostPrice),
		StockQuantity:      p.StockQuantity,
		MinStockLevel:      p.MinStockLevel,
		AvailabilityStatus: string(p.AvailabilityStatus),
		LowStock:           p.StockQuantity <= p.MinStockLevel,
		CreatedAt:          p.CreatedAt,
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.ImageURL.Valid {
		resp.ImageURL = &p.ImageURL.String
	}
	return resp
}
