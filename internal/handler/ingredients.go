package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// IngredientStore defines the database methods needed by ingredient handlers.
type IngredientStore interface {
	CreateIngredient(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	ListIngredients(ctx context.Context) ([]database.Ingredient, error)
	UpdateIngredient(ctx context.Context, arg database.UpdateIngredientParams) (database.Ingredient, error)
	DeleteIngredient(ctx context.Context, id uuid.UUID) error
}

// IngredientHandler handles ingredient endpoints.
type IngredientHandler struct {
	store IngredientStore
}

// NewIngredientHandler creates a new IngredientHandler.
func NewIngredientHandler(store IngredientStore) *IngredientHandler {
	return &IngredientHandler{store: store}
}

// --- Request / Response types ---

type ingredientRequest struct {
	Name         string      `json:"name"`
	Unit         string      `json:"unit"`
	CurrentStock json.Number `json:"current_stock"`
	ReorderLevel json.Number `json:"reorder_level"`
	CostPerUnit  json.Number `json:"cost_per_unit"`
}

type ingredientResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	CurrentStock string    `json:"current_stock"`
	ReorderLevel string    `json:"reorder_level"`
	CostPerUnit  string    `json:"cost_per_unit"`
	LowStock     bool      `json:"low_stock"`
	CreatedAt    time.Time `json:"created_at"`
}

type ingredientListResponse struct {
	Ingredients []ingredientResponse `json:"ingredients"`
}

// --- Handlers ---

// Create handles POST /ingredients.
func (h *IngredientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ingredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and unit are required"})
		return
	}

	currentStock, reorderLevel, costPerUnit, ok := parseIngredientAmounts(w, req)
	if !ok {
		return
	}
	if currentStock.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current_stock must be >= 0"})
		return
	}

	ingredient, err := h.store.CreateIngredient(r.Context(), database.CreateIngredientParams{
		Name:         req.Name,
		Unit:         req.Unit,
		CurrentStock: quantityToNumeric(currentStock),
		ReorderLevel: quantityToNumeric(reorderLevel),
		CostPerUnit:  decimalToNumeric(costPerUnit),
	})
	if err != nil {
		log.Printf("ERROR: create ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbIngredientToResponse(ingredient))
}

// List handles GET /ingredients.
func (h *IngredientHandler) List(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.store.ListIngredients(r.Context())
	if err != nil {
		log.Printf("ERROR: list ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ingredientResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = dbIngredientToResponse(ing)
	}
	writeJSON(w, http.StatusOK, ingredientListResponse{Ingredients: resp})
}

// Get handles GET /ingredients/{id}.
func (h *IngredientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}

	ingredient, err := h.store.GetIngredient(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: get ingredient %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbIngredientToResponse(ingredient))
}

// Update handles PUT /ingredients/{id}. Stock is not updatable here; the
// ledger owns it.
func (h *IngredientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}

	var req ingredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" || req.Unit == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and unit are required"})
		return
	}

	_, reorderLevel, costPerUnit, ok := parseIngredientAmounts(w, req)
	if !ok {
		return
	}

	ingredient, err := h.store.UpdateIngredient(r.Context(), database.UpdateIngredientParams{
		ID:           id,
		Name:         req.Name,
		Unit:         req.Unit,
		ReorderLevel: quantityToNumeric(reorderLevel),
		CostPerUnit:  decimalToNumeric(costPerUnit),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: update ingredient %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbIngredientToResponse(ingredient))
}

// Delete handles DELETE /ingredients/{id}.
func (h *IngredientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ingredient ID"})
		return
	}

	if _, err := h.store.GetIngredient(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ingredient not found"})
			return
		}
		log.Printf("ERROR: get ingredient %s for delete: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := h.store.DeleteIngredient(r.Context(), id); err != nil {
		log.Printf("ERROR: delete ingredient %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func parseIngredientAmounts(w http.ResponseWriter, req ingredientRequest) (currentStock, reorderLevel, costPerUnit decimal.Decimal, ok bool) {
	var err error
	if req.CurrentStock != "" {
		currentStock, err = decimal.NewFromString(req.CurrentStock.String())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid current_stock"})
			return
		}
	}
	if req.ReorderLevel != "" {
		reorderLevel, err = decimal.NewFromString(req.ReorderLevel.String())
		if err != nil || reorderLevel.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reorder_level"})
			return
		}
	}
	if req.CostPerUnit != "" {
		costPerUnit, err = decimal.NewFromString(req.CostPerUnit.String())
		if err != nil || costPerUnit.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_per_unit"})
			return
		}
	}
	ok = true
	return
}

// quantityToNumeric keeps the submitted scale instead of forcing money
// formatting.
func quantityToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

func dbIngredientToResponse(i database.Ingredient) ingredientResponse {
	current := numericToQuantityString(i.CurrentStock)
	reorder := numericToQuantityString(i.ReorderLevel)
	currentDec, _ := decimal.NewFromString(current)
	reorderDec, _ := decimal.NewFromString(reorder)
	return ingredientResponse{
		ID:           i.ID,
		Name:         i.Name,
		Unit:         i.Unit,
		CurrentStock: current,
		ReorderLevel: reorder,
		CostPerUnit:  numericToString(i.CostPerUnit),
		LowStock:     currentDec.LessThanOrEqual(reorderDec),
		CreatedAt:    i.CreatedAt,
	}
}
