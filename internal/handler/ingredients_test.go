package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/handler"
	"github.com/delapena-bakeshop/api/internal/middleware"
)

type mockIngredientStore struct {
	createIngredientFn func(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error)
	getIngredientFn    func(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	listIngredientsFn  func(ctx context.Context) ([]database.Ingredient, error)
	updateIngredientFn func(ctx context.Context, arg database.UpdateIngredientParams) (database.Ingredient, error)
	deleteIngredientFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockIngredientStore) CreateIngredient(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error) {
	if m.createIngredientFn != nil {
		return m.createIngredientFn(ctx, arg)
	}
	return database.Ingredient{}, pgx.ErrNoRows
}

func (m *mockIngredientStore) GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
	if m.getIngredientFn != nil {
		return m.getIngredientFn(ctx, id)
	}
	return database.Ingredient{}, pgx.ErrNoRows
}

func (m *mockIngredientStore) ListIngredients(ctx context.Context) ([]database.Ingredient, error) {
	if m.listIngredientsFn != nil {
		return m.listIngredientsFn(ctx)
	}
	return []database.Ingredient{}, nil
}

func (m *mockIngredientStore) UpdateIngredient(ctx context.Context, arg database.UpdateIngredientParams) (database.Ingredient, error) {
	if m.updateIngredientFn != nil {
		return m.updateIngredientFn(ctx, arg)
	}
	return database.Ingredient{}, pgx.ErrNoRows
}

func (m *mockIngredientStore) DeleteIngredient(ctx context.Context, id uuid.UUID) error {
	if m.deleteIngredientFn != nil {
		return m.deleteIngredientFn(ctx, id)
	}
	return nil
}

func setupIngredientRouter(store *mockIngredientStore) *chi.Mux {
	h := handler.NewIngredientHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Post("/ingredients", h.Create)
	r.Get("/ingredients", h.List)
	r.Get("/ingredients/{id}", h.Get)
	r.Put("/ingredients/{id}", h.Update)
	r.Delete("/ingredients/{id}", h.Delete)
	return r
}

func TestIngredientCreate_HappyPath(t *testing.T) {
	store := &mockIngredientStore{
		createIngredientFn: func(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error) {
			if arg.Name != "All-Purpose Flour" {
				t.Errorf("name: got %q, want All-Purpose Flour", arg.Name)
			}
			if arg.Unit != "kg" {
				t.Errorf("unit: got %q, want kg", arg.Unit)
			}
			return database.Ingredient{
				ID:           uuid.New(),
				Name:         arg.Name,
				Unit:         arg.Unit,
				CurrentStock: testNumeric("12.5"),
				ReorderLevel: testNumeric("3"),
				CostPerUnit:  testNumeric("45.00"),
				CreatedAt:    time.Now(),
			}, nil
		},
	}

	router := setupIngredientRouter(store)
	rr := doAuthRequest(t, router, "POST", "/ingredients", map[string]interface{}{
		"name":          "All-Purpose Flour",
		"unit":          "kg",
		"current_stock": "12.5",
		"reorder_level": "3",
		"cost_per_unit": "45.00",
	}, adminClaims())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["current_stock"] != "12.5" {
		t.Errorf("current_stock: got %v, want 12.5 (fractional scale kept)", resp["current_stock"])
	}
}

func TestIngredientCreate_MissingUnit(t *testing.T) {
	router := setupIngredientRouter(&mockIngredientStore{})
	rr := doAuthRequest(t, router, "POST", "/ingredients", map[string]interface{}{
		"name": "Butter",
	}, adminClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestIngredientGet_LowStockFlag(t *testing.T) {
	ing := database.Ingredient{
		ID:           uuid.New(),
		Name:         "Butter",
		Unit:         "kg",
		CurrentStock: testNumeric("2.5"),
		ReorderLevel: testNumeric("3"),
		CostPerUnit:  testNumeric("380.00"),
		CreatedAt:    time.Now(),
	}

	store := &mockIngredientStore{
		getIngredientFn: func(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
			return ing, nil
		},
	}

	router := setupIngredientRouter(store)
	rr := doAuthRequest(t, router, "GET", "/ingredients/"+ing.ID.String(), nil, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["low_stock"] != true {
		t.Error("low_stock should be true when stock is at or below reorder level")
	}
}

func TestIngredientDelete_NotFound(t *testing.T) {
	router := setupIngredientRouter(&mockIngredientStore{})
	rr := doAuthRequest(t, router, "DELETE", "/ingredients/"+uuid.New().String(), nil, adminClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
