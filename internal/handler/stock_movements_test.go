package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/handler"
	"github.com/delapena-bakeshop/api/internal/middleware"
	"github.com/delapena-bakeshop/api/internal/service"
)

// --- Mocks ---

type mockStockService struct {
	recordFn func(ctx context.Context, req service.RecordMovementRequest) (database.StockMovement, error)
}

func (m *mockStockService) RecordMovement(ctx context.Context, req service.RecordMovementRequest) (database.StockMovement, error) {
	return m.recordFn(ctx, req)
}

type mockMovementStore struct {
	listFn       func(ctx context.Context, limit int32) ([]database.StockMovementRow, error)
	listByItemFn func(ctx context.Context, arg database.ListStockMovementsByItemParams) ([]database.StockMovement, error)
}

func (m *mockMovementStore) ListStockMovements(ctx context.Context, limit int32) ([]database.StockMovementRow, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return []database.StockMovementRow{}, nil
}

func (m *mockMovementStore) ListStockMovementsByItem(ctx context.Context, arg database.ListStockMovementsByItemParams) ([]database.StockMovement, error) {
	if m.listByItemFn != nil {
		return m.listByItemFn(ctx, arg)
	}
	return []database.StockMovement{}, nil
}

func setupMovementRouter(svc *mockStockService, store *mockMovementStore) *chi.Mux {
	h := handler.NewStockMovementHandler(svc, store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Post("/stock-movements", h.Record)
	r.Get("/stock-movements", h.List)
	return r
}

// --- Tests ---

func TestMovementRecord_HappyPath(t *testing.T) {
	claims := adminClaims()
	itemID := uuid.New()

	svc := &mockStockService{
		recordFn: func(ctx context.Context, req service.RecordMovementRequest) (database.StockMovement, error) {
			if req.CreatedBy != claims.UserID {
				t.Errorf("created_by: got %v, want %v", req.CreatedBy, claims.UserID)
			}
			if req.MovementType != "Restock" {
				t.Errorf("movement_type: got %q, want Restock", req.MovementType)
			}
			return database.StockMovement{
				ID:             uuid.New(),
				ItemType:       database.ItemTypeProduct,
				ItemID:         itemID,
				MovementType:   database.MovementTypeRestock,
				QuantityChange: testNumeric("24"),
				PreviousStock:  testNumeric("10"),
				NewStock:       testNumeric("34"),
				CreatedBy:      claims.UserID,
				CreatedAt:      time.Now(),
			}, nil
		},
	}

	router := setupMovementRouter(svc, &mockMovementStore{})
	rr := doAuthRequest(t, router, "POST", "/stock-movements", map[string]interface{}{
		"item_type":       "Product",
		"item_id":         itemID.String(),
		"movement_type":   "Restock",
		"quantity_change": 24,
		"notes":           "morning bake",
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["new_stock"] != "34" {
		t.Errorf("new_stock: got %v, want 34", resp["new_stock"])
	}
	if resp["previous_stock"] != "10" {
		t.Errorf("previous_stock: got %v, want 10", resp["previous_stock"])
	}
}

func TestMovementRecord_InsufficientStock(t *testing.T) {
	svc := &mockStockService{
		recordFn: func(ctx context.Context, req service.RecordMovementRequest) (database.StockMovement, error) {
			return database.StockMovement{}, &service.InsufficientStockError{
				Name:      "Pandesal",
				Available: decimalFromString(t, "3"),
				Requested: decimalFromString(t, "5"),
			}
		},
	}

	router := setupMovementRouter(svc, &mockMovementStore{})
	rr := doAuthRequest(t, router, "POST", "/stock-movements", map[string]interface{}{
		"item_type":       "Product",
		"item_id":         uuid.New().String(),
		"movement_type":   "Waste",
		"quantity_change": -5,
	}, adminClaims())

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	want := `Insufficient stock for "Pandesal" (Available: 3, Requested: 5)`
	if resp["error"] != want {
		t.Errorf("error: got %q, want %q", resp["error"], want)
	}
}

func TestMovementRecord_ItemNotFound(t *testing.T) {
	svc := &mockStockService{
		recordFn: func(ctx context.Context, req service.RecordMovementRequest) (database.StockMovement, error) {
			return database.StockMovement{}, service.ErrItemNotFound
		},
	}

	router := setupMovementRouter(svc, &mockMovementStore{})
	rr := doAuthRequest(t, router, "POST", "/stock-movements", map[string]interface{}{
		"item_type":       "Product",
		"item_id":         uuid.New().String(),
		"movement_type":   "Restock",
		"quantity_change": 5,
	}, adminClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestMovementRecord_QuantityOutOfRange(t *testing.T) {
	svc := &mockStockService{
		recordFn: func(ctx context.Context, req service.RecordMovementRequest) (database.StockMovement, error) {
			return database.StockMovement{}, service.ErrQuantityOutOfRange
		},
	}

	router := setupMovementRouter(svc, &mockMovementStore{})
	rr := doAuthRequest(t, router, "POST", "/stock-movements", map[string]interface{}{
		"item_type":       "Product",
		"item_id":         uuid.New().String(),
		"movement_type":   "Restock",
		"quantity_change": 4294967296,
	}, adminClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMovementRecord_SaleRejected(t *testing.T) {
	svc := &mockStockService{
		recordFn: func(ctx context.Context, req service.RecordMovementRequest) (database.StockMovement, error) {
			return database.StockMovement{}, service.ErrSaleNotManual
		},
	}

	router := setupMovementRouter(svc, &mockMovementStore{})
	rr := doAuthRequest(t, router, "POST", "/stock-movements", map[string]interface{}{
		"item_type":       "Product",
		"item_id":         uuid.New().String(),
		"movement_type":   "Sale",
		"quantity_change": -2,
	}, adminClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMovementRecord_MissingFields(t *testing.T) {
	router := setupMovementRouter(&mockStockService{}, &mockMovementStore{})
	rr := doAuthRequest(t, router, "POST", "/stock-movements", map[string]interface{}{
		"item_type": "Product",
	}, adminClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMovementList_ByItem(t *testing.T) {
	itemID := uuid.New()

	store := &mockMovementStore{
		listByItemFn: func(ctx context.Context, arg database.ListStockMovementsByItemParams) ([]database.StockMovement, error) {
			if arg.ItemType != database.ItemTypeIngredient {
				t.Errorf("item_type: got %v, want Ingredient", arg.ItemType)
			}
			if arg.ItemID != itemID {
				t.Errorf("item_id: got %v, want %v", arg.ItemID, itemID)
			}
			return []database.StockMovement{
				{
					ID:             uuid.New(),
					ItemType:       database.ItemTypeIngredient,
					ItemID:         itemID,
					MovementType:   database.MovementTypeWaste,
					QuantityChange: testNumeric("-2.25"),
					PreviousStock:  testNumeric("12.5"),
					NewStock:       testNumeric("10.25"),
					CreatedBy:      uuid.New(),
					CreatedAt:      time.Now(),
				},
			}, nil
		},
	}

	router := setupMovementRouter(&mockStockService{}, store)
	rr := doAuthRequest(t, router, "GET", "/stock-movements?item_type=Ingredient&item_id="+itemID.String(), nil, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	movements := resp["movements"].([]interface{})
	if len(movements) != 1 {
		t.Fatalf("movements count: got %d, want 1", len(movements))
	}
	m := movements[0].(map[string]interface{})
	if m["new_stock"] != "10.25" {
		t.Errorf("new_stock: got %v, want 10.25", m["new_stock"])
	}
}

func TestMovementList_ItemFilterNeedsBothParams(t *testing.T) {
	router := setupMovementRouter(&mockStockService{}, &mockMovementStore{})
	rr := doAuthRequest(t, router, "GET", "/stock-movements?item_type=Product", nil, adminClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMovementList_CapsLimit(t *testing.T) {
	store := &mockMovementStore{
		listFn: func(ctx context.Context, limit int32) ([]database.StockMovementRow, error) {
			if limit != 500 {
				t.Errorf("limit: got %d, want 500", limit)
			}
			return []database.StockMovementRow{}, nil
		},
	}

	router := setupMovementRouter(&mockStockService{}, store)
	rr := doAuthRequest(t, router, "GET", "/stock-movements?limit=9999", nil, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}
