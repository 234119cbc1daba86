package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/delapena-bakeshop/api/internal/handler"
	"github.com/delapena-bakeshop/api/internal/middleware"
)

// --- Mock ReturnStore ---

type mockReturnStore struct {
	getOrderFn     func(ctx context.Context, id uuid.UUID) (database.Order, error)
	getProductFn   func(ctx context.Context, id uuid.UUID) (database.Product, error)
	createReturnFn func(ctx context.Context, arg database.CreateReturnParams) (database.Return, error)
	getReturnFn    func(ctx context.Context, id uuid.UUID) (database.Return, error)
	listReturnsFn  func(ctx context.Context) ([]database.ReturnRow, error)
	deleteReturnFn func(ctx context.Context, id uuid.UUID) (int64, error)
}

func (m *mockReturnStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockReturnStore) GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error) {
	if m.getProductFn != nil {
		return m.getProductFn(ctx, id)
	}
	return database.Product{}, pgx.ErrNoRows
}

func (m *mockReturnStore) CreateReturn(ctx context.Context, arg database.CreateReturnParams) (database.Return, error) {
	if m.createReturnFn != nil {
		return m.createReturnFn(ctx, arg)
	}
	return database.Return{}, pgx.ErrNoRows
}

func (m *mockReturnStore) GetReturn(ctx context.Context, id uuid.UUID) (database.Return, error) {
	if m.getReturnFn != nil {
		return m.getReturnFn(ctx, id)
	}
	return database.Return{}, pgx.ErrNoRows
}

func (m *mockReturnStore) ListReturns(ctx context.Context) ([]database.ReturnRow, error) {
	if m.listReturnsFn != nil {
		return m.listReturnsFn(ctx)
	}
	return []database.ReturnRow{}, nil
}

func (m *mockReturnStore) DeleteReturn(ctx context.Context, id uuid.UUID) (int64, error) {
	if m.deleteReturnFn != nil {
		return m.deleteReturnFn(ctx, id)
	}
	return 0, nil
}

func setupReturnRouter(store *mockReturnStore) *chi.Mux {
	h := handler.NewReturnHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Post("/returns", h.Create)
	r.Get("/returns", h.List)
	r.Get("/returns/{id}", h.Get)
	r.Delete("/returns/{id}", h.Delete)
	return r
}

func returnBody(orderID, productID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"order_id":      orderID.String(),
		"product_id":    productID.String(),
		"quantity":      2,
		"return_reason": "crushed in transit",
		"action_taken":  "Refund",
		"refund_amount": "10.00",
	}
}

// --- Tests ---

func TestReturnCreate_HappyPath(t *testing.T) {
	claims := cashierClaims()
	order := testOrder(database.OrderStatusCompleted, database.OrderPaymentStatusPaid, database.OrderTypeWalkIn)
	product := testProduct("Pandesal", 50)

	store := &mockReturnStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
		getProductFn: func(ctx context.Context, id uuid.UUID) (database.Product, error) {
			return product, nil
		},
		createReturnFn: func(ctx context.Context, arg database.CreateReturnParams) (database.Return, error) {
			if arg.ProcessedBy != claims.UserID {
				t.Errorf("processed_by: got %v, want %v", arg.ProcessedBy, claims.UserID)
			}
			if arg.ActionTaken != database.ReturnActionRefund {
				t.Errorf("action_taken: got %v, want Refund", arg.ActionTaken)
			}
			return database.Return{
				ID:           uuid.New(),
				OrderID:      arg.OrderID,
				ProductID:    arg.ProductID,
				Quantity:     arg.Quantity,
				ReturnReason: arg.ReturnReason,
				ActionTaken:  arg.ActionTaken,
				RefundAmount: arg.RefundAmount,
				ProcessedBy:  arg.ProcessedBy,
			}, nil
		},
	}

	router := setupReturnRouter(store)
	rr := doAuthRequest(t, router, "POST", "/returns", returnBody(order.ID, product.ID), claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["refund_amount"] != "10.00" {
		t.Errorf("refund_amount: got %v, want 10.00", resp["refund_amount"])
	}
}

func TestReturnCreate_OrderNotFound(t *testing.T) {
	router := setupReturnRouter(&mockReturnStore{})
	rr := doAuthRequest(t, router, "POST", "/returns", returnBody(uuid.New(), uuid.New()), cashierClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "order not found" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestReturnCreate_ProductNotFound(t *testing.T) {
	order := testOrder(database.OrderStatusCompleted, database.OrderPaymentStatusPaid, database.OrderTypeWalkIn)

	store := &mockReturnStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return order, nil
		},
	}

	router := setupReturnRouter(store)
	rr := doAuthRequest(t, router, "POST", "/returns", returnBody(order.ID, uuid.New()), cashierClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "product not found" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestReturnCreate_InvalidAction(t *testing.T) {
	body := returnBody(uuid.New(), uuid.New())
	body["action_taken"] = "Discard"

	router := setupReturnRouter(&mockReturnStore{})
	rr := doAuthRequest(t, router, "POST", "/returns", body, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestReturnCreate_ZeroQuantity(t *testing.T) {
	body := returnBody(uuid.New(), uuid.New())
	body["quantity"] = 0

	router := setupReturnRouter(&mockReturnStore{})
	rr := doAuthRequest(t, router, "POST", "/returns", body, cashierClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestReturnList(t *testing.T) {
	store := &mockReturnStore{
		listReturnsFn: func(ctx context.Context) ([]database.ReturnRow, error) {
			return []database.ReturnRow{
				{
					Return: database.Return{
						ID:           uuid.New(),
						OrderID:      uuid.New(),
						ProductID:    uuid.New(),
						Quantity:     1,
						ReturnReason: "stale",
						ActionTaken:  database.ReturnActionReplace,
						RefundAmount: testNumeric("0.00"),
						ProcessedBy:  uuid.New(),
					},
					OrderNumber: "ORD1003",
					ProductName: "Ensaymada",
				},
			}, nil
		},
	}

	router := setupReturnRouter(store)
	rr := doAuthRequest(t, router, "GET", "/returns", nil, cashierClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	returns := resp["returns"].([]interface{})
	if len(returns) != 1 {
		t.Fatalf("returns count: got %d, want 1", len(returns))
	}
	row := returns[0].(map[string]interface{})
	if row["product_name"] != "Ensaymada" {
		t.Errorf("product_name: got %v, want Ensaymada", row["product_name"])
	}
}

func TestReturnDelete_NoContent(t *testing.T) {
	store := &mockReturnStore{
		deleteReturnFn: func(ctx context.Context, id uuid.UUID) (int64, error) {
			return 1, nil
		},
	}

	router := setupReturnRouter(store)
	rr := doAuthRequest(t, router, "DELETE", "/returns/"+uuid.New().String(), nil, adminClaims())

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestReturnDelete_NotFound(t *testing.T) {
	router := setupReturnRouter(&mockReturnStore{})
	rr := doAuthRequest(t, router, "DELETE", "/returns/"+uuid.New().String(), nil, adminClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
