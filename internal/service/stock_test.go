package service

import (
	"context"
	"errors"
	"testing"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func newTestStockService(store *mockStore) (*StockService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) StockStore { return store }
	return NewStockService(pool, newStore), tx
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestRecordMovement_InvalidItemType(t *testing.T) {
	store, _, _ := defaultStore(uuid.New(), 10)
	svc, _ := newTestStockService(store)

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Gadget",
		ItemID:         uuid.New().String(),
		MovementType:   "Restock",
		QuantityChange: dec("5"),
		CreatedBy:      uuid.New(),
	})
	if !errors.Is(err, ErrInvalidItemType) {
		t.Fatalf("expected ErrInvalidItemType, got: %v", err)
	}
}

func TestRecordMovement_InvalidMovementType(t *testing.T) {
	store, _, _ := defaultStore(uuid.New(), 10)
	svc, _ := newTestStockService(store)

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         uuid.New().String(),
		MovementType:   "Shrinkage",
		QuantityChange: dec("-1"),
		CreatedBy:      uuid.New(),
	})
	if !errors.Is(err, ErrInvalidMovementType) {
		t.Fatalf("expected ErrInvalidMovementType, got: %v", err)
	}
}

// Sale movements only come out of order placement; the manual entry point
// rejects them.
func TestRecordMovement_SaleRejected(t *testing.T) {
	store, _, _ := defaultStore(uuid.New(), 10)
	svc, _ := newTestStockService(store)

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         uuid.New().String(),
		MovementType:   "Sale",
		QuantityChange: dec("-1"),
		CreatedBy:      uuid.New(),
	})
	if !errors.Is(err, ErrSaleNotManual) {
		t.Fatalf("expected ErrSaleNotManual, got: %v", err)
	}
}

func TestRecordMovement_ZeroQuantity(t *testing.T) {
	productID := uuid.New()
	store, _, _ := defaultStore(productID, 10)
	svc, _ := newTestStockService(store)

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         productID.String(),
		MovementType:   "Adjustment",
		QuantityChange: decimal.Zero,
		CreatedBy:      uuid.New(),
	})
	if !errors.Is(err, ErrZeroQuantity) {
		t.Fatalf("expected ErrZeroQuantity, got: %v", err)
	}
}

func TestRecordMovement_FractionalProductQuantity(t *testing.T) {
	productID := uuid.New()
	store, _, _ := defaultStore(productID, 10)
	svc, _ := newTestStockService(store)

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         productID.String(),
		MovementType:   "Waste",
		QuantityChange: dec("-0.5"),
		CreatedBy:      uuid.New(),
	})
	if !errors.Is(err, ErrFractionalQuantity) {
		t.Fatalf("expected ErrFractionalQuantity, got: %v", err)
	}
}

// A product change beyond int32 must be rejected before the delta conversion:
// unchecked, 2^32 wraps to 0 and commits a movement row whose arithmetic
// contradicts the stock it claims to describe.
func TestRecordMovement_QuantityBeyondInt32(t *testing.T) {
	productID := uuid.New()
	store, stock, movements := defaultStore(productID, 10)
	svc, tx := newTestStockService(store)

	for _, qty := range []string{"4294967296", "2147483648", "-2147483649"} {
		_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
			ItemType:       "Product",
			ItemID:         productID.String(),
			MovementType:   "Adjustment",
			QuantityChange: dec(qty),
			CreatedBy:      uuid.New(),
		})
		if !errors.Is(err, ErrQuantityOutOfRange) {
			t.Fatalf("quantity %s: expected ErrQuantityOutOfRange, got: %v", qty, err)
		}
	}
	if tx.committed {
		t.Fatal("transaction must not commit")
	}
	if *stock != 10 {
		t.Errorf("stock = %d, want untouched 10", *stock)
	}
	if len(*movements) != 0 {
		t.Fatalf("expected no movements, got %d", len(*movements))
	}
}

func TestRecordMovement_MaxInt32Accepted(t *testing.T) {
	productID := uuid.New()
	store, stock, _ := defaultStore(productID, 0)
	svc, _ := newTestStockService(store)

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         productID.String(),
		MovementType:   "Restock",
		QuantityChange: dec("2147483647"),
		CreatedBy:      uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *stock != 2147483647 {
		t.Errorf("stock = %d, want 2147483647", *stock)
	}
}

func TestRecordMovement_ItemNotFound(t *testing.T) {
	store, _, _ := defaultStore(uuid.New(), 10)
	svc, _ := newTestStockService(store)

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         uuid.New().String(),
		MovementType:   "Restock",
		QuantityChange: dec("5"),
		CreatedBy:      uuid.New(),
	})
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got: %v", err)
	}
}

func TestRecordMovement_Restock(t *testing.T) {
	productID := uuid.New()
	actorID := uuid.New()
	store, stock, movements := defaultStore(productID, 10)
	svc, tx := newTestStockService(store)

	movement, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         productID.String(),
		MovementType:   "Restock",
		QuantityChange: dec("24"),
		Notes:          "morning bake",
		CreatedBy:      actorID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed {
		t.Fatal("expected transaction to be committed")
	}
	if *stock != 34 {
		t.Errorf("stock = %d, want 34", *stock)
	}
	if len(*movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(*movements))
	}
	if !numericEquals(movement.PreviousStock, "10") || !numericEquals(movement.NewStock, "34") {
		t.Errorf("ledger arithmetic wrong: previous %v, new %v", movement.PreviousStock, movement.NewStock)
	}
	if movement.CreatedBy != actorID {
		t.Error("created_by should be the acting user")
	}
	if !movement.Notes.Valid || movement.Notes.String != "morning bake" {
		t.Errorf("notes = %v, want 'morning bake'", movement.Notes)
	}
}

func TestRecordMovement_WasteBelowZero(t *testing.T) {
	productID := uuid.New()
	store, stock, _ := defaultStore(productID, 3)
	svc, tx := newTestStockService(store)

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         productID.String(),
		MovementType:   "Waste",
		QuantityChange: dec("-5"),
		CreatedBy:      uuid.New(),
	})
	var insufficientErr *InsufficientStockError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("expected InsufficientStockError, got: %v", err)
	}
	want := `Insufficient stock for "Pandesal" (Available: 3, Requested: 5)`
	if insufficientErr.Error() != want {
		t.Errorf("error = %q, want %q", insufficientErr.Error(), want)
	}
	if tx.committed {
		t.Fatal("transaction must not commit")
	}
	if *stock != 3 {
		t.Errorf("stock = %d, want untouched 3", *stock)
	}
}

func TestRecordMovement_IngredientFractional(t *testing.T) {
	ingredientID := uuid.New()
	currentStock := dec("12.5")
	store, _, movements := defaultStore(uuid.New(), 0)
	store.getIngredientFn = func(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
		if id != ingredientID {
			return database.Ingredient{}, pgx.ErrNoRows
		}
		return database.Ingredient{ID: ingredientID, Name: "Flour", Unit: "kg", CurrentStock: makeNumeric(currentStock.String())}, nil
	}
	store.adjustIngredientStockFn = func(ctx context.Context, arg database.AdjustIngredientStockParams) (pgtype.Numeric, error) {
		if arg.ID != ingredientID {
			return pgtype.Numeric{}, pgx.ErrNoRows
		}
		next := currentStock.Add(numericToDecimal(arg.Delta))
		if next.IsNegative() {
			return pgtype.Numeric{}, pgx.ErrNoRows
		}
		currentStock = next
		return makeNumeric(next.String()), nil
	}
	svc, _ := newTestStockService(store)

	movement, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Ingredient",
		ItemID:         ingredientID.String(),
		MovementType:   "Waste",
		QuantityChange: dec("-2.25"),
		CreatedBy:      uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(movement.PreviousStock, "12.5") || !numericEquals(movement.NewStock, "10.25") {
		t.Errorf("ledger arithmetic wrong: previous %v, new %v", movement.PreviousStock, movement.NewStock)
	}
	if len(*movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(*movements))
	}
}

func TestRecordMovement_BeginError(t *testing.T) {
	store, _, _ := defaultStore(uuid.New(), 10)
	pool := &mockTxBeginner{err: errors.New("pool exhausted")}
	svc := NewStockService(pool, func(db database.DBTX) StockStore { return store })

	_, err := svc.RecordMovement(context.Background(), RecordMovementRequest{
		ItemType:       "Product",
		ItemID:         uuid.New().String(),
		MovementType:   "Restock",
		QuantityChange: dec("1"),
		CreatedBy:      uuid.New(),
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got: %v", err)
	}
}
