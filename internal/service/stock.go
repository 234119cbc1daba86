package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the stock service.
var (
	ErrItemNotFound        = errors.New("item not found")
	ErrInvalidItemType     = errors.New("invalid item_type")
	ErrInvalidMovementType = errors.New("invalid movement_type")
	ErrZeroQuantity        = errors.New("quantity_change must be non-zero")
	ErrFractionalQuantity  = errors.New("product quantities must be whole numbers")
	ErrQuantityOutOfRange  = errors.New("quantity_change is out of range")
	ErrSaleNotManual       = errors.New("Sale movements are created by order placement")
)

// ErrUnavailable wraps infrastructure failures (pool exhaustion, broken
// connections) so handlers can signal "safe to retry" distinctly from
// business-rule rejections.
var ErrUnavailable = errors.New("database unavailable")

// maxStockDelta is the largest product quantity change that survives the
// int32 conversion used by AdjustProductStock.
var maxStockDelta = decimal.NewFromInt(math.MaxInt32)

// InsufficientStockError reports an adjustment that would take an item's
// stock negative.
type InsufficientStockError struct {
	Name      string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %q (Available: %s, Requested: %s)",
		e.Name, e.Available, e.Requested)
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// StockStore defines the DB methods needed to adjust stock.
// Satisfied by *database.Queries (and its WithTx variant).
type StockStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	AdjustProductStock(ctx context.Context, arg database.AdjustProductStockParams) (int32, error)
	SyncProductAvailability(ctx context.Context, id uuid.UUID) error
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	AdjustIngredientStock(ctx context.Context, arg database.AdjustIngredientStockParams) (pgtype.Numeric, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
}

// NewStockStore creates a StockStore from a DBTX (pool or tx).
type NewStockStore func(db database.DBTX) StockStore

// StockService handles the stock ledger: every change to an item's on-hand
// quantity goes through it and leaves a movement row behind.
type StockService struct {
	pool     TxBeginner
	newStore NewStockStore
}

// NewStockService creates a new StockService.
func NewStockService(pool TxBeginner, newStore NewStockStore) *StockService {
	return &StockService{pool: pool, newStore: newStore}
}

// StockAdjustment is a single signed change to one item's stock.
type StockAdjustment struct {
	ItemType       database.ItemType
	ItemID         uuid.UUID
	MovementType   database.MovementType
	QuantityChange decimal.Decimal
	OrderID        pgtype.UUID
	CreatedBy      uuid.UUID
	Notes          string
}

// RecordMovementRequest is the validated input for a manual ledger entry.
type RecordMovementRequest struct {
	ItemType       string
	ItemID         string
	MovementType   string
	QuantityChange decimal.Decimal
	Notes          string
	CreatedBy      uuid.UUID
}

// RecordMovement applies a manual stock adjustment (restock, waste, count
// correction, customer return) in its own transaction. Sale movements are
// rejected here: they only come out of order placement.
func (s *StockService) RecordMovement(ctx context.Context, req RecordMovementRequest) (database.StockMovement, error) {
	itemType := database.ItemType(req.ItemType)
	switch itemType {
	case database.ItemTypeProduct, database.ItemTypeIngredient:
	default:
		return database.StockMovement{}, ErrInvalidItemType
	}

	movementType := database.MovementType(req.MovementType)
	switch movementType {
	case database.MovementTypeSale:
		return database.StockMovement{}, ErrSaleNotManual
	case database.MovementTypeAdjustment, database.MovementTypeRestock,
		database.MovementTypeReturn, database.MovementTypeWaste:
	default:
		return database.StockMovement{}, ErrInvalidMovementType
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		return database.StockMovement{}, ErrItemNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.StockMovement{}, fmt.Errorf("%w: begin tx: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	movement, err := applyStockAdjustment(ctx, store, StockAdjustment{
		ItemType:       itemType,
		ItemID:         itemID,
		MovementType:   movementType,
		QuantityChange: req.QuantityChange,
		CreatedBy:      req.CreatedBy,
		Notes:          req.Notes,
	})
	if err != nil {
		return database.StockMovement{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.StockMovement{}, fmt.Errorf("%w: commit tx: %v", ErrUnavailable, err)
	}
	return movement, nil
}

// applyStockAdjustment changes one item's stock and writes the matching
// movement row, inside the caller's transaction. The availability check and
// the decrement are a single conditional UPDATE, so two concurrent
// adjustments against the last unit cannot both succeed: the second sees
// zero rows updated and comes back as InsufficientStockError.
func applyStockAdjustment(ctx context.Context, store StockStore, adj StockAdjustment) (database.StockMovement, error) {
	if adj.QuantityChange.IsZero() {
		return database.StockMovement{}, ErrZeroQuantity
	}

	var previous, next decimal.Decimal

	switch adj.ItemType {
	case database.ItemTypeProduct:
		if !adj.QuantityChange.IsInteger() {
			return database.StockMovement{}, ErrFractionalQuantity
		}
		// Guard the int32 conversion: a change beyond int32 would silently
		// wrap and corrupt both the stock row and the movement row.
		if adj.QuantityChange.Abs().GreaterThan(maxStockDelta) {
			return database.StockMovement{}, ErrQuantityOutOfRange
		}
		delta := int32(adj.QuantityChange.IntPart())
		newStock, err := store.AdjustProductStock(ctx, database.AdjustProductStockParams{
			ID:    adj.ItemID,
			Delta: delta,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.StockMovement{}, stockShortfall(ctx, store, adj)
			}
			return database.StockMovement{}, fmt.Errorf("adjust product stock: %w", err)
		}
		next = decimal.NewFromInt32(newStock)
		previous = next.Sub(adj.QuantityChange)
		if err := store.SyncProductAvailability(ctx, adj.ItemID); err != nil {
			return database.StockMovement{}, fmt.Errorf("sync availability: %w", err)
		}

	case database.ItemTypeIngredient:
		newStock, err := store.AdjustIngredientStock(ctx, database.AdjustIngredientStockParams{
			ID:    adj.ItemID,
			Delta: decimalToQuantity(adj.QuantityChange),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.StockMovement{}, stockShortfall(ctx, store, adj)
			}
			return database.StockMovement{}, fmt.Errorf("adjust ingredient stock: %w", err)
		}
		next = numericToDecimal(newStock)
		previous = next.Sub(adj.QuantityChange)

	default:
		return database.StockMovement{}, ErrInvalidItemType
	}

	notes := pgtype.Text{}
	if adj.Notes != "" {
		notes = pgtype.Text{String: adj.Notes, Valid: true}
	}

	movement, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
		ItemType:       adj.ItemType,
		ItemID:         adj.ItemID,
		MovementType:   adj.MovementType,
		QuantityChange: decimalToQuantity(adj.QuantityChange),
		PreviousStock:  decimalToQuantity(previous),
		NewStock:       decimalToQuantity(next),
		OrderID:        adj.OrderID,
		CreatedBy:      adj.CreatedBy,
		Notes:          notes,
	})
	if err != nil {
		return database.StockMovement{}, fmt.Errorf("create stock movement: %w", err)
	}
	return movement, nil
}

// stockShortfall re-reads the item after a guarded update matched zero rows,
// to distinguish "no such item" from "not enough stock" and to name the item
// in the error.
func stockShortfall(ctx context.Context, store StockStore, adj StockAdjustment) error {
	switch adj.ItemType {
	case database.ItemTypeProduct:
		product, err := store.GetProduct(ctx, adj.ItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("get product: %w", err)
		}
		return &InsufficientStockError{
			Name:      product.Name,
			Available: decimal.NewFromInt32(product.StockQuantity),
			Requested: adj.QuantityChange.Neg(),
		}
	case database.ItemTypeIngredient:
		ingredient, err := store.GetIngredient(ctx, adj.ItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("get ingredient: %w", err)
		}
		return &InsufficientStockError{
			Name:      ingredient.Name,
			Available: numericToDecimal(ingredient.CurrentStock),
			Requested: adj.QuantityChange.Neg(),
		}
	}
	return ErrInvalidItemType
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// decimalToNumeric renders a money amount at two decimal places.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// decimalToQuantity renders a stock quantity without forcing a scale, so
// whole-unit products stay whole and fractional ingredient units keep their
// precision.
func decimalToQuantity(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
