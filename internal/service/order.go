package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/delapena-bakeshop/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems       = errors.New("items are required")
	ErrInvalidQuantity  = errors.New("quantity must be > 0")
	ErrInvalidProductID = errors.New("invalid product_id")
	ErrInvalidUnitPrice = errors.New("invalid unit_price")
	ErrInvalidSubtotal  = errors.New("invalid subtotal")
	ErrSubtotalMismatch = errors.New("subtotal does not equal unit_price * quantity")
	ErrInvalidTotal     = errors.New("invalid total_amount")
	ErrTotalMismatch    = errors.New("total_amount does not equal the sum of subtotals")
	ErrProductNotFound  = errors.New("product not found")
)

// OrderStore defines the DB methods needed to place orders. It embeds
// StockStore because walk-in placement drives the stock ledger in the same
// transaction.
type OrderStore interface {
	StockStore
	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderLine is a single cart line as submitted by the client.
type OrderLine struct {
	ProductID string
	Quantity  int32
	UnitPrice string
	Subtotal  string
}

// PlaceWalkInRequest is the validated input for a counter sale.
type PlaceWalkInRequest struct {
	CashierID   uuid.UUID
	TotalAmount string
	Notes       string
	Items       []OrderLine
}

// PlaceResellerRequest is the validated input for a reseller order.
type PlaceResellerRequest struct {
	CustomerID  uuid.UUID
	TotalAmount string
	Notes       string
	Items       []OrderLine
}

// PlaceOrderResult is the created order with its lines; Payment is non-nil
// only for walk-ins, which settle at the counter.
type PlaceOrderResult struct {
	Order   database.Order
	Items   []database.OrderItem
	Payment *database.Payment
}

// OrderService handles order placement.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// checkedLine is a cart line with its amounts parsed and verified.
type checkedLine struct {
	productID uuid.UUID
	quantity  int32
	unitPrice decimal.Decimal
	subtotal  decimal.Decimal
}

// checkLines parses and cross-checks the cart: each subtotal must equal
// unit_price * quantity and the declared total must equal the sum of
// subtotals. The amounts the client displays are the amounts that get stored.
func checkLines(items []OrderLine, totalAmount string) ([]checkedLine, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}

	total, err := decimal.NewFromString(totalAmount)
	if err != nil {
		return nil, decimal.Zero, ErrInvalidTotal
	}

	lines := make([]checkedLine, 0, len(items))
	sum := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}
		unitPrice, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidUnitPrice)
		}
		subtotal, err := decimal.NewFromString(item.Subtotal)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidSubtotal)
		}
		if !subtotal.Equal(unitPrice.Mul(decimal.NewFromInt32(item.Quantity))) {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrSubtotalMismatch)
		}
		sum = sum.Add(subtotal)
		lines = append(lines, checkedLine{
			productID: productID,
			quantity:  item.Quantity,
			unitPrice: unitPrice,
			subtotal:  subtotal,
		})
	}

	if !sum.Equal(total) {
		return nil, decimal.Zero, ErrTotalMismatch
	}
	return lines, total, nil
}

// PlaceWalkIn creates a completed, paid counter sale in one transaction:
// order row, order items, one Sale ledger movement per line, and a settled
// Cash payment. Any failure rolls the whole thing back.
func (s *OrderService) PlaceWalkIn(ctx context.Context, req PlaceWalkInRequest) (*PlaceOrderResult, error) {
	lines, total, err := checkLines(req.Items, req.TotalAmount)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orderNumber, err := nextOrderNumber(ctx, store)
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:   orderNumber,
		CustomerID:    pgtype.UUID{},
		OrderType:     database.OrderTypeWalkIn,
		OrderStatus:   database.OrderStatusCompleted,
		PaymentStatus: database.OrderPaymentStatusPaid,
		TotalAmount:   decimalToNumeric(total),
		ReceivedBy:    req.CashierID,
		Notes:         textOrNull(req.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items, err := insertLines(ctx, store, order.ID, lines, func(i int, line checkedLine, product database.Product) error {
		_, err := applyStockAdjustment(ctx, store, StockAdjustment{
			ItemType:       database.ItemTypeProduct,
			ItemID:         line.productID,
			MovementType:   database.MovementTypeSale,
			QuantityChange: decimal.NewFromInt32(line.quantity).Neg(),
			OrderID:        pgtype.UUID{Bytes: order.ID, Valid: true},
			CreatedBy:      req.CashierID,
			Notes:          fmt.Sprintf("Walk-in sale for %s", product.Name),
		})
		if err != nil {
			return fmt.Errorf("item[%d]: %w", i, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:       order.ID,
		PaymentMethod: database.PaymentMethodCash,
		Amount:        decimalToNumeric(total),
		PaymentStatus: database.PaymentStatusCompleted,
		ReceivedBy:    pgtype.UUID{Bytes: req.CashierID, Valid: true},
		PaymentDate:   pgtype.Timestamptz{Time: time.Now(), Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit tx: %v", ErrUnavailable, err)
	}

	return &PlaceOrderResult{Order: order, Items: items, Payment: &payment}, nil
}

// PlaceReseller creates a pending reseller order in one transaction: order
// row and order items only. Stock is not touched here; reseller orders
// consume stock when fulfilled, not when placed. No payment row is created
// either; the balance is collected later.
func (s *OrderService) PlaceReseller(ctx context.Context, req PlaceResellerRequest) (*PlaceOrderResult, error) {
	lines, total, err := checkLines(req.Items, req.TotalAmount)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orderNumber, err := nextOrderNumber(ctx, store)
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:   orderNumber,
		CustomerID:    pgtype.UUID{Bytes: req.CustomerID, Valid: true},
		OrderType:     database.OrderTypeReseller,
		OrderStatus:   database.OrderStatusPending,
		PaymentStatus: database.OrderPaymentStatusPending,
		TotalAmount:   decimalToNumeric(total),
		ReceivedBy:    req.CustomerID,
		Notes:         textOrNull(req.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items, err := insertLines(ctx, store, order.ID, lines, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit tx: %v", ErrUnavailable, err)
	}

	return &PlaceOrderResult{Order: order, Items: items}, nil
}

// insertLines validates each product and inserts its order item, calling
// afterInsert (when given) with the loaded product row.
func insertLines(ctx context.Context, store OrderStore, orderID uuid.UUID, lines []checkedLine,
	afterInsert func(i int, line checkedLine, product database.Product) error) ([]database.OrderItem, error) {

	var items []database.OrderItem
	for i, line := range lines {
		product, err := store.GetProduct(ctx, line.productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get product: %w", i, err)
		}

		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   orderID,
			ProductID: line.productID,
			Quantity:  line.quantity,
			UnitPrice: decimalToNumeric(line.unitPrice),
			Subtotal:  decimalToNumeric(line.subtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("item[%d]: create order item: %w", i, err)
		}
		items = append(items, item)

		if afterInsert != nil {
			if err := afterInsert(i, line, product); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}

func nextOrderNumber(ctx context.Context, store OrderStore) (string, error) {
	n, err := store.NextOrderNumber(ctx)
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return fmt.Sprintf("ORD%d", n), nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
