package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, order_date, customer_id, order_type, order_status, payment_status, total_amount, received_by, approved_by, notes, created_at, updated_at`

func scanOrder(row rowScanner, o *Order) error {
	return row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.OrderDate,
		&o.CustomerID,
		&o.OrderType,
		&o.OrderStatus,
		&o.PaymentStatus,
		&o.TotalAmount,
		&o.ReceivedBy,
		&o.ApprovedBy,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

const nextOrderNumber = `
SELECT nextval('order_number_seq')
`

// NextOrderNumber draws the next value from the order number sequence.
func (q *Queries) NextOrderNumber(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, nextOrderNumber).Scan(&n)
	return n, err
}

const createOrder = `
INSERT INTO orders (order_number, customer_id, order_type, order_status, payment_status, total_amount, received_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber   string
	CustomerID    pgtype.UUID
	OrderType     OrderType
	OrderStatus   OrderStatus
	PaymentStatus OrderPaymentStatus
	TotalAmount   pgtype.Numeric
	ReceivedBy    uuid.UUID
	Notes         pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.CustomerID,
		arg.OrderType,
		arg.OrderStatus,
		arg.PaymentStatus,
		arg.TotalAmount,
		arg.ReceivedBy,
		arg.Notes,
	)
	var o Order
	err := scanOrder(row, &o)
	return o, err
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, product_id, quantity, unit_price, subtotal
`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Quantity,
		arg.UnitPrice,
		arg.Subtotal,
	)
	var it OrderItem
	err := row.Scan(
		&it.ID,
		&it.OrderID,
		&it.ProductID,
		&it.Quantity,
		&it.UnitPrice,
		&it.Subtotal,
	)
	return it, err
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var o Order
	err := scanOrder(row, &o)
	return o, err
}

const getOrderForUpdate = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR NO KEY UPDATE
`

// GetOrderForUpdate locks the order row for the rest of the transaction so
// concurrent lifecycle updates serialize on it.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, id)
	var o Order
	err := scanOrder(row, &o)
	return o, err
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1 = '' OR order_type = $1)
  AND ($2 = '' OR order_status = $2)
  AND ($3::uuid IS NULL OR customer_id = $3)
ORDER BY created_at DESC
`

type ListOrdersParams struct {
	OrderType   string
	OrderStatus string
	CustomerID  pgtype.UUID
}

// ListOrders filters by any combination of type, status and customer; an
// empty string or null UUID means "no filter" for that column.
func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.OrderType, arg.OrderStatus, arg.CustomerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrderItemsByOrder = `
SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.subtotal, p.name
FROM order_items oi
JOIN products p ON p.id = oi.product_id
WHERE oi.order_id = $1
`

// OrderItemRow is an order line joined with its product name.
type OrderItemRow struct {
	OrderItem
	ProductName string
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItemRow, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItemRow
	for rows.Next() {
		var it OrderItemRow
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductID,
			&it.Quantity,
			&it.UnitPrice,
			&it.Subtotal,
			&it.ProductName,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const updateOrderStatus = `
UPDATE orders
SET order_status = $2,
    approved_by = COALESCE($4, approved_by),
    updated_at = now()
WHERE id = $1 AND order_status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID             uuid.UUID
	NewStatus      OrderStatus
	ExpectedStatus OrderStatus
	ApprovedBy     pgtype.UUID
}

// UpdateOrderStatus moves an order to NewStatus only if it is still in
// ExpectedStatus, returning pgx.ErrNoRows when someone else got there first.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.NewStatus, arg.ExpectedStatus, arg.ApprovedBy)
	var o Order
	err := scanOrder(row, &o)
	return o, err
}

const setOrderStatus = `
UPDATE orders
SET order_status = $2,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type SetOrderStatusParams struct {
	ID        uuid.UUID
	NewStatus OrderStatus
}

// SetOrderStatus is the unconditional variant, used inside transactions that
// already hold the row lock.
func (q *Queries) SetOrderStatus(ctx context.Context, arg SetOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, setOrderStatus, arg.ID, arg.NewStatus)
	var o Order
	err := scanOrder(row, &o)
	return o, err
}

const markOrderPaid = `
UPDATE orders
SET payment_status = 'Paid',
    order_status = $2,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID          uuid.UUID
	OrderStatus OrderStatus
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.OrderStatus)
	var o Order
	err := scanOrder(row, &o)
	return o, err
}
