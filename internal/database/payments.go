package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, payment_method, amount, payment_status, received_by, payment_date, created_at`

func scanPayment(row rowScanner, p *Payment) error {
	return row.Scan(
		&p.ID,
		&p.OrderID,
		&p.PaymentMethod,
		&p.Amount,
		&p.PaymentStatus,
		&p.ReceivedBy,
		&p.PaymentDate,
		&p.CreatedAt,
	)
}

const createPayment = `
INSERT INTO payments (order_id, payment_method, amount, payment_status, received_by, payment_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrderID       uuid.UUID
	PaymentMethod PaymentMethod
	Amount        pgtype.Numeric
	PaymentStatus PaymentStatus
	ReceivedBy    pgtype.UUID
	PaymentDate   pgtype.Timestamptz
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.OrderID,
		arg.PaymentMethod,
		arg.Amount,
		arg.PaymentStatus,
		arg.ReceivedBy,
		arg.PaymentDate,
	)
	var p Payment
	err := scanPayment(row, &p)
	return p, err
}

const completePayment = `
UPDATE payments
SET payment_status = 'Completed',
    payment_date = now(),
    received_by = $2
WHERE order_id = $1 AND payment_status = 'Pending'
RETURNING ` + paymentColumns

type CompletePaymentParams struct {
	OrderID    uuid.UUID
	ReceivedBy pgtype.UUID
}

// CompletePayment settles the pending payment row for an order. It returns
// pgx.ErrNoRows when there is no pending payment, which covers both "already
// collected" and "never had a payment row".
func (q *Queries) CompletePayment(ctx context.Context, arg CompletePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, completePayment, arg.OrderID, arg.ReceivedBy)
	var p Payment
	err := scanPayment(row, &p)
	return p, err
}

const listPaymentsByOrder = `
SELECT ` + paymentColumns + `
FROM payments
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// PendingPaymentRow is a pending reseller balance joined with order and
// customer details for the collection screen.
type PendingPaymentRow struct {
	OrderID      uuid.UUID
	OrderNumber  string
	OrderStatus  OrderStatus
	TotalAmount  pgtype.Numeric
	CustomerName string
	CreatedAt    pgtype.Timestamptz
}

const listPendingResellerPayments = `
SELECT o.id, o.order_number, o.order_status, o.total_amount,
       COALESCE(u.first_name || ' ' || u.last_name, '') AS customer_name,
       o.created_at
FROM orders o
LEFT JOIN users u ON u.id = o.customer_id
WHERE o.order_type = 'Reseller'
  AND o.payment_status = 'Pending'
  AND o.order_status NOT IN ('Pending', 'Cancelled')
ORDER BY o.created_at
`

// ListPendingResellerPayments returns approved reseller orders whose balance
// has not been collected yet.
func (q *Queries) ListPendingResellerPayments(ctx context.Context) ([]PendingPaymentRow, error) {
	rows, err := q.db.Query(ctx, listPendingResellerPayments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pending []PendingPaymentRow
	for rows.Next() {
		var p PendingPaymentRow
		if err := rows.Scan(
			&p.OrderID,
			&p.OrderNumber,
			&p.OrderStatus,
			&p.TotalAmount,
			&p.CustomerName,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
