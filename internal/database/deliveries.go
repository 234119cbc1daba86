package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const deliveryColumns = `id, order_id, driver_name, delivery_status, scheduled_date, delivered_at, recipient_name, recipient_contact, cash_collected, notes, recorded_by, created_at`

func scanDelivery(row rowScanner, d *Delivery) error {
	return row.Scan(
		&d.ID,
		&d.OrderID,
		&d.DriverName,
		&d.DeliveryStatus,
		&d.ScheduledDate,
		&d.DeliveredAt,
		&d.RecipientName,
		&d.RecipientContact,
		&d.CashCollected,
		&d.Notes,
		&d.RecordedBy,
		&d.CreatedAt,
	)
}

const createDelivery = `
INSERT INTO deliveries (order_id, driver_name, scheduled_date, recipient_name, recipient_contact, notes, recorded_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + deliveryColumns

type CreateDeliveryParams struct {
	OrderID          uuid.UUID
	DriverName       string
	ScheduledDate    pgtype.Date
	RecipientName    string
	RecipientContact string
	Notes            pgtype.Text
	RecordedBy       uuid.UUID
}

func (q *Queries) CreateDelivery(ctx context.Context, arg CreateDeliveryParams) (Delivery, error) {
	row := q.db.QueryRow(ctx, createDelivery,
		arg.OrderID,
		arg.DriverName,
		arg.ScheduledDate,
		arg.RecipientName,
		arg.RecipientContact,
		arg.Notes,
		arg.RecordedBy,
	)
	var d Delivery
	err := scanDelivery(row, &d)
	return d, err
}

const getDelivery = `
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE id = $1
`

func (q *Queries) GetDelivery(ctx context.Context, id uuid.UUID) (Delivery, error) {
	row := q.db.QueryRow(ctx, getDelivery, id)
	var d Delivery
	err := scanDelivery(row, &d)
	return d, err
}

const getDeliveryByOrder = `
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE order_id = $1
`

func (q *Queries) GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (Delivery, error) {
	row := q.db.QueryRow(ctx, getDeliveryByOrder, orderID)
	var d Delivery
	err := scanDelivery(row, &d)
	return d, err
}

const listDeliveries = `
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE ($1 = '' OR delivery_status = $1)
ORDER BY scheduled_date DESC, created_at DESC
`

func (q *Queries) ListDeliveries(ctx context.Context, status string) ([]Delivery, error) {
	rows, err := q.db.Query(ctx, listDeliveries, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		if err := scanDelivery(rows, &d); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

const updateDeliveryStatus = `
UPDATE deliveries
SET delivery_status = $2,
    delivered_at = COALESCE($3, delivered_at),
    notes = COALESCE($4, notes)
WHERE id = $1
RETURNING ` + deliveryColumns

type UpdateDeliveryStatusParams struct {
	ID          uuid.UUID
	NewStatus   DeliveryStatus
	DeliveredAt pgtype.Timestamptz
	Notes       pgtype.Text
}

func (q *Queries) UpdateDeliveryStatus(ctx context.Context, arg UpdateDeliveryStatusParams) (Delivery, error) {
	row := q.db.QueryRow(ctx, updateDeliveryStatus, arg.ID, arg.NewStatus, arg.DeliveredAt, arg.Notes)
	var d Delivery
	err := scanDelivery(row, &d)
	return d, err
}

const setDeliveryCashCollected = `
UPDATE deliveries
SET cash_collected = $2
WHERE order_id = $1
`

type SetDeliveryCashCollectedParams struct {
	OrderID       uuid.UUID
	CashCollected pgtype.Numeric
}

// SetDeliveryCashCollected records the cash the driver brought back. It is a
// no-op for orders without a delivery (walk-ins paid at the counter).
func (q *Queries) SetDeliveryCashCollected(ctx context.Context, arg SetDeliveryCashCollectedParams) error {
	_, err := q.db.Exec(ctx, setDeliveryCashCollected, arg.OrderID, arg.CashCollected)
	return err
}

const listPackedOrdersWithoutDelivery = `
SELECT ` + orderColumns + `
FROM orders o
WHERE o.order_status = 'Packed'
  AND NOT EXISTS (SELECT 1 FROM deliveries d WHERE d.order_id = o.id)
ORDER BY o.created_at
`

// ListPackedOrdersWithoutDelivery returns the orders ready to be put on a
// delivery run.
func (q *Queries) ListPackedOrdersWithoutDelivery(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listPackedOrdersWithoutDelivery)
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
