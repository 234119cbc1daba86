package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createStockMovement = `
INSERT INTO stock_movements (item_type, item_id, movement_type, quantity_change, previous_stock, new_stock, order_id, created_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, item_type, item_id, movement_type, quantity_change, previous_stock, new_stock, order_id, created_by, notes, created_at
`

type CreateStockMovementParams struct {
	ItemType       ItemType
	ItemID         uuid.UUID
	MovementType   MovementType
	QuantityChange pgtype.Numeric
	PreviousStock  pgtype.Numeric
	NewStock       pgtype.Numeric
	OrderID        pgtype.UUID
	CreatedBy      uuid.UUID
	Notes          pgtype.Text
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	row := q.db.QueryRow(ctx, createStockMovement,
		arg.ItemType,
		arg.ItemID,
		arg.MovementType,
		arg.QuantityChange,
		arg.PreviousStock,
		arg.NewStock,
		arg.OrderID,
		arg.CreatedBy,
		arg.Notes,
	)
	var m StockMovement
	err := row.Scan(
		&m.ID,
		&m.ItemType,
		&m.ItemID,
		&m.MovementType,
		&m.QuantityChange,
		&m.PreviousStock,
		&m.NewStock,
		&m.OrderID,
		&m.CreatedBy,
		&m.Notes,
		&m.CreatedAt,
	)
	return m, err
}

// StockMovementRow is a movement joined with the name of the item it touched,
// for ledger listings.
type StockMovementRow struct {
	StockMovement
	ItemName string
}

const listStockMovements = `
SELECT m.id, m.item_type, m.item_id, m.movement_type, m.quantity_change, m.previous_stock, m.new_stock, m.order_id, m.created_by, m.notes, m.created_at,
       COALESCE(p.name, i.name, '') AS item_name
FROM stock_movements m
LEFT JOIN products p ON m.item_type = 'Product' AND p.id = m.item_id
LEFT JOIN ingredients i ON m.item_type = 'Ingredient' AND i.id = m.item_id
ORDER BY m.created_at DESC
LIMIT $1
`

func (q *Queries) ListStockMovements(ctx context.Context, limit int32) ([]StockMovementRow, error) {
	rows, err := q.db.Query(ctx, listStockMovements, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []StockMovementRow
	for rows.Next() {
		var m StockMovementRow
		if err := rows.Scan(
			&m.ID,
			&m.ItemType,
			&m.ItemID,
			&m.MovementType,
			&m.QuantityChange,
			&m.PreviousStock,
			&m.NewStock,
			&m.OrderID,
			&m.CreatedBy,
			&m.Notes,
			&m.CreatedAt,
			&m.ItemName,
		); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

const listStockMovementsByItem = `
SELECT id, item_type, item_id, movement_type, quantity_change, previous_stock, new_stock, order_id, created_by, notes, created_at
FROM stock_movements
WHERE item_type = $1 AND item_id = $2
ORDER BY created_at DESC
`

type ListStockMovementsByItemParams struct {
	ItemType ItemType
	ItemID   uuid.UUID
}

func (q *Queries) ListStockMovementsByItem(ctx context.Context, arg ListStockMovementsByItemParams) ([]StockMovement, error) {
	rows, err := q.db.Query(ctx, listStockMovementsByItem, arg.ItemType, arg.ItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(
			&m.ID,
			&m.ItemType,
			&m.ItemID,
			&m.MovementType,
			&m.QuantityChange,
			&m.PreviousStock,
			&m.NewStock,
			&m.OrderID,
			&m.CreatedBy,
			&m.Notes,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
