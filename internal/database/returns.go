package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const returnColumns = `id, order_id, product_id, quantity, return_reason, action_taken, refund_amount, processed_by, notes, processed_at`

func scanReturn(row rowScanner, r *Return) error {
	return row.Scan(
		&r.ID,
		&r.OrderID,
		&r.ProductID,
		&r.Quantity,
		&r.ReturnReason,
		&r.ActionTaken,
		&r.RefundAmount,
		&r.ProcessedBy,
		&r.Notes,
		&r.ProcessedAt,
	)
}

const createReturn = `
INSERT INTO returns (order_id, product_id, quantity, return_reason, action_taken, refund_amount, processed_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + returnColumns

type CreateReturnParams struct {
	OrderID      uuid.UUID
	ProductID    uuid.UUID
	Quantity     int32
	ReturnReason string
	ActionTaken  ReturnAction
	RefundAmount pgtype.Numeric
	ProcessedBy  uuid.UUID
	Notes        pgtype.Text
}

func (q *Queries) CreateReturn(ctx context.Context, arg CreateReturnParams) (Return, error) {
	row := q.db.QueryRow(ctx, createReturn,
		arg.OrderID,
		arg.ProductID,
		arg.Quantity,
		arg.ReturnReason,
		arg.ActionTaken,
		arg.RefundAmount,
		arg.ProcessedBy,
		arg.Notes,
	)
	var r Return
	err := scanReturn(row, &r)
	return r, err
}

const getReturn = `
SELECT ` + returnColumns + `
FROM returns
WHERE id = $1
`

func (q *Queries) GetReturn(ctx context.Context, id uuid.UUID) (Return, error) {
	row := q.db.QueryRow(ctx, getReturn, id)
	var r Return
	err := scanReturn(row, &r)
	return r, err
}

const deleteReturn = `
DELETE FROM returns
WHERE id = $1
`

// DeleteReturn hard-deletes a return record. It has no downstream effects:
// stock and order totals are untouched.
func (q *Queries) DeleteReturn(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteReturn, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReturnRow is a return joined with order number and product name for
// listings.
type ReturnRow struct {
	Return
	OrderNumber string
	ProductName string
}

const listReturns = `
SELECT r.id, r.order_id, r.product_id, r.quantity, r.return_reason, r.action_taken, r.refund_amount, r.processed_by, r.notes, r.processed_at,
       o.order_number, p.name
FROM returns r
JOIN orders o ON o.id = r.order_id
JOIN products p ON p.id = r.product_id
ORDER BY r.processed_at DESC
`

func (q *Queries) ListReturns(ctx context.Context) ([]ReturnRow, error) {
	rows, err := q.db.Query(ctx, listReturns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var returns []ReturnRow
	for rows.Next() {
		var r ReturnRow
		if err := rows.Scan(
			&r.ID,
			&r.OrderID,
			&r.ProductID,
			&r.Quantity,
			&r.ReturnReason,
			&r.ActionTaken,
			&r.RefundAmount,
			&r.ProcessedBy,
			&r.Notes,
			&r.ProcessedAt,
			&r.OrderNumber,
			&r.ProductName,
		); err != nil {
			return nil, err
		}
		returns = append(returns, r)
	}
	return returns, rows.Err()
}
