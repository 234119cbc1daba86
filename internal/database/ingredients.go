package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const ingredientColumns = `id, name, unit, current_stock, reorder_level, cost_per_unit, created_at`

func scanIngredient(row rowScanner, i *Ingredient) error {
	return row.Scan(
		&i.ID,
		&i.Name,
		&i.Unit,
		&i.CurrentStock,
		&i.ReorderLevel,
		&i.CostPerUnit,
		&i.CreatedAt,
	)
}

const createIngredient = `
INSERT INTO ingredients (name, unit, current_stock, reorder_level, cost_per_unit)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + ingredientColumns

type CreateIngredientParams struct {
	Name         string
	Unit         string
	CurrentStock pgtype.Numeric
	ReorderLevel pgtype.Numeric
	CostPerUnit  pgtype.Numeric
}

func (q *Queries) CreateIngredient(ctx context.Context, arg CreateIngredientParams) (Ingredient, error) {
	row := q.db.QueryRow(ctx, createIngredient,
		arg.Name,
		arg.Unit,
		arg.CurrentStock,
		arg.ReorderLevel,
		arg.CostPerUnit,
	)
	var i Ingredient
	err := scanIngredient(row, &i)
	return i, err
}

const getIngredient = `
SELECT ` + ingredientColumns + `
FROM ingredients
WHERE id = $1
`

func (q *Queries) GetIngredient(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	row := q.db.QueryRow(ctx, getIngredient, id)
	var i Ingredient
	err := scanIngredient(row, &i)
	return i, err
}

const listIngredients = `
SELECT ` + ingredientColumns + `
FROM ingredients
ORDER BY name
`

func (q *Queries) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listIngredients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ingredients []Ingredient
	for rows.Next() {
		var i Ingredient
		if err := scanIngredient(rows, &i); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, i)
	}
	return ingredients, rows.Err()
}

const updateIngredient = `
UPDATE ingredients
SET name = $2,
    unit = $3,
    reorder_level = $4,
    cost_per_unit = $5
WHERE id = $1
RETURNING ` + ingredientColumns

type UpdateIngredientParams struct {
	ID           uuid.UUID
	Name         string
	Unit         string
	ReorderLevel pgtype.Numeric
	CostPerUnit  pgtype.Numeric
}

func (q *Queries) UpdateIngredient(ctx context.Context, arg UpdateIngredientParams) (Ingredient, error) {
	row := q.db.QueryRow(ctx, updateIngredient,
		arg.ID,
		arg.Name,
		arg.Unit,
		arg.ReorderLevel,
		arg.CostPerUnit,
	)
	var i Ingredient
	err := scanIngredient(row, &i)
	return i, err
}

const deleteIngredient = `
DELETE FROM ingredients
WHERE id = $1
`

func (q *Queries) DeleteIngredient(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteIngredient, id)
	return err
}

const adjustIngredientStock = `
UPDATE ingredients
SET current_stock = current_stock + $2
WHERE id = $1 AND current_stock + $2 >= 0
RETURNING current_stock
`

type AdjustIngredientStockParams struct {
	ID    uuid.UUID
	Delta pgtype.Numeric
}

// AdjustIngredientStock is the ingredient counterpart of AdjustProductStock:
// a guarded, atomic delta that returns pgx.ErrNoRows when the row is missing
// or the resulting stock would be negative.
func (q *Queries) AdjustIngredientStock(ctx context.Context, arg AdjustIngredientStockParams) (pgtype.Numeric, error) {
	var newStock pgtype.Numeric
	err := q.db.QueryRow(ctx, adjustIngredientStock, arg.ID, arg.Delta).Scan(&newStock)
	return newStock, err
}
