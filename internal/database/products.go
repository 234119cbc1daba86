package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, description, price, cost_price, stock_quantity, min_stock_level, image_url, availability_status, created_at`

func scanProduct(row rowScanner, p *Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.CostPrice,
		&p.StockQuantity,
		&p.MinStockLevel,
		&p.ImageURL,
		&p.AvailabilityStatus,
		&p.CreatedAt,
	)
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const createProduct = `
INSERT INTO products (name, description, price, cost_price, stock_quantity, min_stock_level, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + productColumns

type CreateProductParams struct {
	Name          string
	Description   pgtype.Text
	Price         pgtype.Numeric
	CostPrice     pgtype.Numeric
	StockQuantity int32
	MinStockLevel int32
	ImageURL      pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.CostPrice,
		arg.StockQuantity,
		arg.MinStockLevel,
		arg.ImageURL,
	)
	var p Product
	err := scanProduct(row, &p)
	return p, err
}

const getProduct = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, id)
	var p Product
	err := scanProduct(row, &p)
	return p, err
}

const listProducts = `
SELECT ` + productColumns + `
FROM products
ORDER BY name
`

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const listAvailableProducts = `
SELECT ` + productColumns + `
FROM products
WHERE availability_status = 'Active' AND stock_quantity > 0
ORDER BY name
`

func (q *Queries) ListAvailableProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listAvailableProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const updateProduct = `
UPDATE products
SET name = $2,
    description = $3,
    price = $4,
    cost_price = $5,
    min_stock_level = $6,
    image_url = $7
WHERE id = $1
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID            uuid.UUID
	Name          string
	Description   pgtype.Text
	Price         pgtype.Numeric
	CostPrice     pgtype.Numeric
	MinStockLevel int32
	ImageURL      pgtype.Text
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.CostPrice,
		arg.MinStockLevel,
		arg.ImageURL,
	)
	var p Product
	err := scanProduct(row, &p)
	return p, err
}

const deleteProduct = `
DELETE FROM products
WHERE id = $1
`

func (q *Queries) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteProduct, id)
	return err
}

const discontinueProduct = `
UPDATE products
SET availability_status = 'Discontinued', stock_quantity = 0
WHERE id = $1
RETURNING ` + productColumns

// DiscontinueProduct retires a product: Discontinued, with its on-hand stock
// zeroed in the same statement. Callers write the matching ledger movement.
func (q *Queries) DiscontinueProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, discontinueProduct, id)
	var p Product
	err := scanProduct(row, &p)
	return p, err
}

const countOrderItemsByProduct = `
SELECT count(*) FROM order_items WHERE product_id = $1
`

func (q *Queries) CountOrderItemsByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countOrderItemsByProduct, productID).Scan(&n)
	return n, err
}

const adjustProductStock = `
UPDATE products
SET stock_quantity = stock_quantity + $2
WHERE id = $1 AND stock_quantity + $2 >= 0
RETURNING stock_quantity
`

type AdjustProductStockParams struct {
	ID    uuid.UUID
	Delta int32
}

// AdjustProductStock atomically applies a signed delta to a product's stock.
// The WHERE clause rejects any update that would take the stock negative, so
// it returns pgx.ErrNoRows either when the product does not exist or when the
// stock is insufficient; callers re-read the row to tell the two apart.
func (q *Queries) AdjustProductStock(ctx context.Context, arg AdjustProductStockParams) (int32, error) {
	var newStock int32
	err := q.db.QueryRow(ctx, adjustProductStock, arg.ID, arg.Delta).Scan(&newStock)
	return newStock, err
}

const syncProductAvailability = `
UPDATE products
SET availability_status = CASE WHEN stock_quantity = 0 THEN 'Out of Stock' ELSE 'Active' END
WHERE id = $1 AND availability_status <> 'Discontinued'
`

// SyncProductAvailability flips a product between Active and Out of Stock to
// match its stock level. Discontinued products are never touched.
func (q *Queries) SyncProductAvailability(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, syncProductAvailability, id)
	return err
}
