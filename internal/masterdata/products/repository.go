package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmapos/pharmapos/internal/platform/httpx"
)

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	query := `SELECT id, code, name, category_id, usage_route_id, compartment_id, reorder_level, created_at, updated_at FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.CategoryID != nil {
		argCount++
		cond := ` AND category_id = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.CategoryID)
	}
	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	ids := make([]int64, 0, filters.Limit)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.UsageRouteID, &p.CompartmentID, &p.ReorderLevel, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachUnits(ctx, products, ids); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *repository) attachUnits(ctx context.Context, products []Product, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, product_id, unit_id, conversion_factor, cost_price, selling_price, is_base_unit
		 FROM product_units WHERE product_id = ANY($1) ORDER BY is_base_unit DESC, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byProduct := make(map[int64][]ProductUnit, len(ids))
	for rows.Next() {
		var u ProductUnit
		if err := rows.Scan(&u.ID, &u.ProductID, &u.UnitID, &u.ConversionFactor, &u.CostPrice, &u.SellingPrice, &u.IsBaseUnit); err != nil {
			return err
		}
		byProduct[u.ProductID] = append(byProduct[u.ProductID], u)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range products {
		products[i].Units = byProduct[products[i].ID]
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.db.QueryRow(ctx,
		`SELECT id, code, name, category_id, usage_route_id, compartment_id, reorder_level, created_at, updated_at
		 FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.UsageRouteID, &p.CompartmentID, &p.ReorderLevel, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, httpx.ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	products := []Product{p}
	if err := r.attachUnits(ctx, products, []int64{p.ID}); err != nil {
		return Product{}, err
	}
	return products[0], nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	err = tx.QueryRow(ctx,
		`INSERT INTO products (code, name, category_id, usage_route_id, compartment_id, reorder_level, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		product.Code, product.Name, product.CategoryID, product.UsageRouteID, product.CompartmentID, product.ReorderLevel, now, now).
		Scan(&product.ID)
	if err != nil {
		return Product{}, mapWriteErr(err)
	}
	if err := insertUnits(ctx, tx, product.ID, product.Units); err != nil {
		return Product{}, mapWriteErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	for i := range product.Units {
		product.Units[i].ProductID = product.ID
	}
	return product, nil
}

// Update rewrites the product row and replaces its unit set wholesale.
// Existing unit IDs are not preserved.
func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE products SET code = $1, name = $2, category_id = $3, usage_route_id = $4, compartment_id = $5, reorder_level = $6, updated_at = $7
		 WHERE id = $8`,
		product.Code, product.Name, product.CategoryID, product.UsageRouteID, product.CompartmentID, product.ReorderLevel, time.Now(), id)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_units WHERE product_id = $1`, id); err != nil {
		return err
	}
	if err := insertUnits(ctx, tx, id, product.Units); err != nil {
		return mapWriteErr(err)
	}
	return tx.Commit(ctx)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func insertUnits(ctx context.Context, tx pgx.Tx, productID int64, units []ProductUnit) error {
	for _, u := range units {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_units (product_id, unit_id, conversion_factor, cost_price, selling_price, is_base_unit)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			productID, u.UnitID, u.ConversionFactor, u.CostPrice, u.SellingPrice, u.IsBaseUnit)
		if err != nil {
			return err
		}
	}
	return nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return httpx.ErrDuplicate
	}
	return err
}
