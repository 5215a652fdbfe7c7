package masterdata

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmapos/pharmapos/internal/platform/httpx"
)

// repo implements Repository over PostgreSQL.
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

// simpleList runs a paginated name-searchable list over a single table and
// hands each row to scan. Every master data entity shares this page shape.
func (r *repo) simpleList(ctx context.Context, table, columns string, filters ListFilters, scan func(pgx.Rows) error) (int, error) {
	where := ``
	args := []interface{}{}
	if filters.Search != "" {
		where = ` WHERE name ILIKE $1`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+where, args...).Scan(&total); err != nil {
		return 0, err
	}

	query := `SELECT ` + columns + ` FROM ` + table + where + ` ORDER BY name`
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1)
		args = append(args, filters.Limit)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		query += ` OFFSET $` + strconv.Itoa(len(args)+1)
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return 0, err
		}
	}
	return total, rows.Err()
}

func mapRowErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.ErrNotFound
	}
	return err
}

// Category operations

func (r *repo) ListCategories(ctx context.Context, filters ListFilters) ([]Category, int, error) {
	var categories []Category
	total, err := r.simpleList(ctx, "categories", "id, name, description, created_at, updated_at", filters, func(rows pgx.Rows) error {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return err
		}
		categories = append(categories, c)
		return nil
	})
	return categories, total, err
}

func (r *repo) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.db.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, mapRowErr(err)
}

func (r *repo) CreateCategory(ctx context.Context, category Category) (Category, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (name, description, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		category.Name, category.Description, now, now).Scan(&category.ID)
	if err != nil {
		return Category{}, err
	}
	category.CreatedAt = now
	category.UpdatedAt = now
	return category, nil
}

func (r *repo) UpdateCategory(ctx context.Context, id int64, category Category) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE categories SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		category.Name, category.Description, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Unit operations

func (r *repo) ListUnits(ctx context.Context, filters ListFilters) ([]Unit, int, error) {
	var units []Unit
	total, err := r.simpleList(ctx, "units", "id, name, created_at, updated_at", filters, func(rows pgx.Rows) error {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}
		units = append(units, u)
		return nil
	})
	return units, total, err
}

func (r *repo) GetUnit(ctx context.Context, id int64) (Unit, error) {
	var u Unit
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM units WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, mapRowErr(err)
}

func (r *repo) CreateUnit(ctx context.Context, unit Unit) (Unit, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO units (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		unit.Name, now, now).Scan(&unit.ID)
	if err != nil {
		return Unit{}, err
	}
	unit.CreatedAt = now
	unit.UpdatedAt = now
	return unit, nil
}

func (r *repo) UpdateUnit(ctx context.Context, id int64, unit Unit) error {
	tag, err := r.db.Exec(ctx, `UPDATE units SET name = $1, updated_at = $2 WHERE id = $3`, unit.Name, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteUnit(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Supplier operations

func (r *repo) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	var suppliers []Supplier
	total, err := r.simpleList(ctx, "suppliers", "id, name, phone, email, address, created_at, updated_at", filters, func(rows pgx.Rows) error {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.Address, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return err
		}
		suppliers = append(suppliers, s)
		return nil
	})
	return suppliers, total, err
}

func (r *repo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT id, name, phone, email, address, created_at, updated_at FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	return s, mapRowErr(err)
}

func (r *repo) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO suppliers (name, phone, email, address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		supplier.Name, supplier.Phone, supplier.Email, supplier.Address, now, now).Scan(&supplier.ID)
	if err != nil {
		return Supplier{}, err
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repo) UpdateSupplier(ctx context.Context, id int64, supplier Supplier) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE suppliers SET name = $1, phone = $2, email = $3, address = $4, updated_at = $5 WHERE id = $6`,
		supplier.Name, supplier.Phone, supplier.Email, supplier.Address, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteSupplier(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Compartment operations

func (r *repo) ListCompartments(ctx context.Context, filters ListFilters) ([]Compartment, int, error) {
	var compartments []Compartment
	total, err := r.simpleList(ctx, "compartments", "id, name, description, created_at, updated_at", filters, func(rows pgx.Rows) error {
		var c Compartment
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return err
		}
		compartments = append(compartments, c)
		return nil
	})
	return compartments, total, err
}

func (r *repo) GetCompartment(ctx context.Context, id int64) (Compartment, error) {
	var c Compartment
	err := r.db.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM compartments WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, mapRowErr(err)
}

func (r *repo) CreateCompartment(ctx context.Context, compartment Compartment) (Compartment, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO compartments (name, description, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		compartment.Name, compartment.Description, now, now).Scan(&compartment.ID)
	if err != nil {
		return Compartment{}, err
	}
	compartment.CreatedAt = now
	compartment.UpdatedAt = now
	return compartment, nil
}

func (r *repo) UpdateCompartment(ctx context.Context, id int64, compartment Compartment) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE compartments SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		compartment.Name, compartment.Description, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteCompartment(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM compartments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// Usage route operations

func (r *repo) ListUsageRoutes(ctx context.Context, filters ListFilters) ([]UsageRoute, int, error) {
	var routes []UsageRoute
	total, err := r.simpleList(ctx, "usage_routes", "id, name, created_at, updated_at", filters, func(rows pgx.Rows) error {
		var u UsageRoute
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}
		routes = append(routes, u)
		return nil
	})
	return routes, total, err
}

func (r *repo) GetUsageRoute(ctx context.Context, id int64) (UsageRoute, error) {
	var u UsageRoute
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM usage_routes WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, mapRowErr(err)
}

func (r *repo) CreateUsageRoute(ctx context.Context, route UsageRoute) (UsageRoute, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO usage_routes (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		route.Name, now, now).Scan(&route.ID)
	if err != nil {
		return UsageRoute{}, err
	}
	route.CreatedAt = now
	route.UpdatedAt = now
	return route, nil
}

func (r *repo) UpdateUsageRoute(ctx context.Context, id int64, route UsageRoute) error {
	tag, err := r.db.Exec(ctx, `UPDATE usage_routes SET name = $1, updated_at = $2 WHERE id = $3`, route.Name, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteUsageRoute(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM usage_routes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}
