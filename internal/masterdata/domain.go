package masterdata

import (
	"context"
	"errors"
	"time"
)

// ErrValidation flags rejected input on master data writes.
var ErrValidation = errors.New("masterdata: validation failed")

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}

// Category groups products (e.g. antibiotics, vitamins).
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Unit is a unit of measure (tablet, strip, box).
type Unit struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Supplier represents a purchase source.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Compartment is a physical storage location (shelf, fridge, cabinet).
type Compartment struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UsageRoute describes how a product is administered (oral, topical).
type UsageRoute struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository interface for master data operations.
type Repository interface {
	ListCategories(ctx context.Context, filters ListFilters) ([]Category, int, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateCategory(ctx context.Context, category Category) (Category, error)
	UpdateCategory(ctx context.Context, id int64, category Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListUnits(ctx context.Context, filters ListFilters) ([]Unit, int, error)
	GetUnit(ctx context.Context, id int64) (Unit, error)
	CreateUnit(ctx context.Context, unit Unit) (Unit, error)
	UpdateUnit(ctx context.Context, id int64, unit Unit) error
	DeleteUnit(ctx context.Context, id int64) error

	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, supplier Supplier) error
	DeleteSupplier(ctx context.Context, id int64) error

	ListCompartments(ctx context.Context, filters ListFilters) ([]Compartment, int, error)
	GetCompartment(ctx context.Context, id int64) (Compartment, error)
	CreateCompartment(ctx context.Context, compartment Compartment) (Compartment, error)
	UpdateCompartment(ctx context.Context, id int64, compartment Compartment) error
	DeleteCompartment(ctx context.Context, id int64) error

	ListUsageRoutes(ctx context.Context, filters ListFilters) ([]UsageRoute, int, error)
	GetUsageRoute(ctx context.Context, id int64) (UsageRoute, error)
	CreateUsageRoute(ctx context.Context, route UsageRoute) (UsageRoute, error)
	UpdateUsageRoute(ctx context.Context, id int64, route UsageRoute) error
	DeleteUsageRoute(ctx context.Context, id int64) error
}

// Service interface for master data business logic.
type Service interface {
	ListCategories(ctx context.Context, filters ListFilters) ([]Category, int, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	CreateCategory(ctx context.Context, category Category) (Category, error)
	UpdateCategory(ctx context.Context, id int64, category Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListUnits(ctx context.Context, filters ListFilters) ([]Unit, int, error)
	GetUnit(ctx context.Context, id int64) (Unit, error)
	CreateUnit(ctx context.Context, unit Unit) (Unit, error)
	UpdateUnit(ctx context.Context, id int64, unit Unit) error
	DeleteUnit(ctx context.Context, id int64) error

	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, supplier Supplier) error
	DeleteSupplier(ctx context.Context, id int64) error

	ListCompartments(ctx context.Context, filters ListFilters) ([]Compartment, int, error)
	GetCompartment(ctx context.Context, id int64) (Compartment, error)
	CreateCompartment(ctx context.Context, compartment Compartment) (Compartment, error)
	UpdateCompartment(ctx context.Context, id int64, compartment Compartment) error
	DeleteCompartment(ctx context.Context, id int64) error

	ListUsageRoutes(ctx context.Context, filters ListFilters) ([]UsageRoute, int, error)
	GetUsageRoute(ctx context.Context, id int64) (UsageRoute, error)
	CreateUsageRoute(ctx context.Context, route UsageRoute) (UsageRoute, error)
	UpdateUsageRoute(ctx context.Context, id int64, route UsageRoute) error
	DeleteUsageRoute(ctx context.Context, id int64) error
}
