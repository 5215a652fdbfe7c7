package products

import (
	"time"
)

// Product represents a sellable pharmacy item. A product owns one or more
// units of measure; exactly one of them is the base unit.
type Product struct {
	ID            int64         `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	CategoryID    int64         `json:"category_id"`
	UsageRouteID  *int64        `json:"usage_route_id"`
	CompartmentID *int64        `json:"compartment_id"`
	ReorderLevel  float64       `json:"reorder_level"`
	Units         []ProductUnit `json:"units"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ProductUnit prices a product in one unit of measure. ConversionFactor
// states how many base units one of this unit holds; the base unit itself
// has factor 1.
type ProductUnit struct {
	ID               int64   `json:"id"`
	ProductID        int64   `json:"product_id"`
	UnitID           int64   `json:"unit_id"`
	ConversionFactor float64 `json:"conversion_factor"`
	CostPrice        float64 `json:"cost_price"`
	SellingPrice     float64 `json:"selling_price"`
	IsBaseUnit       bool    `json:"is_base_unit"`
}

// ListFilters represents product list page filters.
type ListFilters struct {
	Page       int
	Limit      int
	Search     string
	CategoryID *int64
}
