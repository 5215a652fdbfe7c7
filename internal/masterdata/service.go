package masterdata

import (
	"context"
	"fmt"
	"strings"
)

// service implements Service.
type service struct {
	repo Repository
}

// NewService creates a new master data service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return nil
}

func requireID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid id", ErrValidation)
	}
	return nil
}

// Category operations

func (s *service) ListCategories(ctx context.Context, filters ListFilters) ([]Category, int, error) {
	return s.repo.ListCategories(ctx, filters)
}

func (s *service) GetCategory(ctx context.Context, id int64) (Category, error) {
	if err := requireID(id); err != nil {
		return Category{}, err
	}
	return s.repo.GetCategory(ctx, id)
}

func (s *service) CreateCategory(ctx context.Context, category Category) (Category, error) {
	if err := requireName(category.Name); err != nil {
		return Category{}, err
	}
	return s.repo.CreateCategory(ctx, category)
}

func (s *service) UpdateCategory(ctx context.Context, id int64, category Category) error {
	if err := requireID(id); err != nil {
		return err
	}
	if err := requireName(category.Name); err != nil {
		return err
	}
	return s.repo.UpdateCategory(ctx, id, category)
}

func (s *service) DeleteCategory(ctx context.Context, id int64) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.repo.DeleteCategory(ctx, id)
}

// Unit operations

func (s *service) ListUnits(ctx context.Context, filters ListFilters) ([]Unit, int, error) {
	return s.repo.ListUnits(ctx, filters)
}

func (s *service) GetUnit(ctx context.Context, id int64) (Unit, error) {
	if err := requireID(id); err != nil {
		return Unit{}, err
	}
	return s.repo.GetUnit(ctx, id)
}

func (s *service) CreateUnit(ctx context.Context, unit Unit) (Unit, error) {
	if err := requireName(unit.Name); err != nil {
		return Unit{}, err
	}
	return s.repo.CreateUnit(ctx, unit)
}

func (s *service) UpdateUnit(ctx context.Context, id int64, unit Unit) error {
	if err := requireID(id); err != nil {
		return err
	}
	if err := requireName(unit.Name); err != nil {
		return err
	}
	return s.repo.UpdateUnit(ctx, id, unit)
}

func (s *service) DeleteUnit(ctx context.Context, id int64) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.repo.DeleteUnit(ctx, id)
}

// Supplier operations

func (s *service) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	return s.repo.ListSuppliers(ctx, filters)
}

func (s *service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	if err := requireID(id); err != nil {
		return Supplier{}, err
	}
	return s.repo.GetSupplier(ctx, id)
}

func (s *service) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := requireName(supplier.Name); err != nil {
		return Supplier{}, err
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *service) UpdateSupplier(ctx context.Context, id int64, supplier Supplier) error {
	if err := requireID(id); err != nil {
		return err
	}
	if err := requireName(supplier.Name); err != nil {
		return err
	}
	return s.repo.UpdateSupplier(ctx, id, supplier)
}

func (s *service) DeleteSupplier(ctx context.Context, id int64) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.repo.DeleteSupplier(ctx, id)
}

// Compartment operations

func (s *service) ListCompartments(ctx context.Context, filters ListFilters) ([]Compartment, int, error) {
	return s.repo.ListCompartments(ctx, filters)
}

func (s *service) GetCompartment(ctx context.Context, id int64) (Compartment, error) {
	if err := requireID(id); err != nil {
		return Compartment{}, err
	}
	return s.repo.GetCompartment(ctx, id)
}

func (s *service) CreateCompartment(ctx context.Context, compartment Compartment) (Compartment, error) {
	if err := requireName(compartment.Name); err != nil {
		return Compartment{}, err
	}
	return s.repo.CreateCompartment(ctx, compartment)
}

func (s *service) UpdateCompartment(ctx context.Context, id int64, compartment Compartment) error {
	if err := requireID(id); err != nil {
		return err
	}
	if err := requireName(compartment.Name); err != nil {
		return err
	}
	return s.repo.UpdateCompartment(ctx, id, compartment)
}

func (s *service) DeleteCompartment(ctx context.Context, id int64) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.repo.DeleteCompartment(ctx, id)
}

// Usage route operations

func (s *service) ListUsageRoutes(ctx context.Context, filters ListFilters) ([]UsageRoute, int, error) {
	return s.repo.ListUsageRoutes(ctx, filters)
}

func (s *service) GetUsageRoute(ctx context.Context, id int64) (UsageRoute, error) {
	if err := requireID(id); err != nil {
		return UsageRoute{}, err
	}
	return s.repo.GetUsageRoute(ctx, id)
}

func (s *service) CreateUsageRoute(ctx context.Context, route UsageRoute) (UsageRoute, error) {
	if err := requireName(route.Name); err != nil {
		return UsageRoute{}, err
	}
	return s.repo.CreateUsageRoute(ctx, route)
}

func (s *service) UpdateUsageRoute(ctx context.Context, id int64, route UsageRoute) error {
	if err := requireID(id); err != nil {
		return err
	}
	if err := requireName(route.Name); err != nil {
		return err
	}
	return s.repo.UpdateUsageRoute(ctx, id, route)
}

func (s *service) DeleteUsageRoute(ctx context.Context, id int64) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.repo.DeleteUsageRoute(ctx, id)
}
