package products

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation flags rejected product input.
var ErrValidation = errors.New("products: validation failed")

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: product code is required", ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if p.CategoryID <= 0 {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if p.ReorderLevel < 0 {
		return fmt.Errorf("%w: reorder level cannot be negative", ErrValidation)
	}
	if len(p.Units) == 0 {
		return fmt.Errorf("%w: at least one product unit is required", ErrValidation)
	}
	return validateUnits(p.Units)
}

// validateUnits enforces exactly one base unit with conversion factor 1 and
// strictly positive factors everywhere else.
func validateUnits(units []ProductUnit) error {
	baseCount := 0
	seen := make(map[int64]struct{}, len(units))
	for _, u := range units {
		if u.UnitID <= 0 {
			return fmt.Errorf("%w: unit is required on every product unit", ErrValidation)
		}
		if _, dup := seen[u.UnitID]; dup {
			return fmt.Errorf("%w: duplicate unit %d", ErrValidation, u.UnitID)
		}
		seen[u.UnitID] = struct{}{}
		if u.CostPrice < 0 || u.SellingPrice < 0 {
			return fmt.Errorf("%w: prices cannot be negative", ErrValidation)
		}
		if u.IsBaseUnit {
			baseCount++
			if u.ConversionFactor != 1 {
				return fmt.Errorf("%w: base unit must have conversion factor 1", ErrValidation)
			}
			continue
		}
		if u.ConversionFactor <= 0 {
			return fmt.Errorf("%w: conversion factor must be > 0 for unit %d", ErrValidation, u.UnitID)
		}
	}
	if baseCount != 1 {
		return fmt.Errorf("%w: exactly one base unit is required, got %d", ErrValidation, baseCount)
	}
	return nil
}
