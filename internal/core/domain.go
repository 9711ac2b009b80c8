package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryTwoWheeler   = "2W"
	CategoryThreeWheeler = "3W"
	CategoryFourWheeler  = "4W"
)

type (
	// Registration is a single vehicle-registration observation.
	// Immutable once loaded.
	Registration struct {
		Date         time.Time
		Category     string
		Manufacturer string
		Count        int64
	}

	// Dataset is an ordered collection of registrations.
	Dataset []Registration
)

var (
	ErrZeroDate          = errors.New("date cannot be zero")
	ErrNegativeCount     = errors.New("count cannot be negative")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyManufacturer = errors.New("empty manufacturer")
)

func (r Registration) Validate() error {
	if r.Date.IsZero() {
		return ErrZeroDate
	}
	if r.Count < 0 {
		return ErrNegativeCount
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(r.Manufacturer) == "" {
		return ErrEmptyManufacturer
	}
	return nil
}

// Dimension selects which column registrations are grouped by.
type Dimension string

const (
	DimensionCategory     Dimension = "category"
	DimensionManufacturer Dimension = "manufacturer"
)

var ErrInvalidDimension = errors.New("invalid dimension")

func ParseDimension(s string) (Dimension, error) {
	switch Dimension(strings.ToLower(strings.TrimSpace(s))) {
	case DimensionCategory:
		return DimensionCategory, nil
	case DimensionManufacturer:
		return DimensionManufacturer, nil
	}
	return "", ErrInvalidDimension
}

// Group returns the registration's value for the given dimension.
func (r Registration) Group(d Dimension) string {
	if d == DimensionManufacturer {
		return r.Manufacturer
	}
	return r.Category
}
