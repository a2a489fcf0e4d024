package core

import (
	"fmt"
	"math"

	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
)

// ValidateCoords validates latitude and longitude coordinates.
func ValidateCoords(p geo.LatLng) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return NewError(KindInvalidInput, "coordinates must be valid numbers")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return NewError(KindInvalidInput, "latitude must be between -90 and 90 degrees")
	}
	if p.Lng < -180 || p.Lng > 180 {
		return NewError(KindInvalidInput, "longitude must be between -180 and 180 degrees")
	}
	return nil
}

// ValidateBounds validates a viewport's bounding box.
func ValidateBounds(b geo.Bounds) error {
	if err := ValidateCoords(geo.LatLng{Lat: b.North, Lng: b.East}); err != nil {
		return err
	}
	if err := ValidateCoords(geo.LatLng{Lat: b.South, Lng: b.West}); err != nil {
		return err
	}
	if b.North <= b.South {
		return NewError(KindInvalidInput, "bounds north must be greater than south")
	}
	if b.East <= b.West {
		return NewError(KindInvalidInput, "bounds east must be greater than west")
	}
	return nil
}

// ValidateFactor validates one scoring factor.
func ValidateFactor(f model.Factor) error {
	if f.ID == "" {
		return NewError(KindInvalidInput, "factor id is required")
	}
	if f.Weight < -100 || f.Weight > 100 {
		return NewError(KindInvalidInput, fmt.Sprintf("factor %s: weight must be between -100 and 100", f.ID))
	}
	if f.MaxDistance <= 0 {
		return NewError(KindInvalidInput, fmt.Sprintf("factor %s: maxDistance must be greater than 0", f.ID))
	}
	return nil
}

// ValidateScoringParams validates the scoring parameters for a tile build.
func ValidateScoringParams(p model.ScoringParams) error {
	if !p.DistanceCurve.Valid() {
		return NewError(KindInvalidInput, fmt.Sprintf("unknown distanceCurve %q", p.DistanceCurve))
	}
	if p.Sensitivity < 0.1 || p.Sensitivity > 10 {
		return NewError(KindInvalidInput, "sensitivity must be between 0.1 and 10")
	}
	return nil
}

// ValidateFactors validates a full factor set.
func ValidateFactors(factors []model.Factor) error {
	if len(factors) == 0 {
		return NewError(KindInvalidInput, "at least one factor is required")
	}
	seen := make(map[string]bool, len(factors))
	for _, f := range factors {
		if err := ValidateFactor(f); err != nil {
			return err
		}
		if seen[f.ID] {
			return NewError(KindInvalidInput, fmt.Sprintf("duplicate factor id %q", f.ID))
		}
		seen[f.ID] = true
	}
	return nil
}

// ValidateNumericRange checks if a number is within acceptable bounds.
func ValidateNumericRange(n, min, max float64, label string) error {
	if n < min || n > max {
		return NewError(KindInvalidInput, fmt.Sprintf("%s must be between %g and %g", label, min, max))
	}
	return nil
}
