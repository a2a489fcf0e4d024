// Package scoring implements the weighted location-quality kernel: per
// factor distance-to-value curves with a density bonus for positive
// factors, aggregated into a single score via a weighted power mean. The
// kernel never returns an error — callers validate factor and parameter
// shapes before any point reaches it, per the separation kept between
// pkg/core's input validation and domain evaluation elsewhere in this
// codebase.
package scoring

import (
	"math"

	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
	"github.com/osiedlownik/geoscore/pkg/spatialindex"
)

// densityBonusMax is the limit the density bonus of a positive factor
// approaches as countWithinRadius grows; the bonus itself stays below it.
const densityBonusMax = 0.15

// valueFloor keeps the weighted power mean's exponentiation away from an
// exact zero base: math.Pow(0, p) is +Inf for a negative per-factor
// exponent, which lambda < -1 can produce. Removing this floor
// reintroduces that blow-up; it is load-bearing, not decorative.
const valueFloor = 1e-10

// FactorValue computes one factor's contribution at point p, given the
// spatial index built for that factor (nil or empty means "no POIs found
// for this factor in the viewport").
func FactorValue(p geo.LatLng, f model.Factor, idx *spatialindex.Index, params model.ScoringParams) model.FactorBreakdown {
	exponent := effectiveExponent(f.Weight, params.Lambda)

	if idx == nil || idx.Len() == 0 {
		return absentBreakdown(f, exponent)
	}

	d, found := idx.NearestDistance(p, f.MaxDistance)
	if !found {
		return absentBreakdown(f, exponent)
	}

	r := geo.Clamp(d, 0, f.MaxDistance) / f.MaxDistance
	normalized := Transform(params.DistanceCurve, r, params.Sensitivity)

	var value float64
	if f.Weight < 0 {
		value = 1 - normalized
	} else {
		value = applyDensityBonus(normalized, p, f, idx)
	}

	return model.FactorBreakdown{
		FactorID:          f.ID,
		Weight:            f.Weight,
		Distance:          d,
		MaxDistance:       f.MaxDistance,
		Score:             value,
		IsNegative:        f.Weight < 0,
		Contribution:      contribution(f.Weight, value, exponent),
		EffectiveExponent: exponent,
		NoPOIs:            false,
		NearbyCount:       idx.CountWithinRadius(p, 0.5*f.MaxDistance),
	}
}

func absentBreakdown(f model.Factor, exponent float64) model.FactorBreakdown {
	value := 1.0
	if f.Weight < 0 {
		value = 0
	}
	return model.FactorBreakdown{
		FactorID:          f.ID,
		Weight:            f.Weight,
		MaxDistance:       f.MaxDistance,
		Score:             value,
		IsNegative:        f.Weight < 0,
		Contribution:      contribution(f.Weight, value, exponent),
		EffectiveExponent: exponent,
		NoPOIs:            true,
	}
}

// effectiveExponent is the per-factor power-mean exponent p = 1 + λ·(w/100)²
// using the factor's absolute weight, per the aggregation rule in Aggregate.
func effectiveExponent(weight, lambda float64) float64 {
	w := math.Abs(weight) / 100
	return 1 + lambda*w*w
}

// contribution is w·v^p using the factor's absolute weight, matching the
// per-factor term Aggregate accumulates into powerSum.
func contribution(weight, value, exponent float64) float64 {
	w := math.Abs(weight)
	return w * math.Pow(math.Max(value, valueFloor), exponent)
}

// applyDensityBonus rewards clusters of a positive factor (e.g. several
// grocery stores nearby beats exactly one), subtracting up to
// densityBonusMax from the value and flooring at 0.
func applyDensityBonus(value float64, p geo.LatLng, f model.Factor, idx *spatialindex.Index) float64 {
	radius := 0.5 * f.MaxDistance
	count := idx.CountWithinRadius(p, radius)
	if count <= 1 {
		return value
	}
	n := float64(count-1) / 3.0
	bonus := densityBonusMax * (1 - 1/(n+1))
	value -= bonus
	if value < 0 {
		value = 0
	}
	return value
}

// Aggregate combines per-factor breakdowns into a single score K in [0,1]
// via a weighted power mean. Factors with Weight == 0 (including disabled
// factors, which callers exclude from breakdowns entirely) have no effect
// on K because they contribute 0 to both powerSum and totalWeight.
//
// Iteration is in breakdowns' slice order so that floating point
// accumulation is deterministic across repeated evaluations of the same
// point.
func Aggregate(breakdowns []model.FactorBreakdown, factorWeight map[string]float64, lambda float64) float64 {
	var powerSum, totalWeight, weightedExpSum float64

	for _, b := range breakdowns {
		w := math.Abs(factorWeight[b.FactorID])
		if w == 0 {
			continue
		}
		p := 1 + lambda*(w/100)*(w/100)
		v := math.Max(b.Score, valueFloor)
		powerSum += w * math.Pow(v, p)
		totalWeight += w
		weightedExpSum += w * p
	}

	if totalWeight == 0 {
		return 0.5
	}

	pBar := weightedExpSum / totalWeight
	k := math.Pow(powerSum/totalWeight, 1/pBar)
	return geo.Clamp(k, 0, 1)
}
