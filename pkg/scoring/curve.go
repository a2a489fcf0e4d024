package scoring

import (
	"math"

	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
)

// Transform maps a clamped distance ratio r in [0,1] to a normalized
// distance value in [0,1] under the given curve and sensitivity, with
// sensitivity clamped to [0.1, 10] before use. Every curve satisfies
// C(0) = 0, C(1) = 1, and is non-decreasing over [0,1].
func Transform(curve model.Curve, r, sensitivity float64) float64 {
	s := geo.Clamp(sensitivity, 0.1, 10)
	switch curve {
	case model.CurveLog:
		b := 1 + (math.E-1)*s
		return math.Log(1+r*(b-1)) / math.Log(b)
	case model.CurveExp:
		k := 3 * s
		return (1 - math.Exp(-k*r)) / (1 - math.Exp(-k))
	case model.CurvePower:
		n := 0.5 / s
		return math.Pow(r, n)
	case model.CurveLinear:
		fallthrough
	default:
		return r
	}
}
