package core

import (
	"testing"

	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
)

func TestValidateCoordsRejectsOutOfRange(t *testing.T) {
	if err := ValidateCoords(geo.LatLng{Lat: 95, Lng: 0}); err == nil {
		t.Fatal("expected error for latitude out of range")
	}
	if err := ValidateCoords(geo.LatLng{Lat: 0, Lng: 200}); err == nil {
		t.Fatal("expected error for longitude out of range")
	}
	if err := ValidateCoords(geo.LatLng{Lat: 52, Lng: 21}); err != nil {
		t.Fatalf("expected valid coords, got %v", err)
	}
}

func TestValidateBoundsRejectsInverted(t *testing.T) {
	b := geo.Bounds{North: 10, South: 20, East: 10, West: 0}
	if err := ValidateBounds(b); err == nil {
		t.Fatal("expected error for inverted bounds")
	}
}

func TestValidateFactorRejectsOutOfRangeWeight(t *testing.T) {
	f := model.Factor{ID: "x", Weight: 150, MaxDistance: 100}
	if err := ValidateFactor(f); err == nil {
		t.Fatal("expected error for out-of-range weight")
	}
}

func TestValidateFactorsRejectsDuplicates(t *testing.T) {
	factors := []model.Factor{
		{ID: "x", Weight: 10, MaxDistance: 100},
		{ID: "x", Weight: 20, MaxDistance: 100},
	}
	if err := ValidateFactors(factors); err == nil {
		t.Fatal("expected error for duplicate factor ids")
	}
}

func TestValidateScoringParamsRejectsUnknownCurve(t *testing.T) {
	params := model.ScoringParams{DistanceCurve: "quadratic", Sensitivity: 1}
	if err := ValidateScoringParams(params); err == nil {
		t.Fatal("expected error for unknown curve")
	}
}

func TestErrorKindHTTPStatus(t *testing.T) {
	cases := map[ErrorKind]int{
		KindInvalidInput:     400,
		KindTooLarge:         413,
		KindStoreUnavailable: 502,
		KindDeadline:         504,
		KindInternal:         500,
		KindUnauthorized:     401,
	}
	for k, want := range cases {
		if got := k.HTTPStatus(); got != want {
			t.Errorf("%s: got status %d, want %d", k, got, want)
		}
	}
}

func TestTooLargeErrorDetails(t *testing.T) {
	err := TooLargeError(40, 36)
	if err.Details["observed"] != 40 || err.Details["max"] != 36 {
		t.Fatalf("unexpected details: %+v", err.Details)
	}
}
