package core

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func vecClose(a, b Vec3, tol float64) bool {
	return a.DistanceTo(b) <= tol
}

func TestLatLonToUnitVector_ReferenceAxis(t *testing.T) {
	// theta = 180 degrees at lon 0, so x = -sin(90)cos(180) = +1.
	got := LatLonToUnitVector(0, 0)
	if !vecClose(got, Vec3{X: 1}, 1e-6) {
		t.Fatalf("LatLonToUnitVector(0,0) = %+v, want (1,0,0)", got)
	}
	if got := LatLonToUnitVector(0, 180); !vecClose(got, ApproachStart, 1e-9) {
		t.Fatalf("LatLonToUnitVector(0,180) = %+v, want approach start %+v", got, ApproachStart)
	}
}

func TestLatLonToUnitVector_Poles(t *testing.T) {
	if got := LatLonToUnitVector(90, 0); !vecClose(got, Vec3{Y: 1}, 1e-9) {
		t.Fatalf("north pole = %+v, want (0,1,0)", got)
	}
	if got := LatLonToUnitVector(-90, 45); !vecClose(got, Vec3{Y: -1}, 1e-9) {
		t.Fatalf("south pole = %+v, want (0,-1,0)", got)
	}
	// lon=90 lies on -Z with this convention.
	if got := LatLonToUnitVector(0, 90); !vecClose(got, Vec3{Z: -1}, 1e-9) {
		t.Fatalf("lon 90 = %+v, want (0,0,-1)", got)
	}
}

func TestLatLonToUnitVector_UnitMagnitude(t *testing.T) {
	for lat := -90.0; lat <= 90; lat += 7.5 {
		for lon := -180.0; lon <= 180; lon += 11.25 {
			n := LatLonToUnitVector(lat, lon).Norm()
			if !scalar.EqualWithinAbs(n, 1, 1e-9) {
				t.Fatalf("|LatLonToUnitVector(%v,%v)| = %v", lat, lon, n)
			}
		}
	}
}

func TestUnitVectorToLatLonRoundTrip(t *testing.T) {
	points := [][2]float64{{0, 0}, {45, 90}, {-33.9, 18.4}, {51.5, -0.12}, {10, 179.5}, {-60, -179}}
	for _, p := range points {
		lat, lon := UnitVectorToLatLon(LatLonToUnitVector(p[0], p[1]))
		if !scalar.EqualWithinAbs(lat, p[0], 1e-9) || !scalar.EqualWithinAbs(lon, p[1], 1e-9) {
			t.Fatalf("round trip %v -> (%v, %v)", p, lat, lon)
		}
	}
}

func TestSlerpEndpoints(t *testing.T) {
	a := LatLonToUnitVector(10, 20)
	b := LatLonToUnitVector(-35, 140)

	if got := Slerp(a, b, 0); !vecClose(got, a, 1e-9) {
		t.Fatalf("Slerp(a,b,0) = %+v, want %+v", got, a)
	}
	if got := Slerp(a, b, 1); !vecClose(got, b, 1e-9) {
		t.Fatalf("Slerp(a,b,1) = %+v, want %+v", got, b)
	}
	for ti := 0.0; ti <= 1; ti += 0.05 {
		if n := Slerp(a, b, ti).Norm(); !scalar.EqualWithinAbs(n, 1, 1e-9) {
			t.Fatalf("|Slerp(a,b,%v)| = %v", ti, n)
		}
	}
}

func TestSlerpCoincident(t *testing.T) {
	a := LatLonToUnitVector(48.8, 2.3)
	for _, ti := range []float64{0, 0.3, 0.5, 1} {
		got := Slerp(a, a, ti)
		if !vecClose(got, a, 1e-9) {
			t.Fatalf("Slerp(a,a,%v) = %+v, want %+v", ti, got, a)
		}
		if math.IsNaN(got.X) || math.IsNaN(got.Y) || math.IsNaN(got.Z) {
			t.Fatalf("Slerp(a,a,%v) produced NaN", ti)
		}
	}
}

func TestSlerpAntipodal(t *testing.T) {
	cases := [][2]Vec3{
		{{X: -1}, {X: 1}},
		{{Y: 1}, {Y: -1}},
	}
	for _, c := range cases {
		a, b := c[0], c[1]
		mid := Slerp(a, b, 0.5)
		if !scalar.EqualWithinAbs(mid.Norm(), 1, 1e-9) {
			t.Fatalf("antipodal midpoint %+v not unit length", mid)
		}
		if !scalar.EqualWithinAbs(mid.Dot(a), 0, 1e-9) {
			t.Fatalf("antipodal midpoint %+v not perpendicular to %+v", mid, a)
		}
		if got := Slerp(a, b, 1); !vecClose(got, b, 1e-9) {
			t.Fatalf("antipodal Slerp(a,b,1) = %+v, want %+v", got, b)
		}
	}
}

func TestDestinationPoint(t *testing.T) {
	// A quarter of the circumference due north from the equator is the pole.
	quarter := math.Pi / 2 * EarthRadiusKm
	lat, _ := DestinationPoint(0, 30, quarter, 0)
	if !scalar.EqualWithinAbs(lat, 90, 1e-9) {
		t.Fatalf("north quarter lat = %v, want 90", lat)
	}

	lat, lon := DestinationPoint(0, 175, quarter/9, 90)
	if !scalar.EqualWithinAbs(lat, 0, 1e-9) || !scalar.EqualWithinAbs(lon, -175, 1e-9) {
		t.Fatalf("east across the antimeridian = (%v, %v), want (0, -175)", lat, lon)
	}

	lat, lon = DestinationPoint(48.85, 2.35, 0, 123)
	if !scalar.EqualWithinAbs(lat, 48.85, 1e-9) || !scalar.EqualWithinAbs(lon, 2.35, 1e-9) {
		t.Fatalf("zero distance moved to (%v, %v)", lat, lon)
	}
}
