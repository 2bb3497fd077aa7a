package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// EarthRadiusKm is the mean Earth radius (kilometres).
const EarthRadiusKm = 6371.0

// EarthRadiusScene is the globe radius in scene units (1 unit = 1000 km).
const EarthRadiusScene = EarthRadiusKm / 1000.0

// degenerateEps bounds the residual norm below which slerp treats its
// endpoints as coincident or antipodal.
const degenerateEps = 1e-9

// Vec3 is a body-centred scene vector. Y points to the north pole.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) r3() r3.Vec { return r3.Vec(v) }

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 { return Vec3(r3.Add(v.r3(), other.r3())) }

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 { return Vec3(r3.Sub(v.r3(), other.r3())) }

// Scale returns v multiplied by f.
func (v Vec3) Scale(f float64) Vec3 { return Vec3(r3.Scale(f, v.r3())) }

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 { return r3.Dot(v.r3(), other.r3()) }

// Cross returns v × other.
func (v Vec3) Cross(other Vec3) Vec3 { return Vec3(r3.Cross(v.r3(), other.r3())) }

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 { return r3.Norm(v.r3()) }

// Unit returns v scaled to length 1. The zero vector is returned unchanged.
func (v Vec3) Unit() Vec3 {
	if v.Norm() == 0 {
		return v
	}
	return Vec3(r3.Unit(v.r3()))
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// LatLonToUnitVector maps a geographic point to a unit direction in scene
// coordinates. lat=0, lon=0 lands on +X, lon=180 on -X and the north pole
// on +Y; the longitude offset and the sign of X follow the globe texture
// layout.
func LatLonToUnitVector(lat, lon float64) Vec3 {
	phi := (90 - lat) * (math.Pi / 180)
	theta := (lon + 180) * (math.Pi / 180)
	return Vec3{
		X: -math.Sin(phi) * math.Cos(theta),
		Y: math.Cos(phi),
		Z: math.Sin(phi) * math.Sin(theta),
	}
}

// LatLonToVector returns the point at the given radius above lat/lon.
func LatLonToVector(lat, lon, radius float64) Vec3 {
	return LatLonToUnitVector(lat, lon).Scale(radius)
}

// UnitVectorToLatLon inverts LatLonToUnitVector. Longitude is normalised to
// [-180, 180); at the poles longitude is reported as 0.
func UnitVectorToLatLon(v Vec3) (lat, lon float64) {
	u := v.Unit()
	y := clampUnit(u.Y)
	phi := math.Acos(y)
	lat = 90 - phi*180/math.Pi

	if math.Abs(u.X) < degenerateEps && math.Abs(u.Z) < degenerateEps {
		return lat, 0
	}
	theta := math.Atan2(u.Z, -u.X)
	return lat, normalizeLon(theta*180/math.Pi - 180)
}

// DestinationPoint returns the point reached by travelling distanceKm along
// a great circle from (lat, lon) on the initial bearing, in degrees
// clockwise from north.
func DestinationPoint(lat, lon, distanceKm, bearingDeg float64) (float64, float64) {
	const rad = math.Pi / 180
	phi1 := lat * rad
	theta := bearingDeg * rad
	delta := distanceKm / EarthRadiusKm

	sinPhi2 := clampUnit(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	phi2 := math.Asin(sinPhi2)
	dLon := math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*sinPhi2,
	)
	return phi2 / rad, normalizeLon(lon + dLon/rad)
}

// normalizeLon wraps lon into [-180, 180).
func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Slerp interpolates along the shortest great-circle arc between unit
// vectors a and b. t=0 yields a, t=1 yields b.
//
// Coincident endpoints return a. Antipodal endpoints have no unique shortest
// arc; the path then follows an arbitrary great circle through both.
func Slerp(a, b Vec3, t float64) Vec3 {
	dot := clampUnit(a.Dot(b))
	theta := math.Acos(dot) * t

	relative := b.Sub(a.Scale(dot))
	if relative.Norm() < degenerateEps {
		if dot > 0 {
			return a
		}
		relative = perpendicular(a)
	}
	relative = relative.Unit()

	return a.Scale(math.Cos(theta)).Add(relative.Scale(math.Sin(theta)))
}

// perpendicular returns a unit vector orthogonal to v.
func perpendicular(v Vec3) Vec3 {
	axis := Vec3{Y: 1}
	if math.Abs(v.Unit().Y) > 0.9 {
		axis = Vec3{X: 1}
	}
	return v.Cross(axis).Unit()
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	} else if x < -1 {
		return -1
	}
	return x
}
