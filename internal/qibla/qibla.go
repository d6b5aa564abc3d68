// Package qibla computes the direction and distance to the Kaaba.
package qibla

import "math"

// Kaaba coordinates in decimal degrees.
const (
	KaabaLatitude  = 21.4225
	KaabaLongitude = 39.8262
)

const earthRadiusKm = 6371.0

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }

func normalize(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// Bearing returns the initial great-circle bearing from (lat, lng) to the
// Kaaba, in degrees clockwise from true north, in [0, 360).
func Bearing(lat, lng float64) float64 {
	phi := rad(lat)
	phiK := rad(KaabaLatitude)
	dLambda := rad(KaabaLongitude - lng)

	a := math.Atan2(math.Sin(dLambda), math.Cos(phi)*math.Tan(phiK)-math.Sin(phi)*math.Cos(dLambda))
	return normalize(deg(a))
}

// Distance returns the great-circle distance to the Kaaba in kilometres.
func Distance(lat, lng float64) float64 {
	p1, p2 := rad(lat), rad(KaabaLatitude)
	dp := p2 - p1
	dl := rad(KaabaLongitude - lng)
	h := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Heading converts a magnetometer vector into a heading in [0, 360).
func Heading(x, y float64) float64 {
	return normalize(deg(math.Atan2(y, x)))
}

// Rotation is the angle to turn a pointer so that it faces the Qibla when
// the device faces heading.
func Rotation(bearing, heading float64) float64 {
	return normalize(bearing - heading)
}

var compass = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Cardinal names the eight-point compass direction of a bearing.
func Cardinal(bearing float64) string {
	return compass[int(math.Floor(normalize(bearing)/45+0.5))%8]
}
