package providers

import "fmt"

// Bounds is a latitude/longitude box in degrees.
type Bounds struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// DefaultBounds covers Brazil.
var DefaultBounds = Bounds{LatMin: -35, LatMax: 5, LonMin: -75, LonMax: -33}

// Validate rejects boxes that are inverted or leave the globe.
func (b Bounds) Validate() error {
	if b.LatMin < -90 || b.LatMax > 90 {
		return fmt.Errorf("latitude bounds [%v, %v] outside [-90, 90]", b.LatMin, b.LatMax)
	}
	if b.LonMin < -180 || b.LonMax > 180 {
		return fmt.Errorf("longitude bounds [%v, %v] outside [-180, 180]", b.LonMin, b.LonMax)
	}
	if b.LatMin >= b.LatMax {
		return fmt.Errorf("lat_min %v must be below lat_max %v", b.LatMin, b.LatMax)
	}
	if b.LonMin >= b.LonMax {
		return fmt.Errorf("lon_min %v must be below lon_max %v", b.LonMin, b.LonMax)
	}
	return nil
}

// IsZero reports whether no bounds were configured.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}
