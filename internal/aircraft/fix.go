package aircraft

import (
	"strings"
	"time"
)

// RawRecord is one provider record: positional scalar fields plus the key the
// provider filed it under. Scalars are float64, string, bool or nil.
type RawRecord struct {
	Key    string
	Fields []any
}

// Snapshot is one point-in-time batch of raw records, in provider order.
type Snapshot struct {
	Schema  Schema
	Time    time.Time
	Records []RawRecord
}

// Fix is a normalized aircraft position with whatever metadata the provider sent.
// Optional values are nil when the provider left them out.
type Fix struct {
	Schema Schema

	ID       string
	Callsign string

	Latitude  float64
	Longitude float64

	// Altitude is in feet for the zones feed and meters for state vectors.
	Altitude     *float64
	Speed        *float64
	Heading      *float64
	VerticalRate *float64
	OnGround     *bool

	OriginCountry string
	Squawk        string
	Category      string
	AircraftType  string
}

// DisplayName is the label shown for the fix on a map.
func (f Fix) DisplayName() string {
	if cs := strings.TrimSpace(f.Callsign); cs != "" {
		return cs
	}
	return f.ID
}

// CoordinateAltitude is the altitude to place the point at, 0 when unknown.
func (f Fix) CoordinateAltitude() float64 {
	if f.Altitude == nil {
		return 0
	}
	return *f.Altitude
}
