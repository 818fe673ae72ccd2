// Package aircraft holds the canonical aircraft fix model and the normalizer that
// turns positional provider records into fixes.
package aircraft

import "fmt"

// Schema identifies the positional layout a provider uses for its records.
type Schema string

const (
	// SchemaZonesFeed is the FlightRadar24 zones feed layout.
	SchemaZonesFeed Schema = "zones"
	// SchemaStates is the OpenSky Network state vector layout.
	SchemaStates Schema = "states"
)

// Field names one value inside a raw record.
type Field int

const (
	FieldLatitude Field = iota
	FieldLongitude
	FieldAltitude
	FieldGeoAltitude
	FieldSpeed
	FieldHeading
	FieldVerticalRate
	FieldCallsign
	FieldAircraftType
	FieldICAO24
	FieldOriginCountry
	FieldTimePosition
	FieldLastContact
	FieldOnGround
	FieldSensors
	FieldSquawk
	FieldSPI
	FieldPositionSource
	FieldCategory
)

var fieldNames = map[Field]string{
	FieldLatitude:       "latitude",
	FieldLongitude:      "longitude",
	FieldAltitude:       "altitude",
	FieldGeoAltitude:    "geo_altitude",
	FieldSpeed:          "speed",
	FieldHeading:        "heading",
	FieldVerticalRate:   "vertical_rate",
	FieldCallsign:       "callsign",
	FieldAircraftType:   "aircraft_type",
	FieldICAO24:         "icao24",
	FieldOriginCountry:  "origin_country",
	FieldTimePosition:   "time_position",
	FieldLastContact:    "last_contact",
	FieldOnGround:       "on_ground",
	FieldSensors:        "sensors",
	FieldSquawk:         "squawk",
	FieldSPI:            "spi",
	FieldPositionSource: "position_source",
	FieldCategory:       "category",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Layout maps fields to their array index for one schema.
type Layout struct {
	// MinFields is the shortest record the schema accepts.
	MinFields int
	Index     map[Field]int
}

// Has reports whether the layout carries the field at all.
func (l Layout) Has(f Field) bool {
	_, ok := l.Index[f]
	return ok
}

// zonesFeedLayout: lat, lon, alt, speed, callsign, type, ..., heading at 12.
var zonesFeedLayout = Layout{
	MinFields: 5,
	Index: map[Field]int{
		FieldLatitude:     0,
		FieldLongitude:    1,
		FieldAltitude:     2,
		FieldSpeed:        3,
		FieldCallsign:     4,
		FieldAircraftType: 5,
		FieldHeading:      12,
	},
}

// statesLayout follows the OpenSky /states/all state vector.
var statesLayout = Layout{
	MinFields: 0,
	Index: map[Field]int{
		FieldICAO24:         0,
		FieldCallsign:       1,
		FieldOriginCountry:  2,
		FieldTimePosition:   3,
		FieldLastContact:    4,
		FieldLongitude:      5,
		FieldLatitude:       6,
		FieldAltitude:       7,
		FieldOnGround:       8,
		FieldSpeed:          9,
		FieldHeading:        10,
		FieldVerticalRate:   11,
		FieldSensors:        12,
		FieldGeoAltitude:    13,
		FieldSquawk:         14,
		FieldSPI:            15,
		FieldPositionSource: 16,
		FieldCategory:       17,
	},
}

// Layout returns the field table for the schema.
func (s Schema) Layout() (Layout, error) {
	switch s {
	case SchemaZonesFeed:
		return zonesFeedLayout, nil
	case SchemaStates:
		return statesLayout, nil
	default:
		return Layout{}, fmt.Errorf("unknown record schema: %q", string(s))
	}
}

// ParseSchema accepts the schema names used in configuration.
func ParseSchema(name string) (Schema, error) {
	switch name {
	case "zones", "zones-feed", "flightradar", "flightradar24":
		return SchemaZonesFeed, nil
	case "states", "opensky":
		return SchemaStates, nil
	default:
		return "", fmt.Errorf("unknown record schema: %q", name)
	}
}
