package aircraft

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Reason explains why a record was skipped.
type Reason string

const (
	ReasonTooShort           Reason = "too_short"
	ReasonMissingCoordinates Reason = "missing_coordinates"
	ReasonOutOfRange         Reason = "out_of_range"
	ReasonMissingAltitude    Reason = "missing_altitude"
	ReasonMissingIdentity    Reason = "missing_identity"
	ReasonUnknownSchema      Reason = "unknown_schema"
)

// MalformedRecordError is returned for records that cannot become a fix. Callers
// skip the record and carry on with the rest of the snapshot.
type MalformedRecordError struct {
	Key    string
	Reason Reason
	Detail string
}

func (e *MalformedRecordError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("record %q skipped (%s): %s", e.Key, e.Reason, e.Detail)
	}
	return fmt.Sprintf("record %q skipped (%s)", e.Key, e.Reason)
}

// NormalizeOptions tunes the validity policy.
type NormalizeOptions struct {
	// RequireAltitude drops zones feed records that carry no altitude.
	RequireAltitude bool
	// ZeroCoordinatesMissing treats a latitude or longitude of exactly 0 as absent.
	// This drops real aircraft on the equator or the prime meridian.
	ZeroCoordinatesMissing bool
}

// Normalize turns one raw record into a Fix using the schema's layout.
func Normalize(rec RawRecord, schema Schema, opts NormalizeOptions) (Fix, error) {
	layout, err := schema.Layout()
	if err != nil {
		return Fix{}, &MalformedRecordError{Key: rec.Key, Reason: ReasonUnknownSchema, Detail: err.Error()}
	}

	if len(rec.Fields) < layout.MinFields {
		return Fix{}, &MalformedRecordError{
			Key:    rec.Key,
			Reason: ReasonTooShort,
			Detail: fmt.Sprintf("%d fields, need %d", len(rec.Fields), layout.MinFields),
		}
	}

	r := reader{layout: layout, fields: rec.Fields}

	lat, latOK := r.number(FieldLatitude)
	lon, lonOK := r.number(FieldLongitude)
	if opts.ZeroCoordinatesMissing {
		latOK = latOK && lat != 0
		lonOK = lonOK && lon != 0
	}
	if !latOK || !lonOK {
		return Fix{}, &MalformedRecordError{Key: rec.Key, Reason: ReasonMissingCoordinates}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Fix{}, &MalformedRecordError{
			Key:    rec.Key,
			Reason: ReasonOutOfRange,
			Detail: fmt.Sprintf("lat=%v lon=%v", lat, lon),
		}
	}

	fix := Fix{
		Schema:        schema,
		Latitude:      lat,
		Longitude:     lon,
		Callsign:      r.text(FieldCallsign),
		Altitude:      r.optionalNumber(FieldAltitude),
		Speed:         r.optionalNumber(FieldSpeed),
		Heading:       r.optionalNumber(FieldHeading),
		VerticalRate:  r.optionalNumber(FieldVerticalRate),
		OnGround:      r.optionalBool(FieldOnGround),
		OriginCountry: r.text(FieldOriginCountry),
		Squawk:        r.text(FieldSquawk),
		Category:      r.text(FieldCategory),
		AircraftType:  r.text(FieldAircraftType),
	}

	switch schema {
	case SchemaZonesFeed:
		if opts.RequireAltitude && fix.Altitude == nil {
			return Fix{}, &MalformedRecordError{Key: rec.Key, Reason: ReasonMissingAltitude}
		}
		fix.ID = firstNonBlank(rec.Key, fix.Callsign)
	case SchemaStates:
		if fix.Altitude == nil {
			fix.Altitude = r.optionalNumber(FieldGeoAltitude)
		}
		fix.ID = firstNonBlank(r.text(FieldICAO24), fix.Callsign, rec.Key)
	}

	if fix.ID == "" {
		return Fix{}, &MalformedRecordError{Key: rec.Key, Reason: ReasonMissingIdentity}
	}

	return fix, nil
}

// NormalizeSnapshot normalizes every record of the snapshot. Fixes come back in
// snapshot order; skipped records are reported as *MalformedRecordError values.
func NormalizeSnapshot(s *Snapshot, opts NormalizeOptions) ([]Fix, []error) {
	if s == nil {
		return nil, nil
	}

	fixes := make([]Fix, 0, len(s.Records))
	var skipped []error
	for _, rec := range s.Records {
		fix, err := Normalize(rec, s.Schema, opts)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		fixes = append(fixes, fix)
	}
	return fixes, skipped
}

// SkipReason extracts the reason from a normalizer error.
func SkipReason(err error) Reason {
	var mre *MalformedRecordError
	if errors.As(err, &mre) {
		return mre.Reason
	}
	return "unknown"
}

type reader struct {
	layout Layout
	fields []any
}

// value returns the raw field, or nil when the schema lacks it or the record is short.
func (r reader) value(f Field) any {
	idx, ok := r.layout.Index[f]
	if !ok || idx < 0 || idx >= len(r.fields) {
		return nil
	}
	return r.fields[idx]
}

func (r reader) number(f Field) (float64, bool) {
	return numericValue(r.value(f))
}

func (r reader) optionalNumber(f Field) *float64 {
	v, ok := r.number(f)
	if !ok {
		return nil
	}
	return &v
}

func (r reader) optionalBool(f Field) *bool {
	switch t := r.value(f).(type) {
	case bool:
		return &t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &b
	default:
		return nil
	}
}

func (r reader) text(f Field) string {
	switch t := r.value(f).(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// numericValue accepts JSON numbers and numeric strings. Non-finite values
// count as absent so they never reach coordinates or arithmetic.
func numericValue(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
