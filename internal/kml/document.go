// Package kml builds placemark documents from aircraft fixes and renders them as KML.
package kml

import (
	"fmt"
	"strconv"
	"strings"
)

// Namespace is the KML 2.2 namespace carried by the root element.
const Namespace = "http://www.opengis.net/kml/2.2"

// StyleMode selects how placemarks get their icon styling.
type StyleMode string

const (
	// StyleNone emits no styling at all.
	StyleNone StyleMode = "none"
	// StyleShared emits one document-level style referenced by every placemark.
	StyleShared StyleMode = "shared"
	// StyleInline embeds a style in every placemark so the icon can rotate to the heading.
	StyleInline StyleMode = "inline"
)

// ParseStyleMode maps a configuration value to a StyleMode. Empty means inline.
func ParseStyleMode(s string) (StyleMode, error) {
	switch StyleMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleInline:
		return StyleInline, nil
	case StyleShared:
		return StyleShared, nil
	case StyleNone:
		return StyleNone, nil
	default:
		return "", fmt.Errorf("unknown style mode: %q", s)
	}
}

// Document is the in-memory placemark collection.
type Document struct {
	Title       string
	SharedStyle *Style
	FolderTitle string
	Placemarks  []Placemark
}

// Style is an icon style. Heading is nil for static styles.
type Style struct {
	ID       string
	Heading  *int
	Scale    float64
	IconHref string
}

// Placemark is one labeled point. At most one of Style and StyleURL is set.
type Placemark struct {
	Name        string
	Description string
	Style       *Style
	StyleURL    string
	Point       Point
}

// Point is a WGS84 position. Altitude is 0 when the source had none.
type Point struct {
	Longitude float64
	Latitude  float64
	Altitude  float64
}

// Coordinates renders the point as "lon,lat,alt".
func (p Point) Coordinates() string {
	return formatCoordinate(p.Longitude) + "," + formatCoordinate(p.Latitude) + "," + formatCoordinate(p.Altitude)
}

func formatCoordinate(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
