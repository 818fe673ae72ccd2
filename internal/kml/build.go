package kml

import (
	"math"

	"github.com/chrissnell/flightkml/internal/aircraft"
)

const (
	// DefaultIconHref is the Google Earth airport shape.
	DefaultIconHref = "http://maps.google.com/mapfiles/kml/shapes/airports.png"
	// DefaultIconScale matches what the globe viewers were tuned for.
	DefaultIconScale = 1.1
	// SharedStyleID is the id of the document-level style in StyleShared mode.
	SharedStyleID = "aircraft"
)

// BuildOptions controls document metadata and styling.
type BuildOptions struct {
	Title       string
	FolderTitle string
	StyleMode   StyleMode
	IconHref    string
	IconScale   float64
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.IconHref == "" {
		o.IconHref = DefaultIconHref
	}
	if o.IconScale == 0 {
		o.IconScale = DefaultIconScale
	}
	if o.StyleMode == "" {
		o.StyleMode = StyleInline
	}
	return o
}

// Build turns fixes into a Document, one placemark per fix in input order.
func Build(opts BuildOptions, fixes []aircraft.Fix) *Document {
	opts = opts.withDefaults()

	doc := &Document{
		Title:       opts.Title,
		FolderTitle: opts.FolderTitle,
		Placemarks:  make([]Placemark, 0, len(fixes)),
	}

	if opts.StyleMode == StyleShared {
		doc.SharedStyle = &Style{
			ID:       SharedStyleID,
			Scale:    opts.IconScale,
			IconHref: opts.IconHref,
		}
	}

	for _, fix := range fixes {
		pm := Placemark{
			Name:        fix.DisplayName(),
			Description: Describe(fix),
			Point: Point{
				Longitude: fix.Longitude,
				Latitude:  fix.Latitude,
				Altitude:  fix.CoordinateAltitude(),
			},
		}

		switch opts.StyleMode {
		case StyleShared:
			pm.StyleURL = "#" + SharedStyleID
		case StyleInline:
			heading := styleHeading(fix.Heading)
			pm.Style = &Style{
				Heading:  &heading,
				Scale:    opts.IconScale,
				IconHref: opts.IconHref,
			}
		}

		doc.Placemarks = append(doc.Placemarks, pm)
	}

	return doc
}

func styleHeading(h *float64) int {
	if h == nil {
		return 0
	}
	return int(math.Round(*h))
}
