// Package feed runs the fetch, normalize, build, serialize and pack stages for
// each configured feed.
package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/flightkml/internal/aircraft"
	"github.com/chrissnell/flightkml/internal/kml"
	"github.com/chrissnell/flightkml/internal/providers"
)

// Content types served for each output format.
const (
	ContentTypeKML = "application/vnd.google-earth.kml+xml"
	ContentTypeKMZ = "application/vnd.google-earth.kmz"
)

// DefaultRefreshInterval is how often live links ask viewers to reload.
const DefaultRefreshInterval = 30 * time.Second

var (
	ErrUnknownFeed     = errors.New("unknown feed")
	ErrArchiveDisabled = errors.New("archive output disabled for feed")
)

// Format is an output representation of a feed.
type Format string

const (
	FormatKML Format = "kml"
	FormatKMZ Format = "kmz"
)

// Feed binds a fetcher and a region to the options used to render it.
type Feed struct {
	Name      string
	Fetcher   providers.Fetcher
	Bounds    providers.Bounds
	Normalize aircraft.NormalizeOptions
	Build     kml.BuildOptions
	Pretty    bool

	// Archive enables the KMZ representation; EntryName overrides doc.kml.
	Archive   bool
	EntryName string

	RefreshInterval time.Duration
}

func (f *Feed) validate() error {
	if f.Name == "" {
		return errors.New("feed without name")
	}
	if f.Fetcher == nil {
		return fmt.Errorf("feed %s: no fetcher", f.Name)
	}
	if f.Bounds.IsZero() {
		f.Bounds = providers.DefaultBounds
	}
	if err := f.Bounds.Validate(); err != nil {
		return fmt.Errorf("feed %s: %w", f.Name, err)
	}
	mode, err := kml.ParseStyleMode(string(f.Build.StyleMode))
	if err != nil {
		return fmt.Errorf("feed %s: %w", f.Name, err)
	}
	f.Build.StyleMode = mode
	if f.RefreshInterval == 0 {
		f.RefreshInterval = DefaultRefreshInterval
	}
	return nil
}

// Summary describes one render.
type Summary struct {
	Feed         string
	Provider     string
	Format       Format
	SnapshotTime time.Time

	Records    int
	Placemarks int
	Skipped    map[aircraft.Reason]int

	// Altitude statistics over placemarks that reported an altitude.
	AltitudeSamples int
	MeanAltitude    float64
	MedianAltitude  float64

	Elapsed time.Duration
}

// SkippedTotal sums Skipped over every reason.
func (s Summary) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Result is a finished document ready to be served.
type Result struct {
	Body        []byte
	ContentType string
	Summary     Summary
}
