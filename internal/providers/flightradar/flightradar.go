// Package flightradar fetches zone snapshots from the FlightRadar24 live feed.
package flightradar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/chrissnell/flightkml/internal/aircraft"
	"github.com/chrissnell/flightkml/internal/providers"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://data-live.flightradar24.com/zones/fcgi/feed.js"

	// DefaultUserAgent mimics a desktop browser; the feed rejects bare clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Fetcher implements providers.Fetcher for the zones feed.
type Fetcher struct {
	name     string
	endpoint string
	client   *http.Client
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// New creates a zones feed fetcher. An empty endpoint means DefaultEndpoint.
func New(name, endpoint string, client *http.Client, logger *zap.SugaredLogger) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fetcher{
		name:     name,
		endpoint: endpoint,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

func (f *Fetcher) Name() string {
	return f.name
}

func (f *Fetcher) Schema() aircraft.Schema {
	return aircraft.SchemaZonesFeed
}

// URL builds the request URL for a region.
func (f *Fetcher) URL(b providers.Bounds) (string, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", f.endpoint, err)
	}

	q := u.Query()
	q.Set("bounds", fmt.Sprintf("%s,%s,%s,%s",
		formatDegrees(b.LatMin), formatDegrees(b.LatMax), formatDegrees(b.LonMin), formatDegrees(b.LonMax)))
	for _, flag := range []string{"faa", "satellite", "mlat", "flarm", "adsb", "gnd", "air", "estimated"} {
		q.Set(flag, "1")
	}
	q.Set("vehicles", "0")
	q.Set("maxage", "14400")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Fetch downloads one snapshot. Members of the response that are not record
// arrays (full_count, version, stats) are skipped; the rest keep document order.
func (f *Fetcher) Fetch(ctx context.Context, b providers.Bounds) (*aircraft.Snapshot, error) {
	if err := b.Validate(); err != nil {
		return nil, &providers.FetchError{Provider: f.name, Err: err}
	}

	u, err := f.URL(b)
	if err != nil {
		return nil, &providers.FetchError{Provider: f.name, Err: err}
	}

	f.logger.Debugf("fetching zones feed %s", u)
	body, err := providers.Get(ctx, f.client, f.name, u)
	if err != nil {
		return nil, err
	}

	records, err := providers.DecodeKeyedRecords(body)
	if err != nil {
		return nil, &providers.FetchError{Provider: f.name, StatusCode: http.StatusOK, Err: fmt.Errorf("error decoding response: %w", err)}
	}
	f.logger.Debugf("zones feed %s returned %d records", f.name, len(records))

	return &aircraft.Snapshot{
		Schema:  aircraft.SchemaZonesFeed,
		Time:    f.now().UTC(),
		Records: records,
	}, nil
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
