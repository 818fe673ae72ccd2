// Package opensky fetches state vectors from the OpenSky Network REST API.
package opensky

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/chrissnell/flightkml/internal/aircraft"
	"github.com/chrissnell/flightkml/internal/providers"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://opensky-network.org/api"
	DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"
)

// Fetcher implements providers.Fetcher for /states/all.
type Fetcher struct {
	name     string
	endpoint string
	client   *http.Client
	logger   *zap.SugaredLogger
}

// New creates a state vector fetcher. An empty endpoint means DefaultEndpoint.
func New(name, endpoint string, client *http.Client, logger *zap.SugaredLogger) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fetcher{
		name:     name,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   client,
		logger:   logger,
	}
}

func (f *Fetcher) Name() string {
	return f.name
}

func (f *Fetcher) Schema() aircraft.Schema {
	return aircraft.SchemaStates
}

// URL builds the request URL for a region. extended=1 asks for the category column.
func (f *Fetcher) URL(b providers.Bounds) (string, error) {
	u, err := url.Parse(f.endpoint + "/states/all")
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", f.endpoint, err)
	}
	q := url.Values{}
	q.Set("lamin", formatDegrees(b.LatMin))
	q.Set("lomin", formatDegrees(b.LonMin))
	q.Set("lamax", formatDegrees(b.LatMax))
	q.Set("lomax", formatDegrees(b.LonMax))
	q.Set("extended", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch downloads one snapshot. A null states list is an empty snapshot.
func (f *Fetcher) Fetch(ctx context.Context, b providers.Bounds) (*aircraft.Snapshot, error) {
	if err := b.Validate(); err != nil {
		return nil, &providers.FetchError{Provider: f.name, Err: err}
	}

	u, err := f.URL(b)
	if err != nil {
		return nil, &providers.FetchError{Provider: f.name, Err: err}
	}

	f.logger.Debugf("fetching state vectors %s", u)
	body, err := providers.Get(ctx, f.client, f.name, u)
	if err != nil {
		return nil, err
	}

	records, err := providers.DecodeListRecords(body, "states")
	if err != nil {
		return nil, &providers.FetchError{Provider: f.name, StatusCode: http.StatusOK, Err: fmt.Errorf("error decoding response: %w", err)}
	}

	snap := &aircraft.Snapshot{
		Schema:  aircraft.SchemaStates,
		Time:    time.Now().UTC(),
		Records: records,
	}
	if ts, err := jsonparser.GetInt(body, "time"); err == nil {
		snap.Time = time.Unix(ts, 0).UTC()
	}
	f.logger.Debugf("state vectors %s returned %d records", f.name, len(records))

	return snap, nil
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
