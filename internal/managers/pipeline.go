package managers

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/flightkml/internal/aircraft"
	"github.com/chrissnell/flightkml/internal/constants"
	"github.com/chrissnell/flightkml/internal/feed"
	"github.com/chrissnell/flightkml/internal/kml"
	"github.com/chrissnell/flightkml/internal/observability"
	"github.com/chrissnell/flightkml/internal/providers"
	"github.com/chrissnell/flightkml/internal/providers/flightradar"
	"github.com/chrissnell/flightkml/internal/providers/opensky"
	"github.com/chrissnell/flightkml/pkg/config"
	"go.uber.org/zap"
)

// NewFetchers creates one fetcher per configured provider, keyed by name.
func NewFetchers(ctx context.Context, pds []config.ProviderData, logger *zap.SugaredLogger) (map[string]providers.Fetcher, error) {
	fetchers := make(map[string]providers.Fetcher, len(pds))
	for _, pd := range pds {
		f, err := newFetcher(ctx, pd, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating provider %s: %w", pd.Name, err)
		}
		fetchers[pd.Name] = f
	}
	return fetchers, nil
}

func newFetcher(ctx context.Context, pd config.ProviderData, logger *zap.SugaredLogger) (providers.Fetcher, error) {
	timeout, err := config.ParseDuration(pd.Timeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout: %w", err)
	}

	auth := providers.Auth{
		Type:         providers.AuthType(pd.Auth.Type),
		HeaderName:   pd.Auth.HeaderName,
		HeaderValue:  pd.Auth.HeaderValue,
		TokenURL:     pd.Auth.TokenURL,
		ClientID:     pd.Auth.ClientID,
		ClientSecret: pd.Auth.ClientSecret,
		Scopes:       pd.Auth.Scopes,
	}
	if auth.Type == "" {
		auth.Type = providers.AuthNone
	}

	schema, err := aircraft.ParseSchema(pd.Type)
	if err != nil {
		return nil, fmt.Errorf("unknown provider type: %s", pd.Type)
	}

	switch schema {
	case aircraft.SchemaZonesFeed:
		ua := pd.UserAgent
		if ua == "" {
			ua = flightradar.DefaultUserAgent
		}
		client, err := providers.NewHTTPClient(ctx, auth, timeout, ua)
		if err != nil {
			return nil, err
		}
		return flightradar.New(pd.Name, pd.Endpoint, client, logger), nil
	case aircraft.SchemaStates:
		ua := pd.UserAgent
		if ua == "" {
			ua = "flightkml/" + constants.Version
		}
		if auth.Type == providers.AuthOAuth2 && auth.TokenURL == "" {
			auth.TokenURL = opensky.DefaultTokenURL
		}
		client, err := providers.NewHTTPClient(ctx, auth, timeout, ua)
		if err != nil {
			return nil, err
		}
		return opensky.New(pd.Name, pd.Endpoint, client, logger), nil
	}
	return nil, fmt.Errorf("unsupported schema %s for provider type %s", schema, pd.Type)
}

// NewFeeds binds each configured feed to its provider's fetcher.
func NewFeeds(fds []config.FeedData, fetchers map[string]providers.Fetcher) ([]*feed.Feed, error) {
	feeds := make([]*feed.Feed, 0, len(fds))
	for _, fd := range fds {
		fetcher, ok := fetchers[fd.Provider]
		if !ok {
			return nil, fmt.Errorf("feed %s references unknown provider %q", fd.Name, fd.Provider)
		}

		f := &feed.Feed{
			Name:    fd.Name,
			Fetcher: fetcher,
			Normalize: aircraft.NormalizeOptions{
				RequireAltitude:        fd.RequireAltitude,
				ZeroCoordinatesMissing: fd.ZeroCoordinatesMissing,
			},
			Build: kml.BuildOptions{
				Title:       fd.Title,
				FolderTitle: fd.FolderTitle,
				StyleMode:   kml.StyleMode(fd.StyleMode),
			},
			Pretty:          fd.Pretty,
			Archive:         fd.Archive,
			EntryName:       fd.EntryName,
			RefreshInterval: time.Duration(fd.RefreshSeconds) * time.Second,
		}
		if fd.Bounds != nil {
			f.Bounds = providers.Bounds{
				LatMin: fd.Bounds.LatMin,
				LatMax: fd.Bounds.LatMax,
				LonMin: fd.Bounds.LonMin,
				LonMax: fd.Bounds.LonMax,
			}
		}
		feeds = append(feeds, f)
	}
	return feeds, nil
}

// NewPipeline wires providers and feeds from the configuration into a
// ready pipeline.
func NewPipeline(ctx context.Context, cfg *config.ConfigData, metrics *observability.FeedCollector, logger *zap.SugaredLogger) (*feed.Pipeline, error) {
	fetchers, err := NewFetchers(ctx, cfg.Providers, logger)
	if err != nil {
		return nil, err
	}
	feeds, err := NewFeeds(cfg.Feeds, fetchers)
	if err != nil {
		return nil, err
	}
	return feed.NewPipeline(feeds, metrics, logger)
}
