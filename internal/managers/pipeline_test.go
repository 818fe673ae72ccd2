package managers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/flightkml/internal/aircraft"
	"github.com/chrissnell/flightkml/internal/kml"
	"github.com/chrissnell/flightkml/internal/providers"
	"github.com/chrissnell/flightkml/internal/providers/flightradar"
	"github.com/chrissnell/flightkml/internal/providers/opensky"
	"github.com/chrissnell/flightkml/pkg/config"
)

func TestNewFetchers(t *testing.T) {
	tests := []struct {
		name    string
		pd      config.ProviderData
		wantErr bool
	}{
		{"flightradar", config.ProviderData{Name: "fr24", Type: "flightradar"}, false},
		{"opensky anonymous", config.ProviderData{Name: "os", Type: "opensky", Timeout: "20s"}, false},
		{"opensky oauth2 default token url", config.ProviderData{Name: "os", Type: "opensky", Auth: config.AuthData{Type: "oauth2", ClientID: "id", ClientSecret: "secret"}}, false},
		{"unknown type", config.ProviderData{Name: "x", Type: "adsbx"}, true},
		{"bad timeout", config.ProviderData{Name: "fr24", Type: "flightradar", Timeout: "later"}, true},
		{"incomplete header auth", config.ProviderData{Name: "fr24", Type: "flightradar", Auth: config.AuthData{Type: "header"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetchers, err := NewFetchers(context.Background(), []config.ProviderData{tt.pd}, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFetchers() error: %v", err)
			}
			f, ok := fetchers[tt.pd.Name]
			if !ok {
				t.Fatalf("no fetcher for %s", tt.pd.Name)
			}
			if f.Name() != tt.pd.Name {
				t.Errorf("Name() = %q", f.Name())
			}
			switch f.Schema() {
			case aircraft.SchemaZonesFeed:
				if _, ok := f.(*flightradar.Fetcher); !ok {
					t.Errorf("got %T", f)
				}
			case aircraft.SchemaStates:
				if _, ok := f.(*opensky.Fetcher); !ok {
					t.Errorf("got %T", f)
				}
			default:
				t.Errorf("unexpected schema %q", f.Schema())
			}
		})
	}
}

func TestNewFeeds(t *testing.T) {
	fetchers := map[string]providers.Fetcher{
		"fr24": flightradar.New("fr24", "", http.DefaultClient, nil),
	}
	fds := []config.FeedData{
		{
			Name: "sul", Provider: "fr24", Title: "Sul", StyleMode: "shared",
			Archive: true, EntryName: "sul.kml", RefreshSeconds: 60, RequireAltitude: true,
			Bounds: &config.BoundsData{LatMin: -34, LatMax: -22, LonMin: -58, LonMax: -47},
		},
		{Name: "brasil", Provider: "fr24"},
	}

	feeds, err := NewFeeds(fds, fetchers)
	if err != nil {
		t.Fatalf("NewFeeds() error: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("got %d feeds", len(feeds))
	}

	sul := feeds[0]
	if sul.Bounds != (providers.Bounds{LatMin: -34, LatMax: -22, LonMin: -58, LonMax: -47}) {
		t.Errorf("bounds = %+v", sul.Bounds)
	}
	if sul.Build.StyleMode != kml.StyleShared || sul.Build.Title != "Sul" {
		t.Errorf("build = %+v", sul.Build)
	}
	if !sul.Archive || sul.EntryName != "sul.kml" || sul.RefreshInterval != time.Minute || !sul.Normalize.RequireAltitude {
		t.Errorf("feed = %+v", sul)
	}
	if !feeds[1].Bounds.IsZero() {
		t.Errorf("unset bounds should stay zero until the pipeline defaults them, got %+v", feeds[1].Bounds)
	}

	if _, err := NewFeeds([]config.FeedData{{Name: "x", Provider: "nope"}}, fetchers); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewPipelineEndToEnd(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		fmt.Fprint(w, `{"full_count":1,"version":4,"2f1a":[-23.43,-46.47,33000,440,"GLO1234","B738",0,0,0,0,0,0,185]}`)
	}))
	defer srv.Close()

	cfg := &config.ConfigData{
		Providers: []config.ProviderData{{
			Name: "fr24", Type: "flightradar", Endpoint: srv.URL,
			Auth: config.AuthData{Type: "header", HeaderName: "X-Api-Key", HeaderValue: "k"},
		}},
		Feeds: []config.FeedData{{Name: "brasil"}},
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	pipeline, err := NewPipeline(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	res, err := pipeline.Render(context.Background(), "brasil")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if gotKey != "k" {
		t.Errorf("header auth not sent, got %q", gotKey)
	}
	if res.Summary.Placemarks != 1 || res.Summary.Provider != "fr24" {
		t.Errorf("summary = %+v", res.Summary)
	}
	if !strings.Contains(string(res.Body), "GLO1234") {
		t.Errorf("document missing placemark: %s", res.Body)
	}
	if res.Summary.Feed != "brasil" || pipeline.Feeds()[0].Fetcher.Schema() != aircraft.SchemaZonesFeed {
		t.Errorf("unexpected feed wiring: %+v", res.Summary)
	}
}
