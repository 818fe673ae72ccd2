package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleYAML = `
server:
  listen-addr: 127.0.0.1
  port: 9090
  public-url: https://voos.example.com
logging:
  file: /var/log/flightkml.log
tracing:
  enabled: true
  exporter: otlp
  endpoint: collector:4317
  sample-ratio: 0.25
providers:
  - name: fr24
    type: flightradar
    user-agent: test-agent
  - name: opensky
    type: opensky
    timeout: 20s
    auth:
      type: oauth2
      token-url: https://auth.example.com/token
      client-id: my-client
      client-secret: ${FLIGHTKML_TEST_SECRET}
      scopes: [read]
feeds:
  - name: brasil
    provider: fr24
    title: Tráfego Aéreo no Brasil
    style-mode: shared
    pretty: true
  - name: sul
    provider: opensky
    archive: true
    refresh-seconds: 60
    require-altitude: true
    zero-coordinates-missing: true
    bounds:
      lat-min: -34
      lat-max: -22
      lon-min: -58
      lon-max: -47
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	t.Setenv("FLIGHTKML_TEST_SECRET", "s3cret")
	p := NewYAMLProvider(writeFile(t, "config.yaml", sampleYAML))

	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1" || cfg.Server.Port != 9090 || cfg.Server.PublicURL != "https://voos.example.com" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.SampleRatio != 0.25 {
		t.Errorf("tracing = %+v", cfg.Tracing)
	}
	if len(cfg.Providers) != 2 || len(cfg.Feeds) != 2 {
		t.Fatalf("got %d providers and %d feeds", len(cfg.Providers), len(cfg.Feeds))
	}

	auth := cfg.Providers[1].Auth
	if auth.Type != "oauth2" || auth.ClientID != "my-client" || auth.ClientSecret != "s3cret" {
		t.Errorf("opensky auth = %+v", auth)
	}
	if !reflect.DeepEqual(auth.Scopes, []string{"read"}) {
		t.Errorf("scopes = %v", auth.Scopes)
	}
	if cfg.Providers[0].UserAgent != "test-agent" {
		t.Errorf("user agent = %q", cfg.Providers[0].UserAgent)
	}

	sul := cfg.Feeds[1]
	if !sul.Archive || sul.RefreshSeconds != 60 || !sul.RequireAltitude || !sul.ZeroCoordinatesMissing {
		t.Errorf("sul feed = %+v", sul)
	}
	if sul.Bounds == nil || *sul.Bounds != (BoundsData{LatMin: -34, LatMax: -22, LonMin: -58, LonMax: -47}) {
		t.Errorf("sul bounds = %+v", sul.Bounds)
	}
	if cfg.Feeds[0].Bounds != nil {
		t.Errorf("brasil bounds should be unset, got %+v", cfg.Feeds[0].Bounds)
	}

	feeds, err := p.GetFeeds()
	if err != nil || len(feeds) != 2 {
		t.Errorf("GetFeeds() = %d feeds, %v", len(feeds), err)
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestYAMLProviderRejectsUnknownKeys(t *testing.T) {
	p := NewYAMLProvider(writeFile(t, "config.yaml", "server:\n  prot: 80\n"))
	if _, err := p.LoadConfig(); err == nil {
		t.Error("expected error for misspelled key")
	}
}

func TestYAMLProviderMissingFile(t *testing.T) {
	p := NewYAMLProvider(filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := p.GetServer(); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg := &ConfigData{
		Providers: []ProviderData{{Name: "fr24", Type: "FlightRadar"}},
		Feeds:     []FeedData{{Name: "brasil"}},
	}
	ApplyDefaults(cfg)

	if cfg.Server.Port != DefaultPort || cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	p := cfg.Providers[0]
	if p.Type != "flightradar" || p.Timeout != DefaultProviderTimeout || p.Auth.Type != "none" {
		t.Errorf("provider defaults = %+v", p)
	}
	f := cfg.Feeds[0]
	if f.Provider != "fr24" {
		t.Errorf("single provider should be picked up, got %q", f.Provider)
	}
	if f.Title != DefaultFeedTitle || f.FolderTitle != DefaultFolderTitle || f.StyleMode != "inline" || f.RefreshSeconds != DefaultRefreshSeconds {
		t.Errorf("feed defaults = %+v", f)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() after defaults: %v", err)
	}
}

func TestApplyDefaultsPortFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")
	cfg := &ConfigData{}
	ApplyDefaults(cfg)
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000 from $PORT", cfg.Server.Port)
	}

	cfg = &ConfigData{Server: ServerData{Port: 9000}}
	ApplyDefaults(cfg)
	if cfg.Server.Port != 9000 {
		t.Errorf("configured port overridden: %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *ConfigData {
		cfg := &ConfigData{
			Providers: []ProviderData{{Name: "fr24", Type: "flightradar"}},
			Feeds:     []FeedData{{Name: "brasil", Provider: "fr24"}},
		}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*ConfigData)
		wantErr string
	}{
		{"valid", func(*ConfigData) {}, ""},
		{"bad port", func(c *ConfigData) { c.Server.Port = 70000 }, "port"},
		{"bad timeout", func(c *ConfigData) { c.Server.ReadTimeout = "soon" }, "read_timeout"},
		{"relative public url", func(c *ConfigData) { c.Server.PublicURL = "voos/" }, "public_url"},
		{"unknown exporter", func(c *ConfigData) { c.Tracing.Exporter = "zipkin" }, "exporter"},
		{"unknown provider type", func(c *ConfigData) { c.Providers[0].Type = "adsbx" }, "unknown type"},
		{"unknown auth", func(c *ConfigData) { c.Providers[0].Auth.Type = "basic" }, "auth type"},
		{"duplicate provider", func(c *ConfigData) { c.Providers = append(c.Providers, c.Providers[0]) }, "duplicate provider"},
		{"no feeds", func(c *ConfigData) { c.Feeds = nil }, "no feeds"},
		{"feed name with slash", func(c *ConfigData) { c.Feeds[0].Name = "a/b" }, "invalid feed name"},
		{"duplicate feed", func(c *ConfigData) { c.Feeds = append(c.Feeds, c.Feeds[0]) }, "duplicate feed"},
		{"feed unknown provider", func(c *ConfigData) { c.Feeds[0].Provider = "nope" }, "unknown provider"},
		{"feed style", func(c *ConfigData) { c.Feeds[0].StyleMode = "fancy" }, "style mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	t.Setenv("FLIGHTKML_TEST_SECRET", "s3cret")
	want, err := NewYAMLProvider(writeFile(t, "config.yaml", sampleYAML)).LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "config.db")
	db, err := NewSQLiteProvider(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteProvider() error: %v", err)
	}
	if err := db.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	// Saving twice replaces rather than duplicates.
	if err := db.SaveConfig(want); err != nil {
		t.Fatalf("second SaveConfig() error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := NewSQLiteProvider(dbPath)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got %+v\nwant %+v", got, want)
	}
	if reopened.IsReadOnly() {
		t.Error("SQLite provider should be writable")
	}
}

func TestSQLiteProviderEmpty(t *testing.T) {
	db, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("NewSQLiteProvider() error: %v", err)
	}
	defer db.Close()

	server, err := db.GetServer()
	if err != nil {
		t.Fatalf("GetServer() error: %v", err)
	}
	if *server != (ServerData{}) {
		t.Errorf("empty database server = %+v", server)
	}
	feeds, err := db.GetFeeds()
	if err != nil || len(feeds) != 0 {
		t.Errorf("GetFeeds() = %v, %v", feeds, err)
	}
}
