package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetServer() (*ServerData, error)
	GetProviders() ([]ProviderData, error)
	GetFeeds() ([]FeedData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server    ServerData     `json:"server"`
	Logging   LoggingData    `json:"logging,omitempty"`
	Tracing   TracingData    `json:"tracing,omitempty"`
	Providers []ProviderData `json:"providers"`
	Feeds     []FeedData     `json:"feeds"`
}

// ServerData configures the HTTP surface. Timeouts are Go duration strings.
type ServerData struct {
	ListenAddr   string `json:"listen_addr,omitempty"`
	Port         int    `json:"port,omitempty"`
	PublicURL    string `json:"public_url,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

// LoggingData enables an additional rotated log file next to stderr.
type LoggingData struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

type TracingData struct {
	Enabled     bool    `json:"enabled,omitempty"`
	Exporter    string  `json:"exporter,omitempty"`
	Endpoint    string  `json:"endpoint,omitempty"`
	SampleRatio float64 `json:"sample_ratio,omitempty"`
	ServiceName string  `json:"service_name,omitempty"`
}

// ProviderData describes one telemetry source and how to reach it.
type ProviderData struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Endpoint  string   `json:"endpoint,omitempty"`
	Timeout   string   `json:"timeout,omitempty"`
	UserAgent string   `json:"user_agent,omitempty"`
	Auth      AuthData `json:"auth,omitempty"`
}

type AuthData struct {
	Type         string   `json:"type,omitempty"`
	HeaderName   string   `json:"header_name,omitempty"`
	HeaderValue  string   `json:"header_value,omitempty"`
	TokenURL     string   `json:"token_url,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// FeedData is one published document: a provider, a region and rendering options.
type FeedData struct {
	Name                   string      `json:"name"`
	Provider               string      `json:"provider"`
	Title                  string      `json:"title,omitempty"`
	FolderTitle            string      `json:"folder_title,omitempty"`
	StyleMode              string      `json:"style_mode,omitempty"`
	Archive                bool        `json:"archive,omitempty"`
	EntryName              string      `json:"entry_name,omitempty"`
	Pretty                 bool        `json:"pretty,omitempty"`
	RefreshSeconds         int         `json:"refresh_seconds,omitempty"`
	RequireAltitude        bool        `json:"require_altitude,omitempty"`
	ZeroCoordinatesMissing bool        `json:"zero_coordinates_missing,omitempty"`
	Bounds                 *BoundsData `json:"bounds,omitempty"`
}

type BoundsData struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}
