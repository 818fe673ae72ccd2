package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file. ${VAR}
// references are expanded from the environment so secrets can stay out of
// the file.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML([]byte(os.ExpandEnv(string(cfgFile))))
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig struct {
		Server    ServerYAML     `yaml:"server"`
		Logging   LoggingYAML    `yaml:"logging,omitempty"`
		Tracing   TracingYAML    `yaml:"tracing,omitempty"`
		Providers []ProviderYAML `yaml:"providers"`
		Feeds     []FeedYAML     `yaml:"feeds"`
	}

	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Server: ServerData{
			ListenAddr:   yamlConfig.Server.ListenAddr,
			Port:         yamlConfig.Server.Port,
			PublicURL:    yamlConfig.Server.PublicURL,
			ReadTimeout:  yamlConfig.Server.ReadTimeout,
			WriteTimeout: yamlConfig.Server.WriteTimeout,
		},
		Logging: LoggingData{
			File:       yamlConfig.Logging.File,
			MaxSizeMB:  yamlConfig.Logging.MaxSizeMB,
			MaxBackups: yamlConfig.Logging.MaxBackups,
			MaxAgeDays: yamlConfig.Logging.MaxAgeDays,
		},
		Tracing: TracingData{
			Enabled:     yamlConfig.Tracing.Enabled,
			Exporter:    yamlConfig.Tracing.Exporter,
			Endpoint:    yamlConfig.Tracing.Endpoint,
			SampleRatio: yamlConfig.Tracing.SampleRatio,
			ServiceName: yamlConfig.Tracing.ServiceName,
		},
		Providers: make([]ProviderData, len(yamlConfig.Providers)),
		Feeds:     make([]FeedData, len(yamlConfig.Feeds)),
	}

	for i, p := range yamlConfig.Providers {
		config.Providers[i] = ProviderData{
			Name:      p.Name,
			Type:      p.Type,
			Endpoint:  p.Endpoint,
			Timeout:   p.Timeout,
			UserAgent: p.UserAgent,
			Auth: AuthData{
				Type:         p.Auth.Type,
				HeaderName:   p.Auth.HeaderName,
				HeaderValue:  p.Auth.HeaderValue,
				TokenURL:     p.Auth.TokenURL,
				ClientID:     p.Auth.ClientID,
				ClientSecret: p.Auth.ClientSecret,
				Scopes:       p.Auth.Scopes,
			},
		}
	}

	for i, f := range yamlConfig.Feeds {
		config.Feeds[i] = FeedData{
			Name:                   f.Name,
			Provider:               f.Provider,
			Title:                  f.Title,
			FolderTitle:            f.FolderTitle,
			StyleMode:              f.StyleMode,
			Archive:                f.Archive,
			EntryName:              f.EntryName,
			Pretty:                 f.Pretty,
			RefreshSeconds:         f.RefreshSeconds,
			RequireAltitude:        f.RequireAltitude,
			ZeroCoordinatesMissing: f.ZeroCoordinatesMissing,
		}
		if f.Bounds != nil {
			config.Feeds[i].Bounds = &BoundsData{
				LatMin: f.Bounds.LatMin,
				LatMax: f.Bounds.LatMax,
				LonMin: f.Bounds.LonMin,
				LonMax: f.Bounds.LonMax,
			}
		}
	}

	return config, nil
}

func (y *YAMLProvider) load() error {
	if y.config != nil {
		return nil
	}
	_, err := y.LoadConfig()
	return err
}

// GetServer returns the HTTP server configuration
func (y *YAMLProvider) GetServer() (*ServerData, error) {
	if err := y.load(); err != nil {
		return nil, err
	}
	return &y.config.Server, nil
}

// GetProviders returns provider configurations
func (y *YAMLProvider) GetProviders() ([]ProviderData, error) {
	if err := y.load(); err != nil {
		return nil, err
	}
	return y.config.Providers, nil
}

// GetFeeds returns feed configurations
func (y *YAMLProvider) GetFeeds() ([]FeedData, error) {
	if err := y.load(); err != nil {
		return nil, err
	}
	return y.config.Feeds, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with hyphenated keys
type ServerYAML struct {
	ListenAddr   string `yaml:"listen-addr,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	PublicURL    string `yaml:"public-url,omitempty"`
	ReadTimeout  string `yaml:"read-timeout,omitempty"`
	WriteTimeout string `yaml:"write-timeout,omitempty"`
}

type LoggingYAML struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
	MaxAgeDays int    `yaml:"max-age-days,omitempty"`
}

type TracingYAML struct {
	Enabled     bool    `yaml:"enabled,omitempty"`
	Exporter    string  `yaml:"exporter,omitempty"`
	Endpoint    string  `yaml:"endpoint,omitempty"`
	SampleRatio float64 `yaml:"sample-ratio,omitempty"`
	ServiceName string  `yaml:"service-name,omitempty"`
}

type ProviderYAML struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Endpoint  string   `yaml:"endpoint,omitempty"`
	Timeout   string   `yaml:"timeout,omitempty"`
	UserAgent string   `yaml:"user-agent,omitempty"`
	Auth      AuthYAML `yaml:"auth,omitempty"`
}

type AuthYAML struct {
	Type         string   `yaml:"type,omitempty"`
	HeaderName   string   `yaml:"header-name,omitempty"`
	HeaderValue  string   `yaml:"header-value,omitempty"`
	TokenURL     string   `yaml:"token-url,omitempty"`
	ClientID     string   `yaml:"client-id,omitempty"`
	ClientSecret string   `yaml:"client-secret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

type FeedYAML struct {
	Name                   string      `yaml:"name"`
	Provider               string      `yaml:"provider"`
	Title                  string      `yaml:"title,omitempty"`
	FolderTitle            string      `yaml:"folder-title,omitempty"`
	StyleMode              string      `yaml:"style-mode,omitempty"`
	Archive                bool        `yaml:"archive,omitempty"`
	EntryName              string      `yaml:"entry-name,omitempty"`
	Pretty                 bool        `yaml:"pretty,omitempty"`
	RefreshSeconds         int         `yaml:"refresh-seconds,omitempty"`
	RequireAltitude        bool        `yaml:"require-altitude,omitempty"`
	ZeroCoordinatesMissing bool        `yaml:"zero-coordinates-missing,omitempty"`
	Bounds                 *BoundsYAML `yaml:"bounds,omitempty"`
}

type BoundsYAML struct {
	LatMin float64 `yaml:"lat-min"`
	LatMax float64 `yaml:"lat-max"`
	LonMin float64 `yaml:"lon-min"`
	LonMax float64 `yaml:"lon-max"`
}
