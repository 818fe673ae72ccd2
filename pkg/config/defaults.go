package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort            = 8080
	DefaultReadTimeout     = "15s"
	DefaultWriteTimeout    = "60s"
	DefaultProviderTimeout = "15s"
	DefaultFeedTitle       = "Tráfego Aéreo"
	DefaultFolderTitle     = "Aeronaves"
	DefaultRefreshSeconds  = 30
	DefaultServiceName     = "flightkml"
)

// Known provider, auth, style and exporter names.
var (
	providerTypes = []string{"flightradar", "opensky"}
	authTypes     = []string{"", "none", "header", "oauth2"}
	styleModes    = []string{"", "none", "shared", "inline"}
	exporters     = []string{"", "stdout", "otlp", "otlpgrpc"}
)

// ApplyDefaults fills in everything a minimal configuration leaves out. When
// no port is configured, $PORT is honored before DefaultPort.
func ApplyDefaults(c *ConfigData) {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
		if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}

	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB == 0 {
			c.Logging.MaxSizeMB = 100
		}
		if c.Logging.MaxBackups == 0 {
			c.Logging.MaxBackups = 3
		}
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.Enabled && c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}

	for i := range c.Providers {
		p := &c.Providers[i]
		p.Type = strings.ToLower(p.Type)
		if p.Timeout == "" {
			p.Timeout = DefaultProviderTimeout
		}
		if p.Auth.Type == "" {
			p.Auth.Type = "none"
		}
	}

	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Provider == "" && len(c.Providers) == 1 {
			f.Provider = c.Providers[0].Name
		}
		if f.Title == "" {
			f.Title = DefaultFeedTitle
		}
		if f.FolderTitle == "" {
			f.FolderTitle = DefaultFolderTitle
		}
		if f.StyleMode == "" {
			f.StyleMode = "inline"
		}
		if f.RefreshSeconds == 0 {
			f.RefreshSeconds = DefaultRefreshSeconds
		}
	}
}

// Validate reports every problem found in the configuration at once.
func Validate(c *ConfigData) error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	for name, d := range map[string]string{"read_timeout": c.Server.ReadTimeout, "write_timeout": c.Server.WriteTimeout} {
		if _, err := ParseDuration(d, 0); err != nil {
			errs = append(errs, fmt.Errorf("server %s: %w", name, err))
		}
	}
	if c.Server.PublicURL != "" {
		if u, err := url.Parse(c.Server.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server public_url %q is not an absolute URL", c.Server.PublicURL))
		}
	}

	if !oneOf(c.Tracing.Exporter, exporters) {
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing sample_ratio %v outside [0, 1]", c.Tracing.SampleRatio))
	}

	providers := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, errors.New("provider without name"))
			continue
		}
		if providers[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate provider %q", p.Name))
		}
		providers[p.Name] = true
		if !oneOf(p.Type, providerTypes) {
			errs = append(errs, fmt.Errorf("provider %s: unknown type %q", p.Name, p.Type))
		}
		if !oneOf(p.Auth.Type, authTypes) {
			errs = append(errs, fmt.Errorf("provider %s: unknown auth type %q", p.Name, p.Auth.Type))
		}
		if _, err := ParseDuration(p.Timeout, 0); err != nil {
			errs = append(errs, fmt.Errorf("provider %s timeout: %w", p.Name, err))
		}
	}

	if len(c.Feeds) == 0 {
		errs = append(errs, errors.New("no feeds configured"))
	}
	feeds := make(map[string]bool, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Name == "" || strings.ContainsAny(f.Name, "/.?#") {
			errs = append(errs, fmt.Errorf("invalid feed name %q", f.Name))
			continue
		}
		if feeds[f.Name] {
			errs = append(errs, fmt.Errorf("duplicate feed %q", f.Name))
		}
		feeds[f.Name] = true
		if !providers[f.Provider] {
			errs = append(errs, fmt.Errorf("feed %s: unknown provider %q", f.Name, f.Provider))
		}
		if !oneOf(f.StyleMode, styleModes) {
			errs = append(errs, fmt.Errorf("feed %s: unknown style mode %q", f.Name, f.StyleMode))
		}
		if f.RefreshSeconds < 0 {
			errs = append(errs, fmt.Errorf("feed %s: negative refresh_seconds", f.Name))
		}
	}

	return errors.Join(errs...)
}

// ParseDuration parses a Go duration string; empty yields def.
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return true
		}
	}
	return false
}
