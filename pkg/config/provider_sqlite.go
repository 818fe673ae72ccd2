package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/chrissnell/flightkml/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultConfigName = "default"

// SchemaMigrations returns the migrations that build the config database.
func SchemaMigrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrations, "migrations", "schema_migrations")
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens (creating if needed) the database at dbPath and
// brings its schema up to date.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	migrator := migrate.NewMigrator(db, SchemaMigrations(), nil)
	if err := migrator.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	if err := s.loadServer(config); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	providers, err := s.GetProviders()
	if err != nil {
		return nil, fmt.Errorf("failed to load providers: %w", err)
	}
	config.Providers = providers

	feeds, err := s.GetFeeds()
	if err != nil {
		return nil, fmt.Errorf("failed to load feeds: %w", err)
	}
	config.Feeds = feeds

	return config, nil
}

// GetServer returns the HTTP server configuration
func (s *SQLiteProvider) GetServer() (*ServerData, error) {
	config := &ConfigData{}
	if err := s.loadServer(config); err != nil {
		return nil, err
	}
	return &config.Server, nil
}

// loadServer fills the server, logging and tracing sections, which share a row.
func (s *SQLiteProvider) loadServer(config *ConfigData) error {
	query := `
		SELECT listen_addr, port, public_url, read_timeout, write_timeout,
		       log_file, log_max_size_mb, log_max_backups, log_max_age_days,
		       tracing_enabled, tracing_exporter, tracing_endpoint,
		       tracing_sample_ratio, tracing_service_name
		FROM server_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	var listenAddr, publicURL, readTimeout, writeTimeout, logFile sql.NullString
	var tracingExporter, tracingEndpoint, tracingServiceName sql.NullString
	var port, logMaxSize, logMaxBackups, logMaxAge sql.NullInt64
	var tracingRatio sql.NullFloat64
	var tracingEnabled bool

	err := s.db.QueryRow(query, defaultConfigName).Scan(
		&listenAddr, &port, &publicURL, &readTimeout, &writeTimeout,
		&logFile, &logMaxSize, &logMaxBackups, &logMaxAge,
		&tracingEnabled, &tracingExporter, &tracingEndpoint,
		&tracingRatio, &tracingServiceName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query server config: %w", err)
	}

	config.Server = ServerData{
		ListenAddr:   listenAddr.String,
		Port:         int(port.Int64),
		PublicURL:    publicURL.String,
		ReadTimeout:  readTimeout.String,
		WriteTimeout: writeTimeout.String,
	}
	config.Logging = LoggingData{
		File:       logFile.String,
		MaxSizeMB:  int(logMaxSize.Int64),
		MaxBackups: int(logMaxBackups.Int64),
		MaxAgeDays: int(logMaxAge.Int64),
	}
	config.Tracing = TracingData{
		Enabled:     tracingEnabled,
		Exporter:    tracingExporter.String,
		Endpoint:    tracingEndpoint.String,
		SampleRatio: tracingRatio.Float64,
		ServiceName: tracingServiceName.String,
	}
	return nil
}

// GetProviders returns provider configurations in their configured order
func (s *SQLiteProvider) GetProviders() ([]ProviderData, error) {
	query := `
		SELECT name, type, endpoint, timeout, user_agent,
		       auth_type, auth_header_name, auth_header_value,
		       auth_token_url, auth_client_id, auth_client_secret, auth_scopes
		FROM provider_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
		ORDER BY position
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var providers []ProviderData
	for rows.Next() {
		var p ProviderData
		var endpoint, timeout, userAgent sql.NullString
		var authType, headerName, headerValue, tokenURL, clientID, clientSecret, scopes sql.NullString

		if err := rows.Scan(
			&p.Name, &p.Type, &endpoint, &timeout, &userAgent,
			&authType, &headerName, &headerValue,
			&tokenURL, &clientID, &clientSecret, &scopes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan provider row: %w", err)
		}

		p.Endpoint = endpoint.String
		p.Timeout = timeout.String
		p.UserAgent = userAgent.String
		p.Auth = AuthData{
			Type:         authType.String,
			HeaderName:   headerName.String,
			HeaderValue:  headerValue.String,
			TokenURL:     tokenURL.String,
			ClientID:     clientID.String,
			ClientSecret: clientSecret.String,
		}
		if scopes.String != "" {
			p.Auth.Scopes = strings.Fields(scopes.String)
		}
		providers = append(providers, p)
	}

	return providers, rows.Err()
}

// GetFeeds returns feed configurations in their configured order
func (s *SQLiteProvider) GetFeeds() ([]FeedData, error) {
	query := `
		SELECT name, provider, title, folder_title, style_mode, archive, entry_name,
		       pretty, refresh_seconds, require_altitude, zero_coordinates_missing,
		       lat_min, lat_max, lon_min, lon_max
		FROM feed_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
		ORDER BY position
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []FeedData
	for rows.Next() {
		var f FeedData
		var title, folderTitle, styleMode, entryName sql.NullString
		var refresh sql.NullInt64
		var latMin, latMax, lonMin, lonMax sql.NullFloat64

		if err := rows.Scan(
			&f.Name, &f.Provider, &title, &folderTitle, &styleMode, &f.Archive, &entryName,
			&f.Pretty, &refresh, &f.RequireAltitude, &f.ZeroCoordinatesMissing,
			&latMin, &latMax, &lonMin, &lonMax,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}

		f.Title = title.String
		f.FolderTitle = folderTitle.String
		f.StyleMode = styleMode.String
		f.EntryName = entryName.String
		f.RefreshSeconds = int(refresh.Int64)

		if latMin.Valid && latMax.Valid && lonMin.Valid && lonMax.Valid {
			f.Bounds = &BoundsData{
				LatMin: latMin.Float64,
				LatMax: latMax.Float64,
				LonMin: lonMin.Float64,
				LonMax: lonMax.Float64,
			}
		}
		feeds = append(feeds, f)
	}

	return feeds, rows.Err()
}

// IsReadOnly returns false; the database can be written with SaveConfig
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	if err := s.insertServer(tx, configID, configData); err != nil {
		return fmt.Errorf("failed to insert server config: %w", err)
	}

	for i := range configData.Providers {
		if err := s.insertProvider(tx, configID, i, &configData.Providers[i]); err != nil {
			return fmt.Errorf("failed to insert provider %s: %w", configData.Providers[i].Name, err)
		}
	}

	for i := range configData.Feeds {
		if err := s.insertFeed(tx, configID, i, &configData.Feeds[i]); err != nil {
			return fmt.Errorf("failed to insert feed %s: %w", configData.Feeds[i].Name, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteProvider) upsertConfig(tx *sql.Tx, name string) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO configs (name, created_at, updated_at) VALUES (?, datetime('now'), datetime('now'))
		ON CONFLICT (name) DO UPDATE SET updated_at = datetime('now')
	`, name)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRow("SELECT id FROM configs WHERE name = ?", name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM server_configs WHERE config_id = ?",
		"DELETE FROM provider_configs WHERE config_id = ?",
		"DELETE FROM feed_configs WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertServer(tx *sql.Tx, configID int64, c *ConfigData) error {
	query := `
		INSERT INTO server_configs (
			config_id, listen_addr, port, public_url, read_timeout, write_timeout,
			log_file, log_max_size_mb, log_max_backups, log_max_age_days,
			tracing_enabled, tracing_exporter, tracing_endpoint,
			tracing_sample_ratio, tracing_service_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		configID, c.Server.ListenAddr, c.Server.Port, c.Server.PublicURL,
		c.Server.ReadTimeout, c.Server.WriteTimeout,
		c.Logging.File, c.Logging.MaxSizeMB, c.Logging.MaxBackups, c.Logging.MaxAgeDays,
		c.Tracing.Enabled, c.Tracing.Exporter, c.Tracing.Endpoint,
		c.Tracing.SampleRatio, c.Tracing.ServiceName,
	)
	return err
}

func (s *SQLiteProvider) insertProvider(tx *sql.Tx, configID int64, position int, p *ProviderData) error {
	query := `
		INSERT INTO provider_configs (
			config_id, position, name, type, endpoint, timeout, user_agent,
			auth_type, auth_header_name, auth_header_value,
			auth_token_url, auth_client_id, auth_client_secret, auth_scopes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		configID, position, p.Name, p.Type, p.Endpoint, p.Timeout, p.UserAgent,
		p.Auth.Type, p.Auth.HeaderName, p.Auth.HeaderValue,
		p.Auth.TokenURL, p.Auth.ClientID, p.Auth.ClientSecret, strings.Join(p.Auth.Scopes, " "),
	)
	return err
}

func (s *SQLiteProvider) insertFeed(tx *sql.Tx, configID int64, position int, f *FeedData) error {
	query := `
		INSERT INTO feed_configs (
			config_id, position, name, provider, title, folder_title, style_mode,
			archive, entry_name, pretty, refresh_seconds, require_altitude,
			zero_coordinates_missing, lat_min, lat_max, lon_min, lon_max
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var latMin, latMax, lonMin, lonMax sql.NullFloat64
	if f.Bounds != nil {
		latMin = sql.NullFloat64{Float64: f.Bounds.LatMin, Valid: true}
		latMax = sql.NullFloat64{Float64: f.Bounds.LatMax, Valid: true}
		lonMin = sql.NullFloat64{Float64: f.Bounds.LonMin, Valid: true}
		lonMax = sql.NullFloat64{Float64: f.Bounds.LonMax, Valid: true}
	}

	_, err := tx.Exec(query,
		configID, position, f.Name, f.Provider, f.Title, f.FolderTitle, f.StyleMode,
		f.Archive, f.EntryName, f.Pretty, f.RefreshSeconds, f.RequireAltitude,
		f.ZeroCoordinatesMissing, latMin, latMax, lonMin, lonMax,
	)
	return err
}
