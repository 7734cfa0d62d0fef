package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Upstream  UpstreamConfig
	Auth      AuthConfig
	Pricing   PricingConfig
	Sessions  SessionConfig
	FloorDB   FloorDBConfig
	RunDB     RunDBConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"3761"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"300s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"pricedesk-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// UpstreamConfig holds the upstream catalog/identity API settings.
type UpstreamConfig struct {
	// BaseURL serves the identity endpoints (sign-in, refresh).
	BaseURL string `envconfig:"UPSTREAM_BASE_URL" default:"https://bbu.umico.az/api/v1"`
	// CatalogURL serves the merchant product offer listing/update endpoints.
	CatalogURL string `envconfig:"UPSTREAM_CATALOG_URL" default:"https://catalog-admin-web.umico.az/v1"`
	// GlobalURL serves the catalog-wide product detail endpoint.
	GlobalURL string `envconfig:"UPSTREAM_GLOBAL_URL" default:"https://mp-catalog.umico.az/api/v1"`

	Timeout      time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"15s"`
	PerPage      int           `envconfig:"UPSTREAM_PER_PAGE" default:"100"`
	MerchantUUID string        `envconfig:"UPSTREAM_MERCHANT_UUID" default:""`

	// ExcludedSellerID marks offers whose global default offer belongs to this
	// seller as untouchable during bulk updates.
	ExcludedSellerID int64 `envconfig:"UPSTREAM_EXCLUDED_SELLER_ID" default:"1044"`
}

// AuthConfig holds upstream service credentials and the local login allow-list.
type AuthConfig struct {
	// ServiceUsername/ServicePassword authenticate against the upstream
	// identity provider. The user-facing login below is a separate credential.
	ServiceUsername string `envconfig:"UPSTREAM_USERNAME" default:""`
	ServicePassword string `envconfig:"UPSTREAM_PASSWORD" default:""`

	// AdminUsers is a comma-separated list of user:password pairs accepted by
	// the local login endpoint. Override in production.
	AdminUsers string `envconfig:"ADMIN_USERS" default:"admin:admin"`
}

// PricingConfig holds bulk price update tuning knobs.
type PricingConfig struct {
	MaxRetries    int           `envconfig:"PRICING_MAX_RETRIES" default:"3"`
	BaseDelay     time.Duration `envconfig:"PRICING_BASE_DELAY" default:"500ms"`
	BatchSize     int           `envconfig:"PRICING_BATCH_SIZE" default:"20"`
	BatchPause    time.Duration `envconfig:"PRICING_BATCH_PAUSE" default:"3s"`
	RecoveryPause time.Duration `envconfig:"PRICING_RECOVERY_PAUSE" default:"1s"`
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	Store string `envconfig:"SESSION_STORE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// FloorDBConfig holds price floor table persistence settings.
type FloorDBConfig struct {
	Type string `envconfig:"FLOOR_DB_TYPE" default:"file"` // file, sqlite, or postgres
	Path string `envconfig:"FLOOR_DB_PATH" default:"./data/floors.json"`
	// SQLite settings
	SQLitePath string `envconfig:"FLOOR_SQLITE_PATH" default:"./data/floors.db"`
	// PostgreSQL settings
	Host     string `envconfig:"FLOOR_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"FLOOR_DB_PORT" default:"5432"`
	Name     string `envconfig:"FLOOR_DB_NAME" default:"pricedesk"`
	User     string `envconfig:"FLOOR_DB_USER" default:"postgres"`
	Password string `envconfig:"FLOOR_DB_PASS" default:""`
	SSLMode  string `envconfig:"FLOOR_DB_SSLMODE" default:"disable"`
}

// RunDBConfig holds MySQL settings for the bulk run history log (optional).
type RunDBConfig struct {
	Enabled  bool   `envconfig:"RUN_DB_ENABLED" default:"false"`
	Host     string `envconfig:"RUN_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"RUN_DB_PORT" default:"3306"`
	Name     string `envconfig:"RUN_DB_NAME" default:"pricedesk"`
	User     string `envconfig:"RUN_DB_USER" default:"root"`
	Password string `envconfig:"RUN_DB_PASS" default:""`
}

// SchedulerConfig holds schedule persistence settings.
type SchedulerConfig struct {
	StatePath string `envconfig:"SCHEDULER_STATE_PATH" default:"./data/schedules.json"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (s *SessionConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// PostgresDSN returns the PostgreSQL connection string for the floor table.
func (f *FloorDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		f.User, f.Password, f.Host, f.Port, f.Name, f.SSLMode)
}

// DSN returns the MySQL data source name for the run log.
func (r *RunDBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		r.User, r.Password, r.Host, r.Port, r.Name)
}

// AdminAllowList parses AdminUsers into a username->password map.
func (a *AuthConfig) AdminAllowList() map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(a.AdminUsers, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, pass, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		users[name] = pass
	}
	return users
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
