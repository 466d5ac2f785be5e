package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const developmentJWTSecret = "development-only-secret"

// DefaultOrigins are always allowed to call the API cross-origin.
var DefaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string `env:"APP_NAME" envDefault:"todo-backend"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	HTTP        HTTPConfig
	CORS        CORSConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	NATS        NATSConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port         string        `env:"SERVER_PORT" envDefault:"8000"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	MaxConn      int           `env:"SERVER_MAX_CONN" envDefault:"0"`
}

// CORSConfig holds the optional extra origins and the resolved allow-list.
type CORSConfig struct {
	FrontendURL string `env:"FRONTEND_URL"`
	AuthURL     string `env:"BETTER_AUTH_URL"`

	// AllowedOrigins is computed by Load and must be treated as read-only.
	AllowedOrigins []string `env:"-"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	Name            string        `env:"DB_NAME" envDefault:"todo"`
	User            string        `env:"DB_USER" envDefault:"todo"`
	Password        string        `env:"DB_PASSWORD"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxConnLifetime time.Duration `env:"DB_CONN_LIFETIME" envDefault:"1h"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
}

type RedisConfig struct {
	URL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"todo-backend"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

// NATSConfig enables task event publishing when URL is set.
type NATSConfig struct {
	URL           string `env:"NATS_URL"`
	SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"todo"`
}

type BufferConfig struct {
	Path         string        `env:"BOLTDB_PATH" envDefault:"./data/buffer.db"`
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"30s"`
	MaxRetry     int           `env:"MAX_RETRY_ATTEMPTS" envDefault:"3"`
	Retention    time.Duration `env:"BUFFER_RETENTION" envDefault:"24h"`
}

type ContextConfig struct {
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type LoggerConfig struct {
	Level    string `env:"LOG_LEVEL" envDefault:"info"`
	Encoding string `env:"LOG_ENCODING" envDefault:"json"`
}

// MigrationsConfig controls the schema step. An empty Path uses the embedded migrations.
type MigrationsConfig struct {
	Enabled bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	Path    string `env:"MIGRATIONS_PATH"`
}

// Load reads configuration from environment variables (optionally .env)
// and derives the database URL and the CORS allow-list.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg.Database)
	}

	cfg.CORS.AllowedOrigins = AllowedOrigins(cfg.CORS.FrontendURL, cfg.CORS.AuthURL)

	if cfg.JWT.Secret == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("JWT_SECRET is required outside development")
		}
		cfg.JWT.Secret = developmentJWTSecret
	}

	return &cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// AllowedOrigins returns DefaultOrigins followed by every non-empty extra origin.
func AllowedOrigins(extra ...string) []string {
	origins := make([]string, 0, len(DefaultOrigins)+len(extra))
	for _, origin := range append(append([]string(nil), DefaultOrigins...), extra...) {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}

func buildPostgresURL(db DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     db.Host + ":" + db.Port,
		Path:     "/" + db.Name,
		RawQuery: "sslmode=" + url.QueryEscape(db.SSLMode),
	}
	return u.String()
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// UsesDevelopmentSecret reports whether the JWT secret fell back to the built-in value.
func (c *Config) UsesDevelopmentSecret() bool {
	return c.JWT.Secret == developmentJWTSecret
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
