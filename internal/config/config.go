// Package config loads server configuration.
//
// Values are layered, each layer overriding the one before it:
//
//  1. Default()
//  2. a YAML file named by --config or TODOLISTS_CONFIG
//  3. environment variables (PORT, DB_PATH, JWT_SECRET, ...)
//  4. command-line flags that were explicitly set
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	GitHub   GitHubConfig   `yaml:"github"`
	Sharing  SharingConfig  `yaml:"sharing"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins lists the origins the JSON API answers cross-origin
	// requests from.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RedisConfig is optional. With Addr empty, logouts are remembered in
// process memory only.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	// JWTSecret signs session tokens. When empty the server makes up a
	// random one at startup and every restart logs everybody out.
	JWTSecret     string        `yaml:"jwt_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookies bool          `yaml:"secure_cookies"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
}

// GitHubConfig enables "Sign in with GitHub" when ClientID and ClientSecret
// are both set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Enabled reports whether GitHub sign-in is configured.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type SharingConfig struct {
	// OwnerOnly lets only a list's owner share it.
	OwnerOnly bool `yaml:"owner_only"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is "text" (colored, for terminals) or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "data/todolists.db",
		},
		Auth: AuthConfig{
			SessionTTL: 14 * 24 * time.Hour,
			BcryptCost: 12,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from args (without the program name) and
// the process environment.
func Load(args []string) (*Config, error) {
	return load(args, os.Getenv)
}

func load(args []string, getenv func(string) string) (*Config, error) {
	fs := pflag.NewFlagSet("todolists", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (env TODOLISTS_CONFIG)")
	port := fs.Int("port", 0, "HTTP listen port")
	dbDriver := fs.String("database-driver", "", "storage backend: sqlite or postgres")
	dbPath := fs.String("db-path", "", "SQLite database file")
	pgDSN := fs.String("postgres-dsn", "", "PostgreSQL connection string")
	redisAddr := fs.String("redis-addr", "", "Redis address for session revocation")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	logFormat := fs.String("log-format", "", "text or json")
	ownerOnly := fs.Bool("sharing-owner-only", false, "only list owners may share their lists")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}

	cfg := Default()

	path := *configPath
	if path == "" {
		path = getenv("TODOLISTS_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	if fs.Changed("port") {
		cfg.Server.Port = *port
	}
	if fs.Changed("database-driver") {
		cfg.Database.Driver = *dbDriver
	}
	if fs.Changed("db-path") {
		cfg.Database.Path = *dbPath
	}
	if fs.Changed("postgres-dsn") {
		cfg.Database.PostgresDSN = *pgDSN
	}
	if fs.Changed("redis-addr") {
		cfg.Redis.Addr = *redisAddr
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if fs.Changed("sharing-owner-only") {
		cfg.Sharing.OwnerOnly = *ownerOnly
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path. Unknown keys are an error so a
// typo doesn't silently fall back to a default.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		c.Server.Port = p
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DB_PATH", &c.Database.Path)
	str("POSTGRES_DSN", &c.Database.PostgresDSN)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("GITHUB_CLIENT_ID", &c.GitHub.ClientID)
	str("GITHUB_CLIENT_SECRET", &c.GitHub.ClientSecret)
	str("GITHUB_CALLBACK_URL", &c.GitHub.CallbackURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if v := getenv("SHARING_OWNER_ONLY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid SHARING_OWNER_ONLY %q: %w", v, err)
		}
		c.Sharing.OwnerOnly = b
	}
	return nil
}

// Validate rejects values the server can't start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Database.PostgresDSN == "" {
			errs = append(errs, errors.New("database.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost %d must be between 4 and 31", c.Auth.BcryptCost))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
