// Package config loads the application configuration.
//
// Values are layered, lowest priority first:
//
//  1. built-in defaults (defaultConfig)
//  2. an optional YAML file (CONFIG_PATH, config.yaml or config.yml)
//  3. environment variables, mapped explicitly by envTransformFunc
//
// A .env file in the working directory is loaded into the process
// environment before step 3, so local development can keep SECRET_KEY and
// DATABASE_URL there.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

var defaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	GitHub   GitHubConfig   `koanf:"github"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port               int           `koanf:"port"`
	Host               string        `koanf:"host"`
	ReadTimeout        time.Duration `koanf:"read_timeout"`
	WriteTimeout       time.Duration `koanf:"write_timeout"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
	// LoginRateLimit is the number of login/register POSTs allowed per
	// client IP per minute. Zero disables the limit.
	LoginRateLimit int `koanf:"login_rate_limit"`
	// MetricsToken lets a scraper read /metrics with
	// "Authorization: Bearer <token>". Admin sessions can always read it.
	MetricsToken string `koanf:"metrics_token"`
}

// Addr is the listen address for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// URL uses the SQLAlchemy-style form sqlite:///path/to/file.db; a bare
	// path is accepted as well.
	URL string `koanf:"url"`
}

// SQLitePath extracts the file path (or ":memory:") from URL.
func (d DatabaseConfig) SQLitePath() (string, error) {
	u := strings.TrimSpace(d.URL)
	switch {
	case u == "":
		return "", fmt.Errorf("config: database url is empty")
	case strings.HasPrefix(u, "sqlite:///"):
		u = strings.TrimPrefix(u, "sqlite:///")
	case strings.HasPrefix(u, "sqlite://"):
		u = strings.TrimPrefix(u, "sqlite://")
	case strings.Contains(u, "://"):
		return "", fmt.Errorf("config: unsupported database url %q (only sqlite is supported)", d.URL)
	}
	if u == "" {
		return "", fmt.Errorf("config: database url %q has no path", d.URL)
	}
	return u, nil
}

type AuthConfig struct {
	SecretKey         string        `koanf:"secret_key"`
	SessionTTL        time.Duration `koanf:"session_ttl"`
	AdminEmail        string        `koanf:"admin_email"`
	MinPasswordLength int           `koanf:"min_password_length"`
	// SecureCookies sets the Secure attribute on the session and flash
	// cookies. Turn it on behind HTTPS.
	SecureCookies bool `koanf:"secure_cookies"`
}

// GitHubConfig enables "Entrar com GitHub" when both ClientID and
// ClientSecret are set.
type GitHubConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	CallbackURL  string `koanf:"callback_url"`
}

func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               5000,
			Host:               "",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       15 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			CORSAllowedOrigins: []string{},
			LoginRateLimit:     10,
		},
		Database: DatabaseConfig{
			URL: "sqlite:///musics.db",
		},
		Auth: AuthConfig{
			SessionTTL:        24 * time.Hour,
			AdminEmail:        "admin@gmail.com",
			MinPasswordLength: 6,
		},
		GitHub: GitHubConfig{
			CallbackURL: "http://localhost:5000/auth/github/callback",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Default returns the built-in configuration. Tests use it as a base.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from defaults, the config file and the
// environment. An explicit path takes precedence over CONFIG_PATH and the
// default search paths; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	// FLASK_SECRET_KEY is the name older deployments use. SECRET_KEY, the
	// config file and the defaults all take precedence over it.
	if k.String("auth.secret_key") == "" {
		if v := os.Getenv("FLASK_SECRET_KEY"); v != "" {
			if err := k.Set("auth.secret_key", v); err != nil {
				return nil, fmt.Errorf("config: setting auth.secret_key: %w", err)
			}
		}
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_allowed_origins",
}

// splitSliceFields turns comma-separated env values into slices. Values that
// came from YAML are already slices and are left alone.
func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("config: setting %s: %w", path, err)
		}
	}
	return nil
}

// envMappings lists the environment variables the application reads, apart
// from the FLASK_SECRET_KEY fallback handled in Load.
var envMappings = map[string]string{
	"port":                 "server.port",
	"host":                 "server.host",
	"cors_allowed_origins": "server.cors_allowed_origins",
	"login_rate_limit":     "server.login_rate_limit",
	"metrics_token":        "server.metrics_token",
	"database_url":         "database.url",
	"secret_key":           "auth.secret_key",
	"session_ttl":          "auth.session_ttl",
	"admin_email":          "auth.admin_email",
	"min_password_length":  "auth.min_password_length",
	"secure_cookies":       "auth.secure_cookies",
	"github_client_id":     "github.client_id",
	"github_client_secret": "github.client_secret",
	"github_callback_url":  "github.callback_url",
	"log_level":            "log.level",
	"log_format":           "log.format",
}

// envTransformFunc maps an environment variable name to its config path.
// Unknown variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
