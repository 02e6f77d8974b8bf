package commerce

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config holds the complete client configuration, loadable from environment
// variables (GRAMKART_ prefix), flags, or YAML config files.
type Config struct {
	API      APIConfig
	Database DatabaseConfig
	Geo      GeoConfig
	Postal   PostalConfig
	Monitor  MonitorConfig
}

// APIConfig points the client at the commerce collaborator.
type APIConfig struct {
	BaseURL    string        `usage:"Commerce backend base URL (GRAMKART_API_BASE_URL)" flag:"api-base-url"`
	Key        string        `usage:"Collaborator API key" flag:"api-key"`
	Timeout    time.Duration `default:"30s" usage:"Per-request timeout" flag:"api-timeout"`
	RateLimit  int           `default:"60" usage:"Max outbound requests per path per window, 0 disables" flag:"api-rate-limit"`
	RateWindow time.Duration `default:"1m" usage:"Outbound rate limit window" flag:"api-rate-window"`
}

// MonitorConfig tunes the connectivity monitor.
type MonitorConfig struct {
	Interval time.Duration `default:"30s" usage:"Collaborator probe interval, 0 disables" flag:"monitor-interval"`
	Timeout  time.Duration `default:"5s" usage:"Per-probe timeout" flag:"monitor-timeout"`
}

// DatabaseConfig selects the client-state backend. An empty URL keeps all
// state in process memory.
type DatabaseConfig struct {
	URL string `usage:"PostgreSQL connection URL for persisted client state (GRAMKART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// GeoConfig tunes the location resolver.
type GeoConfig struct {
	AccuracyThreshold float64       `default:"50" usage:"Acceptable GPS error radius in meters" flag:"geo-accuracy"`
	ImproveWindow     time.Duration `default:"8s" usage:"How long to wait for a better fix" flag:"geo-improve-window"`
	RequestTimeout    time.Duration `default:"10s" usage:"Platform position request timeout" flag:"geo-timeout"`
}

// PostalConfig points at the offline pincode directory shards. An empty dir
// disables the offline directory; lookups then go to the collaborator only.
type PostalConfig struct {
	Dir string `usage:"Directory holding gzipped pincode shards" flag:"postal-dir"`
}

// LoadConfig loads configuration from a local .env file (when present),
// environment variables, and YAML config files.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GRAMKART",
		Files:     []string{"config.yaml", "/etc/gramkart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.API.BaseURL == "" {
		return nil, errors.New("API base URL is required: set GRAMKART_API_BASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL to the GRAMKART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Database.URL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Database.URL = v
		}
	}
}
