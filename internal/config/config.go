package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Scraper  ScraperConfig
	Tor      TorConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Status   StatusConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	InputFile         string
	OutputDir         string
	MaxWorkers        int
	BatchSize         int
	BatchPause        time.Duration
	RetryAttempts     int
	FetchTimeout      time.Duration
	RotatingTimeout   time.Duration
	RequestsPerSecond float64
	SearchEndpoint    string
}

type TorConfig struct {
	Enabled         bool
	Host            string
	SocksPort       int
	ControlPort     int
	ControlPassword string
	IdentityWait    time.Duration
	PollInterval    time.Duration
	StrictRotation  bool
	EchoURL         string
	EchoTimeout     time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type StatusConfig struct {
	Addr string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Scraper: ScraperConfig{
			InputFile:         getEnvOrDefault("SCRAPER_INPUT_FILE", "category_paths.txt"),
			OutputDir:         getEnvOrDefault("SCRAPER_OUTPUT_DIR", "out"),
			MaxWorkers:        getIntOrDefault("SCRAPER_MAX_WORKERS", 3),
			BatchSize:         getIntOrDefault("SCRAPER_BATCH_SIZE", 5),
			BatchPause:        getDurationOrDefault("SCRAPER_BATCH_PAUSE", 10*time.Second),
			RetryAttempts:     getIntOrDefault("SCRAPER_RETRY_ATTEMPTS", 15),
			FetchTimeout:      getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 20*time.Second),
			RotatingTimeout:   getDurationOrDefault("SCRAPER_ROTATING_FETCH_TIMEOUT", 25*time.Second),
			RequestsPerSecond: getFloatOrDefault("SCRAPER_REQUEST_RPS", 0),
			SearchEndpoint:    getEnvOrDefault("SCRAPER_SEARCH_ENDPOINT", "https://www.bing.com/shop"),
		},
		Tor: TorConfig{
			Enabled:         getBoolOrDefault("TOR_ENABLED", true),
			Host:            getEnvOrDefault("TOR_HOST", "127.0.0.1"),
			SocksPort:       getIntOrDefault("TOR_SOCKS_PORT", 9050),
			ControlPort:     getIntOrDefault("TOR_CONTROL_PORT", 9051),
			ControlPassword: os.Getenv("TOR_CONTROL_PASSWORD"),
			IdentityWait:    getDurationOrDefault("TOR_IDENTITY_WAIT", 15*time.Second),
			PollInterval:    getDurationOrDefault("TOR_POLL_INTERVAL", 3*time.Second),
			StrictRotation:  getBoolOrDefault("TOR_STRICT_ROTATION", false),
			EchoURL:         getEnvOrDefault("TOR_ECHO_URL", "https://api.ipify.org?format=json"),
			EchoTimeout:     getDurationOrDefault("TOR_ECHO_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "shop_scraper"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:shop_listings"),
		},
		Status: StatusConfig{
			Addr: getEnvOrDefault("STATUS_ADDR", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Scraper.InputFile) == "" {
		return fmt.Errorf("SCRAPER_INPUT_FILE is required")
	}

	if c.Scraper.MaxWorkers < 1 {
		return fmt.Errorf("SCRAPER_MAX_WORKERS must be at least 1")
	}

	if c.Scraper.BatchSize < 1 {
		return fmt.Errorf("SCRAPER_BATCH_SIZE must be at least 1")
	}

	if c.Scraper.RetryAttempts < 0 {
		return fmt.Errorf("SCRAPER_RETRY_ATTEMPTS cannot be negative")
	}

	if c.Scraper.BatchPause < 0 {
		return fmt.Errorf("SCRAPER_BATCH_PAUSE cannot be negative")
	}

	if c.Scraper.RequestsPerSecond < 0 {
		return fmt.Errorf("SCRAPER_REQUEST_RPS cannot be negative")
	}

	if c.Tor.Enabled {
		if !validPort(c.Tor.SocksPort) {
			return fmt.Errorf("invalid TOR_SOCKS_PORT: %d", c.Tor.SocksPort)
		}
		if !validPort(c.Tor.ControlPort) {
			return fmt.Errorf("invalid TOR_CONTROL_PORT: %d", c.Tor.ControlPort)
		}
		if c.Tor.IdentityWait <= 0 {
			return fmt.Errorf("TOR_IDENTITY_WAIT must be positive")
		}
		if c.Tor.PollInterval <= 0 {
			return fmt.Errorf("TOR_POLL_INTERVAL must be positive")
		}
	}

	if c.Database.Enabled && c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Redis.Enabled && c.Redis.Stream == "" {
		return fmt.Errorf("REDIS_STREAM is required when redis is enabled")
	}

	return nil
}

// TorSocksAddr is the SOCKS5 endpoint used for proxied traffic.
func (c TorConfig) TorSocksAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.SocksPort)
}

func (c TorConfig) ControlAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.ControlPort)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
