package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Auth struct {
		Issuer   string `mapstructure:"issuer"`
		Audience string `mapstructure:"audience"`
	} `mapstructure:"auth"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Cache struct {
		Backend       string        `mapstructure:"backend"`
		RedisURL      string        `mapstructure:"redis_url"`
		PostgresDSN   string        `mapstructure:"postgres_dsn"`
		KeyPrefix     string        `mapstructure:"key_prefix"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
	} `mapstructure:"cache"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	RateLimit struct {
		Tier          string         `mapstructure:"tier"`
		Window        time.Duration  `mapstructure:"window"`
		ClassLimits   map[string]int `mapstructure:"class_limits"`
		SweepInterval time.Duration  `mapstructure:"sweep_interval"`
	} `mapstructure:"ratelimit"`
	Providers struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		OpenWeather struct {
			APIKey  string `mapstructure:"api_key"`
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"openweather"`
		Amadeus struct {
			APIKey    string `mapstructure:"api_key"`
			APISecret string `mapstructure:"api_secret"`
			BaseURL   string `mapstructure:"base_url"`
		} `mapstructure:"amadeus"`
		Wikipedia struct {
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"wikipedia"`
		DuckDuckGo struct {
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"duckduckgo"`
		ExchangeRate struct {
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"exchangerate"`
	} `mapstructure:"providers"`
	Planner struct {
		FanOutLimit int `mapstructure:"fan_out_limit"`
	} `mapstructure:"planner"`
}

// Cache backends understood by CacheBackend.
const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// LoadConfig loads the configuration from an optional .env file, a config
// file and the environment, in increasing order of precedence.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.Cache.Backend = config.CacheBackend()
	return &config, nil
}

// envAliases binds the conventional variable names used by deployments.
var envAliases = map[string]string{
	"auth.issuer":                   "OIDC_ISSUER",
	"auth.audience":                 "OIDC_AUDIENCE",
	"cache.redis_url":               "REDIS_URL",
	"cache.postgres_dsn":            "DATABASE_URL",
	"providers.openweather.api_key": "OPENWEATHER_API_KEY",
	"providers.amadeus.api_key":     "AMADEUS_API_KEY",
	"providers.amadeus.api_secret":  "AMADEUS_API_SECRET",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "certs/server.crt")
	v.SetDefault("tls.key_file", "certs/server.key")
	v.SetDefault("tls.hostnames", []string{"localhost", "127.0.0.1"})

	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("cache.backend", BackendAuto)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.postgres_dsn", "")
	v.SetDefault("cache.key_prefix", "cityplanner")
	v.SetDefault("cache.sweep_interval", 5*time.Minute)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "cityplanner")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("ratelimit.tier", "free")
	v.SetDefault("ratelimit.window", time.Hour)
	v.SetDefault("ratelimit.class_limits.flight", 20)
	v.SetDefault("ratelimit.class_limits.hotel", 20)
	v.SetDefault("ratelimit.class_limits.currency", 50)
	v.SetDefault("ratelimit.sweep_interval", 10*time.Minute)

	v.SetDefault("providers.timeout", 10*time.Second)
	v.SetDefault("providers.openweather.api_key", "")
	v.SetDefault("providers.openweather.base_url", "https://api.openweathermap.org")
	v.SetDefault("providers.amadeus.api_key", "")
	v.SetDefault("providers.amadeus.api_secret", "")
	v.SetDefault("providers.amadeus.base_url", "https://test.api.amadeus.com")
	v.SetDefault("providers.wikipedia.base_url", "https://en.wikipedia.org")
	v.SetDefault("providers.duckduckgo.base_url", "https://api.duckduckgo.com")
	v.SetDefault("providers.exchangerate.base_url", "https://open.er-api.com")

	v.SetDefault("planner.fan_out_limit", 4)
}

// CacheBackend resolves the "auto" backend: Redis when a Redis URL is set,
// Postgres when a DSN is set, memory otherwise.
func (c *Config) CacheBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if backend != "" && backend != BackendAuto {
		return backend
	}
	switch {
	case c.Cache.RedisURL != "":
		return BackendRedis
	case c.Cache.PostgresDSN != "":
		return BackendPostgres
	default:
		return BackendMemory
	}
}

// PostgresDSN returns the explicit DSN or one built from the db section.
func (c *Config) PostgresDSN() string {
	if c.Cache.PostgresDSN != "" {
		return c.Cache.PostgresDSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

// CacheDSN returns the connection string for the resolved cache backend.
func (c *Config) CacheDSN() string {
	switch c.CacheBackend() {
	case BackendRedis:
		return c.Cache.RedisURL
	case BackendPostgres:
		return c.PostgresDSN()
	default:
		return ""
	}
}
