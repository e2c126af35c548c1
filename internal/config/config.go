package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all the configuration for the application.
type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer `yaml:"http_server"`
	Database   `yaml:"database"`
	Redis      `yaml:"redis"`
	Cache      `yaml:"cache"`
	RateLimit  `yaml:"rate_limit"`
	Analytics  `yaml:"analytics"`
	Links      `yaml:"links"`
}

// HTTPServer holds HTTP server specific configuration.
type HTTPServer struct {
	Address      string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Database holds PostgreSQL connection configuration.
type Database struct {
	Host            string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string `yaml:"password" env:"DB_PASSWORD" env-default:""`
	DBName          string `yaml:"dbname" env:"DB_NAME" env-default:"linkr"`
	SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	Timezone        string `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"50"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// Redis holds connection configuration for the shared Redis instance
// backing the link cache, the rate-limit windows and the analytics queue.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Cache holds link-cache tuning.
type Cache struct {
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"300s"`
}

// RateLimitPolicy is one operation class limit: N requests per window.
type RateLimitPolicy struct {
	Limit  int           `yaml:"limit" env:"LIMIT"`
	Window time.Duration `yaml:"window" env:"WINDOW"`
}

// RateLimit holds per-operation-class limiter policies.
type RateLimit struct {
	Redirect       RateLimitPolicy `yaml:"redirect" env-prefix:"RATE_REDIRECT_"`
	Shorten        RateLimitPolicy `yaml:"shorten" env-prefix:"RATE_SHORTEN_"`
	VerifyPassword RateLimitPolicy `yaml:"verify_password" env-prefix:"RATE_VERIFY_"`
}

// Analytics holds queue and aggregator tuning.
type Analytics struct {
	BatchSize      int           `yaml:"batch_size" env:"ANALYTICS_BATCH_SIZE" env-default:"100"`
	Interval       time.Duration `yaml:"interval" env:"ANALYTICS_INTERVAL" env-default:"5s"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout" env:"ANALYTICS_ENQUEUE_TIMEOUT" env-default:"250ms"`
}

// Pages holds the user-facing terminal page locations the resolver
// redirects to instead of returning bare API errors.
type Pages struct {
	NotFound      string `yaml:"not_found" env:"PAGE_NOT_FOUND" env-default:"/link/not-found"`
	Disabled      string `yaml:"disabled" env:"PAGE_DISABLED" env-default:"/link/disabled"`
	Expired       string `yaml:"expired" env:"PAGE_EXPIRED" env-default:"/link/expired"`
	Password      string `yaml:"password" env:"PAGE_PASSWORD" env-default:"/link/password"`
	SafetyWarning string `yaml:"safety_warning" env:"PAGE_SAFETY" env-default:"/link/warning"`
}

// Links holds service-specific configuration for short links.
type Links struct {
	CodeLength  int           `yaml:"code_length" env:"CODE_LENGTH" env-default:"6"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
	TokenSecret string        `yaml:"token_secret" env:"LINK_TOKEN_SECRET" env-default:"change-me-in-production"`
	TokenTTL    time.Duration `yaml:"token_ttl" env:"LINK_TOKEN_TTL" env-default:"15m"`
	Pages       Pages         `yaml:"pages"`
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	cfg := Config{
		RateLimit: RateLimit{
			Redirect:       RateLimitPolicy{Limit: 100, Window: time.Minute},
			Shorten:        RateLimitPolicy{Limit: 10, Window: time.Minute},
			VerifyPassword: RateLimitPolicy{Limit: 5, Window: time.Minute},
		},
	}

	// Check if config file path is specified
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml" // default path
	}

	// Try to load config file
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("cannot read config: %s", err)
		}
	} else {
		// If config file doesn't exist, use environment variables only
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from environment: %s", err)
		}
	}

	return &cfg
}
