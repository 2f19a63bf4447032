package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	pipelineerrors "sjsage522/leafletworker/pkg/errors"
)

// Store backends
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
)

// Config represents the application configuration
type Config struct {
	// Environment
	Environment string

	// Persistence
	StoreBackend           string `validate:"oneof=postgrest postgres"`
	SupabaseURL            string `validate:"omitempty,url"`
	SupabaseServiceRoleKey string
	DatabaseURL            string

	// Pipeline
	HTTPTimeout   time.Duration `validate:"gt=0"`
	Currency      string        `validate:"len=3,uppercase"`
	Timezone      string        `validate:"required"`
	ManualTrigger bool

	// Redis configuration (empty address disables run events)
	RedisAddr            string `validate:"omitempty,hostname_port"`
	RedisDB              int    `validate:"min=0"`
	RedisStream          string `validate:"required"`
	RedisStreamMaxLength int    `validate:"min=1"`

	// Memcache configuration (empty address disables rate-limit blocking)
	MemcacheAddr   string `validate:"omitempty,hostname_port"`
	RateLimitBlock time.Duration

	// Browser rendering for HTML leaflets
	UseChrome     bool
	ChromeTimeout time.Duration `validate:"gt=0"`

	// Metrics
	PushgatewayURL string `validate:"omitempty,url"`

	// Catalog pages per retailer
	LidlURL   string `validate:"omitempty,url"`
	MaximaURL string `validate:"omitempty,url"`
	RimiURL   string `validate:"omitempty,url"`
	NorfaURL  string `validate:"omitempty,url"`
	IkiURL    string `validate:"omitempty,url"`
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	httpTimeout, _ := strconv.Atoi(getEnv("HTTP_TIMEOUT_SECONDS", "30"))
	chromeTimeout, _ := strconv.Atoi(getEnv("CHROME_TIMEOUT_SECONDS", "45"))
	rateLimitBlock, _ := strconv.Atoi(getEnv("RATE_LIMIT_BLOCK_SECONDS", "500"))

	return &Config{
		Environment:            getEnv("LEAFLET_ENVIRONMENT", "development"),
		StoreBackend:           strings.ToLower(getEnv("STORE_BACKEND", BackendPostgREST)),
		SupabaseURL:            strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		HTTPTimeout:            time.Duration(httpTimeout) * time.Second,
		Currency:               strings.ToUpper(getEnv("CURRENCY", "EUR")),
		Timezone:               getEnv("TIMEZONE", "Europe/Vilnius"),
		ManualTrigger:          isManualTrigger(),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisDB:                redisDB,
		RedisStream:            getEnv("REDIS_STREAM", "leaflets:runs"),
		RedisStreamMaxLength:   streamMaxLength,
		MemcacheAddr:           os.Getenv("MEMCACHE_ADDR"),
		RateLimitBlock:         time.Duration(rateLimitBlock) * time.Second,
		UseChrome:              getEnv("USE_CHROME", "false") == "true",
		ChromeTimeout:          time.Duration(chromeTimeout) * time.Second,
		PushgatewayURL:         os.Getenv("PUSHGATEWAY_URL"),
		LidlURL:                getEnv("LIDL_URL", "https://www.lidl.lt/c/lidl-leidiniai/s10020060"),
		MaximaURL:              getEnv("MAXIMA_URL", "https://www.maxima.lt/leidiniai"),
		RimiURL:                getEnv("RIMI_URL", "https://www.rimi.lt/e-parduotuve/lt/akcijos"),
		NorfaURL:               getEnv("NORFA_URL", "https://www.norfa.lt/leidiniai"),
		IkiURL:                 getEnv("IKI_URL", "https://iki.lt/akcijos"),
	}
}

// Validate checks the configuration once at startup. Any failure is a
// configuration fault and must stop the process before a job is touched.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return pipelineerrors.NewConfiguration("invalid configuration", err)
	}

	switch c.StoreBackend {
	case BackendPostgREST:
		if c.SupabaseURL == "" || c.SupabaseServiceRoleKey == "" {
			return pipelineerrors.NewConfiguration("missing SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY", nil)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return pipelineerrors.NewConfiguration("missing DATABASE_URL", nil)
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return pipelineerrors.NewConfiguration(fmt.Sprintf("unknown timezone %q", c.Timezone), err)
	}
	return nil
}

// Location returns the timezone used for the scheduling window and timestamps.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// isManualTrigger reports whether the process was started by hand rather
// than by the schedule.
func isManualTrigger() bool {
	if getEnv("MANUAL_TRIGGER", "false") == "true" {
		return true
	}
	return os.Getenv("GITHUB_EVENT_NAME") == "workflow_dispatch"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
