package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        string
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	CatalogPath string
	TimeZone    string

	RateLimitPerMinute       int
	RateLimitBurst           int
	PublicRateLimitPerMinute int
	PublicRateLimitBurst     int

	NotifyProvider    string
	NotifyTimeout     time.Duration
	EvolutionBaseURL  string
	EvolutionToken    string
	EvolutionInstance string

	LowStockThreshold int
	ReminderLead      time.Duration
	SchedulerInterval time.Duration
	SchedulerEnabled  bool

	AdminUsername     string
	AdminPasswordHash string
	JWTSecret         string
	SessionTTL        time.Duration

	OTelEndpoint    string
	OTelInsecure    bool
	OTelSampleRatio float64
}

// LoadDotEnv reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	if driver == "" {
		driver = DriverSQLite
		if os.Getenv("DB_DSN") != "" {
			driver = DriverPostgres
		}
	}

	cfg := Config{
		Port:        port,
		StoreDriver: driver,
		DatabaseURL: os.Getenv("DB_DSN"),
		SQLitePath:  readString("SQLITE_PATH", "dogao.db"),
		CatalogPath: os.Getenv("CATALOG_PATH"),
		TimeZone:    readString("TIME_ZONE", "America/Sao_Paulo"),

		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 240),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 60),
		PublicRateLimitPerMinute: readInt("PUBLIC_RATE_LIMIT_PER_MIN", 20),
		PublicRateLimitBurst:     readInt("PUBLIC_RATE_LIMIT_BURST", 5),

		NotifyProvider:    readString("NOTIFY_PROVIDER", "log"),
		NotifyTimeout:     readDurationSeconds("NOTIFY_TIMEOUT_SECONDS", 10),
		EvolutionBaseURL:  os.Getenv("EVOLUTION_API_URL"),
		EvolutionToken:    os.Getenv("EVOLUTION_API_TOKEN"),
		EvolutionInstance: os.Getenv("EVOLUTION_INSTANCE"),

		LowStockThreshold: readInt("LOW_STOCK_THRESHOLD", 50),
		ReminderLead:      readDurationSeconds("REMINDER_LEAD_SECONDS", 3600),
		SchedulerInterval: readDurationSeconds("SCHEDULER_INTERVAL_SECONDS", 60),
		SchedulerEnabled:  readBool("SCHEDULER_ENABLED", true),

		AdminUsername:     readString("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SessionTTL:        readDurationSeconds("SESSION_TTL_SECONDS", 12*3600),

		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelInsecure: readBool("OTEL_EXPORTER_OTLP_INSECURE", false),

		OTelSampleRatio: readFloat("OTEL_TRACES_SAMPLER_ARG", 1),
	}
	if cfg.JWTSecret == "" {
		log.Printf("config JWT_SECRET is empty, operator routes are served without authentication")
	}
	return cfg
}

// Location resolves TimeZone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		log.Printf("config time zone=%s invalid, using UTC: %v", c.TimeZone, err)
		return time.UTC
	}
	return loc
}

func readString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
