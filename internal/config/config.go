package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	CardCounterStore = "store"
	CardCounterRedis = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Ticket       TicketConfig
	Uploads      UploadConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the ticket store backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds outbound email settings.
type NotificationConfig struct {
	MailgunAPIKey    string
	MailgunDomain    string
	MailgunBaseURL   string
	EmailFrom        string
	AdminEmail       string
	FrontendURL      string
	AdminURL         string
	RequestTimeout   time.Duration
	FailedListKey    string
	FailedListMaxLen int64
}

// TicketConfig tunes card id allocation.
type TicketConfig struct {
	CardPrefix    string
	CardCounter   string
	CardRedisKey  string
	CreateRetries int
}

// UploadConfig constrains attachment uploads.
type UploadConfig struct {
	Dir               string
	PublicPath        string
	MaxFiles          int
	MaxFileBytes      int64
	AllowedExtensions []string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	dsn := os.Getenv("POSTGRES_DSN")
	defaultDriver := StoreDriverSQLite
	if dsn != "" {
		defaultDriver = StoreDriverPostgres
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "feedback-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", defaultDriver)),
		},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations/postgres"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "data/feedback.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Notification: NotificationConfig{
			MailgunAPIKey:    os.Getenv("MAILGUN_API_KEY"),
			MailgunDomain:    os.Getenv("MAILGUN_DOMAIN"),
			MailgunBaseURL:   getEnv("MAILGUN_BASE_URL", "https://api.mailgun.net/v3"),
			EmailFrom:        getEnv("EMAIL_FROM", "noreply@example.com"),
			AdminEmail:       os.Getenv("ADMIN_EMAIL"),
			FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
			AdminURL:         getEnv("ADMIN_URL", "http://localhost:5173/admin"),
			RequestTimeout:   getEnvAsDuration("NOTIFY_REQUEST_TIMEOUT", 10*time.Second),
			FailedListKey:    getEnv("NOTIFY_FAILED_LIST_KEY", "feedback:notifications:failed"),
			FailedListMaxLen: int64(getEnvAsInt("NOTIFY_FAILED_LIST_MAX", 1000)),
		},
		Ticket: TicketConfig{
			CardPrefix:    strings.ToUpper(getEnv("TICKET_CARD_PREFIX", "AQA")),
			CardCounter:   strings.ToLower(getEnv("TICKET_CARD_COUNTER", CardCounterStore)),
			CardRedisKey:  getEnv("TICKET_CARD_REDIS_KEY", "feedback:card_seq"),
			CreateRetries: getEnvAsInt("TICKET_CREATE_RETRIES", 3),
		},
		Uploads: UploadConfig{
			Dir:               getEnv("UPLOAD_DIR", "uploads/feedback"),
			PublicPath:        getEnv("UPLOAD_PUBLIC_PATH", "/uploads/feedback"),
			MaxFiles:          getEnvAsInt("UPLOAD_MAX_FILES", 5),
			MaxFileBytes:      int64(getEnvAsInt("UPLOAD_MAX_FILE_BYTES", 5*1024*1024)),
			AllowedExtensions: getEnvAsList("UPLOAD_ALLOWED_EXTENSIONS", []string{".jpg", ".jpeg", ".png", ".pdf"}),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
		}
	case StoreDriverSQLite:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Ticket.CardCounter {
	case CardCounterStore:
	case CardCounterRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("TICKET_CARD_COUNTER=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("invalid TICKET_CARD_COUNTER %q", c.Ticket.CardCounter)
	}
	if c.Ticket.CardPrefix == "" {
		return fmt.Errorf("TICKET_CARD_PREFIX must not be empty")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// MailgunEnabled reports whether outbound email is configured.
func (n NotificationConfig) MailgunEnabled() bool {
	return n.MailgunAPIKey != "" && n.MailgunDomain != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
