package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // scheduler timezone must resolve in minimal images

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Records      RecordsConfig      `yaml:"records"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Email        EmailConfig        `yaml:"email"`
	Payment      PaymentConfig      `yaml:"payment"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Redis        RedisConfig        `yaml:"redis"`
}

type DatabaseConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"-"`
	Name              string        `yaml:"name"`
	SSLMode           string        `yaml:"sslmode"`
	MaxConns          int32         `yaml:"max_conns"`
	MinConns          int32         `yaml:"min_conns"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period"`
	AutoMigrate       bool          `yaml:"auto_migrate"` // apply pending migrations at API startup
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	Env            string        `yaml:"env"`
	LogLevel       string        `yaml:"log_level"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AuthRateLimit  int           `yaml:"auth_rate_limit"` // requests per minute per IP on public auth routes
	UserRateLimit  int           `yaml:"user_rate_limit"` // requests per minute per user on protected routes
	TrustedProxies []string      `yaml:"trusted_proxies"` // CIDRs allowed to set X-Forwarded-For
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"-"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	OTPTTL         time.Duration `yaml:"otp_ttl"`
	ResendCooldown time.Duration `yaml:"resend_cooldown"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
	Guest          GuestConfig   `yaml:"guest"`
}

// GuestConfig describes demo accounts that sign in with a fixed code
type GuestConfig struct {
	Enabled bool          `yaml:"enabled"`
	Emails  []string      `yaml:"emails"`
	Code    string        `yaml:"code"`
	TTL     time.Duration `yaml:"ttl"`
}

type RecordsConfig struct {
	FreeQuota           int           `yaml:"free_quota"`
	RecycleRetention    time.Duration `yaml:"recycle_retention"`
	StrictBulkOwnership bool          `yaml:"strict_bulk_ownership"`
}

type SubscriptionConfig struct {
	MonthLength time.Duration `yaml:"month_length"`
}

type EmailConfig struct {
	Provider     string `yaml:"provider"` // ses, smtp or log
	From         string `yaml:"from"`
	AdminEmail   string `yaml:"admin_email"`
	AWSRegion    string `yaml:"aws_region"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"-"`
}

type PaymentConfig struct {
	PaystackSecret  string        `yaml:"-"`
	PaystackBaseURL string        `yaml:"paystack_base_url"`
	Timeout         time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Spec       string        `yaml:"spec"`
	Timezone   string        `yaml:"timezone"`
	RunOnStart bool          `yaml:"run_on_start"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type RedisConfig struct {
	URL string `yaml:"-"` // empty selects the in-process lock
}

// Defaults returns the configuration used when nothing is overridden
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:              "localhost",
			Port:              5432,
			User:              "postgres",
			Name:              "keypass",
			SSLMode:           "disable",
			MaxConns:          25,
			MinConns:          5,
			MaxConnLifetime:   5 * time.Minute,
			MaxConnIdleTime:   1 * time.Minute,
			HealthCheckPeriod: 1 * time.Minute,
		},
		Server: ServerConfig{
			Port:           "8080",
			Env:            "development",
			LogLevel:       "info",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 30 * time.Second,
			AuthRateLimit:  20,
			UserRateLimit:  120,
		},
		Auth: AuthConfig{
			SessionTTL:     7 * 24 * time.Hour,
			OTPTTL:         5 * time.Minute,
			ResendCooldown: 2 * time.Minute,
			BcryptCost:     10,
			Guest: GuestConfig{
				Enabled: false,
				Code:    "295761",
				TTL:     7 * 24 * time.Hour,
			},
		},
		Records: RecordsConfig{
			FreeQuota:        5,
			RecycleRetention: 30 * 24 * time.Hour,
		},
		Subscription: SubscriptionConfig{
			MonthLength: 30 * 24 * time.Hour,
		},
		Email: EmailConfig{
			Provider:  "log",
			From:      "no-reply@keypass.app",
			AWSRegion: "us-east-1",
			SMTPPort:  587,
		},
		Payment: PaymentConfig{
			PaystackBaseURL: "https://api.paystack.co",
			Timeout:         10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Spec:     "0 3 * * *",
			Timezone: "Africa/Lagos",
			LockTTL:  10 * time.Minute,
		},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	// File values sit between defaults and the environment
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(cfg.Auth.JWTSecret, cfg.Server.Env); err != nil {
		return nil, err
	}

	if cfg.Records.FreeQuota < 1 {
		return nil, fmt.Errorf("RECORDS_FREE_QUOTA must be positive (got %d)", cfg.Records.FreeQuota)
	}

	if cfg.Server.AuthRateLimit < 1 || cfg.Server.UserRateLimit < 1 {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT and USER_RATE_LIMIT must be positive")
	}

	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", cfg.Scheduler.Timezone, err)
	}

	switch cfg.Email.Provider {
	case "ses", "smtp", "log":
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of ses, smtp, log (got %q)", cfg.Email.Provider)
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unable to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	db := &cfg.Database
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnvAsInt("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Name = getEnv("DB_NAME", db.Name)
	db.SSLMode = getEnv("DB_SSLMODE", db.SSLMode)
	db.MaxConns = int32(getEnvAsInt("DB_MAX_CONNS", int(db.MaxConns)))
	db.MinConns = int32(getEnvAsInt("DB_MIN_CONNS", int(db.MinConns)))
	db.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", db.MaxConnLifetime)
	db.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", db.MaxConnIdleTime)
	db.HealthCheckPeriod = getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", db.HealthCheckPeriod)
	db.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", db.AutoMigrate)

	srv := &cfg.Server
	srv.Port = getEnv("PORT", srv.Port)
	srv.Env = getEnv("ENV", srv.Env)
	srv.LogLevel = getEnv("LOG_LEVEL", srv.LogLevel)
	srv.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", srv.ReadTimeout)
	srv.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", srv.WriteTimeout)
	srv.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", srv.IdleTimeout)
	srv.RequestTimeout = getEnvAsDuration("SERVER_REQUEST_TIMEOUT", srv.RequestTimeout)
	srv.AuthRateLimit = getEnvAsInt("AUTH_RATE_LIMIT", srv.AuthRateLimit)
	srv.UserRateLimit = getEnvAsInt("USER_RATE_LIMIT", srv.UserRateLimit)
	srv.TrustedProxies = getEnvAsList("TRUSTED_PROXIES", srv.TrustedProxies)
	srv.AllowedOrigins = parseAllowedOrigins(srv.Env, srv.AllowedOrigins)

	a := &cfg.Auth
	a.JWTSecret = getEnv("JWT_SECRET", a.JWTSecret)
	a.SessionTTL = getEnvAsDuration("SESSION_TTL", a.SessionTTL)
	a.OTPTTL = getEnvAsDuration("OTP_TTL", a.OTPTTL)
	a.ResendCooldown = getEnvAsDuration("OTP_RESEND_COOLDOWN", a.ResendCooldown)
	a.BcryptCost = getEnvAsInt("BCRYPT_COST", a.BcryptCost)
	a.Guest.Enabled = getEnvAsBool("GUEST_ENABLED", a.Guest.Enabled)
	a.Guest.Emails = getEnvAsList("GUEST_EMAILS", a.Guest.Emails)
	a.Guest.Code = getEnv("GUEST_CODE", a.Guest.Code)
	a.Guest.TTL = getEnvAsDuration("GUEST_CODE_TTL", a.Guest.TTL)

	r := &cfg.Records
	r.FreeQuota = getEnvAsInt("RECORDS_FREE_QUOTA", r.FreeQuota)
	r.RecycleRetention = getEnvAsDuration("RECORDS_RECYCLE_RETENTION", r.RecycleRetention)
	r.StrictBulkOwnership = getEnvAsBool("RECORDS_STRICT_BULK_OWNERSHIP", r.StrictBulkOwnership)

	cfg.Subscription.MonthLength = getEnvAsDuration("SUBSCRIPTION_MONTH_LENGTH", cfg.Subscription.MonthLength)

	e := &cfg.Email
	e.Provider = strings.ToLower(getEnv("EMAIL_PROVIDER", e.Provider))
	e.From = getEnv("EMAIL_FROM", e.From)
	e.AdminEmail = getEnv("ADMIN_EMAIL", e.AdminEmail)
	e.AWSRegion = getEnv("AWS_REGION", e.AWSRegion)
	e.SMTPHost = getEnv("SMTP_HOST", e.SMTPHost)
	e.SMTPPort = getEnvAsInt("SMTP_PORT", e.SMTPPort)
	e.SMTPUser = getEnv("SMTP_USER", e.SMTPUser)
	e.SMTPPassword = getEnv("SMTP_PASSWORD", e.SMTPPassword)

	p := &cfg.Payment
	p.PaystackSecret = getEnv("PAYSTACK_SECRET_KEY", p.PaystackSecret)
	p.PaystackBaseURL = getEnv("PAYSTACK_BASE_URL", p.PaystackBaseURL)
	p.Timeout = getEnvAsDuration("PAYSTACK_TIMEOUT", p.Timeout)

	s := &cfg.Scheduler
	s.Enabled = getEnvAsBool("SCHEDULER_ENABLED", s.Enabled)
	s.Spec = getEnv("SCHEDULER_SPEC", s.Spec)
	s.Timezone = getEnv("SCHEDULER_TIMEZONE", s.Timezone)
	s.RunOnStart = getEnvAsBool("SCHEDULER_RUN_ON_START", s.RunOnStart)
	s.LockTTL = getEnvAsDuration("SCHEDULER_LOCK_TTL", s.LockTTL)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as lib/pq and goose expect it
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseAllowedOrigins(env string, fromFile []string) []string {
	if origins := getEnvAsList("ALLOWED_ORIGINS", nil); len(origins) > 0 {
		return origins
	}
	if len(fromFile) > 0 {
		return fromFile
	}

	if env == "production" {
		return []string{} // Default to no origins in production
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
