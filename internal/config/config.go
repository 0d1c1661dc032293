package config // package config loads application configuration from environment variables

import (
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; see Load for the names and defaults.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify access tokens
	AppOrigin string // fallback origin for checkout return URLs

	Hold     HoldConfig
	Expiry   ExpiryConfig
	Payment  PaymentConfig
	SMTP     SMTPConfig
	LockTTL  time.Duration // per-show Redis lock lifetime
	LockWait time.Duration // how long a request waits for the per-show lock
}

// HoldConfig tunes the reservation transaction.
type HoldConfig struct {
	GraceWindow time.Duration // how long a pending booking keeps its seats
	MaxAttempts int           // optimistic-concurrency retries per request
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// ExpiryConfig tunes the hold-expiry worker.
type ExpiryConfig struct {
	Interval   time.Duration
	Batch      int
	Lease      time.Duration
	MaxBackoff time.Duration
}

// PaymentConfig holds the gateway credentials.  An empty SecretKey disables
// checkout; bookings are still created and lapse on their deadline.
type PaymentConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	CheckoutTTL   time.Duration
}

// SMTPConfig configures the confirmation mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// AnnounceTo receives the new-show mail.
	AnnounceTo []string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),
		AppOrigin: strings.TrimRight(envStr("APP_ORIGIN", "http://localhost:5173"), "/"),
		Hold: HoldConfig{
			GraceWindow: envDur("HOLD_GRACE_WINDOW", 10*time.Minute),
			MaxAttempts: envInt("RESERVE_MAX_ATTEMPTS", 5),
			BaseDelay:   envDur("RESERVE_RETRY_DELAY", 20*time.Millisecond),
			MaxDelay:    envDur("RESERVE_RETRY_MAX_DELAY", 500*time.Millisecond),
		},
		Expiry: ExpiryConfig{
			Interval:   envDur("EXPIRY_POLL_INTERVAL", 5*time.Second),
			Batch:      envInt("EXPIRY_BATCH_SIZE", 50),
			Lease:      envDur("EXPIRY_LEASE", time.Minute),
			MaxBackoff: envDur("EXPIRY_MAX_BACKOFF", 5*time.Minute),
		},
		Payment: PaymentConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(envStr("PAYMENT_CURRENCY", "inr")),
			CheckoutTTL:   envDur("CHECKOUT_TTL", 30*time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SENDER_EMAIL"),

			AnnounceTo: envList("SHOW_ANNOUNCE_TO"),
		},
		LockTTL:  envDur("SHOW_LOCK_TTL", 5*time.Second),
		LockWait: envDur("SHOW_LOCK_WAIT", 2*time.Second),
	}
}
