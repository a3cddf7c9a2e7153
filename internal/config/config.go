// Package config reads runtime settings from the environment (optionally seeded
// from a .env file) into typed structs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string
	DB       DBConfig
	Midtrans MidtransConfig
	Payment  PaymentConfig
	SMTP     SMTPConfig
	Redis    RedisConfig
	Rabbit   RabbitConfig
	Storage  StorageConfig
	Session  SessionConfig
	CORS     []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type MidtransConfig struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
	Timeout      time.Duration
	FinishURL    string
}

type PaymentConfig struct {
	Currency          string
	PendingTTL        time.Duration // pending payments older than this are expired by the sweep
	StatusThrottleTTL time.Duration // min gap between gateway status lookups per order
}

type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	TLSMode       string // none|starttls|tls
	SkipVerifyTLS bool
	From          string
	FromName      string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitConfig struct {
	URL   string
	Queue string
}

type StorageConfig struct {
	Driver       string // local|s3|none
	LocalDir     string
	S3Region     string
	S3Bucket     string
	S3Prefix     string
	S3PublicBase string
}

type SessionConfig struct {
	CookieName string
	Secure     bool
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	// prod uses real env vars; a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Env:      v.GetString("APP_ENV"),
		HTTPAddr: v.GetString("HTTP_ADDR"),
		BaseURL:  strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Midtrans: MidtransConfig{
			ServerKey:    v.GetString("MIDTRANS_SERVER_KEY"),
			ClientKey:    v.GetString("MIDTRANS_CLIENT_KEY"),
			IsProduction: v.GetBool("MIDTRANS_IS_PRODUCTION"),
			Timeout:      v.GetDuration("MIDTRANS_TIMEOUT"),
			FinishURL:    v.GetString("MIDTRANS_FINISH_URL"),
		},
		Payment: PaymentConfig{
			Currency:          v.GetString("PAYMENT_CURRENCY"),
			PendingTTL:        v.GetDuration("PAYMENT_PENDING_TTL"),
			StatusThrottleTTL: v.GetDuration("PAYMENT_STATUS_THROTTLE"),
		},
		SMTP: SMTPConfig{
			Host:          v.GetString("SMTP_HOST"),
			Port:          v.GetString("SMTP_PORT"),
			User:          v.GetString("SMTP_USER"),
			Pass:          v.GetString("SMTP_PASS"),
			TLSMode:       v.GetString("SMTP_TLS_MODE"),
			SkipVerifyTLS: v.GetBool("SMTP_SKIP_VERIFY_TLS"),
			From:          v.GetString("EMAIL_FROM"),
			FromName:      v.GetString("EMAIL_FROM_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Rabbit: RabbitConfig{
			URL:   v.GetString("RABBITMQ_URL"),
			Queue: v.GetString("RABBITMQ_QUEUE"),
		},
		Storage: StorageConfig{
			Driver:       v.GetString("STORAGE_DRIVER"),
			LocalDir:     v.GetString("LOCAL_ARCHIVE_DIR"),
			S3Region:     v.GetString("S3_REGION"),
			S3Bucket:     v.GetString("S3_BUCKET"),
			S3Prefix:     v.GetString("S3_PREFIX"),
			S3PublicBase: v.GetString("S3_PUBLIC_BASE_URL"),
		},
		Session: SessionConfig{
			CookieName: v.GetString("SESSION_COOKIE"),
			Secure:     v.GetBool("SESSION_SECURE"),
		},
		CORS: splitList(v.GetString("CORS_ALLOW_ORIGINS")),
	}

	if cfg.DB.DSN == "" {
		return Config{}, fmt.Errorf("config: DB_DSN is required")
	}
	dsn, err := normalizeDSN(cfg.DB.DSN)
	if err != nil {
		return Config{}, err
	}
	cfg.DB.DSN = dsn
	return cfg, nil
}

// normalizeDSN turns on parseTime so DATETIME columns scan into time.Time.
// Everything else in the DSN is left as given.
func normalizeDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("config: DB_DSN: %w", err)
	}
	if mc.ParseTime {
		return dsn, nil
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("MIDTRANS_TIMEOUT", "15s")
	v.SetDefault("PAYMENT_CURRENCY", "IDR")
	v.SetDefault("PAYMENT_PENDING_TTL", "24h")
	v.SetDefault("PAYMENT_STATUS_THROTTLE", "5s")
	v.SetDefault("SMTP_PORT", "1025")
	v.SetDefault("SMTP_TLS_MODE", "none")
	v.SetDefault("EMAIL_FROM", "no-reply@summitpass.local")
	v.SetDefault("EMAIL_FROM_NAME", "SummitPass")
	v.SetDefault("RABBITMQ_QUEUE", "booking.confirmed")
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("LOCAL_ARCHIVE_DIR", "./storage/payment-archive")
	v.SetDefault("S3_PREFIX", "payment-archive")
	v.SetDefault("SESSION_COOKIE", "sp_session")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
