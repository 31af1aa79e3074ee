package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Gateway   GatewayConfig
	Metering  MeteringConfig
	CRM       CRMConfig
	Scheduler SchedulerConfig
	RateLimit RateLimitConfig
}

// GatewayConfig configures the Asaas payment gateway client.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// MeteringConfig configures the GPT Maker usage metering client.
type MeteringConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// CRMConfig configures the Jestor CRM client. Tokens are stored per tenant.
type CRMConfig struct {
	BaseURL    string
	ObjectType string
	Timeout    time.Duration
}

type SchedulerConfig struct {
	Enabled          bool
	MonthlyResetCron string
	CRMRefreshCron   string
	GatewaySyncCron  string
	EnabledJobs      []string
}

type RateLimitConfig struct {
	PaymentRate  float64
	PaymentBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "lexcredit"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Gateway: GatewayConfig{
			BaseURL: strings.TrimRight(getenv("ASAAS_API_URL", "https://api.asaas.com/v3"), "/"),
			APIKey:  strings.TrimSpace(getenv("ASAAS_API_KEY", "")),
			Timeout: getenvDuration("ASAAS_TIMEOUT", 12*time.Second),
		},
		Metering: MeteringConfig{
			BaseURL: strings.TrimRight(getenv("GPT_MAKER_API_URL", "https://api.gptmaker.ai"), "/"),
			Token:   strings.TrimSpace(getenv("GPT_MAKER_API_TOKEN", "")),
			Timeout: getenvDuration("GPT_MAKER_TIMEOUT", 10*time.Second),
		},
		CRM: CRMConfig{
			BaseURL:    strings.TrimRight(getenv("JESTOR_API_URL", ""), "/"),
			ObjectType: strings.TrimSpace(getenv("JESTOR_LEADS_OBJECT", "")),
			Timeout:    getenvDuration("JESTOR_TIMEOUT", 15*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getenvBool("SCHEDULER_ENABLED", true),
			MonthlyResetCron: getenv("SCHEDULER_MONTHLY_RESET_CRON", "0 0 1 * *"),
			CRMRefreshCron:   getenv("SCHEDULER_CRM_REFRESH_CRON", "30 3 * * *"),
			GatewaySyncCron:  getenv("SCHEDULER_GATEWAY_SYNC_CRON", ""),
			EnabledJobs:      parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
		},
		RateLimit: RateLimitConfig{
			PaymentRate:  getenvFloat("RATE_LIMIT_PAYMENT_RATE", 0.2),
			PaymentBurst: getenvInt("RATE_LIMIT_PAYMENT_BURST", 5),
		},
	}

	return cfg
}

func (c Config) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
