package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kimgyuhyun/ott-project-sub001/pkg/validator"
)

type Config struct {
	// Database
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DatabaseURL string

	// Redis
	EnableRedis bool
	RedisURL    string

	// JWT
	JWTSecret string

	// Server
	Port        string
	Environment string

	// CORS
	CORSOrigins []string

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int
	RateLimitBurst    int

	// Features
	EnableCache   bool
	EnableMetrics bool

	// Site Meta
	SiteName string
	SiteURL  string

	// Payments
	MerchantCode    string
	PGAPIBaseURL    string
	PGAPIKey        string
	PGAPISecret     string
	PGWebhookSecret string
	DefaultGateway  string
	ConfirmAttempts int
	ConfirmDelay    time.Duration

	// Billing
	BillingInterval time.Duration
}

// devMerchantCode is the sandbox merchant code used outside production when no
// real code is configured.
const devMerchantCode = "imp00000000"

func New() *Config {
	c := &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "ottuser"),
		DBPassword: getEnv("DB_PASSWORD", "ottpassword"),
		DBName:     getEnv("DB_NAME", "ottdb"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis
		EnableRedis: getEnvAsBool("ENABLE_REDIS", true),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-this-in-production"),

		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// CORS
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		// Rate Limiting
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 20),

		// Features
		EnableCache:   getEnvAsBool("ENABLE_CACHE", true),
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),

		// Site Meta
		SiteName: getEnv("SITE_NAME", "OTT Project"),
		SiteURL:  getEnv("SITE_URL", "http://localhost:3000"),

		// Payments
		MerchantCode:    getEnv("IMP_MERCHANT_CODE", ""),
		PGAPIBaseURL:    getEnv("PG_API_BASE_URL", "https://api.iamport.kr"),
		PGAPIKey:        getEnv("PG_API_KEY", ""),
		PGAPISecret:     getEnv("PG_API_SECRET", ""),
		PGWebhookSecret: getEnv("PG_WEBHOOK_SECRET", ""),
		DefaultGateway:  getEnv("PG_DEFAULT_GATEWAY", "kakaopay"),
		ConfirmAttempts: getEnvAsInt("PAYMENT_CONFIRM_ATTEMPTS", 5),
		ConfirmDelay:    time.Duration(getEnvAsInt("PAYMENT_CONFIRM_DELAY_MS", 500)) * time.Millisecond,

		// Billing
		BillingInterval: time.Duration(getEnvAsInt("BILLING_APPLY_INTERVAL_SECONDS", 60)) * time.Second,
	}

	// The sandbox merchant code only applies outside production: a production
	// deployment missing IMP_MERCHANT_CODE must fail checkout, not silently
	// route payments through the sandbox.
	if c.MerchantCode == "" && !c.IsProduction() {
		c.MerchantCode = devMerchantCode
	}

	// SITE_URL feeds payment redirect URLs; a malformed value would send
	// users to a dead page after paying.
	if !validator.ValidateURL(c.SiteURL) {
		c.SiteURL = "http://localhost:3000"
	}

	// Build DSN
	c.DatabaseURL = fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)

	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
