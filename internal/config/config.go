package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port int

	DBURL string

	// Auth
	JWTSecret            string
	JWTExpireDays        int
	BcryptCost           int
	ResetTokenTTLMinutes int
	CookieExpireDays     int

	// Seed admin (optional)
	AdminEmail    string
	AdminPassword string
	AdminName     string

	// Mail
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	// Redis (optional; rate limiting falls back to in-memory when empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting for the unauthenticated auth endpoints
	AuthRateLimit  int
	AuthRateWindow time.Duration

	OTELEndpoint string

	AllowedOrigins []string
}

func Load() Config {
	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTExpireDays:        getEnvInt("JWT_EXPIRE_DAYS", 30),
		BcryptCost:           getEnvInt("BCRYPT_COST", 10),
		ResetTokenTTLMinutes: getEnvInt("RESET_TOKEN_TTL_MINUTES", 10),
		CookieExpireDays:     getEnvInt("COOKIE_EXPIRE_DAYS", 30),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASSWORD", ""),
		MailFrom: getEnv("MAIL_FROM", "noreply@schoolhub.local"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow: time.Duration(getEnvInt("AUTH_RATE_WINDOW_SECONDS", 60)) * time.Second,

		OTELEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", ""),

		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}
}

// TokenTTL is the session token lifetime derived from JWT_EXPIRE_DAYS.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpireDays) * 24 * time.Hour
}

func (c Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenTTLMinutes) * time.Minute
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "schoolhub")
	pass := getEnv("DB_PASSWORD", "schoolhub")
	name := getEnv("DB_NAME", "schoolhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")

	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}

	return out
}
