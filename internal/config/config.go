package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultDatabaseDSN = "host=localhost user=postgres password=postgres dbname=pos port=5432 sslmode=disable TimeZone=UTC"

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	LogLevel    string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Empty disables the closed-day summary cache and the close gate.
	RedisAddress   string
	LedgerCacheTTL time.Duration

	// Calendar days of the daybook are cut in this location.
	LedgerLocation *time.Location
}

func Load() *Config {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:       getEnv("DATABASE_DSN", defaultDatabaseDSN),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CORSOrigins:       getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: time.Duration(getEnvAsInt("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		RedisAddress:      strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		LedgerCacheTTL:    time.Duration(getEnvAsInt("LEDGER_CACHE_TTL_SECONDS", 3600)) * time.Second,
	}

	tz := getEnv("LEDGER_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("[FATAL] LEDGER_TIMEZONE %q could not be loaded: %v", tz, err)
	}
	cfg.LedgerLocation = loc

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set. It is required in every environment.")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters long.")
	}
	if cfg.DatabaseDSN == defaultDatabaseDSN {
		log.Println("[WARN] DATABASE_DSN is using the default value, set your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production.")
	}
	if cfg.RedisAddress == "" {
		log.Println("[WARN] REDIS_ADDRESS is not set, ledger summary cache and close gate are disabled.")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
