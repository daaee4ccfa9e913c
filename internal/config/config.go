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
	Env   string
	Port  int
	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret           string
	JWTAccessTTLMinutes int

	AdminEmail    string
	AdminPassword string

	AllowedOrigins []string

	OTLPEndpoint string

	// Auto-disable scheduler. ScheduledDisableTime is the RFC3339 instant at
	// which public registration closes; zero means "not armed via env".
	ScheduledDisableTime time.Time
	SchedulerPollSecs    int

	// Conflict detection. Zero means "events without an end time occupy the
	// rest of their calendar day".
	ConflictDefaultDuration time.Duration

	RegisterRateLimit  int
	RegisterRateWindow time.Duration
}

func Load() Config {
	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 60),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "")),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		ScheduledDisableTime: getEnvTime("SCHEDULED_DISABLE_TIME"),
		SchedulerPollSecs:    getEnvInt("SCHEDULER_POLL_SECONDS", 60),

		ConflictDefaultDuration: time.Duration(getEnvInt("CONFLICT_DEFAULT_DURATION_MINUTES", 0)) * time.Minute,

		RegisterRateLimit:  getEnvInt("REGISTER_RATE_LIMIT", 10),
		RegisterRateWindow: time.Duration(getEnvInt("REGISTER_RATE_WINDOW_SECONDS", 60)) * time.Second,
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "festreg")
	pass := getEnv("DB_PASSWORD", "festreg")
	name := getEnv("DB_NAME", "festreg")
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

func getEnvTime(key string) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		fmt.Println(err)
		return time.Time{}
	}

	return t
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
