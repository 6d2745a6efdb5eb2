package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	Env         string
	FrontendURL string

	// Database
	DatabaseURL   string
	RunMigrations bool

	// Sessions / Google OAuth
	SessionSecret      string
	SessionSecure      bool
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Gemini
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int
	GeminiMaxAttempts    int

	// Storage
	StoragePath       string
	CloudflareAccount string
	R2Bucket          string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2PublicURL       string

	// Queue
	RedisURL    string
	WorkerCount int

	// Pipeline
	BatchSize            int
	MaxQuestions         int
	ImageConcurrency     int
	TranscriptCharBudget int
	TranscriptLang       string

	// Notifications
	DiscordWebhookURL string
}

// Load reads the process environment, after merging a .env file when one exists.
// A missing required variable panics; callers run this once at startup.
func Load() *Config {
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		FrontendURL: strings.TrimSuffix(getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"), "/"),

		DatabaseURL:   mustGetEnv("DATABASE_URL"),
		RunMigrations: getEnvAsBoolOrDefault("MIGRATIONS", true),

		SessionSecret:      mustGetEnv("SESSION_SECRET"),
		SessionSecure:      getEnvAsBoolOrDefault("SESSION_SECURE", false),
		GoogleClientID:     mustGetEnv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: mustGetEnv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  mustGetEnv("GOOGLE_REDIRECT_URL"),

		GeminiAPIKey:         mustGetEnvAny("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		GeminiMaxAttempts:    getEnvAsIntOrDefault("GEMINI_MAX_ATTEMPTS", 2),

		StoragePath:       getEnvOrDefault("STORAGE_PATH", "./uploads/files"),
		CloudflareAccount: getEnvOrDefault("CLOUDFLARE_ACCOUNT_ID", ""),
		R2Bucket:          getEnvOrDefault("R2_BUCKET_NAME", ""),
		R2AccessKeyID:     getEnvOrDefault("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnvOrDefault("R2_SECRET_ACCESS_KEY", ""),
		R2PublicURL:       getEnvOrDefault("R2_PUBLIC_URL", ""),

		RedisURL:    getEnvOrDefault("REDIS_URL", ""),
		WorkerCount: getEnvAsIntOrDefault("WORKER_COUNT", 2),

		BatchSize:            getEnvAsIntOrDefault("BATCH_SIZE", 5),
		MaxQuestions:         getEnvAsIntOrDefault("MAX_QUESTIONS", 100),
		ImageConcurrency:     getEnvAsIntOrDefault("IMAGE_CONCURRENCY", 3),
		TranscriptCharBudget: getEnvAsIntOrDefault("TRANSCRIPT_CHAR_BUDGET", 25000),
		TranscriptLang:       getEnvOrDefault("TRANSCRIPT_LANG", "en"),

		DiscordWebhookURL: getEnvOrDefault("DISCORD_WEBHOOK_URL", ""),
	}

	return cfg
}

// R2Enabled reports whether every Cloudflare R2 setting is present.
func (c *Config) R2Enabled() bool {
	return c.CloudflareAccount != "" && c.R2Bucket != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != ""
}

func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func mustGetEnvAny(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	panic(fmt.Sprintf("one of the environment variables %s must be set", strings.Join(keys, ", ")))
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
