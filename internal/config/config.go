package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Zoom webhook
	WebhookSecret string

	// FileMaker Data API
	FMHost     string
	FMDatabase string
	FMLayout   string
	FMUsername string
	FMPassword string

	// Session lease: tokens are renewed on this interval, short of the
	// Data API's own ~15 minute token lifetime.
	SessionRefresh time.Duration

	// Timeout applied to every outbound FileMaker call.
	RequestTimeout time.Duration

	// Whether missed-call records get a CallEndTime.
	MissedCallEndTime bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		WebhookSecret:  os.Getenv("ZOOM_WEBHOOK_SECRET"),
		FMHost:         os.Getenv("FM_HOST"),
		FMDatabase:     os.Getenv("FM_DATABASE"),
		FMLayout:       getEnv("FM_LAYOUT", "CallLog"),
		FMUsername:     os.Getenv("FM_USERNAME"),
		FMPassword:     os.Getenv("FM_PASSWORD"),
	}

	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("ZOOM_WEBHOOK_SECRET is required")
	}
	for _, key := range []string{"FM_HOST", "FM_DATABASE", "FM_USERNAME", "FM_PASSWORD"} {
		if os.Getenv(key) == "" {
			return nil, fmt.Errorf("%s is required", key)
		}
	}

	refreshMinutes, err := strconv.Atoi(getEnv("FM_SESSION_REFRESH_MINUTES", "13"))
	if err != nil || refreshMinutes <= 0 {
		return nil, fmt.Errorf("invalid FM_SESSION_REFRESH_MINUTES: %q", getEnv("FM_SESSION_REFRESH_MINUTES", "13"))
	}
	config.SessionRefresh = time.Duration(refreshMinutes) * time.Minute

	timeoutSeconds, err := strconv.Atoi(getEnv("FM_REQUEST_TIMEOUT", "30"))
	if err != nil || timeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid FM_REQUEST_TIMEOUT: %q", getEnv("FM_REQUEST_TIMEOUT", "30"))
	}
	config.RequestTimeout = time.Duration(timeoutSeconds) * time.Second

	endTime := strings.ToLower(getEnv("MISSED_CALL_END_TIME", "false"))
	config.MissedCallEndTime = endTime == "true" || endTime == "1" || endTime == "yes"

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
