package config

import (
	"os"
	"testing"
	"time"
)

// requiredEnv is the minimal environment Load accepts.
func requiredEnv() map[string]string {
	return map[string]string{
		"ZOOM_WEBHOOK_SECRET": "whsec",
		"FM_HOST":             "https://fm.example.com",
		"FM_DATABASE":         "calls",
		"FM_USERNAME":         "api",
		"FM_PASSWORD":         "secret",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  requiredEnv(),
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.FMLayout != "CallLog" {
					t.Errorf("expected layout CallLog, got %s", cfg.FMLayout)
				}
				if cfg.SessionRefresh != 13*time.Minute {
					t.Errorf("expected SessionRefresh 13m, got %v", cfg.SessionRefresh)
				}
				if cfg.RequestTimeout != 30*time.Second {
					t.Errorf("expected RequestTimeout 30s, got %v", cfg.RequestTimeout)
				}
				if cfg.MissedCallEndTime {
					t.Error("expected MissedCallEndTime false by default")
				}
			},
		},
		{
			name: "custom values",
			env: merge(requiredEnv(), map[string]string{
				"PORT":                       "9000",
				"LOG_LEVEL":                  "debug",
				"FM_LAYOUT":                  "PhoneLog",
				"FM_SESSION_REFRESH_MINUTES": "10",
				"FM_REQUEST_TIMEOUT":         "5",
				"MISSED_CALL_END_TIME":       "true",
				"ALLOWED_ORIGINS":            "http://example.com, http://test.com",
			}),
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.FMLayout != "PhoneLog" {
					t.Errorf("expected layout PhoneLog, got %s", cfg.FMLayout)
				}
				if cfg.SessionRefresh != 10*time.Minute {
					t.Errorf("expected SessionRefresh 10m, got %v", cfg.SessionRefresh)
				}
				if cfg.RequestTimeout != 5*time.Second {
					t.Errorf("expected RequestTimeout 5s, got %v", cfg.RequestTimeout)
				}
				if !cfg.MissedCallEndTime {
					t.Error("expected MissedCallEndTime true")
				}
				if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://test.com" {
					t.Errorf("unexpected allowed origins %v", cfg.AllowedOrigins)
				}
			},
		},
		{
			name:    "missing webhook secret",
			env:     without(requiredEnv(), "ZOOM_WEBHOOK_SECRET"),
			wantErr: true,
		},
		{
			name:    "missing filemaker host",
			env:     without(requiredEnv(), "FM_HOST"),
			wantErr: true,
		},
		{
			name:    "missing filemaker credentials",
			env:     without(requiredEnv(), "FM_PASSWORD"),
			wantErr: true,
		},
		{
			name: "invalid refresh interval",
			env: merge(requiredEnv(), map[string]string{
				"FM_SESSION_REFRESH_MINUTES": "invalid",
			}),
			wantErr: true,
		},
		{
			name: "zero refresh interval",
			env: merge(requiredEnv(), map[string]string{
				"FM_SESSION_REFRESH_MINUTES": "0",
			}),
			wantErr: true,
		},
		{
			name: "invalid request timeout",
			env: merge(requiredEnv(), map[string]string{
				"FM_REQUEST_TIMEOUT": "soon",
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Load config
			cfg, err := Load()

			// Check error
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Run custom checks
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func merge(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func without(base map[string]string, key string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		if k != key {
			out[k] = v
		}
	}
	return out
}
