package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string

	// AppURL is the dashboard's public base URL, used to build invitation
	// acceptance links.
	AppURL string

	// JWT session signing.
	JWTSecret string
	JWTIssuer string

	// Resend transactional email API.
	ResendAPIKey  string
	EmailFromName string
	EmailFromAddr string

	// OpenAI-compatible chat completions API.
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// S3-compatible storage for published widget assets.
	WidgetBucket      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// CORSOrigins is the comma-separated list of dashboard origins.
	CORSOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServiceName:    getEnv("SERVICE_NAME", "sitehelper-api"),

		AppURL: getEnv("APP_URL", "http://localhost:5173"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "sitehelper"),

		ResendAPIKey:  getEnv("RESEND_API_KEY", ""),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "SiteHelper"),
		EmailFromAddr: getEnv("EMAIL_FROM_ADDR", "invitations@sitehelper.app"),

		LLMBaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),

		WidgetBucket:      getEnv("WIDGET_BUCKET", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
	}

	if origins := getEnv("CORS_ORIGINS", cfg.AppURL); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

// Validate checks that the fields required to run the API server are present.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.HTTPListenAddr == "" {
		missing = append(missing, "HTTP_LISTEN_ADDR")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
