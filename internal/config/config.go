package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL(s)
	AllowedHost    string   // production host check; empty disables it
	TrustProxy     bool     // honor X-Forwarded-For / X-Real-IP

	MongoURI    string
	PostgresURI string
	RedisURI    string
	JWTSecret   string

	// Admission controller (per-client submission throttle)
	AdmissionLimit  int
	AdmissionWindow time.Duration

	// Generative AI (OpenAI-compatible chat completions)
	AIBaseURL  string
	AIAPIKey   string
	AIModel    string
	AILanguage string
	AITimeout  time.Duration

	// Object storage: Cloudinary first, MinIO second, inline data otherwise
	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	UploadFolder        string
	MinIOEndpoint       string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOBucket         string
	MinIOUseSSL         bool
	MinIOPublicURL      string

	// SMTP - email dispatch disabled when host is empty
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Payment checkout backend function
	CheckoutURL string
	PriceIDs    map[string]string // plan -> price id
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseList(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		for _, u := range []string{getEnv("FRONTEND_URL", "http://localhost:3000"), getEnv("FRONTEND_URL_2", "")} {
			u = strings.TrimSpace(u)
			if u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		AllowedOrigins: allowedOrigins,
		AllowedHost:    strings.TrimSpace(getEnv("ALLOWED_HOST", "")),
		TrustProxy:     getEnv("TRUST_PROXY", "false") == "true",

		MongoURI:    getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/civicpulse")),
		PostgresURI: getEnv("POSTGRES_URI", "postgres://localhost:5432/civicpulse?sslmode=disable"),
		RedisURI:    getEnv("REDIS_URI", "redis://localhost:6379/0"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		AdmissionLimit:  getEnvInt("ADMISSION_LIMIT", 3),
		AdmissionWindow: getEnvDuration("ADMISSION_WINDOW", 60*time.Second),

		AIBaseURL:  getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIAPIKey:   getEnv("AI_API_KEY", ""),
		AIModel:    getEnv("AI_MODEL", "gpt-4o-mini"),
		AILanguage: getEnv("AI_LANGUAGE", "en"),
		AITimeout:  getEnvDuration("AI_TIMEOUT", 30*time.Second),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		UploadFolder:        getEnv("UPLOAD_FOLDER", "civicpulse"),
		MinIOEndpoint:       getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:      getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:         getEnv("MINIO_BUCKET", "civicpulse"),
		MinIOUseSSL:         getEnv("MINIO_USE_SSL", "false") == "true",
		MinIOPublicURL:      getEnv("MINIO_PUBLIC_URL", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		CheckoutURL: getEnv("CHECKOUT_FUNCTION_URL", ""),
		PriceIDs: map[string]string{
			"starter":    getEnv("PRICE_ID_STARTER", ""),
			"city":       getEnv("PRICE_ID_CITY", ""),
			"enterprise": getEnv("PRICE_ID_ENTERPRISE", ""),
		},
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// CloudinaryConfigured reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// MinIOConfigured reports whether a MinIO endpoint with credentials is set.
func (c *Config) MinIOConfigured() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
