package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("FRONTEND_URL", "")
	t.Setenv("ADMISSION_LIMIT", "")
	t.Setenv("ADMISSION_WINDOW", "")

	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.AdmissionLimit)
	assert.Equal(t, 60*time.Second, cfg.AdmissionWindow)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", " Production ")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ADMISSION_LIMIT", "5")
	t.Setenv("ADMISSION_WINDOW", "90")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("PRICE_ID_CITY", "price_123")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 5, cfg.AdmissionLimit)
	assert.Equal(t, 90*time.Second, cfg.AdmissionWindow)
	assert.Equal(t, 5*time.Second, cfg.AITimeout)
	assert.Equal(t, "price_123", cfg.PriceIDs["city"])
	assert.Equal(t, "", cfg.PriceIDs["starter"])
}

func TestStorageConfigured(t *testing.T) {
	cfg := &Config{CloudinaryName: "demo", CloudinaryAPIKey: "k"}
	assert.False(t, cfg.CloudinaryConfigured())
	cfg.CloudinaryAPISecret = "s"
	assert.True(t, cfg.CloudinaryConfigured())

	assert.False(t, cfg.MinIOConfigured())
	cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey = "localhost:9000", "a", "b"
	assert.True(t, cfg.MinIOConfigured())
}
