package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "IMAGE_HEIGHT", "IMAGE_WIDTH", "IMAGE_CROP", "ALLOWED_EXTENSIONS",
		"MEDIA_ENDPOINT", "MEDIA_UPLOAD_REQUIRED", "RABBITMQ_EXCHANGE", "BODY_LIMIT_MB",
		"IMAGE_MAX_PIXELS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 500, cfg.Images.Height)
	assert.Equal(t, 500, cfg.Images.Width)
	assert.False(t, cfg.Images.Crop)
	assert.Equal(t, 40_000_000, cfg.Images.MaxPixels)
	assert.Equal(t, []string{"png", "jpeg", "jpg", "gif"}, cfg.Images.AllowedExtensions)
	assert.Equal(t, "meter.events", cfg.RabbitMQ.Exchange)
	assert.Empty(t, cfg.Media.Endpoint)
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "meters")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://postgres:postgres@db:5432/meters?sslmode=disable", cfg.Database.URL)

	t.Setenv("DATABASE_URL", "postgres://u:p@remote/x")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@remote/x", cfg.Database.URL)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMAGE_WIDTH", "-1")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("IMAGE_WIDTH", "500")
	t.Setenv("IMAGE_MAX_PIXELS", "1000")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("IMAGE_MAX_PIXELS", "")
	t.Setenv("MEDIA_UPLOAD_REQUIRED", "true")
	t.Setenv("MEDIA_ENDPOINT", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestIsAllowedExtension(t *testing.T) {
	c := ImageConfig{AllowedExtensions: []string{"png", "jpg"}}

	assert.True(t, c.IsAllowedExtension("PNG"))
	assert.True(t, c.IsAllowedExtension(".jpg"))
	assert.False(t, c.IsAllowedExtension("bmp"))
	assert.False(t, c.IsAllowedExtension(""))
}
